package kernel

import "rtk/arch"

// System call selectors. Zero is never a valid selector.
const (
	selCreate arch.Selector = iota + 1
	selDelete
	selThreadExit
	selThreadTerminate
	selThreadYield
	selThreadSuspend
	selThreadResume
	selThreadSetPriority
	selDelay
	selDelayUntil
	selSemAcquire
	selSemRelease
	selFlagsSet
	selFlagsClear
	selFlagsWait
	selPoolAlloc
	selPoolFree
	selQueuePut
	selQueueGet
	selQueueReset
	selTimerStart
	selTimerStop
	selInspect
	numSelectors
)

// svcFunc is a kernel function. It receives the four argument words and the
// payload reference of the call and returns the result word.
type svcFunc func(k *Kernel, m callMode, a *[4]arch.Word, ref any) arch.Word

var svcTable [numSelectors]svcFunc

func init() {
	svcTable = [numSelectors]svcFunc{
		selCreate:            svcCreate,
		selDelete:            svcDelete,
		selThreadExit:        svcThreadExit,
		selThreadTerminate:   svcThreadTerminate,
		selThreadYield:       svcThreadYield,
		selThreadSuspend:     svcThreadSuspend,
		selThreadResume:      svcThreadResume,
		selThreadSetPriority: svcThreadSetPriority,
		selDelay:             svcDelay,
		selDelayUntil:        svcDelayUntil,
		selSemAcquire:        svcSemAcquire,
		selSemRelease:        svcSemRelease,
		selFlagsSet:          svcFlagsSet,
		selFlagsClear:        svcFlagsClear,
		selFlagsWait:         svcFlagsWait,
		selPoolAlloc:         svcPoolAlloc,
		selPoolFree:          svcPoolFree,
		selQueuePut:          svcQueuePut,
		selQueueGet:          svcQueueGet,
		selQueueReset:        svcQueueReset,
		selTimerStart:        svcTimerStart,
		selTimerStop:         svcTimerStop,
		selInspect:           svcInspect,
	}
}

// deleter is implemented by objects that need work beyond leaving the object
// table when deleted, such as releasing waiters.
type deleter interface {
	object
	deleted(k *Kernel)
}

// svcCreate registers the control block passed in ref.
func svcCreate(k *Kernel, _ callMode, _ *[4]arch.Word, ref any) arch.Word {
	o, ok := ref.(object)
	if !ok || o == nil {
		return ErrParameter.word()
	}

	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	if st := k.objects.register(o); st != StatusOK {
		return st.word()
	}
	h := o.hdr()
	if t, ok := o.(*Thread); ok {
		if st := k.startThread(t); st != StatusOK {
			k.objects.unregister(t)
			return st.word()
		}
	}
	k.logf("kernel: create %s %q handle %#x", h.kind, h.name, uint32(h.handle))
	return 0
}

// svcDelete retires object a[0] of kind a[1].
func svcDelete(k *Kernel, _ callMode, a *[4]arch.Word, _ any) arch.Word {
	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.objects.lookup(Handle(a[0]), Kind(a[1]))
	if st != StatusOK {
		return st.word()
	}
	if _, ok := o.(*Thread); ok {
		return ErrParameter.word()
	}
	if d, ok := o.(deleter); ok {
		d.deleted(k)
	}
	k.objects.unregister(o)
	k.logf("kernel: delete %s %q", o.hdr().kind, o.hdr().name)
	return 0
}

// deleteObject is the wrapper shared by every Delete method.
func deleteObject(h *objectHeader) error {
	if h.k == nil {
		return ErrParameter
	}
	return resultErr(h.k.call(selDelete, h.handle.word(), arch.Word(h.kind), 0, 0, nil))
}

// inspect runs fn with interrupts masked. Unprivileged threads cannot mask,
// so from there fn runs in the kernel behind the read-only selector.
func (k *Kernel) inspect(fn func()) {
	if k.running && !k.port.IsPrivileged() {
		k.port.Trap(&arch.Call{Fn: selInspect, Ref: fn})
		return
	}
	s := k.port.EnterCritical()
	fn()
	k.port.ExitCritical(s)
}

func svcInspect(k *Kernel, _ callMode, _ *[4]arch.Word, ref any) arch.Word {
	fn, ok := ref.(func())
	if !ok || fn == nil {
		return ErrParameter.word()
	}
	s := k.port.EnterCritical()
	fn()
	k.port.ExitCritical(s)
	return 0
}

// checkWait rejects a timeout the calling context cannot honor.
func checkWait(m callMode, timeout Ticks) Status {
	if timeout != NoWait && m != modeThread {
		return m.blockErr()
	}
	return StatusOK
}

// lookup finds a live object of kind under the table. Interrupts must be
// masked.
func (k *Kernel) lookup(w arch.Word, kind Kind) (object, Status) {
	return k.objects.lookup(Handle(w), kind)
}
