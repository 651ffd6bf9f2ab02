package kernel

import (
	"encoding/binary"
	"fmt"

	"rtk/arch"
)

// MaxPriority is the highest thread priority. Priority 0 belongs to the idle
// thread.
const MaxPriority = 63

const (
	stackGuard = 0xE25A2EA5
	stackFill  = 0xCC

	// Synthetic code addresses for the initial frame: entry encodes the
	// object slot, exit is the shared exit handler.
	entryBase   = 0x08000001
	exitAddress = 0x0800FFF1
)

// ThreadFunc is a thread entry point. Returning from it exits the thread.
type ThreadFunc func(arg any)

// Attribute bits.
const (
	// AttrPrivileged runs a thread privileged, as if it were kernel code.
	AttrPrivileged uint32 = 1 << 0
)

// ThreadAttr configures a thread. Stack is caller-owned and must outlive
// the thread.
type ThreadAttr struct {
	Name     string
	Attr     uint32
	Stack    []byte
	Priority uint8
}

// ThreadState is a thread's scheduling state.
type ThreadState uint8

const (
	ThreadInactive ThreadState = iota
	ThreadReady
	ThreadRunning
	ThreadBlocked
	ThreadTerminated
)

func (s ThreadState) String() string {
	switch s {
	case ThreadReady:
		return "ready"
	case ThreadRunning:
		return "running"
	case ThreadBlocked:
		return "blocked"
	case ThreadTerminated:
		return "terminated"
	default:
		return "inactive"
	}
}

// WaitReason says what a blocked thread waits for.
type WaitReason uint8

const (
	WaitNone WaitReason = iota
	WaitDelay
	WaitSemaphore
	WaitEventFlags
	WaitMemoryPool
	WaitQueuePut
	WaitQueueGet
	WaitSuspended
)

func (w WaitReason) String() string {
	switch w {
	case WaitDelay:
		return "delay"
	case WaitSemaphore:
		return "semaphore"
	case WaitEventFlags:
		return "eventflags"
	case WaitMemoryPool:
		return "mempool"
	case WaitQueuePut:
		return "queue-put"
	case WaitQueueGet:
		return "queue-get"
	case WaitSuspended:
		return "suspended"
	default:
		return "-"
	}
}

// Thread is a thread control block. Declare one per thread and pass it to
// NewThread; the kernel keeps using it until the thread terminates.
type Thread struct {
	objectHeader

	ctx   arch.Context
	prio  uint8
	state ThreadState
	slice Ticks

	entry ThreadFunc
	arg   any

	// ready queue or wait list membership
	next, prev *Thread
	list       *threadList

	wait    WaitReason
	waitObj object
	waitRef any
	flags   flagsWait

	tn tnode
}

// ThreadInfo is a snapshot of one thread for diagnostics.
type ThreadInfo struct {
	Handle    Handle
	Name      string
	Priority  uint8
	State     ThreadState
	Wait      WaitReason
	Wake      Ticks // valid when Timed
	Timed     bool
	StackSize int
	StackUsed int
}

// NewThread creates a thread running fn(arg) and makes it ready. Before
// Start it only queues the thread; afterwards it preempts the caller if it
// has a higher priority.
func (k *Kernel) NewThread(t *Thread, fn ThreadFunc, arg any, attr ThreadAttr) error {
	if attr.Priority < 1 || attr.Priority > MaxPriority {
		return ErrParameter
	}
	return k.newThread(t, fn, arg, attr, attr.Priority)
}

func (k *Kernel) newThread(t *Thread, fn ThreadFunc, arg any, attr ThreadAttr, prio uint8) error {
	if t == nil || fn == nil || len(attr.Stack) == 0 {
		return ErrParameter
	}
	if t.handle != 0 {
		return ErrParameter
	}
	*t = Thread{
		objectHeader: objectHeader{k: k, kind: KindThread, name: attr.Name, attr: attr.Attr},
		prio:         prio,
		entry:        fn,
		arg:          arg,
	}
	t.ctx.Stack = attr.Stack
	t.ctx.Privileged = attr.Attr&AttrPrivileged != 0
	t.tn.thread = t
	return resultErr(k.call(selCreate, 0, 0, 0, 0, t))
}

// startThread lays out the initial frame and queues t. It runs in kernel
// context once t holds a handle.
func (k *Kernel) startThread(t *Thread) Status {
	stack := t.ctx.Stack
	for i := range stack {
		stack[i] = stackFill
	}
	if k.cfg.StackCheck {
		if len(stack) < 4 {
			return ErrParameter
		}
		binary.LittleEndian.PutUint32(stack, stackGuard)
	}

	entry := arch.Word(entryBase | t.handle.index()<<4)
	sp, err := k.port.BuildInitialFrame(stack, entry, t.handle.word(), exitAddress)
	if err != nil {
		return ErrParameter
	}
	if k.cfg.StackCheck && sp < 4 {
		return ErrParameter
	}
	t.ctx.SP = sp

	k.port.Spawn(&t.ctx, func() {
		t.entry(t.arg)
		k.exit()
	})
	t.state = ThreadReady
	k.ready.push(t, false)
	k.preempt(t)
	return StatusOK
}

// stackIntact checks the guard word.
func (t *Thread) stackIntact() bool {
	s := t.ctx.Stack
	return len(s) < 4 || binary.LittleEndian.Uint32(s) == stackGuard
}

// stackUsed is the high-water mark: bytes from the top down to the lowest
// byte that no longer holds the fill pattern.
func (t *Thread) stackUsed() int {
	s := t.ctx.Stack
	i := 0
	if t.k != nil && t.k.cfg.StackCheck {
		i = 4
	}
	for i < len(s) && s[i] == stackFill {
		i++
	}
	return len(s) - i
}

// Priority returns the thread's current priority.
func (t *Thread) Priority() uint8 { return t.prio }

// State returns the thread's scheduling state.
func (t *Thread) State() ThreadState { return t.state }

// Context returns the saved architecture context.
func (t *Thread) Context() *arch.Context { return &t.ctx }

func (t *Thread) info() ThreadInfo {
	return ThreadInfo{
		Handle:    t.handle,
		Name:      t.name,
		Priority:  t.prio,
		State:     t.state,
		Wait:      t.wait,
		Wake:      t.tn.deadline,
		Timed:     t.tn.armed,
		StackSize: len(t.ctx.Stack),
		StackUsed: t.stackUsed(),
	}
}

// Threads returns a snapshot of every live thread, idle included, in object
// table order.
func (k *Kernel) Threads() []ThreadInfo {
	var out []ThreadInfo
	k.inspect(func() {
		k.objects.each(func(o object) {
			if t, ok := o.(*Thread); ok {
				out = append(out, t.info())
			}
		})
	})
	return out
}

// Lookup returns the live thread named by h.
func (k *Kernel) Lookup(h Handle) (*Thread, bool) {
	var t *Thread
	k.inspect(func() {
		if o, st := k.objects.lookup(h, KindThread); st == StatusOK {
			t = o.(*Thread)
		}
	})
	return t, t != nil
}

// Exit terminates the calling thread. It does not return.
func (k *Kernel) Exit() {
	k.exit()
	// Unreachable from thread context: the core never resumes a dead
	// thread. Reaching here means Exit ran from an interrupt.
	k.die(ErrISR)
}

func (k *Kernel) exit() {
	k.call(selThreadExit, 0, 0, 0, 0, nil)
}

// Yield moves the calling thread behind the other ready threads of its
// priority.
func (k *Kernel) Yield() error {
	return resultErr(k.call(selThreadYield, 0, 0, 0, 0, nil))
}

// Terminate ends t. Terminating the calling thread is Exit.
func (t *Thread) Terminate() error {
	if t.k == nil {
		return ErrParameter
	}
	return resultErr(t.k.call(selThreadTerminate, t.handle.word(), 0, 0, 0, nil))
}

// Suspend blocks a ready or running thread until Resume.
func (t *Thread) Suspend() error {
	if t.k == nil {
		return ErrParameter
	}
	return resultErr(t.k.call(selThreadSuspend, t.handle.word(), 0, 0, 0, nil))
}

// Resume readies a suspended thread.
func (t *Thread) Resume() error {
	if t.k == nil {
		return ErrParameter
	}
	return resultErr(t.k.call(selThreadResume, t.handle.word(), 0, 0, 0, nil))
}

// SetPriority changes t's priority and reorders whatever list it sits on.
func (t *Thread) SetPriority(prio uint8) error {
	if t.k == nil {
		return ErrParameter
	}
	return resultErr(t.k.call(selThreadSetPriority, t.handle.word(), arch.Word(prio), 0, 0, nil))
}

func svcThreadExit(k *Kernel, m callMode, _ *[4]arch.Word, _ any) arch.Word {
	if m != modeThread {
		return m.blockErr().word()
	}
	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)
	k.terminate(k.current)
	return 0
}

func svcThreadTerminate(k *Kernel, _ callMode, a *[4]arch.Word, _ any) arch.Word {
	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.objects.lookup(Handle(a[0]), KindThread)
	if st != StatusOK {
		return st.word()
	}
	t := o.(*Thread)
	if t == &k.idle {
		return ErrParameter.word()
	}
	k.terminate(t)
	return 0
}

// terminate removes t from every list and retires its context.
func (k *Kernel) terminate(t *Thread) {
	k.unlink(t)
	t.state = ThreadTerminated
	k.objects.unregister(t)
	k.port.Kill(&t.ctx)
	if t == k.current {
		k.port.PendSwitch()
	}
	k.logf("kernel: thread %q terminated", t.name)
}

// unlink takes t off the ready queue, any wait list and the timeout list.
func (k *Kernel) unlink(t *Thread) {
	if t.list != nil {
		if t.state == ThreadReady {
			k.ready.remove(t)
		} else {
			t.list.remove(t)
		}
	}
	k.timeouts.remove(&t.tn)
	t.wait = WaitNone
	t.waitObj = nil
	t.waitRef = nil
}

func svcThreadYield(k *Kernel, m callMode, _ *[4]arch.Word, _ any) arch.Word {
	if m == modeInit {
		return ErrNotRunning.word()
	}
	s := k.port.EnterCritical()
	k.yieldReq = true
	k.port.PendSwitch()
	k.port.ExitCritical(s)
	return 0
}

func svcThreadSuspend(k *Kernel, _ callMode, a *[4]arch.Word, _ any) arch.Word {
	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.objects.lookup(Handle(a[0]), KindThread)
	if st != StatusOK {
		return st.word()
	}
	t := o.(*Thread)
	if t == &k.idle {
		return ErrParameter.word()
	}
	if t.state != ThreadReady && t.state != ThreadRunning {
		return ErrResource.word()
	}

	// A running thread suspended from an interrupt leaves the core at the
	// outermost return.
	if t.state == ThreadReady {
		k.ready.remove(t)
	}
	t.state = ThreadBlocked
	t.wait = WaitSuspended
	t.ctx.Ret = 0
	if t == k.current {
		k.port.PendSwitch()
	}
	return 0
}

func svcThreadResume(k *Kernel, _ callMode, a *[4]arch.Word, _ any) arch.Word {
	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.objects.lookup(Handle(a[0]), KindThread)
	if st != StatusOK {
		return st.word()
	}
	t := o.(*Thread)
	if t.state != ThreadBlocked || t.wait != WaitSuspended {
		return ErrResource.word()
	}
	k.wake(t, 0)
	return 0
}

func svcThreadSetPriority(k *Kernel, _ callMode, a *[4]arch.Word, _ any) arch.Word {
	prio := a[1]
	if prio < 1 || prio > MaxPriority {
		return ErrParameter.word()
	}

	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.objects.lookup(Handle(a[0]), KindThread)
	if st != StatusOK {
		return st.word()
	}
	t := o.(*Thread)
	if t == &k.idle {
		return ErrParameter.word()
	}

	switch {
	case t.state == ThreadReady:
		k.ready.remove(t)
		t.prio = uint8(prio)
		k.ready.push(t, false)
	case t.state == ThreadBlocked && t.list != nil:
		l := t.list
		l.remove(t)
		t.prio = uint8(prio)
		l.insertByPriority(t)
	default:
		t.prio = uint8(prio)
	}
	if k.running {
		k.port.PendSwitch()
	}
	return 0
}

func (t *Thread) summary() string {
	if t.state == ThreadBlocked {
		return fmt.Sprintf("prio %d blocked on %s", t.prio, t.wait)
	}
	return fmt.Sprintf("prio %d %s", t.prio, t.state)
}
