package kernel

import (
	"fmt"

	"rtk/arch"
)

// FlagsMask covers the usable event flag bits. Bit 31 is reserved so that a
// result word carries either flags or a negative status.
const FlagsMask uint32 = 0x7FFFFFFF

// WaitOption selects how EventFlags.Wait matches and consumes flags.
type WaitOption uint32

const (
	WaitAny WaitOption = 0      // any bit of the mask
	WaitAll WaitOption = 1 << 0 // every bit of the mask
	NoClear WaitOption = 1 << 1 // leave matched bits set
)

// EventFlagsAttr configures an event flag group.
type EventFlagsAttr struct {
	Name string
	Attr uint32
}

// EventFlags is an event flag group control block.
type EventFlags struct {
	objectHeader

	flags   uint32
	waiters threadList
}

type flagsWait struct {
	mask uint32
	opt  WaitOption
}

func (w flagsWait) satisfied(flags uint32) bool {
	if w.opt&WaitAll != 0 {
		return flags&w.mask == w.mask
	}
	return flags&w.mask != 0
}

// NewEventFlags initializes f with every flag clear.
func (k *Kernel) NewEventFlags(f *EventFlags, attr EventFlagsAttr) error {
	if f == nil || f.handle != 0 {
		return ErrParameter
	}
	*f = EventFlags{
		objectHeader: objectHeader{k: k, kind: KindEventFlags, name: attr.Name, attr: attr.Attr},
	}
	return resultErr(k.call(selCreate, 0, 0, 0, 0, f))
}

// Set sets the bits of mask and wakes every waiter it satisfies, highest
// priority first. It returns the flags left after the woken waiters cleared
// theirs.
func (f *EventFlags) Set(mask uint32) (uint32, error) {
	if f.k == nil {
		return 0, ErrParameter
	}
	return result(f.k.call(selFlagsSet, f.handle.word(), mask, 0, 0, nil))
}

// Clear clears the bits of mask and returns the flags as they were before.
func (f *EventFlags) Clear(mask uint32) (uint32, error) {
	if f.k == nil {
		return 0, ErrParameter
	}
	return result(f.k.call(selFlagsClear, f.handle.word(), mask, 0, 0, nil))
}

// Get returns the current flags.
func (f *EventFlags) Get() uint32 {
	if f.k == nil {
		return 0
	}
	var flags uint32
	f.k.inspect(func() { flags = f.flags })
	return flags
}

// Wait blocks until the flags satisfy mask under opt, or timeout elapses.
// It returns the flags as they were when the wait was satisfied, before any
// clearing. A timeout is ErrTimeout, never a zero mask.
func (f *EventFlags) Wait(mask uint32, opt WaitOption, timeout Ticks) (uint32, error) {
	if f.k == nil {
		return 0, ErrParameter
	}
	return result(f.k.call(selFlagsWait, f.handle.word(), mask, arch.Word(opt), arch.Word(timeout), nil))
}

// Delete retires f. Waiters fail with ErrDeleted.
func (f *EventFlags) Delete() error { return deleteObject(&f.objectHeader) }

func (f *EventFlags) deleted(k *Kernel) { k.wakeAll(&f.waiters, ErrDeleted) }

func validMask(mask uint32) bool { return mask != 0 && mask&^FlagsMask == 0 }

// consume applies a satisfied wait: it returns the snapshot handed to the
// waiter and clears the matched bits unless the waiter asked not to.
func (f *EventFlags) consume(w flagsWait) uint32 {
	snap := f.flags
	if w.opt&NoClear == 0 {
		f.flags &^= w.mask
	}
	return snap
}

func svcFlagsSet(k *Kernel, _ callMode, a *[4]arch.Word, _ any) arch.Word {
	mask := a[1]
	if !validMask(mask) {
		return ErrParameter.word()
	}

	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.lookup(a[0], KindEventFlags)
	if st != StatusOK {
		return st.word()
	}
	f := o.(*EventFlags)
	f.flags |= mask

	// Waiters are in priority order, so a higher-priority waiter that
	// clears a bit consumes it before any lower-priority one sees it.
	for t := f.waiters.front(); t != nil; {
		nxt := t.next
		if t.flags.satisfied(f.flags) {
			k.wake(t, f.consume(t.flags))
		}
		t = nxt
	}
	return f.flags
}

func svcFlagsClear(k *Kernel, _ callMode, a *[4]arch.Word, _ any) arch.Word {
	mask := a[1]
	if mask&^FlagsMask != 0 {
		return ErrParameter.word()
	}

	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.lookup(a[0], KindEventFlags)
	if st != StatusOK {
		return st.word()
	}
	f := o.(*EventFlags)
	prev := f.flags
	f.flags &^= mask
	return prev
}

func svcFlagsWait(k *Kernel, m callMode, a *[4]arch.Word, _ any) arch.Word {
	w := flagsWait{mask: a[1], opt: WaitOption(a[2])}
	timeout := Ticks(a[3])
	if !validMask(w.mask) || w.opt&^(WaitAll|NoClear) != 0 || !validTimeout(timeout) {
		return ErrParameter.word()
	}

	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.lookup(a[0], KindEventFlags)
	if st != StatusOK {
		return st.word()
	}
	f := o.(*EventFlags)
	if w.satisfied(f.flags) {
		return f.consume(w)
	}
	if timeout == NoWait {
		return ErrResource.word()
	}
	if st := checkWait(m, timeout); st != StatusOK {
		return st.word()
	}
	k.current.flags = w
	k.block(&f.waiters, WaitEventFlags, f, timeout, ErrTimeout)
	return 0
}

func (f *EventFlags) summary() string {
	return fmt.Sprintf("flags %#08x waiting %d", f.flags, f.waiters.len())
}
