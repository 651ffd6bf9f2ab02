package kernel

import (
	"fmt"

	"rtk/arch"
)

// TimerFunc is a software timer callback. It runs in the tick interrupt,
// so it must be short and must not block.
type TimerFunc func(arg any)

// TimerKind selects one-shot or periodic firing.
type TimerKind uint8

const (
	TimerOneShot TimerKind = iota
	TimerPeriodic
)

func (k TimerKind) String() string {
	if k == TimerPeriodic {
		return "periodic"
	}
	return "oneshot"
}

// TimerAttr configures a software timer.
type TimerAttr struct {
	Name string
	Attr uint32
}

// Timer is a software timer control block.
type Timer struct {
	objectHeader

	fn     TimerFunc
	arg    any
	mode   TimerKind
	period Ticks
	tn     tnode
}

// NewTimer initializes tm, stopped.
func (k *Kernel) NewTimer(tm *Timer, fn TimerFunc, kind TimerKind, arg any, attr TimerAttr) error {
	if tm == nil || fn == nil || kind > TimerPeriodic {
		return ErrParameter
	}
	if tm.handle != 0 {
		return ErrParameter
	}
	*tm = Timer{
		objectHeader: objectHeader{k: k, kind: KindTimer, name: attr.Name, attr: attr.Attr},
		fn:           fn,
		arg:          arg,
		mode:         kind,
	}
	tm.tn.timer = tm
	return resultErr(k.call(selCreate, 0, 0, 0, 0, tm))
}

// Start arms tm to fire ticks from now, and every ticks after that if it is
// periodic. ticks must be in 1..MaxTimeout. Starting a running timer
// restarts it.
func (tm *Timer) Start(ticks Ticks) error {
	if tm.k == nil {
		return ErrParameter
	}
	return resultErr(tm.k.call(selTimerStart, tm.handle.word(), arch.Word(ticks), 0, 0, nil))
}

// Stop disarms tm. Stopping a timer that is not running fails with
// ErrResource.
func (tm *Timer) Stop() error {
	if tm.k == nil {
		return ErrParameter
	}
	return resultErr(tm.k.call(selTimerStop, tm.handle.word(), 0, 0, 0, nil))
}

// Running reports whether tm is armed.
func (tm *Timer) Running() bool {
	if tm.k == nil {
		return false
	}
	var armed bool
	tm.k.inspect(func() { armed = tm.tn.armed })
	return armed
}

// Deadline returns the tick the armed timer fires at next.
func (tm *Timer) Deadline() Ticks {
	if tm.k == nil {
		return 0
	}
	var d Ticks
	tm.k.inspect(func() { d = tm.tn.deadline })
	return d
}

// Delete stops and retires tm.
func (tm *Timer) Delete() error { return deleteObject(&tm.objectHeader) }

func (tm *Timer) deleted(k *Kernel) { k.timeouts.remove(&tm.tn) }

func svcTimerStart(k *Kernel, _ callMode, a *[4]arch.Word, _ any) arch.Word {
	ticks := Ticks(a[1])
	if ticks == 0 || ticks > MaxTimeout {
		return ErrParameter.word()
	}

	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.lookup(a[0], KindTimer)
	if st != StatusOK {
		return st.word()
	}
	tm := o.(*Timer)
	k.timeouts.remove(&tm.tn)
	tm.period = ticks
	k.timeouts.insert(&tm.tn, k.tick+ticks)
	return 0
}

func svcTimerStop(k *Kernel, _ callMode, a *[4]arch.Word, _ any) arch.Word {
	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.lookup(a[0], KindTimer)
	if st != StatusOK {
		return st.word()
	}
	tm := o.(*Timer)
	if !tm.tn.armed {
		return ErrResource.word()
	}
	k.timeouts.remove(&tm.tn)
	return 0
}

func (tm *Timer) summary() string {
	if !tm.tn.armed {
		return tm.mode.String() + " stopped"
	}
	return fmt.Sprintf("%s period %d next %d", tm.mode, tm.period, tm.tn.deadline)
}
