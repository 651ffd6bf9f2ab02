package kernel

import (
	"time"

	"rtk/arch"
)

// Now returns the tick counter.
func (k *Kernel) Now() Ticks {
	var t Ticks
	k.inspect(func() { t = k.tick })
	return t
}

// Uptime converts the tick counter to wall time at the configured rate.
func (k *Kernel) Uptime() time.Duration {
	return time.Duration(k.Now()) * time.Second / time.Duration(k.cfg.TickHz)
}

// Tick advances time by one tick. It is the tick vector's handler and runs
// in interrupt context.
func (k *Kernel) Tick() {
	s := k.port.EnterCritical()
	k.tick++

	for {
		n := k.timeouts.expired(k.tick)
		if n == nil {
			break
		}
		if t := n.thread; t != nil {
			k.wake(t, t.ctx.Ret)
			continue
		}

		tm := n.timer
		if tm.mode == TimerPeriodic {
			// Re-arm from the deadline that fired, not from now, so a late
			// tick does not shift the period. A deadline that has already
			// passed fires again on the next pass of this loop.
			k.timeouts.insert(&tm.tn, n.deadline+tm.period)
		}
		fn, arg := tm.fn, tm.arg
		k.port.ExitCritical(s)
		fn(arg)
		s = k.port.EnterCritical()
	}

	if cur := k.current; k.cfg.RoundRobin > 0 && cur != nil && cur.state == ThreadRunning && cur != &k.idle {
		if cur.slice > 0 {
			cur.slice--
		}
		if cur.slice == 0 {
			cur.slice = k.cfg.RoundRobin
			if k.ready.hasPeer(cur.prio) {
				k.yieldReq = true
				k.port.PendSwitch()
			}
		}
	}

	if k.cfg.Tracer != nil {
		k.cfg.Tracer.TraceTick(k.tick)
	}
	k.port.ExitCritical(s)
}

// Delay blocks the calling thread for n ticks. Delay(0) yields. n may not
// exceed MaxTimeout; a thread that should sleep until woken suspends itself
// instead.
func (k *Kernel) Delay(n Ticks) error {
	return resultErr(k.call(selDelay, arch.Word(n), 0, 0, 0, nil))
}

// DelayUntil blocks the calling thread until the tick counter reaches
// deadline. A deadline that is not in the future returns at once.
func (k *Kernel) DelayUntil(deadline Ticks) error {
	return resultErr(k.call(selDelayUntil, arch.Word(deadline), 0, 0, 0, nil))
}

func svcDelay(k *Kernel, m callMode, a *[4]arch.Word, _ any) arch.Word {
	n := Ticks(a[0])
	if n > MaxTimeout {
		return ErrParameter.word()
	}
	if m != modeThread {
		return m.blockErr().word()
	}

	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)
	if n == 0 {
		k.yieldReq = true
		k.port.PendSwitch()
		return 0
	}
	k.block(nil, WaitDelay, nil, n, StatusOK)
	return 0
}

func svcDelayUntil(k *Kernel, m callMode, a *[4]arch.Word, _ any) arch.Word {
	deadline := Ticks(a[0])

	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)
	if !before(k.tick, deadline) {
		return 0
	}
	if m != modeThread {
		return m.blockErr().word()
	}
	k.blockUntil(deadline)
	return 0
}
