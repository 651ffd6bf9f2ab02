// Package kernel is a preemptive priority real-time kernel: threads, a tick
// driven time service, and the semaphore, event flags, memory pool, data
// queue and software timer primitives.
//
// Application code calls the kernel through small wrappers that trap into a
// single dispatcher via the architecture port (see package arch). Interrupt
// handlers call the same wrappers; from interrupt context, or with
// interrupts masked, a call runs directly and may not block.
//
// Every object is a caller-declared control block initialized in place:
//
//	var sem kernel.Semaphore
//	if err := k.NewSemaphore(&sem, 0, 1, kernel.SemaphoreAttr{Name: "rx"}); err != nil {
//		...
//	}
package kernel

import (
	"fmt"

	"rtk/arch"
)

const idleStackBytes = 256

// Kernel is the kernel context. There is one per core; it lives for the
// lifetime of the program.
type Kernel struct {
	port arch.Port
	cfg  Config

	current  *Thread
	running  bool
	tick     Ticks
	yieldReq bool

	ready    readyQueue
	timeouts timeoutList
	objects  objectTable

	idle      Thread
	idleStack [idleStackBytes]byte

	fatal fatalState
}

// New returns a kernel bound to port. Objects may be created right away;
// threads start running once Start is called.
func New(port arch.Port, cfg Config) *Kernel {
	k := &Kernel{
		port: port,
		cfg:  cfg.withDefaults(),
	}
	port.Install(hooks{k})
	return k
}

// Port returns the architecture port the kernel runs on.
func (k *Kernel) Port() arch.Port { return k.port }

// Config returns the effective configuration.
func (k *Kernel) Config() Config { return k.cfg }

// Running reports whether Start has been called.
func (k *Kernel) Running() bool { return k.running }

// Start creates the idle thread, installs the tick handler and hands the
// core to the highest-priority ready thread. The calling goroutine leaves
// the core: afterwards it may only raise interrupts and wait for the core to
// settle.
func (k *Kernel) Start() error {
	if k.running {
		return ErrResource
	}

	err := k.newThread(&k.idle, func(any) {
		for {
			k.port.WaitForInterrupt()
		}
	}, nil, ThreadAttr{Name: "idle", Attr: AttrPrivileged, Stack: k.idleStack[:]}, 0)
	if err != nil {
		return fmt.Errorf("kernel: create idle thread: %w", err)
	}

	if err := k.port.SetVector(k.cfg.TickVector, k.cfg.TickPriority, k.Tick); err != nil {
		return fmt.Errorf("kernel: install tick vector %d: %w", k.cfg.TickVector, err)
	}
	k.port.EnableVector(k.cfg.TickVector)

	s := k.port.EnterCritical()
	first := k.ready.pop()
	first.state = ThreadRunning
	first.slice = k.cfg.RoundRobin
	k.current = first
	k.running = true
	k.port.ExitCritical(s)

	k.logf("kernel: start on %s, %d objects, first thread %q", k.port.Name(), k.objects.live, first.name)
	if k.cfg.Tracer != nil {
		k.cfg.Tracer.TraceSwitch(k.tick, first)
	}
	k.port.Launch(&first.ctx)
	return nil
}

// Self returns the running thread.
func (k *Kernel) Self() *Thread { return k.current }

// Stats are cumulative kernel and core counters.
type Stats struct {
	arch.Stats
	Ticks   Ticks
	Objects int
}

func (k *Kernel) Stats() Stats {
	var st Stats
	k.inspect(func() {
		st = Stats{Stats: k.port.Stats(), Ticks: k.tick, Objects: k.objects.live}
	})
	return st
}

func (k *Kernel) logf(format string, args ...any) {
	if k.cfg.Logger == nil {
		return
	}
	k.cfg.Logger.WriteLineString(fmt.Sprintf(format, args...))
}

// hooks is what the port calls back into. It keeps Dispatch, Next and Fault
// off the Kernel's exported method set.
type hooks struct{ k *Kernel }

func (h hooks) Dispatch(fn arch.Selector, args [4]arch.Word, ref any) {
	k := h.k
	self := k.current
	w := k.dispatch(modeThread, fn, &args, ref)
	// A blocked caller keeps the result its waker (or the timeout) leaves.
	if self.state == ThreadRunning {
		self.ctx.Ret = w
	}
}

func (h hooks) Next() *arch.Context { return h.k.next() }

func (h hooks) Fault(err error) { h.k.raiseFatal(err) }

// callMode is how a kernel function was entered.
type callMode uint8

const (
	modeThread callMode = iota // through the trap, may block
	modeISR                    // interrupt context or masked, may not block
	modeInit                   // before Start, may not block
)

func (m callMode) blockErr() Status {
	if m == modeInit {
		return ErrNotRunning
	}
	return ErrISR
}

// call enters kernel function fn the way the calling context allows.
func (k *Kernel) call(fn arch.Selector, a0, a1, a2, a3 arch.Word, ref any) arch.Word {
	args := [4]arch.Word{a0, a1, a2, a3}
	switch {
	case !k.running:
		return k.dispatch(modeInit, fn, &args, ref)
	case k.port.IsInterruptContext() || k.port.IsMasked():
		return k.dispatch(modeISR, fn, &args, ref)
	}
	return k.port.Trap(&arch.Call{Fn: fn, Args: args, Ref: ref})
}

func (k *Kernel) dispatch(m callMode, fn arch.Selector, args *[4]arch.Word, ref any) arch.Word {
	if int(fn) >= len(svcTable) || svcTable[fn] == nil {
		k.die(fmt.Errorf("%w: %d", ErrBadSelector, fn))
		return ErrParameter.word()
	}
	return svcTable[fn](k, m, args, ref)
}
