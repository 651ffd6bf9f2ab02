package arch

import (
	"errors"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"
)

var errThreadReturned = errors.New("arch: thread returned past its exit handler")

type vector struct {
	fn      func()
	prio    uint8
	enabled bool
}

// CPU is the simulated single core shared by every port.
//
// Exactly one goroutine executes on the core at a time: the holder of the
// baton. Threads are goroutines parked on their Context's resume channel;
// interrupt handlers run on whichever goroutine holds the baton when the
// interrupt is delivered, the way a real core runs them on the interrupted
// stack. Everything below the mu field is shared with foreign goroutines
// (tick sources, drivers, tests) and is guarded by mu; the rest belongs to
// the baton holder.
//
// Interrupts are delivered only at windows: leaving a critical section,
// returning from a trap, and idling. Code that busy-waits without calling
// the kernel is never preempted, not even by the tick, so a polling loop
// must make a kernel call (Yield, Delay, an accessor) on every pass.
//
// Unprivileged thread code cannot mask interrupts. EnterCritical and
// ExitCritical leave the mask alone there, as CPSID is ignored in
// unprivileged thread mode.
type CPU struct {
	name string
	k    Kernel

	mask    bool
	nesting int
	active  int // priority of the running handler, -1 in thread mode
	handler bool
	pending bool
	halted  bool
	cur     *Context
	boot    Context

	vec [MaxVectors]vector

	mu     sync.Mutex
	cond   *sync.Cond
	raised uint64
	asleep bool
	kick   chan struct{}

	switches   atomic.Uint64
	interrupts atomic.Uint64
	traps      atomic.Uint64
}

// NewCPU returns a core executing on the calling goroutine in a privileged
// boot context.
func NewCPU(name string) *CPU {
	c := &CPU{
		name:   name,
		active: -1,
		kick:   make(chan struct{}, 1),
	}
	c.cond = sync.NewCond(&c.mu)
	c.boot.Privileged = true
	c.cur = &c.boot
	return c
}

func (c *CPU) sealed() {}

// Name returns the target name.
func (c *CPU) Name() string { return c.name }

// Install sets the kernel hooks.
func (c *CPU) Install(k Kernel) { c.k = k }

// EnterCritical masks interrupts and returns the previous mask state.
func (c *CPU) EnterCritical() State {
	s := State(c.mask)
	if c.IsPrivileged() {
		c.mask = true
	}
	return s
}

// ExitCritical restores the mask state saved by EnterCritical. Restoring to
// enabled opens an interrupt window.
func (c *CPU) ExitCritical(s State) {
	if bool(s) && !c.IsPrivileged() {
		return
	}
	c.mask = bool(s)
	if !c.mask {
		c.poll()
	}
}

func (c *CPU) IsInterruptContext() bool { return c.nesting > 0 }
func (c *CPU) IsMasked() bool           { return c.mask }
func (c *CPU) Nesting() int             { return c.nesting }
func (c *CPU) Current() *Context        { return c.cur }

func (c *CPU) IsPrivileged() bool {
	return c.handler || c.nesting > 0 || c.cur.Privileged
}

// PendSwitch sets the deferred-reschedule flag. It is applied at the next
// point where no handler is active.
func (c *CPU) PendSwitch()         { c.pending = true }
func (c *CPU) SwitchPending() bool { return c.pending }

// Spawn starts the goroutine backing ctx. It stays parked until the context
// is first switched to.
func (c *CPU) Spawn(ctx *Context, fn func()) {
	resume := make(chan bool, 1)
	ctx.resume = resume
	ctx.dead = false
	go func() {
		if !<-resume {
			return
		}
		fn()
		c.fault(errThreadReturned)
	}()
}

// Launch hands the core to ctx. The caller leaves the core and keeps running
// as a foreign goroutine.
func (c *CPU) Launch(ctx *Context) {
	c.cur = ctx
	c.switches.Add(1)
	ctx.resume <- true
}

// Kill marks ctx dead. The current context is parked for good at its next
// switch; a context that is not running never resumes again.
func (c *CPU) Kill(ctx *Context) {
	ctx.dead = true
	if ctx == c.cur || ctx.resume == nil {
		return
	}
	select {
	case ctx.resume <- false:
	default:
	}
}

// Halt stops the core. It does not return.
func (c *CPU) Halt() {
	c.halted = true
	c.mu.Lock()
	c.asleep = false
	c.cond.Broadcast()
	c.mu.Unlock()
	select {}
}

func (c *CPU) fault(err error) {
	c.mask = true
	if c.k != nil {
		c.k.Fault(err)
	}
	c.Halt()
}

// Enter calls the installed kernel dispatcher. Ports call it from inside SVC
// after unmarshaling their registers.
func (c *CPU) Enter(fn Selector, args [4]Word, ref any) {
	if c.k == nil {
		c.fault(ErrBadSelector)
		return
	}
	c.k.Dispatch(fn, args, ref)
}

// SVC runs body in handler mode, then applies pending interrupts and any
// pending reschedule, and returns the caller's result register.
func (c *CPU) SVC(body func()) Word {
	if c.handler || c.nesting > 0 {
		c.fault(ErrTrapContext)
	}
	self := c.cur
	c.traps.Add(1)
	c.handler = true
	body()
	c.handler = false
	if !c.mask {
		c.poll()
	}
	return self.Ret
}

// poll services every deliverable interrupt, then applies a pending
// reschedule if no handler is active.
func (c *CPU) poll() {
	for !c.mask && !c.halted {
		v, ok := c.take()
		if !ok {
			break
		}
		c.service(v)
	}
	c.reschedule()
}

func (c *CPU) service(v Vector) {
	e := &c.vec[v]
	prevActive, prevMask := c.active, c.mask

	// Prologue: account for nesting and re-enable interrupts so a strictly
	// higher-priority line can preempt this handler.
	c.nesting++
	c.active = int(e.prio)
	c.interrupts.Add(1)
	c.mask = false

	e.fn()

	c.active = prevActive
	c.nesting--
	c.mask = prevMask
}

func (c *CPU) reschedule() {
	for c.pending && c.nesting == 0 && !c.handler && !c.halted && c.k != nil {
		c.pending = false

		from := c.cur
		saved := c.mask
		c.mask = true
		to := c.k.Next()
		c.mask = saved
		if to == nil || to == from {
			continue
		}

		c.cur = to
		c.switches.Add(1)
		dead, resume := from.dead, from.resume
		to.resume <- true
		if dead || !<-resume {
			select {}
		}
	}
}

// WaitForInterrupt parks the core until an interrupt is raised, then
// services it. It is the idle path.
func (c *CPU) WaitForInterrupt() {
	c.mu.Lock()
	if _, ok := c.pickLocked(); ok {
		c.mu.Unlock()
		c.poll()
		return
	}
	c.asleep = true
	c.cond.Broadcast()
	c.mu.Unlock()

	<-c.kick
	c.poll()
}

func (c *CPU) take() (Vector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.pickLocked()
	if ok {
		c.raised &^= 1 << v
	}
	return v, ok
}

// pickLocked returns the highest-priority raised line that may preempt the
// running code. Ties go to the lower line number.
func (c *CPU) pickLocked() (Vector, bool) {
	var best Vector
	found := false
	for set := c.raised; set != 0; set &= set - 1 {
		v := Vector(bits.TrailingZeros64(set))
		e := &c.vec[v]
		if !e.enabled || e.fn == nil || int(e.prio) <= c.active {
			continue
		}
		if !found || e.prio > c.vec[best].prio {
			best, found = v, true
		}
	}
	return best, found
}

// SetVector installs a handler. The line starts disabled.
func (c *CPU) SetVector(v Vector, prio uint8, fn func()) error {
	if v >= MaxVectors {
		return ErrBadVector
	}
	c.vec[v] = vector{fn: fn, prio: prio}
	return nil
}

func (c *CPU) EnableVector(v Vector) {
	if v < MaxVectors {
		c.vec[v].enabled = true
	}
}

func (c *CPU) DisableVector(v Vector) {
	if v < MaxVectors {
		c.vec[v].enabled = false
	}
}

// Raise marks v pending. It may be called from any goroutine.
func (c *CPU) Raise(v Vector) {
	if v >= MaxVectors {
		return
	}
	c.mu.Lock()
	c.raised |= 1 << v
	c.asleep = false
	c.mu.Unlock()

	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Settle blocks until the core is idle with nothing deliverable pending, or
// the timeout elapses. It reports whether the core settled.
func (c *CPU) Settle(timeout time.Duration) bool {
	expired := false
	t := time.AfterFunc(timeout, func() {
		c.mu.Lock()
		expired = true
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer t.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for !c.asleep && !expired {
		c.cond.Wait()
	}
	return c.asleep
}

func (c *CPU) Stats() Stats {
	return Stats{
		Switches:   c.switches.Load(),
		Interrupts: c.interrupts.Load(),
		Traps:      c.traps.Load(),
	}
}
