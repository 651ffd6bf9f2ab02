// Package arch defines the contract between the kernel and a CPU
// architecture, plus the simulated single core every port executes on.
//
// A port supplies the register-frame layout and the trap calling convention
// of one target; the core (CPU) supplies critical sections, the interrupt
// controller, nesting, the deferred reschedule and the stack swap.
package arch

import (
	"errors"
	"time"
)

// Word is the register width trap arguments are marshaled in.
type Word = uint32

// Selector picks the kernel function a trap enters.
type Selector uint8

// Vector is an interrupt line number.
type Vector uint8

// MaxVectors is the number of interrupt lines of the core.
const MaxVectors = 64

// State is a saved interrupt-enable state returned by EnterCritical.
type State bool

var (
	ErrStackTooSmall = errors.New("arch: stack too small for initial frame")
	ErrBadVector     = errors.New("arch: vector out of range")
	ErrTrapContext   = errors.New("arch: trap from handler or interrupt context")
	ErrBadSelector   = errors.New("arch: malformed trap selector")
)

// Call is the argument block a system-call wrapper hands to the trampoline.
type Call struct {
	Fn   Selector
	Args [4]Word

	// Ref carries a payload pointer (queue element, pool block) next to the
	// word registers. Ports pass it through untouched.
	Ref any
}

// Kernel is the set of hooks a port calls back into.
type Kernel interface {
	// Dispatch is the single trap entry point. It runs in handler mode.
	Dispatch(fn Selector, args [4]Word, ref any)

	// Next returns the context to run when a pending reschedule is applied.
	// Returning the current context cancels the switch.
	Next() *Context

	// Fault reports an unrecoverable condition. It does not return.
	Fault(err error)
}

// Stats are cumulative core counters.
type Stats struct {
	Switches   uint64
	Interrupts uint64
	Traps      uint64
}

// Port is implemented once per target architecture. The set of
// implementations is closed: only types embedding *CPU satisfy it.
type Port interface {
	// Name is the target name, e.g. "cortex-m".
	Name() string

	// BuildInitialFrame writes the target's register-save frame at the top of
	// stack so that the first resume of a thread looks like resuming a
	// preempted one. It returns the saved stack pointer as an offset into
	// stack and never writes outside it.
	BuildInitialFrame(stack []byte, entry, arg, exit Word) (int, error)

	// Trap marshals c into the target's registers and enters the kernel
	// dispatcher at elevated privilege. It returns the caller's result
	// register, which a waker may have written while the caller was blocked.
	Trap(c *Call) Word

	EnterCritical() State
	ExitCritical(s State)
	IsInterruptContext() bool
	IsPrivileged() bool
	IsMasked() bool
	Nesting() int

	Install(k Kernel)
	Spawn(ctx *Context, fn func())
	Launch(ctx *Context)
	Kill(ctx *Context)
	Current() *Context
	PendSwitch()
	SwitchPending() bool
	WaitForInterrupt()
	Halt()

	SetVector(v Vector, prio uint8, fn func()) error
	EnableVector(v Vector)
	DisableVector(v Vector)
	Raise(v Vector)
	Settle(timeout time.Duration) bool

	Stats() Stats

	sealed()
}
