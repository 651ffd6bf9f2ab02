// Package riscv is the RV32 machine-mode port.
//
// A thread frame holds mepc, ra, x5-x31 and mstatus; gp, tp and sp are not
// saved per thread. System calls use ecall with the selector in a7 and
// arguments in a0-a3; the result comes back in a0.
package riscv

import "rtk/arch"

const (
	frameWords = 32
	frameBytes = frameWords * 4
	stackAlign = 16

	// MPP = machine, MPIE = 1: mret enters the thread with interrupts on.
	mstatusInit = 0x1880
)

// Word slots of the initial frame, lowest address first.
const (
	SlotMEPC    = 0
	SlotRA      = 1
	SlotX5      = 2 // x5-x31 occupy slots 2-28
	SlotMStatus = 29
)

// SlotX returns the frame slot of register xN, 5 <= n <= 31.
func SlotX(n int) int { return SlotX5 + n - 5 }

// ABI register numbers.
const (
	RegA0 = 10
	RegA1 = 11
	RegA2 = 12
	RegA3 = 13
	RegA7 = 17
)

// Port is the RV32 port.
type Port struct {
	*arch.CPU
}

// New returns a RISC-V port on a fresh core.
func New() *Port {
	return &Port{CPU: arch.NewCPU("riscv32")}
}

// BuildInitialFrame lays out a frame that the trap exit path restores before
// mret: mepc = entry, ra = exit, a0 = arg.
func (p *Port) BuildInitialFrame(stack []byte, entry, arg, exit arch.Word) (int, error) {
	top := arch.AlignDown(len(stack), stackAlign)
	sp := top - frameBytes
	if sp < 0 {
		return 0, arch.ErrStackTooSmall
	}

	f := arch.FrameWriter{Stack: stack, Base: sp}
	f.Put(SlotMEPC, entry)
	f.Put(SlotRA, exit)
	for n := 5; n <= 31; n++ {
		f.Put(SlotX(n), arch.RegPattern(n))
	}
	f.Put(SlotX(RegA0), arg)
	f.Put(SlotMStatus, mstatusInit)
	f.Put(30, 0)
	f.Put(31, 0)
	return sp, nil
}

// Regs is the integer register file seen by the trap handler.
type Regs struct {
	X [32]arch.Word
}

// Marshal loads a call into the ecall registers.
func Marshal(c *arch.Call) Regs {
	var r Regs
	r.X[RegA7] = arch.Word(c.Fn)
	copy(r.X[RegA0:RegA3+1], c.Args[:])
	return r
}

// Unmarshal reads the selector and arguments back out.
func (r *Regs) Unmarshal() (arch.Selector, [4]arch.Word) {
	return arch.Selector(r.X[RegA7]), [4]arch.Word{r.X[RegA0], r.X[RegA1], r.X[RegA2], r.X[RegA3]}
}

// Trap executes ecall.
func (p *Port) Trap(c *arch.Call) arch.Word {
	regs := Marshal(c)
	regs.X[RegA0] = p.SVC(func() {
		fn, args := regs.Unmarshal()
		p.Enter(fn, args, c.Ref)
	})
	return regs.X[RegA0]
}
