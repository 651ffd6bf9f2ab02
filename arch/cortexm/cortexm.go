// Package cortexm is the ARMv7-M port.
//
// Thread frames follow the exception entry convention: the core stacks
// r0-r3, r12, lr, pc and xPSR on exception entry, and the context switch
// stacks r4-r11 below them. System calls use SVC with the function selector
// in r12 and arguments in r0-r3; the result comes back in r0.
package cortexm

import "rtk/arch"

const (
	swFrameWords = 8 // r4-r11
	hwFrameWords = 8 // r0-r3, r12, lr, pc, xpsr
	frameWords   = swFrameWords + hwFrameWords
	frameBytes   = frameWords * 4
	stackAlign   = 8

	xpsrThumb = 0x01000000
)

// Word slots of the initial frame, lowest address first.
const (
	SlotR4   = 0
	SlotR11  = 7
	SlotR0   = 8
	SlotR1   = 9
	SlotR2   = 10
	SlotR3   = 11
	SlotR12  = 12
	SlotLR   = 13
	SlotPC   = 14
	SlotXPSR = 15
)

// Port is the ARMv7-M port.
type Port struct {
	*arch.CPU
}

// New returns a Cortex-M port on a fresh core.
func New() *Port {
	return &Port{CPU: arch.NewCPU("cortex-m")}
}

// BuildInitialFrame lays out a frame that an exception return would pop:
// pc = entry, lr = exit, r0 = arg, xPSR with only the Thumb bit set.
func (p *Port) BuildInitialFrame(stack []byte, entry, arg, exit arch.Word) (int, error) {
	top := arch.AlignDown(len(stack), stackAlign)
	sp := top - frameBytes
	if sp < 0 {
		return 0, arch.ErrStackTooSmall
	}

	f := arch.FrameWriter{Stack: stack, Base: sp}
	for r := 4; r <= 11; r++ {
		f.Put(SlotR4+r-4, arch.RegPattern(r))
	}
	f.Put(SlotR0, arg)
	f.Put(SlotR1, arch.RegPattern(1))
	f.Put(SlotR2, arch.RegPattern(2))
	f.Put(SlotR3, arch.RegPattern(3))
	f.Put(SlotR12, arch.RegPattern(12))
	f.Put(SlotLR, exit|1)
	f.Put(SlotPC, entry&^1)
	f.Put(SlotXPSR, xpsrThumb)
	return sp, nil
}

// Regs is the register file seen by the SVC handler.
type Regs struct {
	R [16]arch.Word
}

// Marshal loads a call into the SVC registers.
func Marshal(c *arch.Call) Regs {
	var r Regs
	r.R[12] = arch.Word(c.Fn)
	copy(r.R[0:4], c.Args[:])
	return r
}

// Unmarshal reads the selector and arguments back out.
func (r *Regs) Unmarshal() (arch.Selector, [4]arch.Word) {
	return arch.Selector(r.R[12]), [4]arch.Word{r.R[0], r.R[1], r.R[2], r.R[3]}
}

// Trap executes SVC.
func (p *Port) Trap(c *arch.Call) arch.Word {
	regs := Marshal(c)
	regs.R[0] = p.SVC(func() {
		fn, args := regs.Unmarshal()
		p.Enter(fn, args, c.Ref)
	})
	return regs.R[0]
}
