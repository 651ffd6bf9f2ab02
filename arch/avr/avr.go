// Package avr is the 8-bit AVR port.
//
// The stack grows down one byte per push and SP points at the next free
// byte. A thread frame is the exit address and entry address (as if pushed
// by CALL, low byte first) followed by r0, SREG, r1 and r2-r31. System calls
// put the selector in Z (r30:r31) and 32-bit arguments in r22-r25, r18-r21,
// r14-r17 and r10-r13, the avr-gcc argument registers; the result comes back
// in r22-r25.
package avr

import "rtk/arch"

const (
	// exit + entry return addresses, r0, SREG, r1-r31
	frameBytes = 2 + 2 + 1 + 1 + 31

	sregI = 0x80
)

// argBase holds the low register of each 32-bit argument quad.
var argBase = [4]int{22, 18, 14, 10}

// Port is the AVR port.
type Port struct {
	*arch.CPU
}

// New returns an AVR port on a fresh core.
func New() *Port {
	return &Port{CPU: arch.NewCPU("avr")}
}

// Frame offsets relative to SP+1, i.e. the last byte pushed.
const (
	OffR31   = 0
	OffR25   = 6
	OffR24   = 7
	OffR1    = 30
	OffSREG  = 31
	OffR0    = 32
	OffEntry = 33 // high byte, then low byte
	OffExit  = 35 // high byte, then low byte
)

// BuildInitialFrame pushes the frame the context restore pops: r24:r25 =
// arg, SREG with the I bit set, r1 = 0 as the ABI requires, and the entry
// address on top of the exit address so that returning from the entry
// function lands in the exit handler.
func (p *Port) BuildInitialFrame(stack []byte, entry, arg, exit arch.Word) (int, error) {
	if len(stack) < frameBytes+1 {
		return 0, arch.ErrStackTooSmall
	}

	sp := len(stack) - 1
	push := func(b byte) {
		stack[sp] = b
		sp--
	}

	push(byte(exit))
	push(byte(exit >> 8))
	push(byte(entry))
	push(byte(entry >> 8))
	push(0x00) // r0
	push(sregI)
	push(0x00) // r1
	for r := 2; r <= 31; r++ {
		switch r {
		case 24:
			push(byte(arg))
		case 25:
			push(byte(arg >> 8))
		default:
			push(byte(arch.RegPattern(r)))
		}
	}
	return sp, nil
}

// Regs is the register file seen by the trap handler.
type Regs struct {
	R [32]byte
}

func (r *Regs) put32(lo int, w arch.Word) {
	r.R[lo] = byte(w)
	r.R[lo+1] = byte(w >> 8)
	r.R[lo+2] = byte(w >> 16)
	r.R[lo+3] = byte(w >> 24)
}

func (r *Regs) get32(lo int) arch.Word {
	return arch.Word(r.R[lo]) | arch.Word(r.R[lo+1])<<8 | arch.Word(r.R[lo+2])<<16 | arch.Word(r.R[lo+3])<<24
}

// Marshal loads a call into the trap registers.
func Marshal(c *arch.Call) Regs {
	var r Regs
	r.R[30] = byte(c.Fn)
	r.R[31] = 0
	for i, lo := range argBase {
		r.put32(lo, c.Args[i])
	}
	return r
}

// Unmarshal reads the selector and arguments back out.
func (r *Regs) Unmarshal() (arch.Selector, [4]arch.Word) {
	var args [4]arch.Word
	for i, lo := range argBase {
		args[i] = r.get32(lo)
	}
	if r.R[31] != 0 {
		// Selectors are 8-bit; a set high byte cannot name a kernel function.
		return arch.Selector(0xFF), args
	}
	return arch.Selector(r.R[30]), args
}

// Trap enters the kernel through the software trap.
func (p *Port) Trap(c *arch.Call) arch.Word {
	regs := Marshal(c)
	ret := p.SVC(func() {
		fn, args := regs.Unmarshal()
		p.Enter(fn, args, c.Ref)
	})
	regs.put32(argBase[0], ret)
	return regs.get32(argBase[0])
}
