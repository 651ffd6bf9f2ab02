package riscv

import (
	"testing"

	"rtk/arch"
)

type recorder struct {
	p    *Port
	fn   arch.Selector
	args [4]arch.Word
}

func (r *recorder) Dispatch(fn arch.Selector, args [4]arch.Word, _ any) {
	r.fn, r.args = fn, args
	r.p.Current().Ret = args[0] * 2
}

func (r *recorder) Next() *arch.Context { return r.p.Current() }
func (r *recorder) Fault(error)         {}

func TestInitialFrameLayout(t *testing.T) {
	p := New()
	stack := make([]byte, 300)

	sp, err := p.BuildInitialFrame(stack, 0x20000100, 0xAA55, 0x20000200)
	if err != nil {
		t.Fatalf("BuildInitialFrame: %v", err)
	}
	if sp%16 != 0 {
		t.Fatalf("sp = %d, want 16-byte aligned", sp)
	}
	if sp+frameBytes > len(stack) {
		t.Fatalf("frame [%d,%d) overruns stack of %d", sp, sp+frameBytes, len(stack))
	}

	word := func(slot int) arch.Word { return arch.ReadWord(stack, sp, slot) }
	if got := word(SlotMEPC); got != 0x20000100 {
		t.Fatalf("mepc = %#x, want entry", got)
	}
	if got := word(SlotRA); got != 0x20000200 {
		t.Fatalf("ra = %#x, want exit", got)
	}
	if got := word(SlotX(RegA0)); got != 0xAA55 {
		t.Fatalf("a0 = %#x, want arg", got)
	}
	if got := word(SlotMStatus); got != mstatusInit {
		t.Fatalf("mstatus = %#x, want %#x", got, mstatusInit)
	}
	if got := word(SlotX(31)); got != 0x31313131 {
		t.Fatalf("x31 = %#x, want fill pattern", got)
	}
}

func TestInitialFrameTooSmall(t *testing.T) {
	p := New()
	if _, err := p.BuildInitialFrame(make([]byte, 100), 0, 0, 0); err != arch.ErrStackTooSmall {
		t.Fatalf("BuildInitialFrame = %v, want ErrStackTooSmall", err)
	}
}

func TestTrapConvention(t *testing.T) {
	p := New()
	r := &recorder{p: p}
	p.Install(r)

	regs := Marshal(&arch.Call{Fn: 3, Args: [4]arch.Word{5, 6, 7, 8}})
	if regs.X[RegA7] != 3 || regs.X[RegA0] != 5 || regs.X[RegA3] != 8 {
		t.Fatalf("Marshal a7=%d a0=%d a3=%d", regs.X[RegA7], regs.X[RegA0], regs.X[RegA3])
	}

	if got := p.Trap(&arch.Call{Fn: 3, Args: [4]arch.Word{21}}); got != 42 {
		t.Fatalf("Trap() = %d, want 42", got)
	}
	if r.fn != 3 || r.args[0] != 21 {
		t.Fatalf("dispatched fn=%d args=%v", r.fn, r.args)
	}
}
