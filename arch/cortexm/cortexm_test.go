package cortexm

import (
	"testing"

	"rtk/arch"
)

type recorder struct {
	p    *Port
	fn   arch.Selector
	args [4]arch.Word
	ref  any
}

func (r *recorder) Dispatch(fn arch.Selector, args [4]arch.Word, ref any) {
	r.fn, r.args, r.ref = fn, args, ref
	r.p.Current().Ret = 0xC0FFEE
}

func (r *recorder) Next() *arch.Context { return r.p.Current() }
func (r *recorder) Fault(error)         {}

func TestInitialFrameLayout(t *testing.T) {
	p := New()
	stack := make([]byte, 256+5) // unaligned length
	for i := range stack {
		stack[i] = 0xCC
	}

	sp, err := p.BuildInitialFrame(stack, 0x08000201, 0x1234, 0x08000401)
	if err != nil {
		t.Fatalf("BuildInitialFrame: %v", err)
	}
	if sp%8 != 0 {
		t.Fatalf("sp = %d, want 8-byte aligned", sp)
	}
	if want := 256 - frameBytes; sp != want {
		t.Fatalf("sp = %d, want %d", sp, want)
	}

	word := func(slot int) arch.Word { return arch.ReadWord(stack, sp, slot) }
	if got := word(SlotPC); got != 0x08000200 {
		t.Fatalf("pc = %#x, want 0x08000200 (Thumb bit cleared)", got)
	}
	if got := word(SlotLR); got != 0x08000401 {
		t.Fatalf("lr = %#x, want 0x08000401", got)
	}
	if got := word(SlotR0); got != 0x1234 {
		t.Fatalf("r0 = %#x, want 0x1234", got)
	}
	if got := word(SlotXPSR); got != xpsrThumb {
		t.Fatalf("xpsr = %#x, want %#x", got, xpsrThumb)
	}
	if got := word(SlotR4); got != 0x04040404 {
		t.Fatalf("r4 = %#x, want fill pattern", got)
	}
	if got := word(SlotR12); got != 0x12121212 {
		t.Fatalf("r12 = %#x, want fill pattern", got)
	}

	for i := 0; i < sp; i++ {
		if stack[i] != 0xCC {
			t.Fatalf("byte %d below the frame was written", i)
		}
	}
	for i := 256; i < len(stack); i++ {
		if stack[i] != 0xCC {
			t.Fatalf("alignment padding byte %d was written", i)
		}
	}
}

func TestInitialFrameTooSmall(t *testing.T) {
	p := New()
	if _, err := p.BuildInitialFrame(make([]byte, frameBytes-1), 0, 0, 0); err != arch.ErrStackTooSmall {
		t.Fatalf("BuildInitialFrame = %v, want ErrStackTooSmall", err)
	}
}

func TestTrapConvention(t *testing.T) {
	p := New()
	r := &recorder{p: p}
	p.Install(r)

	payload := new(int)
	regs := Marshal(&arch.Call{Fn: 9, Args: [4]arch.Word{1, 2, 3, 4}})
	if regs.R[12] != 9 || regs.R[0] != 1 || regs.R[3] != 4 {
		t.Fatalf("Marshal regs = %v, want r12=9 r0..r3=1..4", regs.R)
	}

	got := p.Trap(&arch.Call{Fn: 9, Args: [4]arch.Word{1, 2, 3, 4}, Ref: payload})
	if got != 0xC0FFEE {
		t.Fatalf("Trap() = %#x, want 0xc0ffee", got)
	}
	if r.fn != 9 || r.args != [4]arch.Word{1, 2, 3, 4} {
		t.Fatalf("dispatched fn=%d args=%v", r.fn, r.args)
	}
	if r.ref != payload {
		t.Fatal("Ref was not passed through")
	}
}
