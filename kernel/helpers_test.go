package kernel

import (
	"testing"
	"time"

	"rtk/arch"
	"rtk/arch/cortexm"
)

const settleTimeout = 2 * time.Second

type testSystem struct {
	t    *testing.T
	k    *Kernel
	port *cortexm.Port
}

func newTestSystem(t *testing.T, cfg Config) *testSystem {
	t.Helper()
	p := cortexm.New()
	return &testSystem{t: t, k: New(p, cfg), port: p}
}

func (s *testSystem) spawn(th *Thread, name string, prio uint8, fn func()) {
	s.t.Helper()
	err := s.k.NewThread(th, func(any) { fn() }, nil, ThreadAttr{
		Name:     name,
		Stack:    make([]byte, 512),
		Priority: prio,
	})
	if err != nil {
		s.t.Fatalf("NewThread(%q): %v", name, err)
	}
}

func (s *testSystem) start() {
	s.t.Helper()
	if err := s.k.Start(); err != nil {
		s.t.Fatalf("Start: %v", err)
	}
	s.settle()
}

// settle waits until every thread is blocked and the core idles.
func (s *testSystem) settle() {
	s.t.Helper()
	if !s.port.Settle(settleTimeout) {
		s.t.Fatal("core did not go idle")
	}
}

// tick delivers n ticks, letting the core settle after each.
func (s *testSystem) tick(n int) {
	s.t.Helper()
	for i := 0; i < n; i++ {
		s.port.Raise(s.k.cfg.TickVector)
		s.settle()
	}
}

// irq installs fn as the handler of line v.
func (s *testSystem) irq(v arch.Vector, prio uint8, fn func()) {
	s.t.Helper()
	if err := s.port.SetVector(v, prio, fn); err != nil {
		s.t.Fatalf("SetVector(%d): %v", v, err)
	}
	s.port.EnableVector(v)
}

// raise delivers one interrupt on line v and waits for the core to settle.
func (s *testSystem) raise(v arch.Vector) {
	s.t.Helper()
	s.port.Raise(v)
	s.settle()
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
