package monitor

import (
	"strings"
	"sync"
	"testing"
	"time"

	"rtk/arch"
	"rtk/arch/cortexm"
	"rtk/kernel"
)

type lineBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *lineBuffer) WriteLineString(s string) {
	b.mu.Lock()
	b.lines = append(b.lines, s)
	b.mu.Unlock()
}

func (b *lineBuffer) text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

func (b *lineBuffer) reset() {
	b.mu.Lock()
	b.lines = nil
	b.mu.Unlock()
}

func newTestConsole(t *testing.T) (*Console, *kernel.Kernel, *lineBuffer) {
	t.Helper()
	k := kernel.New(cortexm.New(), kernel.Config{})
	out := &lineBuffer{}
	c, err := NewConsole(ConsoleConfig{Kernel: k, Output: out, Recorder: NewRecorder(16)})
	if err != nil {
		t.Fatalf("NewConsole: %v", err)
	}
	return c, k, out
}

func TestConsoleRegistry(t *testing.T) {
	c, _, _ := newTestConsole(t)

	for _, name := range []string{"help", "?", "ps", "threads", "objs", "sem", "trace", "irq", "prio"} {
		if _, ok := c.reg.resolve(name); !ok {
			t.Fatalf("resolve(%q) failed", name)
		}
	}
	if got := c.reg.matches("su"); len(got) != 1 || got[0] != "suspend" {
		t.Fatalf("matches(su) = %v, want [suspend]", got)
	}
	err := c.reg.register(command{Name: "ps", Run: cmdPs})
	if err == nil {
		t.Fatal("duplicate command registered")
	}
}

func TestConsoleExec(t *testing.T) {
	c, k, out := newTestConsole(t)

	var sem kernel.Semaphore
	if err := k.NewSemaphore(&sem, 1, 1, kernel.SemaphoreAttr{Name: "bus"}); err != nil {
		t.Fatalf("NewSemaphore: %v", err)
	}
	var th kernel.Thread
	err := k.NewThread(&th, func(any) {}, nil, kernel.ThreadAttr{Name: "rx worker", Stack: make([]byte, 256), Priority: 4})
	if err != nil {
		t.Fatalf("NewThread: %v", err)
	}

	if err := c.Exec("ps"); err != nil {
		t.Fatalf("ps: %v", err)
	}
	if !strings.Contains(out.text(), "rx worker") {
		t.Fatalf("ps output %q does not list the thread", out.text())
	}

	out.reset()
	if err := c.Exec("objs semaphore"); err != nil {
		t.Fatalf("objs: %v", err)
	}
	if got := out.text(); !strings.Contains(got, `"bus"`) || !strings.Contains(got, "count 1/1") || strings.Contains(got, "rx worker") {
		t.Fatalf("objs semaphore output = %q", got)
	}

	if err := c.Exec(`prio "rx worker" 7`); err != nil {
		t.Fatalf("prio: %v", err)
	}
	if th.Priority() != 7 {
		t.Fatalf("Priority() = %d after prio, want 7", th.Priority())
	}
	if err := c.Exec("prio 'rx worker' 64"); err == nil {
		t.Fatal("prio 64 accepted")
	}
	if err := c.Exec("suspend nobody"); err == nil || !strings.Contains(err.Error(), "no thread") {
		t.Fatalf("suspend of unknown thread = %v", err)
	}
	if err := c.Exec("frobnicate"); err == nil || !strings.Contains(err.Error(), "command not found") {
		t.Fatalf("unknown command = %v", err)
	}
	if err := c.Exec(`ps "unterminated`); err == nil {
		t.Fatal("unterminated quote accepted")
	}
	if err := c.Exec("irq 200"); err == nil {
		t.Fatal("irq out of range accepted")
	}
}

func TestConsoleLineEditing(t *testing.T) {
	c, _, out := newTestConsole(t)

	for _, b := range []byte("tickz\x08s\n") {
		c.Feed(b)
	}
	if got := out.text(); !strings.HasPrefix(got, "0") {
		t.Fatalf("output = %q, want the tick counter", got)
	}

	out.reset()
	for _, b := range []byte("upt\t\n") {
		c.Feed(b)
	}
	if got := out.text(); !strings.HasPrefix(got, "up ") {
		t.Fatalf("completed command output = %q, want uptime", got)
	}

	out.reset()
	for _, b := range []byte("bogus\n") {
		c.Feed(b)
	}
	if got := out.text(); !strings.HasPrefix(got, "error: bogus: command not found") {
		t.Fatalf("output = %q, want an error line", got)
	}
}

func TestConsoleThreadReadsInterruptInput(t *testing.T) {
	p := cortexm.New()
	rec := NewRecorder(64)
	k := kernel.New(p, kernel.Config{Tracer: rec})
	out := &lineBuffer{}

	var rx kernel.DataQueue[byte]
	if err := kernel.NewDataQueue(k, &rx, kernel.QueueAttr[byte]{Name: "rx", Mem: make([]byte, 32)}); err != nil {
		t.Fatalf("NewDataQueue: %v", err)
	}
	c, err := NewConsole(ConsoleConfig{Kernel: k, Input: &rx, Output: out, Recorder: rec})
	if err != nil {
		t.Fatalf("NewConsole: %v", err)
	}
	var th kernel.Thread
	if err := k.NewThread(&th, c.Run, nil, kernel.ThreadAttr{Name: "console", Stack: make([]byte, 1024), Priority: 2}); err != nil {
		t.Fatalf("NewThread: %v", err)
	}

	var mu sync.Mutex
	pending := []byte("stats\ntrace 2\n")
	const rxVector arch.Vector = 20
	if err := p.SetVector(rxVector, 2, func() {
		mu.Lock()
		defer mu.Unlock()
		for len(pending) > 0 {
			if rx.Put(pending[0], kernel.NoWait) != nil {
				return
			}
			pending = pending[1:]
		}
	}); err != nil {
		t.Fatalf("SetVector: %v", err)
	}
	p.EnableVector(rxVector)

	if err := k.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.Raise(rxVector)
	if !p.Settle(2 * time.Second) {
		t.Fatal("core did not settle")
	}

	got := out.text()
	if !strings.Contains(got, "port cortex-m: switches") {
		t.Fatalf("console output = %q, want stats", got)
	}
	if !strings.Contains(got, "console") || !strings.Contains(got, "switches over") {
		t.Fatalf("console output = %q, want a trace listing", got)
	}
}
