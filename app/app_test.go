package app

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"rtk/hal"
	"rtk/kernel"
)

const settleTimeout = 2 * time.Second

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestSystem(t *testing.T, cfg Config) (*System, hal.HAL, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	h := hal.NewWriter(out)
	s, err := New(h, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.Settle(settleTimeout) {
		t.Fatal("core did not settle after start")
	}
	return s, h, out
}

func runTicks(t *testing.T, s *System, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		s.Tick()
		if !s.Settle(settleTimeout) {
			t.Fatalf("core did not settle after tick %d", i+1)
		}
	}
}

func TestSystemRunsDemo(t *testing.T) {
	s, _, out := newTestSystem(t, Config{SamplePeriod: 10, BlinkPeriod: 25})
	runTicks(t, s, 200)

	got := s.Stats()
	want := Stats{Samples: 20, Reports: 2, Blinks: 8}
	if got != want {
		t.Fatalf("Stats() = %+v, want %+v", got, want)
	}
	if now := s.Kernel().Now(); now != 200 {
		t.Fatalf("Now() = %d, want 200", now)
	}

	log := out.String()
	if n := strings.Count(log, "led: HIGH"); n != 4 {
		t.Fatalf("LED turned on %d times, want 4\n%s", n, log)
	}
	if !strings.Contains(log, "sensor: #16 at 160:") {
		t.Fatalf("log has no second sensor report:\n%s", log)
	}
	if strings.Contains(log, "supervisor:") {
		t.Fatalf("supervisor reported a stall:\n%s", log)
	}
}

func TestSystemPoolBlocksReturn(t *testing.T) {
	s, _, _ := newTestSystem(t, Config{SamplePeriod: 1})
	runTicks(t, s, 50)

	if st := s.Stats(); st.Samples != 50 || st.Dropped != 0 {
		t.Fatalf("Stats() = %+v, want 50 samples and no drops", st)
	}
	if n := s.pool.Available(); n != poolDepth {
		t.Fatalf("pool has %d free blocks after draining, want %d", n, poolDepth)
	}
}

func TestSystemConsoleOverUART(t *testing.T) {
	s, _, out := newTestSystem(t, Config{})
	for _, b := range []byte("ps\r") {
		s.Input(b)
	}
	if !s.Settle(settleTimeout) {
		t.Fatal("core did not settle")
	}

	log := out.String()
	if !strings.Contains(log, "HANDLE") {
		t.Fatalf("no ps table in output:\n%s", log)
	}
	for _, name := range []string{"supervisor", "logger", "blinker", "console", "idle"} {
		if !strings.Contains(log, name) {
			t.Fatalf("ps output lacks %q:\n%s", name, log)
		}
	}
	if st := s.Stats(); st.Overruns != 0 {
		t.Fatalf("Overruns = %d, want 0", st.Overruns)
	}
}

func TestLockedLoggerReleasesLock(t *testing.T) {
	out := &syncBuffer{}
	s, err := New(hal.NewWriter(out), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.logf("boot %d", 1)
	s.logf("boot %d", 2)
	if n := s.logLock.Count(); n != 1 {
		t.Fatalf("log lock count = %d after two lines, want 1", n)
	}
	log := out.String()
	if !strings.Contains(log, "boot 1") || !strings.Contains(log, "boot 2") {
		t.Fatalf("log lacks the written lines:\n%s", log)
	}
	if strings.Contains(log, "release log lock") {
		t.Fatalf("releasing the log lock failed:\n%s", log)
	}
}

func TestSystemOnEveryArch(t *testing.T) {
	for _, name := range Arches() {
		t.Run(name, func(t *testing.T) {
			s, _, _ := newTestSystem(t, Config{Arch: name, SamplePeriod: 10, StackCheck: true})
			runTicks(t, s, 50)
			if st := s.Stats(); st.Samples != 5 {
				t.Fatalf("Samples = %d, want 5", st.Samples)
			}
			if s.Kernel().InFatal() {
				t.Fatal("kernel stopped on a fatal condition")
			}
		})
	}
}

func TestSystemFrameDrawsTimeline(t *testing.T) {
	s, h, _ := newTestSystem(t, Config{SamplePeriod: 5, DisplaySpan: 100})
	runTicks(t, s, 100)

	fb := h.Display().Framebuffer()
	if err := s.Frame(); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	seen := map[uint16]bool{}
	buf := fb.Buffer()
	for i := 0; i+1 < len(buf); i += 2 {
		seen[uint16(buf[i])|uint16(buf[i+1])<<8] = true
	}
	if len(seen) < 4 {
		t.Fatalf("frame has %d distinct colors, want a drawn timeline", len(seen))
	}
}

func TestFatalScreen(t *testing.T) {
	out := &syncBuffer{}
	h := hal.NewWriter(out)
	s, err := New(h, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.onFatal(kernel.FatalInfo{
		Thread: 0x10003,
		Name:   "logger",
		Reason: kernel.ErrStackOverflow,
		Stack:  []byte("goroutine 7 [running]:\n\tmain.go:12\n"),
	})

	log := out.String()
	for _, want := range []string{`thread: "logger" (0x010003)`, "reason: kernel: stack overflow", "main.go:12"} {
		if !strings.Contains(log, want) {
			t.Fatalf("fatal log lacks %q:\n%s", want, log)
		}
	}
	buf := h.Display().Framebuffer().Buffer()
	white := 0
	for i := 0; i+1 < len(buf); i += 2 {
		if buf[i] == 0xFF && buf[i+1] == 0xFF {
			white++
		}
	}
	if white == 0 {
		t.Fatal("fatal screen has no text")
	}
}

func TestNewPort(t *testing.T) {
	cases := map[string]string{
		"":         "cortex-m",
		"Cortex-M": "cortex-m",
		"riscv32":  "riscv32",
		"avr":      "avr",
	}
	for in, want := range cases {
		p, err := NewPort(in)
		if err != nil {
			t.Fatalf("NewPort(%q): %v", in, err)
		}
		if p.Name() != want {
			t.Fatalf("NewPort(%q).Name() = %q, want %q", in, p.Name(), want)
		}
	}
	if _, err := NewPort("m68k"); err == nil {
		t.Fatal("NewPort accepted an unknown arch")
	}
}

func TestReadSensorRange(t *testing.T) {
	for _, tc := range []struct {
		now  kernel.Ticks
		want int32
	}{{0, 1000}, {500, 1500}, {1000, 2000}, {1500, 1500}, {2000, 1000}} {
		if got := readSensor(tc.now); got != tc.want {
			t.Fatalf("readSensor(%d) = %d, want %d", tc.now, got, tc.want)
		}
	}
}
