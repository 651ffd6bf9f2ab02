// Package app wires the demo board: a kernel on one of the simulated cores
// with its drivers and threads, plus the monitor console behind a UART
// receive interrupt.
package app

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rtk/arch"
	"rtk/hal"
	"rtk/kernel"
	"rtk/monitor"
)

// Config selects the board options. The zero value is usable.
type Config struct {
	// Arch names the core, see NewPort. Default "cortex-m".
	Arch string

	TickHz     uint32
	RoundRobin kernel.Ticks
	StackCheck bool

	// TraceLimit bounds the recorded schedule segments. Default 4096.
	TraceLimit int

	// SamplePeriod is the sensor timer period. Default a quarter second.
	SamplePeriod kernel.Ticks
	// BlinkPeriod is the LED half period. Default half a second.
	BlinkPeriod kernel.Ticks
	// DisplaySpan is the window of ticks Frame draws. Default two seconds.
	DisplaySpan kernel.Ticks
}

func (c Config) withDefaults() Config {
	if c.TickHz == 0 {
		c.TickHz = 1000
	}
	if c.TraceLimit <= 0 {
		c.TraceLimit = 4096
	}
	if c.SamplePeriod == 0 {
		c.SamplePeriod = kernel.Ticks(c.TickHz / 4)
	}
	if c.BlinkPeriod == 0 {
		c.BlinkPeriod = kernel.Ticks(c.TickHz / 2)
	}
	if c.DisplaySpan == 0 {
		c.DisplaySpan = kernel.Ticks(c.TickHz * 2)
	}
	return c
}

const (
	uartRxVector   arch.Vector = 20
	uartRxPriority             = 2

	stackBytes = 512
	rxDepth    = 64
	poolDepth  = 8

	prioSupervisor = 8
	prioLogger     = 6
	prioBlinker    = 3
	prioConsole    = 2

	evSample uint32 = 1 << 0
)

// Sample is one sensor reading.
type Sample struct {
	Seq        uint32
	At         kernel.Ticks
	MilliVolts int32
}

// Stats are the demo counters.
type Stats struct {
	Samples  uint32
	Dropped  uint32
	Reports  uint32
	Stalls   uint32
	Blinks   uint32
	Overruns uint32
}

// System is the demo board. It implements hal.Board.
type System struct {
	h    hal.HAL
	cfg  Config
	port arch.Port
	k    *kernel.Kernel
	rec  *monitor.Recorder
	con  *monitor.Console

	rx       kernel.DataQueue[byte]
	rxMem    [rxDepth]byte
	rxMu     sync.Mutex
	rxHost   []byte
	pool     kernel.MemoryPool[Sample]
	poolMem  [poolDepth]kernel.PoolSlot[Sample]
	samples  kernel.DataQueue[kernel.Block[Sample]]
	queueMem [poolDepth]kernel.Block[Sample]
	events   kernel.EventFlags
	logLock  kernel.Semaphore
	sampler  kernel.Timer

	supervisor, logger, blinker, console kernel.Thread
	stacks                               [4][stackBytes]byte

	seq   uint32
	stats struct {
		samples, dropped, reports, stalls, blinks, overruns atomic.Uint32
	}
}

var _ hal.Board = (*System)(nil)

// Board returns a hal.NewBoardFunc building a System with cfg.
func Board(cfg Config) hal.NewBoardFunc {
	return func(h hal.HAL) (hal.Board, error) {
		return New(h, cfg)
	}
}

// New creates the kernel and every demo object. Nothing runs until Start.
func New(h hal.HAL, cfg Config) (*System, error) {
	cfg = cfg.withDefaults()
	port, err := NewPort(cfg.Arch)
	if err != nil {
		return nil, err
	}
	s := &System{h: h, cfg: cfg, port: port, rec: monitor.NewRecorder(cfg.TraceLimit)}
	s.k = kernel.New(port, kernel.Config{
		TickHz:     cfg.TickHz,
		RoundRobin: cfg.RoundRobin,
		StackCheck: cfg.StackCheck,
		Logger:     h.Logger(),
		Tracer:     s.rec,
	})
	s.k.SetFatalHandler(s.onFatal)

	if err := s.initObjects(); err != nil {
		return nil, err
	}
	if err := s.initThreads(); err != nil {
		return nil, err
	}
	if err := port.SetVector(uartRxVector, uartRxPriority, s.uartRx); err != nil {
		return nil, fmt.Errorf("app: install uart rx vector: %w", err)
	}
	port.EnableVector(uartRxVector)
	return s, nil
}

func (s *System) initObjects() error {
	k := s.k
	if err := kernel.NewDataQueue(k, &s.rx, kernel.QueueAttr[byte]{Name: "uart rx", Mem: s.rxMem[:]}); err != nil {
		return fmt.Errorf("app: uart rx queue: %w", err)
	}
	if err := kernel.NewMemoryPool(k, &s.pool, kernel.PoolAttr[Sample]{Name: "samples", Mem: s.poolMem[:]}); err != nil {
		return fmt.Errorf("app: sample pool: %w", err)
	}
	if err := kernel.NewDataQueue(k, &s.samples, kernel.QueueAttr[kernel.Block[Sample]]{Name: "sample q", Mem: s.queueMem[:]}); err != nil {
		return fmt.Errorf("app: sample queue: %w", err)
	}
	if err := k.NewEventFlags(&s.events, kernel.EventFlagsAttr{Name: "events"}); err != nil {
		return fmt.Errorf("app: event flags: %w", err)
	}
	if err := k.NewSemaphore(&s.logLock, 1, 1, kernel.SemaphoreAttr{Name: "log lock"}); err != nil {
		return fmt.Errorf("app: log lock: %w", err)
	}
	if err := k.NewTimer(&s.sampler, s.sample, kernel.TimerPeriodic, nil, kernel.TimerAttr{Name: "sampler"}); err != nil {
		return fmt.Errorf("app: sampler timer: %w", err)
	}
	if err := s.sampler.Start(s.cfg.SamplePeriod); err != nil {
		return fmt.Errorf("app: start sampler: %w", err)
	}
	return nil
}

func (s *System) initThreads() error {
	con, err := monitor.NewConsole(monitor.ConsoleConfig{
		Kernel:   s.k,
		Input:    &s.rx,
		Output:   lockedLogger{s},
		Recorder: s.rec,
	})
	if err != nil {
		return fmt.Errorf("app: console: %w", err)
	}
	s.con = con

	threads := []struct {
		t    *kernel.Thread
		fn   kernel.ThreadFunc
		name string
		prio uint8
	}{
		{&s.supervisor, s.supervise, "supervisor", prioSupervisor},
		{&s.logger, s.logSamples, "logger", prioLogger},
		{&s.blinker, s.blink, "blinker", prioBlinker},
		{&s.console, con.Run, "console", prioConsole},
	}
	for i, th := range threads {
		err := s.k.NewThread(th.t, th.fn, nil, kernel.ThreadAttr{
			Name:     th.name,
			Stack:    s.stacks[i][:],
			Priority: th.prio,
		})
		if err != nil {
			return fmt.Errorf("app: thread %s: %w", th.name, err)
		}
	}
	return nil
}

// Kernel returns the board's kernel.
func (s *System) Kernel() *kernel.Kernel { return s.k }

// Port returns the board's core.
func (s *System) Port() arch.Port { return s.port }

// Recorder returns the schedule recorder.
func (s *System) Recorder() *monitor.Recorder { return s.rec }

// Console returns the monitor console.
func (s *System) Console() *monitor.Console { return s.con }

// Stats returns a snapshot of the demo counters.
func (s *System) Stats() Stats {
	return Stats{
		Samples:  s.stats.samples.Load(),
		Dropped:  s.stats.dropped.Load(),
		Reports:  s.stats.reports.Load(),
		Stalls:   s.stats.stalls.Load(),
		Blinks:   s.stats.blinks.Load(),
		Overruns: s.stats.overruns.Load(),
	}
}

// Start hands the core to the kernel.
func (s *System) Start() error {
	if err := s.k.Start(); err != nil {
		return fmt.Errorf("app: start kernel: %w", err)
	}
	return nil
}

// Tick raises the tick interrupt.
func (s *System) Tick() {
	s.port.Raise(s.k.Config().TickVector)
}

// Input latches one received byte into the UART and raises its interrupt.
func (s *System) Input(b byte) {
	s.rxMu.Lock()
	s.rxHost = append(s.rxHost, b)
	s.rxMu.Unlock()
	s.port.Raise(uartRxVector)
}

// Settle waits until the core is idle with no interrupt pending.
func (s *System) Settle(timeout time.Duration) bool {
	return s.port.Settle(timeout)
}

// Frame draws the most recent DisplaySpan ticks of the schedule.
func (s *System) Frame() error {
	if s.k.InFatal() {
		return nil
	}
	d := s.h.Display()
	if d == nil || d.Framebuffer() == nil {
		return nil
	}
	tl := monitor.Window(s.rec.Segments(), s.rec.Now(), s.cfg.DisplaySpan)
	return monitor.DrawTimeline(hal.FramebufferDisplay{FB: d.Framebuffer()}, tl)
}

// uartRx moves latched bytes into the receive queue. Bytes that do not fit
// are lost, as on a UART overrun.
func (s *System) uartRx() {
	s.rxMu.Lock()
	pending := s.rxHost
	s.rxHost = nil
	s.rxMu.Unlock()

	for _, b := range pending {
		if err := s.rx.Put(b, kernel.NoWait); err != nil {
			s.stats.overruns.Add(1)
		}
	}
}

// lockedLogger serializes writers on the log lock. Outside thread context
// the lock cannot be waited for and the line is written directly.
type lockedLogger struct{ s *System }

func (l lockedLogger) WriteLineString(line string) {
	if err := l.s.logLock.Acquire(kernel.WaitForever); err != nil {
		l.s.h.Logger().WriteLineString(line)
		return
	}
	l.s.h.Logger().WriteLineString(line)
	if err := l.s.logLock.Release(); err != nil {
		l.s.h.Logger().WriteLineString(fmt.Sprintf("app: release log lock: %v", err))
	}
}

func (s *System) logf(format string, args ...any) {
	lockedLogger{s}.WriteLineString(fmt.Sprintf(format, args...))
}
