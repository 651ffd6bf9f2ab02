package kernel

import "rtk/arch"

// Ticks counts kernel ticks. The counter wraps; compare with before/after,
// never with < on raw values.
type Ticks uint32

const (
	// NoWait makes a call fail with ErrResource instead of blocking.
	NoWait Ticks = 0
	// WaitForever blocks without a timeout.
	WaitForever Ticks = 0xFFFFFFFF
	// MaxTimeout is the longest relative timeout or period. Deadlines are
	// ordered within half the counter range, so anything longer would
	// already count as expired.
	MaxTimeout Ticks = 0x7FFFFFFF
)

// before reports whether a is strictly earlier than b.
func before(a, b Ticks) bool { return int32(a-b) < 0 }

// validTimeout reports whether t is a timeout a blocking call accepts.
func validTimeout(t Ticks) bool { return t <= MaxTimeout || t == WaitForever }

// Logger receives one line per call.
type Logger interface {
	WriteLineString(s string)
}

// Config selects kernel options. The zero value is usable.
type Config struct {
	// TickHz is the tick rate the tick source is driven at. It only feeds
	// conversions such as Uptime. Default 1000.
	TickHz uint32

	// RoundRobin is the time slice, in ticks, after which a running thread
	// yields to a ready thread of equal priority. Zero disables slicing.
	RoundRobin Ticks

	// StackCheck plants a guard word at the bottom of every thread stack and
	// verifies it whenever the thread is switched out.
	StackCheck bool

	// TickVector and TickPriority place the tick handler on the core's
	// interrupt controller. Zero selects vector 15 and priority 1.
	TickVector   arch.Vector
	TickPriority uint8

	Logger Logger
	Tracer Tracer
}

const (
	defaultTickHz       = 1000
	defaultTickVector   = 15
	defaultTickPriority = 1
)

func (c Config) withDefaults() Config {
	if c.TickHz == 0 {
		c.TickHz = defaultTickHz
	}
	if c.TickVector == 0 {
		c.TickVector = defaultTickVector
	}
	if c.TickPriority == 0 {
		c.TickPriority = defaultTickPriority
	}
	return c
}
