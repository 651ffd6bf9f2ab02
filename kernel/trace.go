package kernel

// Tracer observes scheduling. Its methods run on the core with interrupts
// masked; they must be short and must not call into the kernel.
type Tracer interface {
	// TraceSwitch is called when to starts running.
	TraceSwitch(now Ticks, to *Thread)
	// TraceTick is called after every tick.
	TraceTick(now Ticks)
}
