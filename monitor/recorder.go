// Package monitor observes a running kernel: it records the schedule, serves
// a line console over a byte queue and renders the recorded timeline.
package monitor

import (
	"sync"

	"rtk/kernel"
)

const defaultSegments = 4096

// Segment is an interval during which one thread held the core. End equals
// Start for a thread that was switched out within the tick it started in.
type Segment struct {
	Thread   string
	Handle   kernel.Handle
	Priority uint8
	Start    kernel.Ticks
	End      kernel.Ticks
}

// Recorder is a kernel.Tracer that keeps the most recent schedule segments.
// The kernel calls it on the core; readers may run on any goroutine.
type Recorder struct {
	mu       sync.Mutex
	limit    int
	segs     []Segment
	cur      Segment
	running  bool
	now      kernel.Ticks
	switches uint64
	ticks    uint64
}

// NewRecorder returns a recorder keeping at most limit closed segments. A
// non-positive limit selects the default.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = defaultSegments
	}
	return &Recorder{limit: limit}
}

func (r *Recorder) TraceSwitch(now kernel.Ticks, to *kernel.Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.now = now
	r.switches++
	if r.running {
		r.cur.End = now
		r.push(r.cur)
	}
	r.cur = Segment{
		Thread:   to.Name(),
		Handle:   to.Handle(),
		Priority: to.Priority(),
		Start:    now,
		End:      now,
	}
	r.running = true
}

func (r *Recorder) TraceTick(now kernel.Ticks) {
	r.mu.Lock()
	r.now = now
	r.ticks++
	r.mu.Unlock()
}

func (r *Recorder) push(s Segment) {
	if len(r.segs) >= r.limit {
		n := copy(r.segs, r.segs[len(r.segs)-r.limit+1:])
		r.segs = r.segs[:n]
	}
	r.segs = append(r.segs, s)
}

// Segments returns the recorded segments, oldest first. The running thread's
// segment is included, ending at the last observed tick.
func (r *Recorder) Segments() []Segment {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Segment, len(r.segs), len(r.segs)+1)
	copy(out, r.segs)
	if r.running {
		cur := r.cur
		cur.End = r.now
		out = append(out, cur)
	}
	return out
}

// Last returns at most n of the most recent segments.
func (r *Recorder) Last(n int) []Segment {
	segs := r.Segments()
	if n >= 0 && len(segs) > n {
		segs = segs[len(segs)-n:]
	}
	return segs
}

// Now returns the last tick the recorder observed.
func (r *Recorder) Now() kernel.Ticks {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

// Counts returns the number of switches and ticks observed.
func (r *Recorder) Counts() (switches, ticks uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.switches, r.ticks
}

// Reset drops the closed segments. The running segment restarts at the
// current tick.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segs = r.segs[:0]
	r.cur.Start = r.now
	r.cur.End = r.now
}
