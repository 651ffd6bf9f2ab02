package monitor

import (
	"image/color"
	"sort"

	"rtk/kernel"
)

// Lane is one row of a timeline: every segment of one thread.
type Lane struct {
	Thread   string
	Handle   kernel.Handle
	Priority uint8
}

// Timeline is a window of recorded segments laid out for drawing.
type Timeline struct {
	From, To kernel.Ticks
	Lanes    []Lane
	Segments []Segment
}

// NewTimeline clips segs to [from, to] and assigns lanes, highest priority
// on top.
func NewTimeline(segs []Segment, from, to kernel.Ticks) Timeline {
	tl := Timeline{From: from, To: to}
	seen := make(map[kernel.Handle]bool)
	for _, s := range segs {
		if int32(s.End-from) < 0 || int32(s.Start-to) > 0 {
			continue
		}
		if int32(s.Start-from) < 0 {
			s.Start = from
		}
		if int32(s.End-to) > 0 {
			s.End = to
		}
		tl.Segments = append(tl.Segments, s)
		if !seen[s.Handle] {
			seen[s.Handle] = true
			tl.Lanes = append(tl.Lanes, Lane{Thread: s.Thread, Handle: s.Handle, Priority: s.Priority})
		}
	}
	sort.SliceStable(tl.Lanes, func(i, j int) bool {
		if tl.Lanes[i].Priority != tl.Lanes[j].Priority {
			return tl.Lanes[i].Priority > tl.Lanes[j].Priority
		}
		return tl.Lanes[i].Thread < tl.Lanes[j].Thread
	})
	return tl
}

// Window lays out the most recent span ticks of segs.
func Window(segs []Segment, now kernel.Ticks, span kernel.Ticks) Timeline {
	return NewTimeline(segs, now-span, now)
}

// Span returns the number of ticks covered, at least one.
func (tl Timeline) Span() uint32 {
	if s := uint32(tl.To - tl.From); s > 0 {
		return s
	}
	return 1
}

func (tl Timeline) lane(h kernel.Handle) int {
	for i, l := range tl.Lanes {
		if l.Handle == h {
			return i
		}
	}
	return -1
}

// xrange maps a segment onto [0, width) pixels. Every segment gets at least
// one pixel so that short runs stay visible.
func (tl Timeline) xrange(s Segment, width int) (x0, x1 int) {
	span := uint64(tl.Span())
	x0 = int(uint64(uint32(s.Start-tl.From)) * uint64(width) / span)
	x1 = int(uint64(uint32(s.End-tl.From)) * uint64(width) / span)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if x1 > width {
		x1 = width
	}
	return x0, x1
}

var lanePalette = []color.RGBA{
	{R: 0xE6, G: 0x4A, B: 0x19, A: 0xFF},
	{R: 0x1E, G: 0x88, B: 0xE5, A: 0xFF},
	{R: 0x43, G: 0xA0, B: 0x47, A: 0xFF},
	{R: 0xFB, G: 0x8C, B: 0x00, A: 0xFF},
	{R: 0x8E, G: 0x24, B: 0xAA, A: 0xFF},
	{R: 0x00, G: 0x89, B: 0x7B, A: 0xFF},
}

var idleColor = color.RGBA{R: 0x9E, G: 0x9E, B: 0x9E, A: 0xFF}

func laneColor(i int, l Lane) color.RGBA {
	if l.Priority == 0 {
		return idleColor
	}
	return lanePalette[i%len(lanePalette)]
}
