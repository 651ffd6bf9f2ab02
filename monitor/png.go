package monitor

import (
	"fmt"
	"io"

	"github.com/fogleman/gg"
)

// PNGOptions sizes a rendered timeline. Zero fields take defaults.
type PNGOptions struct {
	Width  int
	LaneH  int
	Title  string
	Margin int
}

func (o PNGOptions) withDefaults() PNGOptions {
	if o.Width <= 0 {
		o.Width = 1200
	}
	if o.LaneH <= 0 {
		o.LaneH = 28
	}
	if o.Margin <= 0 {
		o.Margin = 12
	}
	return o
}

const (
	pngLabelW  = 120
	pngHeaderH = 36
	pngAxisH   = 24
)

// RenderPNG draws tl as a Gantt chart and writes it to w as PNG.
func RenderPNG(w io.Writer, tl Timeline, opt PNGOptions) error {
	opt = opt.withDefaults()
	lanes := len(tl.Lanes)
	if lanes == 0 {
		lanes = 1
	}
	height := pngHeaderH + lanes*opt.LaneH + pngAxisH + opt.Margin
	plotX := float64(opt.Margin + pngLabelW)
	plotW := opt.Width - opt.Margin*2 - pngLabelW
	if plotW <= 0 {
		return fmt.Errorf("monitor: png width %d leaves no room for the plot", opt.Width)
	}

	dc := gg.NewContext(opt.Width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	title := opt.Title
	if title == "" {
		title = "schedule"
	}
	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(fmt.Sprintf("%s: ticks %d..%d", title, tl.From, tl.To), float64(opt.Margin), pngHeaderH/2, 0, 0.5)

	plotTop := float64(pngHeaderH)
	plotBottom := plotTop + float64(len(tl.Lanes)*opt.LaneH)

	// Grid lines at a round tick step.
	step := gridStep(tl.Span())
	dc.SetLineWidth(1)
	for t := uint32(0); t <= tl.Span(); t += step {
		x := plotX + float64(uint64(t)*uint64(plotW)/uint64(tl.Span()))
		dc.SetRGB(0.85, 0.85, 0.85)
		dc.DrawLine(x, plotTop, x, plotBottom)
		dc.Stroke()
		dc.SetRGB(0.3, 0.3, 0.3)
		dc.DrawStringAnchored(fmt.Sprint(uint32(tl.From)+t), x, plotBottom+pngAxisH/2, 0.5, 0.5)
	}

	for i, l := range tl.Lanes {
		y := plotTop + float64(i*opt.LaneH)
		dc.SetColor(laneColor(i, l))
		dc.DrawStringAnchored(fmt.Sprintf("%s (%d)", l.Thread, l.Priority), float64(opt.Margin), y+float64(opt.LaneH)/2, 0, 0.5)
	}

	for _, s := range tl.Segments {
		i := tl.lane(s.Handle)
		if i < 0 {
			continue
		}
		x0, x1 := tl.xrange(s, plotW)
		y := plotTop + float64(i*opt.LaneH)
		dc.SetColor(laneColor(i, tl.Lanes[i]))
		dc.DrawRectangle(plotX+float64(x0), y+3, float64(x1-x0), float64(opt.LaneH-6))
		dc.Fill()
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("monitor: encode png: %w", err)
	}
	return nil
}

// gridStep picks a 1-2-5 step giving at most ten grid lines.
func gridStep(span uint32) uint32 {
	step := uint32(1)
	for {
		for _, m := range []uint32{1, 2, 5} {
			if span/(step*m) <= 10 {
				return step * m
			}
		}
		step *= 10
	}
}
