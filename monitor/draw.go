package monitor

import (
	"fmt"
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

var (
	drawFont   tinyfont.Fonter = &proggy.TinySZ8pt7b
	background                 = color.RGBA{R: 0x10, G: 0x12, B: 0x16, A: 0xFF}
	foreground                 = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	gridColor                  = color.RGBA{R: 0x30, G: 0x34, B: 0x3A, A: 0xFF}
)

const (
	labelWidth = 56
	headerRows = 12
	maxLaneH   = 16
	minLaneH   = 6
)

// DrawTimeline renders tl onto d, one lane per thread with its label on the
// left, and flushes the display.
func DrawTimeline(d drivers.Displayer, tl Timeline) error {
	w, h := d.Size()
	fillRect(d, 0, 0, w, h, background)

	header := fmt.Sprintf("ticks %d..%d", tl.From, tl.To)
	tinyfont.WriteLine(d, drawFont, 2, headerRows-3, header, foreground)

	plotW := int(w) - labelWidth
	if plotW <= 0 || len(tl.Lanes) == 0 {
		return d.Display()
	}
	laneH := (int(h) - headerRows) / len(tl.Lanes)
	if laneH > maxLaneH {
		laneH = maxLaneH
	}
	if laneH < minLaneH {
		laneH = minLaneH
	}

	for i, l := range tl.Lanes {
		y := int16(headerRows + i*laneH)
		if int(y)+laneH > int(h) {
			break
		}
		fillRect(d, labelWidth, y+int16(laneH)-1, int16(plotW), 1, gridColor)
		tinyfont.WriteLine(d, drawFont, 2, y+int16(laneH)-3, clipLabel(l.Thread), laneColor(i, l))
	}

	for _, s := range tl.Segments {
		i := tl.lane(s.Handle)
		if i < 0 {
			continue
		}
		y := headerRows + i*laneH
		if y+laneH > int(h) {
			continue
		}
		x0, x1 := tl.xrange(s, plotW)
		fillRect(d, int16(labelWidth+x0), int16(y+1), int16(x1-x0), int16(laneH-3), laneColor(i, tl.Lanes[i]))
	}
	return d.Display()
}

func fillRect(d drivers.Displayer, x, y, w, h int16, c color.RGBA) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			d.SetPixel(xx, yy, c)
		}
	}
}

// clipLabel keeps a label inside the label column.
func clipLabel(s string) string {
	for len(s) > 0 {
		_, width := tinyfont.LineWidth(drawFont, s)
		if width <= labelWidth-4 {
			return s
		}
		s = s[:len(s)-1]
	}
	return s
}
