package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"rtk/hal"
	"rtk/kernel"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

var (
	fatalFont tinyfont.Fonter = &proggy.TinySZ8pt7b
	fatalFg                   = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

const (
	fatalLineH    = 10
	fatalBaseOff  = 8
	maxStackLines = 24
)

// onFatal is the kernel fatal handler: it logs the report and paints it on
// the display. It runs on the halted core and must not call the kernel.
func (s *System) onFatal(info kernel.FatalInfo) {
	lines := fatalReport(info)
	if l := s.h.Logger(); l != nil {
		for _, line := range lines {
			l.WriteLineString(line)
		}
	}

	disp := s.h.Display()
	if disp == nil {
		return
	}
	fb := disp.Framebuffer()
	if fb == nil {
		return
	}
	fb.ClearRGB(0x80, 0, 0)
	drawLines(hal.FramebufferDisplay{FB: fb}, lines)
	_ = fb.Present()
}

func fatalReport(info kernel.FatalInfo) []string {
	lines := []string{
		"rtk fatal:",
		fmt.Sprintf("thread: %q (%#08x)", info.Name, uint32(info.Thread)),
		fmt.Sprintf("reason: %v", info.Reason),
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	n := 0
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line == "" {
			continue
		}
		if n == maxStackLines {
			lines = append(lines, "...")
			break
		}
		lines = append(lines, line)
		n++
	}
	return lines
}

// drawLines wraps lines to the display width and stops at the bottom edge.
func drawLines(d hal.FramebufferDisplay, lines []string) {
	w, h := d.Size()
	_, glyphW := tinyfont.LineWidth(fatalFont, "0")
	if glyphW == 0 {
		return
	}
	cols := int16(w) / int16(glyphW)
	if cols <= 0 {
		cols = 1
	}

	y := int16(0)
	for _, line := range lines {
		line = strings.ReplaceAll(line, "\t", "  ")
		for {
			if y+fatalLineH > h {
				return
			}
			chunk, rest := takeRunes(line, cols)
			tinyfont.WriteLine(d, fatalFont, 0, y+fatalBaseOff, chunk, fatalFg)
			y += fatalLineH
			line = strings.TrimLeft(rest, " ")
			if line == "" {
				break
			}
		}
	}
}

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		count++
	}
	return s[:i], s[i:]
}
