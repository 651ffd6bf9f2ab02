package hal

import (
	"image/color"

	"tinygo.org/x/drivers"
)

var _ drivers.Displayer = FramebufferDisplay{}

// FramebufferDisplay draws into an RGB565 Framebuffer through the
// drivers.Displayer interface, so tinyfont and the monitor can render to it.
type FramebufferDisplay struct {
	FB Framebuffer
}

func (d FramebufferDisplay) Size() (x, y int16) {
	if d.FB == nil {
		return 0, 0
	}
	return int16(d.FB.Width()), int16(d.FB.Height())
}

func (d FramebufferDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.FB == nil || d.FB.Format() != PixelFormatRGB565 {
		return
	}
	buf := d.FB.Buffer()
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.FB.Width() || iy < 0 || iy >= d.FB.Height() {
		return
	}
	off := iy*d.FB.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	pixel := rgb565(c.R, c.G, c.B)
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d FramebufferDisplay) Display() error {
	if d.FB == nil {
		return nil
	}
	return d.FB.Present()
}
