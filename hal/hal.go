// Package hal is the host side of the board. Runners in this package feed
// tick and console interrupts into a Board and give it somewhere to log and
// draw.
package hal

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LED is a minimal output pin abstraction.
type LED interface {
	High()
	Low()
}

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// HAL provides the only contact point between the board and the outside
// world.
type HAL interface {
	Logger() Logger
	LED() LED
	Display() Display
}

// Board is what a runner drives. Start is called once before the first
// tick. Tick and Input raise interrupts on the board's core and may be
// called from any goroutine. Frame redraws the framebuffer and is called at
// the display rate when a window is open.
type Board interface {
	Start() error
	Tick()
	Input(b byte)
	Frame() error
}

// NewBoardFunc builds a board on top of a HAL.
type NewBoardFunc func(h HAL) (Board, error)
