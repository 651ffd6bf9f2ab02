//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/mattn/go-tty"
)

// hostConsole reads keystrokes from the controlling terminal. The terminal
// stays in cbreak mode while it is open, so keys arrive one at a time and
// are echoed here rather than by the line discipline.
type hostConsole struct {
	tty  *tty.TTY
	echo io.Writer
}

func openConsole() (*hostConsole, error) {
	t, err := tty.Open()
	if err != nil {
		return nil, fmt.Errorf("hal: open console: %w", err)
	}
	return &hostConsole{tty: t, echo: t.Output()}, nil
}

func (c *hostConsole) Close() error {
	return c.tty.Close()
}

// pump forwards every key to input as UTF-8 bytes until ctx ends or the
// terminal fails. The blocking reader is left behind on return; it ends
// when the terminal is closed.
func (c *hostConsole) pump(ctx context.Context, input func(b byte)) error {
	runes := make(chan rune)
	errc := make(chan error, 1)
	go func() {
		for {
			r, err := c.tty.ReadRune()
			if err != nil {
				errc <- err
				return
			}
			select {
			case runes <- r:
			case <-ctx.Done():
				return
			}
		}
	}()

	var buf [utf8.UTFMax]byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return fmt.Errorf("hal: console read: %w", err)
		case r := <-runes:
			c.echoRune(r)
			n := utf8.EncodeRune(buf[:], r)
			for _, b := range buf[:n] {
				input(b)
			}
		}
	}
}

func (c *hostConsole) echoRune(r rune) {
	switch {
	case r == '\r' || r == '\n':
		io.WriteString(c.echo, "\r\n")
	case r == 0x08 || r == 0x7F:
		io.WriteString(c.echo, "\b \b")
	case r >= 0x20:
		io.WriteString(c.echo, string(r))
	}
}
