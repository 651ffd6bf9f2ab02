//go:build !tinygo && cgo

package hal

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"unicode/utf8"

	"rtk/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.org/x/sync/errgroup"
)

// WindowConfig controls the desktop window runner.
type WindowConfig struct {
	Hz    int
	Scale int
	Title string
}

// RunWindow starts a desktop window that shows the framebuffer and forwards
// typed keys to the board's console input. Ticks come from the host tick
// source, independent of the frame rate. It blocks until the window closes
// or ctx ends.
func RunWindow(ctx context.Context, newBoard NewBoardFunc, cfg WindowConfig) error {
	if err := checkHz(cfg.Hz); err != nil {
		return err
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 2
	}
	if cfg.Title == "" {
		cfg.Title = "rtk"
	}

	h := newHostHAL(os.Stdout)
	b, err := newBoard(h)
	if err != nil {
		return fmt.Errorf("hal: new board: %w", err)
	}
	src, err := newTickSource(cfg.Hz)
	if err != nil {
		return err
	}
	defer src.Close()
	if err := b.Start(); err != nil {
		return fmt.Errorf("hal: start board: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tickLoop(gctx, src, b, 0) })

	game := &hostGame{h: h, board: b, ctx: gctx}
	ebiten.SetWindowTitle(cfg.Title + " (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*cfg.Scale, h.fb.height*cfg.Scale)
	ebiten.SetTPS(60)
	runErr := ebiten.RunGame(game)

	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && runErr == nil {
		runErr = err
	}
	return runErr
}

var (
	ledOn  = color.RGBA{R: 0x40, G: 0xFF, B: 0x40, A: 0xFF}
	ledOff = color.RGBA{R: 0x20, G: 0x30, B: 0x20, A: 0xFF}
)

const ledSize = 6

type hostGame struct {
	h     *hostHAL
	board Board
	ctx   context.Context

	pix   []byte
	fbImg *ebiten.Image
	led   *ebiten.Image
	chars []rune
}

func (g *hostGame) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	g.pollKeys()
	if err := g.board.Frame(); err != nil {
		return fmt.Errorf("hal: frame: %w", err)
	}
	return nil
}

func (g *hostGame) pollKeys() {
	var buf [utf8.UTFMax]byte
	g.chars = ebiten.AppendInputChars(g.chars[:0])
	for _, r := range g.chars {
		n := utf8.EncodeRune(buf[:], r)
		for _, b := range buf[:n] {
			g.board.Input(b)
		}
	}

	keys := []struct {
		key ebiten.Key
		b   byte
	}{
		{ebiten.KeyEnter, '\r'},
		{ebiten.KeyNumpadEnter, '\r'},
		{ebiten.KeyBackspace, 0x08},
		{ebiten.KeyTab, '\t'},
	}
	for _, k := range keys {
		if inpututil.IsKeyJustPressed(k.key) {
			g.board.Input(k.b)
		}
	}
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	if ctrl && inpututil.IsKeyJustPressed(ebiten.KeyU) {
		g.board.Input(0x15)
	}
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.fbImg == nil {
		g.pix = make([]byte, fb.width*fb.height*4)
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
		g.led = ebiten.NewImage(ledSize, ledSize)
	}

	fb.snapshotRGBA(g.pix)
	g.fbImg.WritePixels(g.pix)
	screen.DrawImage(g.fbImg, nil)

	if g.h.led.lit() {
		g.led.Fill(ledOn)
	} else {
		g.led.Fill(ledOff)
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(fb.width-ledSize-2), 2)
	screen.DrawImage(g.led, op)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
