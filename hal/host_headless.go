//go:build !tinygo

package hal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
)

// tickSource blocks until at least one tick period has elapsed and reports
// how many did.
type tickSource interface {
	Wait(ctx context.Context) (uint64, error)
	Close() error
}

// errTickLimit stops a run once the configured number of ticks was
// delivered.
var errTickLimit = errors.New("hal: tick limit reached")

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Hz      int
	Ticks   uint64
	Console bool
}

// RunHeadless runs a board without opening a window: a tick source drives
// the board's tick interrupt and, when enabled, the terminal feeds its
// console input. It returns when ctx ends, when the tick limit is reached,
// or on the first error.
func RunHeadless(ctx context.Context, newBoard NewBoardFunc, cfg HeadlessConfig) error {
	if err := checkHz(cfg.Hz); err != nil {
		return err
	}
	h := newHostHAL(os.Stdout)
	b, err := newBoard(h)
	if err != nil {
		return fmt.Errorf("hal: new board: %w", err)
	}

	var con *hostConsole
	if cfg.Console {
		if con, err = openConsole(); err != nil {
			return err
		}
		defer con.Close()
	}

	src, err := newTickSource(cfg.Hz)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := b.Start(); err != nil {
		return fmt.Errorf("hal: start board: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tickLoop(gctx, src, b, cfg.Ticks) })
	if con != nil {
		g.Go(func() error { return con.pump(gctx, b.Input) })
	}
	err = g.Wait()
	if errors.Is(err, errTickLimit) {
		return nil
	}
	return err
}

// tickLoop turns tick source periods into board ticks. A limit of zero runs
// until ctx ends.
func tickLoop(ctx context.Context, src tickSource, b Board, limit uint64) error {
	var delivered uint64
	for {
		n, err := src.Wait(ctx)
		if err != nil {
			return err
		}
		for ; n > 0; n-- {
			b.Tick()
			delivered++
			if limit > 0 && delivered >= limit {
				return errTickLimit
			}
		}
	}
}

func checkHz(hz int) error {
	if hz <= 0 || hz > 100000 {
		return fmt.Errorf("hal: invalid tick rate %d Hz", hz)
	}
	return nil
}
