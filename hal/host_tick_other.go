//go:build !tinygo && !linux

package hal

import (
	"context"
	"time"
)

type tickerSource struct {
	t *time.Ticker
}

func newTickSource(hz int) (tickSource, error) {
	return &tickerSource{t: time.NewTicker(time.Second / time.Duration(hz))}, nil
}

// Wait reports one expiration per ticker fire. Fires the ticker dropped
// while the runner was busy are lost.
func (s *tickerSource) Wait(ctx context.Context) (uint64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.t.C:
		return 1, nil
	}
}

func (s *tickerSource) Close() error {
	s.t.Stop()
	return nil
}
