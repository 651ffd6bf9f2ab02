//go:build !tinygo && linux

package hal

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// pollMillis bounds how long Wait sleeps before looking at its context.
const pollMillis = 50

// timerfdSource is a periodic CLOCK_MONOTONIC timerfd. A read returns the
// number of periods elapsed since the last read, so no tick is lost while
// the runner is busy.
type timerfdSource struct {
	fd int
}

func newTickSource(hz int) (tickSource, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("hal: timerfd_create: %w", err)
	}
	period := unix.NsecToTimespec(int64(time.Second / time.Duration(hz)))
	its := unix.ItimerSpec{Interval: period, Value: period}
	if err := unix.TimerfdSettime(fd, 0, &its, nil); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("hal: timerfd_settime: %w", err)
	}
	return &timerfdSource{fd: fd}, nil
}

func (s *timerfdSource) Wait(ctx context.Context) (uint64, error) {
	var buf [8]byte
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := unix.Poll(fds, pollMillis)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("hal: poll timerfd: %w", err)
		}
		if n == 0 {
			continue
		}
		if _, err := unix.Read(s.fd, buf[:]); err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, fmt.Errorf("hal: read timerfd: %w", err)
		}
		return binary.NativeEndian.Uint64(buf[:]), nil
	}
}

func (s *timerfdSource) Close() error {
	return unix.Close(s.fd)
}
