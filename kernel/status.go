package kernel

import (
	"errors"

	"rtk/arch"
)

// Status is the outcome of a kernel call. Errors are negative so that a
// single result register can carry either data or a status.
type Status int32

const (
	StatusOK      Status = 0
	ErrResource   Status = -1
	ErrTimeout    Status = -2
	ErrParameter  Status = -3
	ErrISR        Status = -4
	ErrNotRunning Status = -5
	ErrDeleted    Status = -6
	ErrNoMemory   Status = -7
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case ErrResource:
		return "resource unavailable"
	case ErrTimeout:
		return "timeout"
	case ErrParameter:
		return "invalid parameter"
	case ErrISR:
		return "blocking call from interrupt context"
	case ErrNotRunning:
		return "blocking call before kernel start"
	case ErrDeleted:
		return "object deleted"
	case ErrNoMemory:
		return "object table full"
	default:
		return "unknown"
	}
}

func (s Status) Error() string { return "kernel: " + s.String() }

// ErrBadSelector is the fatal reason reported for a trap naming no kernel
// function.
var ErrBadSelector = errors.New("kernel: invalid system call selector")

// ErrStackOverflow is the fatal reason reported when a thread's stack guard
// was overwritten.
var ErrStackOverflow = errors.New("kernel: stack overflow")

func (s Status) word() arch.Word { return arch.Word(uint32(int32(s))) }

// result splits a result register into data and error.
func result(w arch.Word) (arch.Word, error) {
	if int32(w) < 0 {
		return 0, Status(int32(w))
	}
	return w, nil
}

func resultErr(w arch.Word) error {
	_, err := result(w)
	return err
}
