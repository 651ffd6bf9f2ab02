package kernel

import (
	"fmt"

	"rtk/arch"
)

// SemaphoreAttr configures a semaphore.
type SemaphoreAttr struct {
	Name string
	Attr uint32
}

// Semaphore is a counting semaphore control block.
type Semaphore struct {
	objectHeader

	count   uint32
	max     uint32
	waiters threadList
}

// NewSemaphore initializes s with initial tokens out of max.
func (k *Kernel) NewSemaphore(s *Semaphore, initial, max uint32, attr SemaphoreAttr) error {
	if s == nil || max == 0 || initial > max || max > 0x7FFFFFFF {
		return ErrParameter
	}
	if s.handle != 0 {
		return ErrParameter
	}
	*s = Semaphore{
		objectHeader: objectHeader{k: k, kind: KindSemaphore, name: attr.Name, attr: attr.Attr},
		count:        initial,
		max:          max,
	}
	return resultErr(k.call(selCreate, 0, 0, 0, 0, s))
}

// Acquire takes a token, waiting up to timeout ticks for one.
func (s *Semaphore) Acquire(timeout Ticks) error {
	if s.k == nil {
		return ErrParameter
	}
	return resultErr(s.k.call(selSemAcquire, s.handle.word(), arch.Word(timeout), 0, 0, nil))
}

// Release returns a token. The token goes straight to the highest-priority
// waiter if there is one. Releasing a full semaphore fails with ErrResource.
func (s *Semaphore) Release() error {
	if s.k == nil {
		return ErrParameter
	}
	return resultErr(s.k.call(selSemRelease, s.handle.word(), 0, 0, 0, nil))
}

// Count returns the available tokens.
func (s *Semaphore) Count() uint32 {
	if s.k == nil {
		return 0
	}
	var n uint32
	s.k.inspect(func() { n = s.count })
	return n
}

// Waiting returns the number of threads blocked in Acquire.
func (s *Semaphore) Waiting() int {
	if s.k == nil {
		return 0
	}
	var n int
	s.k.inspect(func() { n = s.waiters.len() })
	return n
}

// Delete retires s. Waiters fail with ErrDeleted.
func (s *Semaphore) Delete() error { return deleteObject(&s.objectHeader) }

func (s *Semaphore) deleted(k *Kernel) { k.wakeAll(&s.waiters, ErrDeleted) }

func svcSemAcquire(k *Kernel, m callMode, a *[4]arch.Word, _ any) arch.Word {
	timeout := Ticks(a[1])
	if !validTimeout(timeout) {
		return ErrParameter.word()
	}

	st := k.port.EnterCritical()
	defer k.port.ExitCritical(st)

	o, status := k.lookup(a[0], KindSemaphore)
	if status != StatusOK {
		return status.word()
	}
	s := o.(*Semaphore)
	if s.count > 0 {
		s.count--
		return 0
	}
	if timeout == NoWait {
		return ErrResource.word()
	}
	if status := checkWait(m, timeout); status != StatusOK {
		return status.word()
	}
	k.block(&s.waiters, WaitSemaphore, s, timeout, ErrTimeout)
	return 0
}

func svcSemRelease(k *Kernel, _ callMode, a *[4]arch.Word, _ any) arch.Word {
	st := k.port.EnterCritical()
	defer k.port.ExitCritical(st)

	o, status := k.lookup(a[0], KindSemaphore)
	if status != StatusOK {
		return status.word()
	}
	s := o.(*Semaphore)
	if t := s.waiters.front(); t != nil {
		k.wake(t, 0)
		return 0
	}
	if s.count >= s.max {
		return ErrResource.word()
	}
	s.count++
	return 0
}

func (s *Semaphore) summary() string {
	return fmt.Sprintf("count %d/%d waiting %d", s.count, s.max, s.waiters.len())
}
