package kernel

import (
	"fmt"

	"rtk/arch"
)

// QueueAttr configures a data queue. Mem is caller-owned ring storage; its
// length is the capacity.
type QueueAttr[T any] struct {
	Name string
	Attr uint32
	Mem  []T
}

// queueCore is the type-independent part of a data queue.
type queueCore struct {
	objectHeader

	in, out, count int
	putters        threadList
	getters        threadList
	ring           ringStore
}

func (q *queueCore) qcore() *queueCore { return q }

// ringStore moves elements between ring slots and the *T payload pointers
// carried by system calls.
type ringStore interface {
	size() int
	valid(ref any) bool
	store(i int, src any)
	load(i int, dst any)
	transfer(dst, src any)
	reset()
}

type queueObject interface {
	object
	qcore() *queueCore
}

// DataQueue is a bounded FIFO control block. Elements are copied in and
// out.
type DataQueue[T any] struct {
	queueCore
	mem []T
}

func (q *DataQueue[T]) size() int { return len(q.mem) }

func (q *DataQueue[T]) valid(ref any) bool {
	p, ok := ref.(*T)
	return ok && p != nil
}

func (q *DataQueue[T]) store(i int, src any) { q.mem[i] = *src.(*T) }

func (q *DataQueue[T]) load(i int, dst any) {
	var zero T
	*dst.(*T) = q.mem[i]
	q.mem[i] = zero
}

func (q *DataQueue[T]) transfer(dst, src any) { *dst.(*T) = *src.(*T) }

func (q *DataQueue[T]) reset() { clear(q.mem) }

// NewDataQueue initializes q over attr.Mem, empty.
func NewDataQueue[T any](k *Kernel, q *DataQueue[T], attr QueueAttr[T]) error {
	if q == nil || len(attr.Mem) == 0 {
		return ErrParameter
	}
	if q.handle != 0 {
		return ErrParameter
	}
	*q = DataQueue[T]{
		queueCore: queueCore{
			objectHeader: objectHeader{k: k, kind: KindDataQueue, name: attr.Name, attr: attr.Attr},
		},
		mem: attr.Mem,
	}
	q.ring = q
	return resultErr(k.call(selCreate, 0, 0, 0, 0, q))
}

// Put appends v, waiting up to timeout ticks for space. A waiting getter
// receives v directly.
func (q *DataQueue[T]) Put(v T, timeout Ticks) error {
	if q.k == nil {
		return ErrParameter
	}
	return resultErr(q.k.call(selQueuePut, q.handle.word(), arch.Word(timeout), 0, 0, &v))
}

// Get removes the oldest element, waiting up to timeout ticks for one.
func (q *DataQueue[T]) Get(timeout Ticks) (T, error) {
	var v T
	if q.k == nil {
		return v, ErrParameter
	}
	err := resultErr(q.k.call(selQueueGet, q.handle.word(), arch.Word(timeout), 0, 0, &v))
	return v, err
}

// Reset discards the queued elements and lets waiting putters in.
func (q *DataQueue[T]) Reset() error {
	if q.k == nil {
		return ErrParameter
	}
	return resultErr(q.k.call(selQueueReset, q.handle.word(), 0, 0, 0, nil))
}

// Capacity returns the ring size.
func (q *DataQueue[T]) Capacity() int { return len(q.mem) }

// Len returns the number of queued elements.
func (q *DataQueue[T]) Len() int {
	if q.k == nil {
		return 0
	}
	var n int
	q.k.inspect(func() { n = q.count })
	return n
}

// Space returns the number of free slots.
func (q *DataQueue[T]) Space() int { return q.Capacity() - q.Len() }

// Delete retires q. Waiters on either side fail with ErrDeleted.
func (q *DataQueue[T]) Delete() error { return deleteObject(&q.objectHeader) }

func (q *queueCore) deleted(k *Kernel) {
	k.wakeAll(&q.putters, ErrDeleted)
	k.wakeAll(&q.getters, ErrDeleted)
}

func (q *queueCore) push(src any) {
	q.ring.store(q.in, src)
	q.in = (q.in + 1) % q.ring.size()
	q.count++
}

func (q *queueCore) pop(dst any) {
	q.ring.load(q.out, dst)
	q.out = (q.out + 1) % q.ring.size()
	q.count--
}

// admit moves waiting putters into free slots, oldest highest-priority
// first.
func (k *Kernel) admit(q *queueCore) {
	for q.count < q.ring.size() {
		t := q.putters.front()
		if t == nil {
			return
		}
		q.push(t.waitRef)
		k.wake(t, 0)
	}
}

func svcQueuePut(k *Kernel, m callMode, a *[4]arch.Word, ref any) arch.Word {
	timeout := Ticks(a[1])
	if !validTimeout(timeout) {
		return ErrParameter.word()
	}

	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.lookup(a[0], KindDataQueue)
	if st != StatusOK {
		return st.word()
	}
	q := o.(queueObject).qcore()
	if !q.ring.valid(ref) {
		return ErrParameter.word()
	}

	if t := q.getters.front(); t != nil {
		q.ring.transfer(t.waitRef, ref)
		k.wake(t, 0)
		return 0
	}
	if q.count < q.ring.size() {
		q.push(ref)
		return 0
	}
	if timeout == NoWait {
		return ErrResource.word()
	}
	if st := checkWait(m, timeout); st != StatusOK {
		return st.word()
	}
	k.current.waitRef = ref
	k.block(&q.putters, WaitQueuePut, o, timeout, ErrTimeout)
	return 0
}

func svcQueueGet(k *Kernel, m callMode, a *[4]arch.Word, ref any) arch.Word {
	timeout := Ticks(a[1])
	if !validTimeout(timeout) {
		return ErrParameter.word()
	}

	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.lookup(a[0], KindDataQueue)
	if st != StatusOK {
		return st.word()
	}
	q := o.(queueObject).qcore()
	if !q.ring.valid(ref) {
		return ErrParameter.word()
	}

	if q.count > 0 {
		q.pop(ref)
		k.admit(q)
		return 0
	}
	if timeout == NoWait {
		return ErrResource.word()
	}
	if st := checkWait(m, timeout); st != StatusOK {
		return st.word()
	}
	k.current.waitRef = ref
	k.block(&q.getters, WaitQueueGet, o, timeout, ErrTimeout)
	return 0
}

func svcQueueReset(k *Kernel, _ callMode, a *[4]arch.Word, _ any) arch.Word {
	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.lookup(a[0], KindDataQueue)
	if st != StatusOK {
		return st.word()
	}
	q := o.(queueObject).qcore()
	q.ring.reset()
	q.in, q.out, q.count = 0, 0, 0
	k.admit(q)
	return 0
}

func (q *queueCore) summary() string {
	return fmt.Sprintf("len %d/%d putters %d getters %d", q.count, q.ring.size(), q.putters.len(), q.getters.len())
}
