package kernel

import (
	"fmt"

	"rtk/arch"
)

// PoolSlot is one block of pool storage. Declare a []PoolSlot[T] with the
// number of blocks the pool should hold and hand it to NewMemoryPool.
type PoolSlot[T any] struct {
	v    T
	next int32
	used bool
}

// PoolAttr configures a memory pool. Mem is caller-owned storage.
type PoolAttr[T any] struct {
	Name string
	Attr uint32
	Mem  []PoolSlot[T]
}

// Block is an allocated pool block. It names its pool, so freeing it to a
// different pool, or twice, is rejected with ErrParameter.
type Block[T any] struct {
	pool *MemoryPool[T]
	idx  int32
}

// Ptr returns the block's storage, or nil for the zero Block.
func (b Block[T]) Ptr() *T {
	if b.pool == nil {
		return nil
	}
	return &b.pool.mem[b.idx].v
}

// Valid reports whether b came from an Alloc.
func (b Block[T]) Valid() bool { return b.pool != nil }

// Index returns the block's slot number within its pool.
func (b Block[T]) Index() int { return int(b.idx) }

// poolCore is the type-independent part of a memory pool.
type poolCore struct {
	objectHeader

	free    int32 // head of the free list, -1 when empty
	nfree   int
	waiters threadList
	slots   slotStore
}

func (p *poolCore) core() *poolCore { return p }

type slotStore interface {
	size() int
	nextFree(i int32) int32
	setNextFree(i, n int32)
	inUse(i int32) bool
	setInUse(i int32, used bool)
}

type poolObject interface {
	object
	core() *poolCore
}

// MemoryPool is a fixed-block allocator control block.
type MemoryPool[T any] struct {
	poolCore
	mem []PoolSlot[T]
}

func (p *MemoryPool[T]) size() int                   { return len(p.mem) }
func (p *MemoryPool[T]) nextFree(i int32) int32      { return p.mem[i].next }
func (p *MemoryPool[T]) setNextFree(i, n int32)      { p.mem[i].next = n }
func (p *MemoryPool[T]) inUse(i int32) bool          { return p.mem[i].used }
func (p *MemoryPool[T]) setInUse(i int32, used bool) { p.mem[i].used = used }

// NewMemoryPool initializes p over attr.Mem with every block free.
func NewMemoryPool[T any](k *Kernel, p *MemoryPool[T], attr PoolAttr[T]) error {
	if p == nil || len(attr.Mem) == 0 || len(attr.Mem) > 0x7FFFFFFF {
		return ErrParameter
	}
	if p.handle != 0 {
		return ErrParameter
	}
	*p = MemoryPool[T]{
		poolCore: poolCore{
			objectHeader: objectHeader{k: k, kind: KindMemoryPool, name: attr.Name, attr: attr.Attr},
		},
		mem: attr.Mem,
	}
	p.slots = p
	for i := range p.mem {
		p.mem[i] = PoolSlot[T]{next: int32(i + 1)}
	}
	p.mem[len(p.mem)-1].next = -1
	p.free = 0
	p.nfree = len(p.mem)
	return resultErr(k.call(selCreate, 0, 0, 0, 0, p))
}

// Alloc takes a free block, waiting up to timeout ticks for one.
func (p *MemoryPool[T]) Alloc(timeout Ticks) (Block[T], error) {
	if p.k == nil {
		return Block[T]{}, ErrParameter
	}
	w, err := result(p.k.call(selPoolAlloc, p.handle.word(), arch.Word(timeout), 0, 0, nil))
	if err != nil {
		return Block[T]{}, err
	}
	return Block[T]{pool: p, idx: int32(w)}, nil
}

// Free returns b to the pool, handing it straight to the highest-priority
// waiter if there is one.
func (p *MemoryPool[T]) Free(b Block[T]) error {
	if p.k == nil || b.pool != p {
		return ErrParameter
	}
	return resultErr(p.k.call(selPoolFree, p.handle.word(), arch.Word(b.idx), 0, 0, nil))
}

// Capacity returns the number of blocks.
func (p *MemoryPool[T]) Capacity() int { return len(p.mem) }

// Available returns the number of free blocks.
func (p *MemoryPool[T]) Available() int {
	if p.k == nil {
		return 0
	}
	var n int
	p.k.inspect(func() { n = p.nfree })
	return n
}

// Delete retires p. Waiters fail with ErrDeleted; outstanding blocks stay
// readable but can no longer be freed.
func (p *MemoryPool[T]) Delete() error { return deleteObject(&p.objectHeader) }

func (p *poolCore) deleted(k *Kernel) { k.wakeAll(&p.waiters, ErrDeleted) }

func svcPoolAlloc(k *Kernel, m callMode, a *[4]arch.Word, _ any) arch.Word {
	timeout := Ticks(a[1])
	if !validTimeout(timeout) {
		return ErrParameter.word()
	}

	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.lookup(a[0], KindMemoryPool)
	if st != StatusOK {
		return st.word()
	}
	p := o.(poolObject).core()
	if p.free >= 0 {
		i := p.free
		p.free = p.slots.nextFree(i)
		p.slots.setInUse(i, true)
		p.nfree--
		return arch.Word(i)
	}
	if timeout == NoWait {
		return ErrResource.word()
	}
	if st := checkWait(m, timeout); st != StatusOK {
		return st.word()
	}
	k.block(&p.waiters, WaitMemoryPool, o, timeout, ErrTimeout)
	return 0
}

func svcPoolFree(k *Kernel, _ callMode, a *[4]arch.Word, _ any) arch.Word {
	s := k.port.EnterCritical()
	defer k.port.ExitCritical(s)

	o, st := k.lookup(a[0], KindMemoryPool)
	if st != StatusOK {
		return st.word()
	}
	p := o.(poolObject).core()
	i := int32(a[1])
	if i < 0 || int(i) >= p.slots.size() || !p.slots.inUse(i) {
		return ErrParameter.word()
	}

	if t := p.waiters.front(); t != nil {
		// The block changes owner without passing through the free list.
		k.wake(t, arch.Word(i))
		return 0
	}
	p.slots.setInUse(i, false)
	p.slots.setNextFree(i, p.free)
	p.free = i
	p.nfree++
	return 0
}

func (p *poolCore) summary() string {
	return fmt.Sprintf("free %d/%d waiting %d", p.nfree, p.slots.size(), p.waiters.len())
}
