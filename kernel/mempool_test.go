package kernel

import (
	"errors"
	"testing"
)

type sample struct {
	seq   uint32
	value int16
}

func TestMemoryPoolExhaustion(t *testing.T) {
	s := newTestSystem(t, Config{})

	var pool MemoryPool[sample]
	mem := make([]PoolSlot[sample], 4)
	if err := NewMemoryPool(s.k, &pool, PoolAttr[sample]{Name: "samples", Mem: mem}); err != nil {
		t.Fatalf("NewMemoryPool: %v", err)
	}

	seen := map[int]bool{}
	var blocks []Block[sample]
	for i := 0; i < pool.Capacity(); i++ {
		b, err := pool.Alloc(NoWait)
		if err != nil {
			t.Fatalf("Alloc %d: %v", i, err)
		}
		if seen[b.Index()] {
			t.Fatalf("block %d handed out twice", b.Index())
		}
		seen[b.Index()] = true
		b.Ptr().seq = uint32(i)
		blocks = append(blocks, b)
	}
	if _, err := pool.Alloc(NoWait); !errors.Is(err, ErrResource) {
		t.Fatalf("Alloc on empty pool = %v, want ErrResource", err)
	}
	if _, err := pool.Alloc(10); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("blocking Alloc before Start = %v, want ErrNotRunning", err)
	}
	for i, b := range blocks {
		if b.Ptr().seq != uint32(i) {
			t.Fatalf("block %d holds seq %d, want %d", b.Index(), b.Ptr().seq, i)
		}
	}

	if err := pool.Free(blocks[1]); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if got := pool.Available(); got != 1 {
		t.Fatalf("Available() = %d, want 1", got)
	}
	b, err := pool.Alloc(NoWait)
	if err != nil || b.Index() != blocks[1].Index() {
		t.Fatalf("Alloc after Free = block %d, %v, want block %d", b.Index(), err, blocks[1].Index())
	}
}

func TestMemoryPoolRejectsBadFree(t *testing.T) {
	s := newTestSystem(t, Config{})

	var a, b MemoryPool[sample]
	if err := NewMemoryPool(s.k, &a, PoolAttr[sample]{Mem: make([]PoolSlot[sample], 2)}); err != nil {
		t.Fatalf("NewMemoryPool(a): %v", err)
	}
	if err := NewMemoryPool(s.k, &b, PoolAttr[sample]{Mem: make([]PoolSlot[sample], 2)}); err != nil {
		t.Fatalf("NewMemoryPool(b): %v", err)
	}

	blk, err := a.Alloc(NoWait)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := b.Free(blk); !errors.Is(err, ErrParameter) {
		t.Fatalf("Free to another pool = %v, want ErrParameter", err)
	}
	if err := a.Free(Block[sample]{}); !errors.Is(err, ErrParameter) {
		t.Fatalf("Free of zero Block = %v, want ErrParameter", err)
	}
	if err := a.Free(blk); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := a.Free(blk); !errors.Is(err, ErrParameter) {
		t.Fatalf("double Free = %v, want ErrParameter", err)
	}
	if got := a.Available(); got != 2 {
		t.Fatalf("Available() = %d after a rejected double free, want 2", got)
	}

	var empty MemoryPool[sample]
	if err := NewMemoryPool(s.k, &empty, PoolAttr[sample]{}); !errors.Is(err, ErrParameter) {
		t.Fatalf("NewMemoryPool without storage = %v, want ErrParameter", err)
	}
}

func TestMemoryPoolFreeHandsBlockToWaiter(t *testing.T) {
	s := newTestSystem(t, Config{})

	var pool MemoryPool[sample]
	if err := NewMemoryPool(s.k, &pool, PoolAttr[sample]{Mem: make([]PoolSlot[sample], 1)}); err != nil {
		t.Fatalf("NewMemoryPool: %v", err)
	}
	held, err := pool.Alloc(NoWait)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	var got Block[sample]
	var gotErr error
	var timedOut error
	var waiter, late Thread
	s.spawn(&waiter, "waiter", 6, func() {
		got, gotErr = pool.Alloc(WaitForever)
	})
	s.spawn(&late, "late", 3, func() {
		_, timedOut = pool.Alloc(20)
	})
	s.start()

	s.irq(20, 2, func() {
		if err := pool.Free(held); err != nil {
			t.Errorf("Free: %v", err)
		}
	})
	s.raise(20)

	if gotErr != nil {
		t.Fatalf("waiting Alloc: %v", gotErr)
	}
	if !got.Valid() || got.Index() != held.Index() {
		t.Fatalf("waiter got block %d, want the freed block %d", got.Index(), held.Index())
	}
	if got := pool.Available(); got != 0 {
		t.Fatalf("Available() = %d, want 0: the block went straight to the waiter", got)
	}

	s.tick(20)
	if !errors.Is(timedOut, ErrTimeout) {
		t.Fatalf("second waiter = %v, want ErrTimeout", timedOut)
	}
}

func TestMemoryPoolDeleteWakesWaiters(t *testing.T) {
	s := newTestSystem(t, Config{})

	var pool MemoryPool[sample]
	if err := NewMemoryPool(s.k, &pool, PoolAttr[sample]{Mem: make([]PoolSlot[sample], 1)}); err != nil {
		t.Fatalf("NewMemoryPool: %v", err)
	}
	if _, err := pool.Alloc(NoWait); err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	var werr error
	var th Thread
	s.spawn(&th, "waiter", 5, func() { _, werr = pool.Alloc(WaitForever) })
	s.start()

	s.irq(20, 2, func() { _ = pool.Delete() })
	s.raise(20)
	if !errors.Is(werr, ErrDeleted) {
		t.Fatalf("Alloc on deleted pool = %v, want ErrDeleted", werr)
	}
}

func TestMemoryPoolAllocRejectsTimeoutsPastHalfRange(t *testing.T) {
	s := newTestSystem(t, Config{})

	var pool MemoryPool[sample]
	mem := make([]PoolSlot[sample], 1)
	if err := NewMemoryPool(s.k, &pool, PoolAttr[sample]{Mem: mem}); err != nil {
		t.Fatalf("NewMemoryPool: %v", err)
	}
	if _, err := pool.Alloc(NoWait); err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	var bad error
	returned := false
	var th Thread
	s.spawn(&th, "waiter", 5, func() {
		_, bad = pool.Alloc(0x80000000)
		_, _ = pool.Alloc(MaxTimeout)
		returned = true
	})
	s.start()
	s.tick(2)

	if !errors.Is(bad, ErrParameter) {
		t.Fatalf("Alloc(0x80000000) = %v, want ErrParameter", bad)
	}
	if returned {
		t.Fatal("Alloc(MaxTimeout) returned within 2 ticks")
	}
}
