package kernel

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestHighestPriorityRunsFirst(t *testing.T) {
	s := newTestSystem(t, Config{})

	var order []string
	var lo, mid, hi Thread
	s.spawn(&lo, "lo", 3, func() { order = append(order, "lo") })
	s.spawn(&mid, "mid", 7, func() { order = append(order, "mid") })
	s.spawn(&hi, "hi", 12, func() { order = append(order, "hi") })
	s.start()

	want := []string{"hi", "mid", "lo"}
	if !equalStrings(order, want) {
		t.Fatalf("run order = %v, want %v", order, want)
	}
	for _, th := range []*Thread{&lo, &mid, &hi} {
		if th.State() != ThreadTerminated {
			t.Fatalf("%s state = %s, want terminated", th.Name(), th.State())
		}
	}
}

func TestCreatingHigherPriorityThreadPreempts(t *testing.T) {
	s := newTestSystem(t, Config{})

	var order []string
	var parent, child Thread
	s.spawn(&parent, "parent", 5, func() {
		order = append(order, "parent:before")
		err := s.k.NewThread(&child, func(any) {
			order = append(order, "child")
		}, nil, ThreadAttr{Name: "child", Stack: make([]byte, 512), Priority: 9})
		if err != nil {
			t.Errorf("NewThread: %v", err)
		}
		order = append(order, "parent:after")
	})
	s.start()

	want := []string{"parent:before", "child", "parent:after"}
	if !equalStrings(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestYieldRotatesEqualPriority(t *testing.T) {
	s := newTestSystem(t, Config{})

	var order []string
	var a, b Thread
	worker := func(name string) func() {
		return func() {
			for i := 0; i < 3; i++ {
				order = append(order, name)
				if err := s.k.Yield(); err != nil {
					t.Errorf("Yield: %v", err)
				}
			}
		}
	}
	s.spawn(&a, "a", 4, worker("a"))
	s.spawn(&b, "b", 4, worker("b"))
	s.start()

	want := []string{"a", "b", "a", "b", "a", "b"}
	if !equalStrings(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestYieldWithoutPeerKeepsRunning(t *testing.T) {
	s := newTestSystem(t, Config{})

	var order []string
	var hi, lo Thread
	s.spawn(&hi, "hi", 8, func() {
		order = append(order, "hi:1")
		_ = s.k.Yield()
		order = append(order, "hi:2")
	})
	s.spawn(&lo, "lo", 2, func() { order = append(order, "lo") })
	s.start()

	want := []string{"hi:1", "hi:2", "lo"}
	if !equalStrings(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

// sliceLog records every switch as "t<tick>-><thread>".
type sliceLog struct{ switches []string }

func (l *sliceLog) TraceSwitch(now Ticks, to *Thread) {
	l.switches = append(l.switches, fmt.Sprintf("t%d->%s", now, to.Name()))
}
func (l *sliceLog) TraceTick(Ticks) {}

func TestRoundRobinQuantum(t *testing.T) {
	log := &sliceLog{}
	s := newTestSystem(t, Config{RoundRobin: 2, Tracer: log})

	done := make(chan struct{})
	spin := func(closeDone bool) func() {
		return func() {
			// Now opens an interrupt window on every pass.
			for s.k.Now() < 8 {
			}
			if closeDone {
				close(done)
			}
		}
	}
	var a, b Thread
	s.spawn(&a, "a", 4, spin(false))
	s.spawn(&b, "b", 4, spin(true))

	if err := s.k.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.After(settleTimeout)
	for running := true; running; {
		select {
		case <-done:
			running = false
		case <-deadline:
			t.Fatal("spinning threads never finished")
		default:
			s.port.Raise(s.k.cfg.TickVector)
			time.Sleep(time.Millisecond)
		}
	}
	s.settle()

	want := []string{"t0->a", "t2->b", "t4->a", "t6->b"}
	if len(log.switches) < len(want) || !equalStrings(log.switches[:len(want)], want) {
		t.Fatalf("switches = %v, want them to start with %v", log.switches, want)
	}
}

func TestSuspendResume(t *testing.T) {
	s := newTestSystem(t, Config{})

	var count int
	var worker Thread
	s.spawn(&worker, "worker", 3, func() {
		for {
			count++
			_ = s.k.Delay(1)
		}
	})
	s.start()

	// The worker sleeps between ticks and Suspend only takes a ready or
	// running thread, so let a tick preempt this handler first.
	s.irq(22, 0, func() {
		s.port.Raise(s.k.cfg.TickVector)
		s.port.ExitCritical(s.port.EnterCritical())
		if err := worker.Suspend(); err != nil {
			t.Errorf("Suspend: %v", err)
		}
		if err := worker.Suspend(); !errors.Is(err, ErrResource) {
			t.Errorf("second Suspend = %v, want ErrResource", err)
		}
	})
	s.irq(21, 2, func() {
		if err := worker.Resume(); err != nil {
			t.Errorf("Resume: %v", err)
		}
	})

	s.raise(22)
	if worker.State() != ThreadBlocked {
		t.Fatalf("worker state = %s, want blocked", worker.State())
	}
	frozen := count
	s.tick(3)
	if count != frozen {
		t.Fatalf("suspended worker ran: count %d -> %d", frozen, count)
	}

	s.raise(21)
	if count != frozen+1 {
		t.Fatalf("count = %d after Resume, want %d", count, frozen+1)
	}
	s.tick(2)
	if count != frozen+3 {
		t.Fatalf("count = %d two ticks after Resume, want %d", count, frozen+3)
	}
}

func TestSetPriorityReordersWaiters(t *testing.T) {
	s := newTestSystem(t, Config{})

	var sem Semaphore
	if err := s.k.NewSemaphore(&sem, 0, 3, SemaphoreAttr{Name: "gate"}); err != nil {
		t.Fatalf("NewSemaphore: %v", err)
	}

	var order []string
	var a, b Thread
	waiter := func(name string) func() {
		return func() {
			if err := sem.Acquire(WaitForever); err != nil {
				t.Errorf("%s Acquire: %v", name, err)
			}
			order = append(order, name)
		}
	}
	s.spawn(&a, "a", 5, waiter("a"))
	s.spawn(&b, "b", 4, waiter("b"))
	s.start()

	s.irq(20, 2, func() {
		if err := b.SetPriority(6); err != nil {
			t.Errorf("SetPriority: %v", err)
		}
		_ = sem.Release()
		_ = sem.Release()
	})
	s.raise(20)

	want := []string{"b", "a"}
	if !equalStrings(order, want) {
		t.Fatalf("wake order = %v, want %v", order, want)
	}
}

func TestTerminateBlockedThreadLeavesWaitList(t *testing.T) {
	s := newTestSystem(t, Config{})

	var sem Semaphore
	if err := s.k.NewSemaphore(&sem, 0, 1, SemaphoreAttr{}); err != nil {
		t.Fatalf("NewSemaphore: %v", err)
	}
	var victim Thread
	s.spawn(&victim, "victim", 5, func() {
		_ = sem.Acquire(100)
		t.Error("terminated thread resumed")
	})
	s.start()
	if got := sem.Waiting(); got != 1 {
		t.Fatalf("Waiting() = %d, want 1", got)
	}

	s.irq(20, 2, func() {
		if err := victim.Terminate(); err != nil {
			t.Errorf("Terminate: %v", err)
		}
	})
	s.raise(20)

	if got := sem.Waiting(); got != 0 {
		t.Fatalf("Waiting() = %d after Terminate, want 0", got)
	}
	if victim.State() != ThreadTerminated {
		t.Fatalf("victim state = %s, want terminated", victim.State())
	}
	// Running past the old timeout must not touch the dead thread.
	s.tick(120)

	var resumeErr error
	s.irq(21, 2, func() { resumeErr = victim.Resume() })
	s.raise(21)
	if !errors.Is(resumeErr, ErrParameter) {
		t.Fatalf("Resume of terminated thread = %v, want ErrParameter", resumeErr)
	}
}

func TestThreadsSnapshot(t *testing.T) {
	s := newTestSystem(t, Config{StackCheck: true})

	var sleeper Thread
	s.spawn(&sleeper, "sleeper", 5, func() { _ = s.k.Delay(50) })
	s.start()

	infos := s.k.Threads()
	byName := map[string]ThreadInfo{}
	for _, in := range infos {
		byName[in.Name] = in
	}
	idle, ok := byName["idle"]
	if !ok {
		t.Fatalf("Threads() = %v, want an idle thread", infos)
	}
	if idle.Priority != 0 || idle.State != ThreadRunning {
		t.Fatalf("idle = %+v, want priority 0 running", idle)
	}
	sl := byName["sleeper"]
	if sl.State != ThreadBlocked || sl.Wait != WaitDelay || !sl.Timed || sl.Wake != 50 {
		t.Fatalf("sleeper = %+v, want blocked on delay until 50", sl)
	}
	if sl.StackUsed <= 0 || sl.StackUsed > sl.StackSize {
		t.Fatalf("sleeper stack used %d of %d", sl.StackUsed, sl.StackSize)
	}
}

func TestNewThreadRejectsBadAttributes(t *testing.T) {
	s := newTestSystem(t, Config{})
	fn := func(any) {}

	cases := []struct {
		name string
		attr ThreadAttr
	}{
		{"priority zero", ThreadAttr{Stack: make([]byte, 256), Priority: 0}},
		{"priority too high", ThreadAttr{Stack: make([]byte, 256), Priority: MaxPriority + 1}},
		{"no stack", ThreadAttr{Priority: 1}},
		{"stack too small", ThreadAttr{Stack: make([]byte, 8), Priority: 1}},
	}
	for _, tc := range cases {
		var th Thread
		if err := s.k.NewThread(&th, fn, nil, tc.attr); !errors.Is(err, ErrParameter) {
			t.Fatalf("%s: NewThread = %v, want ErrParameter", tc.name, err)
		}
		if th.Handle() != 0 {
			t.Fatalf("%s: failed thread holds handle %#x", tc.name, th.Handle())
		}
	}
	if got := s.k.Stats().Objects; got != 0 {
		t.Fatalf("Objects = %d after failed creates, want 0", got)
	}
}

func TestStartTwice(t *testing.T) {
	s := newTestSystem(t, Config{})
	s.start()
	if err := s.k.Start(); !errors.Is(err, ErrResource) {
		t.Fatalf("second Start = %v, want ErrResource", err)
	}
}
