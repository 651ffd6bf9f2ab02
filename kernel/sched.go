package kernel

import (
	"math/bits"

	"rtk/arch"
)

// readyQueue holds one FIFO per priority level and a bitmap of the
// non-empty levels.
type readyQueue struct {
	levels [MaxPriority + 1]threadList
	bitmap uint64
}

// push queues t at its priority level; front puts it ahead of its peers.
func (q *readyQueue) push(t *Thread, front bool) {
	l := &q.levels[t.prio]
	if front {
		l.pushFront(t)
	} else {
		l.pushBack(t)
	}
	q.bitmap |= 1 << t.prio
}

func (q *readyQueue) remove(t *Thread) {
	l := &q.levels[t.prio]
	l.remove(t)
	if l.empty() {
		q.bitmap &^= 1 << t.prio
	}
}

// peek returns the thread that would run next, or nil.
func (q *readyQueue) peek() *Thread {
	if q.bitmap == 0 {
		return nil
	}
	return q.levels[bits.Len64(q.bitmap)-1].front()
}

func (q *readyQueue) pop() *Thread {
	t := q.peek()
	if t != nil {
		q.remove(t)
	}
	return t
}

// hasPeer reports whether another thread is ready at priority p.
func (q *readyQueue) hasPeer(p uint8) bool {
	return q.bitmap&(1<<p) != 0
}

// next applies a pending reschedule. The port calls it with interrupts
// masked once no handler is active.
func (k *Kernel) next() *arch.Context {
	cur := k.current
	yield := k.yieldReq
	k.yieldReq = false

	if cur.state == ThreadRunning {
		best := k.ready.peek()
		if best == nil || best.prio < cur.prio || (best.prio == cur.prio && !yield) {
			return &cur.ctx
		}
		// A preempted thread keeps its place at the head of its level; a
		// yielding one goes to the back.
		cur.state = ThreadReady
		k.ready.push(cur, !yield)
	}

	if k.cfg.StackCheck && cur.state != ThreadTerminated && !cur.stackIntact() {
		k.die(ErrStackOverflow)
	}

	t := k.ready.pop()
	t.state = ThreadRunning
	t.slice = k.cfg.RoundRobin
	k.current = t
	if k.cfg.Tracer != nil {
		k.cfg.Tracer.TraceSwitch(k.tick, t)
	}
	return &t.ctx
}

// preempt requests a reschedule if t should displace the running thread.
func (k *Kernel) preempt(t *Thread) {
	if !k.running {
		return
	}
	if cur := k.current; cur.state != ThreadRunning || t.prio > cur.prio {
		k.port.PendSwitch()
	}
}

// block parks the running thread. It is woken by wake, or by the timeout
// list after timeout ticks with timeoutResult in its result register. q may
// be nil for a pure delay. Interrupts must be masked.
func (k *Kernel) block(q *threadList, reason WaitReason, obj object, timeout Ticks, timeoutResult Status) {
	t := k.current
	t.state = ThreadBlocked
	t.wait = reason
	t.waitObj = obj
	t.ctx.Ret = timeoutResult.word()
	if q != nil {
		q.insertByPriority(t)
	}
	if timeout != WaitForever {
		k.timeouts.insert(&t.tn, k.tick+timeout)
	}
	k.port.PendSwitch()
}

// blockUntil parks the running thread until the absolute tick deadline.
func (k *Kernel) blockUntil(deadline Ticks) {
	t := k.current
	t.state = ThreadBlocked
	t.wait = WaitDelay
	t.ctx.Ret = 0
	k.timeouts.insert(&t.tn, deadline)
	k.port.PendSwitch()
}

// wake readies a blocked thread with result in its result register.
// Interrupts must be masked.
func (k *Kernel) wake(t *Thread, result arch.Word) {
	k.unlink(t)
	t.ctx.Ret = result
	t.state = ThreadReady
	k.ready.push(t, false)
	k.preempt(t)
}

// wakeAll wakes every waiter on q with result.
func (k *Kernel) wakeAll(q *threadList, result Status) {
	for t := q.front(); t != nil; t = q.front() {
		k.wake(t, result.word())
	}
}
