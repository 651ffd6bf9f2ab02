package kernel

// threadList is an intrusive FIFO of threads. A thread sits on at most one
// threadList (a ready level or an object's wait list) at a time.
type threadList struct {
	head, tail *Thread
	n          int
}

func (l *threadList) empty() bool    { return l.head == nil }
func (l *threadList) len() int       { return l.n }
func (l *threadList) front() *Thread { return l.head }

func (l *threadList) pushBack(t *Thread) {
	t.list = l
	t.prev = l.tail
	t.next = nil
	if l.tail != nil {
		l.tail.next = t
	} else {
		l.head = t
	}
	l.tail = t
	l.n++
}

func (l *threadList) pushFront(t *Thread) {
	t.list = l
	t.prev = nil
	t.next = l.head
	if l.head != nil {
		l.head.prev = t
	} else {
		l.tail = t
	}
	l.head = t
	l.n++
}

// insertByPriority places t behind every thread of higher or equal
// priority: priority order, arrival order within a priority.
func (l *threadList) insertByPriority(t *Thread) {
	p := l.head
	for p != nil && p.prio >= t.prio {
		p = p.next
	}
	if p == nil {
		l.pushBack(t)
		return
	}
	t.list = l
	t.next = p
	t.prev = p.prev
	if p.prev != nil {
		p.prev.next = t
	} else {
		l.head = t
	}
	p.prev = t
	l.n++
}

func (l *threadList) remove(t *Thread) {
	if t.list != l {
		return
	}
	if t.prev != nil {
		t.prev.next = t.next
	} else {
		l.head = t.next
	}
	if t.next != nil {
		t.next.prev = t.prev
	} else {
		l.tail = t.prev
	}
	t.next, t.prev, t.list = nil, nil, nil
	l.n--
}

func (l *threadList) popFront() *Thread {
	t := l.head
	if t != nil {
		l.remove(t)
	}
	return t
}

// tnode is an entry on the timeout list. It is embedded in threads and
// timers; exactly one of thread and timer is set.
type tnode struct {
	deadline   Ticks
	next, prev *tnode
	armed      bool

	thread *Thread
	timer  *Timer
}

// timeoutList keeps armed nodes sorted by deadline. Nodes with equal
// deadlines expire in arming order.
type timeoutList struct {
	head *tnode
}

func (l *timeoutList) insert(n *tnode, deadline Ticks) {
	n.deadline = deadline
	n.armed = true

	var prev *tnode
	p := l.head
	for p != nil && !before(deadline, p.deadline) {
		prev, p = p, p.next
	}
	n.prev, n.next = prev, p
	if prev != nil {
		prev.next = n
	} else {
		l.head = n
	}
	if p != nil {
		p.prev = n
	}
}

func (l *timeoutList) remove(n *tnode) {
	if !n.armed {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	n.next, n.prev, n.armed = nil, nil, false
}

// expired pops the first node whose deadline is not after now.
func (l *timeoutList) expired(now Ticks) *tnode {
	n := l.head
	if n == nil || before(now, n.deadline) {
		return nil
	}
	l.remove(n)
	return n
}
