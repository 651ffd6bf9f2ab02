package kernel

import "rtk/arch"

const maxObjects = 128

// Handle names a live kernel object. It encodes a table slot and a
// generation, so a handle to a deleted object never aliases its successor.
// The zero Handle is invalid.
type Handle uint32

func makeHandle(idx int, gen uint16) Handle { return Handle(uint32(gen)<<16 | uint32(idx+1)) }

func (h Handle) index() int  { return int(h&0xFFFF) - 1 }
func (h Handle) gen() uint16 { return uint16(h >> 16) }

// Kind is the type of a kernel object.
type Kind uint8

const (
	KindNone Kind = iota
	KindThread
	KindSemaphore
	KindEventFlags
	KindMemoryPool
	KindDataQueue
	KindTimer
)

func (k Kind) String() string {
	switch k {
	case KindThread:
		return "thread"
	case KindSemaphore:
		return "semaphore"
	case KindEventFlags:
		return "eventflags"
	case KindMemoryPool:
		return "mempool"
	case KindDataQueue:
		return "dataqueue"
	case KindTimer:
		return "timer"
	default:
		return "none"
	}
}

// objectHeader is the part of every control block the object table knows
// about.
type objectHeader struct {
	k      *Kernel
	kind   Kind
	handle Handle
	name   string
	attr   uint32
}

func (h *objectHeader) hdr() *objectHeader { return h }

// Name returns the diagnostic label given at creation.
func (h *objectHeader) Name() string { return h.name }

// Handle returns the object's handle, or zero if it is not live.
func (h *objectHeader) Handle() Handle { return h.handle }

type object interface {
	hdr() *objectHeader
}

type objectSlot struct {
	gen uint16
	obj object
}

type objectTable struct {
	slots [maxObjects]objectSlot
	live  int
}

// register gives o a fresh handle. It fails with ErrNoMemory when every slot
// is taken.
func (tb *objectTable) register(o object) Status {
	for i := range tb.slots {
		s := &tb.slots[i]
		if s.obj != nil {
			continue
		}
		s.gen = (s.gen + 1) & 0x7FFF
		if s.gen == 0 {
			s.gen = 1
		}
		s.obj = o
		o.hdr().handle = makeHandle(i, s.gen)
		tb.live++
		return StatusOK
	}
	return ErrNoMemory
}

func (tb *objectTable) unregister(o object) {
	h := o.hdr()
	if i := h.handle.index(); i >= 0 && i < maxObjects && tb.slots[i].obj == o {
		tb.slots[i].obj = nil
		tb.live--
	}
	h.handle = 0
}

func (tb *objectTable) lookup(h Handle, kind Kind) (object, Status) {
	i := h.index()
	if i < 0 || i >= maxObjects {
		return nil, ErrParameter
	}
	s := &tb.slots[i]
	if s.obj == nil || s.gen != h.gen() || s.obj.hdr().kind != kind {
		return nil, ErrParameter
	}
	return s.obj, StatusOK
}

func (tb *objectTable) each(fn func(o object)) {
	for i := range tb.slots {
		if o := tb.slots[i].obj; o != nil {
			fn(o)
		}
	}
}

func (h Handle) word() arch.Word { return arch.Word(h) }

// ObjectInfo is a snapshot of one kernel object for diagnostics.
type ObjectInfo struct {
	Handle Handle
	Kind   Kind
	Name   string
	State  string
}

// summarizer is implemented by objects that can describe their state in a
// few words. Interrupts are masked when it is called.
type summarizer interface {
	summary() string
}

// Objects returns a snapshot of every live object in table order.
func (k *Kernel) Objects() []ObjectInfo {
	var out []ObjectInfo
	k.inspect(func() {
		k.objects.each(func(o object) {
			h := o.hdr()
			in := ObjectInfo{Handle: h.handle, Kind: h.kind, Name: h.name}
			if sm, ok := o.(summarizer); ok {
				in.State = sm.summary()
			}
			out = append(out, in)
		})
	})
	return out
}
