package kernel

import (
	"sync"
	"sync/atomic"
)

// FatalInfo describes the condition that stopped the kernel.
type FatalInfo struct {
	Thread Handle
	Name   string
	Reason error
	Stack  []byte
}

type fatalState struct {
	active  atomic.Bool
	once    sync.Once
	handler atomic.Value // func(FatalInfo)
}

// InFatal reports whether the kernel has stopped on a fatal condition.
func (k *Kernel) InFatal() bool {
	return k.fatal.active.Load()
}

// SetFatalHandler installs the handler run on the first fatal condition.
//
// The handler is invoked at most once, on the core, with interrupts masked.
// It must not call into the kernel. The core halts when it returns.
func (k *Kernel) SetFatalHandler(fn func(FatalInfo)) {
	k.fatal.handler.Store(fn)
}

func (k *Kernel) raiseFatal(reason error) {
	k.fatal.once.Do(func() {
		k.fatal.active.Store(true)
		k.port.EnterCritical()

		info := FatalInfo{Reason: reason, Stack: captureStack()}
		if t := k.current; t != nil {
			info.Thread = t.handle
			info.Name = t.name
		}
		k.logf("kernel: fatal: %v (thread %q)", reason, info.Name)
		if v := k.fatal.handler.Load(); v != nil {
			if fn, ok := v.(func(FatalInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}

// die reports a fatal condition detected by the kernel itself and halts.
func (k *Kernel) die(reason error) {
	k.raiseFatal(reason)
	k.port.Halt()
}
