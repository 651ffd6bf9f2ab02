package arch

// Context is the saved execution state of one thread.
//
// Stack and SP describe the register frame laid out by BuildInitialFrame.
// Ret is the caller's result register: a trap returns it, and a kernel
// waking a blocked thread writes the outcome of the wait into it.
type Context struct {
	Stack      []byte
	SP         int
	Ret        Word
	Privileged bool

	resume chan bool // true resumes, false retires
	dead   bool
}

// Dead reports whether the context was killed.
func (c *Context) Dead() bool { return c.dead }
