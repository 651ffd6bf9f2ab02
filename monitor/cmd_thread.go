package monitor

import (
	"errors"
	"fmt"
	"strconv"

	"rtk/kernel"
)

func registerThreadCommands(r *registry) error {
	for _, cmd := range []command{
		{Name: "ps", Aliases: []string{"threads"}, Usage: "ps", Desc: "List threads.", Run: cmdPs},
		{Name: "suspend", Usage: "suspend <thread>", Desc: "Suspend a ready or running thread.", Run: cmdSuspend},
		{Name: "resume", Usage: "resume <thread>", Desc: "Resume a suspended thread.", Run: cmdResume},
		{Name: "prio", Usage: "prio <thread> <1-63>", Desc: "Change a thread's priority.", Run: cmdPrio},
		{Name: "kill", Usage: "kill <thread>", Desc: "Terminate a thread.", Run: cmdKill},
	} {
		if err := r.register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func cmdPs(c *Console, _ []string) error {
	c.printf("%-10s %-12s %4s %-10s %-10s %s", "HANDLE", "NAME", "PRIO", "STATE", "WAIT", "STACK")
	for _, t := range c.k.Threads() {
		wait := "-"
		if t.State == kernel.ThreadBlocked {
			wait = t.Wait.String()
			if t.Timed {
				wait += "@" + strconv.FormatUint(uint64(t.Wake), 10)
			}
		}
		c.printf("%#08x   %-12s %4d %-10s %-10s %d/%d",
			uint32(t.Handle), t.Name, t.Priority, t.State, wait, t.StackUsed, t.StackSize)
	}
	return nil
}

// findThread resolves a thread by name or by handle.
func (c *Console) findThread(ref string) (*kernel.Thread, error) {
	var match []kernel.ThreadInfo
	for _, t := range c.k.Threads() {
		if t.Name == ref {
			match = append(match, t)
		}
	}
	if len(match) == 0 {
		if h, err := strconv.ParseUint(ref, 0, 32); err == nil {
			if t, ok := c.k.Lookup(kernel.Handle(h)); ok {
				return t, nil
			}
		}
		return nil, fmt.Errorf("no thread %q", ref)
	}
	if len(match) > 1 {
		return nil, fmt.Errorf("%d threads named %q, use a handle", len(match), ref)
	}
	t, ok := c.k.Lookup(match[0].Handle)
	if !ok {
		return nil, fmt.Errorf("thread %q exited", ref)
	}
	return t, nil
}

func threadCmd(name string, op func(t *kernel.Thread) error) cmdFunc {
	return func(c *Console, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <thread>", name)
		}
		t, err := c.findThread(args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := op(t); err != nil {
			return fmt.Errorf("%s %s: %w", name, args[0], err)
		}
		return nil
	}
}

var (
	cmdSuspend = threadCmd("suspend", (*kernel.Thread).Suspend)
	cmdResume  = threadCmd("resume", (*kernel.Thread).Resume)
	cmdKill    = threadCmd("kill", (*kernel.Thread).Terminate)
)

func cmdPrio(c *Console, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: prio <thread> <1-63>")
	}
	p, err := strconv.ParseUint(args[1], 10, 8)
	if err != nil {
		return fmt.Errorf("prio: invalid priority %q", args[1])
	}
	t, err := c.findThread(args[0])
	if err != nil {
		return fmt.Errorf("prio: %w", err)
	}
	if err := t.SetPriority(uint8(p)); err != nil {
		return fmt.Errorf("prio %s: %w", args[0], err)
	}
	return nil
}
