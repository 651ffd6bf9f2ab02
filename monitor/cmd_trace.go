package monitor

import (
	"errors"
	"strconv"
)

const defaultTraceLines = 16

func registerTraceCommands(r *registry) error {
	return r.register(command{
		Name:  "trace",
		Usage: "trace [n|reset]",
		Desc:  "Show the last n schedule segments.",
		Run:   cmdTrace,
	})
}

func cmdTrace(c *Console, args []string) error {
	if c.rec == nil {
		return errors.New("trace: no recorder attached")
	}
	n := defaultTraceLines
	switch {
	case len(args) == 1 && args[0] == "reset":
		c.rec.Reset()
		return nil
	case len(args) == 1:
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return errors.New("usage: trace [n|reset]")
		}
		n = v
	case len(args) > 1:
		return errors.New("usage: trace [n|reset]")
	}

	switches, ticks := c.rec.Counts()
	c.printf("%d switches over %d ticks", switches, ticks)
	for _, s := range c.rec.Last(n) {
		c.printf("%8d..%-8d %-12s prio %d", s.Start, s.End, s.Thread, s.Priority)
	}
	return nil
}
