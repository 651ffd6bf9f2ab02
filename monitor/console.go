package monitor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"

	"rtk/kernel"
)

const maxLine = 128

// Logger receives one line per call.
type Logger interface {
	WriteLineString(s string)
}

// Console is a line-oriented kernel monitor. It runs as a kernel thread and
// reads its input, a byte at a time, from a data queue that a receive
// interrupt fills.
type Console struct {
	k   *kernel.Kernel
	in  *kernel.DataQueue[byte]
	out Logger
	rec *Recorder
	reg *registry

	line   []byte
	prompt string
}

// ConsoleConfig wires a console. Recorder may be nil.
type ConsoleConfig struct {
	Kernel   *kernel.Kernel
	Input    *kernel.DataQueue[byte]
	Output   Logger
	Recorder *Recorder
	Prompt   string
}

func NewConsole(cfg ConsoleConfig) (*Console, error) {
	if cfg.Kernel == nil || cfg.Output == nil {
		return nil, errors.New("console: kernel and output are required")
	}
	if cfg.Prompt == "" {
		cfg.Prompt = "rtk> "
	}
	c := &Console{
		k:      cfg.Kernel,
		in:     cfg.Input,
		out:    cfg.Output,
		rec:    cfg.Recorder,
		prompt: cfg.Prompt,
		line:   make([]byte, 0, maxLine),
	}
	if err := c.initRegistry(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Console) initRegistry() error {
	r := newRegistry()
	for _, register := range []func(r *registry) error{
		registerKernelCommands,
		registerThreadCommands,
		registerTraceCommands,
	} {
		if err := register(r); err != nil {
			return err
		}
	}
	c.reg = r
	return nil
}

// Run is the console thread's entry point. It never returns while the input
// queue is live.
func (c *Console) Run(any) {
	if c.in == nil {
		return
	}
	c.out.WriteLineString(c.prompt)
	for {
		b, err := c.in.Get(kernel.WaitForever)
		if err != nil {
			c.printf("console: input: %v", err)
			return
		}
		c.Feed(b)
	}
}

// Feed handles one input byte: line editing, completion and execution on
// end of line.
func (c *Console) Feed(b byte) {
	switch b {
	case '\r', '\n':
		line := string(c.line)
		c.line = c.line[:0]
		if strings.TrimSpace(line) == "" {
			return
		}
		if err := c.Exec(line); err != nil {
			c.printf("error: %v", err)
		}
		c.out.WriteLineString(c.prompt)
	case 0x08, 0x7F:
		if n := len(c.line); n > 0 {
			c.line = c.line[:n-1]
		}
	case '\t':
		c.complete()
	case 0x15: // ^U
		c.line = c.line[:0]
	default:
		if b < 0x20 || len(c.line) >= maxLine {
			return
		}
		c.line = append(c.line, b)
	}
}

// complete extends a partial command name when exactly one command matches,
// and lists the candidates otherwise.
func (c *Console) complete() {
	s := string(c.line)
	if strings.ContainsAny(s, " \t") {
		return
	}
	m := c.reg.matches(s)
	switch len(m) {
	case 0:
	case 1:
		c.line = append(c.line[:0], m[0]+" "...)
	default:
		c.out.WriteLineString(strings.Join(m, "  "))
	}
}

// Exec runs one command line.
func (c *Console) Exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	cmd, ok := c.reg.resolve(args[0])
	if !ok {
		return fmt.Errorf("%s: command not found", args[0])
	}
	return cmd.Run(c, args[1:])
}

func (c *Console) printf(format string, args ...any) {
	c.out.WriteLineString(fmt.Sprintf(format, args...))
}
