package monitor

import (
	"errors"
	"fmt"
	"strconv"

	"rtk/arch"
	"rtk/internal/buildinfo"
)

func registerKernelCommands(r *registry) error {
	for _, cmd := range []command{
		{Name: "help", Aliases: []string{"?"}, Usage: "help [cmd]", Desc: "List commands.", Run: cmdHelp},
		{Name: "ticks", Usage: "ticks", Desc: "Show the kernel tick counter.", Run: cmdTicks},
		{Name: "uptime", Usage: "uptime", Desc: "Show time since start.", Run: cmdUptime},
		{Name: "stats", Usage: "stats", Desc: "Show switch, interrupt and trap counters.", Run: cmdStats},
		{Name: "objs", Aliases: []string{"sem"}, Usage: "objs [kind]", Desc: "List kernel objects.", Run: cmdObjs},
		{Name: "irq", Usage: "irq <vector>", Desc: "Raise an interrupt line.", Run: cmdIRQ},
		{Name: "version", Usage: "version", Desc: "Show build version.", Run: cmdVersion},
	} {
		if err := r.register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func cmdHelp(c *Console, args []string) error {
	if len(args) == 1 {
		cmd, ok := c.reg.resolve(args[0])
		if !ok {
			return fmt.Errorf("help: unknown command %q", args[0])
		}
		c.printf("%s - %s", cmd.Usage, cmd.Desc)
		return nil
	}
	for _, name := range c.reg.names() {
		cmd, _ := c.reg.resolve(name)
		c.printf("%-22s %s", cmd.Usage, cmd.Desc)
	}
	return nil
}

func cmdTicks(c *Console, _ []string) error {
	c.printf("%d", c.k.Now())
	return nil
}

func cmdUptime(c *Console, _ []string) error {
	c.printf("up %s (%d ticks at %d Hz)", c.k.Uptime(), c.k.Now(), c.k.Config().TickHz)
	return nil
}

func cmdStats(c *Console, _ []string) error {
	st := c.k.Stats()
	c.printf("port %s: switches %d interrupts %d traps %d objects %d",
		c.k.Port().Name(), st.Switches, st.Interrupts, st.Traps, st.Objects)
	return nil
}

func cmdObjs(c *Console, args []string) error {
	kind := ""
	if len(args) == 1 {
		kind = args[0]
	} else if len(args) > 1 {
		return errors.New("usage: objs [kind]")
	}
	for _, o := range c.k.Objects() {
		if kind != "" && o.Kind.String() != kind {
			continue
		}
		c.printf("%#08x %-10s %-12q %s", uint32(o.Handle), o.Kind, o.Name, o.State)
	}
	return nil
}

func cmdIRQ(c *Console, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: irq <vector>")
	}
	v, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil || v >= arch.MaxVectors {
		return fmt.Errorf("irq: invalid vector %q", args[0])
	}
	c.k.Port().Raise(arch.Vector(v))
	return nil
}

func cmdVersion(c *Console, _ []string) error {
	c.printf("%s", buildinfo.String())
	return nil
}
