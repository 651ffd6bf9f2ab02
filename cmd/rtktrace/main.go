//go:build !tinygo

// Command rtktrace runs the demo board on a simulated core for a fixed
// number of ticks and renders the recorded schedule as a PNG timeline.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"rtk/app"
	"rtk/hal"
	"rtk/kernel"
	"rtk/monitor"
)

const (
	defaultOutPath = "schedule.png"
	settleTimeout  = 5 * time.Second
)

type options struct {
	arch    string
	ticks   uint
	span    uint
	out     string
	width   int
	input   string
	rr      uint
	verbose bool
}

func main() {
	var opt options
	flag.StringVar(&opt.arch, "arch", "cortex-m", "Core to run on ("+strings.Join(app.Arches(), ", ")+").")
	flag.UintVar(&opt.ticks, "ticks", 2000, "Ticks to run.")
	flag.UintVar(&opt.span, "span", 0, "Ticks to draw, ending at the last tick (0 = all).")
	flag.StringVar(&opt.out, "out", defaultOutPath, "Output PNG path.")
	flag.IntVar(&opt.width, "width", 1200, "Image width in pixels.")
	flag.StringVar(&opt.input, "input", "", `Console input typed before the first tick, e.g. "ps\n".`)
	flag.UintVar(&opt.rr, "rr", 0, "Round-robin time slice in ticks (0 = off).")
	flag.BoolVar(&opt.verbose, "v", false, "Print the board log.")
	flag.Parse()

	if opt.ticks == 0 {
		fmt.Fprintln(os.Stderr, "error: -ticks must be positive")
		os.Exit(2)
	}
	if opt.out == "" {
		fmt.Fprintln(os.Stderr, "error: -out is required")
		os.Exit(2)
	}

	if err := run(opt); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(opt options) error {
	var logw io.Writer = io.Discard
	if opt.verbose {
		logw = os.Stdout
	}
	sys, err := app.New(hal.NewWriter(logw), app.Config{
		Arch:       opt.arch,
		RoundRobin: kernel.Ticks(opt.rr),
		TraceLimit: int(opt.ticks) * 8,
	})
	if err != nil {
		return err
	}
	if err := sys.Start(); err != nil {
		return err
	}
	for _, b := range []byte(unescape(opt.input)) {
		sys.Input(b)
	}
	if !sys.Settle(settleTimeout) {
		return fmt.Errorf("core did not settle after start")
	}

	for i := uint(0); i < opt.ticks; i++ {
		sys.Tick()
		if !sys.Settle(settleTimeout) {
			return fmt.Errorf("core did not settle at tick %d", i+1)
		}
		if sys.Kernel().InFatal() {
			return fmt.Errorf("kernel stopped at tick %d", i+1)
		}
	}

	rec := sys.Recorder()
	span := kernel.Ticks(opt.span)
	if span == 0 || span > kernel.Ticks(opt.ticks) {
		span = kernel.Ticks(opt.ticks)
	}
	tl := monitor.Window(rec.Segments(), rec.Now(), span)

	f, err := os.Create(opt.out)
	if err != nil {
		return fmt.Errorf("create %q: %w", opt.out, err)
	}
	title := fmt.Sprintf("%s, %d threads", sys.Port().Name(), len(tl.Lanes))
	if err := monitor.RenderPNG(f, tl, monitor.PNGOptions{Width: opt.width, Title: title}); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", opt.out, err)
	}

	switches, ticks := rec.Counts()
	st := sys.Stats()
	fmt.Printf("%s: %d switches over %d ticks, %d samples (%d dropped), wrote %s\n",
		sys.Port().Name(), switches, ticks, st.Samples, st.Dropped, opt.out)
	return nil
}

// unescape turns the \n, \r and \t escapes of a flag value into bytes.
func unescape(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\r`, "\r", `\t`, "\t").Replace(s)
}
