//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"rtk/app"
	"rtk/hal"
	"rtk/kernel"
)

func main() {
	var headless hal.HeadlessConfig
	var cfg app.Config
	var headlessMode bool
	var rr uint
	flag.BoolVar(&headlessMode, "headless", false, "Run without a window.")
	flag.IntVar(&headless.Hz, "hz", 1000, "Tick rate.")
	flag.Uint64Var(&headless.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	flag.BoolVar(&headless.Console, "console", false, "Read console input from the terminal in headless mode.")
	flag.StringVar(&cfg.Arch, "arch", "cortex-m", "Core to run on ("+strings.Join(app.Arches(), ", ")+").")
	flag.UintVar(&rr, "rr", 0, "Round-robin time slice in ticks (0 = off).")
	flag.BoolVar(&cfg.StackCheck, "stack-check", true, "Check thread stack guards on every switch.")
	flag.Parse()

	cfg.TickHz = uint32(headless.Hz)
	cfg.RoundRobin = kernel.Ticks(rr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	if headlessMode {
		err = hal.RunHeadless(ctx, app.Board(cfg), headless)
	} else {
		err = hal.RunWindow(ctx, app.Board(cfg), hal.WindowConfig{Hz: headless.Hz})
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
