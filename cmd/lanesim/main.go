// Command lanesim replays an HCL scenario of updates against a set of roots,
// printing each render, yield, suspension and commit as it happens.
//
// Usage:
//
//	lanesim -scenario testdata/interrupt.hcl [-realtime] [-level debug]
//
// By default the scenario runs on virtual time, and completes immediately.
// With -realtime it runs on an event loop, in wall clock time.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet(`lanesim`, flag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		scenarioPath = flags.String(`scenario`, ``, `path to the HCL scenario file (required)`)
		realtime     = flags.Bool(`realtime`, false, `run on an event loop in wall clock time`)
		levelName    = flags.String(`level`, logiface.LevelInformational.String(), `log level`)
	)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *scenarioPath == `` {
		_, _ = fmt.Fprintln(stderr, `lanesim: -scenario is required`)
		flags.Usage()
		return 2
	}
	if flags.NArg() != 0 {
		_, _ = fmt.Fprintf(stderr, "lanesim: unexpected arguments: %q\n", flags.Args())
		return 2
	}
	level, ok := parseLevel(*levelName)
	if !ok {
		_, _ = fmt.Fprintf(stderr, "lanesim: unknown log level %q\n", *levelName)
		return 2
	}

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(stderr)),
		stumpy.L.WithLevel(level),
	).Logger()

	sc, err := loadScenario(*scenarioPath)
	if err == nil {
		if *realtime {
			err = runRealtime(ctx, sc, stdout, logger)
		} else {
			err = runVirtual(sc, stdout, logger)
		}
	}
	if err != nil {
		logger.Err().
			Err(err).
			Str(`scenario`, *scenarioPath).
			Log(`lanesim: failed`)
		return 1
	}
	return 0
}

func parseLevel(name string) (logiface.Level, bool) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == name {
			return level, true
		}
	}
	return logiface.LevelDisabled, false
}
