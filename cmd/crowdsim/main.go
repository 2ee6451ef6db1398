// Command crowdsim runs a scenario file on a pool of workers and prints the
// time every cycle took.
//
//	crowdsim [flags] <n_threads> <scenario_path> [cycles]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"crowdsim/internal/benchstore"
	"crowdsim/internal/logging"
	"crowdsim/internal/scenario"
	"crowdsim/internal/sim"
)

const (
	exitOK = iota
	exitUsage
	exitScenario
	exitRun
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("crowdsim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	logCfg := logging.DefaultConfig()
	logCfg.Output = stderr
	logCfg.Bind(fs)
	simCfg := sim.DefaultConfig()
	simCfg.Bind(fs)
	dbPath := fs.String("db", "", "sqlite file to record the run in")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: crowdsim [flags] <n_threads> <scenario_path> [cycles]\n\n")
		fmt.Fprintf(stderr, "  n_threads      number of simulation workers\n")
		fmt.Fprintf(stderr, "  scenario_path  scenario file, see internal/scenario\n")
		fmt.Fprintf(stderr, "  cycles         times every person is re-plugged at its start after\n")
		fmt.Fprintf(stderr, "                 reaching its goal (default 1)\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() < 2 || fs.NArg() > 3 {
		fs.Usage()
		return exitUsage
	}
	threads, err := strconv.Atoi(fs.Arg(0))
	if err != nil || threads <= 0 {
		fmt.Fprintf(stderr, "invalid thread count %q\n", fs.Arg(0))
		return exitUsage
	}
	cycles := 1
	if fs.NArg() == 3 {
		cycles, err = strconv.Atoi(fs.Arg(2))
		if err != nil || cycles <= 0 {
			fmt.Fprintf(stderr, "invalid cycle count %q\n", fs.Arg(2))
			return exitUsage
		}
	}

	logger := logging.New(logCfg)
	path := fs.Arg(1)
	runner, err := scenario.Load(path, threads,
		scenario.WithLogger(logger),
		scenario.WithOutput(stdout),
		scenario.WithSimOptions(sim.WithTickInterval(simCfg.TickInterval)),
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		if errors.Is(err, scenario.ErrMalformed) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return exitScenario
		}
		return exitRun
	}

	res, runErr := runner.Run(ctx, cycles)
	if err := runner.TearDown(); err != nil {
		logger.Error("teardown failed", "error", err)
	}
	if runErr != nil {
		fmt.Fprintln(stderr, runErr)
		return exitRun
	}

	if *dbPath != "" {
		if err := record(ctx, *dbPath, filepath.Base(path), res); err != nil {
			fmt.Fprintln(stderr, err)
			return exitRun
		}
		logger.Info("run recorded", "db", *dbPath, "run", res.RunID)
	}
	return exitOK
}

func record(ctx context.Context, dbPath, name string, res scenario.Result) error {
	store, err := benchstore.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.Record(ctx, name, res)
	return err
}
