// Command crowd-server runs a scenario and streams its snapshots to websocket
// clients on /ws. Clients may send {"op":"pause"}, {"op":"continue"} or
// {"op":"step","steps":n}.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"crowdsim/internal/logging"
	"crowdsim/internal/scenario"
	"crowdsim/internal/sim"
	"crowdsim/internal/stream"
)

func main() {
	addr := flag.String("addr", ":8080", "server listen address")
	workers := flag.Int("workers", 4, "simulation worker count")
	cycles := flag.Int("cycles", 1000, "times persons are re-plugged at their start")
	interval := flag.Duration("interval", 100*time.Millisecond, "minimum time between ticks")
	cells := flag.Bool("cells", true, "include the full grid in snapshots")
	logCfg := logging.DefaultConfig()
	logCfg.Bind(flag.CommandLine)
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: crowd-server [flags] <scenario_path>")
	}
	logger := logging.New(logCfg)

	var hub *stream.Hub
	runner, err := scenario.Load(flag.Arg(0), *workers,
		scenario.WithLogger(logger),
		scenario.WithSimOptions(
			sim.WithTickInterval(*interval),
			sim.WithTickObserver(func(sim.TickReport) { hub.Notify() }),
		),
	)
	if err != nil {
		log.Fatalf("load scenario: %v", err)
	}
	hub = stream.NewHub(runner.Simulation(),
		stream.WithLogger(logging.With(logger, "component", "stream")),
		stream.WithCells(*cells),
		stream.WithMinInterval(*interval/2),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go hub.Run(ctx)
	go func() {
		res, err := runner.Run(ctx, *cycles)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, sim.ErrDestroyed) {
			logger.Error("run failed", "error", err)
			return
		}
		logger.Info("run finished", "cycles", len(res.Cycles), "mean_ms", res.Summary.MeanMS)
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving snapshots", "addr", *addr, "run", runner.Simulation().ID())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
	if err := runner.TearDown(); err != nil {
		logger.Error("teardown failed", "error", err)
	}
}
