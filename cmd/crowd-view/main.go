//go:build ebiten

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"

	"crowdsim/internal/app"
	"crowdsim/internal/logging"
	"crowdsim/internal/scenario"
	"crowdsim/internal/sim"
)

func main() {
	cfg := app.NewConfig()
	cfg.Bind(flag.CommandLine)
	logCfg := logging.DefaultConfig()
	logCfg.Bind(flag.CommandLine)
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: crowd-view [flags] <scenario_path>")
	}
	path := flag.Arg(0)
	logger := logging.New(logCfg)

	runner, err := scenario.Load(path, cfg.Workers,
		scenario.WithLogger(logger),
		scenario.WithSimOptions(sim.WithTickInterval(cfg.Interval)),
	)
	if err != nil {
		log.Fatalf("load scenario: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		res, err := runner.Run(ctx, cfg.Cycles)
		if err != nil {
			logger.Warn("run stopped", "error", err)
			return
		}
		logger.Info("run finished", "mean_ms", res.Summary.MeanMS)
	}()

	s := runner.Simulation()
	quit := func() {
		cancel()
		if err := runner.TearDown(); err != nil {
			logger.Error("teardown failed", "error", err)
		}
	}
	game := app.New(s, filepath.Base(path), cfg, logger, quit)
	size := s.Size()

	ebiten.SetWindowTitle("crowdsim - " + filepath.Base(path))
	ebiten.SetTPS(cfg.TPS)
	ebiten.SetWindowSize(size.W*cfg.Scale+cfg.HUDWidth, size.H*cfg.Scale)

	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatal(err)
	}
	quit()
}
