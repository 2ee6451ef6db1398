// Command thread-sweep runs one scenario at several worker counts and ranks
// them by mean cycle time.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"crowdsim/internal/benchstore"
	"crowdsim/internal/logging"
	"crowdsim/internal/scenario"
)

type job struct {
	threads int
	repeat  int
}

type sweepResult struct {
	job
	res scenario.Result
	err error
}

func main() {
	threadList := flag.String("threads", "1,2,4,8", "comma separated worker counts")
	cycles := flag.Int("cycles", 3, "cycles per run")
	repeats := flag.Int("repeat", 1, "runs per worker count")
	parallel := flag.Int("parallel", 1, "runs executed at the same time")
	timeout := flag.Duration("timeout", 5*time.Minute, "limit for a single run")
	dbPath := flag.String("db", "", "sqlite file to record every run in")
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LevelWarn
	logCfg.Bind(flag.CommandLine)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: thread-sweep [flags] <scenario_path>")
		os.Exit(1)
	}
	path := flag.Arg(0)
	threads, err := parseThreads(*threadList)
	if err != nil {
		log.Fatalf("invalid -threads: %v", err)
	}
	sc, err := scenario.ParseFile(path)
	if err != nil {
		log.Fatalf("load scenario: %v", err)
	}
	logger := logging.New(logCfg)

	var store *benchstore.Store
	if *dbPath != "" {
		store, err = benchstore.Open(*dbPath)
		if err != nil {
			log.Fatalf("open %s: %v", *dbPath, err)
		}
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var jobsList []job
	for _, n := range threads {
		for r := 0; r < *repeats; r++ {
			jobsList = append(jobsList, job{threads: n, repeat: r})
		}
	}
	fmt.Printf("Sweeping %s over %d runs (%d in parallel, %d cycles each)\n",
		filepath.Base(path), len(jobsList), *parallel, *cycles)

	jobs := make(chan job)
	results := make(chan sweepResult)
	var wg sync.WaitGroup

	for i := 0; i < max(*parallel, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res, err := runOnce(ctx, sc, j.threads, *cycles, *timeout, logger)
				results <- sweepResult{job: j, res: res, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer close(jobs)
		for _, j := range jobsList {
			select {
			case jobs <- j:
			case <-ctx.Done():
				return
			}
		}
	}()

	start := time.Now()
	var all []sweepResult
	for r := range results {
		if r.err != nil {
			fmt.Printf("threads=%d run=%d failed: %v\n", r.threads, r.repeat, r.err)
			continue
		}
		fmt.Printf("threads=%d run=%d mean=%.3f ms ticks=%d conflicts=%d\n",
			r.threads, r.repeat, r.res.Summary.MeanMS, r.res.Ticks, r.res.Conflicts)
		if store != nil {
			if _, err := store.Record(ctx, filepath.Base(path), r.res); err != nil {
				logger.Error("failed to record run", "run", r.res.RunID, "error", err)
			}
		}
		all = append(all, r)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].res.Summary.MeanMS < all[j].res.Summary.MeanMS })
	fmt.Printf("\nRanking (elapsed %s):\n", time.Since(start).Round(time.Millisecond))
	for i, r := range all {
		s := r.res.Summary
		fmt.Printf("%2d) threads=%-3d mean=%.3f std=%.3f min=%.3f max=%.3f\n",
			i+1, r.threads, s.MeanMS, s.StdMS, s.MinMS, s.MaxMS)
	}
}

func runOnce(ctx context.Context, sc *scenario.Scenario, threads, cycles int, timeout time.Duration, logger logging.Logger) (scenario.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	r, err := scenario.NewRunner(sc, threads, scenario.WithLogger(logger))
	if err != nil {
		return scenario.Result{}, err
	}
	res, err := r.Run(ctx, cycles)
	if tdErr := r.TearDown(); err == nil {
		err = tdErr
	}
	return res, err
}

// parseThreads reads a list such as "1,2,4" into distinct positive counts.
func parseThreads(s string) ([]int, error) {
	var out []int
	seen := map[int]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("worker count %d must be positive", n)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no worker counts in %q", s)
	}
	return out, nil
}
