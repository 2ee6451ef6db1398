// Command scengen writes a random scenario file.
package main

import (
	"flag"
	"io"
	"log"
	"os"

	"crowdsim/internal/scenario"
)

func main() {
	cfg := scenario.DefaultGenConfig()
	flag.IntVar(&cfg.Width, "w", cfg.Width, "grid width")
	flag.IntVar(&cfg.Height, "h", cfg.Height, "grid height")
	flag.IntVar(&cfg.Obstacles, "obstacles", cfg.Obstacles, "number of obstacle rectangles")
	flag.IntVar(&cfg.MaxObstacle, "max-obstacle", cfg.MaxObstacle, "largest obstacle side")
	flag.IntVar(&cfg.Persons, "persons", cfg.Persons, "number of persons")
	flag.IntVar(&cfg.Insertions, "insertions", cfg.Insertions, "number of insertion persons")
	flag.DurationVar(&cfg.Interval, "interval", cfg.Interval, "insertion interval")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	out := flag.String("o", "-", "output file, - for stdout")
	flag.Parse()

	sc, err := scenario.Generate(cfg)
	if err != nil {
		log.Fatalf("generate: %v", err)
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}
	if err := scenario.Format(w, sc); err != nil {
		log.Fatalf("write scenario: %v", err)
	}
	if len(sc.Persons) < cfg.Persons {
		log.Printf("only %d of %d persons fit on the free cells", len(sc.Persons), cfg.Persons)
	}
}
