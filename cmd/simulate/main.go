// Package main runs Monte Carlo simulations of the enhancement curve and
// prints the observed rates and the cost of reaching a target level.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bitcory/knight/internal/game/dice"
	"github.com/bitcory/knight/internal/game/enhance"
	"github.com/bitcory/knight/internal/game/sim"
	"github.com/bitcory/knight/internal/game/weapon"
)

type output struct {
	Rates  []sim.Rates `json:"rates,omitempty" yaml:"rates,omitempty"`
	Career *sim.Report `json:"career,omitempty" yaml:"career,omitempty"`
}

func main() {
	target := flag.Int("target", 10, "level each simulated career enhances to (0 skips careers)")
	trials := flag.Int("trials", 10_000, "trials per level and careers per run")
	seed := flag.Uint64("seed", 0, "seed for reproducible runs; 0 uses crypto randomness")
	scrolls := flag.Bool("scrolls", false, "buy and use a scroll on every attempt")
	top := flag.Bool("top", false, "apply the leaderboard leader penalty")
	rates := flag.Bool("rates", true, "measure per-level outcome rates")
	format := flag.String("format", "table", "output format: table, json, or yaml")
	flag.Parse()

	if *trials <= 0 {
		fmt.Fprintln(os.Stderr, "-trials must be positive")
		os.Exit(1)
	}

	src := dice.NewCryptoSource()
	if *seed != 0 {
		src = dice.NewSeededSource(*seed)
	}

	start := time.Now()
	var out output
	if *rates {
		ctx := enhance.Context{UseScroll: *scrolls, IsTopWinner: *top}
		for level := range weapon.MaxLevel {
			r, err := sim.LevelRates(level, *trials, ctx, src)
			if err != nil {
				fmt.Fprintf(os.Stderr, "level %d: %v\n", level, err)
				os.Exit(1)
			}
			out.Rates = append(out.Rates, r)
		}
	}
	if *target > 0 {
		rep, err := sim.RunToLevel(sim.Params{Target: *target, UseScrolls: *scrolls, TopWinner: *top}, *trials, src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "career to +%d: %v\n", *target, err)
			os.Exit(1)
		}
		out.Career = &rep
	}

	if err := write(os.Stdout, *format, out); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "simulation complete in %s\n", time.Since(start).Round(time.Millisecond))
}

func write(f *os.File, format string, out output) error {
	switch format {
	case "json":
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(out)
	case "table":
		tw := tabwriter.NewWriter(f, 0, 0, 2, ' ', tabwriter.AlignRight)
		if len(out.Rates) > 0 {
			fmt.Fprintln(tw, "level\tsuccess\tmaintain\tdestroy\tblessed\t")
			for _, r := range out.Rates {
				fmt.Fprintf(tw, "+%d\t%.2f%%\t%.2f%%\t%.2f%%\t%.2f%%\t\n",
					r.Level, r.Success*100, r.Maintain*100, r.Destroy*100, r.Blessed*100)
			}
		}
		if c := out.Career; c != nil {
			fmt.Fprintf(tw, "\ncareer to +%d over %d trials\t\t\t\t\t\n", c.Target, c.Trials)
			fmt.Fprintln(tw, "\tmean\tp50\tp90\tp99\t")
			for _, row := range []struct {
				name string
				s    sim.Stats
			}{{"gold", c.Gold}, {"attempts", c.Attempts}, {"destroys", c.Destroys}} {
				fmt.Fprintf(tw, "%s\t%.0f\t%.0f\t%.0f\t%.0f\t\n", row.name, row.s.Mean, row.s.P50, row.s.P90, row.s.P99)
			}
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (supported: table, json, yaml)", format)
	}
}
