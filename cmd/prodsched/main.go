// The prodsched command builds and solves a weekly production schedule from
// a YAML catalog and optional per-line rule file, and prints a text report.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/golang/glog"

	"github.com/optiline/prodsched/catalog"
	"github.com/optiline/prodsched/schedule"
	"github.com/optiline/prodsched/solver"
)

var (
	catalogPath = flag.String("catalog", "catalog.yaml", "path to the catalog YAML file")
	rulesPath   = flag.String("rules", "", "optional path to the line rules YAML file")
	utilization = flag.Float64("utilization", 0.99, "target utilization rate, clamped to [0.90, 1.0]")
)

func main() {
	flag.Parse()
	defer log.Flush()
	if err := run(os.Stdout); err != nil {
		log.Errorf("%v", err)
		log.Flush()
		os.Exit(1)
	}
}

func run(out io.Writer) error {
	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		return err
	}

	b := schedule.NewBuilder(cat).SetUtilizationTarget(*utilization)
	if *rulesPath != "" {
		rules, err := schedule.LoadRules(*rulesPath)
		if err != nil {
			return err
		}
		if err := b.AddLineRules(rules); err != nil {
			return err
		}
	}

	plan, err := b.Build()
	if err != nil {
		return err
	}
	for _, w := range plan.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}

	res, err := schedule.Solve(plan, schedule.SolverFunc(solver.Solve))
	if err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("no optimal schedule found (status %v)", res.Status)
	}

	week, err := plan.Extract(res)
	if err != nil {
		return err
	}
	report(out, cat, week, res.Objective)
	return nil
}

func report(w io.Writer, cat *catalog.Catalog, s *schedule.Schedule, objective float64) {
	fmt.Fprintf(w, "objective: %.2f\n", objective)
	for _, line := range s.LineOrder {
		fmt.Fprintf(w, "line %s\n", line)
		for _, slot := range s.SlotOrder {
			entries := s.Entries[line][slot]
			if len(entries) == 0 {
				continue
			}
			fmt.Fprintf(w, "  %s\n", slot)
			for _, e := range entries {
				fmt.Fprintf(w, "    %-20s %5.1fh %10.0f units %9.1f boxes\n",
					cat.ProductName(e.Product), e.Hours, e.Units, e.Boxes)
			}
		}
	}
	if len(s.Changeovers) > 0 {
		fmt.Fprintln(w, "changeovers:")
		for _, ev := range s.Changeovers {
			fmt.Fprintf(w, "  %s %s: %s -> %s (%.1fh)\n",
				ev.Line, ev.Slot, cat.ProductName(ev.From), cat.ProductName(ev.To), ev.Hours)
		}
	}
	if len(s.Cleanings) > 0 {
		fmt.Fprintln(w, "cleaning:")
		for _, ev := range s.Cleanings {
			fmt.Fprintf(w, "  %s %s: %.1fh\n", ev.Line, ev.Slot, ev.Hours)
		}
	}
	fmt.Fprintf(w, "totals: production %.1fh, changeover %.1fh, cleaning %.1fh, overall %.1fh\n",
		s.Stats.ProductionHours, s.Stats.ChangeoverHours, s.Stats.CleaningHours, s.Stats.TotalHours)
	for _, msg := range s.Warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
	if s.Violations > 0 {
		fmt.Fprintf(w, "WARNING: %d slot time limit violations detected\n", s.Violations)
	}
}
