package schedule

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	log "github.com/golang/glog"

	"github.com/optiline/prodsched/catalog"
	"github.com/optiline/prodsched/lpmodel"
)

// ErrNoActiveLines holds the error when a build is attempted with every
// catalog line filtered out.
var ErrNoActiveLines = errors.New("no active lines")

// Builder assembles a weekly scheduling Plan from a catalog, a weight
// vector, a utilization target, and per-line rules.
type Builder struct {
	cat        *catalog.Catalog
	weights    Weights
	targetRate float64
	rules      map[string][]LineRule
	ruleLines  []string
	lines      []string
	warnings   []string
}

// NewBuilder creates a Builder over the catalog with default weights, a 99%
// utilization target, and all catalog lines active.
func NewBuilder(cat *catalog.Catalog) *Builder {
	return &Builder{
		cat:        cat,
		weights:    DefaultWeights(),
		targetRate: 0.99,
		rules:      make(map[string][]LineRule),
		lines:      cat.Lines(),
	}
}

// SetWeights replaces the objective weight vector. Unusually large weights
// that tend to dominate the objective produce an advisory warning.
func (b *Builder) SetWeights(w Weights) *Builder {
	if w.ChangeoverTime > 50 {
		b.warnf("changeover time weight %.0f is unusually high and may dominate the objective", w.ChangeoverTime)
	}
	if w.Discontinuity > 500 {
		b.warnf("discontinuity weight %.0f is unusually high and may dominate the objective", w.Discontinuity)
	}
	b.weights = w
	return b
}

// SetUtilizationTarget sets the dynamic utilization target rate, clamped to
// [0.90, 1.0].
func (b *Builder) SetUtilizationTarget(rate float64) *Builder {
	clamped := math.Max(0.90, math.Min(1.0, rate))
	if clamped != rate {
		b.warnf("utilization target %.2f clamped to %.2f", rate, clamped)
	}
	b.targetRate = clamped
	return b
}

// WithActiveLines restricts the plan to the given catalog lines. Unknown
// line IDs are warned about and ignored.
func (b *Builder) WithActiveLines(lines ...string) *Builder {
	active := make([]string, 0, len(lines))
	for _, l := range lines {
		if b.cat.HasLine(l) {
			active = append(active, l)
			continue
		}
		b.warnf("ignoring unknown line %s", l)
	}
	b.lines = active
	return b
}

// AddLineRule attaches a scheduling rule to a line. The rule is validated
// against the catalog immediately; an invalid rule never reaches a build.
func (b *Builder) AddLineRule(line string, r LineRule) error {
	if !b.cat.HasLine(line) {
		return fmt.Errorf("unknown line ID %q", line)
	}
	if err := r.validate(b.cat); err != nil {
		return fmt.Errorf("rule for line %s: %w", line, err)
	}
	if _, ok := b.rules[line]; !ok {
		b.ruleLines = append(b.ruleLines, line)
	}
	b.rules[line] = append(b.rules[line], r)
	return nil
}

// AddLineRules attaches rule sets for several lines, in sorted line order so
// repeated builds stay deterministic.
func (b *Builder) AddLineRules(rules map[string][]LineRule) error {
	lines := make([]string, 0, len(rules))
	for l := range rules {
		lines = append(lines, l)
	}
	sort.Strings(lines)
	for _, l := range lines {
		for _, r := range rules[l] {
			if err := b.AddLineRule(l, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) warnf(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	log.Warning(msg)
	b.warnings = append(b.warnings, msg)
}

// Build assembles the MILP: variables over valid (product, line)
// combinations, the full constraint set, and the weighted objective. The
// returned Plan carries the model plus everything needed to decode a
// solution.
func (b *Builder) Build() (*Plan, error) {
	start := time.Now()
	if len(b.lines) == 0 {
		return nil, ErrNoActiveLines
	}
	slots := b.cat.TimeSlots()

	e := &engine{
		b:          lpmodel.NewBuilder("weekly_production_schedule"),
		weights:    b.weights,
		targetRate: b.targetRate,
		rules:      b.rules,
		ruleLines:  b.ruleLines,
		lines:      b.lines,
		slots:      slots,
		warnings:   append([]string(nil), b.warnings...),
	}
	e.lookups = newLookups(b.cat, &e.warnings)

	e.createVariables()
	e.addAllConstraints()
	e.setObjective()

	model, err := e.b.Model()
	if err != nil {
		return nil, fmt.Errorf("assembling model: %w", err)
	}
	e.verifyTimeConstraints(model)

	log.Infof("model built in %v: %d variables, %d constraints",
		time.Since(start), len(model.Vars), len(model.Constraints))
	return &Plan{
		model:    model,
		vars:     e.vars,
		cat:      b.cat,
		lines:    e.lines,
		slots:    slots,
		Warnings: e.warnings,
	}, nil
}

// engine holds the build state shared by the variable factory, the
// constraint families, and the objective.
type engine struct {
	lookups
	b          *lpmodel.Builder
	weights    Weights
	targetRate float64
	rules      map[string][]LineRule
	ruleLines  []string
	lines      []string
	slots      []catalog.TimeSlot
	vars       *variables
	pen        penaltyAccumulator
	warnings   []string
}

// penaltyAccumulator collects the soft-constraint slack variables emitted by
// the constraint families. The objective reads it exactly once; nothing else
// touches it.
type penaltyAccumulator struct {
	utilization   []lpmodel.Var
	dynamic       []lpmodel.Var
	normalization []lpmodel.Var
}

// Plan is an assembled, not-yet-solved weekly scheduling problem.
type Plan struct {
	model *lpmodel.Model
	vars  *variables
	cat   *catalog.Catalog
	lines []string
	slots []catalog.TimeSlot

	// Warnings lists every degraded catalog lookup and structural advisory
	// recorded while building.
	Warnings []string
}

// Model returns the assembled MILP.
func (p *Plan) Model() *lpmodel.Model { return p.model }

// lookups wraps catalog access with the documented fallback defaults. Each
// distinct fallback is logged and recorded once.
type lookups struct {
	cat      *catalog.Catalog
	warnings *[]string
	seen     map[string]bool
}

func newLookups(cat *catalog.Catalog, warnings *[]string) lookups {
	return lookups{cat: cat, warnings: warnings, seen: make(map[string]bool)}
}

func (l lookups) warnOnce(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if l.seen[msg] {
		return
	}
	l.seen[msg] = true
	log.Warning(msg)
	*l.warnings = append(*l.warnings, msg)
}

func (l lookups) trackCount(line string) int {
	if n, ok := l.cat.TrackCount(line); ok {
		return n
	}
	l.warnOnce("no track count for line %s, using default %d", line, DefaultTrackCount)
	return DefaultTrackCount
}

func (l lookups) itemsPerBox(product string) int {
	if n, ok := l.cat.ItemsPerBox(product); ok {
		return n
	}
	l.warnOnce("no items-per-box for product %s, using default %d", product, DefaultItemsPerBox)
	return DefaultItemsPerBox
}

func (l lookups) setupHours(line string) float64 {
	if h, ok := l.cat.SetupHours(line); ok {
		return h
	}
	l.warnOnce("no setup time for line %s, using default %.1fh", line, DefaultSetupHours)
	return DefaultSetupHours
}

func (l lookups) cleanupHours(line string) float64 {
	if h, ok := l.cat.CleanupHours(line); ok {
		return h
	}
	l.warnOnce("no cleanup time for line %s, using default %.1fh", line, DefaultCleanupHours)
	return DefaultCleanupHours
}

func (l lookups) changeoverHours(from, to, line string) float64 {
	if h, ok := l.cat.ChangeoverHours(from, to, line); ok {
		return h
	}
	l.warnOnce("no changeover rule for %s -> %s on line %s, using default %.1fh",
		from, to, line, DefaultChangeoverHours)
	return DefaultChangeoverHours
}

// boxesPerHour converts the (product, line) throughput into boxes per hour.
// Zero means the combination produces nothing usable.
func (l lookups) boxesPerHour(product, line string) float64 {
	rate := l.cat.ThroughputRate(product, line)
	return rate * float64(l.trackCount(line)) * 60 / float64(l.itemsPerBox(product))
}
