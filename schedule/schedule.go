// Package schedule formulates the weekly multi-line production plan as a
// mixed-integer linear program and decodes the solved values back into a
// schedule.
//
// A Builder consumes a catalog (products, lines, time slots, changeover
// rules, order quantities), optional line-specific rules, and a weight
// vector, and assembles a Plan: the lpmodel MILP plus the variable handles
// needed to read a solution back. Solve hands the model to a Solver backend,
// and Plan.Extract turns a successful solve into per-line, per-slot
// production entries with changeover and cleaning event logs, aggregate
// statistics, and an independent feasibility re-check.
//
// Catalog gaps (missing changeover rule, zero items-per-box, and so on) never
// abort a build: the documented default is applied and the fallback is
// recorded in the build warnings.
package schedule

// Model-wide structural constants.
const (
	// MaxPositions is the number of ordinal production positions inside one
	// time slot; it bounds how many products a slot can sequence.
	MaxPositions = 3
	// MaxSlotProducts caps how many small-volume products may share a slot.
	MaxSlotProducts = 3
	// MaxTotalChangeovers is the hard weekly ceiling on changeovers across
	// all lines and slots.
	MaxTotalChangeovers = 5
	// MinProductionHours is the shortest run a product gets once it is
	// scheduled into a slot.
	MinProductionHours = 1.0
)

// Defaults applied when the catalog has no answer. Every application is
// logged and recorded as a warning on the build output.
const (
	DefaultChangeoverHours = 0.4
	DefaultSetupHours      = 1.0
	DefaultCleanupHours    = 2.5
	DefaultTrackCount      = 1
	DefaultItemsPerBox     = 1
)

// Penalty coefficients of the soft-constraint slack pools. Utilization and
// time normalization are "hard-ish" and priced well above the dynamic target.
const (
	utilizationPenalty   = 100.0
	dynamicPenalty       = 75.0
	normalizationPenalty = 80.0
)

// estimatedFixedHours approximates cleanup plus expected changeover time when
// deciding whether a slot can carry the dynamic utilization target at all.
const estimatedFixedHours = 2.5 + 0.6

// valueEps is the tolerance used when reading solved variable values.
const valueEps = 1e-6

// Weights scales the raw objective terms. Discontinuity, CapacityViolation,
// and PriorityViolation are reserved for extensions and not read by the
// objective.
type Weights struct {
	ProductionTime  float64
	ChangeoverTime  float64
	ChangeoverCount float64
	CleaningTime    float64

	Discontinuity     float64
	CapacityViolation float64
	PriorityViolation float64
}

// DefaultWeights returns the production-tested weight vector.
func DefaultWeights() Weights {
	return Weights{
		ProductionTime:    1,
		ChangeoverTime:    5,
		ChangeoverCount:   5,
		CleaningTime:      0.6,
		Discontinuity:     3,
		CapacityViolation: 1,
		PriorityViolation: 15,
	}
}
