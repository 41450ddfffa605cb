package schedule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optiline/prodsched/lpmodel"
)

// solved builds a SolveResult around a hand-set value vector. set receives
// the zeroed vector to fill via the plan's variable indexes.
func solved(p *Plan, set func(values []float64)) *SolveResult {
	values := make([]float64, len(p.Model().Vars))
	set(values)
	return &SolveResult{
		OK:     true,
		Status: lpmodel.Optimal,
		solution: &lpmodel.Solution{
			Status: lpmodel.Optimal,
			Values: values,
		},
	}
}

func TestExtract_Schedule(t *testing.T) {
	plan := buildPlan(t, NewBuilder(testCatalog(t)))
	v := plan.vars

	// P1 runs 6h in slot A, P2 runs 3h in slot B, with the boundary
	// changeover and the setup/cleanup split across the week.
	res := solved(plan, func(values []float64) {
		values[v.production[prodKey{product: "P1", line: "L1", slot: 0}].Index()] = 1
		values[v.productionTime[prodKey{product: "P1", line: "L1", slot: 0}].Index()] = 6
		values[v.sequence[seqKey{product: "P1", line: "L1", slot: 0, pos: 1}].Index()] = 1

		values[v.production[prodKey{product: "P2", line: "L1", slot: 1}].Index()] = 1
		values[v.productionTime[prodKey{product: "P2", line: "L1", slot: 1}].Index()] = 3
		values[v.sequence[seqKey{product: "P2", line: "L1", slot: 1, pos: 1}].Index()] = 1

		values[v.changeover[pairKey{from: "P1", to: "P2", line: "L1", slot: 1}].Index()] = 1
		values[v.changeoverTime[slotKey{line: "L1", slot: 1}].Index()] = 0.5
		values[v.changeoverCount[slotKey{line: "L1", slot: 1}].Index()] = 1
		values[v.cleaningTime[slotKey{line: "L1", slot: 0}].Index()] = 1.0
		values[v.cleaningTime[slotKey{line: "L1", slot: 1}].Index()] = 2.5
	})

	s, err := plan.Extract(res)
	require.NoError(t, err)

	assert.Equal(t, []string{"L1"}, s.LineOrder)
	assert.Equal(t, []string{"A", "B"}, s.SlotOrder)
	assert.Equal(t, []Entry{{Product: "P1", Hours: 6, Units: 3600, Boxes: 60}}, s.Entries["L1"]["A"])
	assert.Equal(t, []Entry{{Product: "P2", Hours: 3, Units: 1800, Boxes: 30}}, s.Entries["L1"]["B"])

	require.Len(t, s.Changeovers, 1)
	assert.Equal(t, ChangeoverEvent{Line: "L1", Slot: "B", From: "P1", To: "P2", Hours: 0.5}, s.Changeovers[0])

	assert.Equal(t, []CleaningEvent{
		{Line: "L1", Slot: "A", Hours: 1.0},
		{Line: "L1", Slot: "B", Hours: 2.5},
	}, s.Cleanings)

	assert.InDelta(t, 9.0, s.Stats.ProductionHours, 1e-9)
	assert.InDelta(t, 0.5, s.Stats.ChangeoverHours, 1e-9)
	assert.InDelta(t, 3.5, s.Stats.CleaningHours, 1e-9)
	assert.InDelta(t, 13.0, s.Stats.TotalHours, 1e-9)

	assert.Zero(t, s.Violations)
	assert.Empty(t, s.Warnings)
}

func TestExtract_OrdersBySequencePosition(t *testing.T) {
	plan := buildPlan(t, NewBuilder(testCatalog(t)))
	v := plan.vars

	res := solved(plan, func(values []float64) {
		values[v.production[prodKey{product: "P1", line: "L1", slot: 0}].Index()] = 1
		values[v.productionTime[prodKey{product: "P1", line: "L1", slot: 0}].Index()] = 2
		values[v.sequence[seqKey{product: "P1", line: "L1", slot: 0, pos: 2}].Index()] = 1

		values[v.production[prodKey{product: "P2", line: "L1", slot: 0}].Index()] = 1
		values[v.productionTime[prodKey{product: "P2", line: "L1", slot: 0}].Index()] = 2
		values[v.sequence[seqKey{product: "P2", line: "L1", slot: 0, pos: 1}].Index()] = 1

		values[v.changeover[pairKey{from: "P2", to: "P1", line: "L1", slot: 0}].Index()] = 1
		values[v.changeoverTime[slotKey{line: "L1", slot: 0}].Index()] = 0.7
	})

	s, err := plan.Extract(res)
	require.NoError(t, err)

	entries := s.Entries["L1"]["A"]
	require.Len(t, entries, 2)
	assert.Equal(t, "P2", entries[0].Product)
	assert.Equal(t, "P1", entries[1].Product)

	// Adjacent runs in one slot always produce an event.
	require.Len(t, s.Changeovers, 1)
	assert.Equal(t, ChangeoverEvent{Line: "L1", Slot: "A", From: "P2", To: "P1", Hours: 0.7}, s.Changeovers[0])
}

func TestExtract_InconsistentChangeoverTime(t *testing.T) {
	plan := buildPlan(t, NewBuilder(testCatalog(t)))
	v := plan.vars

	// Positive changeover time with every pair indicator at zero is a
	// modeling inconsistency: flagged, never turned into an event.
	res := solved(plan, func(values []float64) {
		values[v.production[prodKey{product: "P1", line: "L1", slot: 0}].Index()] = 1
		values[v.productionTime[prodKey{product: "P1", line: "L1", slot: 0}].Index()] = 4
		values[v.sequence[seqKey{product: "P1", line: "L1", slot: 0, pos: 1}].Index()] = 1
		values[v.changeoverTime[slotKey{line: "L1", slot: 0}].Index()] = 0.3
	})

	s, err := plan.Extract(res)
	require.NoError(t, err)

	assert.Empty(t, s.Changeovers)
	require.Len(t, s.Warnings, 1)
	assert.Contains(t, s.Warnings[0], "no active changeover indicator")
}

func TestExtract_TimeLimitViolation(t *testing.T) {
	plan := buildPlan(t, NewBuilder(testCatalog(t)))
	v := plan.vars

	res := solved(plan, func(values []float64) {
		values[v.production[prodKey{product: "P1", line: "L1", slot: 0}].Index()] = 1
		values[v.productionTime[prodKey{product: "P1", line: "L1", slot: 0}].Index()] = 9
		values[v.sequence[seqKey{product: "P1", line: "L1", slot: 0, pos: 1}].Index()] = 1
		values[v.cleaningTime[slotKey{line: "L1", slot: 0}].Index()] = 3.5
	})

	s, err := plan.Extract(res)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Violations)
}

func TestExtract_NoSolution(t *testing.T) {
	plan := buildPlan(t, NewBuilder(testCatalog(t)))

	_, err := plan.Extract(&SolveResult{Status: lpmodel.Infeasible})
	assert.ErrorContains(t, err, "no solution to extract")

	_, err = plan.Extract(nil)
	assert.Error(t, err)
}

func TestSolve_StatusMapping(t *testing.T) {
	plan := buildPlan(t, NewBuilder(testCatalog(t)))

	res, err := Solve(plan, SolverFunc(func(*lpmodel.Model) (*lpmodel.Solution, error) {
		return &lpmodel.Solution{Status: lpmodel.Infeasible}, nil
	}))
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, lpmodel.Infeasible, res.Status)

	wantErr := errors.New("backend exploded")
	_, err = Solve(plan, SolverFunc(func(*lpmodel.Model) (*lpmodel.Solution, error) {
		return nil, wantErr
	}))
	assert.ErrorIs(t, err, wantErr)
}
