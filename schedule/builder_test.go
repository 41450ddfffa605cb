package schedule

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optiline/prodsched/catalog"
	"github.com/optiline/prodsched/lpmodel"
)

// testCatalog has one line with two 10h slots and three products: P1 needs
// 6h for its target, P2 needs 3h, P3 has no order. The rule set covers every
// product pair so no default-changeover fallback fires.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		[]catalog.Product{
			{Code: "P1", Name: "Cup Noodle", ItemsPerBox: 60, Category: "cup",
				Rates: map[string]float64{"L1": 10}},
			{Code: "P2", Name: "Pouch Noodle", ItemsPerBox: 60, Category: "pouch",
				Rates: map[string]float64{"L1": 10}},
			{Code: "P3", Name: "Seasonal Cup", ItemsPerBox: 60, Category: "cup",
				Rates: map[string]float64{"L1": 10}},
		},
		[]catalog.Line{{ID: "L1", Tracks: 1, SetupHours: 1, CleanupHours: 2.5}},
		[]catalog.TimeSlot{{Name: "A", MaxHours: 10}, {Name: "B", MaxHours: 10}},
		map[string][]catalog.ChangeoverRule{
			"L1": {
				{Type: catalog.RuleCategory, From: "cup", To: "pouch", Hours: 0.5},
				{Type: catalog.RuleCategory, From: "pouch", To: "cup", Hours: 0.7},
				{Type: catalog.RuleCategory, Hours: 0.2},
			},
		},
		map[string]float64{"P1": 60, "P2": 30},
	)
	require.NoError(t, err)
	return cat
}

func buildPlan(t *testing.T, b *Builder) *Plan {
	t.Helper()
	plan, err := b.Build()
	require.NoError(t, err)
	return plan
}

func TestBuild_ProductionQuantity(t *testing.T) {
	plan := buildPlan(t, NewBuilder(testCatalog(t)))
	m := plan.Model()

	c, ok := m.Constraint("production_quantity_min_P1")
	require.True(t, ok)
	assert.Equal(t, 60.0, c.Lb)
	assert.True(t, math.IsInf(c.Ub, 1))
	want := []lpmodel.Term{
		{Var: plan.vars.productionTime[prodKey{product: "P1", line: "L1", slot: 0}].Index(), Coeff: 10},
		{Var: plan.vars.productionTime[prodKey{product: "P1", line: "L1", slot: 1}].Index(), Coeff: 10},
	}
	assert.Equal(t, want, c.Terms)

	c, ok = m.Constraint("production_quantity_max_P1")
	require.True(t, ok)
	assert.True(t, math.IsInf(c.Lb, -1))
	assert.Equal(t, 60.0, c.Ub)

	// A zero-order product still gets the equality, trivially satisfiable
	// at zero.
	c, ok = m.Constraint("production_quantity_min_P3")
	require.True(t, ok)
	assert.Equal(t, 0.0, c.Lb)
}

func TestBuild_TimeConstraints(t *testing.T) {
	plan := buildPlan(t, NewBuilder(testCatalog(t)))
	m := plan.Model()

	c, ok := m.Constraint("total_time_slot_limit_L1_A")
	require.True(t, ok)
	assert.Equal(t, 10.0, c.Ub)
	// Three production times, changeover time, and boundary cleaning time.
	assert.Len(t, c.Terms, 5)

	for _, name := range []string{
		"min_time_P1_L1_A",
		"max_time_link_P1_L1_A",
		"max_utilization_P1_L1_B",
		"soft_production_utilization_L1_A",
		"dynamic_utilization_L1_B",
		"setup_time_L1",
		"cleaning_time_L1",
	} {
		assert.True(t, m.HasConstraint(name), "missing %s", name)
	}

	// production_time <= max_hours * production pins time to zero when the
	// product is not chosen.
	c, ok = m.Constraint("max_time_link_P2_L1_B")
	require.True(t, ok)
	k := prodKey{product: "P2", line: "L1", slot: 1}
	want := []lpmodel.Term{
		{Var: plan.vars.productionTime[k].Index(), Coeff: 1},
		{Var: plan.vars.production[k].Index(), Coeff: -10},
	}
	assert.Equal(t, want, c.Terms)
	assert.Equal(t, 0.0, c.Ub)
}

func TestBuild_ChangeoverDetection(t *testing.T) {
	plan := buildPlan(t, NewBuilder(testCatalog(t)))
	m := plan.Model()

	for _, name := range []string{
		"intra_slot_changeover_1_P1_P2_L1_A_1",
		"intra_slot_changeover_2_P1_P2_L1_A_2",
		"intra_slot_changeover_3_P2_P1_L1_B_1",
		"inter_slot_changeover_1_P1_P2_L1_B",
		"inter_slot_changeover_3_P2_P1_L1_B",
		"sequence_to_production_P1_L1_A_1",
		"sequence_to_production_P3_L1_B_3",
		"changeover_count_min_L1_A",
		"changeover_count_max_L1_B",
	} {
		assert.True(t, m.HasConstraint(name), "missing %s", name)
	}

	// AND encoding: z >= a + b - 1.
	c, ok := m.Constraint("intra_slot_changeover_3_P1_P2_L1_A_1")
	require.True(t, ok)
	co := plan.vars.changeover[pairKey{from: "P1", to: "P2", line: "L1", slot: 0}]
	a := plan.vars.sequence[seqKey{product: "P1", line: "L1", slot: 0, pos: 1}]
	b := plan.vars.sequence[seqKey{product: "P2", line: "L1", slot: 0, pos: 2}]
	want := []lpmodel.Term{
		{Var: co.Index(), Coeff: 1},
		{Var: a.Index(), Coeff: -1},
		{Var: b.Index(), Coeff: -1},
	}
	assert.Equal(t, want, c.Terms)
	assert.Equal(t, -1.0, c.Lb)

	// changeover_time equals the rule-weighted indicator sum: the slot
	// variable plus all six ordered pairs.
	c, ok = m.Constraint("changeover_time_calculation_L1_A")
	require.True(t, ok)
	assert.Len(t, c.Terms, 7)
	assert.Equal(t, 0.0, c.Lb)
	assert.Equal(t, 0.0, c.Ub)
	var coeff float64
	for _, term := range c.Terms {
		if term.Var == co.Index() {
			coeff = term.Coeff
		}
	}
	assert.Equal(t, -0.5, coeff)
}

func TestBuild_BlocksAndCaps(t *testing.T) {
	plan := buildPlan(t, NewBuilder(testCatalog(t)))
	m := plan.Model()

	// P1 and P2 each fit one slot; exactly one block start is selected.
	c, ok := m.Constraint("block_start_unique_P1_L1")
	require.True(t, ok)
	assert.Equal(t, 1.0, c.Lb)
	assert.Equal(t, 1.0, c.Ub)
	assert.Len(t, c.Terms, 2)
	assert.True(t, m.HasConstraint("block_continuity_P1_L1_0_0"))
	assert.True(t, m.HasConstraint("block_continuity_P2_L1_1_1"))

	// No order, no block variables.
	assert.False(t, m.HasConstraint("block_start_unique_P3_L1"))
	_, ok = plan.vars.blockStart[comboKey{product: "P3", line: "L1"}]
	assert.False(t, ok)
	assert.Equal(t, 0, plan.vars.requiredSlots[comboKey{product: "P3", line: "L1"}])

	// Both ordered products are small-volume in a 10h slot.
	c, ok = m.Constraint("multi_product_L1_A")
	require.True(t, ok)
	assert.Equal(t, 3.0, c.Ub)
	assert.Len(t, c.Terms, 2)

	c, ok = m.Constraint("total_changeover_limit_max5_lines1")
	require.True(t, ok)
	assert.Equal(t, 5.0, c.Ub)
	assert.Len(t, c.Terms, 2)
}

func TestBuild_Idempotent(t *testing.T) {
	cat := testCatalog(t)
	m1 := buildPlan(t, NewBuilder(cat)).Model()
	m2 := buildPlan(t, NewBuilder(cat)).Model()
	if diff := cmp.Diff(m1, m2); diff != "" {
		t.Errorf("two builds from identical inputs differ (-first+second):\n%s", diff)
	}
}

func TestBuild_WeightsOnlyAffectObjective(t *testing.T) {
	cat := testCatalog(t)
	base := buildPlan(t, NewBuilder(cat)).Model()
	zeroed := buildPlan(t, NewBuilder(cat).SetWeights(Weights{ProductionTime: 1})).Model()

	// Feasibility is decided by the variable and constraint sets alone;
	// zeroing every weight except production time may only move the objective.
	if diff := cmp.Diff(base.Vars, zeroed.Vars); diff != "" {
		t.Errorf("variables differ after zeroing weights (-default+zeroed):\n%s", diff)
	}
	if diff := cmp.Diff(base.Constraints, zeroed.Constraints); diff != "" {
		t.Errorf("constraints differ after zeroing weights (-default+zeroed):\n%s", diff)
	}
	if diff := cmp.Diff(base.Objective, zeroed.Objective); diff == "" {
		t.Errorf("objective did not change after zeroing weights")
	}
}

func TestBuild_RequiredSlotsExceedWeek(t *testing.T) {
	cat, err := catalog.New(
		[]catalog.Product{
			{Code: "BIG", ItemsPerBox: 60, Rates: map[string]float64{"L1": 10}},
		},
		[]catalog.Line{{ID: "L1", Tracks: 1, SetupHours: 1, CleanupHours: 2.5}},
		[]catalog.TimeSlot{{Name: "A", MaxHours: 10}, {Name: "B", MaxHours: 10}},
		nil,
		map[string]float64{"BIG": 250}, // 25h of work, 3 slots needed
	)
	require.NoError(t, err)

	plan := buildPlan(t, NewBuilder(cat))
	assert.Equal(t, 3, plan.vars.requiredSlots[comboKey{product: "BIG", line: "L1"}])
	_, ok := plan.vars.blockStart[comboKey{product: "BIG", line: "L1"}]
	assert.False(t, ok)
	assert.Contains(t, plan.Warnings, "product BIG on line L1 needs 3 slots but the week has 2, skipping block variables")
}

func TestBuild_LastProductRule(t *testing.T) {
	b := NewBuilder(testCatalog(t))
	require.NoError(t, b.AddLineRule("L1", LastProduct{Product: "P2"}))
	plan := buildPlan(t, b)

	c, ok := plan.Model().Constraint("last_product_L1_P2")
	require.True(t, ok)
	assert.Equal(t, 1.0, c.Lb)
	assert.Equal(t, 1.0, c.Ub)
	want := []lpmodel.Term{
		{Var: plan.vars.sequence[seqKey{product: "P2", line: "L1", slot: 1, pos: MaxPositions}].Index(), Coeff: 1},
	}
	assert.Equal(t, want, c.Terms)
}

func TestBuild_SequenceAndForbiddenRules(t *testing.T) {
	b := NewBuilder(testCatalog(t))
	require.NoError(t, b.AddLineRule("L1", ProductSequence{Order: []string{"P1", "P2"}}))
	require.NoError(t, b.AddLineRule("L1", ForbiddenCombination{Pairs: [][2]string{{"P2", "P3"}}}))
	m := buildPlan(t, b).Model()

	c, ok := m.Constraint("sequence_L1_P1_P2_A_1")
	require.True(t, ok)
	assert.Equal(t, 1.0, c.Ub)
	assert.True(t, m.HasConstraint("forbidden_L1_P2_P3_B_2"))
}

func TestBuild_BlockSequenceRule(t *testing.T) {
	b := NewBuilder(testCatalog(t))
	require.NoError(t, b.AddLineRule("L1", BlockSequence{Blocks: []ProductBlocks{
		{Product: "P1", Count: 1},
		{Product: "P2", Count: 1},
	}}))
	plan := buildPlan(t, b)
	m := plan.Model()

	c, ok := m.Constraint("block_sequence_production_L1_P1_0")
	require.True(t, ok)
	assert.Equal(t, 1.0, c.Lb)
	assert.Equal(t, 1.0, c.Ub)
	assert.True(t, m.HasConstraint("block_sequence_production_L1_P2_1"))
	assert.True(t, m.HasConstraint("block_sequence_start_L1_P1_0"))
	assert.True(t, m.HasConstraint("block_sequence_no_start_L1_P1_1"))
	assert.True(t, m.HasConstraint("block_sequence_start_L1_P2_1"))
}

func TestBuilder_UtilizationTargetClamped(t *testing.T) {
	b := NewBuilder(testCatalog(t)).SetUtilizationTarget(0.5)
	assert.Equal(t, 0.90, b.targetRate)
	assert.Contains(t, b.warnings, "utilization target 0.50 clamped to 0.90")

	b = NewBuilder(testCatalog(t)).SetUtilizationTarget(1.3)
	assert.Equal(t, 1.0, b.targetRate)
}

func TestBuilder_WeightAdvisory(t *testing.T) {
	w := DefaultWeights()
	w.ChangeoverTime = 60
	b := NewBuilder(testCatalog(t)).SetWeights(w)
	require.Len(t, b.warnings, 1)
	assert.Contains(t, b.warnings[0], "changeover time weight 60")
}

func TestBuilder_ActiveLines(t *testing.T) {
	cat := testCatalog(t)

	b := NewBuilder(cat).WithActiveLines("L1", "L9")
	assert.Equal(t, []string{"L1"}, b.lines)
	assert.Contains(t, b.warnings, "ignoring unknown line L9")

	_, err := NewBuilder(cat).WithActiveLines("L9").Build()
	assert.ErrorIs(t, err, ErrNoActiveLines)
}

func TestBuild_VerifiedTimeLimits(t *testing.T) {
	plan := buildPlan(t, NewBuilder(testCatalog(t)))
	for _, w := range plan.Warnings {
		assert.NotContains(t, w, "missing per-slot time limit")
	}
}
