package schedule

import (
	"fmt"

	log "github.com/golang/glog"

	"github.com/optiline/prodsched/lpmodel"
)

// addAllConstraints emits every constraint family. Order matters only where
// a later family references derived values of an earlier one.
func (e *engine) addAllConstraints() {
	e.addProductionQuantity()
	e.addChangeoverCountLink()
	e.addSetupAndCleaning()
	e.addChangeoverDetection()
	e.addUtilizationTargets()
	e.addBlockContinuity()
	e.addMultiProductCap()
	e.addTotalChangeoverCap()
	e.addLineRules()
	e.addTimeNormalization()
}

// addProductionQuantity pins each product's total output, converted from
// hours to boxes, exactly to its order target. Products with no valid line
// are skipped with a warning.
func (e *engine) addProductionQuantity() {
	for _, p := range e.cat.Products() {
		expr := lpmodel.NewLinearExpr()
		hasLine := false
		for _, c := range e.vars.combos {
			if c.product != p {
				continue
			}
			hasLine = true
			perHour := e.boxesPerHour(p, c.line)
			for t := range e.slots {
				expr.AddTerm(e.vars.productionTime[prodKey{product: p, line: c.line, slot: t}], perHour)
			}
		}
		if !hasLine {
			e.warnOnce("product %s has no valid line, skipping its quantity constraint", p)
			continue
		}
		target := lpmodel.NewConstant(e.cat.OrderQuantity(p))
		e.b.AddGreaterOrEqual(expr, target).WithName("production_quantity_min_" + p)
		e.b.AddLessOrEqual(expr, target).WithName("production_quantity_max_" + p)
	}
}

// addChangeoverCountLink pins changeover_count to the sum of the pairwise
// changeover indicators of the slot, in both directions.
func (e *engine) addChangeoverCountLink() {
	for _, l := range e.lines {
		pairs := e.vars.linePairs(l)
		for t, slot := range e.slots {
			sum := lpmodel.NewLinearExpr()
			for _, pair := range pairs {
				sum.Add(e.vars.changeover[pairKey{from: pair[0], to: pair[1], line: l, slot: t}])
			}
			count := e.vars.changeoverCount[slotKey{line: l, slot: t}]
			e.b.AddGreaterOrEqual(count, sum).
				WithName(fmt.Sprintf("changeover_count_min_%s_%s", l, slot.Name))
			e.b.AddLessOrEqual(count, sum).
				WithName(fmt.Sprintf("changeover_count_max_%s_%s", l, slot.Name))
		}
	}
}

// addSetupAndCleaning pins cleaning_time to the line's setup time in the
// first slot, its cleanup time in the last, and zero in between.
func (e *engine) addSetupAndCleaning() {
	last := len(e.slots) - 1
	for _, l := range e.lines {
		setup := e.setupHours(l)
		cleanup := e.cleanupHours(l)
		if last == 0 {
			// One-slot week: both boundary times land in the same slot.
			e.b.AddEquality(e.vars.cleaningTime[slotKey{line: l, slot: 0}], lpmodel.NewConstant(setup+cleanup)).
				WithName("cleaning_time_" + l)
			continue
		}
		e.b.AddEquality(e.vars.cleaningTime[slotKey{line: l, slot: 0}], lpmodel.NewConstant(setup)).
			WithName("setup_time_" + l)
		e.b.AddEquality(e.vars.cleaningTime[slotKey{line: l, slot: last}], lpmodel.NewConstant(cleanup)).
			WithName("cleaning_time_" + l)
		for t := 1; t < last; t++ {
			e.b.AddEquality(e.vars.cleaningTime[slotKey{line: l, slot: t}], lpmodel.NewConstant(0)).
				WithName(fmt.Sprintf("no_cleaning_middle_%s_%s", l, e.slots[t].Name))
		}
	}
}

// addChangeoverDetection linearizes changeover detection. Each changeover
// indicator is the logical AND of two sequence occupancies, encoded with the
// standard three inequalities z <= a, z <= b, z >= a+b-1, for both the
// intra-slot case (adjacent positions) and the inter-slot case (last
// position of the previous slot vs. first position of the current one).
// It also links sequence occupancy to production and pins changeover_time to
// the rule-weighted indicator sum.
func (e *engine) addChangeoverDetection() {
	for _, l := range e.lines {
		pairs := e.vars.linePairs(l)
		products := e.vars.lineProducts(l)
		for t, slot := range e.slots {
			for _, pair := range pairs {
				p1, p2 := pair[0], pair[1]
				co := e.vars.changeover[pairKey{from: p1, to: p2, line: l, slot: t}]

				for pos := 1; pos < MaxPositions; pos++ {
					a := e.vars.sequence[seqKey{product: p1, line: l, slot: t, pos: pos}]
					b := e.vars.sequence[seqKey{product: p2, line: l, slot: t, pos: pos + 1}]
					suffix := fmt.Sprintf("%s_%s_%s_%s_%d", p1, p2, l, slot.Name, pos)
					e.b.AddLessOrEqual(co, a).WithName("intra_slot_changeover_1_" + suffix)
					e.b.AddLessOrEqual(co, b).WithName("intra_slot_changeover_2_" + suffix)
					e.b.AddGreaterOrEqual(co, lpmodel.NewLinearExpr().AddSum(a, b).AddConstant(-1)).
						WithName("intra_slot_changeover_3_" + suffix)
				}

				if t > 0 {
					a := e.vars.sequence[seqKey{product: p1, line: l, slot: t - 1, pos: MaxPositions}]
					b := e.vars.sequence[seqKey{product: p2, line: l, slot: t, pos: 1}]
					suffix := fmt.Sprintf("%s_%s_%s_%s", p1, p2, l, slot.Name)
					e.b.AddLessOrEqual(co, a).WithName("inter_slot_changeover_1_" + suffix)
					e.b.AddLessOrEqual(co, b).WithName("inter_slot_changeover_2_" + suffix)
					e.b.AddGreaterOrEqual(co, lpmodel.NewLinearExpr().AddSum(a, b).AddConstant(-1)).
						WithName("inter_slot_changeover_3_" + suffix)
				}
			}

			for _, p := range products {
				prod := e.vars.production[prodKey{product: p, line: l, slot: t}]
				for pos := 1; pos <= MaxPositions; pos++ {
					e.b.AddLessOrEqual(e.vars.sequence[seqKey{product: p, line: l, slot: t, pos: pos}], prod).
						WithName(fmt.Sprintf("sequence_to_production_%s_%s_%s_%d", p, l, slot.Name, pos))
				}
			}

			cot := e.vars.changeoverTime[slotKey{line: l, slot: t}]
			if len(pairs) == 0 {
				e.b.AddEquality(cot, lpmodel.NewConstant(0)).
					WithName(fmt.Sprintf("no_changeover_%s_%s", l, slot.Name))
				continue
			}
			weighted := lpmodel.NewLinearExpr()
			for _, pair := range pairs {
				hours := e.changeoverHours(pair[0], pair[1], l)
				weighted.AddTerm(e.vars.changeover[pairKey{from: pair[0], to: pair[1], line: l, slot: t}], hours)
			}
			e.b.AddEquality(cot, weighted).
				WithName(fmt.Sprintf("changeover_time_calculation_%s_%s", l, slot.Name))
		}
	}
}

// addUtilizationTargets adds the two soft utilization constraints per
// (line, slot): one pushing production time toward the hours left after the
// fixed time, one pushing total time toward the configured target rate. Both
// slacks join dedicated penalty pools.
func (e *engine) addUtilizationTargets() {
	for _, l := range e.lines {
		products := e.vars.lineProducts(l)
		for t, slot := range e.slots {
			prodSum := lpmodel.NewLinearExpr()
			for _, p := range products {
				prodSum.Add(e.vars.productionTime[prodKey{product: p, line: l, slot: t}])
			}
			cot := e.vars.changeoverTime[slotKey{line: l, slot: t}]
			clean := e.vars.cleaningTime[slotKey{line: l, slot: t}]

			slack := e.b.NewNonNegativeVar().
				WithName(fmt.Sprintf("production_underutil_slack_%s_%s", l, slot.Name))
			e.b.AddGreaterOrEqual(
				lpmodel.NewLinearExpr().Add(prodSum).Add(slack).AddSum(cot, clean),
				lpmodel.NewConstant(slot.MaxHours)).
				WithName(fmt.Sprintf("soft_production_utilization_%s_%s", l, slot.Name))
			e.pen.utilization = append(e.pen.utilization, slack)

			if slot.MaxHours-estimatedFixedHours <= 0 {
				e.warnOnce("slot %s on line %s is too short for the dynamic utilization target, skipping",
					slot.Name, l)
				continue
			}
			dynSlack := e.b.NewNonNegativeVar().
				WithName(fmt.Sprintf("dynamic_util_slack_%s_%s", l, slot.Name))
			e.b.AddGreaterOrEqual(
				lpmodel.NewLinearExpr().Add(prodSum).AddSum(cot, clean).Add(dynSlack),
				lpmodel.NewConstant(slot.MaxHours*e.targetRate)).
				WithName(fmt.Sprintf("dynamic_utilization_%s_%s", l, slot.Name))
			e.pen.dynamic = append(e.pen.dynamic, dynSlack)
		}
	}
}

// addBlockContinuity forces each combination's required production run into
// one contiguous block: a selected block start implies production in every
// slot it covers, and exactly one start is selected.
func (e *engine) addBlockContinuity() {
	added := 0
	for _, c := range e.vars.combos {
		required := e.vars.requiredSlots[c]
		if required <= 0 {
			continue
		}
		starts, ok := e.vars.blockStart[c]
		if !ok {
			e.warnOnce("product %s on line %s has no block variables, skipping continuity", c.product, c.line)
			continue
		}
		for s := range starts {
			for k := s; k < s+required; k++ {
				e.b.AddGreaterOrEqual(e.vars.production[prodKey{product: c.product, line: c.line, slot: k}], starts[s]).
					WithName(fmt.Sprintf("block_continuity_%s_%s_%d_%d", c.product, c.line, s, k))
				added++
			}
		}
		sum := lpmodel.NewLinearExpr()
		for _, v := range starts {
			sum.Add(v)
		}
		e.b.AddEquality(sum, lpmodel.NewConstant(1)).
			WithName(fmt.Sprintf("block_start_unique_%s_%s", c.product, c.line))
		added++
	}
	log.Infof("block continuity constraints: %d", added)
}

// addMultiProductCap limits each slot to MaxSlotProducts small-volume
// products, where "small-volume" means the product's whole target fits in
// less than the slot's working hours. Full-slot products are excluded; they
// occupy their slots alone.
func (e *engine) addMultiProductCap() {
	for _, l := range e.lines {
		products := e.vars.lineProducts(l)
		for t, slot := range e.slots {
			expr := lpmodel.NewLinearExpr()
			small := 0
			for _, p := range products {
				target := e.cat.OrderQuantity(p)
				if target <= 0 {
					continue
				}
				perHour := e.boxesPerHour(p, l)
				if perHour <= 0 {
					continue
				}
				if target/perHour < slot.MaxHours {
					expr.Add(e.vars.production[prodKey{product: p, line: l, slot: t}])
					small++
				}
			}
			if small == 0 {
				continue
			}
			e.b.AddLessOrEqual(expr, lpmodel.NewConstant(MaxSlotProducts)).
				WithName(fmt.Sprintf("multi_product_%s_%s", l, slot.Name))
		}
	}
}

// addTotalChangeoverCap caps the weekly changeover count across all lines.
func (e *engine) addTotalChangeoverCap() {
	total := lpmodel.NewLinearExpr()
	for _, l := range e.lines {
		for t := range e.slots {
			total.Add(e.vars.changeoverCount[slotKey{line: l, slot: t}])
		}
	}
	e.b.AddLessOrEqual(total, lpmodel.NewConstant(MaxTotalChangeovers)).
		WithName(fmt.Sprintf("total_changeover_limit_max%d_lines%d", MaxTotalChangeovers, len(e.lines)))
}

// addTimeNormalization re-asserts the per-combination time bounds: a minimum
// run length and a zero-link when the product is not chosen, plus a
// slack-bearing push toward full slot usage. It then adds the hard per-slot
// total time limit.
func (e *engine) addTimeNormalization() {
	for _, c := range e.vars.combos {
		for t, slot := range e.slots {
			k := prodKey{product: c.product, line: c.line, slot: t}
			pt := e.vars.productionTime[k]
			pd := e.vars.production[k]
			suffix := fmt.Sprintf("%s_%s_%s", c.product, c.line, slot.Name)

			e.b.AddGreaterOrEqual(pt, lpmodel.NewLinearExpr().AddTerm(pd, MinProductionHours)).
				WithName("min_time_" + suffix)
			// production_time > 0 implies production = 1.
			e.b.AddLessOrEqual(pt, lpmodel.NewLinearExpr().AddTerm(pd, slot.MaxHours)).
				WithName("max_time_link_" + suffix)

			slack := e.b.NewNonNegativeVar().WithName("time_slack_" + suffix)
			e.b.AddGreaterOrEqual(
				lpmodel.NewLinearExpr().AddSum(pt, slack),
				lpmodel.NewLinearExpr().AddTerm(pd, slot.MaxHours)).
				WithName("max_utilization_" + suffix)
			e.pen.normalization = append(e.pen.normalization, slack)
		}
	}

	last := len(e.slots) - 1
	for _, l := range e.lines {
		products := e.vars.lineProducts(l)
		for t, slot := range e.slots {
			total := lpmodel.NewLinearExpr()
			for _, p := range products {
				total.Add(e.vars.productionTime[prodKey{product: p, line: l, slot: t}])
			}
			total.Add(e.vars.changeoverTime[slotKey{line: l, slot: t}])
			// Interior cleaning is pinned to zero, so only the boundary
			// slots carry it.
			if t == 0 || t == last {
				total.Add(e.vars.cleaningTime[slotKey{line: l, slot: t}])
			}
			e.b.AddLessOrEqual(total, lpmodel.NewConstant(slot.MaxHours)).
				WithName(fmt.Sprintf("total_time_slot_limit_%s_%s", l, slot.Name))
		}
	}
}

// addLineRules dispatches the configured per-line rules exhaustively.
func (e *engine) addLineRules() {
	last := len(e.slots) - 1
	for _, l := range e.ruleLines {
		if !e.lineActive(l) {
			e.warnOnce("line %s has rules but is not active, skipping them", l)
			continue
		}
		for _, rule := range e.rules[l] {
			switch r := rule.(type) {
			case StartProduct:
				e.pinSequence(r.Product, l, 0, 1,
					fmt.Sprintf("start_product_%s_%s", l, r.Product))
			case StartEndProduct:
				e.pinSequence(r.Product, l, 0, 1,
					fmt.Sprintf("start_end_product_start_%s_%s", l, r.Product))
				e.pinSequence(r.Product, l, last, MaxPositions,
					fmt.Sprintf("start_end_product_end_%s_%s", l, r.Product))
			case LastProduct:
				e.pinSequence(r.Product, l, last, MaxPositions,
					fmt.Sprintf("last_product_%s_%s", l, r.Product))
			case ProductSequence:
				e.addOrderRule(l, r.Order)
			case BlockSequence:
				e.addBlockSequenceRule(l, r.Blocks)
			case ForbiddenCombination:
				e.addForbiddenRule(l, r.Pairs)
			case NoRule:
				log.Infof("line %s: no scheduling rule", l)
			}
		}
	}
}

func (e *engine) lineActive(line string) bool {
	for _, l := range e.lines {
		if l == line {
			return true
		}
	}
	return false
}

// pinSequence fixes one sequence occupancy to 1, skipping with a warning
// when the product cannot run on the line.
func (e *engine) pinSequence(product, line string, slot, pos int, name string) {
	v, ok := e.vars.sequence[seqKey{product: product, line: line, slot: slot, pos: pos}]
	if !ok {
		e.warnOnce("product %s cannot run on line %s, skipping rule constraint %s", product, line, name)
		return
	}
	e.b.AddEquality(v, lpmodel.NewConstant(1)).WithName(name)
}

// addOrderRule forbids any later product of the order from directly
// preceding an earlier one within a slot. Adjacency across a slot boundary
// (last position of one slot, first of the next) is not restricted.
func (e *engine) addOrderRule(line string, order []string) {
	for i := 0; i < len(order)-1; i++ {
		for j := i + 1; j < len(order); j++ {
			earlier, later := order[i], order[j]
			for t, slot := range e.slots {
				for pos := 1; pos < MaxPositions; pos++ {
					a, okA := e.vars.sequence[seqKey{product: later, line: line, slot: t, pos: pos}]
					b, okB := e.vars.sequence[seqKey{product: earlier, line: line, slot: t, pos: pos + 1}]
					if !okA || !okB {
						e.warnOnce("sequence rule on line %s skips pair %s/%s: not both valid on the line",
							line, earlier, later)
						continue
					}
					e.b.AddLessOrEqual(lpmodel.NewLinearExpr().AddSum(a, b), lpmodel.NewConstant(1)).
						WithName(fmt.Sprintf("sequence_%s_%s_%s_%s_%d", line, earlier, later, slot.Name, pos))
				}
			}
		}
	}
}

// addForbiddenRule forbids each configured pair from running back to back
// within a slot. Adjacency across a slot boundary is not restricted.
func (e *engine) addForbiddenRule(line string, pairs [][2]string) {
	for _, pair := range pairs {
		for t, slot := range e.slots {
			for pos := 1; pos < MaxPositions; pos++ {
				a, okA := e.vars.sequence[seqKey{product: pair[0], line: line, slot: t, pos: pos}]
				b, okB := e.vars.sequence[seqKey{product: pair[1], line: line, slot: t, pos: pos + 1}]
				if !okA || !okB {
					e.warnOnce("forbidden pair %s/%s on line %s skipped: not both valid on the line",
						pair[0], pair[1], line)
					continue
				}
				e.b.AddLessOrEqual(lpmodel.NewLinearExpr().AddSum(a, b), lpmodel.NewConstant(1)).
					WithName(fmt.Sprintf("forbidden_%s_%s_%s_%s_%d", line, pair[0], pair[1], slot.Name, pos))
			}
		}
	}
}

// addBlockSequenceRule lays the configured blocks out consecutively from the
// first slot, pinning production and the matching block start for each step.
func (e *engine) addBlockSequenceRule(line string, blocks []ProductBlocks) {
	total := 0
	for _, b := range blocks {
		total += b.Count
	}
	if total > len(e.slots) {
		e.warnOnce("line %s: block sequence needs %d slots but the week has %d, skipping",
			line, total, len(e.slots))
		return
	}

	pos := 0
	for _, blk := range blocks {
		c := comboKey{product: blk.Product, line: line}
		if _, ok := e.vars.production[prodKey{product: blk.Product, line: line, slot: 0}]; !ok {
			e.warnOnce("line %s: product %s cannot run here, skipping its block placement", line, blk.Product)
			pos += blk.Count
			continue
		}
		for k := 0; k < blk.Count; k++ {
			e.b.AddEquality(
				e.vars.production[prodKey{product: blk.Product, line: line, slot: pos + k}],
				lpmodel.NewConstant(1)).
				WithName(fmt.Sprintf("block_sequence_production_%s_%s_%d", line, blk.Product, pos+k))
		}
		if starts, ok := e.vars.blockStart[c]; ok {
			if pos < len(starts) {
				for s := range starts {
					if s == pos {
						e.b.AddEquality(starts[s], lpmodel.NewConstant(1)).
							WithName(fmt.Sprintf("block_sequence_start_%s_%s_%d", line, blk.Product, s))
						continue
					}
					e.b.AddEquality(starts[s], lpmodel.NewConstant(0)).
						WithName(fmt.Sprintf("block_sequence_no_start_%s_%s_%d", line, blk.Product, s))
				}
			} else {
				e.warnOnce("line %s: block for product %s starts at slot %d, beyond its feasible starts",
					line, blk.Product, pos)
			}
		}
		pos += blk.Count
	}
}

// verifyTimeConstraints checks that the hard per-slot time limit was
// registered for every (line, slot). A missing one is a structural bug in
// the engine, reported but not fatal.
func (e *engine) verifyTimeConstraints(m *lpmodel.Model) {
	missing := 0
	for _, l := range e.lines {
		for _, slot := range e.slots {
			name := fmt.Sprintf("total_time_slot_limit_%s_%s", l, slot.Name)
			if m.HasConstraint(name) {
				continue
			}
			missing++
			log.Errorf("expected constraint %s is missing from the model", name)
			e.warnings = append(e.warnings, "missing per-slot time limit: "+name)
		}
	}
	if missing == 0 {
		log.Infof("per-slot time limits verified: %d present", len(e.lines)*len(e.slots))
	}
}
