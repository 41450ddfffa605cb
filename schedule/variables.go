package schedule

import (
	"fmt"
	"math"

	log "github.com/golang/glog"

	"github.com/optiline/prodsched/lpmodel"
)

// Variable index keys. Slots are referenced by their position in the ordered
// slot list, not by name.
type (
	comboKey struct {
		product, line string
	}
	prodKey struct {
		product, line string
		slot          int
	}
	pairKey struct {
		from, to, line string
		slot           int
	}
	slotKey struct {
		line string
		slot int
	}
	seqKey struct {
		product, line string
		slot, pos     int
	}
)

// variables holds every decision-variable family, keyed for O(1) lookup
// during constraint building and solution extraction. Identities are fixed
// at creation; only solved values are read afterwards.
type variables struct {
	combos          []comboKey
	production      map[prodKey]lpmodel.Var
	productionTime  map[prodKey]lpmodel.Var
	changeover      map[pairKey]lpmodel.Var
	changeoverTime  map[slotKey]lpmodel.Var
	cleaningTime    map[slotKey]lpmodel.Var
	changeoverCount map[slotKey]lpmodel.Var
	sequence        map[seqKey]lpmodel.Var
	blockStart      map[comboKey][]lpmodel.Var
	requiredSlots   map[comboKey]int
}

// lineProducts returns the products valid on the line, in combo order.
func (v *variables) lineProducts(line string) []string {
	var products []string
	for _, c := range v.combos {
		if c.line == line {
			products = append(products, c.product)
		}
	}
	return products
}

// linePairs returns every ordered (from, to) product pair valid on the line.
func (v *variables) linePairs(line string) [][2]string {
	products := v.lineProducts(line)
	var pairs [][2]string
	for _, p1 := range products {
		for _, p2 := range products {
			if p1 != p2 {
				pairs = append(pairs, [2]string{p1, p2})
			}
		}
	}
	return pairs
}

// createVariables enumerates the valid (product, line) combinations and
// builds every decision-variable family over them.
func (e *engine) createVariables() {
	v := &variables{
		production:      make(map[prodKey]lpmodel.Var),
		productionTime:  make(map[prodKey]lpmodel.Var),
		changeover:      make(map[pairKey]lpmodel.Var),
		changeoverTime:  make(map[slotKey]lpmodel.Var),
		cleaningTime:    make(map[slotKey]lpmodel.Var),
		changeoverCount: make(map[slotKey]lpmodel.Var),
		sequence:        make(map[seqKey]lpmodel.Var),
		blockStart:      make(map[comboKey][]lpmodel.Var),
		requiredSlots:   make(map[comboKey]int),
	}
	e.vars = v

	for _, p := range e.cat.Products() {
		for _, l := range e.lines {
			if e.cat.ThroughputRate(p, l) > 0 {
				v.combos = append(v.combos, comboKey{product: p, line: l})
			}
		}
	}
	if len(v.combos) == 0 {
		// Degenerate-input policy: admit everything rather than silently
		// producing an empty model.
		e.warnOnce("no product/line combination has a positive throughput rate, admitting all combinations")
		for _, p := range e.cat.Products() {
			for _, l := range e.lines {
				v.combos = append(v.combos, comboKey{product: p, line: l})
			}
		}
	}
	log.Infof("valid product/line combinations: %d", len(v.combos))

	for _, c := range v.combos {
		for t, slot := range e.slots {
			k := prodKey{product: c.product, line: c.line, slot: t}
			v.production[k] = e.b.NewBinaryVar().
				WithName(fmt.Sprintf("production_%s_%s_%s", c.product, c.line, slot.Name))
			v.productionTime[k] = e.b.NewNonNegativeVar().
				WithName(fmt.Sprintf("production_time_%s_%s_%s", c.product, c.line, slot.Name))
		}
	}

	for _, l := range e.lines {
		for _, pair := range v.linePairs(l) {
			for t, slot := range e.slots {
				k := pairKey{from: pair[0], to: pair[1], line: l, slot: t}
				v.changeover[k] = e.b.NewBinaryVar().
					WithName(fmt.Sprintf("changeover_%s_%s_%s_%s", pair[0], pair[1], l, slot.Name))
			}
		}
	}

	for _, l := range e.lines {
		for t, slot := range e.slots {
			k := slotKey{line: l, slot: t}
			v.changeoverTime[k] = e.b.NewNonNegativeVar().
				WithName(fmt.Sprintf("changeover_time_%s_%s", l, slot.Name))
			v.cleaningTime[k] = e.b.NewNonNegativeVar().
				WithName(fmt.Sprintf("cleaning_time_%s_%s", l, slot.Name))
			v.changeoverCount[k] = e.b.NewBinaryVar().
				WithName(fmt.Sprintf("changeover_count_%s_%s", l, slot.Name))
		}
	}

	for _, c := range v.combos {
		for t, slot := range e.slots {
			for pos := 1; pos <= MaxPositions; pos++ {
				k := seqKey{product: c.product, line: c.line, slot: t, pos: pos}
				v.sequence[k] = e.b.NewBinaryVar().
					WithName(fmt.Sprintf("sequence_%s_%s_%s_%d", c.product, c.line, slot.Name, pos))
			}
		}
	}

	for _, c := range v.combos {
		required := e.requiredTimeSlots(c.product, c.line)
		v.requiredSlots[c] = required
		if required <= 0 {
			continue
		}
		n := len(e.slots) - required + 1
		if n <= 0 {
			e.warnOnce("product %s on line %s needs %d slots but the week has %d, skipping block variables",
				c.product, c.line, required, len(e.slots))
			continue
		}
		starts := make([]lpmodel.Var, n)
		for s := range starts {
			starts[s] = e.b.NewBinaryVar().
				WithName(fmt.Sprintf("block_start_%s_%s_%d", c.product, c.line, s))
		}
		v.blockStart[c] = starts
	}
}

// requiredTimeSlots derives how many contiguous slots the product needs on
// the line to hit its order target, using the first slot's working hours as
// the reference slot length. A zero target needs zero slots.
func (e *engine) requiredTimeSlots(product, line string) int {
	target := e.cat.OrderQuantity(product)
	if target <= 0 {
		return 0
	}
	perHour := e.boxesPerHour(product, line)
	if perHour <= 0 {
		e.warnOnce("product %s on line %s has no usable throughput, skipping block sizing", product, line)
		return 0
	}
	reference := e.slots[0].MaxHours
	if reference <= 0 {
		e.warnOnce("slot %s has no working hours, skipping block sizing for product %s",
			e.slots[0].Name, product)
		return 0
	}
	required := int(math.Ceil(target / perHour / reference))
	if required < 1 {
		required = 1
	}
	return required
}
