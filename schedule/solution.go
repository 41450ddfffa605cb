package schedule

import (
	"fmt"
	"sort"

	log "github.com/golang/glog"

	"github.com/optiline/prodsched/lpmodel"
)

// Entry is one product run inside a (line, slot) cell.
type Entry struct {
	Product string
	Hours   float64
	Units   float64
	Boxes   float64
}

// ChangeoverEvent records a product switch on a line, either inside a slot
// or across the boundary from the previous slot.
type ChangeoverEvent struct {
	Line  string
	Slot  string
	From  string
	To    string
	Hours float64
}

// CleaningEvent records setup or cleanup time in a slot.
type CleaningEvent struct {
	Line  string
	Slot  string
	Hours float64
}

// Statistics aggregates time usage across the whole week.
type Statistics struct {
	ProductionHours float64
	ChangeoverHours float64
	CleaningHours   float64
	TotalHours      float64
}

// Schedule is the decoded weekly plan.
type Schedule struct {
	LineOrder []string
	SlotOrder []string
	// Entries maps line -> slot name -> product runs in sequence order.
	Entries     map[string]map[string][]Entry
	Changeovers []ChangeoverEvent
	Cleanings   []CleaningEvent
	Stats       Statistics

	// Violations counts (line, slot) cells whose recomputed total time
	// exceeds the slot limit. Nonzero means a constraint-engine bug, not a
	// data problem.
	Violations int
	Warnings   []string
}

// Extract decodes a successful solve into a Schedule: ordered production
// entries, changeover and cleaning event logs, aggregate statistics, and an
// independent feasibility re-check of the per-slot time limits.
func (p *Plan) Extract(res *SolveResult) (*Schedule, error) {
	if res == nil || !res.OK {
		status := lpmodel.Undefined
		if res != nil {
			status = res.Status
		}
		return nil, fmt.Errorf("no solution to extract (status %v)", status)
	}
	sol := res.solution

	s := &Schedule{
		LineOrder: append([]string(nil), p.lines...),
		Entries:   make(map[string]map[string][]Entry, len(p.lines)),
	}
	for _, slot := range p.slots {
		s.SlotOrder = append(s.SlotOrder, slot.Name)
	}
	lk := newLookups(p.cat, &s.Warnings)

	for _, l := range p.lines {
		s.Entries[l] = make(map[string][]Entry, len(p.slots))
		for t, slot := range p.slots {
			entries := p.slotEntries(sol, lk, l, t)
			if len(entries) > 0 {
				s.Entries[l][slot.Name] = entries
			}
		}
	}

	p.collectChangeovers(lk, s)
	p.crossCheckChangeovers(sol, s)
	p.collectCleanings(sol, s)
	p.collectStats(sol, s)
	p.recheckTimeLimits(sol, s)

	return s, nil
}

// slotEntries reads the active production runs of one (line, slot) cell,
// ordered by their solved sequence positions; entries without a position
// keep catalog order at the end.
func (p *Plan) slotEntries(sol *lpmodel.Solution, lk lookups, line string, slot int) []Entry {
	type scored struct {
		entry Entry
		pos   int
	}
	var runs []scored
	for _, c := range p.vars.combos {
		if c.line != line {
			continue
		}
		k := prodKey{product: c.product, line: line, slot: slot}
		if !sol.Bool(p.vars.production[k]) {
			continue
		}
		hours := sol.Value(p.vars.productionTime[k])
		rate := p.cat.ThroughputRate(c.product, line)
		units := hours * rate * float64(lk.trackCount(line)) * 60
		boxes := units / float64(lk.itemsPerBox(c.product))

		pos := MaxPositions + 1
		for q := 1; q <= MaxPositions; q++ {
			if sol.Bool(p.vars.sequence[seqKey{product: c.product, line: line, slot: slot, pos: q}]) {
				pos = q
				break
			}
		}
		runs = append(runs, scored{
			entry: Entry{Product: c.product, Hours: hours, Units: units, Boxes: boxes},
			pos:   pos,
		})
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].pos < runs[j].pos })

	entries := make([]Entry, len(runs))
	for i, r := range runs {
		entries[i] = r.entry
	}
	return entries
}

// collectChangeovers derives changeover events from the ordered entries:
// adjacent entries within one slot always change over; across a slot
// boundary only when the products differ.
func (p *Plan) collectChangeovers(lk lookups, s *Schedule) {
	for _, l := range p.lines {
		for t, slot := range p.slots {
			entries := s.Entries[l][slot.Name]
			for i := 0; i+1 < len(entries); i++ {
				from, to := entries[i].Product, entries[i+1].Product
				s.Changeovers = append(s.Changeovers, ChangeoverEvent{
					Line:  l,
					Slot:  slot.Name,
					From:  from,
					To:    to,
					Hours: lk.changeoverHours(from, to, l),
				})
			}
			if t == 0 {
				continue
			}
			prev := s.Entries[l][p.slots[t-1].Name]
			if len(prev) == 0 || len(entries) == 0 {
				continue
			}
			from := prev[len(prev)-1].Product
			to := entries[0].Product
			if from == to {
				continue
			}
			s.Changeovers = append(s.Changeovers, ChangeoverEvent{
				Line:  l,
				Slot:  slot.Name,
				From:  from,
				To:    to,
				Hours: lk.changeoverHours(from, to, l),
			})
		}
	}
}

// crossCheckChangeovers is a read-only verification pass: any slot carrying
// positive changeover time must have at least one active pair indicator. A
// mismatch is a modeling inconsistency, logged and recorded but never
// auto-corrected and never turned into an event.
func (p *Plan) crossCheckChangeovers(sol *lpmodel.Solution, s *Schedule) {
	for _, l := range p.lines {
		pairs := p.vars.linePairs(l)
		for t, slot := range p.slots {
			cot := sol.Value(p.vars.changeoverTime[slotKey{line: l, slot: t}])
			if cot <= valueEps {
				continue
			}
			active := false
			for _, pair := range pairs {
				if sol.Bool(p.vars.changeover[pairKey{from: pair[0], to: pair[1], line: l, slot: t}]) {
					active = true
					break
				}
			}
			if active {
				continue
			}
			msg := fmt.Sprintf("changeover time %.2fh on line %s slot %s with no active changeover indicator",
				cot, l, slot.Name)
			log.Warning(msg)
			s.Warnings = append(s.Warnings, msg)
		}
	}
}

func (p *Plan) collectCleanings(sol *lpmodel.Solution, s *Schedule) {
	for _, l := range p.lines {
		for t, slot := range p.slots {
			hours := sol.Value(p.vars.cleaningTime[slotKey{line: l, slot: t}])
			if hours <= valueEps {
				continue
			}
			s.Cleanings = append(s.Cleanings, CleaningEvent{Line: l, Slot: slot.Name, Hours: hours})
		}
	}
}

func (p *Plan) collectStats(sol *lpmodel.Solution, s *Schedule) {
	for _, c := range p.vars.combos {
		for t := range p.slots {
			s.Stats.ProductionHours += sol.Value(p.vars.productionTime[prodKey{product: c.product, line: c.line, slot: t}])
		}
	}
	for _, l := range p.lines {
		for t := range p.slots {
			k := slotKey{line: l, slot: t}
			s.Stats.ChangeoverHours += sol.Value(p.vars.changeoverTime[k])
			s.Stats.CleaningHours += sol.Value(p.vars.cleaningTime[k])
		}
	}
	s.Stats.TotalHours = s.Stats.ProductionHours + s.Stats.ChangeoverHours + s.Stats.CleaningHours
}

// recheckTimeLimits independently recomputes the per-slot total time from
// the solved values and counts limit violations. A correct solve yields
// zero.
func (p *Plan) recheckTimeLimits(sol *lpmodel.Solution, s *Schedule) {
	for _, l := range p.lines {
		products := p.vars.lineProducts(l)
		for t, slot := range p.slots {
			total := 0.0
			for _, prod := range products {
				total += sol.Value(p.vars.productionTime[prodKey{product: prod, line: l, slot: t}])
			}
			k := slotKey{line: l, slot: t}
			total += sol.Value(p.vars.changeoverTime[k])
			total += sol.Value(p.vars.cleaningTime[k])
			if total <= slot.MaxHours+valueEps {
				continue
			}
			s.Violations++
			log.Errorf("slot time violation: line %s slot %s uses %.2fh of %.2fh",
				l, slot.Name, total, slot.MaxHours)
		}
	}
	if s.Violations > 0 {
		log.Errorf("schedule has %d slot time violations", s.Violations)
	}
}
