package schedule

import (
	log "github.com/golang/glog"

	"github.com/optiline/prodsched/lpmodel"
)

// setObjective assembles the minimized linear objective: production time
// enters negated (maximized), changeover time/count and cleaning time enter
// with their weights, and each penalty pool enters with its fixed
// coefficient.
func (e *engine) setObjective() {
	obj := lpmodel.NewLinearExpr()

	for _, c := range e.vars.combos {
		for t := range e.slots {
			obj.AddTerm(e.vars.productionTime[prodKey{product: c.product, line: c.line, slot: t}],
				-e.weights.ProductionTime)
		}
	}
	for _, l := range e.lines {
		for t := range e.slots {
			k := slotKey{line: l, slot: t}
			obj.AddTerm(e.vars.changeoverTime[k], e.weights.ChangeoverTime)
			obj.AddTerm(e.vars.changeoverCount[k], e.weights.ChangeoverCount)
			obj.AddTerm(e.vars.cleaningTime[k], e.weights.CleaningTime)
		}
	}

	for _, s := range e.pen.utilization {
		obj.AddTerm(s, utilizationPenalty)
	}
	for _, s := range e.pen.dynamic {
		obj.AddTerm(s, dynamicPenalty)
	}
	for _, s := range e.pen.normalization {
		obj.AddTerm(s, normalizationPenalty)
	}

	e.b.Minimize(obj)
	log.Infof("objective set: %d utilization, %d dynamic, %d normalization slacks",
		len(e.pen.utilization), len(e.pen.dynamic), len(e.pen.normalization))
}
