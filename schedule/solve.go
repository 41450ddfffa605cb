package schedule

import (
	"fmt"
	"time"

	log "github.com/golang/glog"

	"github.com/optiline/prodsched/lpmodel"
)

// Solver runs an assembled model. The GLPK adapter in the solver package
// satisfies this via SolverFunc.
type Solver interface {
	Solve(*lpmodel.Model) (*lpmodel.Solution, error)
}

// SolverFunc adapts a plain function to the Solver interface.
type SolverFunc func(*lpmodel.Model) (*lpmodel.Solution, error)

// Solve calls f(m).
func (f SolverFunc) Solve(m *lpmodel.Model) (*lpmodel.Solution, error) { return f(m) }

// SolveResult is the outcome of one solver run. OK is true only for a
// provably optimal solution; callers seeing OK == false may rebuild with
// relaxed weights or rules and try again.
type SolveResult struct {
	OK        bool
	Status    lpmodel.Status
	Objective float64

	solution *lpmodel.Solution
}

// Solve runs the plan's model through the solver backend synchronously and
// maps the outcome. An error is returned only for solver failures; an
// infeasible or unbounded model is a non-OK result.
func Solve(p *Plan, s Solver) (*SolveResult, error) {
	start := time.Now()
	sol, err := s.Solve(p.model)
	if err != nil {
		return nil, fmt.Errorf("solving %q: %w", p.model.Name, err)
	}
	res := &SolveResult{Status: sol.Status, solution: sol}
	switch sol.Status {
	case lpmodel.Optimal:
		res.OK = true
		res.Objective = sol.Objective
		log.Infof("solve finished in %v: optimal, objective %.2f", time.Since(start), sol.Objective)
	case lpmodel.Infeasible:
		log.Errorf("model %q is infeasible (constraint conflict)", p.model.Name)
	case lpmodel.Unbounded:
		log.Errorf("model %q is unbounded", p.model.Name)
	default:
		log.Errorf("solve of %q ended with status %v", p.model.Name, sol.Status)
	}
	return res, nil
}
