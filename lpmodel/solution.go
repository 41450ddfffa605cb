package lpmodel

import "fmt"

// Status is the outcome reported by a solver backend.
type Status int8

const (
	// Undefined means the solver did not reach a conclusive state.
	Undefined Status = iota
	// Optimal means a provably optimal solution was found.
	Optimal
	// Feasible means a solution was found but optimality was not proven.
	Feasible
	// Infeasible means the constraints admit no solution.
	Infeasible
	// Unbounded means the objective can be improved without limit.
	Unbounded
)

// String returns a readable name for the status.
func (s Status) String() string {
	switch s {
	case Undefined:
		return "undefined"
	case Optimal:
		return "optimal"
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	}
	return fmt.Sprintf("Status(%d)", int8(s))
}

// Solution holds the values of a solved model. Values is indexed by VarIndex
// and is nil unless the status is Optimal or Feasible.
type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
}

// Value returns the solved value of the linear argument.
func (s *Solution) Value(la LinearArgument) float64 {
	return la.evaluate(s.Values)
}

// Bool returns the solved value of a binary variable, using the usual 0.5
// rounding threshold.
func (s *Solution) Bool(v Var) bool {
	return s.Values[v.Index()] > 0.5
}
