package lpmodel

import (
	"fmt"
	"math"
)

// VarData describes one variable of a materialized model.
type VarData struct {
	Name string
	Lb   float64
	Ub   float64
	Kind VarKind
}

// ConstraintData describes one constraint row of a materialized model. The
// row enforces Lb <= sum(Terms) <= Ub; either bound may be infinite.
type ConstraintData struct {
	Name  string
	Lb    float64
	Ub    float64
	Terms []Term
}

// Objective is the linear objective of a materialized model.
type Objective struct {
	Terms    []Term
	Offset   float64
	Maximize bool
}

// Model is an immutable mixed-integer linear program, ready to be handed to a
// solver backend.
type Model struct {
	Name        string
	Vars        []VarData
	Constraints []ConstraintData
	Objective   Objective
}

// Constraint returns the constraint with the given name, if present.
func (m *Model) Constraint(name string) (ConstraintData, bool) {
	for _, c := range m.Constraints {
		if c.Name == name {
			return c, true
		}
	}
	return ConstraintData{}, false
}

// HasConstraint reports whether a constraint with the given name exists.
func (m *Model) HasConstraint(name string) bool {
	_, ok := m.Constraint(name)
	return ok
}

// Builder accumulates variables, constraints, and the objective of a MILP.
type Builder struct {
	name    string
	vars    []VarData
	constrs []ConstraintData
	obj     Objective
	// The first and only the first error is reported in Model.
	err error
}

// NewBuilder creates and returns a new model Builder.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

func (b *Builder) setErrorf(format string, a ...any) {
	if b.err == nil {
		b.err = fmt.Errorf(format, a...)
	}
}

// NewVar creates a new variable with the given bounds and kind.
func (b *Builder) NewVar(lb, ub float64, kind VarKind) Var {
	if lb > ub {
		b.setErrorf("variable %d: %w: [%v, %v]", len(b.vars), ErrInvalidBounds, lb, ub)
	}
	v := Var{ind: VarIndex(len(b.vars)), b: b}
	b.vars = append(b.vars, VarData{Lb: lb, Ub: ub, Kind: kind})
	return v
}

// NewContinuousVar creates a new continuous variable with the given bounds.
func (b *Builder) NewContinuousVar(lb, ub float64) Var {
	return b.NewVar(lb, ub, Continuous)
}

// NewNonNegativeVar creates a new continuous variable bounded below by zero.
func (b *Builder) NewNonNegativeVar() Var {
	return b.NewVar(0, math.Inf(1), Continuous)
}

// NewBinaryVar creates a new 0/1 variable.
func (b *Builder) NewBinaryVar() Var {
	return b.NewVar(0, 1, Binary)
}

// AddConstraint adds the constraint `lb <= la <= ub`. A constant offset in
// `la` is folded into the bounds.
func (b *Builder) AddConstraint(la LinearArgument, lb, ub float64) Constraint {
	if lb > ub {
		b.setErrorf("constraint %d: %w: [%v, %v]", len(b.constrs), ErrInvalidBounds, lb, ub)
	}
	e := NewLinearExpr().Add(la)
	c := Constraint{ind: int32(len(b.constrs)), b: b}
	b.constrs = append(b.constrs, ConstraintData{
		Lb:    lb - e.offset,
		Ub:    ub - e.offset,
		Terms: e.canonicalTerms(),
	})
	return c
}

// AddLessOrEqual adds the linear constraint `lhs <= rhs`.
func (b *Builder) AddLessOrEqual(lhs LinearArgument, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return b.AddConstraint(diff, math.Inf(-1), 0)
}

// AddGreaterOrEqual adds the linear constraint `lhs >= rhs`.
func (b *Builder) AddGreaterOrEqual(lhs LinearArgument, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return b.AddConstraint(diff, 0, math.Inf(1))
}

// AddEquality adds the linear constraint `lhs == rhs`.
func (b *Builder) AddEquality(lhs LinearArgument, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
	return b.AddConstraint(diff, 0, 0)
}

// Minimize sets the objective to minimize the given linear argument.
func (b *Builder) Minimize(la LinearArgument) {
	b.setObjective(la, false)
}

// Maximize sets the objective to maximize the given linear argument.
func (b *Builder) Maximize(la LinearArgument) {
	b.setObjective(la, true)
}

func (b *Builder) setObjective(la LinearArgument, maximize bool) {
	e := NewLinearExpr().Add(la)
	b.obj = Objective{Terms: e.canonicalTerms(), Offset: e.offset, Maximize: maximize}
}

// VarCount returns the number of variables added so far.
func (b *Builder) VarCount() int {
	return len(b.vars)
}

// ConstraintCount returns the number of constraints added so far.
func (b *Builder) ConstraintCount() int {
	return len(b.constrs)
}

// Model materializes the builder into an immutable Model. It returns the
// first error recorded while building, if any.
func (b *Builder) Model() (*Model, error) {
	if b.err != nil {
		return nil, b.err
	}
	m := &Model{
		Name:        b.name,
		Vars:        make([]VarData, len(b.vars)),
		Constraints: make([]ConstraintData, len(b.constrs)),
		Objective: Objective{
			Terms:    append([]Term(nil), b.obj.Terms...),
			Offset:   b.obj.Offset,
			Maximize: b.obj.Maximize,
		},
	}
	copy(m.Vars, b.vars)
	for i, c := range b.constrs {
		m.Constraints[i] = ConstraintData{
			Name:  c.Name,
			Lb:    c.Lb,
			Ub:    c.Ub,
			Terms: append([]Term(nil), c.Terms...),
		}
	}
	return m, nil
}
