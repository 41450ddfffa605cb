// Package lpmodel offers a small API to build mixed-integer linear programs.
//
// The `Builder` struct accumulates variables, named constraints, and a linear
// objective, and materializes them into an immutable `Model` that a solver
// backend can load. The `Var` struct is a lightweight reference to a variable
// in the builder and the `LinearExpr` struct provides helper methods for
// assembling expressions with many variables and coefficients.
//
// Errors made while building (invalid bounds, mismatched argument lengths) are
// remembered and the first one is reported by `Model()`, so call sites can
// chain additions without checking an error at every step.
package lpmodel

import (
	"errors"
	"fmt"

	log "github.com/golang/glog"
)

// ErrInvalidBounds holds the error when a variable or constraint is created
// with a lower bound above its upper bound.
var ErrInvalidBounds = errors.New("lower bound exceeds upper bound")

// VarIndex is the index of a variable in the model.
type VarIndex int32

// VarKind describes the domain of a variable.
type VarKind int8

const (
	// Continuous is a real-valued variable.
	Continuous VarKind = iota
	// Integer is an integer-valued variable.
	Integer
	// Binary is a 0/1 variable.
	Binary
)

// String returns a readable name for the variable kind.
func (k VarKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	}
	return fmt.Sprintf("VarKind(%d)", int8(k))
}

// LinearArgument provides an interface for Var and LinearExpr.
type LinearArgument interface {
	addToLinearExpr(e *LinearExpr, c float64)
	evaluate(values []float64) float64
}

// Term is one variable-coefficient pair of a linear expression.
type Term struct {
	Var   VarIndex
	Coeff float64
}

// LinearExpr is a container for a linear expression.
type LinearExpr struct {
	terms  []Term
	offset float64
}

// NewLinearExpr creates a new empty LinearExpr.
func NewLinearExpr() *LinearExpr {
	return &LinearExpr{}
}

// NewConstant creates and returns a LinearExpr containing the constant `c`.
func NewConstant(c float64) *LinearExpr {
	return &LinearExpr{offset: c}
}

// Add adds the linear argument term to the LinearExpr and returns itself.
func (l *LinearExpr) Add(la LinearArgument) *LinearExpr {
	l.AddTerm(la, 1)
	return l
}

// AddConstant adds the constant to the LinearExpr and returns itself.
func (l *LinearExpr) AddConstant(c float64) *LinearExpr {
	l.offset += c
	return l
}

// AddTerm adds the linear argument term with the given coefficient to the
// LinearExpr and returns itself.
func (l *LinearExpr) AddTerm(la LinearArgument, coeff float64) *LinearExpr {
	la.addToLinearExpr(l, coeff)
	return l
}

// AddSum adds the sum of the linear arguments to the LinearExpr and returns
// itself.
func (l *LinearExpr) AddSum(las ...LinearArgument) *LinearExpr {
	for _, la := range las {
		l.Add(la)
	}
	return l
}

// AddWeightedSum adds the linear arguments with the corresponding coefficients
// to the LinearExpr and returns itself.
func (l *LinearExpr) AddWeightedSum(las []LinearArgument, coeffs []float64) *LinearExpr {
	if len(coeffs) != len(las) {
		log.Fatalf("las and coeffs must be the same length: %v != %v", len(las), len(coeffs))
	}
	for i, la := range las {
		l.AddTerm(la, coeffs[i])
	}
	return l
}

func (l *LinearExpr) addToLinearExpr(e *LinearExpr, c float64) {
	for _, t := range l.terms {
		e.terms = append(e.terms, Term{Var: t.Var, Coeff: t.Coeff * c})
	}
	e.offset += l.offset * c
}

func (l *LinearExpr) evaluate(values []float64) float64 {
	result := l.offset
	for _, t := range l.terms {
		result += values[t.Var] * t.Coeff
	}
	return result
}

// canonicalTerms merges duplicate variables, preserving first-appearance
// order. Solver backends reject rows that mention a column twice.
func (l *LinearExpr) canonicalTerms() []Term {
	pos := make(map[VarIndex]int, len(l.terms))
	merged := make([]Term, 0, len(l.terms))
	for _, t := range l.terms {
		if i, ok := pos[t.Var]; ok {
			merged[i].Coeff += t.Coeff
			continue
		}
		pos[t.Var] = len(merged)
		merged = append(merged, t)
	}
	return merged
}

// Var is a reference to a variable in the model under construction.
type Var struct {
	ind VarIndex
	b   *Builder
}

// Index returns the index of the variable.
func (v Var) Index() VarIndex {
	return v.ind
}

// Name returns the name of the variable.
func (v Var) Name() string {
	return v.b.vars[v.ind].Name
}

// Kind returns the kind of the variable.
func (v Var) Kind() VarKind {
	return v.b.vars[v.ind].Kind
}

// WithName sets the name of the variable.
func (v Var) WithName(s string) Var {
	v.b.vars[v.ind].Name = s
	return v
}

func (v Var) addToLinearExpr(e *LinearExpr, c float64) {
	e.terms = append(e.terms, Term{Var: v.ind, Coeff: c})
}

func (v Var) evaluate(values []float64) float64 {
	return values[v.ind]
}

// Constraint is a reference to a constraint in the model under construction.
type Constraint struct {
	ind int32
	b   *Builder
}

// Name returns the name of the constraint.
func (c Constraint) Name() string {
	return c.b.constrs[c.ind].Name
}

// WithName sets the name of the constraint.
func (c Constraint) WithName(s string) Constraint {
	c.b.constrs[c.ind].Name = s
	return c
}
