// Package solver loads lpmodel models into GLPK and runs the MIP pipeline.
//
// The adapter is synchronous: it loads the columns and rows, runs the simplex
// phase for the LP relaxation, then branch-and-cut for the integer variables,
// and maps the GLPK status onto lpmodel.Status. Callers decide what to do
// with an infeasible or unbounded outcome; no retry happens here.
package solver

import (
	"fmt"
	"math"

	log "github.com/golang/glog"
	"github.com/lukpank/go-glpk/glpk"

	"github.com/optiline/prodsched/lpmodel"
)

// Solve solves the model with GLPK and returns the solution. An error is
// returned only when the solver itself fails; an infeasible or unbounded
// model is reported through the solution status.
func Solve(m *lpmodel.Model) (*lpmodel.Solution, error) {
	lp := glpk.New()
	defer lp.Delete()
	lp.SetProbName(m.Name)
	if m.Objective.Maximize {
		lp.SetObjDir(glpk.MAX)
	} else {
		lp.SetObjDir(glpk.MIN)
	}

	loadColumns(lp, m)
	loadRows(lp, m)

	smcp := glpk.NewSmcp()
	smcp.SetMsgLev(glpk.MSG_ERR)
	if err := lp.Simplex(smcp); err != nil {
		return nil, fmt.Errorf("simplex phase failed: %w", err)
	}
	if st, done := relaxationStatus(lp.Status()); done {
		log.Infof("LP relaxation of %q is %v, skipping integer phase", m.Name, st)
		return &lpmodel.Solution{Status: st}, nil
	}

	iocp := glpk.NewIocp()
	iocp.SetPresolve(true)
	iocp.SetMsgLev(glpk.MSG_ERR)
	if err := lp.Intopt(iocp); err != nil {
		return nil, fmt.Errorf("integer phase failed: %w", err)
	}

	sol := &lpmodel.Solution{Status: mipStatus(lp.MipStatus())}
	if sol.Status == lpmodel.Optimal || sol.Status == lpmodel.Feasible {
		sol.Objective = lp.MipObjVal()
		sol.Values = make([]float64, len(m.Vars))
		for i := range m.Vars {
			sol.Values[i] = lp.MipColVal(i + 1)
		}
	}
	return sol, nil
}

func loadColumns(lp *glpk.Prob, m *lpmodel.Model) {
	if len(m.Vars) == 0 {
		return
	}
	lp.AddCols(len(m.Vars))
	for i, v := range m.Vars {
		col := i + 1
		lp.SetColName(col, v.Name)
		if v.Kind == lpmodel.Binary {
			// BV implies [0, 1] bounds in GLPK.
			lp.SetColKind(col, glpk.BV)
			continue
		}
		if v.Kind == lpmodel.Integer {
			lp.SetColKind(col, glpk.IV)
		}
		bt, lb, ub := boundsType(v.Lb, v.Ub)
		lp.SetColBnds(col, bt, lb, ub)
	}
	coeffs := make([]float64, len(m.Vars))
	for _, t := range m.Objective.Terms {
		coeffs[t.Var] += t.Coeff
	}
	for i, c := range coeffs {
		if c != 0 {
			lp.SetObjCoef(i+1, c)
		}
	}
	if m.Objective.Offset != 0 {
		// Column 0 holds the constant term of the objective.
		lp.SetObjCoef(0, m.Objective.Offset)
	}
}

func loadRows(lp *glpk.Prob, m *lpmodel.Model) {
	if len(m.Constraints) == 0 {
		return
	}
	lp.AddRows(len(m.Constraints))
	for i, c := range m.Constraints {
		row := i + 1
		lp.SetRowName(row, c.Name)
		bt, lb, ub := boundsType(c.Lb, c.Ub)
		lp.SetRowBnds(row, bt, lb, ub)
		// SetMatRow ignores ind[0] and val[0]; GLPK arrays are 1-based.
		ind := make([]int32, len(c.Terms)+1)
		val := make([]float64, len(c.Terms)+1)
		for j, t := range c.Terms {
			ind[j+1] = int32(t.Var) + 1
			val[j+1] = t.Coeff
		}
		lp.SetMatRow(row, ind, val)
	}
}

// boundsType picks the GLPK bounds type for a [lb, ub] pair, normalizing the
// unused bound to zero the way glp_set_row_bnds expects.
func boundsType(lb, ub float64) (glpk.BndsType, float64, float64) {
	lbInf := math.IsInf(lb, -1)
	ubInf := math.IsInf(ub, 1)
	switch {
	case lbInf && ubInf:
		return glpk.FR, 0, 0
	case lbInf:
		return glpk.UP, 0, ub
	case ubInf:
		return glpk.LO, lb, 0
	case lb == ub:
		return glpk.FX, lb, ub
	default:
		return glpk.DB, lb, ub
	}
}

// relaxationStatus inspects the LP relaxation status after the simplex phase.
// It reports (status, true) when the relaxation already decides the MIP
// outcome and the integer phase can be skipped.
func relaxationStatus(s glpk.SolStat) (lpmodel.Status, bool) {
	switch s {
	case glpk.OPT, glpk.FEAS:
		return lpmodel.Undefined, false
	case glpk.INFEAS, glpk.NOFEAS:
		return lpmodel.Infeasible, true
	case glpk.UNBND:
		return lpmodel.Unbounded, true
	default:
		return lpmodel.Undefined, true
	}
}

func mipStatus(s glpk.SolStat) lpmodel.Status {
	switch s {
	case glpk.OPT:
		return lpmodel.Optimal
	case glpk.FEAS:
		return lpmodel.Feasible
	case glpk.INFEAS, glpk.NOFEAS:
		return lpmodel.Infeasible
	case glpk.UNBND:
		return lpmodel.Unbounded
	default:
		return lpmodel.Undefined
	}
}
