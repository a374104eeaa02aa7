package risk

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultAlpha is the fixed L2 penalty applied to every window.
const DefaultAlpha = 1.0

// ErrDegenerateWindow is returned when a training window cannot be solved.
var ErrDegenerateWindow = errors.New("risk: degenerate regression window")

// RidgeFit holds the coefficients of one ridge regression.
type RidgeFit struct {
	Coef      []float64
	Intercept float64
}

// Row returns the coefficients followed by the intercept.
func (f RidgeFit) Row() []float64 {
	out := make([]float64, len(f.Coef)+1)
	copy(out, f.Coef)
	out[len(f.Coef)] = f.Intercept
	return out
}

// FitRidge solves min ||y - Xb - c||² + alpha·||b||² with an unpenalised
// intercept c. X is centred column-wise before solving the normal equations.
func FitRidge(x *mat.Dense, y []float64, alpha float64) (RidgeFit, error) {
	n, p := x.Dims()
	if n == 0 || n != len(y) {
		return RidgeFit{}, fmt.Errorf("%w: %d rows, %d targets", ErrDegenerateWindow, n, len(y))
	}
	if !allFinite(y) {
		return RidgeFit{}, fmt.Errorf("%w: non-finite target", ErrDegenerateWindow)
	}

	yMean := floats.Sum(y) / float64(n)
	yc := make([]float64, n)
	for i, v := range y {
		yc[i] = v - yMean
	}
	if p == 0 {
		return RidgeFit{Coef: []float64{}, Intercept: yMean}, nil
	}

	xMean := make([]float64, p)
	xc := mat.NewDense(n, p, nil)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		if !allFinite(col) {
			return RidgeFit{}, fmt.Errorf("%w: non-finite input in column %d", ErrDegenerateWindow, j)
		}
		m := floats.Sum(col) / float64(n)
		xMean[j] = m
		for i := range col {
			col[i] -= m
		}
		xc.SetCol(j, col)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, xc.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+alpha)
	}

	var rhs mat.VecDense
	rhs.MulVec(xc.T(), mat.NewVecDense(n, yc))

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return RidgeFit{}, fmt.Errorf("%w: gram matrix not positive definite", ErrDegenerateWindow)
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return RidgeFit{}, fmt.Errorf("%w: %v", ErrDegenerateWindow, err)
	}

	coef := make([]float64, p)
	for j := range coef {
		coef[j] = beta.AtVec(j)
	}
	intercept := yMean - floats.Dot(xMean, coef)
	if !allFinite(coef) || math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return RidgeFit{}, fmt.Errorf("%w: non-finite solution", ErrDegenerateWindow)
	}
	return RidgeFit{Coef: coef, Intercept: intercept}, nil
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
