package flux

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

// simplexTol is the reduced-cost tolerance handed to the simplex solver.
const simplexTol = 1e-10

// LP solves flux balance problems (S·v = 0, lb ≤ v ≤ ub) with the simplex
// method. Infinite bounds are clamped to the default bound.
type LP struct {
	Tolerance float64
}

// problem is a model in simplex standard form. Flux v_j = lb_j + x_j with
// 0 ≤ x_j; each reaction also gets a slack s_j so that x_j + s_j = ub_j - lb_j.
type problem struct {
	ids   []string
	index map[string]int
	lower []float64
	a     [][]float64
	b     []float64
}

func clampBound(v float64) float64 {
	switch {
	case math.IsInf(v, 1) || v > models.DefaultBound:
		return models.DefaultBound
	case math.IsInf(v, -1) || v < -models.DefaultBound:
		return -models.DefaultBound
	default:
		return v
	}
}

func newProblem(m *models.Model) (*problem, error) {
	reactions := m.Reactions()
	n := len(reactions)
	if n == 0 {
		return nil, fmt.Errorf("%w: model has no reactions", ErrInfeasible)
	}
	p := &problem{
		ids:   make([]string, n),
		index: make(map[string]int, n),
		lower: make([]float64, n),
	}
	upper := make([]float64, n)
	for j, r := range reactions {
		p.ids[j] = r.ID
		p.index[r.ID] = j
		p.lower[j] = clampBound(r.LowerBound)
		upper[j] = clampBound(r.UpperBound)
		if p.lower[j] > upper[j] {
			return nil, fmt.Errorf("%w: bounds of %s", ErrInfeasible, r.ID)
		}
	}

	var (
		rows [][]float64
		rhs  []float64
	)
	// Mass balance: S·x = -S·lb.
	for _, met := range m.Metabolites() {
		row := make([]float64, 2*n)
		var b float64
		nonzero := false
		for _, r := range m.ReactionsOf(met.ID) {
			j := p.index[r.ID]
			c := r.Coefficient(met.ID)
			if c == 0 {
				continue
			}
			row[j] = c
			b -= c * p.lower[j]
			nonzero = true
		}
		if nonzero {
			rows = append(rows, row)
			rhs = append(rhs, b)
		}
	}
	// Bounds: x_j + s_j = ub_j - lb_j.
	for j := 0; j < n; j++ {
		row := make([]float64, 2*n)
		row[j] = 1
		row[n+j] = 1
		rows = append(rows, row)
		rhs = append(rhs, upper[j]-p.lower[j])
	}

	rows, rhs, err := independentRows(rows, rhs)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rhs[i] < 0 {
			for k := range rows[i] {
				rows[i][k] = -rows[i][k]
			}
			rhs[i] = -rhs[i]
		}
	}
	p.a, p.b = rows, rhs
	return p, nil
}

// independentRows drops rows that are linear combinations of earlier ones,
// which the simplex solver cannot handle. A dependent row whose right-hand
// side disagrees makes the system inconsistent.
func independentRows(rows [][]float64, rhs []float64) ([][]float64, []float64, error) {
	type basisRow struct {
		v     []float64
		b     float64
		pivot int
	}
	var (
		basis   []basisRow
		keptA   [][]float64
		keptRHS []float64
	)
	const eps = 1e-9
	for i, row := range rows {
		v := append([]float64(nil), row...)
		b := rhs[i]
		for _, br := range basis {
			f := v[br.pivot]
			if f == 0 {
				continue
			}
			for k := range v {
				v[k] -= f * br.v[k]
			}
			b -= f * br.b
		}
		pivot, best := -1, eps
		for k, x := range v {
			if math.Abs(x) > best {
				pivot, best = k, math.Abs(x)
			}
		}
		if pivot < 0 {
			if math.Abs(b) > 1e-6 {
				return nil, nil, fmt.Errorf("%w: inconsistent constraints", ErrInfeasible)
			}
			continue
		}
		scale := v[pivot]
		for k := range v {
			v[k] /= scale
		}
		b /= scale
		// Keep the basis reduced so every pivot column is zero elsewhere.
		for bi := range basis {
			f := basis[bi].v[pivot]
			if f == 0 {
				continue
			}
			for k := range basis[bi].v {
				basis[bi].v[k] -= f * v[k]
			}
			basis[bi].b -= f * b
		}
		basis = append(basis, basisRow{v: v, b: b, pivot: pivot})
		keptA = append(keptA, append([]float64(nil), row...))
		keptRHS = append(keptRHS, rhs[i])
	}
	return keptA, keptRHS, nil
}

// solve minimizes cost·v and returns the flux vector.
func (p *problem) solve(cost []float64) (float64, []float64, error) {
	n := len(p.ids)
	c := make([]float64, 2*n)
	copy(c, cost)
	data := make([]float64, 0, len(p.a)*2*n)
	for _, row := range p.a {
		data = append(data, row...)
	}
	A := mat.NewDense(len(p.a), 2*n, data)
	_, x, err := lp.Simplex(c, A, p.b, simplexTol, nil)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) {
			return 0, nil, ErrInfeasible
		}
		return 0, nil, fmt.Errorf("simplex: %w", err)
	}
	v := make([]float64, n)
	var obj float64
	for j := 0; j < n; j++ {
		v[j] = p.lower[j] + x[j]
		obj += cost[j] * v[j]
	}
	return obj, v, nil
}

// extreme returns the maximum (or minimum) flux of reaction j.
func (p *problem) extreme(j int, maximize bool) (float64, []float64, error) {
	cost := make([]float64, len(p.ids))
	cost[j] = 1
	if maximize {
		cost[j] = -1
	}
	obj, v, err := p.solve(cost)
	if err != nil {
		return 0, nil, err
	}
	if maximize {
		obj = -obj
	}
	return obj, v, nil
}

func (l *LP) tol() float64 {
	if l.Tolerance > 0 {
		return l.Tolerance
	}
	return Tolerance
}

// Optimize implements Optimizer.
func (l *LP) Optimize(ctx context.Context, m *models.Model) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := m.Reaction(m.Objective.ReactionID); !ok {
		return nil, ErrNoObjective
	}
	p, err := newProblem(m)
	if err != nil {
		return nil, err
	}
	obj, v, err := p.extreme(p.index[m.Objective.ReactionID], m.Objective.Maximize)
	if err != nil {
		return nil, err
	}
	sol := &Solution{Status: "optimal", ObjectiveValue: obj, Fluxes: make(map[string]float64, len(v))}
	for j, id := range p.ids {
		f := v[j]
		if math.Abs(f) < l.tol() {
			f = 0
		}
		sol.Fluxes[id] = f
	}
	return sol, nil
}

// CanCarryFlux implements Checker: the reaction's flux range is computed in
// both directions it allows.
func (l *LP) CanCarryFlux(ctx context.Context, m *models.Model, reactionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r, ok := m.Reaction(reactionID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownReaction, reactionID)
	}
	p, err := newProblem(m)
	if err != nil {
		return false, err
	}
	j := p.index[reactionID]
	if r.CanRunForward() {
		hi, _, err := p.extreme(j, true)
		if err != nil {
			return false, err
		}
		if hi > l.tol() {
			return true, nil
		}
	}
	if r.CanRunBackward() {
		lo, _, err := p.extreme(j, false)
		if err != nil {
			return false, err
		}
		if lo < -l.tol() {
			return true, nil
		}
	}
	return false, nil
}
