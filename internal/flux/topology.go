package flux

import (
	"context"
	"fmt"
	"math"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

// Topology decides flux capability from network structure alone. A
// metabolite that has no producer, no consumer, or a single reaction
// touching it cannot be at steady state with non-zero flux, so every
// reaction touching it is blocked. Blocking propagates until nothing
// changes. Optimize sets every unblocked reaction to its objective-side
// bound and is only meant for previews.
//
// Bounds and net coefficients whose magnitude does not exceed Tolerance
// count as zero.
type Topology struct {
	Tolerance float64
}

func (t *Topology) tol() float64 {
	if t.Tolerance > 0 {
		return t.Tolerance
	}
	return Tolerance
}

func (t *Topology) forward(r *models.Reaction) bool  { return r.UpperBound > t.tol() }
func (t *Topology) backward(r *models.Reaction) bool { return r.LowerBound < -t.tol() }

// Blocked runs the propagation and returns the set of blocked reactions.
func (t *Topology) Blocked(m *models.Model) map[string]bool {
	reactions := m.Reactions()
	blocked := make(map[string]bool, len(reactions))
	for _, r := range reactions {
		if !t.forward(r) && !t.backward(r) {
			blocked[r.ID] = true
		}
	}

	for changed := true; changed; {
		changed = false
		for _, met := range m.Metabolites() {
			var (
				touching         []*models.Reaction
				produce, consume bool
			)
			for _, r := range m.ReactionsOf(met.ID) {
				c := r.Coefficient(met.ID)
				if blocked[r.ID] || math.Abs(c) <= t.tol() {
					continue
				}
				touching = append(touching, r)
				if (c > 0 && t.forward(r)) || (c < 0 && t.backward(r)) {
					produce = true
				}
				if (c < 0 && t.forward(r)) || (c > 0 && t.backward(r)) {
					consume = true
				}
			}
			if len(touching) == 0 {
				continue
			}
			if len(touching) > 1 && produce && consume {
				continue
			}
			for _, r := range touching {
				blocked[r.ID] = true
			}
			changed = true
		}
	}
	return blocked
}

// CanCarryFlux implements Checker.
func (t *Topology) CanCarryFlux(_ context.Context, m *models.Model, reactionID string) (bool, error) {
	if _, ok := m.Reaction(reactionID); !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownReaction, reactionID)
	}
	return !t.Blocked(m)[reactionID], nil
}

// Optimize implements Optimizer.
func (t *Topology) Optimize(_ context.Context, m *models.Model) (*Solution, error) {
	obj, ok := m.Reaction(m.Objective.ReactionID)
	if !ok {
		return nil, ErrNoObjective
	}
	blocked := t.Blocked(m)
	sol := &Solution{Status: "topological", Fluxes: make(map[string]float64, len(blocked))}
	for _, r := range m.Reactions() {
		sol.Fluxes[r.ID] = 0
	}
	if !blocked[obj.ID] {
		v := obj.UpperBound
		if !m.Objective.Maximize {
			v = obj.LowerBound
		}
		sol.Fluxes[obj.ID] = v
		sol.ObjectiveValue = v
	}
	return sol, nil
}
