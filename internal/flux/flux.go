// Package flux answers the two questions curation asks of a model: what the
// optimal flux distribution is, and whether a given reaction can carry any
// flux at all under the current bounds.
package flux

import (
	"context"
	"errors"
	"fmt"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

// Tolerance is the magnitude below which a flux counts as zero.
const Tolerance = 1e-7

// Methods accepted by New.
const (
	MethodTopology = "topology"
	MethodLP       = "lp"
)

var (
	// ErrInfeasible is returned when no steady state satisfies the bounds.
	ErrInfeasible = errors.New("model is infeasible")

	// ErrNoObjective is returned by Optimize when the model has no objective.
	ErrNoObjective = errors.New("model has no objective reaction")

	// ErrUnknownReaction is returned for reaction ids missing from the model.
	ErrUnknownReaction = errors.New("reaction not in model")
)

// Solution is the result of an optimization.
type Solution struct {
	Status         string             `json:"status"`
	ObjectiveValue float64            `json:"objective_value"`
	Fluxes         map[string]float64 `json:"fluxes"`
}

// Optimizer computes an optimal flux distribution for a model's objective.
type Optimizer interface {
	Optimize(ctx context.Context, m *models.Model) (*Solution, error)
}

// Checker reports whether a reaction can carry non-zero flux.
type Checker interface {
	CanCarryFlux(ctx context.Context, m *models.Model, reactionID string) (bool, error)
}

// Engine is both an Optimizer and a Checker.
type Engine interface {
	Optimizer
	Checker
}

// New returns the engine for a configured method name.
func New(method string, tolerance float64) (Engine, error) {
	if tolerance <= 0 {
		tolerance = Tolerance
	}
	switch method {
	case MethodTopology, "":
		return &Topology{Tolerance: tolerance}, nil
	case MethodLP:
		return &LP{Tolerance: tolerance}, nil
	default:
		return nil, fmt.Errorf("flux: unknown method %q", method)
	}
}

// BlockedReactions returns the ids of every reaction the checker reports as
// unable to carry flux, in model order.
func BlockedReactions(ctx context.Context, c Checker, m *models.Model) ([]string, error) {
	var out []string
	for _, r := range m.Reactions() {
		ok, err := c.CanCarryFlux(ctx, m, r.ID)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", r.ID, err)
		}
		if !ok {
			out = append(out, r.ID)
		}
	}
	return out, nil
}
