// Package curation holds the per-reaction checks applied while merging.
// Checks are stateless and never modify the model; failing a check is a
// warning for the curator, not an error.
package curation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ajitpratap0/pathcurate/internal/flux"
	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/pkg/formula"
)

// Criterion names a curation check.
type Criterion string

const (
	CriterionDuplicateElement Criterion = "duplicate_element"
	CriterionImbalance        Criterion = "imbalance"
	CriterionUnknownFormula   Criterion = "unknown_formula"
	CriterionReversibility    Criterion = "reversibility"
	CriterionZeroFlux         Criterion = "zero_flux"
)

// Status is the outcome of a check.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of one check on one reaction.
type Result struct {
	Criterion Criterion         `json:"criterion"`
	Reaction  string            `json:"reaction"`
	Status    Status            `json:"status"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Failed reports whether the check found a problem.
func (r Result) Failed() bool { return r.Status == StatusFail }

func pass(c Criterion, r *models.Reaction) Result {
	return Result{Criterion: c, Reaction: r.ID, Status: StatusPass}
}

// DuplicateElements fails when a metabolite is listed more than once with
// different coefficients.
func DuplicateElements(r *models.Reaction) Result {
	first := make(map[string]float64, len(r.Stoichiometry))
	var dup []string
	for _, p := range r.Stoichiometry {
		c, seen := first[p.MetaboliteID]
		if !seen {
			first[p.MetaboliteID] = p.Coefficient
			continue
		}
		if c != p.Coefficient {
			dup = append(dup, p.MetaboliteID)
		}
	}
	if len(dup) == 0 {
		return pass(CriterionDuplicateElement, r)
	}
	return Result{
		Criterion: CriterionDuplicateElement,
		Reaction:  r.ID,
		Status:    StatusFail,
		Message:   fmt.Sprintf("metabolites listed twice with different coefficients: %s", strings.Join(dup, ", ")),
		Details:   map[string]string{"metabolites": strings.Join(dup, ",")},
	}
}

// MassBalance sums formula × coefficient and charge × coefficient over the
// participants. Both must vanish. The check is skipped when any participant
// has no usable formula.
func MassBalance(r *models.Reaction, m *models.Model) Result {
	total := formula.Composition{}
	var (
		charge  float64
		unknown []string
	)
	for _, p := range r.Stoichiometry {
		met, ok := m.Metabolite(p.MetaboliteID)
		if !ok || !met.HasFormula() {
			unknown = append(unknown, p.MetaboliteID)
			continue
		}
		comp, err := formula.Parse(met.Formula)
		if err != nil {
			unknown = append(unknown, p.MetaboliteID)
			continue
		}
		total.Add(comp.Scale(p.Coefficient))
		charge += float64(met.Charge) * p.Coefficient
	}
	if len(unknown) > 0 {
		return Result{
			Criterion: CriterionUnknownFormula,
			Reaction:  r.ID,
			Status:    StatusSkipped,
			Message:   fmt.Sprintf("balance not computed, unknown formula for %s", strings.Join(unknown, ", ")),
			Details:   map[string]string{"metabolites": strings.Join(unknown, ",")},
		}
	}
	residual := total.Nonzero()
	if len(residual) == 0 && math.Abs(charge) < 1e-9 {
		return pass(CriterionImbalance, r)
	}
	details := map[string]string{"charge": strconv.FormatFloat(charge, 'g', -1, 64)}
	if len(residual) > 0 {
		details["residual"] = residual.String()
	}
	return Result{
		Criterion: CriterionImbalance,
		Reaction:  r.ID,
		Status:    StatusFail,
		Message:   imbalanceMessage(residual, charge),
		Details:   details,
	}
}

func imbalanceMessage(residual formula.Composition, charge float64) string {
	var parts []string
	els := make([]string, 0, len(residual))
	for el := range residual {
		els = append(els, el)
	}
	sort.Strings(els)
	for _, el := range els {
		parts = append(parts, fmt.Sprintf("%s %+g", el, residual[el]))
	}
	if math.Abs(charge) >= 1e-9 {
		parts = append(parts, fmt.Sprintf("charge %+g", charge))
	}
	return "reaction is unbalanced: " + strings.Join(parts, ", ")
}

// Reversibility fails when the bounds allow flux the declared direction
// forbids, or forbid flux a reversible declaration allows.
func Reversibility(r *models.Reaction) Result {
	var msg string
	switch r.Direction {
	case models.DirectionLeftToRight:
		if r.CanRunBackward() {
			msg = "declared left-to-right but lower bound allows backward flux"
		} else if !r.CanRunForward() {
			msg = "declared left-to-right but upper bound blocks forward flux"
		}
	case models.DirectionRightToLeft:
		if r.CanRunForward() {
			msg = "declared right-to-left but upper bound allows forward flux"
		} else if !r.CanRunBackward() {
			msg = "declared right-to-left but lower bound blocks backward flux"
		}
	case models.DirectionReversible:
		if !r.IsReversible() {
			msg = "declared reversible but bounds allow only one direction"
		}
	default:
		return Result{Criterion: CriterionReversibility, Reaction: r.ID, Status: StatusSkipped, Message: "no declared direction"}
	}
	if msg == "" {
		return pass(CriterionReversibility, r)
	}
	return Result{
		Criterion: CriterionReversibility,
		Reaction:  r.ID,
		Status:    StatusFail,
		Message:   msg,
		Details: map[string]string{
			"direction":   string(r.Direction),
			"lower_bound": strconv.FormatFloat(r.LowerBound, 'g', -1, 64),
			"upper_bound": strconv.FormatFloat(r.UpperBound, 'g', -1, 64),
		},
	}
}

// NonZeroFlux asks the checker whether r can carry flux in m. A checker
// error is reported as a skipped result.
func NonZeroFlux(ctx context.Context, c flux.Checker, m *models.Model, r *models.Reaction) Result {
	ok, err := c.CanCarryFlux(ctx, m, r.ID)
	switch {
	case err != nil:
		return Result{Criterion: CriterionZeroFlux, Reaction: r.ID, Status: StatusSkipped, Message: err.Error()}
	case ok:
		return pass(CriterionZeroFlux, r)
	default:
		return Result{
			Criterion: CriterionZeroFlux,
			Reaction:  r.ID,
			Status:    StatusFail,
			Message:   "reaction cannot carry flux under current bounds",
		}
	}
}

// Static runs every check that does not need an optimizer.
func Static(r *models.Reaction, m *models.Model) []Result {
	return []Result{DuplicateElements(r), MassBalance(r, m), Reversibility(r)}
}

// Issues filters results down to failures and skipped balance checks,
// which are the ones a curator needs to see.
func Issues(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Status == StatusFail || (r.Status == StatusSkipped && r.Criterion == CriterionUnknownFormula) {
			out = append(out, r)
		}
	}
	return out
}
