package models

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DefaultBound is the magnitude used for open flux bounds.
const DefaultBound = 1000.0

// Direction is the direction a source database declares for a reaction.
type Direction string

const (
	DirectionReversible  Direction = "reversible"
	DirectionLeftToRight Direction = "left-to-right"
	DirectionRightToLeft Direction = "right-to-left"
	DirectionUnknown     Direction = "unknown"
)

// ValidDirections is the set of all recognized directions.
var ValidDirections = []Direction{
	DirectionReversible,
	DirectionLeftToRight,
	DirectionRightToLeft,
	DirectionUnknown,
}

// IsValid returns true if the direction is recognized.
func (d Direction) IsValid() bool {
	for _, v := range ValidDirections {
		if d == v {
			return true
		}
	}
	return false
}

// Bounds returns the flux bounds implied by the direction. Unknown
// directions are treated as reversible.
func (d Direction) Bounds() (lower, upper float64) {
	switch d {
	case DirectionLeftToRight:
		return 0, DefaultBound
	case DirectionRightToLeft:
		return -DefaultBound, 0
	default:
		return -DefaultBound, DefaultBound
	}
}

// arrows maps equation arrows to directions.
var arrows = map[string]Direction{
	"<=>": DirectionReversible,
	"<->": DirectionReversible,
	"==>": DirectionLeftToRight,
	"-->": DirectionLeftToRight,
	"=>":  DirectionLeftToRight,
	"->":  DirectionLeftToRight,
	"<==": DirectionRightToLeft,
	"<--": DirectionRightToLeft,
	"<=":  DirectionRightToLeft,
	"<-":  DirectionRightToLeft,
}

// DirectionFromArrow maps an equation arrow token to a direction.
func DirectionFromArrow(arrow string) (Direction, bool) {
	d, ok := arrows[strings.TrimSpace(arrow)]
	return d, ok
}

// SplitEquation finds the first arrow token in an equation and returns both
// sides. Arrows must be surrounded by whitespace.
func SplitEquation(eq string) (left, right string, dir Direction, ok bool) {
	fields := strings.Fields(eq)
	for i, f := range fields {
		if d, isArrow := arrows[f]; isArrow {
			return strings.Join(fields[:i], " "), strings.Join(fields[i+1:], " "), d, true
		}
	}
	return "", "", DirectionUnknown, false
}

// Participant is one metabolite of a reaction with its signed coefficient.
// Negative coefficients are consumed, positive ones produced.
type Participant struct {
	MetaboliteID string  `json:"metabolite" yaml:"metabolite"`
	Coefficient  float64 `json:"coefficient" yaml:"coefficient"`
}

// Reaction is a stoichiometric transformation between metabolites.
type Reaction struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	Stoichiometry []Participant `json:"stoichiometry" yaml:"stoichiometry"`
	LowerBound    float64       `json:"lower_bound" yaml:"lower_bound"`
	UpperBound    float64       `json:"upper_bound" yaml:"upper_bound"`
	Direction     Direction     `json:"direction,omitempty" yaml:"direction,omitempty"`
	XRefs         XRefs         `json:"xrefs,omitempty" yaml:"xrefs,omitempty"`
	Genes         []string      `json:"genes,omitempty" yaml:"genes,omitempty"`
	GeneRule      string        `json:"gene_rule,omitempty" yaml:"gene_rule,omitempty"`
}

// ValidCoefficient reports whether c can appear in a stoichiometry: finite
// and non-zero.
func ValidCoefficient(c float64) bool {
	return c != 0 && !math.IsNaN(c) && !math.IsInf(c, 0)
}

// IsReversible reports whether the bounds allow flux in both directions.
func (r *Reaction) IsReversible() bool {
	return r.LowerBound < 0 && r.UpperBound > 0
}

// CanRunForward reports whether positive flux is allowed.
func (r *Reaction) CanRunForward() bool { return r.UpperBound > 0 }

// CanRunBackward reports whether negative flux is allowed.
func (r *Reaction) CanRunBackward() bool { return r.LowerBound < 0 }

// Coefficient returns the summed coefficient of metaboliteID.
func (r *Reaction) Coefficient(metaboliteID string) float64 {
	var total float64
	for _, p := range r.Stoichiometry {
		if p.MetaboliteID == metaboliteID {
			total += p.Coefficient
		}
	}
	return total
}

// Involves reports whether metaboliteID takes part in the reaction.
func (r *Reaction) Involves(metaboliteID string) bool {
	for _, p := range r.Stoichiometry {
		if p.MetaboliteID == metaboliteID {
			return true
		}
	}
	return false
}

// MetaboliteIDs returns participant identifiers in stoichiometry order
// without duplicates.
func (r *Reaction) MetaboliteIDs() []string {
	seen := make(map[string]bool, len(r.Stoichiometry))
	out := make([]string, 0, len(r.Stoichiometry))
	for _, p := range r.Stoichiometry {
		if seen[p.MetaboliteID] {
			continue
		}
		seen[p.MetaboliteID] = true
		out = append(out, p.MetaboliteID)
	}
	return out
}

// Reactants returns the consumed participants.
func (r *Reaction) Reactants() []Participant {
	var out []Participant
	for _, p := range r.Stoichiometry {
		if p.Coefficient < 0 {
			out = append(out, p)
		}
	}
	return out
}

// Products returns the produced participants.
func (r *Reaction) Products() []Participant {
	var out []Participant
	for _, p := range r.Stoichiometry {
		if p.Coefficient > 0 {
			out = append(out, p)
		}
	}
	return out
}

// Signature is a direction-independent key over the participant set and the
// ratios between coefficients. Two reactions with the same signature describe
// the same transformation.
func (r *Reaction) Signature() string {
	coeffs := make(map[string]float64, len(r.Stoichiometry))
	for _, p := range r.Stoichiometry {
		coeffs[p.MetaboliteID] += p.Coefficient
	}
	ids := make([]string, 0, len(coeffs))
	for id, c := range coeffs {
		if c == 0 {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	pivot := coeffs[ids[0]]
	parts := make([]string, len(ids))
	for i, id := range ids {
		ratio := math.Round(coeffs[id]/pivot*1e6) / 1e6
		parts[i] = id + ":" + strconv.FormatFloat(ratio, 'g', -1, 64)
	}
	return strings.Join(parts, "|")
}

// Equation renders the reaction as "2 a_c + b_c --> c_c".
func (r *Reaction) Equation() string {
	arrow := "-->"
	switch {
	case r.IsReversible():
		arrow = "<=>"
	case r.LowerBound < 0 && r.UpperBound <= 0:
		arrow = "<--"
	}
	side := func(ps []Participant) string {
		terms := make([]string, len(ps))
		for i, p := range ps {
			c := math.Abs(p.Coefficient)
			if c == 1 {
				terms[i] = p.MetaboliteID
			} else {
				terms[i] = fmt.Sprintf("%s %s", strconv.FormatFloat(c, 'g', -1, 64), p.MetaboliteID)
			}
		}
		return strings.Join(terms, " + ")
	}
	return strings.TrimSpace(side(r.Reactants()) + " " + arrow + " " + side(r.Products()))
}

// Clone returns a deep copy of the reaction.
func (r *Reaction) Clone() *Reaction {
	c := *r
	c.Stoichiometry = append([]Participant(nil), r.Stoichiometry...)
	c.XRefs = r.XRefs.Clone()
	c.Genes = append([]string(nil), r.Genes...)
	return &c
}
