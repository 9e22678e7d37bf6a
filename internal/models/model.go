package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateID is returned when inserting an entity whose identifier is taken.
	ErrDuplicateID = errors.New("identifier already present")

	// ErrMissingMetabolite is returned when a reaction references an unknown metabolite.
	ErrMissingMetabolite = errors.New("metabolite not in model")

	// ErrEmptyStoichiometry is returned for reactions without participants.
	ErrEmptyStoichiometry = errors.New("reaction has no participants")

	// ErrInvalidBounds is returned when the lower bound exceeds the upper bound.
	ErrInvalidBounds = errors.New("lower bound exceeds upper bound")

	// ErrInvalidCoefficient is returned for zero, NaN or infinite coefficients.
	ErrInvalidCoefficient = errors.New("invalid stoichiometric coefficient")
)

// Objective names the reaction whose flux an optimizer maximizes or minimizes.
type Objective struct {
	ReactionID string `json:"reaction,omitempty" yaml:"reaction,omitempty"`
	Maximize   bool   `json:"maximize" yaml:"maximize"`
}

// Model owns every metabolite, reaction and pathway of a metabolic network.
// Iteration order follows insertion order.
type Model struct {
	ID        string
	Name      string
	Objective Objective

	metabolites map[string]*Metabolite
	reactions   map[string]*Reaction
	pathways    map[string]*Pathway

	metaboliteOrder []string
	reactionOrder   []string
	pathwayOrder    []string
}

// NewModel returns an empty model.
func NewModel(id, name string) *Model {
	return &Model{
		ID:          id,
		Name:        name,
		metabolites: make(map[string]*Metabolite),
		reactions:   make(map[string]*Reaction),
		pathways:    make(map[string]*Pathway),
	}
}

// Metabolite looks up a metabolite by identifier.
func (m *Model) Metabolite(id string) (*Metabolite, bool) {
	met, ok := m.metabolites[id]
	return met, ok
}

// Reaction looks up a reaction by identifier.
func (m *Model) Reaction(id string) (*Reaction, bool) {
	r, ok := m.reactions[id]
	return r, ok
}

// Pathway looks up a pathway by identifier.
func (m *Model) Pathway(id string) (*Pathway, bool) {
	p, ok := m.pathways[id]
	return p, ok
}

// Metabolites returns all metabolites in insertion order.
func (m *Model) Metabolites() []*Metabolite {
	out := make([]*Metabolite, 0, len(m.metaboliteOrder))
	for _, id := range m.metaboliteOrder {
		out = append(out, m.metabolites[id])
	}
	return out
}

// Reactions returns all reactions in insertion order.
func (m *Model) Reactions() []*Reaction {
	out := make([]*Reaction, 0, len(m.reactionOrder))
	for _, id := range m.reactionOrder {
		out = append(out, m.reactions[id])
	}
	return out
}

// Pathways returns all pathways in insertion order.
func (m *Model) Pathways() []*Pathway {
	out := make([]*Pathway, 0, len(m.pathwayOrder))
	for _, id := range m.pathwayOrder {
		out = append(out, m.pathways[id])
	}
	return out
}

// AddMetabolite inserts met. The identifier must be new.
func (m *Model) AddMetabolite(met *Metabolite) error {
	if met == nil || met.ID == "" {
		return fmt.Errorf("adding metabolite: empty identifier")
	}
	if _, ok := m.metabolites[met.ID]; ok {
		return fmt.Errorf("adding metabolite %s: %w", met.ID, ErrDuplicateID)
	}
	if met.XRefs == nil {
		met.XRefs = make(XRefs)
	}
	m.metabolites[met.ID] = met
	m.metaboliteOrder = append(m.metaboliteOrder, met.ID)
	return nil
}

// AddReaction inserts r. Every participant must already be in the model.
func (m *Model) AddReaction(r *Reaction) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("adding reaction: empty identifier")
	}
	if _, ok := m.reactions[r.ID]; ok {
		return fmt.Errorf("adding reaction %s: %w", r.ID, ErrDuplicateID)
	}
	if len(r.Stoichiometry) == 0 {
		return fmt.Errorf("adding reaction %s: %w", r.ID, ErrEmptyStoichiometry)
	}
	if r.LowerBound > r.UpperBound {
		return fmt.Errorf("adding reaction %s: %w", r.ID, ErrInvalidBounds)
	}
	for _, p := range r.Stoichiometry {
		if _, ok := m.metabolites[p.MetaboliteID]; !ok {
			return fmt.Errorf("adding reaction %s: %w: %s", r.ID, ErrMissingMetabolite, p.MetaboliteID)
		}
	}
	if r.XRefs == nil {
		r.XRefs = make(XRefs)
	}
	m.reactions[r.ID] = r
	m.reactionOrder = append(m.reactionOrder, r.ID)
	return nil
}

// RemoveReaction deletes a reaction. Pathway membership is left untouched.
func (m *Model) RemoveReaction(id string) bool {
	if _, ok := m.reactions[id]; !ok {
		return false
	}
	delete(m.reactions, id)
	m.reactionOrder = removeID(m.reactionOrder, id)
	return true
}

// RemoveMetabolite deletes a metabolite that no reaction references.
func (m *Model) RemoveMetabolite(id string) error {
	if _, ok := m.metabolites[id]; !ok {
		return nil
	}
	if rs := m.ReactionsOf(id); len(rs) > 0 {
		return fmt.Errorf("removing metabolite %s: still used by %s", id, rs[0].ID)
	}
	delete(m.metabolites, id)
	m.metaboliteOrder = removeID(m.metaboliteOrder, id)
	return nil
}

// SetPathway inserts or replaces a pathway.
func (m *Model) SetPathway(p *Pathway) {
	if _, ok := m.pathways[p.ID]; !ok {
		m.pathwayOrder = append(m.pathwayOrder, p.ID)
	}
	m.pathways[p.ID] = p
}

// RemovePathway deletes a pathway. Its reactions stay in the model.
func (m *Model) RemovePathway(id string) bool {
	if _, ok := m.pathways[id]; !ok {
		return false
	}
	delete(m.pathways, id)
	m.pathwayOrder = removeID(m.pathwayOrder, id)
	return true
}

// ReactionsOf returns every reaction that involves metaboliteID, in
// insertion order.
func (m *Model) ReactionsOf(metaboliteID string) []*Reaction {
	var out []*Reaction
	for _, id := range m.reactionOrder {
		if r := m.reactions[id]; r.Involves(metaboliteID) {
			out = append(out, r)
		}
	}
	return out
}

// Counts returns the number of metabolites, reactions and pathways.
func (m *Model) Counts() (metabolites, reactions, pathways int) {
	return len(m.metabolites), len(m.reactions), len(m.pathways)
}

// Clone returns a deep copy that shares nothing with m.
func (m *Model) Clone() *Model {
	c := NewModel(m.ID, m.Name)
	c.Objective = m.Objective
	for _, id := range m.metaboliteOrder {
		c.metabolites[id] = m.metabolites[id].Clone()
	}
	for _, id := range m.reactionOrder {
		c.reactions[id] = m.reactions[id].Clone()
	}
	for _, id := range m.pathwayOrder {
		c.pathways[id] = m.pathways[id].Clone()
	}
	c.metaboliteOrder = append([]string(nil), m.metaboliteOrder...)
	c.reactionOrder = append([]string(nil), m.reactionOrder...)
	c.pathwayOrder = append([]string(nil), m.pathwayOrder...)
	return c
}

// Replace makes m hold the contents of other. It is used to commit a
// working copy produced by Clone.
func (m *Model) Replace(other *Model) {
	*m = *other
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
