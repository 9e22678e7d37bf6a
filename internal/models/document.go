package models

import "fmt"

// Document is the serialized shape of a Model. Slices keep the insertion
// order stable across save/load.
type Document struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Objective   Objective     `json:"objective,omitempty" yaml:"objective,omitempty"`
	Metabolites []*Metabolite `json:"metabolites" yaml:"metabolites"`
	Reactions   []*Reaction   `json:"reactions" yaml:"reactions"`
	Pathways    []*Pathway    `json:"pathways,omitempty" yaml:"pathways,omitempty"`
}

// Document snapshots the model into its serialized shape.
func (m *Model) Document() *Document {
	c := m.Clone()
	return &Document{
		ID:          c.ID,
		Name:        c.Name,
		Objective:   c.Objective,
		Metabolites: c.Metabolites(),
		Reactions:   c.Reactions(),
		Pathways:    c.Pathways(),
	}
}

// FromDocument rebuilds a model, validating every reaction against the
// metabolites it references.
func FromDocument(doc *Document) (*Model, error) {
	m := NewModel(doc.ID, doc.Name)
	m.Objective = doc.Objective
	for _, met := range doc.Metabolites {
		if err := m.AddMetabolite(met.Clone()); err != nil {
			return nil, fmt.Errorf("loading model %s: %w", doc.ID, err)
		}
	}
	for _, r := range doc.Reactions {
		if r.Direction == "" {
			r.Direction = DirectionUnknown
		}
		if err := m.AddReaction(r.Clone()); err != nil {
			return nil, fmt.Errorf("loading model %s: %w", doc.ID, err)
		}
	}
	for _, p := range doc.Pathways {
		c := p.Clone()
		if c.Graph == nil {
			c.Graph = make(map[string][]string)
		}
		m.SetPathway(c)
	}
	return m, nil
}
