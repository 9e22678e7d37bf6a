package models

// ReactionLayout carries drawing hints for one reaction of a pathway.
type ReactionLayout struct {
	Direction      Direction `json:"direction,omitempty" yaml:"direction,omitempty"`
	LeftPrimaries  []string  `json:"left_primaries,omitempty" yaml:"left_primaries,omitempty"`
	RightPrimaries []string  `json:"right_primaries,omitempty" yaml:"right_primaries,omitempty"`
}

// Style holds visualization settings for a pathway.
type Style struct {
	Color    string `json:"color,omitempty" yaml:"color,omitempty"`
	Vertical bool   `json:"vertical,omitempty" yaml:"vertical,omitempty"`
}

// Edge is a predecessor → successor ordering hint between two reactions.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Pathway is a named group of reactions with an optional ordering graph.
// Members are weak references: removing a reaction from the model does not
// remove it here. Use StaleMembers to find dangling entries.
type Pathway struct {
	ID      string                    `json:"id" yaml:"id"`
	Name    string                    `json:"name" yaml:"name"`
	Members []string                  `json:"members" yaml:"members"`
	Graph   map[string][]string       `json:"graph,omitempty" yaml:"graph,omitempty"`
	Layout  map[string]ReactionLayout `json:"layout,omitempty" yaml:"layout,omitempty"`
	Style   Style                     `json:"style,omitempty" yaml:"style,omitempty"`
	XRefs   XRefs                     `json:"xrefs,omitempty" yaml:"xrefs,omitempty"`
}

// NewPathway returns an empty pathway.
func NewPathway(id, name string) *Pathway {
	return &Pathway{
		ID:     id,
		Name:   name,
		Graph:  make(map[string][]string),
		Layout: make(map[string]ReactionLayout),
		XRefs:  make(XRefs),
	}
}

// HasMember reports whether reactionID is listed.
func (p *Pathway) HasMember(reactionID string) bool {
	for _, m := range p.Members {
		if m == reactionID {
			return true
		}
	}
	return false
}

// AddMember appends reactionID unless it is already listed.
func (p *Pathway) AddMember(reactionID string) {
	if reactionID == "" || p.HasMember(reactionID) {
		return
	}
	p.Members = append(p.Members, reactionID)
}

// AddEdge records that from precedes to. Both ends become members.
func (p *Pathway) AddEdge(from, to string) {
	if p.Graph == nil {
		p.Graph = make(map[string][]string)
	}
	p.AddMember(from)
	p.AddMember(to)
	for _, s := range p.Graph[from] {
		if s == to {
			return
		}
	}
	p.Graph[from] = append(p.Graph[from], to)
}

// Edges returns all ordering edges in member order.
func (p *Pathway) Edges() []Edge {
	var out []Edge
	for _, from := range p.Members {
		for _, to := range p.Graph[from] {
			out = append(out, Edge{From: from, To: to})
		}
	}
	return out
}

// RemoveMember drops reactionID from the members, the graph and the layout.
func (p *Pathway) RemoveMember(reactionID string) {
	kept := p.Members[:0]
	for _, m := range p.Members {
		if m != reactionID {
			kept = append(kept, m)
		}
	}
	p.Members = kept
	delete(p.Graph, reactionID)
	for from, succ := range p.Graph {
		out := succ[:0]
		for _, s := range succ {
			if s != reactionID {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			delete(p.Graph, from)
			continue
		}
		p.Graph[from] = out
	}
	delete(p.Layout, reactionID)
}

// Rename rewrites member identifiers through fn. Identifiers fn maps to ""
// are dropped.
func (p *Pathway) Rename(fn func(string) string) {
	members := p.Members
	graph := p.Graph
	layout := p.Layout
	p.Members = nil
	p.Graph = make(map[string][]string)
	p.Layout = make(map[string]ReactionLayout)
	for _, m := range members {
		if n := fn(m); n != "" {
			p.AddMember(n)
		}
	}
	for _, m := range members {
		from := fn(m)
		if from == "" {
			continue
		}
		for _, s := range graph[m] {
			if to := fn(s); to != "" && to != from {
				p.AddEdge(from, to)
			}
		}
	}
	for id, l := range layout {
		if n := fn(id); n != "" {
			p.Layout[n] = l
		}
	}
}

// ResolvedMembers returns the member reactions present in m, in member order.
func (p *Pathway) ResolvedMembers(m *Model) []*Reaction {
	out := make([]*Reaction, 0, len(p.Members))
	for _, id := range p.Members {
		if r, ok := m.Reaction(id); ok {
			out = append(out, r)
		}
	}
	return out
}

// StaleMembers returns member identifiers that no longer exist in m.
func (p *Pathway) StaleMembers(m *Model) []string {
	var out []string
	for _, id := range p.Members {
		if _, ok := m.Reaction(id); !ok {
			out = append(out, id)
		}
	}
	return out
}

// Merge folds other's members, edges and layout into p.
func (p *Pathway) Merge(other *Pathway) {
	for _, m := range other.Members {
		p.AddMember(m)
	}
	for _, e := range other.Edges() {
		p.AddEdge(e.From, e.To)
	}
	if p.Layout == nil {
		p.Layout = make(map[string]ReactionLayout)
	}
	for id, l := range other.Layout {
		if _, ok := p.Layout[id]; !ok {
			p.Layout[id] = l
		}
	}
	if p.XRefs == nil {
		p.XRefs = make(XRefs)
	}
	p.XRefs.Merge(other.XRefs)
}

// Clone returns a deep copy.
func (p *Pathway) Clone() *Pathway {
	c := *p
	c.Members = append([]string(nil), p.Members...)
	c.Graph = make(map[string][]string, len(p.Graph))
	for k, v := range p.Graph {
		c.Graph[k] = append([]string(nil), v...)
	}
	c.Layout = make(map[string]ReactionLayout, len(p.Layout))
	for k, v := range p.Layout {
		v.LeftPrimaries = append([]string(nil), v.LeftPrimaries...)
		v.RightPrimaries = append([]string(nil), v.RightPrimaries...)
		c.Layout[k] = v
	}
	c.XRefs = p.XRefs.Clone()
	return &c
}
