package pathway

import (
	"math"
	"sort"

	"github.com/ajitpratap0/pathcurate/internal/flux"
	"github.com/ajitpratap0/pathcurate/internal/models"
)

type edgeKey struct{ from, to string }

// search is a depth-first colouring of a pathway graph. Grey nodes are on
// the current stack; an edge into a grey node closes a cycle.
type search struct {
	p      *models.Pathway
	color  map[string]int
	stack  []string
	back   map[edgeKey]bool
	cycles [][]string
}

const (
	white = iota
	grey
	black
)

func newSearch(p *models.Pathway) *search {
	s := &search{
		p:     p,
		color: make(map[string]int, len(p.Members)),
		back:  make(map[edgeKey]bool),
	}
	for _, id := range p.Members {
		if s.color[id] == white {
			s.visit(id)
		}
	}
	return s
}

func (s *search) visit(u string) {
	s.color[u] = grey
	s.stack = append(s.stack, u)
	for _, v := range s.p.Graph[u] {
		switch s.color[v] {
		case white:
			s.visit(v)
		case grey:
			s.back[edgeKey{u, v}] = true
			for i := len(s.stack) - 1; i >= 0; i-- {
				if s.stack[i] == v {
					cycle := append([]string(nil), s.stack[i:]...)
					s.cycles = append(s.cycles, append(cycle, v))
					break
				}
			}
		}
	}
	s.stack = s.stack[:len(s.stack)-1]
	s.color[u] = black
}

// Cycles returns every cycle closed by a back edge, as the node sequence
// starting and ending at the same reaction.
func Cycles(p *models.Pathway) [][]string {
	return newSearch(p).cycles
}

// Mapping splits the pathway into paths: the longest path through the
// acyclic part of the graph first, then the longest path through what is
// left, until every member is placed. Ties go to the member declared first.
func Mapping(p *models.Pathway) [][]string {
	s := newSearch(p)
	order := make(map[string]int, len(p.Members))
	for i, id := range p.Members {
		order[id] = i
	}
	remaining := make(map[string]bool, len(p.Members))
	for _, id := range p.Members {
		remaining[id] = true
	}
	var out [][]string
	for len(remaining) > 0 {
		path := longestPath(p, s.back, remaining, order)
		for _, id := range path {
			delete(remaining, id)
		}
		out = append(out, path)
	}
	return out
}

func longestPath(p *models.Pathway, back map[edgeKey]bool, remaining map[string]bool, order map[string]int) []string {
	succ := func(u string) []string {
		var out []string
		for _, v := range p.Graph[u] {
			if remaining[v] && !back[edgeKey{u, v}] {
				out = append(out, v)
			}
		}
		return out
	}

	indeg := make(map[string]int, len(remaining))
	for u := range remaining {
		for _, v := range succ(u) {
			indeg[v]++
		}
	}
	var ready []string
	for u := range remaining {
		if indeg[u] == 0 {
			ready = append(ready, u)
		}
	}

	dist := make(map[string]int, len(remaining))
	prev := make(map[string]string, len(remaining))
	for u := range remaining {
		dist[u] = 1
	}
	byOrder := func(ids []string) {
		sort.Slice(ids, func(i, j int) bool { return order[ids[i]] < order[ids[j]] })
	}
	for len(ready) > 0 {
		byOrder(ready)
		u := ready[0]
		ready = ready[1:]
		for _, v := range succ(u) {
			if dist[u]+1 > dist[v] {
				dist[v] = dist[u] + 1
				prev[v] = u
			}
			indeg[v]--
			if indeg[v] == 0 {
				ready = append(ready, v)
			}
		}
	}

	end := ""
	for _, id := range p.Members {
		if !remaining[id] {
			continue
		}
		if end == "" || dist[id] > dist[end] {
			end = id
		}
	}
	path := []string{end}
	for u := end; prev[u] != ""; u = prev[u] {
		path = append(path, prev[u])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Flow describes how a member reaction is used by a flux solution.
type Flow string

const (
	FlowForward  Flow = "forward"
	FlowBackward Flow = "backward"
	FlowIdle     Flow = "idle"
	FlowUnknown  Flow = "unknown"
)

// Visualization is the drawable form of a pathway, optionally annotated with
// the fluxes of a solution.
type Visualization struct {
	PathwayID string                           `json:"pathway"`
	Name      string                           `json:"name"`
	Mapping   [][]string                       `json:"mapping"`
	Edges     []models.Edge                    `json:"edges,omitempty"`
	Layout    map[string]models.ReactionLayout `json:"layout,omitempty"`
	Style     models.Style                     `json:"style"`
	Fluxes    map[string]float64               `json:"fluxes,omitempty"`
	Flows     map[string]Flow                  `json:"flows,omitempty"`
}

// Visualize derives drawing metadata for p. sol may be nil.
func Visualize(p *models.Pathway, sol *flux.Solution) *Visualization {
	v := &Visualization{
		PathwayID: p.ID,
		Name:      p.Name,
		Mapping:   Mapping(p),
		Edges:     p.Edges(),
		Layout:    p.Clone().Layout,
		Style:     p.Style,
	}
	if sol == nil {
		return v
	}
	v.Fluxes = make(map[string]float64, len(p.Members))
	v.Flows = make(map[string]Flow, len(p.Members))
	for _, id := range p.Members {
		f, ok := sol.Fluxes[id]
		if !ok {
			v.Flows[id] = FlowUnknown
			continue
		}
		v.Fluxes[id] = f
		switch {
		case math.Abs(f) < flux.Tolerance:
			v.Flows[id] = FlowIdle
		case f > 0:
			v.Flows[id] = FlowForward
		default:
			v.Flows[id] = FlowBackward
		}
	}
	return v
}
