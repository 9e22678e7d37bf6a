// Package pathway assembles pathway records into ordered reaction graphs and
// derives the layout metadata used to draw them.
package pathway

import (
	"context"
	"fmt"
	"strings"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

// Warning kinds produced by Assemble.
const (
	WarningCycle           = "cycle"
	WarningNested          = "nested_sub_pathway"
	WarningUnresolvedSub   = "unresolved_sub_pathway"
	WarningEmptySubPathway = "empty_sub_pathway"
)

// Warning is a non-fatal observation made while assembling.
type Warning struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Resolver fetches the record of a referenced sub-pathway.
type Resolver interface {
	SubPathway(ctx context.Context, id string) (models.Record, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, id string) (models.Record, error)

// SubPathway implements Resolver.
func (f ResolverFunc) SubPathway(ctx context.Context, id string) (models.Record, error) {
	return f(ctx, id)
}

// Options control assembly.
type Options struct {
	// Avoid lists reaction ids dropped from the pathway, with their edges.
	Avoid []string
	// Resolver expands sub-pathway references. Nil leaves them unresolved.
	Resolver Resolver
}

// Result is an assembled pathway. Sequence is the order in which member
// reactions should be processed: the longest path first, then the
// remaining branches.
type Result struct {
	Pathway  *models.Pathway
	Sequence []string
	Warnings []Warning
}

// Assemble builds the reaction graph of a pathway record. Declared edges
// form the graph; members without edges stay unordered. Cycles are
// reported and kept. Sub-pathways are expanded one level only.
func Assemble(ctx context.Context, rec models.Record, opts Options) (*Result, error) {
	if rec.Kind != models.RecordPathway {
		return nil, fmt.Errorf("assemble %s: record is a %s", rec.ID, rec.Kind)
	}
	res := &Result{}
	avoid := make(map[string]bool, len(opts.Avoid))
	for _, id := range opts.Avoid {
		avoid[id] = true
	}

	p := models.NewPathway(rec.ID, rec.Name())
	p.XRefs = rec.XRefs()
	p.XRefs.Add(rec.Database, rec.ID)
	addRecord(p, rec, avoid)

	for _, ref := range rec.Values(models.FieldSubPathways) {
		if opts.Resolver == nil {
			res.Warnings = append(res.Warnings, Warning{
				Kind:    WarningUnresolvedSub,
				Subject: ref,
				Message: fmt.Sprintf("sub-pathway %s of %s was not expanded", ref, rec.ID),
			})
			continue
		}
		sub, err := opts.Resolver.SubPathway(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("assemble %s: sub-pathway %s: %w", rec.ID, ref, err)
		}
		if len(sub.Values(models.FieldMembers)) == 0 && len(sub.Edges) == 0 {
			res.Warnings = append(res.Warnings, Warning{
				Kind:    WarningEmptySubPathway,
				Subject: ref,
				Message: fmt.Sprintf("sub-pathway %s has no reactions", ref),
			})
		}
		addRecord(p, sub, avoid)
		if nested := sub.Values(models.FieldSubPathways); len(nested) > 0 {
			res.Warnings = append(res.Warnings, Warning{
				Kind:    WarningNested,
				Subject: ref,
				Message: fmt.Sprintf("sub-pathway %s references %s; only one level is expanded", ref, strings.Join(nested, ", ")),
			})
		}
	}

	for _, cycle := range Cycles(p) {
		res.Warnings = append(res.Warnings, Warning{
			Kind:    WarningCycle,
			Subject: cycle[0],
			Message: "ordering contains a cycle: " + strings.Join(cycle, " -> "),
		})
	}

	res.Pathway = p
	for _, path := range Mapping(p) {
		res.Sequence = append(res.Sequence, path...)
	}
	return res, nil
}

func addRecord(p *models.Pathway, rec models.Record, avoid map[string]bool) {
	for _, id := range rec.Values(models.FieldMembers) {
		if !avoid[id] {
			p.AddMember(id)
		}
	}
	for _, e := range rec.Edges {
		if avoid[e.From] || avoid[e.To] || e.From == e.To {
			continue
		}
		p.AddEdge(e.From, e.To)
	}
	for id, l := range rec.Layout {
		if avoid[id] || !p.HasMember(id) {
			continue
		}
		if _, ok := p.Layout[id]; !ok {
			p.Layout[id] = l
		}
	}
}

// Linear builds a pathway whose members form a simple chain in the given
// order. It is used for plain reaction lists.
func Linear(id, name string, reactionIDs []string) *models.Pathway {
	p := models.NewPathway(id, name)
	for i, r := range reactionIDs {
		p.AddMember(r)
		if i > 0 && reactionIDs[i-1] != r {
			p.AddEdge(reactionIDs[i-1], r)
		}
	}
	return p
}
