package merge

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

// resolution is the outcome of matching an incoming metabolite against the
// model. When existing is false, incoming is the (normalized) metabolite to
// insert under id.
type resolution struct {
	id       string
	existing bool
	incoming *models.Metabolite
}

func (r *run) compartmentOf(met *models.Metabolite) string {
	if met.Compartment != "" {
		return met.Compartment
	}
	if c := models.CompartmentOf(met.ID); c != "" {
		return c
	}
	return r.compartment
}

// resolve matches in against the model: by identifier first, then by a
// shared cross-reference with a metabolite of the same compartment. The
// model's metabolite always wins a cross-reference match.
func (r *run) resolve(ctx context.Context, in *models.Metabolite) (resolution, error) {
	comp := r.compartmentOf(in)
	if existing, ok := r.model.Metabolite(in.ID); ok {
		if have := r.compartmentOf(existing); have != comp {
			return resolution{}, fatal("metabolite", in.ID,
				fmt.Errorf("%w: model has %s, incoming %s", ErrCompartmentClash, have, comp))
		}
		return resolution{id: existing.ID, existing: true}, nil
	}

	refs := r.expand(ctx, in.XRefs)
	if len(refs) > 0 {
		for _, existing := range r.model.Metabolites() {
			if r.compartmentOf(existing) != comp {
				continue
			}
			shared, ok := refs.Overlap(existing.XRefs)
			if !ok {
				continue
			}
			r.warn(Warning{
				Kind:     WarningIdentityConflict,
				Subject:  in.ID,
				Existing: existing.ID,
				Message:  fmt.Sprintf("metabolite %s resolved to existing %s via %s", in.ID, existing.ID, shared),
			})
			return resolution{id: existing.ID, existing: true}, nil
		}
	}

	met := in.Clone()
	if met.Compartment == "" {
		met.Compartment = comp
	}
	return resolution{id: met.ID, incoming: met}, nil
}

// expand returns refs plus every alias the lookup knows for them. Lookup
// failures are logged and ignored.
func (r *run) expand(ctx context.Context, refs models.XRefs) models.XRefs {
	out := refs.Clone()
	if out == nil {
		out = make(models.XRefs)
	}
	if r.xrefs == nil {
		return out
	}
	for _, pair := range refs.Pairs() {
		aliases, err := r.xrefs.Lookup(ctx, pair.Database, pair.Identifier)
		if err != nil {
			r.logger.Warn("xref lookup failed", "xref", pair.String(), "error", err)
			continue
		}
		for _, a := range aliases {
			out.Add(a.Database, a.Identifier)
		}
	}
	return out
}
