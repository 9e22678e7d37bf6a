package merge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ajitpratap0/pathcurate/internal/curation"
	"github.com/ajitpratap0/pathcurate/internal/models"
)

// Boundary reaction prefixes. A sink is reversible and covers both a
// missing producer and a missing consumer; a demand only drains.
const (
	SinkPrefix   = "SK_"
	DemandPrefix = "DM_"
)

// IsBoundary reports whether id names a sink or demand reaction.
func IsBoundary(id string) bool {
	return strings.HasPrefix(id, SinkPrefix) || strings.HasPrefix(id, DemandPrefix)
}

// NewBoundary builds the sink or demand reaction for a metabolite.
func NewBoundary(prefix string, met *models.Metabolite) *models.Reaction {
	r := &models.Reaction{
		ID:            prefix + met.ID,
		Stoichiometry: []models.Participant{{MetaboliteID: met.ID, Coefficient: -1}},
		XRefs:         make(models.XRefs),
	}
	name := met.Name
	if name == "" {
		name = met.ID
	}
	if prefix == DemandPrefix {
		r.Name = "Demand for " + name
		r.Direction = models.DirectionLeftToRight
	} else {
		r.Name = "Sink for " + name
		r.Direction = models.DirectionReversible
	}
	r.LowerBound, r.UpperBound = r.Direction.Bounds()
	return r
}

// sinkLedger creates and removes boundary reactions on the working model and
// remembers which ones existed before the batch.
type sinkLedger struct {
	model  *models.Model
	before map[string]bool
	added  []string
}

func newSinkLedger(m *models.Model) *sinkLedger {
	l := &sinkLedger{model: m, before: make(map[string]bool)}
	for _, r := range m.Reactions() {
		if IsBoundary(r.ID) {
			l.before[r.ID] = true
		}
	}
	return l
}

// add creates prefix+metaboliteID unless it exists. It reports whether a
// reaction was created.
func (l *sinkLedger) add(prefix, metaboliteID string) (string, bool, error) {
	id := prefix + metaboliteID
	if _, ok := l.model.Reaction(id); ok {
		return id, false, nil
	}
	met, ok := l.model.Metabolite(metaboliteID)
	if !ok {
		return id, false, fmt.Errorf("%w: %s", models.ErrMissingMetabolite, metaboliteID)
	}
	if err := l.model.AddReaction(NewBoundary(prefix, met)); err != nil {
		return id, false, err
	}
	if !l.before[id] {
		l.added = append(l.added, id)
	}
	return id, true, nil
}

func (l *sinkLedger) remove(id string) {
	l.model.RemoveReaction(id)
}

// restore puts back a boundary reaction removed by remove.
func (l *sinkLedger) restore(id string) error {
	prefix, metID := DemandPrefix, strings.TrimPrefix(id, DemandPrefix)
	if strings.HasPrefix(id, SinkPrefix) {
		prefix, metID = SinkPrefix, strings.TrimPrefix(id, SinkPrefix)
	}
	met, ok := l.model.Metabolite(metID)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrMissingMetabolite, metID)
	}
	return l.model.AddReaction(NewBoundary(prefix, met))
}

// cleanup drops the demand of every metabolite that also has a sink.
func (l *sinkLedger) cleanup() {
	for _, met := range l.model.Metabolites() {
		_, hasSink := l.model.Reaction(SinkPrefix + met.ID)
		_, hasDemand := l.model.Reaction(DemandPrefix + met.ID)
		if hasSink && hasDemand {
			l.remove(DemandPrefix + met.ID)
		}
	}
}

// result returns the boundary reactions the batch added and still holds,
// and the pre-existing ones it removed.
func (l *sinkLedger) result() (added, removed []string) {
	for _, id := range l.added {
		if _, ok := l.model.Reaction(id); ok {
			added = append(added, id)
		}
	}
	for _, r := range l.beforeIDs() {
		if _, ok := l.model.Reaction(r); !ok {
			removed = append(removed, r)
		}
	}
	return added, removed
}

func (l *sinkLedger) beforeIDs() []string {
	var out []string
	for id := range l.before {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *run) curate(rxn *models.Reaction) {
	for _, res := range curation.Issues(curation.Static(rxn, r.model)) {
		r.warn(Warning{
			Kind:      WarningCuration,
			Subject:   rxn.ID,
			Criterion: string(res.Criterion),
			Message:   fmt.Sprintf("%s: %s", rxn.ID, res.Message),
		})
	}
}

func (r *run) zeroFlux(rxn *models.Reaction, msg string) {
	r.warn(Warning{
		Kind:      WarningCuration,
		Subject:   rxn.ID,
		Criterion: string(curation.CriterionZeroFlux),
		Message:   fmt.Sprintf("%s: %s", rxn.ID, msg),
	})
}

// check asks the checker about rxn. A failed check is recorded as a
// zero-flux warning and reported as (false, false).
func (r *run) check(ctx context.Context, rxn *models.Reaction) (ok, checked bool, err error) {
	ok, err = r.checker.CanCarryFlux(ctx, r.model, rxn.ID)
	if err != nil {
		if ctx.Err() != nil {
			return false, false, ctx.Err()
		}
		r.zeroFlux(rxn, "flux test failed: "+err.Error())
		return false, false, nil
	}
	return ok, true, nil
}

// repair makes rxn able to carry flux by adding boundary reactions. First
// every metabolite that only rxn touches gets a sink or demand. If that is
// not enough every participant gets a sink, and each new sink whose
// metabolite has other partners is removed again unless rxn needs it.
func (r *run) repair(ctx context.Context, rxn *models.Reaction) error {
	ok, checked, err := r.check(ctx, rxn)
	if err != nil || !checked || ok {
		return err
	}

	var created []string
	for _, id := range rxn.MetaboliteIDs() {
		if len(r.model.ReactionsOf(id)) > 1 {
			continue
		}
		sink, added, err := r.sinks.add(boundaryKind(rxn, id), id)
		if err != nil {
			return fatal("boundary", id, err)
		}
		if added {
			created = append(created, sink)
		}
	}
	if ok, checked, err = r.check(ctx, rxn); err != nil || !checked || ok {
		r.reportSinks(rxn, created)
		return err
	}

	var candidates []string
	for _, id := range rxn.MetaboliteIDs() {
		sink, added, err := r.sinks.add(SinkPrefix, id)
		if err != nil {
			return fatal("boundary", id, err)
		}
		if added {
			created = append(created, sink)
			candidates = append(candidates, id)
		}
	}
	if ok, checked, err = r.check(ctx, rxn); err != nil || !checked {
		return err
	}
	if !ok {
		r.reportSinks(rxn, created)
		r.zeroFlux(rxn, "reaction cannot carry flux even with sinks for every participant")
		return nil
	}

	kept := created[:0]
	dropped := make(map[string]bool)
	for _, id := range candidates {
		// rxn and the sink itself do not count as partners.
		if len(r.model.ReactionsOf(id)) < 3 {
			continue
		}
		sink := SinkPrefix + id
		r.sinks.remove(sink)
		ok, checked, err := r.check(ctx, rxn)
		if err != nil {
			return err
		}
		if checked && ok {
			dropped[sink] = true
			r.logger.Debug("sink not needed", "reaction", rxn.ID, "sink", sink)
			continue
		}
		if err := r.sinks.restore(sink); err != nil {
			return fatal("boundary", sink, err)
		}
	}
	for _, id := range created {
		if !dropped[id] {
			kept = append(kept, id)
		}
	}
	r.reportSinks(rxn, kept)
	return nil
}

// boundaryKind picks a sink when rxn consumes the metabolite or is
// reversible, and a demand when rxn only produces it.
func boundaryKind(rxn *models.Reaction, metaboliteID string) string {
	c := rxn.Coefficient(metaboliteID)
	produces := (c > 0 && rxn.CanRunForward()) || (c < 0 && rxn.CanRunBackward())
	consumes := (c < 0 && rxn.CanRunForward()) || (c > 0 && rxn.CanRunBackward())
	if produces && !consumes {
		return DemandPrefix
	}
	return SinkPrefix
}

func (r *run) reportSinks(rxn *models.Reaction, ids []string) {
	for _, id := range ids {
		r.logger.Warn("auxiliary boundary reaction created; consider adding the synthesis reactions instead",
			"reaction", rxn.ID, "boundary", id)
	}
}
