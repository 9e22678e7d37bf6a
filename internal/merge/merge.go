// Package merge folds batches of built metabolites, reactions and pathways
// into a model. A batch is applied to a working copy and committed only if
// every entity was merged; curation findings are returned as warnings and
// never abort the batch.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/ajitpratap0/pathcurate/internal/flux"
	"github.com/ajitpratap0/pathcurate/internal/metrics"
	"github.com/ajitpratap0/pathcurate/internal/models"
)

// Warning kinds recorded in a Summary.
const (
	WarningIdentityConflict = "identity_conflict"
	WarningDuplicateSkip    = "duplicate_skip"
	WarningCuration         = "curation"
)

var (
	// ErrCompartmentClash is returned when an incoming metabolite reuses an
	// identifier that the model holds in another compartment.
	ErrCompartmentClash = errors.New("metabolite compartment clash")

	// ErrUnresolvedParticipant is returned when a reaction references a
	// metabolite that is neither supplied nor in the model.
	ErrUnresolvedParticipant = errors.New("participant not supplied")
)

// FatalError aborts a batch. The caller's model is left untouched.
type FatalError struct {
	Op      string
	Subject string
	Err     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("merge %s %s: %v", e.Op, e.Subject, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatal(op, subject string, err error) *FatalError {
	return &FatalError{Op: op, Subject: subject, Err: err}
}

// Warning is a non-fatal event recorded during a merge. Criterion is set for
// curation warnings; Existing names the model entity an incoming one was
// redirected to.
type Warning struct {
	Kind      string `json:"kind"`
	Subject   string `json:"subject"`
	Existing  string `json:"existing,omitempty"`
	Criterion string `json:"criterion,omitempty"`
	Message   string `json:"message"`
}

// ReactionEntry is a built reaction together with the metabolites its
// participants refer to.
type ReactionEntry struct {
	Reaction     *models.Reaction
	Participants []*models.Metabolite
}

// Batch is one unit of work. Metabolites are merged first, then reactions in
// the given order. IgnoreFlux lists reactions exempt from dead-end repair.
type Batch struct {
	Metabolites []*models.Metabolite
	Reactions   []ReactionEntry
	Pathway     *models.Pathway
	IgnoreFlux  []string
}

// Summary describes what a merge changed.
type Summary struct {
	BatchID            string    `json:"batch_id"`
	AddedMetabolites   []string  `json:"added_metabolites"`
	AddedReactions     []string  `json:"added_reactions"`
	SkippedReactions   []string  `json:"skipped_reactions"`
	SkippedMetabolites []string  `json:"skipped_metabolites"`
	AddedSinks         []string  `json:"added_sinks"`
	RemovedSinks       []string  `json:"removed_sinks"`
	Pathway            string    `json:"pathway,omitempty"`
	Warnings           []Warning `json:"warnings"`
}

// WarningsOf returns the warnings of one kind.
func (s *Summary) WarningsOf(kind string) []Warning {
	var out []Warning
	for _, w := range s.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

// XRefLookup expands a cross-reference into its known aliases.
type XRefLookup interface {
	Lookup(ctx context.Context, database, identifier string) ([]models.XRef, error)
}

// Options configure an Engine.
type Options struct {
	// Checker decides whether a reaction can carry flux. Nil uses the
	// topological checker.
	Checker flux.Checker
	// XRefs expands incoming cross-references during identity resolution.
	XRefs XRefLookup
}

// Engine merges batches into models. It holds no model state; callers
// serialize merges against the same model.
type Engine struct {
	checker flux.Checker
	xrefs   XRefLookup
	logger  *slog.Logger
}

// New creates an Engine.
func New(opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	checker := opts.Checker
	if checker == nil {
		checker = &flux.Topology{}
	}
	return &Engine{checker: checker, xrefs: opts.XRefs, logger: logger}
}

// run is the state of one merge call.
type run struct {
	*Engine
	model       *models.Model
	compartment string
	summary     *Summary
	signatures  map[string]string
	renamed     map[string]string
	ignore      map[string]bool
	sinks       *sinkLedger
}

// Merge applies b to m. On success m holds the merged state; on error m is
// unchanged and the error is a *FatalError or the context error.
func (e *Engine) Merge(ctx context.Context, m *models.Model, b Batch, compartment string) (*Summary, error) {
	metrics.Inc(metrics.MergeTotal)
	r := &run{
		Engine:      e,
		model:       m.Clone(),
		compartment: compartment,
		summary:     &Summary{BatchID: uuid.New().String()},
		signatures:  make(map[string]string),
		renamed:     make(map[string]string),
		ignore:      make(map[string]bool, len(b.IgnoreFlux)),
	}
	r.sinks = newSinkLedger(r.model)
	for _, id := range b.IgnoreFlux {
		r.ignore[id] = true
	}
	for _, existing := range r.model.Reactions() {
		if sig := existing.Signature(); sig != "" {
			if _, ok := r.signatures[sig]; !ok {
				r.signatures[sig] = existing.ID
			}
		}
	}

	if err := r.apply(ctx, b); err != nil {
		metrics.Inc(metrics.MergeFailed)
		e.logger.Warn("merge aborted", "batch", r.summary.BatchID, "error", err)
		return nil, err
	}

	r.sinks.cleanup()
	r.summary.AddedSinks, r.summary.RemovedSinks = r.sinks.result()
	for range r.summary.AddedSinks {
		metrics.Inc(metrics.SinksCreated)
	}
	for range r.summary.RemovedSinks {
		metrics.Inc(metrics.SinksRemoved)
	}

	m.Replace(r.model)
	e.logger.Info("merge committed",
		"batch", r.summary.BatchID,
		"reactions", len(r.summary.AddedReactions),
		"metabolites", len(r.summary.AddedMetabolites),
		"sinks", len(r.summary.AddedSinks),
		"warnings", len(r.summary.Warnings))
	return r.summary, nil
}

func (r *run) apply(ctx context.Context, b Batch) error {
	for _, met := range b.Metabolites {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.mergeMetabolite(ctx, met); err != nil {
			return err
		}
	}
	for _, entry := range b.Reactions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.mergeReaction(ctx, entry); err != nil {
			return err
		}
	}
	if b.Pathway != nil {
		r.mergePathway(b.Pathway)
	}
	return nil
}

func (r *run) warn(w Warning) {
	r.summary.Warnings = append(r.summary.Warnings, w)
	switch w.Kind {
	case WarningIdentityConflict:
		metrics.Inc(metrics.IdentityConflicts)
	case WarningDuplicateSkip:
		metrics.Inc(metrics.DuplicatesSkipped)
	case WarningCuration:
		metrics.Inc(metrics.CurationWarnings)
	}
	r.logger.Warn(w.Message, "kind", w.Kind, "subject", w.Subject)
}

func (r *run) mergeMetabolite(ctx context.Context, in *models.Metabolite) error {
	if in == nil || in.ID == "" {
		return fatal("metabolite", "", fmt.Errorf("empty identifier"))
	}
	res, err := r.resolve(ctx, in)
	if err != nil {
		return err
	}
	if res.existing {
		r.summary.SkippedMetabolites = append(r.summary.SkippedMetabolites, in.ID)
		r.warn(Warning{
			Kind:     WarningDuplicateSkip,
			Subject:  in.ID,
			Existing: res.id,
			Message:  fmt.Sprintf("metabolite %s already present as %s", in.ID, res.id),
		})
		return nil
	}
	return r.insertMetabolite(res.incoming)
}

func (r *run) insertMetabolite(met *models.Metabolite) error {
	if _, ok := r.model.Metabolite(met.ID); ok {
		return nil
	}
	if err := r.model.AddMetabolite(met); err != nil {
		return fatal("metabolite", met.ID, err)
	}
	r.summary.AddedMetabolites = append(r.summary.AddedMetabolites, met.ID)
	metrics.Inc(metrics.MetabolitesAdded)
	r.logger.Info("metabolite added", "metabolite", met.ID)
	return nil
}

func (r *run) mergeReaction(ctx context.Context, entry ReactionEntry) error {
	if entry.Reaction == nil || entry.Reaction.ID == "" {
		return fatal("reaction", "", fmt.Errorf("empty identifier"))
	}
	rxn := entry.Reaction.Clone()
	if len(rxn.Stoichiometry) == 0 {
		return fatal("reaction", rxn.ID, models.ErrEmptyStoichiometry)
	}
	if math.IsNaN(rxn.LowerBound) || math.IsNaN(rxn.UpperBound) || rxn.LowerBound > rxn.UpperBound {
		return fatal("reaction", rxn.ID, models.ErrInvalidBounds)
	}
	for _, p := range rxn.Stoichiometry {
		if !models.ValidCoefficient(p.Coefficient) {
			return fatal("reaction", rxn.ID, fmt.Errorf("%w: %v for %s", models.ErrInvalidCoefficient, p.Coefficient, p.MetaboliteID))
		}
	}

	supplied := make(map[string]*models.Metabolite, len(entry.Participants))
	for _, met := range entry.Participants {
		if met != nil {
			supplied[met.ID] = met
		}
	}
	var pending []*models.Metabolite
	for i, p := range rxn.Stoichiometry {
		in, ok := supplied[p.MetaboliteID]
		if !ok {
			existing, inModel := r.model.Metabolite(p.MetaboliteID)
			if !inModel {
				return fatal("reaction", rxn.ID, fmt.Errorf("%w: %s", ErrUnresolvedParticipant, p.MetaboliteID))
			}
			in = existing
		}
		res, err := r.resolve(ctx, in)
		if err != nil {
			return err
		}
		if !res.existing {
			pending = append(pending, res.incoming)
		}
		rxn.Stoichiometry[i].MetaboliteID = res.id
	}

	if existing, dup := r.duplicateOf(rxn); dup {
		r.renamed[entry.Reaction.ID] = existing
		r.summary.SkippedReactions = append(r.summary.SkippedReactions, entry.Reaction.ID)
		r.warn(Warning{
			Kind:     WarningDuplicateSkip,
			Subject:  entry.Reaction.ID,
			Existing: existing,
			Message:  fmt.Sprintf("reaction %s duplicates %s, skipped", entry.Reaction.ID, existing),
		})
		return nil
	}

	for _, met := range pending {
		if err := r.insertMetabolite(met); err != nil {
			return err
		}
	}
	if err := r.model.AddReaction(rxn); err != nil {
		return fatal("reaction", rxn.ID, err)
	}
	if sig := rxn.Signature(); sig != "" {
		r.signatures[sig] = rxn.ID
	}
	r.summary.AddedReactions = append(r.summary.AddedReactions, rxn.ID)
	metrics.Inc(metrics.ReactionsAdded)
	r.logger.Info("reaction added", "reaction", rxn.ID)

	r.curate(rxn)
	if r.ignore[entry.Reaction.ID] || r.ignore[rxn.ID] {
		r.logger.Warn("flux test skipped", "reaction", rxn.ID)
		return nil
	}
	return r.repair(ctx, rxn)
}

// duplicateOf reports the model reaction that rxn duplicates, by identifier
// or by stoichiometry signature.
func (r *run) duplicateOf(rxn *models.Reaction) (string, bool) {
	if _, ok := r.model.Reaction(rxn.ID); ok {
		return rxn.ID, true
	}
	if id, ok := r.signatures[rxn.Signature()]; ok {
		return id, true
	}
	return "", false
}

func (r *run) mergePathway(in *models.Pathway) {
	p := in.Clone()
	p.Rename(func(id string) string {
		if existing, ok := r.renamed[id]; ok {
			return existing
		}
		return id
	})
	if existing, ok := r.model.Pathway(p.ID); ok {
		existing.Merge(p)
		p = existing
	} else {
		r.model.SetPathway(p)
	}
	r.summary.Pathway = p.ID
	if stale := p.StaleMembers(r.model); len(stale) > 0 {
		r.logger.Debug("pathway has members outside the model", "pathway", p.ID, "members", stale)
	}
}
