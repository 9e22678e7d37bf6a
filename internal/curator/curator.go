// Package curator runs the full curation flow: fetch records, parse them,
// build entities, assemble pathways and merge the result into a model. The
// CLI, the HTTP API and the MCP server all go through a Curator.
package curator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/ajitpratap0/pathcurate/internal/advisor"
	"github.com/ajitpratap0/pathcurate/internal/builder"
	"github.com/ajitpratap0/pathcurate/internal/curation"
	"github.com/ajitpratap0/pathcurate/internal/flux"
	"github.com/ajitpratap0/pathcurate/internal/merge"
	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/internal/parser"
	"github.com/ajitpratap0/pathcurate/internal/pathway"
	"github.com/ajitpratap0/pathcurate/internal/retrieval"
)

var (
	// ErrUnbalanced is returned when StopImbalance is set and a batch
	// contains unbalanced reactions. The model is left unchanged.
	ErrUnbalanced = errors.New("batch contains unbalanced reactions")

	// ErrUnknownPathway is returned for pathway ids missing from the model.
	ErrUnknownPathway = errors.New("pathway not in model")

	// ErrUnexpectedKind is returned when a fetched record has the wrong kind
	// for the requested operation.
	ErrUnexpectedKind = errors.New("unexpected record kind")
)

// Options are the defaults applied to every request.
type Options struct {
	Database      string
	Compartment   string
	Replacements  map[string]string
	Concurrency   int
	StopImbalance bool
}

// Deps are the collaborators of a Curator. Only Fetcher is required.
type Deps struct {
	Fetcher retrieval.Fetcher
	Genes   builder.GeneSource
	Flux    flux.Engine
	XRefs   merge.XRefLookup
	Advisor advisor.Advisor
}

// Curator orchestrates retrieval and merging.
type Curator struct {
	fetcher retrieval.Fetcher
	genes   builder.GeneSource
	flux    flux.Engine
	engine  *merge.Engine
	advisor advisor.Advisor
	opts    Options
	logger  *slog.Logger
}

// New creates a Curator.
func New(deps Deps, opts Options, logger *slog.Logger) *Curator {
	if logger == nil {
		logger = slog.Default()
	}
	engine := deps.Flux
	if engine == nil {
		engine = &flux.Topology{}
	}
	if opts.Compartment == "" {
		opts.Compartment = "c"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Curator{
		fetcher: deps.Fetcher,
		genes:   deps.Genes,
		flux:    engine,
		engine:  merge.New(merge.Options{Checker: engine, XRefs: deps.XRefs}, logger),
		advisor: deps.Advisor,
		opts:    opts,
		logger:  logger,
	}
}

// Result is the outcome of one curation request.
type Result struct {
	Summary  *merge.Summary    `json:"summary"`
	Pathway  string            `json:"pathway,omitempty"`
	Warnings []pathway.Warning `json:"pathway_warnings,omitempty"`
	Notes    []advisor.Note    `json:"notes,omitempty"`
}

// PathwayRequest adds one pathway. Empty fields fall back to Options.
// Avoid and IgnoreFlux take source reaction identifiers.
type PathwayRequest struct {
	ID           string            `json:"id"`
	Database     string            `json:"database,omitempty"`
	Compartment  string            `json:"compartment,omitempty"`
	Avoid        []string          `json:"avoid,omitempty"`
	IgnoreFlux   []string          `json:"ignore_flux,omitempty"`
	Replacements map[string]string `json:"replacements,omitempty"`
}

// EntriesRequest adds a list of user entries. When PathwayID is set the
// reactions are grouped into a linear pathway in entry order.
type EntriesRequest struct {
	Entries      []parser.Entry    `json:"-"`
	Database     string            `json:"database,omitempty"`
	Compartment  string            `json:"compartment,omitempty"`
	PathwayID    string            `json:"pathway_id,omitempty"`
	PathwayName  string            `json:"pathway_name,omitempty"`
	IgnoreFlux   []string          `json:"ignore_flux,omitempty"`
	Replacements map[string]string `json:"replacements,omitempty"`
}

func (c *Curator) database(db string) string {
	if db != "" {
		return db
	}
	return c.opts.Database
}

func (c *Curator) compartment(comp string) string {
	if comp != "" {
		return comp
	}
	return c.opts.Compartment
}

func (c *Curator) replacements(extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return c.opts.Replacements
	}
	out := make(map[string]string, len(c.opts.Replacements)+len(extra))
	maps.Copy(out, c.opts.Replacements)
	maps.Copy(out, extra)
	return out
}

// Record fetches and parses a single record.
func (c *Curator) Record(ctx context.Context, identifier, database string) (models.Record, error) {
	db := c.database(database)
	if db == "" {
		return models.Record{}, fmt.Errorf("record %s: no database given", identifier)
	}
	return retrieval.NewSource(c.fetcher, c.logger).Record(ctx, identifier, db)
}

// AddPathway fetches a pathway, builds its reactions in processing order
// and merges them into m as one batch.
func (c *Curator) AddPathway(ctx context.Context, m *models.Model, req PathwayRequest) (*Result, error) {
	db := c.database(req.Database)
	if db == "" {
		return nil, fmt.Errorf("add pathway %s: no database given", req.ID)
	}
	comp := c.compartment(req.Compartment)
	fetcher := newMemo(c.fetcher)
	src := retrieval.NewSource(fetcher, c.logger)

	rec, err := src.Record(ctx, req.ID, db)
	if err != nil {
		return nil, fmt.Errorf("add pathway %s: %w", req.ID, err)
	}
	if rec.Kind != models.RecordPathway {
		return nil, fmt.Errorf("add pathway %s: %w: got %s", req.ID, ErrUnexpectedKind, rec.Kind)
	}
	asm, err := pathway.Assemble(ctx, rec, pathway.Options{Avoid: req.Avoid, Resolver: src.ResolverFor(db)})
	if err != nil {
		return nil, fmt.Errorf("add pathway %s: %w", req.ID, err)
	}
	for _, w := range asm.Warnings {
		c.logger.Warn("pathway assembly", "pathway", req.ID, "kind", w.Kind, "message", w.Message)
	}

	if c.opts.Concurrency > 1 && len(asm.Sequence) > 1 {
		if _, err := retrieval.Prefetch(ctx, fetcher, asm.Sequence, db, c.opts.Concurrency); err != nil {
			return nil, fmt.Errorf("add pathway %s: %w", req.ID, err)
		}
	}

	b := builder.New(m, builder.Options{Source: src, Genes: c.genes, Replacements: c.replacements(req.Replacements)}, c.logger)
	built := make(map[string]string, len(asm.Sequence))
	var batch merge.Batch
	for _, id := range asm.Sequence {
		r, err := src.Record(ctx, id, db)
		if err != nil {
			return nil, fmt.Errorf("add pathway %s: reaction %s: %w", req.ID, id, err)
		}
		rxn, mets, err := b.BuildReaction(ctx, r, comp)
		if err != nil {
			return nil, fmt.Errorf("add pathway %s: %w", req.ID, err)
		}
		built[id] = rxn.ID
		batch.Reactions = append(batch.Reactions, merge.ReactionEntry{Reaction: rxn, Participants: mets})
	}
	batch.IgnoreFlux = renameAll(req.IgnoreFlux, built)

	p := asm.Pathway
	p.Rename(func(id string) string {
		if n, ok := built[id]; ok {
			return n
		}
		return id
	})
	batch.Pathway = p

	res, err := c.merge(ctx, m, batch, comp)
	if err != nil {
		return nil, fmt.Errorf("add pathway %s: %w", req.ID, err)
	}
	res.Warnings = asm.Warnings
	return res, nil
}

// AddReactions merges reaction and metabolite entries. Database references
// are fetched; compounds become metabolites and reactions are built.
func (c *Curator) AddReactions(ctx context.Context, m *models.Model, req EntriesRequest) (*Result, error) {
	return c.addEntries(ctx, m, req, false)
}

// AddMetabolites merges metabolite entries only. Reaction entries are
// rejected before anything is merged.
func (c *Curator) AddMetabolites(ctx context.Context, m *models.Model, req EntriesRequest) (*Result, error) {
	return c.addEntries(ctx, m, req, true)
}

func (c *Curator) addEntries(ctx context.Context, m *models.Model, req EntriesRequest, metabolitesOnly bool) (*Result, error) {
	db := c.database(req.Database)
	src := retrieval.NewSource(newMemo(c.fetcher), c.logger)
	b := builder.New(m, builder.Options{Source: src, Genes: c.genes, Replacements: c.replacements(req.Replacements)}, c.logger)

	var (
		batch   merge.Batch
		ids     []string
		pending = make(map[string]*models.Metabolite)
	)
	addMets := func(mets []*models.Metabolite) {
		for _, met := range mets {
			if _, ok := pending[met.ID]; ok {
				continue
			}
			pending[met.ID] = met
			batch.Metabolites = append(batch.Metabolites, met)
		}
	}
	addReaction := func(line string, rxn *models.Reaction, mets []*models.Metabolite) error {
		if metabolitesOnly {
			return fmt.Errorf("entry %q: %w: reaction where a metabolite was expected", line, ErrUnexpectedKind)
		}
		// Participants declared earlier in the batch win over stubs.
		for i, met := range mets {
			if p, ok := pending[met.ID]; ok {
				mets[i] = p
			}
		}
		ids = append(ids, rxn.ID)
		batch.Reactions = append(batch.Reactions, merge.ReactionEntry{Reaction: rxn, Participants: mets})
		return nil
	}

	for _, e := range req.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch e.Kind {
		case parser.EntryDatabaseRef:
			if db == "" {
				return nil, fmt.Errorf("entry %q: no database given", e.Line)
			}
			comp := e.Ref.Compartment
			if comp == "" {
				comp = c.compartment(req.Compartment)
			}
			rec, err := src.Record(ctx, e.Ref.Identifier, db)
			if err != nil {
				return nil, fmt.Errorf("entry %q: %w", e.Line, err)
			}
			switch rec.Kind {
			case models.RecordCompound:
				met, err := b.BuildMetabolite(rec, comp)
				if err != nil {
					return nil, err
				}
				addMets([]*models.Metabolite{met})
			case models.RecordReaction:
				rxn, mets, err := b.BuildReaction(ctx, rec, comp)
				if err != nil {
					return nil, err
				}
				if err := addReaction(e.Line, rxn, mets); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("entry %q: %w: %s", e.Line, ErrUnexpectedKind, rec.Kind)
			}
		default:
			rxn, mets, err := b.FromEntry(ctx, e, db)
			if err != nil {
				return nil, err
			}
			if rxn == nil {
				addMets(mets)
				continue
			}
			if err := addReaction(e.Line, rxn, mets); err != nil {
				return nil, err
			}
		}
	}

	batch.IgnoreFlux = req.IgnoreFlux
	if req.PathwayID != "" && len(ids) > 0 {
		name := req.PathwayName
		if name == "" {
			name = req.PathwayID
		}
		batch.Pathway = pathway.Linear(req.PathwayID, name, ids)
	}
	return c.merge(ctx, m, batch, c.compartment(req.Compartment))
}

// merge applies the batch and, when configured, asks the advisor for notes.
func (c *Curator) merge(ctx context.Context, m *models.Model, batch merge.Batch, comp string) (*Result, error) {
	work := m.Clone()
	s, err := c.engine.Merge(ctx, work, batch, comp)
	if err != nil {
		return nil, err
	}
	if c.opts.StopImbalance {
		var unbalanced []string
		for _, w := range s.WarningsOf(merge.WarningCuration) {
			if w.Criterion == string(curation.CriterionImbalance) {
				unbalanced = append(unbalanced, w.Subject)
			}
		}
		if len(unbalanced) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnbalanced, strings.Join(unbalanced, ", "))
		}
	}
	m.Replace(work)

	res := &Result{Summary: s, Pathway: s.Pathway}
	if c.advisor != nil && len(s.AddedReactions) > 0 {
		notes, err := c.advisor.Review(ctx, m, s)
		if err != nil {
			c.logger.Warn("advisor review failed, continuing without notes", "batch", s.BatchID, "error", err)
		} else {
			res.Notes = notes
		}
	}
	return res, nil
}

// FluxResult reports whether one reaction can carry flux.
type FluxResult struct {
	Reaction string `json:"reaction"`
	CanCarry bool   `json:"can_carry"`
}

// FluxTest checks the given reactions, or every reaction when ids is empty.
func (c *Curator) FluxTest(ctx context.Context, m *models.Model, ids []string) ([]FluxResult, error) {
	if len(ids) == 0 {
		for _, r := range m.Reactions() {
			ids = append(ids, r.ID)
		}
	}
	out := make([]FluxResult, 0, len(ids))
	for _, id := range ids {
		ok, err := c.flux.CanCarryFlux(ctx, m, id)
		if err != nil {
			return nil, fmt.Errorf("flux test %s: %w", id, err)
		}
		out = append(out, FluxResult{Reaction: id, CanCarry: ok})
	}
	return out, nil
}

// Optimize runs the configured flux engine on m.
func (c *Curator) Optimize(ctx context.Context, m *models.Model) (*flux.Solution, error) {
	return c.flux.Optimize(ctx, m)
}

// Visualize returns drawing metadata for a pathway of m. With withFluxes the
// model is optimized first and the fluxes are attached.
func (c *Curator) Visualize(ctx context.Context, m *models.Model, pathwayID string, withFluxes bool) (*pathway.Visualization, error) {
	p, ok := m.Pathway(pathwayID)
	if !ok {
		return nil, fmt.Errorf("visualize %s: %w", pathwayID, ErrUnknownPathway)
	}
	var sol *flux.Solution
	if withFluxes {
		var err error
		if sol, err = c.flux.Optimize(ctx, m); err != nil {
			return nil, fmt.Errorf("visualize %s: %w", pathwayID, err)
		}
	}
	return pathway.Visualize(p, sol), nil
}

func renameAll(ids []string, names map[string]string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := names[id]; ok {
			id = n
		}
		out = append(out, id)
	}
	return out
}

// memo remembers payloads for the duration of one request, so prefetched
// records and metabolites shared between reactions are fetched once.
type memo struct {
	next retrieval.Fetcher
	mu   sync.Mutex
	seen map[string]retrieval.Payload
}

func newMemo(next retrieval.Fetcher) *memo {
	return &memo{next: next, seen: make(map[string]retrieval.Payload)}
}

func (f *memo) Fetch(ctx context.Context, identifier, database string) (retrieval.Payload, error) {
	key := strings.ToUpper(database) + ":" + identifier
	f.mu.Lock()
	p, ok := f.seen[key]
	f.mu.Unlock()
	if ok {
		return p, nil
	}
	p, err := f.next.Fetch(ctx, identifier, database)
	if err != nil {
		return retrieval.Payload{}, err
	}
	f.mu.Lock()
	f.seen[key] = p
	f.mu.Unlock()
	return p, nil
}
