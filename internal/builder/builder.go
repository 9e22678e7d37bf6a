// Package builder converts parsed records and custom entries into canonical
// metabolites and reactions, minting compartment-suffixed identifiers and
// reusing identifiers the target model already knows.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/internal/parser"
)

// ExtracellularCompartment receives the reactant side of a transport reaction.
const ExtracellularCompartment = "e"

// ErrWrongKind is returned when a record of the wrong kind is passed in.
var ErrWrongKind = errors.New("record kind mismatch")

// ErrUnfetchedReference is returned by FromEntry for database references,
// which must be fetched and parsed first.
var ErrUnfetchedReference = errors.New("database reference must be fetched before building")

// MetaboliteSource resolves a participant identifier into a compound record.
type MetaboliteSource interface {
	Metabolite(ctx context.Context, identifier, database string) (models.Record, error)
}

// GeneSource returns the genes and gene rule associated with a reaction.
type GeneSource interface {
	Genes(ctx context.Context, rec models.Record) (genes []string, rule string, err error)
}

// Options configure a Builder. All fields are optional.
type Options struct {
	Source       MetaboliteSource
	Genes        GeneSource
	Replacements map[string]string
}

// Builder turns records into entities for one target model. The model is
// only read.
type Builder struct {
	model        *models.Model
	source       MetaboliteSource
	genes        GeneSource
	replacements map[string]string
	logger       *slog.Logger
}

// New returns a builder that reuses identifiers found in model.
func New(model *models.Model, opts Options, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if model == nil {
		model = models.NewModel("", "")
	}
	return &Builder{
		model:        model,
		source:       opts.Source,
		genes:        opts.Genes,
		replacements: opts.Replacements,
		logger:       logger,
	}
}

// CanonicalID forms the model identifier of a source entity in a compartment.
// Hyphens become underscores; case is preserved.
func CanonicalID(sourceID, compartment string) string {
	id := strings.ReplaceAll(strings.TrimSpace(sourceID), "-", "_")
	if compartment == "" {
		return id
	}
	return id + "_" + compartment
}

// metaboliteID picks the model identifier for a source metabolite. A
// replacement that names an existing metabolite wins, then any spelling of
// the identifier already used in the model, then a freshly minted one.
func (b *Builder) metaboliteID(sourceID, compartment string) string {
	if r, ok := b.replacements[sourceID]; ok {
		if _, exists := b.model.Metabolite(r); exists {
			return r
		}
		sourceID = r
	}
	for _, cand := range []string{sourceID + "_" + compartment, CanonicalID(sourceID, compartment)} {
		if _, ok := b.model.Metabolite(cand); ok {
			return cand
		}
	}
	if met, ok := b.model.Metabolite(sourceID); ok && met.Compartment == compartment {
		return sourceID
	}
	return CanonicalID(sourceID, compartment)
}

// reactionID mirrors metaboliteID for reactions.
func (b *Builder) reactionID(sourceID, compartment string) string {
	if r, ok := b.replacements[sourceID]; ok {
		if _, exists := b.model.Reaction(r); exists {
			return r
		}
		sourceID = r
	}
	for _, cand := range []string{sourceID, sourceID + "_" + compartment, CanonicalID(sourceID, compartment)} {
		if _, ok := b.model.Reaction(cand); ok {
			return cand
		}
	}
	return CanonicalID(sourceID, compartment)
}

func parseCharge(s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return int(math.Round(v)), true
}

// BuildMetabolite converts a compound record. Missing formula and charge
// default to "" and 0.
func (b *Builder) BuildMetabolite(rec models.Record, compartment string) (*models.Metabolite, error) {
	if rec.Kind != models.RecordCompound {
		return nil, fmt.Errorf("build metabolite %s: %w: got %s", rec.ID, ErrWrongKind, rec.Kind)
	}
	charge, ok := parseCharge(rec.First(models.FieldCharge))
	if !ok {
		b.logger.Warn("ignoring non-numeric charge", "metabolite", rec.ID, "charge", rec.First(models.FieldCharge))
	}
	f := rec.First(models.FieldFormula)
	if f == models.UnknownFormula {
		f = ""
	}
	xrefs := rec.XRefs()
	xrefs.Add(rec.Database, rec.ID)
	return &models.Metabolite{
		ID:          b.metaboliteID(rec.ID, compartment),
		Name:        rec.Name(),
		Formula:     f,
		Charge:      charge,
		Compartment: compartment,
		XRefs:       xrefs,
	}, nil
}

// stub is used for participants no source could describe.
func stub(id, sourceID, database, compartment string) *models.Metabolite {
	x := make(models.XRefs)
	if database != "" {
		x.Add(database, sourceID)
	}
	return &models.Metabolite{ID: id, Name: sourceID, Compartment: compartment, XRefs: x}
}

// participant returns the metabolite for a source participant, preferring
// an existing model entry, then the metabolite source, then a stub.
func (b *Builder) participant(ctx context.Context, sourceID, database, compartment string) *models.Metabolite {
	id := b.metaboliteID(sourceID, compartment)
	if met, ok := b.model.Metabolite(id); ok {
		return met.Clone()
	}
	if b.source != nil {
		rec, err := b.source.Metabolite(ctx, sourceID, database)
		if err == nil {
			met, buildErr := b.BuildMetabolite(rec, compartment)
			if buildErr == nil {
				met.ID = id
				return met
			}
			err = buildErr
		}
		b.logger.Warn("participant not resolvable, using stub", "metabolite", sourceID, "database", database, "error", err)
	}
	return stub(id, sourceID, database, compartment)
}

// BuildReaction converts a reaction record. It returns the reaction and
// its participant metabolites in stoichiometry order. A metabolite that
// appears on both sides is treated as transported: its reactant side is
// placed in the extracellular compartment.
func (b *Builder) BuildReaction(ctx context.Context, rec models.Record, compartment string) (*models.Reaction, []*models.Metabolite, error) {
	if rec.Kind != models.RecordReaction {
		return nil, nil, fmt.Errorf("build reaction %s: %w: got %s", rec.ID, ErrWrongKind, rec.Kind)
	}
	left := rec.Participants(models.FieldLeft)
	right := rec.Participants(models.FieldRight)
	if len(left)+len(right) == 0 {
		return nil, nil, fmt.Errorf("build reaction %s: %w", rec.ID, models.ErrEmptyStoichiometry)
	}

	onRight := make(map[string]bool, len(right))
	for _, p := range right {
		onRight[p.ID] = true
	}
	transport := false
	for _, p := range left {
		if onRight[p.ID] && compartment != ExtracellularCompartment {
			transport = true
		}
	}
	if transport {
		b.logger.Warn("reaction moves a metabolite across compartments, reactant side set to extracellular",
			"reaction", rec.ID, "compartment", ExtracellularCompartment)
	}

	database := rec.First(models.FieldParticipantsDB)
	if database == "" {
		database = rec.Database
	}

	var (
		stoich []models.Participant
		mets   []*models.Metabolite
		seen   = make(map[string]bool)
	)
	add := func(p models.RawParticipant, comp string, sign float64) {
		met := b.participant(ctx, p.ID, database, comp)
		stoich = append(stoich, models.Participant{MetaboliteID: met.ID, Coefficient: sign * p.Coefficient})
		if !seen[met.ID] {
			seen[met.ID] = true
			mets = append(mets, met)
		}
	}
	for _, p := range left {
		comp := compartment
		if transport && onRight[p.ID] {
			comp = ExtracellularCompartment
		}
		add(p, comp, -1)
	}
	for _, p := range right {
		add(p, compartment, 1)
	}

	lb, ub := rec.Direction().Bounds()
	xrefs := rec.XRefs()
	xrefs.Add(rec.Database, rec.ID)
	rxn := &models.Reaction{
		ID:            b.reactionID(rec.ID, compartment),
		Name:          rec.Name(),
		Stoichiometry: stoich,
		LowerBound:    lb,
		UpperBound:    ub,
		Direction:     rec.Direction(),
		XRefs:         xrefs,
		Genes:         append([]string(nil), rec.Values(models.FieldGenes)...),
		GeneRule:      rec.First(models.FieldGeneRule),
	}
	if b.genes != nil && len(rxn.Genes) == 0 {
		genes, rule, err := b.genes.Genes(ctx, rec)
		if err != nil {
			b.logger.Warn("gene lookup failed, continuing without genes", "reaction", rec.ID, "error", err)
		} else {
			rxn.Genes, rxn.GeneRule = genes, rule
		}
	}
	b.logger.Debug("built reaction", "reaction", rxn.ID, "equation", rxn.Equation())
	return rxn, mets, nil
}

// FromEntry builds a custom entry. Custom metabolites yield one metabolite
// and no reaction. Participants of custom reactions must already carry a
// compartment suffix ("GLC_c") unless the model knows them; database is
// used to describe participants through the metabolite source.
func (b *Builder) FromEntry(ctx context.Context, e parser.Entry, database string) (*models.Reaction, []*models.Metabolite, error) {
	switch e.Kind {
	case parser.EntryCustomMetabolite:
		cm := e.Metabolite
		id := CanonicalID(cm.ID, cm.Compartment)
		if r, ok := b.replacements[cm.ID]; ok {
			id = r
		}
		return nil, []*models.Metabolite{{
			ID:          id,
			Name:        cm.Name,
			Formula:     cm.Formula,
			Charge:      cm.Charge,
			Compartment: cm.Compartment,
			XRefs:       make(models.XRefs),
		}}, nil
	case parser.EntryCustomReaction:
		return b.customReaction(ctx, e.Reaction, database)
	case parser.EntryDatabaseRef:
		return nil, nil, fmt.Errorf("build %s: %w", e.Ref.Identifier, ErrUnfetchedReference)
	default:
		return nil, nil, fmt.Errorf("build entry %q: unknown kind %d", e.Line, e.Kind)
	}
}

func (b *Builder) customReaction(ctx context.Context, cr parser.CustomReaction, database string) (*models.Reaction, []*models.Metabolite, error) {
	var (
		stoich []models.Participant
		mets   []*models.Metabolite
		seen   = make(map[string]bool)
	)
	for _, p := range cr.Participants {
		id := p.MetaboliteID
		if r, ok := b.replacements[id]; ok {
			id = r
		}
		var met *models.Metabolite
		if existing, ok := b.model.Metabolite(id); ok {
			met = existing.Clone()
		} else {
			comp := models.CompartmentOf(id)
			if comp == "" {
				return nil, nil, fmt.Errorf("build reaction %s: metabolite %q has no compartment suffix and is not in the model", cr.ID, id)
			}
			sourceID := strings.TrimSuffix(id, "_"+comp)
			if database != "" && b.source != nil {
				met = b.participant(ctx, sourceID, database, comp)
				if _, known := b.model.Metabolite(met.ID); !known {
					met.ID = id
				}
			} else {
				met = stub(id, sourceID, database, comp)
			}
		}
		stoich = append(stoich, models.Participant{MetaboliteID: met.ID, Coefficient: p.Coefficient})
		if !seen[met.ID] {
			seen[met.ID] = true
			mets = append(mets, met)
		}
	}
	if len(stoich) == 0 {
		return nil, nil, fmt.Errorf("build reaction %s: %w", cr.ID, models.ErrEmptyStoichiometry)
	}
	dir := cr.Direction
	if dir == "" {
		dir = models.DirectionLeftToRight
	}
	lb, ub := dir.Bounds()
	id := cr.ID
	if r, ok := b.replacements[id]; ok {
		id = r
	}
	return &models.Reaction{
		ID:            id,
		Name:          cr.Name,
		Stoichiometry: stoich,
		LowerBound:    lb,
		UpperBound:    ub,
		Direction:     dir,
		XRefs:         make(models.XRefs),
	}, mets, nil
}
