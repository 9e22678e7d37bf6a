package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ajitpratap0/pathcurate/internal/classifier"
	"github.com/ajitpratap0/pathcurate/internal/flux"
	"github.com/ajitpratap0/pathcurate/internal/metrics"
	"github.com/ajitpratap0/pathcurate/internal/models"
)

// Report summarizes the results of a lifecycle run.
type Report struct {
	PrunedSinks       []string `json:"pruned_sinks"`
	PrunedDemands     []string `json:"pruned_demands"`
	StaleMembers      int      `json:"stale_members"`
	EmptiedPathways   []string `json:"emptied_pathways"`
	OrphanMetabolites []string `json:"orphan_metabolites"`
}

// Total counts every pruned item.
func (r *Report) Total() int {
	return len(r.PrunedSinks) + len(r.PrunedDemands) + r.StaleMembers +
		len(r.EmptiedPathways) + len(r.OrphanMetabolites)
}

// Manager handles model housekeeping: boundary reactions that merges left
// behind but no longer need, and pathway members whose reactions are gone.
type Manager struct {
	checker    flux.Checker
	classifier classifier.Classifier
	logger     *slog.Logger
}

// NewManager creates a new lifecycle manager. A nil checker uses the
// topological one.
func NewManager(checker flux.Checker, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if checker == nil {
		checker = &flux.Topology{}
	}
	return &Manager{
		checker:    checker,
		classifier: classifier.NewClassifier(logger),
		logger:     logger,
	}
}

// Run executes all lifecycle operations on m. With dryRun the report is
// computed on a copy and m is left as it was.
func (mgr *Manager) Run(ctx context.Context, m *models.Model, dryRun bool) (*Report, error) {
	work := m.Clone()
	report := &Report{}

	// 1. Boundaries no other reaction depends on
	if err := mgr.pruneBoundaries(ctx, work, report); err != nil {
		return nil, fmt.Errorf("pruning boundaries: %w", err)
	}

	// 2. Stale pathway membership
	mgr.pruneStaleMembers(work, report)

	// 3. Metabolites no reaction references
	for _, met := range work.Metabolites() {
		if len(work.ReactionsOf(met.ID)) > 0 {
			continue
		}
		if err := work.RemoveMetabolite(met.ID); err != nil {
			return nil, err
		}
		mgr.logger.Info("pruning orphan metabolite", "metabolite", met.ID)
		report.OrphanMetabolites = append(report.OrphanMetabolites, met.ID)
	}

	if !dryRun {
		for i := 0; i < report.Total(); i++ {
			metrics.Inc(metrics.LifecyclePruned)
		}
		for range report.PrunedSinks {
			metrics.Inc(metrics.SinksRemoved)
		}
		m.Replace(work)
	}
	return report, nil
}

// pruneBoundaries removes each sink or demand whose metabolite's other
// reactions keep carrying flux without it. Boundaries are tried in model
// order and each removal is kept before the next one is tried.
func (mgr *Manager) pruneBoundaries(ctx context.Context, m *models.Model, report *Report) error {
	for _, r := range m.Reactions() {
		if err := ctx.Err(); err != nil {
			return err
		}
		kind := mgr.classifier.Classify(r, m)
		if kind != classifier.KindSink && kind != classifier.KindDemand {
			continue
		}
		needed, err := mgr.needed(ctx, m, r)
		if err != nil {
			return err
		}
		if needed {
			continue
		}
		m.RemoveReaction(r.ID)
		mgr.logger.Info("pruning boundary", "reaction", r.ID, "kind", kind)
		if kind == classifier.KindSink {
			report.PrunedSinks = append(report.PrunedSinks, r.ID)
		} else {
			report.PrunedDemands = append(report.PrunedDemands, r.ID)
		}
	}
	return nil
}

// needed reports whether removing boundary blocks a reaction that carries
// flux with it in place. A boundary on a metabolite nothing else touches
// is never needed.
func (mgr *Manager) needed(ctx context.Context, m *models.Model, boundary *models.Reaction) (bool, error) {
	var partners []string
	for _, metID := range boundary.MetaboliteIDs() {
		for _, r := range m.ReactionsOf(metID) {
			if r.ID == boundary.ID {
				continue
			}
			ok, err := mgr.checker.CanCarryFlux(ctx, m, r.ID)
			if err != nil {
				return true, fmt.Errorf("checking %s: %w", r.ID, err)
			}
			if ok {
				partners = append(partners, r.ID)
			}
		}
	}
	if len(partners) == 0 {
		return false, nil
	}

	trial := m.Clone()
	trial.RemoveReaction(boundary.ID)
	for _, id := range partners {
		ok, err := mgr.checker.CanCarryFlux(ctx, trial, id)
		if err != nil {
			return true, fmt.Errorf("checking %s: %w", id, err)
		}
		if !ok {
			mgr.logger.Debug("boundary still needed", "reaction", boundary.ID, "blocks", id)
			return true, nil
		}
	}
	return false, nil
}

// pruneStaleMembers drops pathway members whose reaction no longer exists.
// Pathways left without members are removed.
func (mgr *Manager) pruneStaleMembers(m *models.Model, report *Report) {
	for _, p := range m.Pathways() {
		stale := p.StaleMembers(m)
		for _, id := range stale {
			p.RemoveMember(id)
		}
		if len(stale) > 0 {
			mgr.logger.Info("pruning stale pathway members", "pathway", p.ID, "members", stale)
			report.StaleMembers += len(stale)
		}
		if len(p.Members) == 0 && len(stale) > 0 {
			m.RemovePathway(p.ID)
			report.EmptiedPathways = append(report.EmptiedPathways, p.ID)
		}
	}
}
