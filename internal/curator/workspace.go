package curator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/internal/store"
	"github.com/ajitpratap0/pathcurate/internal/summary"
)

// Workspace serializes access to stored models. Long-running servers use it
// so that two requests never merge into the same model at once.
type Workspace struct {
	mu     sync.Mutex
	store  store.Store
	logger *slog.Logger
}

// NewWorkspace creates a Workspace over st.
func NewWorkspace(st store.Store, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{store: st, logger: logger}
}

// Update loads model id, or starts an empty one when create is set and the
// model does not exist, applies fn and saves the result. Nothing is saved
// when fn fails.
func (w *Workspace) Update(ctx context.Context, id string, create bool, fn func(*models.Model) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	m, err := w.store.Load(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound) && create:
		w.logger.Info("starting new model", "model", id)
		m = models.NewModel(id, id)
	case err != nil:
		return fmt.Errorf("loading model %s: %w", id, err)
	}
	if err := fn(m); err != nil {
		return err
	}
	if err := w.store.Save(ctx, m); err != nil {
		return fmt.Errorf("saving model %s: %w", id, err)
	}
	return nil
}

// View loads model id and passes it to fn without saving.
func (w *Workspace) View(ctx context.Context, id string, fn func(*models.Model) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	m, err := w.store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("loading model %s: %w", id, err)
	}
	return fn(m)
}

// List describes the stored models.
func (w *Workspace) List(ctx context.Context) ([]store.Info, error) {
	return w.store.List(ctx)
}

// Stats counts the entities of a model.
type Stats struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Metabolites int    `json:"metabolites"`
	Reactions   int    `json:"reactions"`
	Exchanges   int    `json:"exchanges"`
	Sinks       int    `json:"sinks"`
	Demands     int    `json:"demands"`
	Genes       int    `json:"genes"`
	Pathways    int    `json:"pathways"`
}

// StatsOf summarizes m. Reactions excludes boundary reactions.
func StatsOf(m *models.Model) Stats {
	d := summary.FromModel(m, nil)
	return Stats{
		ID:          m.ID,
		Name:        m.Name,
		Metabolites: len(d.Metabolites),
		Reactions:   len(d.Reactions),
		Exchanges:   len(d.Exchanges),
		Sinks:       len(d.Sinks),
		Demands:     len(d.Demands),
		Genes:       len(d.Genes),
		Pathways:    len(d.Pathways),
	}
}
