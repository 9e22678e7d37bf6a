package store

import (
	"context"
	"errors"
	"time"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

// ErrNotFound is returned by Load and Delete when the requested model does not exist.
var ErrNotFound = errors.New("model not found")

// Store defines the interface for model persistence.
type Store interface {
	// Save writes m under its identifier, replacing any previous version.
	Save(ctx context.Context, m *models.Model) error

	// Load reads the model with the given identifier.
	Load(ctx context.Context, id string) (*models.Model, error)

	// List describes every stored model, ordered by identifier.
	List(ctx context.Context) ([]Info, error)

	// Delete removes a model by identifier.
	Delete(ctx context.Context, id string) error

	// Close cleans up resources.
	Close() error
}

// Info describes a stored model without loading it into a Model.
type Info struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Metabolites int       `json:"metabolites"`
	Reactions   int       `json:"reactions"`
	Pathways    int       `json:"pathways"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func infoOf(doc *models.Document, updated time.Time) Info {
	return Info{
		ID:          doc.ID,
		Name:        doc.Name,
		Metabolites: len(doc.Metabolites),
		Reactions:   len(doc.Reactions),
		Pathways:    len(doc.Pathways),
		UpdatedAt:   updated,
	}
}
