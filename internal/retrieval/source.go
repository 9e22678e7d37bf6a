package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/internal/parser"
	"github.com/ajitpratap0/pathcurate/internal/pathway"
)

// Source fetches and parses records.
type Source struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewSource returns a record source backed by fetcher.
func NewSource(fetcher Fetcher, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{fetcher: fetcher, logger: logger}
}

// Record fetches identifier from database and parses it. When the payload
// holds several records, the one whose identifier matches is returned.
func (s *Source) Record(ctx context.Context, identifier, database string) (models.Record, error) {
	p, err := s.fetcher.Fetch(ctx, identifier, database)
	if err != nil {
		return models.Record{}, err
	}
	format, _ := parser.FormatForExt(p.Ext)
	recs, err := parser.Parse(p.Data, format, database)
	if err != nil {
		return models.Record{}, fmt.Errorf("parsing %s:%s: %w", database, identifier, err)
	}
	if len(recs) == 0 {
		return models.Record{}, fmt.Errorf("parsing %s:%s: %w", database, identifier, ErrNotFound)
	}
	for _, rec := range recs {
		if strings.EqualFold(rec.ID, identifier) {
			return rec, nil
		}
	}
	s.logger.Debug("no exact identifier match, using first record", "identifier", identifier, "got", recs[0].ID)
	return recs[0], nil
}

// Metabolite implements builder.MetaboliteSource.
func (s *Source) Metabolite(ctx context.Context, identifier, database string) (models.Record, error) {
	rec, err := s.Record(ctx, identifier, database)
	if err != nil {
		return models.Record{}, err
	}
	if rec.Kind != models.RecordCompound {
		return models.Record{}, fmt.Errorf("%s:%s is a %s, not a compound", database, identifier, rec.Kind)
	}
	return rec, nil
}

// ResolverFor returns a sub-pathway resolver reading from database.
func (s *Source) ResolverFor(database string) pathway.Resolver {
	return pathway.ResolverFunc(func(ctx context.Context, id string) (models.Record, error) {
		return s.Record(ctx, id, database)
	})
}
