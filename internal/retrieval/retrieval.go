// Package retrieval fetches raw records from remote databases and keeps a
// byte-exact disk cache of them.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when a database has no record for an identifier.
var ErrNotFound = errors.New("record not found")

// Payload is a fetched record: the exact bytes, their file extension
// ("xml", "txt", "json") and the database they came from. Version is the
// database release reported by the service, empty when unknown or when the
// payload was read from the cache.
type Payload struct {
	Data     []byte
	Ext      string
	Database string
	Version  string
}

// Fetcher retrieves the raw record for an identifier.
type Fetcher interface {
	Fetch(ctx context.Context, identifier, database string) (Payload, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, identifier, database string) (Payload, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, identifier, database string) (Payload, error) {
	return f(ctx, identifier, database)
}

// Family groups database names by the service that hosts them.
type Family string

const (
	FamilyBioCyc   Family = "biocyc"
	FamilyPlantCyc Family = "plantcyc"
	FamilyKEGG     Family = "kegg"
	FamilyBiGG     Family = "bigg"
)

// plantCyc lists the Plant Metabolic Network databases.
var plantCyc = map[string]bool{
	"PMN": true, "ARA": true, "CORN": true, "SOY": true, "RICE": true, "POTATO": true,
	"TOMATO": true, "WHEAT": true, "SORGHUM": true, "GRAPE": true, "POPLAR": true,
}

// FamilyOf returns the service family of a database name. Every name not
// known to belong elsewhere is treated as a BioCyc database.
func FamilyOf(database string) Family {
	db := strings.ToUpper(strings.TrimSpace(database))
	switch {
	case db == "KEGG":
		return FamilyKEGG
	case db == "BIGG":
		return FamilyBiGG
	case plantCyc[db]:
		return FamilyPlantCyc
	default:
		return FamilyBioCyc
	}
}

// Prefetch fetches identifiers concurrently, at most limit at a time. The
// payloads are returned in identifier order. The first error cancels the
// remaining fetches.
func Prefetch(ctx context.Context, f Fetcher, identifiers []string, database string, limit int) ([]Payload, error) {
	if limit <= 0 {
		limit = 1
	}
	out := make([]Payload, len(identifiers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range identifiers {
		g.Go(func() error {
			p, err := f.Fetch(gctx, id, database)
			if err != nil {
				return fmt.Errorf("prefetching %s: %w", id, err)
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
