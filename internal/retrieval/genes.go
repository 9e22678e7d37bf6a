package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/internal/parser"
)

// geneSuffix separates gene listings from records in the cache.
const geneSuffix = "_GENES"

// GeneFetcher looks up the genes of a reaction record. KEGG reactions map
// to orthologs and, when a genome code is set, to that organism's genes.
// BioCyc reactions are resolved through the genes-of-reaction service.
type GeneFetcher struct {
	http   *HTTPFetcher
	cache  *Cache
	genome string
	logger *slog.Logger
}

// NewGeneFetcher returns a gene source. A nil http makes it cache-only; a
// nil cache disables caching.
func NewGeneFetcher(http *HTTPFetcher, cache *Cache, genome string, logger *slog.Logger) *GeneFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeneFetcher{http: http, cache: cache, genome: strings.TrimSpace(genome), logger: logger}
}

// Genes implements builder.GeneSource.
func (g *GeneFetcher) Genes(ctx context.Context, rec models.Record) ([]string, string, error) {
	var genes []string
	var err error
	switch FamilyOf(rec.Database) {
	case FamilyKEGG:
		genes, err = g.keggGenes(ctx, rec)
	case FamilyBiGG:
		genes = rec.Values(models.FieldGenes)
	default:
		if strings.EqualFold(rec.Database, "META") {
			// MetaCyc describes reactions across organisms and has no genes.
			return nil, "", nil
		}
		genes, err = g.cycGenes(ctx, rec)
	}
	if err != nil {
		return nil, "", err
	}
	return genes, strings.Join(genes, " or "), nil
}

func (g *GeneFetcher) keggGenes(ctx context.Context, rec models.Record) ([]string, error) {
	kos := rec.Values(models.FieldOrthology)
	if len(kos) == 0 {
		raw, err := g.raw(ctx, rec.ID+"_KO", "KEGG", func(f *HTTPFetcher) string {
			return f.endpoints.KEGG + "/link/ko/" + url.PathEscape(rec.ID)
		})
		if err != nil {
			return nil, err
		}
		kos = parseLinkTargets(raw, "ko")
	}
	if g.genome == "" || len(kos) == 0 {
		return kos, nil
	}
	query := "ko:" + strings.Join(kos, "+ko:")
	raw, err := g.raw(ctx, rec.ID+"_"+g.genome, "KEGG", func(f *HTTPFetcher) string {
		return f.endpoints.KEGG + "/link/genes/" + query
	})
	if err != nil {
		return nil, err
	}
	return parser.ParseKEGGGenes(raw, g.genome), nil
}

func (g *GeneFetcher) cycGenes(ctx context.Context, rec models.Record) ([]string, error) {
	raw, err := g.raw(ctx, rec.ID, rec.Database, func(f *HTTPFetcher) string {
		base := f.endpoints.BioCyc
		if FamilyOf(rec.Database) == FamilyPlantCyc {
			base = f.endpoints.PlantCyc
		}
		return fmt.Sprintf("%s/apixml?fn=genes-of-reaction&id=%s:%s&detail=full",
			base, url.QueryEscape(rec.Database), url.QueryEscape(rec.ID))
	})
	if err != nil {
		return nil, err
	}
	return parser.ParseBioCycGenes(raw)
}

// raw serves a gene listing from the cache, or fetches and caches it.
func (g *GeneFetcher) raw(ctx context.Context, key, database string, target func(*HTTPFetcher) string) ([]byte, error) {
	db := database + geneSuffix
	if g.cache != nil {
		p, ok, err := g.cache.Get(key, db)
		if err != nil {
			return nil, err
		}
		if ok {
			return p.Data, nil
		}
	}
	if g.http == nil {
		return nil, fmt.Errorf("genes of %s:%s: %w", database, key, ErrNotFound)
	}
	if FamilyOf(database) == FamilyBioCyc {
		if err := g.http.login(ctx); err != nil {
			return nil, err
		}
	}
	data, err := g.http.get(ctx, target(g.http))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("genes of %s:%s: %w", database, key, ErrNotFound)
		}
		return nil, fmt.Errorf("genes of %s:%s: %w", database, key, err)
	}
	if g.cache != nil {
		ext := "txt"
		if FamilyOf(database) != FamilyKEGG {
			ext = "xml"
		}
		if err := g.cache.Put(key, Payload{Data: data, Ext: ext, Database: db}); err != nil {
			g.logger.Warn("caching genes failed", "key", key, "error", err)
		}
	}
	return data, nil
}

// parseLinkTargets reads a KEGG link listing ("rn:R00001\tko:K00001") and
// returns the targets with the given prefix, without it.
func parseLinkTargets(raw []byte, prefix string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		p, id, ok := strings.Cut(fields[1], ":")
		if !ok || p != prefix || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
