package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

const keggCompounds = `ENTRY       C00002                      Compound
NAME        ATP;
            Adenosine 5'-triphosphate
FORMULA     C10H16N5O13P3
///
ENTRY       C00001                      Compound
NAME        H2O;
            Water
FORMULA     H2O
///
`

const biggATP = `{"bigg_id": "atp", "name": "ATP", "formulae": ["C10H12N5O13P3"], "charges": [-4]}`

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		db   string
		want Family
	}{
		{"KEGG", FamilyKEGG},
		{"kegg", FamilyKEGG},
		{"BIGG", FamilyBiGG},
		{"ARA", FamilyPlantCyc},
		{"META", FamilyBioCyc},
		{"ECOLI", FamilyBioCyc},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FamilyOf(tc.db), tc.db)
	}
}

func TestCache_PutGetInvalidate(t *testing.T) {
	c := NewCache(t.TempDir(), newTestLogger())

	_, ok, err := c.Get("C00002", "KEGG")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put("C00002", Payload{Data: []byte(keggCompounds), Ext: "txt", Database: "KEGG"}))
	require.NoError(t, c.Put("ACET", Payload{Data: []byte("<ptools-xml/>"), Ext: "xml", Database: "META"}))

	p, ok, err := c.Get("C00002", "KEGG")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "txt", p.Ext)
	assert.Equal(t, keggCompounds, string(p.Data), "cached bytes are exact")

	require.NoError(t, c.Invalidate("KEGG"))
	_, ok, _ = c.Get("C00002", "KEGG")
	assert.False(t, ok)
	_, ok, _ = c.Get("ACET", "META")
	assert.True(t, ok, "other databases survive")

	require.NoError(t, os.WriteFile(filepath.Join(c.Dir(), "xref.db"), []byte("keep"), 0o644))
	require.NoError(t, c.Invalidate(""))
	_, ok, _ = c.Get("ACET", "META")
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(c.Dir(), "xref.db"))
	assert.NoError(t, err, "files next to the database directories survive")
}

func TestCache_SanitizesIdentifiers(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, newTestLogger())
	require.NoError(t, c.Put("../escape", Payload{Data: []byte("x"), Ext: "txt", Database: "KEGG"}))
	_, ok, err := c.Get("../escape", "KEGG")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, strings.HasPrefix(c.path("KEGG", "../escape", "txt"), dir))
}

func TestCachedFetcher(t *testing.T) {
	var calls atomic.Int32
	next := FetcherFunc(func(_ context.Context, id, db string) (Payload, error) {
		calls.Add(1)
		return Payload{Data: []byte(keggCompounds), Ext: "txt"}, nil
	})
	cache := NewCache(t.TempDir(), newTestLogger())
	f := NewCachedFetcher(cache, next, newTestLogger())

	p1, err := f.Fetch(context.Background(), "C00002", "KEGG")
	require.NoError(t, err)
	p2, err := f.Fetch(context.Background(), "C00002", "KEGG")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "second fetch is served from the cache")
	assert.Equal(t, p1.Data, p2.Data)
	assert.Equal(t, "KEGG", p2.Database)
}

func TestCachedFetcher_Offline(t *testing.T) {
	f := NewCachedFetcher(NewCache(t.TempDir(), newTestLogger()), nil, newTestLogger())
	_, err := f.Fetch(context.Background(), "C00002", "KEGG")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPrefetch_KeepsOrder(t *testing.T) {
	f := FetcherFunc(func(_ context.Context, id, db string) (Payload, error) {
		if id == "R1" {
			time.Sleep(10 * time.Millisecond)
		}
		return Payload{Data: []byte(id), Database: db}, nil
	})
	out, err := Prefetch(context.Background(), f, []string{"R1", "R2", "R3"}, "KEGG", 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, id := range []string{"R1", "R2", "R3"} {
		assert.Equal(t, id, string(out[i].Data))
	}
}

func TestPrefetch_Error(t *testing.T) {
	f := FetcherFunc(func(_ context.Context, id, _ string) (Payload, error) {
		if id == "bad" {
			return Payload{}, ErrNotFound
		}
		return Payload{}, nil
	})
	_, err := Prefetch(context.Background(), f, []string{"ok", "bad"}, "KEGG", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "bad")
}

func newServer(t *testing.T, logins *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/get/", func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimPrefix(r.URL.Path, "/get/") != "C00002" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, keggCompounds)
	})
	mux.HandleFunc("/info/kegg", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "kegg             Kyoto Encyclopedia of Genes and Genomes\nkegg             Release 117.0+/02-10, Feb 26\n")
	})
	mux.HandleFunc("/database_version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"bigg_models_version": "1.6.0", "api_version": "v2"}`)
	})
	mux.HandleFunc("/link/genes/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ko:K01919\thsa:2729\nko:K01919\teco:b2688\nko:K11204\thsa:2729\n")
	})
	mux.HandleFunc("/models/universal/metabolites/atp", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, biggATP)
	})
	mux.HandleFunc("/getxml", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "ok" {
			http.Error(w, "login required", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("id") == "ECOLI:MISSING" {
			fmt.Fprint(w, "<ptools-xml><metadata><num_results>0</num_results></metadata></ptools-xml>")
			return
		}
		fmt.Fprint(w, `<ptools-xml><metadata><PGDB orgid="ECOLI" version="28.0"/></metadata><Compound ID="ECOLI:ACET" orgid="ECOLI" frameid="ACET" detail="full"/></ptools-xml>`)
	})
	mux.HandleFunc("/credentials/login/", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("email") != "me@example.org" {
			http.Error(w, "bad credentials", http.StatusForbidden)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestFetcher(t *testing.T, srv *httptest.Server, creds Credentials) *HTTPFetcher {
	t.Helper()
	f, err := NewHTTPFetcher(Endpoints{BioCyc: srv.URL, PlantCyc: srv.URL, KEGG: srv.URL, BiGG: srv.URL}, creds, 5*time.Second, newTestLogger())
	require.NoError(t, err)
	return f
}

func TestHTTPFetcher_KEGG(t *testing.T) {
	var logins atomic.Int32
	f := newTestFetcher(t, newServer(t, &logins), Credentials{})

	p, err := f.Fetch(context.Background(), "C00002", "KEGG")
	require.NoError(t, err)
	assert.Equal(t, "txt", p.Ext)
	assert.Equal(t, keggCompounds, string(p.Data))
	assert.Equal(t, "117.0+/02-10, Feb 26", p.Version)

	_, err = f.Fetch(context.Background(), "C99999", "KEGG")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPFetcher_BiGGFallsBackToMetabolites(t *testing.T) {
	var logins atomic.Int32
	f := newTestFetcher(t, newServer(t, &logins), Credentials{})

	p, err := f.Fetch(context.Background(), "atp", "BIGG")
	require.NoError(t, err)
	assert.Equal(t, "json", p.Ext)
	assert.Equal(t, "1.6.0", p.Version)

	_, err = f.Fetch(context.Background(), "nothing", "BIGG")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestHTTPFetcher_BioCycLogin(t *testing.T) {
	var logins atomic.Int32
	f := newTestFetcher(t, newServer(t, &logins), Credentials{User: "me@example.org", Password: "secret"})

	p, err := f.Fetch(context.Background(), "ACET", "ECOLI")
	require.NoError(t, err)
	assert.Equal(t, "xml", p.Ext)
	assert.Equal(t, "28.0", p.Version)

	_, err = f.Fetch(context.Background(), "MISSING", "ECOLI")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, int32(1), logins.Load(), "login happens once per fetcher")
}

func TestHTTPFetcher_BioCycWithoutCredentials(t *testing.T) {
	var logins atomic.Int32
	f := newTestFetcher(t, newServer(t, &logins), Credentials{})
	_, err := f.Fetch(context.Background(), "ACET", "ECOLI")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Zero(t, logins.Load())
}

func TestGeneFetcher_KEGG(t *testing.T) {
	var logins atomic.Int32
	srv := newServer(t, &logins)
	cache := NewCache(t.TempDir(), newTestLogger())
	g := NewGeneFetcher(newTestFetcher(t, srv, Credentials{}), cache, "hsa", newTestLogger())

	rec := models.NewRecord(models.RecordReaction, "R00894", "KEGG")
	rec.Set(models.FieldOrthology, "K01919", "K11204")

	genes, rule, err := g.Genes(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"2729"}, genes)
	assert.Equal(t, "2729", rule)

	offline := NewGeneFetcher(nil, cache, "hsa", newTestLogger())
	genes, _, err = offline.Genes(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"2729"}, genes, "listing is served from the cache")
}

func TestGeneFetcher_OrthologsWithoutGenome(t *testing.T) {
	g := NewGeneFetcher(nil, nil, "", newTestLogger())
	rec := models.NewRecord(models.RecordReaction, "R00894", "KEGG")
	rec.Set(models.FieldOrthology, "K01919", "K11204")
	genes, rule, err := g.Genes(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"K01919", "K11204"}, genes)
	assert.Equal(t, "K01919 or K11204", rule)
}

func TestGeneFetcher_METAHasNoGenes(t *testing.T) {
	g := NewGeneFetcher(nil, nil, "", newTestLogger())
	genes, rule, err := g.Genes(context.Background(), models.NewRecord(models.RecordReaction, "RXN-1", "META"))
	require.NoError(t, err)
	assert.Empty(t, genes)
	assert.Empty(t, rule)
}

func TestSource_RecordPicksMatchingIdentifier(t *testing.T) {
	f := FetcherFunc(func(_ context.Context, id, db string) (Payload, error) {
		return Payload{Data: []byte(keggCompounds), Ext: "txt", Database: db}, nil
	})
	s := NewSource(f, newTestLogger())

	rec, err := s.Record(context.Background(), "C00001", "KEGG")
	require.NoError(t, err)
	assert.Equal(t, "C00001", rec.ID)
	assert.Equal(t, "KEGG", rec.Database)

	met, err := s.Metabolite(context.Background(), "C00002", "KEGG")
	require.NoError(t, err)
	assert.Equal(t, "C10H16N5O13P3", met.First(models.FieldFormula))
}

func TestSource_ResolverFor(t *testing.T) {
	f := FetcherFunc(func(_ context.Context, id, db string) (Payload, error) {
		if db != "KEGG" {
			return Payload{}, ErrNotFound
		}
		return Payload{Data: []byte(keggCompounds), Ext: "txt", Database: db}, nil
	})
	r := NewSource(f, newTestLogger()).ResolverFor("KEGG")
	rec, err := r.SubPathway(context.Background(), "C00002")
	require.NoError(t, err)
	assert.Equal(t, "C00002", rec.ID)
}
