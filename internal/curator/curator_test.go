package curator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pathcurate/internal/advisor"
	"github.com/ajitpratap0/pathcurate/internal/merge"
	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/internal/parser"
	"github.com/ajitpratap0/pathcurate/internal/retrieval"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var keggRecords = map[string]string{
	"M00118": `ENTRY       M00118            Pathway   Module
NAME        Glutathione biosynthesis, glutamate => glutathione
DEFINITION  (K11204+K11205,K01919) (K21456,K01920)
ORTHOLOGY   K11204,K11205,K01919  glutamate--cysteine ligase [EC:6.3.2.2] [RN:R00894]
            K21456,K01920  glutathione synthase [EC:6.3.2.3] [RN:R00497]
REACTION    R00894  C00025 + C00097 -> C00669
            R00497  C00669 + C00037 -> C00051
///
`,
	"R00894": `ENTRY       R00894                      Reaction
NAME        gamma-glutamylcysteine synthetase
EQUATION    C00025 + C00097 => C00669
ORTHOLOGY   K01919  glutamate--cysteine ligase [EC:6.3.2.2]
///
`,
	"R00497": `ENTRY       R00497                      Reaction
NAME        glutathione synthase
EQUATION    C00669 + C00037 => C00051
///
`,
	"C00025": "ENTRY       C00025                      Compound\nNAME        L-Glutamate\n///\n",
	"C00097": "ENTRY       C00097                      Compound\nNAME        L-Cysteine\n///\n",
	"C00669": "ENTRY       C00669                      Compound\nNAME        gamma-L-Glutamyl-L-cysteine\n///\n",
	"C00037": "ENTRY       C00037                      Compound\nNAME        Glycine\n///\n",
	"C00051": "ENTRY       C00051                      Compound\nNAME        Glutathione\n///\n",
}

// countingFetcher serves keggRecords and counts calls per identifier.
type countingFetcher struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *countingFetcher) Fetch(_ context.Context, identifier, database string) (retrieval.Payload, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[identifier]++
	f.mu.Unlock()
	raw, ok := keggRecords[identifier]
	if !ok {
		return retrieval.Payload{}, retrieval.ErrNotFound
	}
	return retrieval.Payload{Data: []byte(raw), Ext: "txt", Database: database}, nil
}

func newCurator(f retrieval.Fetcher, opts Options, a advisor.Advisor) *Curator {
	if opts.Database == "" {
		opts.Database = parser.DatabaseKEGG
	}
	return New(Deps{Fetcher: f, Advisor: a}, opts, newTestLogger())
}

func TestAddPathway_Module(t *testing.T) {
	f := &countingFetcher{}
	c := newCurator(f, Options{Concurrency: 4}, nil)
	m := models.NewModel("toy", "")

	res, err := c.AddPathway(context.Background(), m, PathwayRequest{ID: "M00118"})
	require.NoError(t, err)
	assert.Equal(t, "M00118", res.Pathway)
	assert.ElementsMatch(t, []string{"R00894_c", "R00497_c"}, res.Summary.AddedReactions)
	assert.NotEmpty(t, res.Summary.AddedSinks)

	p, ok := m.Pathway("M00118")
	require.True(t, ok)
	assert.True(t, p.HasMember("R00894_c"))
	assert.True(t, p.HasMember("R00497_c"))
	assert.Empty(t, p.StaleMembers(m))

	assert.Equal(t, 1, f.calls["R00894"], "prefetched records are not fetched again")
	assert.Equal(t, 1, f.calls["C00669"], "shared participants are fetched once")

	again, err := c.AddPathway(context.Background(), m, PathwayRequest{ID: "M00118"})
	require.NoError(t, err)
	assert.Empty(t, again.Summary.AddedReactions)
	assert.ElementsMatch(t, []string{"R00894_c", "R00497_c"}, again.Summary.SkippedReactions)
}

func TestAddPathway_Avoid(t *testing.T) {
	c := newCurator(&countingFetcher{}, Options{}, nil)
	m := models.NewModel("toy", "")

	res, err := c.AddPathway(context.Background(), m, PathwayRequest{ID: "M00118", Avoid: []string{"R00497"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"R00894_c"}, res.Summary.AddedReactions)
	_, ok := m.Reaction("R00497_c")
	assert.False(t, ok)
}

func TestAddPathway_WrongKind(t *testing.T) {
	c := newCurator(&countingFetcher{}, Options{}, nil)
	_, err := c.AddPathway(context.Background(), models.NewModel("toy", ""), PathwayRequest{ID: "R00894"})
	assert.ErrorIs(t, err, ErrUnexpectedKind)
}

func TestAddPathway_NotFound(t *testing.T) {
	c := newCurator(&countingFetcher{}, Options{}, nil)
	m := models.NewModel("toy", "")
	_, err := c.AddPathway(context.Background(), m, PathwayRequest{ID: "M99999"})
	assert.ErrorIs(t, err, retrieval.ErrNotFound)
	_, _, pathways := m.Counts()
	assert.Zero(t, pathways)
}

func entries(t *testing.T, lines ...string) []parser.Entry {
	t.Helper()
	out, err := parser.ParseEntries(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	return out
}

func TestAddReactions_MixedEntries(t *testing.T) {
	c := newCurator(&countingFetcher{}, Options{}, nil)
	m := models.NewModel("toy", "")

	res, err := c.AddReactions(context.Background(), m, EntriesRequest{
		Entries: entries(t,
			"MET_A, Metabolite A, c, C6H12O6, 0",
			"MET_B, Metabolite B, c, C6H12O6, 0",
			"RXN_A, A to B | MET_A_c:-1, MET_B_c:1",
			"R00894",
		),
		PathwayID: "CUSTOM",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"RXN_A", "R00894_c"}, res.Summary.AddedReactions)

	a, ok := m.Metabolite("MET_A_c")
	require.True(t, ok)
	assert.Equal(t, "C6H12O6", a.Formula, "declared metabolite wins over a stub")

	p, ok := m.Pathway("CUSTOM")
	require.True(t, ok)
	assert.Equal(t, []models.Edge{{From: "RXN_A", To: "R00894_c"}}, p.Edges())
}

func TestAddMetabolites_RejectsReactions(t *testing.T) {
	c := newCurator(&countingFetcher{}, Options{}, nil)
	m := models.NewModel("toy", "")

	_, err := c.AddMetabolites(context.Background(), m, EntriesRequest{Entries: entries(t, "C00025", "R00894")})
	assert.ErrorIs(t, err, ErrUnexpectedKind)
	mets, _, _ := m.Counts()
	assert.Zero(t, mets)

	res, err := c.AddMetabolites(context.Background(), m, EntriesRequest{Entries: entries(t, "C00025, e", "C00025")})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"C00025_e", "C00025_c"}, res.Summary.AddedMetabolites)
}

func TestStopImbalance(t *testing.T) {
	lines := []string{
		"MET_A, a, c, C6H12O6, 0",
		"MET_B, b, c, C5H10O5, 0",
		"RXN_A, a to b | MET_A_c:-1, MET_B_c:1",
	}

	c := newCurator(&countingFetcher{}, Options{StopImbalance: true}, nil)
	m := models.NewModel("toy", "")
	_, err := c.AddReactions(context.Background(), m, EntriesRequest{Entries: entries(t, lines...)})
	assert.ErrorIs(t, err, ErrUnbalanced)
	_, rxns, _ := m.Counts()
	assert.Zero(t, rxns)

	c = newCurator(&countingFetcher{}, Options{}, nil)
	res, err := c.AddReactions(context.Background(), m, EntriesRequest{Entries: entries(t, lines...)})
	require.NoError(t, err)
	assert.Equal(t, []string{"RXN_A"}, res.Summary.AddedReactions)
}

type fakeAdvisor struct {
	notes []advisor.Note
	err   error
}

func (a *fakeAdvisor) Review(context.Context, *models.Model, *merge.Summary) ([]advisor.Note, error) {
	return a.notes, a.err
}

func TestAdvisorNotes(t *testing.T) {
	req := EntriesRequest{Entries: entries(t, "R00894")}

	c := newCurator(&countingFetcher{}, Options{}, &fakeAdvisor{notes: []advisor.Note{{Subject: "R00894_c", Severity: "info", Text: "ok"}}})
	res, err := c.AddReactions(context.Background(), models.NewModel("toy", ""), req)
	require.NoError(t, err)
	assert.Len(t, res.Notes, 1)

	c = newCurator(&countingFetcher{}, Options{}, &fakeAdvisor{err: errors.New("unavailable")})
	res, err = c.AddReactions(context.Background(), models.NewModel("toy", ""), req)
	require.NoError(t, err, "advisor failures never fail the merge")
	assert.Empty(t, res.Notes)
	assert.Equal(t, []string{"R00894_c"}, res.Summary.AddedReactions)
}

func TestFluxTestAndVisualize(t *testing.T) {
	c := newCurator(&countingFetcher{}, Options{}, nil)
	m := models.NewModel("toy", "")
	_, err := c.AddPathway(context.Background(), m, PathwayRequest{ID: "M00118"})
	require.NoError(t, err)

	results, err := c.FluxTest(context.Background(), m, []string{"R00894_c", "R00497_c"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.CanCarry, r.Reaction)
	}

	all, err := c.FluxTest(context.Background(), m, nil)
	require.NoError(t, err)
	_, rxns, _ := m.Counts()
	assert.Len(t, all, rxns)

	v, err := c.Visualize(context.Background(), m, "M00118", false)
	require.NoError(t, err)
	assert.Equal(t, "M00118", v.PathwayID)

	_, err = c.Visualize(context.Background(), m, "NOPE", false)
	assert.ErrorIs(t, err, ErrUnknownPathway)
}
