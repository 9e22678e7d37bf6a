package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleModel(t *testing.T, id string) *models.Model {
	t.Helper()
	m := models.NewModel(id, "Sample "+id)
	x := models.XRefs{}
	x.Add("META", "ACET")
	require.NoError(t, m.AddMetabolite(&models.Metabolite{ID: "ac_c", Name: "acetate", Formula: "C2H3O2", Charge: -1, Compartment: "c", XRefs: x}))
	require.NoError(t, m.AddMetabolite(&models.Metabolite{ID: "b_c", Compartment: "c"}))
	require.NoError(t, m.AddReaction(&models.Reaction{
		ID:            "R1",
		Stoichiometry: []models.Participant{{MetaboliteID: "ac_c", Coefficient: -2}, {MetaboliteID: "b_c", Coefficient: 1}},
		UpperBound:    1000,
		Direction:     models.DirectionLeftToRight,
		Genes:         []string{"g1"},
		GeneRule:      "g1",
	}))
	p := models.NewPathway("PWY", "pathway")
	p.AddMember("R1")
	m.SetPathway(p)
	return m
}

func assertSameModel(t *testing.T, want, got *models.Model) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	wm, wr, wp := want.Counts()
	gm, gr, gp := got.Counts()
	assert.Equal(t, []int{wm, wr, wp}, []int{gm, gr, gp})

	met, ok := got.Metabolite("ac_c")
	require.True(t, ok)
	assert.Equal(t, "C2H3O2", met.Formula)
	assert.Equal(t, -1, met.Charge)
	assert.True(t, met.XRefs.Has("META", "ACET"))

	r, ok := got.Reaction("R1")
	require.True(t, ok)
	assert.Equal(t, -2.0, r.Coefficient("ac_c"))
	assert.Equal(t, models.DirectionLeftToRight, r.Direction)
	assert.Equal(t, "g1", r.GeneRule)

	p, ok := got.Pathway("PWY")
	require.True(t, ok)
	assert.Equal(t, []string{"R1"}, p.Members)
}

func TestFileStore_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatYAML, FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			ctx := context.Background()
			s, err := NewFileStore(t.TempDir(), format, newTestLogger())
			require.NoError(t, err)
			defer s.Close()

			m := sampleModel(t, "toy")
			require.NoError(t, s.Save(ctx, m))

			got, err := s.Load(ctx, "toy")
			require.NoError(t, err)
			assertSameModel(t, m, got)
		})
	}
}

func TestFileStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir, FormatYAML, newTestLogger())
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, sampleModel(t, "zeta")))
	require.NoError(t, s.Save(ctx, sampleModel(t, "alpha")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("id: [unterminated"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	infos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].ID)
	assert.Equal(t, 2, infos[0].Metabolites)
	assert.Equal(t, 1, infos[0].Reactions)
	assert.Equal(t, 1, infos[0].Pathways)

	require.NoError(t, s.Delete(ctx, "alpha"))
	err = s.Delete(ctx, "alpha")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.Load(ctx, "alpha")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileStore_SaveSwitchesFormat(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	yamlStore, err := NewFileStore(dir, FormatYAML, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, yamlStore.Save(ctx, sampleModel(t, "toy")))

	jsonStore, err := NewFileStore(dir, FormatJSON, newTestLogger())
	require.NoError(t, err)
	got, err := jsonStore.Load(ctx, "toy")
	require.NoError(t, err, "documents in the other format are still found")
	require.NoError(t, jsonStore.Save(ctx, got))

	infos, err := jsonStore.List(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
	_, err = os.Stat(filepath.Join(dir, "toy.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "model.json")
	m := sampleModel(t, "toy")
	require.NoError(t, WriteFile(path, m))
	got, err := ReadFile(path)
	require.NoError(t, err)
	assertSameModel(t, m, got)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Error(t, WriteFile(filepath.Join(t.TempDir(), "model.xml"), m))
}

func TestReadFile_RejectsInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	doc := "id: bad\nmetabolites: []\nreactions:\n  - id: R1\n    stoichiometry:\n      - metabolite: x_c\n        coefficient: -1\n    upper_bound: 1000\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	_, err := ReadFile(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMissingMetabolite))
}

func TestMockStore(t *testing.T) {
	ctx := context.Background()
	s := NewMockStore()
	m := sampleModel(t, "toy")
	require.NoError(t, s.Save(ctx, m))

	m.RemoveReaction("R1")
	got, err := s.Load(ctx, "toy")
	require.NoError(t, err)
	_, ok := got.Reaction("R1")
	assert.True(t, ok, "stored snapshot is independent of the caller's model")

	infos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)

	require.NoError(t, s.Delete(ctx, "toy"))
	assert.True(t, errors.Is(s.Delete(ctx, "toy"), ErrNotFound))
	assert.Error(t, s.Save(ctx, models.NewModel("", "")))
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MockStore)(nil)
)
