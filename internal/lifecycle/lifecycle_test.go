package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pathcurate/internal/metrics"
	"github.com/ajitpratap0/pathcurate/internal/models"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func p(met string, c float64) models.Participant {
	return models.Participant{MetaboliteID: met, Coefficient: c}
}

// buildModel returns a chain EX_a -> R1 -> EX_b carrying flux on its own,
// plus boundaries the chain does not need and one stranded sink.
func buildModel(t *testing.T) *models.Model {
	t.Helper()
	m := models.NewModel("toy", "")
	for _, id := range []string{"a_c", "b_c", "z_c"} {
		require.NoError(t, m.AddMetabolite(&models.Metabolite{ID: id, Compartment: "c"}))
	}
	add := func(r *models.Reaction) { require.NoError(t, m.AddReaction(r)) }
	add(&models.Reaction{ID: "EX_a", LowerBound: -10, UpperBound: 1000, Stoichiometry: []models.Participant{p("a_c", -1)}})
	add(&models.Reaction{ID: "R1", UpperBound: 1000, Stoichiometry: []models.Participant{p("a_c", -1), p("b_c", 1)}})
	add(&models.Reaction{ID: "EX_b", UpperBound: 1000, Stoichiometry: []models.Participant{p("b_c", -1)}})
	add(&models.Reaction{ID: "SK_b_c", LowerBound: -1000, UpperBound: 1000, Stoichiometry: []models.Participant{p("b_c", -1)}})
	add(&models.Reaction{ID: "DM_a_c", UpperBound: 1000, Stoichiometry: []models.Participant{p("a_c", -1)}})
	add(&models.Reaction{ID: "SK_z_c", LowerBound: -1000, UpperBound: 1000, Stoichiometry: []models.Participant{p("z_c", -1)}})

	pwy := models.NewPathway("PWY", "")
	pwy.AddMember("R1")
	pwy.AddMember("R_GONE")
	m.SetPathway(pwy)
	gone := models.NewPathway("OLD", "")
	gone.AddMember("R_OLD")
	m.SetPathway(gone)
	return m
}

func TestRun_PrunesUnneededBoundaries(t *testing.T) {
	m := buildModel(t)
	report, err := NewManager(nil, newTestLogger()).Run(context.Background(), m, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"SK_b_c", "SK_z_c"}, report.PrunedSinks)
	assert.Equal(t, []string{"DM_a_c"}, report.PrunedDemands)
	assert.Equal(t, []string{"z_c"}, report.OrphanMetabolites)
	assert.Equal(t, 2, report.StaleMembers)
	assert.Equal(t, []string{"OLD"}, report.EmptiedPathways)
	assert.Equal(t, 7, report.Total())

	_, ok := m.Reaction("SK_b_c")
	assert.False(t, ok)
	_, ok = m.Metabolite("z_c")
	assert.False(t, ok)
	pwy, ok := m.Pathway("PWY")
	require.True(t, ok)
	assert.Equal(t, []string{"R1"}, pwy.Members)
	_, ok = m.Pathway("OLD")
	assert.False(t, ok)
}

func TestRun_KeepsNeededSink(t *testing.T) {
	m := models.NewModel("toy", "")
	for _, id := range []string{"a_c", "b_c"} {
		require.NoError(t, m.AddMetabolite(&models.Metabolite{ID: id, Compartment: "c"}))
	}
	require.NoError(t, m.AddReaction(&models.Reaction{ID: "EX_a", LowerBound: -10, UpperBound: 1000, Stoichiometry: []models.Participant{p("a_c", -1)}}))
	require.NoError(t, m.AddReaction(&models.Reaction{ID: "R1", UpperBound: 1000, Stoichiometry: []models.Participant{p("a_c", -1), p("b_c", 1)}}))
	require.NoError(t, m.AddReaction(&models.Reaction{ID: "SK_b_c", LowerBound: -1000, UpperBound: 1000, Stoichiometry: []models.Participant{p("b_c", -1)}}))

	report, err := NewManager(nil, newTestLogger()).Run(context.Background(), m, false)
	require.NoError(t, err)
	assert.Empty(t, report.PrunedSinks)
	assert.Zero(t, report.Total())
	_, ok := m.Reaction("SK_b_c")
	assert.True(t, ok)
}

func TestRun_DryRunLeavesModel(t *testing.T) {
	m := buildModel(t)
	before := m.Document()

	sinks, pruned := metrics.SinksRemoved.Value(), metrics.LifecyclePruned.Value()

	report, err := NewManager(nil, newTestLogger()).Run(context.Background(), m, true)
	require.NoError(t, err)
	assert.NotZero(t, report.Total())
	assert.NotEmpty(t, report.PrunedSinks)
	assert.Equal(t, before, m.Document())
	assert.Equal(t, sinks, metrics.SinksRemoved.Value(), "a dry run removes nothing")
	assert.Equal(t, pruned, metrics.LifecyclePruned.Value())

	_, err = NewManager(nil, newTestLogger()).Run(context.Background(), m, false)
	require.NoError(t, err)
	assert.Equal(t, sinks+int64(len(report.PrunedSinks)), metrics.SinksRemoved.Value())
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := buildModel(t)
	_, err := NewManager(nil, newTestLogger()).Run(ctx, m, false)
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := m.Reaction("SK_b_c")
	assert.True(t, ok)
}
