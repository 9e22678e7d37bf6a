package classifier

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

func TestClassify(t *testing.T) {
	m := models.NewModel("m", "m")
	for _, met := range []*models.Metabolite{
		{ID: "glc_c", Compartment: "c"},
		{ID: "glc_e", Compartment: "e"},
		{ID: "atp_c", Compartment: "c"},
		{ID: "adp_c", Compartment: "c"},
	} {
		require.NoError(t, m.AddMetabolite(met))
	}
	c := NewClassifier(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))

	tests := []struct {
		name string
		r    *models.Reaction
		want Kind
	}{
		{"sink prefix", &models.Reaction{ID: "SK_glc_c", Stoichiometry: []models.Participant{{MetaboliteID: "glc_c", Coefficient: -1}}}, KindSink},
		{"demand prefix", &models.Reaction{ID: "DM_atp_c"}, KindDemand},
		{"exchange prefix", &models.Reaction{ID: "EX_glc_e"}, KindExchange},
		{"biomass name", &models.Reaction{ID: "R99", Name: "Biomass reaction"}, KindBiomass},
		{
			"extracellular boundary",
			&models.Reaction{ID: "B1", LowerBound: -1000, UpperBound: 1000, Stoichiometry: []models.Participant{{MetaboliteID: "glc_e", Coefficient: -1}}},
			KindExchange,
		},
		{
			"reversible boundary",
			&models.Reaction{ID: "B2", LowerBound: -1000, UpperBound: 1000, Stoichiometry: []models.Participant{{MetaboliteID: "atp_c", Coefficient: -1}}},
			KindSink,
		},
		{
			"irreversible boundary",
			&models.Reaction{ID: "B3", UpperBound: 1000, Stoichiometry: []models.Participant{{MetaboliteID: "atp_c", Coefficient: -1}}},
			KindDemand,
		},
		{
			"transport",
			&models.Reaction{ID: "GLCt", Stoichiometry: []models.Participant{{MetaboliteID: "glc_e", Coefficient: -1}, {MetaboliteID: "glc_c", Coefficient: 1}}},
			KindTransport,
		},
		{
			"regular",
			&models.Reaction{ID: "ATPase", Stoichiometry: []models.Participant{{MetaboliteID: "atp_c", Coefficient: -1}, {MetaboliteID: "adp_c", Coefficient: 1}}},
			KindRegular,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.r, m))
		})
	}
}

func TestIsBoundary(t *testing.T) {
	assert.True(t, IsBoundary(KindSink))
	assert.True(t, IsBoundary(KindExchange))
	assert.False(t, IsBoundary(KindTransport))
}
