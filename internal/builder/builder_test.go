package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/internal/parser"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type mapSource map[string]models.Record

func (s mapSource) Metabolite(_ context.Context, id, _ string) (models.Record, error) {
	rec, ok := s[id]
	if !ok {
		return models.Record{}, fmt.Errorf("no record for %s", id)
	}
	return rec, nil
}

type fixedGenes struct{ calls int }

func (g *fixedGenes) Genes(_ context.Context, rec models.Record) ([]string, string, error) {
	g.calls++
	return []string{rec.ID + "_g1", rec.ID + "_g2"}, rec.ID + "_g1 or " + rec.ID + "_g2", nil
}

func compound(id, formula, charge string) models.Record {
	rec := models.NewRecord(models.RecordCompound, id, "META")
	if formula != "" {
		rec.Set(models.FieldFormula, formula)
	}
	if charge != "" {
		rec.Set(models.FieldCharge, charge)
	}
	return rec
}

func reaction(id, dir string, left, right []string) models.Record {
	rec := models.NewRecord(models.RecordReaction, id, "META")
	rec.Set(models.FieldLeft, left...)
	rec.Set(models.FieldRight, right...)
	rec.Set(models.FieldDirection, dir)
	return rec
}

func TestBuildMetabolite_Defaults(t *testing.T) {
	b := New(nil, Options{}, testLogger())
	met, err := b.BuildMetabolite(compound("3-KETOBUTYRATE", "", ""), "c")
	require.NoError(t, err)

	assert.Equal(t, "3_KETOBUTYRATE_c", met.ID)
	assert.Equal(t, "", met.Formula)
	assert.Equal(t, 0, met.Charge)
	assert.Equal(t, "c", met.Compartment)
	assert.True(t, met.XRefs.Has("META", "3-KETOBUTYRATE"))

	met, err = b.BuildMetabolite(compound("GLYCOGEN", models.UnknownFormula, "-1.0"), "p")
	require.NoError(t, err)
	assert.Equal(t, "", met.Formula, "X means unknown")
	assert.Equal(t, -1, met.Charge)
}

func TestBuildMetabolite_WrongKind(t *testing.T) {
	b := New(nil, Options{}, testLogger())
	_, err := b.BuildMetabolite(reaction("R", "reversible", []string{"1 A"}, nil), "c")
	assert.True(t, errors.Is(err, ErrWrongKind))
}

func TestBuildMetabolite_ReusesModelIdentifier(t *testing.T) {
	m := models.NewModel("m", "m")
	require.NoError(t, m.AddMetabolite(&models.Metabolite{ID: "h2o", Compartment: "c"}))
	require.NoError(t, m.AddMetabolite(&models.Metabolite{ID: "ACETYL-COA_c", Compartment: "c"}))
	b := New(m, Options{}, testLogger())

	met, err := b.BuildMetabolite(compound("h2o", "H2O", ""), "c")
	require.NoError(t, err)
	assert.Equal(t, "h2o", met.ID)

	met, err = b.BuildMetabolite(compound("ACETYL-COA", "", ""), "c")
	require.NoError(t, err)
	assert.Equal(t, "ACETYL-COA_c", met.ID, "raw spelling already in the model wins")

	met, err = b.BuildMetabolite(compound("h2o", "H2O", ""), "p")
	require.NoError(t, err)
	assert.Equal(t, "h2o_p", met.ID, "other compartment gets its own entity")
}

func TestBuildReaction_ResolvesParticipants(t *testing.T) {
	src := mapSource{
		"ACET":       compound("ACET", "C2H3O2", "-1"),
		"ACETYL-COA": compound("ACETYL-COA", "C23H34N7O17P3S", "-4"),
	}
	genes := &fixedGenes{}
	b := New(nil, Options{Source: src, Genes: genes}, testLogger())

	rec := reaction("ACETOACETYL-COA-TRANSFER-RXN", "left-to-right",
		[]string{"1 ACET", "2 ACETYL-COA"}, []string{"1 UNKNOWN-THING"})
	rxn, mets, err := b.BuildReaction(context.Background(), rec, "c")
	require.NoError(t, err)

	assert.Equal(t, "ACETOACETYL_COA_TRANSFER_RXN_c", rxn.ID)
	assert.Equal(t, []models.Participant{
		{MetaboliteID: "ACET_c", Coefficient: -1},
		{MetaboliteID: "ACETYL_COA_c", Coefficient: -2},
		{MetaboliteID: "UNKNOWN_THING_c", Coefficient: 1},
	}, rxn.Stoichiometry)
	assert.Equal(t, 0.0, rxn.LowerBound)
	assert.Equal(t, models.DefaultBound, rxn.UpperBound)
	assert.True(t, rxn.XRefs.Has("META", "ACETOACETYL-COA-TRANSFER-RXN"))
	assert.Equal(t, 1, genes.calls)
	assert.Len(t, rxn.Genes, 2)

	require.Len(t, mets, 3)
	assert.Equal(t, "C2H3O2", mets[0].Formula)
	assert.Equal(t, -4, mets[1].Charge)
	assert.Equal(t, "", mets[2].Formula, "unresolvable participant becomes a stub")
	assert.Equal(t, "UNKNOWN-THING", mets[2].Name)
}

func TestBuildReaction_BoundsFollowDirection(t *testing.T) {
	b := New(nil, Options{}, testLogger())
	for dir, want := range map[string][2]float64{
		"reversible":    {-1000, 1000},
		"left-to-right": {0, 1000},
		"right-to-left": {-1000, 0},
		"unknown":       {-1000, 1000},
	} {
		rxn, _, err := b.BuildReaction(context.Background(), reaction("R", dir, []string{"1 A"}, []string{"1 B"}), "c")
		require.NoError(t, err)
		assert.Equal(t, want, [2]float64{rxn.LowerBound, rxn.UpperBound}, dir)
	}
}

func TestBuildReaction_Transport(t *testing.T) {
	b := New(nil, Options{}, testLogger())
	rec := reaction("GLCt", "reversible", []string{"1 GLC", "1 PROTON"}, []string{"1 GLC", "1 PROTON"})
	rxn, mets, err := b.BuildReaction(context.Background(), rec, "c")
	require.NoError(t, err)

	assert.Equal(t, "GLC_e", rxn.Stoichiometry[0].MetaboliteID)
	assert.Equal(t, "GLC_c", rxn.Stoichiometry[2].MetaboliteID)
	assert.Len(t, mets, 4)
	assert.Equal(t, ExtracellularCompartment, mets[0].Compartment)
}

func TestBuildReaction_Replacements(t *testing.T) {
	m := models.NewModel("m", "m")
	require.NoError(t, m.AddMetabolite(&models.Metabolite{ID: "ac_c", Name: "acetate", Compartment: "c"}))
	b := New(m, Options{Replacements: map[string]string{"ACET": "ac_c", "RXN-1": "MY_RXN"}}, testLogger())

	rxn, mets, err := b.BuildReaction(context.Background(), reaction("RXN-1", "reversible", []string{"1 ACET"}, []string{"1 B"}), "c")
	require.NoError(t, err)
	assert.Equal(t, "MY_RXN_c", rxn.ID)
	assert.Equal(t, "ac_c", rxn.Stoichiometry[0].MetaboliteID)
	assert.Equal(t, "acetate", mets[0].Name, "existing model metabolite is reused")
}

func TestBuildReaction_Empty(t *testing.T) {
	b := New(nil, Options{}, testLogger())
	_, _, err := b.BuildReaction(context.Background(), reaction("R", "reversible", nil, nil), "c")
	assert.True(t, errors.Is(err, models.ErrEmptyStoichiometry))
}

func TestFromEntry(t *testing.T) {
	m := models.NewModel("m", "m")
	require.NoError(t, m.AddMetabolite(&models.Metabolite{ID: "MET_A_c", Formula: "C6H12O6", Compartment: "c"}))
	b := New(m, Options{}, testLogger())
	ctx := context.Background()

	e, err := parser.ParseEntry("MET_B, Metabolite B, c, C6H12O6, 0")
	require.NoError(t, err)
	rxn, mets, err := b.FromEntry(ctx, e, "")
	require.NoError(t, err)
	assert.Nil(t, rxn)
	require.Len(t, mets, 1)
	assert.Equal(t, "MET_B_c", mets[0].ID)

	e, err = parser.ParseEntry("RXN_A, isomerase | MET_A_c:-1, MET_B_c:1")
	require.NoError(t, err)
	rxn, mets, err = b.FromEntry(ctx, e, "")
	require.NoError(t, err)
	assert.Equal(t, "RXN_A", rxn.ID)
	assert.Equal(t, 0.0, rxn.LowerBound)
	assert.Equal(t, "C6H12O6", mets[0].Formula)
	assert.Equal(t, "c", mets[1].Compartment)

	e, err = parser.ParseEntry("RXN_B | GLC <-> MET_A_c")
	require.NoError(t, err)
	_, _, err = b.FromEntry(ctx, e, "")
	assert.Error(t, err, "participant without compartment suffix")

	e, err = parser.ParseEntry("C00002, c")
	require.NoError(t, err)
	_, _, err = b.FromEntry(ctx, e, "KEGG")
	assert.True(t, errors.Is(err, ErrUnfetchedReference))
}

func TestCanonicalID(t *testing.T) {
	assert.Equal(t, "ACETYL_COA_c", CanonicalID("ACETYL-COA", "c"))
	assert.Equal(t, "Glc", CanonicalID("Glc", ""))
}

func TestBuildReaction_KEGGEquationRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			"reversible",
			"ENTRY       R00894                      Reaction\nEQUATION    C00002 + C00025 + C00097 <=> C00008 + C00009 + C00669\n///\n",
			"C00002_c + C00025_c + C00097_c <=> C00008_c + C00009_c + C00669_c",
		},
		{
			"coefficients and irreversible comment",
			"ENTRY       R00010                      Reaction\nEQUATION    C01083 + 2 C00001 <=> 2 C00031\nCOMMENT     irreversible\n///\n",
			"C01083_c + 2 C00001_c --> 2 C00031_c",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recs, err := parser.ParseFlatFile([]byte(tc.raw), "KEGG")
			require.NoError(t, err)
			require.Len(t, recs, 1)

			rxn, mets, err := New(nil, Options{}, testLogger()).BuildReaction(context.Background(), recs[0], "c")
			require.NoError(t, err)
			assert.Equal(t, tc.want, rxn.Equation())
			assert.Len(t, mets, len(rxn.Stoichiometry))
		})
	}
}
