package parser

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

func TestParseEntry_Variants(t *testing.T) {
	ref, err := ParseEntry("ACETOACETATE-DEG-PWY")
	require.NoError(t, err)
	assert.Equal(t, EntryDatabaseRef, ref.Kind)
	assert.Equal(t, DatabaseRef{Identifier: "ACETOACETATE-DEG-PWY"}, ref.Ref)

	ref, err = ParseEntry("C00002, c")
	require.NoError(t, err)
	assert.Equal(t, DatabaseRef{Identifier: "C00002", Compartment: "c"}, ref.Ref)

	met, err := ParseEntry("MET_A, Metabolite A, c, C6H12O6, -1")
	require.NoError(t, err)
	assert.Equal(t, EntryCustomMetabolite, met.Kind)
	assert.Equal(t, CustomMetabolite{ID: "MET_A", Name: "Metabolite A", Compartment: "c", Formula: "C6H12O6", Charge: -1}, met.Metabolite)

	rxn, err := ParseEntry("RXN_A, Reaction A | MET_A_c:-1, MET_B_c:2")
	require.NoError(t, err)
	assert.Equal(t, EntryCustomReaction, rxn.Kind)
	assert.Equal(t, "Reaction A", rxn.Reaction.Name)
	assert.Equal(t, models.DirectionLeftToRight, rxn.Reaction.Direction)
	assert.Equal(t, []models.Participant{
		{MetaboliteID: "MET_A_c", Coefficient: -1},
		{MetaboliteID: "MET_B_c", Coefficient: 2},
	}, rxn.Reaction.Participants)
}

func TestParseEntry_ArrowForm(t *testing.T) {
	e, err := ParseEntry("RXN_B | 2 OXYGEN-MOLECULE_c + GLC_c <-> CO2_c")
	require.NoError(t, err)
	assert.Equal(t, "RXN_B", e.Reaction.Name, "name falls back to the identifier")
	assert.Equal(t, models.DirectionReversible, e.Reaction.Direction)
	assert.Equal(t, []models.Participant{
		{MetaboliteID: "OXYGEN-MOLECULE_c", Coefficient: -2},
		{MetaboliteID: "GLC_c", Coefficient: -1},
		{MetaboliteID: "CO2_c", Coefficient: 1},
	}, e.Reaction.Participants)
}

func TestParseEntry_Malformed(t *testing.T) {
	for _, line := range []string{
		"a, b, c",
		"MET_A, name, c, C6, one",
		"MET_A, name, , C6, 0",
		"RXN | MET_A_c",
		"RXN | MET_A_c:x",
		"RXN | ",
		"RXN, a, b | MET_A_c:1",
		"RXN | a:1 | b:1",
		"RXN | x A_c --> B_c",
		"RXN | MET_A_c:NaN, MET_B_c:1",
		"RXN | MET_A_c:Inf, MET_B_c:1",
		"RXN | MET_A_c:-inf, MET_B_c:1",
		"RXN | NaN A_c --> B_c",
		"MET_A, name, c, C6, Inf",
	} {
		_, err := ParseEntry(line)
		var pe *ParseError
		require.True(t, errors.As(err, &pe), "line %q", line)
		assert.Equal(t, FormatCustom, pe.Format, "line %q", line)
	}
}

func TestParseEntries_FileAndInlineAgree(t *testing.T) {
	text := `# custom entities
MET_A, Metabolite A, c, C6H12O6, 0

RXN_A, Reaction A | MET_A_c:-1, MET_B_c:1
C00002, c
`
	entries, err := ParseEntries(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, EntryCustomMetabolite, entries[0].Kind)
	assert.Equal(t, EntryCustomReaction, entries[1].Kind)
	assert.Equal(t, EntryDatabaseRef, entries[2].Kind)

	inline, err := ParseEntry("RXN_A, Reaction A | MET_A_c:-1, MET_B_c:1")
	require.NoError(t, err)
	assert.Equal(t, inline, entries[1])
}

func TestParseEntries_StopsAtFirstError(t *testing.T) {
	_, err := ParseEntries(strings.NewReader("C00002, c\na, b, c\n"))
	require.Error(t, err)
}

func TestParseError_TruncatesOnRuneBoundary(t *testing.T) {
	frag := strings.Repeat("a", maxFragment-1) + "αβγ"
	msg := (&ParseError{Format: FormatCustom, Fragment: frag, Msg: "bad"}).Error()
	assert.True(t, utf8.ValidString(msg), "message %q", msg)
	assert.Contains(t, msg, strings.Repeat("a", maxFragment-1)+"α...")
	assert.NotContains(t, msg, "β")
}
