package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

// The pathway references its reactions and compounds before they are
// declared. ACET appears first as a partial declaration carrying a dblink
// and later in full.
const biocycPathway = `<?xml version="1.0" encoding="UTF-8"?>
<ptools-xml ptools-version="27.0" xml:base="http://BioCyc.org/getxml?META:ACETOACETATE-DEG-PWY&amp;detail=full">
<Pathway ID="META:ACETOACETATE-DEG-PWY" orgid="META" frameid="ACETOACETATE-DEG-PWY" detail="full">
  <common-name datatype="string">acetoacetate degradation (to acetyl CoA)</common-name>
  <reaction-list>
    <Reaction resource="#META:ACETOACETYL-COA-TRANSFER-RXN" orgid="META" frameid="ACETOACETYL-COA-TRANSFER-RXN"/>
    <Reaction resource="#META:ACETYL-COA-ACETYLTRANSFER-RXN"/>
  </reaction-list>
  <reaction-ordering>
    <Reaction resource="#META:ACETYL-COA-ACETYLTRANSFER-RXN"/>
    <predecessor-reactions>
      <Reaction resource="#META:ACETOACETYL-COA-TRANSFER-RXN" orgid="META" frameid="ACETOACETYL-COA-TRANSFER-RXN"/>
    </predecessor-reactions>
  </reaction-ordering>
  <reaction-layout>
    <Reaction resource="#META:ACETOACETYL-COA-TRANSFER-RXN" orgid="META" frameid="ACETOACETYL-COA-TRANSFER-RXN"/>
    <left-primaries><Compound resource="#META:3-KETOBUTYRATE"/></left-primaries>
    <direction>L2R</direction>
    <right-primaries><Compound resource="#META:ACETOACETYL-COA"/></right-primaries>
  </reaction-layout>
  <reaction-layout>
    <Reaction resource="#META:ACETYL-COA-ACETYLTRANSFER-RXN"/>
    <left-primaries><Compound resource="#META:ACETOACETYL-COA"/></left-primaries>
    <direction>L2R</direction>
    <right-primaries><Compound resource="#META:ACETYL-COA"/></right-primaries>
  </reaction-layout>
  <taxonomic-range>TAX-2</taxonomic-range>
</Pathway>
<Compound ID="META:ACET" orgid="META" frameid="ACET">
  <dblink><dblink-db>BIGG</dblink-db><dblink-oid>ac</dblink-oid></dblink>
</Compound>
<Reaction ID="META:ACETOACETYL-COA-TRANSFER-RXN" orgid="META" frameid="ACETOACETYL-COA-TRANSFER-RXN" detail="full">
  <left><Compound resource="#META:3-KETOBUTYRATE"/></left>
  <left><Compound resource="#META:ACETYL-COA"/></left>
  <right><Compound resource="#META:ACETOACETYL-COA"/></right>
  <right><Compound resource="#META:ACET"/></right>
  <reaction-direction>REVERSIBLE</reaction-direction>
  <ec-number>EC-2.8.3.8</ec-number>
</Reaction>
<Reaction ID="META:ACETYL-COA-ACETYLTRANSFER-RXN" orgid="META" frameid="ACETYL-COA-ACETYLTRANSFER-RXN" detail="full">
  <left><coefficient>2</coefficient><Compound resource="#META:ACETYL-COA"/></left>
  <right><Compound resource="#META:ACETOACETYL-COA"/></right>
  <right><Compound resource="#META:CO-A"/></right>
</Reaction>
<Compound ID="META:ACET" orgid="META" frameid="ACET" detail="full">
  <cml><molecule title="acetate" formalCharge="-1"><formula concise="C 2 H 3 O 2"/></molecule></cml>
</Compound>
<Compound ID="META:ACETYL-COA" orgid="META" frameid="ACETYL-COA" detail="full">
  <cml><molecule title="acetyl-CoA" formalCharge="-4"><formula concise="C 23 H 34 N 7 O 17 P 3 S 1"/></molecule></cml>
</Compound>
</ptools-xml>`

func recordByID(t *testing.T, recs []models.Record, id string) models.Record {
	t.Helper()
	for _, r := range recs {
		if r.ID == id {
			return r
		}
	}
	require.FailNow(t, "record not found", id)
	return models.Record{}
}

func TestParseXML_Pathway(t *testing.T) {
	recs, err := ParseXML([]byte(biocycPathway), "")
	require.NoError(t, err)
	require.Len(t, recs, 5)

	pw := recordByID(t, recs, "ACETOACETATE-DEG-PWY")
	assert.Equal(t, models.RecordPathway, pw.Kind)
	assert.Equal(t, DatabaseMetaCyc, pw.Database)
	assert.Equal(t, "acetoacetate degradation (to acetyl CoA)", pw.Name())
	assert.Equal(t, []string{"ACETOACETYL-COA-TRANSFER-RXN", "ACETYL-COA-ACETYLTRANSFER-RXN"}, pw.Values(models.FieldMembers))
	assert.Equal(t, []models.Edge{{From: "ACETOACETYL-COA-TRANSFER-RXN", To: "ACETYL-COA-ACETYLTRANSFER-RXN"}}, pw.Edges)
	assert.Equal(t, []string{"TAX-2"}, pw.Extra["taxonomic-range"])

	lay, ok := pw.Layout["ACETYL-COA-ACETYLTRANSFER-RXN"]
	require.True(t, ok, "layout is correlated through the resource pointer")
	assert.Equal(t, models.DirectionLeftToRight, lay.Direction)
	assert.Equal(t, []string{"ACETOACETYL-COA"}, lay.LeftPrimaries)
	assert.Equal(t, []string{"ACETYL-COA"}, lay.RightPrimaries)
}

func TestParseXML_Reactions(t *testing.T) {
	recs, err := ParseXML([]byte(biocycPathway), "")
	require.NoError(t, err)

	transfer := recordByID(t, recs, "ACETOACETYL-COA-TRANSFER-RXN")
	assert.Equal(t, []string{"1 3-KETOBUTYRATE", "1 ACETYL-COA"}, transfer.Values(models.FieldLeft))
	assert.Equal(t, []string{"1 ACETOACETYL-COA", "1 ACET"}, transfer.Values(models.FieldRight))
	assert.Equal(t, models.DirectionReversible, transfer.Direction())
	assert.Equal(t, []string{"2.8.3.8"}, transfer.Values(models.FieldEnzyme))

	thiolase := recordByID(t, recs, "ACETYL-COA-ACETYLTRANSFER-RXN")
	assert.Equal(t, []string{"2 ACETYL-COA"}, thiolase.Values(models.FieldLeft))
	assert.Equal(t, models.DirectionUnknown, thiolase.Direction(), "missing direction stays unknown")
}

func TestParseXML_PartialAndFullDeclarationsMerge(t *testing.T) {
	recs, err := ParseXML([]byte(biocycPathway), "")
	require.NoError(t, err)

	acet := recordByID(t, recs, "ACET")
	assert.Equal(t, "acetate", acet.Name())
	assert.Equal(t, "C2H3O2", acet.First(models.FieldFormula))
	assert.Equal(t, "-1", acet.First(models.FieldCharge))
	assert.True(t, acet.XRefs().Has("BIGG", "ac"), "dblink from the partial declaration survives")
}

func TestParseXML_DatabaseOverride(t *testing.T) {
	recs, err := ParseXML([]byte(biocycPathway), "ARA")
	require.NoError(t, err)
	for _, r := range recs {
		assert.Equal(t, "ARA", r.Database)
	}
}

func TestParseXML_Errors(t *testing.T) {
	tests := map[string]string{
		"malformed":       `<ptools-xml><Compound frameid="A">`,
		"no entities":     `<ptools-xml><metadata/></ptools-xml>`,
		"bad coefficient": `<ptools-xml><Reaction frameid="R" detail="full"><left><coefficient>n</coefficient><Compound frameid="A"/></left></Reaction></ptools-xml>`,
		"nan coefficient": `<ptools-xml><Reaction frameid="R" detail="full"><left><coefficient>NaN</coefficient><Compound frameid="A"/></left><right><Compound frameid="B"/></right></Reaction></ptools-xml>`,
		"inf coefficient": `<ptools-xml><Reaction frameid="R" detail="full"><left><coefficient>Inf</coefficient><Compound frameid="A"/></left><right><Compound frameid="B"/></right></Reaction></ptools-xml>`,
		"no participants": `<ptools-xml><Reaction frameid="R" detail="full"><common-name>empty</common-name></Reaction></ptools-xml>`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseXML([]byte(raw), "")
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, FormatXML, pe.Format)
		})
	}
}

func TestParseBioCycGenes(t *testing.T) {
	raw := `<ptools-xml><Gene ID="ECOLI:EG10011" orgid="ECOLI" frameid="EG10011" detail="full"/>` +
		`<Gene ID="ECOLI:EG10012" orgid="ECOLI" frameid="EG10012"/><Gene frameid="EG10011"/></ptools-xml>`
	genes, err := ParseBioCycGenes([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{"EG10011", "EG10012"}, genes)
}
