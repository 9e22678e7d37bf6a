package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

func TestParseModuleDefinition_GlutathioneModule(t *testing.T) {
	steps, err := ParseModuleDefinition("(K11204+K11205,K01919) (K21456,K01920)")
	require.NoError(t, err)
	require.Len(t, steps, 2)

	steps, err = AssociateReactions(steps, []string{"R00894", "R00497"})
	require.NoError(t, err)

	assert.Equal(t, []string{"K11204", "K11205", "K01919"}, steps[0].Orthologs())
	assert.Equal(t, "R00894", steps[0].Reaction)
	assert.Equal(t, []string{"K21456", "K01920"}, steps[1].Orthologs())
	assert.Equal(t, "R00497", steps[1].Reaction)
}

func TestParseModuleDefinition_Shapes(t *testing.T) {
	tests := []struct {
		name string
		def  string
		want [][][]string
	}{
		{"single ids", "K00001 K00002", [][][]string{{{"K00001"}}, {{"K00002"}}}},
		{"nested group", "((K00001,K00002)+K00003)", [][][]string{{{"K00001", "K00002", "K00003"}}}},
		{"missing ortholog kept", "K00001 -- K00002", [][][]string{{{"K00001"}}, nil, {{"K00002"}}}},
		{"optional subunit", "K00001+K00002-K00003", [][][]string{{{"K00001", "K00002", "K00003"}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			steps, err := ParseModuleDefinition(tc.def)
			require.NoError(t, err)
			got := make([][][]string, len(steps))
			for i, s := range steps {
				got[i] = s.Alternatives
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseModuleDefinition_Errors(t *testing.T) {
	for _, def := range []string{"", "(K00001,K00002", "K00001)"} {
		_, err := ParseModuleDefinition(def)
		var pe *ParseError
		assert.True(t, errors.As(err, &pe), "definition %q", def)
	}
}

func TestAssociateReactions_LengthMismatch(t *testing.T) {
	_, err := AssociateReactions([]models.ModuleStep{{}}, []string{"R1", "R2"})
	assert.Error(t, err)
}
