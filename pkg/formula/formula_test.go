package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	c, err := Parse("C6H12O6")
	require.NoError(t, err)
	assert.Equal(t, Composition{"C": 6, "H": 12, "O": 6}, c)

	c, err = Parse("Ca(OH)2")
	require.NoError(t, err)
	assert.Equal(t, Composition{"Ca": 1, "O": 2, "H": 2}, c)

	c, err = Parse("(C6H10O5)n")
	require.NoError(t, err)
	assert.Equal(t, Composition{"C": 6, "H": 10, "O": 5}, c)

	c, err = Parse("")
	require.NoError(t, err)
	assert.Empty(t, c)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("C6(H12")
	assert.Error(t, err)

	_, err = Parse("c6h12")
	assert.Error(t, err)
}

func TestClean(t *testing.T) {
	assert.Equal(t, "C2H3O2", Clean("C 2 H 3 O 2"))
	assert.Equal(t, "C6H10O5", Clean("(C6H10O5)n"))
}

func TestComposition_Balance(t *testing.T) {
	// glucose + ATP -> G6P + ADP (uncharged bookkeeping only)
	sum := Composition{}
	for _, term := range []struct {
		f string
		k float64
	}{
		{"C6H12O6", -1}, {"C10H16N5O13P3", -1},
		{"C6H13O9P", 1}, {"C10H15N5O10P2", 1},
	} {
		c, err := Parse(term.f)
		require.NoError(t, err)
		sum.Add(c.Scale(term.k))
	}
	assert.Empty(t, sum.Nonzero())
}

func TestComposition_String(t *testing.T) {
	assert.Equal(t, "C2H3O2", Composition{"O": 2, "C": 2, "H": 3}.String())
	assert.Equal(t, "CH4", Composition{"H": 4, "C": 1}.String())
}
