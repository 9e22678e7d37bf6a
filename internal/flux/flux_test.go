package flux

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

func addReaction(t *testing.T, m *models.Model, id string, lb, ub float64, stoich map[string]float64, order ...string) {
	t.Helper()
	r := &models.Reaction{ID: id, LowerBound: lb, UpperBound: ub}
	for _, met := range order {
		if _, ok := m.Metabolite(met); !ok {
			require.NoError(t, m.AddMetabolite(&models.Metabolite{ID: met, Compartment: "c"}))
		}
		r.Stoichiometry = append(r.Stoichiometry, models.Participant{MetaboliteID: met, Coefficient: stoich[met]})
	}
	require.NoError(t, m.AddReaction(r))
}

// chain builds EX_A (uptake up to 10) -> R1: A -> B -> DM_B.
func chain(t *testing.T) *models.Model {
	t.Helper()
	m := models.NewModel("chain", "chain")
	addReaction(t, m, "EX_A", -10, 1000, map[string]float64{"A": -1}, "A")
	addReaction(t, m, "R1", 0, 1000, map[string]float64{"A": -1, "B": 1}, "A", "B")
	addReaction(t, m, "DM_B", 0, 1000, map[string]float64{"B": -1}, "B")
	m.Objective = models.Objective{ReactionID: "DM_B", Maximize: true}
	return m
}

func TestTopology_DeadEndBlocksChain(t *testing.T) {
	m := chain(t)
	addReaction(t, m, "R2", 0, 1000, map[string]float64{"B": -1, "C": 1}, "B", "C")
	addReaction(t, m, "R3", 0, 1000, map[string]float64{"C": -1, "D": 1}, "C", "D")

	topo := &Topology{}
	blocked := topo.Blocked(m)
	assert.True(t, blocked["R2"], "C is only reachable through a dead end")
	assert.True(t, blocked["R3"])
	assert.False(t, blocked["R1"])
	assert.False(t, blocked["DM_B"])

	ok, err := topo.CanCarryFlux(context.Background(), m, "R1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTopology_DirectionMatters(t *testing.T) {
	m := models.NewModel("m", "m")
	// Both reactions consume X; nothing produces it.
	addReaction(t, m, "R1", 0, 1000, map[string]float64{"X": -1, "Y": 1}, "X", "Y")
	addReaction(t, m, "R2", 0, 1000, map[string]float64{"X": -1, "Z": 1}, "X", "Z")
	blocked := (&Topology{}).Blocked(m)
	assert.True(t, blocked["R1"])
	assert.True(t, blocked["R2"])

	// Making R2 reversible turns it into a producer of X, but Y and Z are
	// still dead ends.
	r2, _ := m.Reaction("R2")
	r2.LowerBound = -1000
	blocked = (&Topology{}).Blocked(m)
	assert.True(t, blocked["R1"])
}

func TestTopology_SinkUnblocks(t *testing.T) {
	m := chain(t)
	addReaction(t, m, "R2", 0, 1000, map[string]float64{"B": -1, "C": 1}, "B", "C")
	ok, err := (&Topology{}).CanCarryFlux(context.Background(), m, "R2")
	require.NoError(t, err)
	assert.False(t, ok)

	addReaction(t, m, "SK_C", -1000, 1000, map[string]float64{"C": -1}, "C")
	ok, err = (&Topology{}).CanCarryFlux(context.Background(), m, "R2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTopology_Tolerance(t *testing.T) {
	m := chain(t)
	r1, _ := m.Reaction("R1")
	r1.UpperBound = 1e-9

	assert.True(t, (&Topology{}).Blocked(m)["R1"], "bounds below the default tolerance are closed")
	assert.False(t, (&Topology{Tolerance: 1e-12}).Blocked(m)["R1"])

	// A coefficient within tolerance does not make R2 touch the dead end C.
	m = chain(t)
	addReaction(t, m, "R2", 0, 1000, map[string]float64{"B": -1, "E": 1, "C": 1e-9}, "B", "E", "C")
	addReaction(t, m, "DM_E", 0, 1000, map[string]float64{"E": -1}, "E")
	assert.False(t, (&Topology{Tolerance: 1e-6}).Blocked(m)["R2"])
	assert.True(t, (&Topology{Tolerance: 1e-12}).Blocked(m)["R2"])
}

func TestTopology_UnknownReaction(t *testing.T) {
	_, err := (&Topology{}).CanCarryFlux(context.Background(), chain(t), "NOPE")
	assert.True(t, errors.Is(err, ErrUnknownReaction))
}

func TestTopology_Optimize(t *testing.T) {
	sol, err := (&Topology{}).Optimize(context.Background(), chain(t))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, sol.ObjectiveValue)

	m := chain(t)
	m.Objective = models.Objective{}
	_, err = (&Topology{}).Optimize(context.Background(), m)
	assert.True(t, errors.Is(err, ErrNoObjective))
}

func TestLP_OptimizeChain(t *testing.T) {
	sol, err := (&LP{}).Optimize(context.Background(), chain(t))
	require.NoError(t, err)
	assert.InDelta(t, 10.0, sol.ObjectiveValue, 1e-6)
	assert.InDelta(t, 10.0, sol.Fluxes["R1"], 1e-6)
	assert.InDelta(t, -10.0, sol.Fluxes["EX_A"], 1e-6)
}

func TestLP_CanCarryFlux(t *testing.T) {
	m := chain(t)
	addReaction(t, m, "R2", 0, 1000, map[string]float64{"B": -1, "C": 1}, "B", "C")
	ctx := context.Background()
	lpc := &LP{}

	ok, err := lpc.CanCarryFlux(ctx, m, "R1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lpc.CanCarryFlux(ctx, m, "R2")
	require.NoError(t, err)
	assert.False(t, ok, "C accumulates without a consumer")
}

func TestNew(t *testing.T) {
	e, err := New("lp", 0)
	require.NoError(t, err)
	assert.IsType(t, &LP{}, e)

	e, err = New("", 0)
	require.NoError(t, err)
	assert.IsType(t, &Topology{}, e)

	_, err = New("fva", 0)
	assert.Error(t, err)
}

func TestBlockedReactions(t *testing.T) {
	m := chain(t)
	addReaction(t, m, "R2", 0, 1000, map[string]float64{"B": -1, "C": 1}, "B", "C")
	ids, err := BlockedReactions(context.Background(), &Topology{}, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"R2"}, ids)
}

func TestIndependentRows(t *testing.T) {
	rows := [][]float64{{1, 1, 0}, {2, 2, 0}, {0, 1, 1}}
	a, b, err := independentRows(rows, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, a, 2)
	assert.Equal(t, []float64{1, 3}, b)

	_, _, err = independentRows(rows, []float64{1, 5, 3})
	assert.True(t, errors.Is(err, ErrInfeasible))
}
