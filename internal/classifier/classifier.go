package classifier

import (
	"log/slog"
	"strings"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

// Kind is the role a reaction plays in a model.
type Kind string

const (
	KindRegular   Kind = "regular"
	KindExchange  Kind = "exchange"
	KindSink      Kind = "sink"
	KindDemand    Kind = "demand"
	KindTransport Kind = "transport"
	KindBiomass   Kind = "biomass"
)

// Classifier determines the kind of a reaction.
type Classifier interface {
	Classify(r *models.Reaction, m *models.Model) Kind
}

// HeuristicClassifier uses identifier prefixes and participant structure.
type HeuristicClassifier struct {
	logger *slog.Logger
	// Extracellular is the compartment exchanges open into.
	Extracellular string
}

// NewClassifier creates a new heuristic-based classifier.
func NewClassifier(logger *slog.Logger) *HeuristicClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeuristicClassifier{logger: logger, Extracellular: "e"}
}

// prefixes map conventional identifier prefixes to kinds.
var prefixes = []struct {
	prefix string
	kind   Kind
}{
	{"SK_", KindSink},
	{"DM_", KindDemand},
	{"EX_", KindExchange},
}

// biomassPatterns match identifiers and names of growth reactions.
var biomassPatterns = []string{"biomass", "growth"}

// Classify determines the reaction kind. Prefixes win; otherwise a single
// participant makes a boundary reaction, and participants in more than one
// compartment make a transport.
func (c *HeuristicClassifier) Classify(r *models.Reaction, m *models.Model) Kind {
	kind := c.classify(r, m)
	c.logger.Debug("classified reaction", "reaction", r.ID, "kind", kind)
	return kind
}

func (c *HeuristicClassifier) classify(r *models.Reaction, m *models.Model) Kind {
	for _, p := range prefixes {
		if strings.HasPrefix(r.ID, p.prefix) {
			return p.kind
		}
	}

	lowerID, lowerName := strings.ToLower(r.ID), strings.ToLower(r.Name)
	for _, p := range biomassPatterns {
		if strings.Contains(lowerID, p) || strings.Contains(lowerName, p) {
			return KindBiomass
		}
	}

	ids := r.MetaboliteIDs()
	if len(ids) == 1 {
		switch {
		case c.compartment(ids[0], m) == c.Extracellular:
			return KindExchange
		case r.IsReversible():
			return KindSink
		default:
			return KindDemand
		}
	}

	comps := make(map[string]bool, 2)
	for _, id := range ids {
		if comp := c.compartment(id, m); comp != "" {
			comps[comp] = true
		}
	}
	if len(comps) > 1 {
		return KindTransport
	}
	return KindRegular
}

func (c *HeuristicClassifier) compartment(metaboliteID string, m *models.Model) string {
	if m != nil {
		if met, ok := m.Metabolite(metaboliteID); ok && met.Compartment != "" {
			return met.Compartment
		}
	}
	return models.CompartmentOf(metaboliteID)
}

// IsBoundary reports whether the kind is a single-metabolite reaction.
func IsBoundary(k Kind) bool {
	return k == KindExchange || k == KindSink || k == KindDemand
}
