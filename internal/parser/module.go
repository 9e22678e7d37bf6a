package parser

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/pathcurate/internal/models"
)

// ParseModuleDefinition reads a KEGG module DEFINITION such as
// "(K11204+K11205,K01919) (K21456,K01920)" into ordered steps.
//
// Steps are separated by spaces at the top level. Inside a step, commas
// separate alternatives and "+" or "-" join the subunits of a complex, which
// form a single alternative. Nested groups are flattened into the enclosing
// alternative. A "--" step (no known ortholog) is kept as an empty step so
// that positions still line up with the module's reactions.
func ParseModuleDefinition(def string) ([]models.ModuleStep, error) {
	def = strings.Join(strings.Fields(def), " ")
	if def == "" {
		return nil, parseErr(FormatFlatFile, "", "empty module definition", nil)
	}
	if err := checkParens(def); err != nil {
		return nil, err
	}
	var steps []models.ModuleStep
	for _, raw := range splitTopLevel(def, ' ') {
		if raw == "" {
			continue
		}
		body := stripOuterParens(raw)
		var step models.ModuleStep
		for _, alt := range splitTopLevel(body, ',') {
			ids := orthologIDs(alt)
			if len(ids) > 0 {
				step.Alternatives = append(step.Alternatives, ids)
			}
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// AssociateReactions pairs steps with reactions by position.
func AssociateReactions(steps []models.ModuleStep, reactions []string) ([]models.ModuleStep, error) {
	if len(steps) != len(reactions) {
		return nil, fmt.Errorf("module has %d steps but %d reactions", len(steps), len(reactions))
	}
	out := make([]models.ModuleStep, len(steps))
	for i := range steps {
		out[i] = models.ModuleStep{Alternatives: steps[i].Alternatives, Reaction: reactions[i]}
	}
	return out, nil
}

func checkParens(def string) error {
	depth := 0
	for i, ch := range def {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return parseErr(FormatFlatFile, def[:i+1], "unbalanced parentheses in module definition", nil)
			}
		}
	}
	if depth != 0 {
		return parseErr(FormatFlatFile, def, "unbalanced parentheses in module definition", nil)
	}
	return nil
}

// splitTopLevel splits s on sep where sep is not inside parentheses.
func splitTopLevel(s string, sep rune) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i, ch := range s {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

// stripOuterParens removes one pair of parentheses wrapping the whole string.
func stripOuterParens(s string) string {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return s
	}
	depth := 0
	for i, ch := range s {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return s
			}
		}
	}
	return s[1 : len(s)-1]
}

// orthologIDs extracts identifiers from an alternative, ignoring operators.
func orthologIDs(alt string) []string {
	fields := strings.FieldsFunc(alt, func(r rune) bool {
		return r == '+' || r == '-' || r == '(' || r == ')' || r == ',' || r == ' '
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
