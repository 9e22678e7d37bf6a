// Package tokenizer estimates prompt sizes for language-model calls.
package tokenizer

import (
	"strings"
)

// EstimateTokens provides a rough token count estimate: the mean of a
// word-based (1.3 per word) and a character-based (4 chars per token)
// guess. Chemical identifiers and formulas tokenize poorly, so the
// character term dominates for them.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	chars := len(text)
	wordEstimate := int(float64(words) * 1.3)
	charEstimate := chars / 4
	return (wordEstimate + charEstimate) / 2
}

// FitLines joins lines with newlines until the budget is spent. It returns
// the joined text and how many lines fit; lines are never split.
func FitLines(lines []string, budget int) (string, int) {
	if budget <= 0 || len(lines) == 0 {
		return "", 0
	}
	var b strings.Builder
	used, n := 0, 0
	for _, line := range lines {
		cost := EstimateTokens(line) + 1
		if used+cost > budget {
			break
		}
		if n > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		used += cost
		n++
	}
	return b.String(), n
}
