// Package advisor asks Claude to review the outcome of a merge and suggest
// follow-up curation. It is optional: callers treat its errors as warnings.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ajitpratap0/pathcurate/internal/merge"
	"github.com/ajitpratap0/pathcurate/internal/models"
	"github.com/ajitpratap0/pathcurate/pkg/tokenizer"
	"github.com/ajitpratap0/pathcurate/pkg/xmlutil"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5-20251001"

// contextBudget bounds the reaction listing sent with a review.
const contextBudget = 3000

// Note is one curation suggestion.
type Note struct {
	Subject  string `json:"subject"`
	Severity string `json:"severity"`
	Text     string `json:"text"`
}

// Advisor reviews a merge summary.
type Advisor interface {
	Review(ctx context.Context, m *models.Model, s *merge.Summary) ([]Note, error)
}

// completeFunc sends one prompt and returns the text reply.
type completeFunc func(ctx context.Context, system, prompt string) (string, error)

// ClaudeAdvisor uses Claude to review merges.
type ClaudeAdvisor struct {
	complete completeFunc
	logger   *slog.Logger
}

// NewClaudeAdvisor creates a Claude-backed advisor.
func NewClaudeAdvisor(apiKey, model string, logger *slog.Logger) *ClaudeAdvisor {
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	complete := func(ctx context.Context, system, prompt string) (string, error) {
		resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: 1024,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
			System: []anthropic.TextBlockParam{{Text: system}},
		})
		if err != nil {
			return "", fmt.Errorf("calling Claude API: %w", err)
		}
		for _, block := range resp.Content {
			if block.Type == "text" {
				return block.Text, nil
			}
		}
		return "", fmt.Errorf("empty response from Claude")
	}
	return newAdvisor(complete, logger)
}

func newAdvisor(complete completeFunc, logger *slog.Logger) *ClaudeAdvisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaudeAdvisor{complete: complete, logger: logger}
}

const systemPrompt = "You are a metabolic model curator. Output only valid JSON."

// reviewPromptTemplate embeds model content in XML tags so identifiers and
// names taken from remote databases cannot be read as instructions.
const reviewPromptTemplate = `Review the result of merging new reactions into a genome-scale metabolic model.
Point out likely curation problems: unbalanced reactions, suspicious sinks or demands, wrong compartments, duplicated metabolites under different identifiers.

<merge_summary>
%s
</merge_summary>

<reactions>
%s
</reactions>

Return a JSON array of objects with "subject" (a reaction or metabolite id), "severity" ("info", "warning" or "error") and "text". Return [] if nothing needs attention.`

// Review implements Advisor.
func (a *ClaudeAdvisor) Review(ctx context.Context, m *models.Model, s *merge.Summary) ([]Note, error) {
	prompt := fmt.Sprintf(reviewPromptTemplate,
		xmlutil.Escape(summaryText(s)),
		xmlutil.Escape(a.reactionContext(m, s)))

	text, err := a.complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("claude review response", "response", text)

	notes, err := parseNotes(text)
	if err != nil {
		return nil, err
	}
	a.logger.Info("merge reviewed", "batch", s.BatchID, "notes", len(notes))
	return notes, nil
}

func summaryText(s *merge.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "added reactions: %s\n", strings.Join(s.AddedReactions, ", "))
	fmt.Fprintf(&b, "added metabolites: %s\n", strings.Join(s.AddedMetabolites, ", "))
	fmt.Fprintf(&b, "skipped reactions: %s\n", strings.Join(s.SkippedReactions, ", "))
	fmt.Fprintf(&b, "added sinks: %s\n", strings.Join(s.AddedSinks, ", "))
	for _, w := range s.Warnings {
		fmt.Fprintf(&b, "warning %s: %s\n", w.Kind, w.Message)
	}
	return b.String()
}

// reactionContext lists the added reactions and sinks with their
// equations, as many as fit the budget.
func (a *ClaudeAdvisor) reactionContext(m *models.Model, s *merge.Summary) string {
	var lines []string
	for _, id := range append(append([]string(nil), s.AddedReactions...), s.AddedSinks...) {
		r, ok := m.Reaction(id)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s [%g, %g]", r.ID, r.Equation(), r.LowerBound, r.UpperBound))
	}
	text, n := tokenizer.FitLines(lines, contextBudget)
	if n < len(lines) {
		a.logger.Debug("reaction context truncated", "kept", n, "total", len(lines))
	}
	return text
}

// parseNotes accepts a bare array, an object wrapping it under "notes", or
// either inside a Markdown code fence.
func parseNotes(text string) ([]Note, error) {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		body := text[i+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		text = strings.TrimSpace(body)
	}
	var notes []Note
	if err := json.Unmarshal([]byte(text), &notes); err != nil {
		var wrapped struct {
			Notes []Note `json:"notes"`
		}
		if err2 := json.Unmarshal([]byte(text), &wrapped); err2 != nil {
			return nil, fmt.Errorf("parsing review response: %w (raw: %s)", err, text)
		}
		notes = wrapped.Notes
	}
	out := notes[:0]
	for _, n := range notes {
		if strings.TrimSpace(n.Text) == "" {
			continue
		}
		if n.Severity == "" {
			n.Severity = "info"
		}
		out = append(out, n)
	}
	return out, nil
}
