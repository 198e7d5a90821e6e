package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/soundprediction/ontoreason/pkg/hierarchy"
)

const summaryPrompt = `You summarize clusters of ontology concepts.
Reply with a JSON object {"summary": "<one sentence naming what the concepts have in common>"}.`

var thinkTags = regexp.MustCompile(`(?s)<think>.*?</think>`)

// SummarizerOptions configures an LLMSummarizer.
type SummarizerOptions struct {
	// MaxLabels caps the labels sent per cluster. Zero means 50.
	MaxLabels int
	// Fallback answers when the model fails. Nil means the error is returned.
	Fallback hierarchy.Summarizer
	Logger   *slog.Logger
}

// LLMSummarizer asks a chat model for a one-sentence cluster summary.
type LLMSummarizer struct {
	client Client
	opts   SummarizerOptions
	logger *slog.Logger
}

var _ hierarchy.Summarizer = (*LLMSummarizer)(nil)

// NewLLMSummarizer wraps client as a hierarchy.Summarizer.
func NewLLMSummarizer(client Client, opts SummarizerOptions) *LLMSummarizer {
	if opts.MaxLabels <= 0 {
		opts.MaxLabels = 50
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMSummarizer{client: client, opts: opts, logger: logger.With("component", "nlp.summarizer")}
}

// Summarize implements hierarchy.Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, labels []string) (string, error) {
	summary, err := s.ask(ctx, labels)
	if err == nil {
		return summary, nil
	}
	if s.opts.Fallback == nil {
		return "", err
	}
	s.logger.Warn("LLM summary failed, using fallback", "labels", len(labels), "error", err)
	return s.opts.Fallback.Summarize(ctx, labels)
}

func (s *LLMSummarizer) ask(ctx context.Context, labels []string) (string, error) {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	if len(sorted) > s.opts.MaxLabels {
		sorted = sorted[:s.opts.MaxLabels]
	}

	resp, err := s.client.ChatJSON(ctx, []Message{
		NewSystemMessage(summaryPrompt),
		NewUserMessage("Concepts:\n- " + strings.Join(sorted, "\n- ")),
	})
	if err != nil {
		return "", fmt.Errorf("failed to summarize cluster: %w", err)
	}
	return ParseSummary(resp.Content)
}

// ParseSummary extracts the summary from a model reply. Malformed JSON is
// repaired first; a reply without a summary field is used verbatim.
func ParseSummary(content string) (string, error) {
	content = strings.TrimSpace(thinkTags.ReplaceAllString(content, ""))
	if content == "" {
		return "", ErrEmptyResponse
	}

	var out struct {
		Summary string `json:"summary"`
	}
	repaired, err := jsonrepair.JSONRepair(content)
	if err == nil && json.Unmarshal([]byte(repaired), &out) == nil && strings.TrimSpace(out.Summary) != "" {
		return strings.TrimSpace(out.Summary), nil
	}
	return content, nil
}
