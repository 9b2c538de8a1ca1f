package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/classeval/internal/llm"
	"github.com/abhisek/classeval/internal/logger"
)

// PurposeHighlights tags the structured digest request in the event log.
const PurposeHighlights = "class-highlights"

// Highlights is a structured digest of a report.
type Highlights struct {
	Summary   string   `json:"summary"`
	Strengths []string `json:"strengths"`
	Concerns  []string `json:"concerns"`

	// Attention names students who need follow-up. Only names present in
	// the report's evaluations are kept.
	Attention []string `json:"attention"`
}

// Summarize asks p for a schema-validated digest of r.
func Summarize(ctx context.Context, p llm.Provider, r *Report, maxTokens int, log *logger.Logger) (*Highlights, error) {
	log = logger.OrNop(log)
	if r.Overall == "" && len(r.Evaluations) == 0 {
		return nil, errors.New("report has no generated text to summarize")
	}

	req := llm.UserPrompt(highlightsSystem, highlightsPrompt(r), maxTokens, 0)
	req.Schema = HighlightsSchema

	resp, err := p.Generate(llm.WithPurpose(ctx, PurposeHighlights), req)
	if err != nil {
		return nil, err
	}

	var h Highlights
	if err := json.Unmarshal(resp.Content, &h); err != nil {
		return nil, &llm.ErrInvalidResponse{Content: resp.Content, Err: fmt.Errorf("decode highlights: %w", err)}
	}

	known := make(map[string]bool, len(r.Evaluations))
	for _, e := range r.Evaluations {
		known[e.Name] = true
	}
	attention := make([]string, 0, len(h.Attention))
	for _, name := range h.Attention {
		name = strings.TrimSpace(name)
		if !known[name] {
			log.Debug("dropping unknown student from highlights", "name", name)
			continue
		}
		attention = append(attention, name)
	}
	h.Attention = attention
	h.Strengths = nonNil(h.Strengths)
	h.Concerns = nonNil(h.Concerns)

	return &h, nil
}

const highlightsSystem = "You are an experienced teacher reviewing a class evaluation report. " +
	"Answer with JSON only."

func highlightsPrompt(r *Report) string {
	var sb strings.Builder

	sb.WriteString("## Class-Wide Analysis\n\n")
	if r.Overall == "" {
		sb.WriteString("None\n")
	} else {
		sb.WriteString(r.Overall)
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Student Evaluations\n\n")
	for _, e := range r.Evaluations {
		fmt.Fprintf(&sb, "- %s: %s\n", e.Name, strings.Join(strings.Fields(e.Text), " "))
	}
	if len(r.Inactive) > 0 {
		names := make([]string, len(r.Inactive))
		for i, s := range r.Inactive {
			names[i] = s.Name
		}
		fmt.Fprintf(&sb, "\nInactive students (no records): %s\n", strings.Join(names, ", "))
	}

	sb.WriteString("\n## Instructions\n\n")
	sb.WriteString("Write a one-paragraph summary, the class's main strengths and main concerns, ")
	sb.WriteString("and the names of students who need follow-up. ")
	sb.WriteString("Use student names exactly as written above. Use the language of the evaluations.\n")

	return sb.String()
}
