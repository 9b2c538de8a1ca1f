package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/classeval/internal/evaluation"
	"github.com/abhisek/classeval/internal/llm"
)

// Export formats.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Export writes r to w in the named format.
func Export(w io.Writer, r *Report, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		return ExportJSON(w, r)
	case FormatMarkdown, "md":
		return ExportMarkdown(w, r)
	case FormatText, "":
		// Fprint drops colors the destination cannot show, files included.
		_, err := lipgloss.Fprint(w, Render(r, 0))
		return err
	}
	return fmt.Errorf("unknown export format %q (want json, markdown or text)", format)
}

// ExportJSON writes r as indented JSON after checking it against Schema.
func ExportJSON(w io.Writer, r *Report) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := llm.ValidateJSON(Schema, buf.Bytes()); err != nil {
		return fmt.Errorf("report %s fails the export schema: %w", r.ID, err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ExportMarkdown writes r as a Markdown document suitable for sharing.
func ExportMarkdown(w io.Writer, r *Report) error {
	var sb strings.Builder

	sb.WriteString("# Class Evaluation Report\n\n")
	fmt.Fprintf(&sb, "- Generated: %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04"))
	if r.Model != "" {
		fmt.Fprintf(&sb, "- Model: %s (%s)\n", r.Model, r.Provider)
	}
	fmt.Fprintf(&sb, "- Active students: %d\n", r.Data.ActiveStudents)
	fmt.Fprintf(&sb, "- Data match rate: %d%%\n", r.MatchRate)
	fmt.Fprintf(&sb, "- Evaluations found: %d of %d (%d%%)\n",
		r.Validation.Found, r.Validation.Expected, r.Validation.MatchRate)

	sb.WriteString("\n## Class-Wide Analysis\n\n")
	if r.Overall == "" {
		sb.WriteString("_No class-wide analysis was generated._\n")
	} else {
		sb.WriteString(r.Overall)
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Students\n")
	for _, e := range r.Evaluations {
		fmt.Fprintf(&sb, "\n### %s\n\n", e.Name)
		if e.Source == evaluation.SourceFallback {
			sb.WriteString("_Recovered without markers._\n\n")
		}
		sb.WriteString(e.Text)
		sb.WriteString("\n")
	}

	if len(r.Validation.Missing) > 0 {
		sb.WriteString("\n## Missing Evaluations\n\n")
		for _, name := range r.Validation.Missing {
			fmt.Fprintf(&sb, "- %s\n", name)
		}
	}

	if len(r.Inactive) > 0 {
		sb.WriteString("\n## Inactive Students\n\n")
		for _, st := range r.Inactive {
			fmt.Fprintf(&sb, "- %s (%s)\n", st.Name, st.ID)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
