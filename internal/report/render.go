package report

import (
	"fmt"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/abhisek/classeval/internal/evaluation"
	"github.com/abhisek/classeval/internal/store"
	"github.com/abhisek/classeval/internal/ui/theme"
)

const defaultWidth = 80

// Render formats r for the terminal. width <= 0 uses 80 columns.
func Render(r *Report, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	body := lipgloss.NewStyle().Width(width - 4)

	var sb strings.Builder

	sb.WriteString(theme.Title.Render("Class Evaluation Report"))
	sb.WriteString("\n")
	sb.WriteString(theme.Hint.Render(fmt.Sprintf("%s  %s", shortID(r.ID), r.CreatedAt.Local().Format("2006-01-02 15:04"))))
	sb.WriteString("\n\n")

	rows := []string{
		field("Model", strings.TrimSpace(r.Model+" "+paren(r.Provider))),
		field("Active", fmt.Sprintf("%d students", r.Data.ActiveStudents)),
		field("Inactive", fmt.Sprintf("%d students", len(r.Inactive))),
		field("Data match", theme.Rate(r.MatchRate).Render(fmt.Sprintf("%d%%", r.MatchRate))),
		field("Evaluations", theme.Rate(r.Validation.MatchRate).Render(
			fmt.Sprintf("%d of %d (%d%%)", r.Validation.Found, r.Validation.Expected, r.Validation.MatchRate))),
	}
	if r.Generation.FallbackDiscarded {
		rows = append(rows, field("Fallback", theme.Warn.Render("discarded")))
	}
	sb.WriteString(theme.Card.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	sb.WriteString("\n\n")

	sb.WriteString(theme.Heading.Render("Class-Wide Analysis"))
	sb.WriteString("\n")
	if r.Overall == "" {
		sb.WriteString(theme.Hint.Render("No class-wide analysis was generated."))
	} else {
		sb.WriteString(body.Render(r.Overall))
	}
	sb.WriteString("\n\n")

	sb.WriteString(theme.Heading.Render("Students"))
	sb.WriteString("\n")
	sb.WriteString(theme.Rule.Render(strings.Repeat("─", width)))
	sb.WriteString("\n")
	for _, e := range r.Evaluations {
		name := theme.Title.Render(e.Name)
		if e.Source == evaluation.SourceFallback {
			name += " " + theme.Fallback.Render("(recovered)")
		}
		sb.WriteString(name)
		sb.WriteString("\n")
		sb.WriteString(body.Render(e.Text))
		sb.WriteString("\n\n")
	}

	if len(r.Validation.Missing) > 0 {
		sb.WriteString(theme.Bad.Render("Missing: "))
		sb.WriteString(strings.Join(r.Validation.Missing, ", "))
		sb.WriteString("\n")
	}
	if len(r.Validation.Extra) > 0 {
		sb.WriteString(theme.Warn.Render("Not on roster: "))
		sb.WriteString(strings.Join(r.Validation.Extra, ", "))
		sb.WriteString("\n")
	}
	if len(r.Inactive) > 0 {
		names := make([]string, len(r.Inactive))
		for i, st := range r.Inactive {
			names[i] = st.Name
		}
		sb.WriteString(theme.Hint.Render("Inactive: " + strings.Join(names, ", ")))
		sb.WriteString("\n")
	}

	return sb.String()
}

func field(label, value string) string {
	return theme.Label.Render(label) + value
}

func paren(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RenderList formats cached report summaries as a table, newest first.
func RenderList(recs []store.ReportRecord) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(theme.Rule).
		Headers("ID", "Created", "Model", "Students", "Inactive", "Data", "Found").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Inherit(theme.Heading)
			}
			return s
		})

	for _, rec := range recs {
		t.Row(
			shortID(rec.ID),
			rec.Timestamp.Local().Format("2006-01-02 15:04"),
			rec.Model,
			strconv.Itoa(rec.StudentCount),
			strconv.Itoa(rec.InactiveCount),
			fmt.Sprintf("%d%%", rec.MatchRate),
			fmt.Sprintf("%d%%", rec.ValidationRate),
		)
	}
	return t.Render()
}

// RenderHighlights formats a structured digest for the terminal.
func RenderHighlights(h *Highlights, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	body := lipgloss.NewStyle().Width(width - 4)

	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Class Highlights"))
	sb.WriteString("\n\n")
	sb.WriteString(body.Render(h.Summary))
	sb.WriteString("\n")

	section := func(title string, items []string) {
		sb.WriteString("\n")
		sb.WriteString(theme.Heading.Render(title))
		sb.WriteString("\n")
		if len(items) == 0 {
			sb.WriteString(theme.Hint.Render("None"))
			sb.WriteString("\n")
			return
		}
		for _, it := range items {
			sb.WriteString(body.Render("• " + it))
			sb.WriteString("\n")
		}
	}
	section("Strengths", h.Strengths)
	section("Concerns", h.Concerns)
	section("Needs Follow-up", h.Attention)

	return sb.String()
}
