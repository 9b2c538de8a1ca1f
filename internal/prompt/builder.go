// Package prompt renders merged classroom data into text-generation prompts.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abhisek/classeval/internal/marker"
	"github.com/abhisek/classeval/internal/roster"
)

const systemPrompt = `You are an experienced homeroom teacher writing end-of-term performance evaluations. You base every statement on the classroom activity data you are given. You are specific, fair, and encouraging, and you never invent events that are not supported by the data.`

// Builder renders prompts. It is pure: the same dataset and options always
// produce the same text.
type Builder struct {
	opts Options
}

// NewBuilder creates a Builder with the given options.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts.normalized()}
}

// Options returns the effective options.
func (b *Builder) Options() Options {
	return b.opts
}

// System returns the system prompt shared by every request.
func (b *Builder) System() string {
	return systemPrompt
}

// Build returns the combined prompt: overview, every student, the output
// contract, then the separator and the class-wide analysis request.
func (b *Builder) Build(ds roster.Dataset) string {
	var sb strings.Builder

	sb.WriteString(b.Overview(ds))
	sb.WriteString("\n## Students\n\n")
	for _, a := range ds.Aggregates {
		writeStudent(&sb, a)
	}
	b.writeContract(&sb, len(ds.Aggregates))

	sb.WriteString("\n## Class-Wide Analysis\n\n")
	fmt.Fprintf(&sb, "After the last student evaluation, output the line %s on its own, exactly once, and nothing else on that line.\n", marker.Separator)
	sb.WriteString("Below that line, write the class-wide analysis:\n")
	writeOverallInstructions(&sb, ds)

	return sb.String()
}

// BatchPrompt returns the prompt for one partition of students. index is
// zero-based; the prompt names it one-based.
func (b *Builder) BatchPrompt(ds roster.Dataset, batch []roster.StudentAggregate, index, total int) string {
	var sb strings.Builder

	sb.WriteString(b.Overview(ds))
	fmt.Fprintf(&sb, "\n## Students (batch %d of %d)\n\n", index+1, total)
	fmt.Fprintf(&sb, "Evaluate only the %d students listed below. Other students are handled separately.\n\n", len(batch))
	for _, a := range batch {
		writeStudent(&sb, a)
	}
	b.writeContract(&sb, len(batch))
	sb.WriteString("\nDo not write a class-wide summary in this response.\n")

	return sb.String()
}

// OverallPrompt returns the prompt for the class-wide analysis alone.
func (b *Builder) OverallPrompt(ds roster.Dataset) string {
	var sb strings.Builder

	sb.WriteString(b.Overview(ds))
	sb.WriteString("\n## Student Summary\n\n")
	sb.WriteString("| Name | Points | Records | Correct | Incorrect | Trend | Pattern |\n")
	sb.WriteString("|---|---|---|---|---|---|---|\n")
	for _, a := range ds.Aggregates {
		fmt.Fprintf(&sb, "| %s | %s | %d | %d | %d | %s | %s |\n",
			a.Name, formatPoints(a.TotalPoints), a.ParticipationCount,
			a.CorrectAnswers, a.IncorrectAnswers, a.Trend, a.PerformancePattern)
	}

	sb.WriteString("\n## Instructions\n\n")
	sb.WriteString("Write the class-wide analysis only. Do not write individual evaluations.\n")
	writeOverallInstructions(&sb, ds)
	fmt.Fprintf(&sb, "Write in %s.\n", b.opts.Language)

	return sb.String()
}

// Overview returns the data-overview section.
func (b *Builder) Overview(ds roster.Dataset) string {
	var sb strings.Builder

	sb.WriteString("## Data Overview\n\n")
	fmt.Fprintf(&sb, "Active students: %d\n", len(ds.Aggregates))
	fmt.Fprintf(&sb, "Inactive students: %d\n", len(ds.Inactive))
	fmt.Fprintf(&sb, "Activity records matched to the roster: %d of %d (match rate %d%%)\n",
		ds.Stats.MatchedRecords, ds.Stats.MatchedRecords+ds.Stats.UnmatchedRecords, ds.MatchRate)

	subjects := ds.Subjects()
	if len(subjects) == 0 {
		sb.WriteString("Subjects: None\n")
	} else {
		fmt.Fprintf(&sb, "Subjects: %s\n", strings.Join(subjects, ", "))
	}

	// The full list, never a sample: the generator must not guess who is missing.
	sb.WriteString("Inactive students (no activity records): ")
	if len(ds.Inactive) == 0 {
		sb.WriteString("None\n")
	} else {
		sb.WriteString(strings.Join(ds.InactiveNames(), ", "))
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeStudent(sb *strings.Builder, a roster.StudentAggregate) {
	fmt.Fprintf(sb, "### %s (ID %s)\n", a.Name, a.StudentID)
	fmt.Fprintf(sb, "- Total points: %s\n", formatPoints(a.TotalPoints))
	fmt.Fprintf(sb, "- Participation: %d records (correct %d, incorrect %d, no score %d)\n",
		a.ParticipationCount, a.CorrectAnswers, a.IncorrectAnswers, a.NoScoreRecords)
	if len(a.Subjects) > 0 {
		fmt.Fprintf(sb, "- Subjects: %s\n", strings.Join(a.Subjects, ", "))
	}

	if dates := a.Dates(); len(dates) > 0 {
		parts := make([]string, len(dates))
		for i, d := range dates {
			parts[i] = d + " " + string(a.DailySummaries[d].Performance)
		}
		fmt.Fprintf(sb, "- Daily performance: %s\n", strings.Join(parts, "; "))
	}
	if len(a.Subjects) > 0 {
		parts := make([]string, len(a.Subjects))
		for i, s := range a.Subjects {
			parts[i] = s + " " + string(a.SubjectSummaries[s].Performance)
		}
		fmt.Fprintf(sb, "- Subject performance: %s\n", strings.Join(parts, "; "))
	}

	fmt.Fprintf(sb, "- Trend: %s\n", a.Trend)
	fmt.Fprintf(sb, "- Performance pattern: %s\n\n", a.PerformancePattern)
}

// writeContract emits the output-format rules the parser depends on.
func (b *Builder) writeContract(sb *strings.Builder, count int) {
	o := b.opts

	sb.WriteString("## Output Format\n\n")
	fmt.Fprintf(sb, "Write one evaluation for each of the %d students above, in the order listed, in %s.\n", count, o.Language)
	fmt.Fprintf(sb, "Each evaluation must be between %d and %d words (for Chinese, count characters).\n", o.MinLength, o.MaxLength)

	if o.UseAnnotations {
		sb.WriteString("Wrap every evaluation between a start marker and an end marker that both carry the student's exact name as listed above:\n\n")
		fmt.Fprintf(sb, "%s\n(evaluation text)\n%s\n\n", marker.Start("NAME"), marker.End("NAME"))
		sb.WriteString("Rules:\n")
		sb.WriteString("1. Copy the name exactly. Do not abbreviate, translate, or add titles inside the markers.\n")
		sb.WriteString("2. Every start marker must have a matching end marker with the same name.\n")
		sb.WriteString("3. Put nothing but the evaluation between the markers, and nothing outside the markers except whitespace.\n")
	} else {
		fmt.Fprintf(sb, "Start each evaluation in a new paragraph that begins with the student's exact name as listed above, immediately followed by %s (for example \"%s\").\n", marker.Honorific, Opener("张三"))
		fmt.Fprintf(sb, "Separate evaluations with a blank line. Inside an evaluation, never write another student's name followed by %s.\n", marker.Honorific)
	}

	if o.IncludeExamples {
		sb.WriteString("\nExample:\n\n")
		body := "This term Example Student answered questions actively in class and earned steady points in mathematics. Accuracy in Chinese dictation dipped mid-term, so more careful checking is recommended."
		if o.UseAnnotations {
			fmt.Fprintf(sb, "%s\n%s\n%s\n", marker.Start(marker.ExampleName), body, marker.End(marker.ExampleName))
		} else {
			fmt.Fprintf(sb, "%s %s\n", Opener(marker.ExampleName), body)
		}
		sb.WriteString("\nThe example is illustrative only. Do not include it in your answer.\n")
	}
}

// Opener is how an unannotated evaluation must begin: the name followed by
// the honorific the parser anchors on.
func Opener(name string) string {
	return name + marker.Honorific
}

func writeOverallInstructions(sb *strings.Builder, ds roster.Dataset) {
	sb.WriteString("1. Overall participation and performance level of the class.\n")
	sb.WriteString("2. Strengths and weaknesses by subject.\n")
	sb.WriteString("3. Students who stand out, and students who need attention.\n")
	if len(ds.Inactive) > 0 {
		fmt.Fprintf(sb, "4. A note on the %d inactive students listed in the overview, by name.\n", len(ds.Inactive))
	}
	sb.WriteString("Keep it concrete and grounded in the data above.\n")
}

func formatPoints(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
