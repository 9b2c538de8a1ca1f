package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/classeval/internal/evaluation"
	"github.com/abhisek/classeval/internal/store"
)

func sampleReport() *Report {
	return &Report{
		ID:            "0b6f3c1e-8d2a-4a51-9a0e-3c3f8f6b2d11",
		CreatedAt:     fixedNow,
		FormatVersion: store.ReportFormatVersion,
		Provider:      "anthropic",
		Model:         "claude-sonnet",
		MatchRate:     90,
		Data:          DataStats{ActiveStudents: 2, MatchedRecords: 9, UnmatchedRecords: 1, UnmatchedIDs: []string{"77"}},
		Inactive:      []Student{{ID: "4", Name: "赵六"}},
		Overall:       "全班整体表现良好。",
		Evaluations: []evaluation.StudentEvaluation{
			{Name: "张三", Text: "张三课堂表现积极。", Index: 0, Source: evaluation.SourceMarker},
			{Name: "李四", Text: "李四同学需要加强练习。", Index: 1, Source: evaluation.SourceFallback},
		},
		Validation: evaluation.ValidationReport{
			Expected: 3, Found: 2, Missing: []string{"王五"}, Extra: []string{}, MatchRate: 67,
		},
		Generation: GenerationInfo{Batches: 1, Combined: true, Unmatched: []string{}, Duplicates: []string{}},
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, sampleReport()))

	var got Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sampleReport().Evaluations, got.Evaluations)
	assert.Contains(t, buf.String(), "\n  \"id\"")
	assert.Contains(t, buf.String(), "张三课堂表现积极")
}

func TestExportJSON_RejectsInvalidReport(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Report)
	}{
		{"empty id", func(r *Report) { r.ID = "" }},
		{"rate above 100", func(r *Report) { r.MatchRate = 101 }},
		{"empty evaluation text", func(r *Report) { r.Evaluations[0].Text = "" }},
		{"nil missing list", func(r *Report) { r.Validation.Missing = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sampleReport()
			tt.mutate(r)

			var buf bytes.Buffer
			err := ExportJSON(&buf, r)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "export schema")
			assert.Zero(t, buf.Len(), "nothing written on failure")
		})
	}
}

func TestExportMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportMarkdown(&buf, sampleReport()))
	out := buf.String()

	for _, want := range []string{
		"# Class Evaluation Report",
		"- Evaluations found: 2 of 3 (67%)",
		"## Class-Wide Analysis\n\n全班整体表现良好。",
		"### 张三\n\n张三课堂表现积极。",
		"### 李四\n\n_Recovered without markers._",
		"## Missing Evaluations\n\n- 王五",
		"- 赵六 (4)",
	} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "### 张三"), strings.Index(out, "### 李四"))
}

func TestExport_Formats(t *testing.T) {
	for _, format := range []string{"json", "markdown", "md", "text", ""} {
		var buf bytes.Buffer
		assert.NoError(t, Export(&buf, sampleReport(), format), format)
		assert.NotZero(t, buf.Len(), format)
	}

	err := Export(&bytes.Buffer{}, sampleReport(), "xlsx")
	assert.ErrorContains(t, err, "unknown export format")
}

func TestRender(t *testing.T) {
	out := Render(sampleReport(), 60)

	for _, want := range []string{
		"Class Evaluation Report",
		"0b6f3c1e",
		"claude-sonnet (anthropic)",
		"2 of 3 (67%)",
		"张三",
		"(recovered)",
		"Missing:",
		"王五",
		"Inactive: 赵六",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRender_NoOverall(t *testing.T) {
	r := sampleReport()
	r.Overall = ""
	assert.Contains(t, Render(r, 0), "No class-wide analysis was generated.")
}

func TestRenderList(t *testing.T) {
	out := RenderList([]store.ReportRecord{
		{ID: "0b6f3c1e-8d2a", Timestamp: fixedNow, Model: "claude-sonnet", StudentCount: 45, InactiveCount: 3, MatchRate: 97, ValidationRate: 100},
	})
	for _, want := range []string{"ID", "Students", "0b6f3c1e", "claude-sonnet", "45", "97%", "100%"} {
		assert.Contains(t, out, want)
	}
}
