package prompt

import (
	"strings"
	"testing"

	"github.com/abhisek/classeval/internal/evaluation"
	"github.com/abhisek/classeval/internal/marker"
	"github.com/abhisek/classeval/internal/roster"
)

func testDataset() roster.Dataset {
	activity := []roster.Row{
		{"学号": "1", "科目": "数学", "日期": "2024-03-01", "分数": 1.0},
		{"学号": "1", "科目": "语文", "日期": "2024-03-02", "分数": -1.0},
		{"学号": "2", "科目": "数学", "日期": "2024-03-01", "分数": 2.5},
	}
	rosterRows := []roster.Row{
		{"学号": "1", "姓名": "张三"},
		{"学号": "2", "姓名": "李四"},
		{"学号": "3", "姓名": "王五"},
		{"学号": "4", "姓名": "赵六"},
	}
	return roster.Merge(activity, rosterRows)
}

func TestBuild_ContainsOverviewAndStudents(t *testing.T) {
	b := NewBuilder(DefaultOptions())
	msg := b.Build(testDataset())

	for _, want := range []string{
		"Active students: 2",
		"Inactive students: 2",
		"match rate 100%",
		"Subjects: 数学, 语文",
		"Inactive students (no activity records): 王五, 赵六",
		"### 张三 (ID 1)",
		"### 李四 (ID 2)",
		"- Total points: 2.5",
		"- Daily performance: 2024-03-01 excellent; 2024-03-02 poor",
		"between 80 and 150 words",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
}

func TestBuild_SeparatorAfterStudents(t *testing.T) {
	msg := NewBuilder(DefaultOptions()).Build(testDataset())

	sep := strings.Index(msg, marker.Separator)
	if sep < 0 {
		t.Fatal("expected separator in full prompt")
	}
	if strings.Count(msg, marker.Separator) != 1 {
		t.Fatalf("expected exactly one separator, got %d", strings.Count(msg, marker.Separator))
	}
	if last := strings.LastIndex(msg, "### 李四"); last > sep {
		t.Error("student block must precede the separator")
	}
	if !strings.Contains(msg[sep:], "class-wide analysis") {
		t.Error("expected overall instructions after the separator")
	}
}

func TestBuild_AnnotationContract(t *testing.T) {
	msg := NewBuilder(DefaultOptions()).Build(testDataset())
	if !strings.Contains(msg, marker.Start("NAME")) || !strings.Contains(msg, marker.End("NAME")) {
		t.Error("expected marker template")
	}
	if !strings.Contains(msg, marker.Start(marker.ExampleName)) {
		t.Error("expected worked example")
	}
}

func TestBuild_OptionsToggleSections(t *testing.T) {
	opts := DefaultOptions()
	opts.UseAnnotations = false
	opts.IncludeExamples = false
	msg := NewBuilder(opts).Build(testDataset())

	if strings.Contains(msg, "STUDENT_START") {
		t.Error("markers must be omitted when annotations are off")
	}
	if strings.Contains(msg, "Example:") {
		t.Error("example must be omitted")
	}
	if !strings.Contains(msg, `"张三同学"`) {
		t.Error("expected the name-plus-honorific opener in plain mode")
	}
	if !strings.Contains(msg, "between 80 and 150 words") {
		t.Error("length window is always advertised")
	}
}

// A response written the way the plain-mode prompt asks must parse back
// into one evaluation per student.
func TestBuild_PlainModeOutputParses(t *testing.T) {
	opts := DefaultOptions()
	opts.UseAnnotations = false
	ds := testDataset()
	msg := NewBuilder(opts).Build(ds)
	if !strings.Contains(msg, marker.Honorific) {
		t.Fatal("expected the honorific in the plain-mode contract")
	}

	bodies := []string{
		"本学期课堂发言积极，数学答题准确，语文默写还需加强。",
		"思维活跃，数学成绩突出，继续保持良好的学习习惯。",
	}
	var out []string
	for i, a := range ds.Aggregates {
		out = append(out, Opener(a.Name)+bodies[i])
	}
	response := strings.Join(out, "\n\n") + "\n" + marker.Separator + "\n全班整体表现良好。"

	res := evaluation.NewParser(evaluation.DefaultOptions(), nil).ParseDetailed(response)
	var names []string
	for _, e := range res.Evaluations {
		names = append(names, e.Name)
	}
	if strings.Join(names, ",") != strings.Join(ds.Names(), ",") {
		t.Fatalf("parsed %v, want %v", names, ds.Names())
	}
	if res.Overall != "全班整体表现良好。" {
		t.Errorf("overall = %q", res.Overall)
	}
}

func TestOptions_NormalizedSwapsInvertedWindow(t *testing.T) {
	b := NewBuilder(Options{MinLength: 200, MaxLength: 50})
	o := b.Options()
	if o.MinLength != 50 || o.MaxLength != 200 {
		t.Fatalf("got window %d-%d, want 50-200", o.MinLength, o.MaxLength)
	}
	if o.Language == "" {
		t.Fatal("expected default language")
	}
}

func TestBatchPrompt_OnlyBatchStudents(t *testing.T) {
	ds := testDataset()
	b := NewBuilder(DefaultOptions())
	msg := b.BatchPrompt(ds, ds.Aggregates[1:], 1, 2)

	if !strings.Contains(msg, "batch 2 of 2") {
		t.Error("expected one-based batch label")
	}
	if strings.Contains(msg, "### 张三") {
		t.Error("batch prompt must not include students from other batches")
	}
	if !strings.Contains(msg, "### 李四") {
		t.Error("expected batch student")
	}
	if strings.Contains(msg, marker.Separator) {
		t.Error("batch prompt must not request the separator")
	}
	// The overview keeps the complete inactive list in every batch.
	if !strings.Contains(msg, "王五, 赵六") {
		t.Error("expected full inactive list")
	}
}

func TestOverallPrompt(t *testing.T) {
	msg := NewBuilder(DefaultOptions()).OverallPrompt(testDataset())
	if !strings.Contains(msg, "| 张三 | 0 | 2 | 1 | 1 |") {
		t.Error("expected summary row for 张三")
	}
	if strings.Contains(msg, "STUDENT_START") {
		t.Error("overall prompt must not carry the marker contract")
	}
	if !strings.Contains(msg, "2 inactive students") {
		t.Error("expected inactive note")
	}
}

func TestOverview_NoInactive(t *testing.T) {
	ds := roster.Merge(nil, nil)
	msg := NewBuilder(DefaultOptions()).Overview(ds)
	if !strings.Contains(msg, "Inactive students (no activity records): None") {
		t.Error("expected None for inactive list")
	}
	if !strings.Contains(msg, "Subjects: None") {
		t.Error("expected None for subjects")
	}
}
