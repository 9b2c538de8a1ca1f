package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/classeval/internal/batch"
	"github.com/abhisek/classeval/internal/evaluation"
	"github.com/abhisek/classeval/internal/llm"
	"github.com/abhisek/classeval/internal/marker"
	"github.com/abhisek/classeval/internal/prompt"
	"github.com/abhisek/classeval/internal/roster"
	"github.com/abhisek/classeval/internal/store"
)

var fixedNow = time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC)

func activityRows() []roster.Row {
	return []roster.Row{
		{"学号": "1", "科目": "数学", "日期": "2024-03-01", "分数": 2.0},
		{"学号": "1", "科目": "语文", "日期": "2024-03-02", "分数": 1.0},
		{"学号": "2", "科目": "数学", "日期": "2024-03-01", "分数": -1.0},
		{"学号": "3", "科目": "英语", "日期": "2024-03-03", "分数": 3.0},
		{"学号": "99", "科目": "英语", "日期": "2024-03-03", "分数": 1.0},
	}
}

func rosterRows() []roster.Row {
	return []roster.Row{
		{"学号": "1", "姓名": "张三"},
		{"学号": "2", "姓名": "李四"},
		{"学号": "3", "姓名": "王五"},
		{"学号": "4", "姓名": "赵六"},
	}
}

func marked(names ...string) string {
	var sb strings.Builder
	for _, n := range names {
		fmt.Fprintf(&sb, "%s\n%s本学期课堂表现积极，作业完成认真。\n%s\n\n", marker.Start(n), n, marker.End(n))
	}
	return sb.String()
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newService(t *testing.T, provider llm.Provider, reports store.ReportRepo, keep int) *Service {
	t.Helper()
	b := prompt.NewBuilder(prompt.DefaultOptions())
	caller := &batch.ProviderCaller{Provider: provider, System: b.System(), MaxTokens: 4096}
	orch, err := batch.New(caller, b, batch.DefaultConfig(), nil)
	require.NoError(t, err)

	svc := NewService(orch, evaluation.NewParser(evaluation.DefaultOptions(), nil), reports,
		Options{Provider: "mock", Model: "mock", Keep: keep}, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestGenerate_EndToEnd(t *testing.T) {
	st := openStore(t)
	mock := llm.NewMockProvider(llm.TextResponse(
		"以下是评语。\n\n" + marked("张三", "李四", "王五") + marker.Separator + "\n全班整体表现良好。\n"))

	svc := newService(t, mock, st.ReportRepo(), 0)
	r, err := svc.Generate(context.Background(), activityRows(), rosterRows())
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, fixedNow, r.CreatedAt)
	assert.Equal(t, store.ReportFormatVersion, r.FormatVersion)
	assert.Equal(t, 80, r.MatchRate)
	assert.Equal(t, 3, r.Data.ActiveStudents)
	assert.Equal(t, []string{"99"}, r.Data.UnmatchedIDs)
	assert.Equal(t, []Student{{ID: "4", Name: "赵六"}}, r.Inactive)
	assert.Equal(t, "全班整体表现良好。", r.Overall)

	require.Len(t, r.Evaluations, 3)
	assert.Equal(t, "张三", r.Evaluations[0].Name)
	assert.Equal(t, "张三本学期课堂表现积极，作业完成认真。", r.Evaluations[0].Text)
	assert.True(t, r.Validation.OK())
	assert.Equal(t, 100, r.Validation.MatchRate)
	assert.True(t, r.Generation.Combined)
	assert.Equal(t, 3, r.Generation.MarkerCount)

	// One combined request carrying the full prompt.
	require.Len(t, mock.Calls, 1)
	assert.Contains(t, mock.Calls[0].Messages[0].Content, marker.Separator)

	rec, err := st.ReportRepo().Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, r.ID, rec.ID)
	assert.Equal(t, 3, rec.StudentCount)
	assert.Equal(t, 1, rec.InactiveCount)
	assert.Equal(t, 100, rec.ValidationRate)

	loaded, err := FromRecord(rec)
	require.NoError(t, err)
	if diff := cmp.Diff(r, loaded); diff != "" {
		t.Errorf("cached report mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_MissingStudentSurfaced(t *testing.T) {
	mock := llm.NewMockProvider(llm.TextResponse(marked("张三", "王五") + marker.Separator + "\n总结"))

	r, err := newService(t, mock, nil, 0).Generate(context.Background(), activityRows(), rosterRows())
	require.NoError(t, err)

	assert.Equal(t, []string{"李四"}, r.Validation.Missing)
	assert.Equal(t, []string{}, r.Validation.Extra)
	assert.Equal(t, 67, r.Validation.MatchRate)
}

func TestGenerate_FailureCachesNothing(t *testing.T) {
	st := openStore(t)
	mock := llm.NewMockProvider(llm.MockResponse{Err: errors.New("quota exhausted")})

	r, err := newService(t, mock, st.ReportRepo(), 0).Generate(context.Background(), activityRows(), rosterRows())
	require.Error(t, err)
	assert.Nil(t, r)

	var genErr *batch.GenerationError
	assert.ErrorAs(t, err, &genErr)

	rec, err := st.ReportRepo().Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGenerate_PrunesCache(t *testing.T) {
	st := openStore(t)
	mock := llm.NewMockProviderFunc(func(context.Context, llm.Request) llm.MockResponse {
		return llm.TextResponse(marked("张三", "李四", "王五") + marker.Separator + "\n总结")
	})
	svc := newService(t, mock, st.ReportRepo(), 2)

	var ids []string
	for range 3 {
		r, err := svc.Generate(context.Background(), activityRows(), rosterRows())
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	list, err := st.ReportRepo().List(context.Background(), store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)
}

func TestFromRecord_IncompatibleFormat(t *testing.T) {
	_, err := FromRecord(&store.ReportRecord{ID: "x", FormatVersion: "v2.0.0", Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, store.ErrIncompatibleReport)
}

func TestGenerate_DryRunProviderBatched(t *testing.T) {
	provider, err := llm.NewProvider(context.Background(), llm.Config{Provider: "mock"}, nil, nil)
	require.NoError(t, err)

	b := prompt.NewBuilder(prompt.DefaultOptions())
	caller := &batch.ProviderCaller{Provider: provider, System: b.System(), MaxTokens: 4096}
	orch, err := batch.New(caller, b, batch.Config{Threshold: 2, BatchSize: 2}, nil)
	require.NoError(t, err)
	svc := NewService(orch, evaluation.NewParser(evaluation.DefaultOptions(), nil), nil,
		Options{Provider: "mock", Model: "mock"}, nil)

	r, err := svc.Generate(context.Background(), activityRows(), rosterRows())
	require.NoError(t, err)

	assert.False(t, r.Generation.Combined)
	assert.True(t, r.Validation.OK())
	require.Len(t, r.Evaluations, 3)
	for _, e := range r.Evaluations {
		assert.Contains(t, e.Text, e.Name)
	}
	assert.Contains(t, r.Overall, "dry run")
}
