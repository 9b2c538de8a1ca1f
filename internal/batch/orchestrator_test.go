package batch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abhisek/classeval/internal/evaluation"
	"github.com/abhisek/classeval/internal/llm"
	"github.com/abhisek/classeval/internal/marker"
	"github.com/abhisek/classeval/internal/prompt"
	"github.com/abhisek/classeval/internal/roster"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	batchRe   = regexp.MustCompile(`\(batch (\d+) of (\d+)\)`)
	studentRe = regexp.MustCompile(`(?m)^### (\S+) \(ID `)
)

func classOf(n int) roster.Dataset {
	var activity, rosterRows []roster.Row
	for i := 1; i <= n; i++ {
		id := strconv.Itoa(i)
		activity = append(activity, roster.Row{"学号": id, "科目": "数学", "日期": "2024-03-01", "分数": 1.0})
		rosterRows = append(rosterRows, roster.Row{"学号": id, "姓名": fmt.Sprintf("S%02d", i)})
	}
	return roster.Merge(activity, rosterRows)
}

// evaluate answers a prompt with one marked block per listed student.
func evaluate(p string) string {
	var sb strings.Builder
	for _, m := range studentRe.FindAllStringSubmatch(p, -1) {
		fmt.Fprintf(&sb, "%s\n%s makes steady progress in class.\n%s\n\n", marker.Start(m[1]), m[1], marker.End(m[1]))
	}
	return sb.String()
}

func batchOf(p string) (index, total int, ok bool) {
	m := batchRe.FindStringSubmatch(p)
	if m == nil {
		return 0, 0, false
	}
	index, _ = strconv.Atoi(m[1])
	total, _ = strconv.Atoi(m[2])
	return index, total, true
}

func newOrchestrator(t *testing.T, c Caller, cfg Config) *Orchestrator {
	t.Helper()
	o, err := New(c, prompt.NewBuilder(prompt.DefaultOptions()), cfg, nil)
	require.NoError(t, err)
	return o
}

func TestGenerate_BatchesStitchedInRosterOrder(t *testing.T) {
	ds := classOf(45)

	var mu sync.Mutex
	purposes := map[string]int{}
	tags := map[string]bool{}

	caller := CallerFunc(func(ctx context.Context, p string) (string, error) {
		mu.Lock()
		purposes[llm.PurposeFrom(ctx)]++
		tags[llm.BatchFrom(ctx)] = true
		mu.Unlock()

		index, total, ok := batchOf(p)
		if !ok {
			return "The class is engaged overall.", nil
		}
		// Earlier batches finish last.
		time.Sleep(time.Duration(total-index+1) * 15 * time.Millisecond)
		return evaluate(p), nil
	})

	res, err := newOrchestrator(t, caller, DefaultConfig()).Generate(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Batches)
	assert.False(t, res.Combined)
	assert.Equal(t, "The class is engaged overall.", res.OverallText)
	assert.Equal(t, map[string]int{PurposeBatch: 3, PurposeOverall: 1}, purposes)
	assert.Equal(t, map[string]bool{"": true, "1/3": true, "2/3": true, "3/3": true}, tags)

	evals := evaluation.NewParser(evaluation.DefaultOptions(), nil).Parse(res.StudentText)
	var names []string
	for _, e := range evals {
		names = append(names, e.Name)
	}
	assert.Equal(t, ds.Names(), names)
}

func TestGenerate_CombinedAtThreshold(t *testing.T) {
	ds := classOf(30)

	var calls atomic.Int32
	caller := CallerFunc(func(ctx context.Context, p string) (string, error) {
		calls.Add(1)
		assert.Equal(t, PurposeCombined, llm.PurposeFrom(ctx))
		assert.Equal(t, 1, strings.Count(p, marker.Separator))
		_, _, isBatch := batchOf(p)
		assert.False(t, isBatch)
		return evaluate(p) + marker.Separator + "\nA focused class.\n", nil
	})

	res, err := newOrchestrator(t, caller, DefaultConfig()).Generate(context.Background(), ds)
	require.NoError(t, err)

	assert.EqualValues(t, 1, calls.Load())
	assert.True(t, res.Combined)
	assert.Equal(t, 1, res.Batches)
	assert.Equal(t, "A focused class.", res.OverallText)
	assert.NotContains(t, res.StudentText, marker.Separator)
	assert.Len(t, evaluation.NewParser(evaluation.DefaultOptions(), nil).Parse(res.StudentText), 30)
}

func TestGenerate_CombinedWithoutSeparator(t *testing.T) {
	caller := CallerFunc(func(_ context.Context, p string) (string, error) {
		return evaluate(p), nil
	})

	res, err := newOrchestrator(t, caller, DefaultConfig()).Generate(context.Background(), classOf(3))
	require.NoError(t, err)
	assert.Empty(t, res.OverallText)
	assert.Contains(t, res.StudentText, marker.Start("S01"))
}

func TestGenerate_OneFailingBatchFailsWhole(t *testing.T) {
	boom := errors.New("upstream rejected batch")

	caller := CallerFunc(func(ctx context.Context, p string) (string, error) {
		if index, _, ok := batchOf(p); ok && index == 2 {
			return "", boom
		}
		// Everyone else waits for the group to cancel them.
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return evaluate(p), nil
		}
	})

	res, err := newOrchestrator(t, caller, DefaultConfig()).Generate(context.Background(), classOf(45))
	require.Error(t, err)
	assert.Nil(t, res)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "batched", genErr.Stage)
	assert.Equal(t, []int{1}, genErr.Indexes())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "batch 2 of 3")
}

func TestGenerate_OverallFailureReported(t *testing.T) {
	caller := CallerFunc(func(ctx context.Context, p string) (string, error) {
		if _, _, ok := batchOf(p); !ok {
			return "", &llm.ErrProviderUnavailable{Err: errors.New("503")}
		}
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := newOrchestrator(t, caller, DefaultConfig()).Generate(context.Background(), classOf(31))

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, []int{OverallIndex}, genErr.Indexes())
	assert.Contains(t, err.Error(), "overall analysis")

	var unavailable *llm.ErrProviderUnavailable
	assert.ErrorAs(t, err, &unavailable)
}

func TestGenerate_CancelledParentReportsEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	caller := CallerFunc(func(ctx context.Context, _ string) (string, error) {
		calls.Add(1)
		return "", ctx.Err()
	})

	_, err := newOrchestrator(t, caller, DefaultConfig()).Generate(ctx, classOf(45))
	require.ErrorIs(t, err, context.Canceled)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Len(t, genErr.Failures, 4)
	assert.Zero(t, calls.Load())
}

func TestGenerate_CombinedFailure(t *testing.T) {
	caller := CallerFunc(func(context.Context, string) (string, error) {
		return "", errors.New("bad gateway")
	})

	_, err := newOrchestrator(t, caller, DefaultConfig()).Generate(context.Background(), classOf(5))

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "combined", genErr.Stage)
	assert.Equal(t, []int{0}, genErr.Indexes())
}

func TestGenerate_MaxConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	caller := CallerFunc(func(_ context.Context, p string) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return evaluate(p), nil
	})

	cfg := Config{Threshold: 10, BatchSize: 5, MaxConcurrency: 2}
	res, err := newOrchestrator(t, caller, cfg).Generate(context.Background(), classOf(40))
	require.NoError(t, err)

	assert.Equal(t, 8, res.Batches)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestGenerate_NoActiveStudents(t *testing.T) {
	caller := CallerFunc(func(context.Context, string) (string, error) {
		t.Fatal("caller must not be invoked")
		return "", nil
	})
	ds := roster.Merge(nil, []roster.Row{{"学号": "1", "姓名": "张三"}})

	_, err := newOrchestrator(t, caller, DefaultConfig()).Generate(context.Background(), ds)
	assert.ErrorIs(t, err, ErrNoActiveStudents)
}

func TestPartition(t *testing.T) {
	aggs := classOf(7).Aggregates

	tests := []struct {
		size int
		want []int
	}{
		{size: 3, want: []int{3, 3, 1}},
		{size: 7, want: []int{7}},
		{size: 10, want: []int{7}},
		{size: 0, want: []int{1, 1, 1, 1, 1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.size), func(t *testing.T) {
			var got []int
			for _, p := range Partition(aggs, tt.size) {
				got = append(got, len(p))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Threshold: 0, BatchSize: 1}.Validate())
	assert.Error(t, Config{Threshold: 1, BatchSize: 0}.Validate())
	assert.Error(t, Config{Threshold: 1, BatchSize: 1, MaxConcurrency: -1}.Validate())

	_, err := New(nil, prompt.NewBuilder(prompt.DefaultOptions()), Config{}, nil)
	assert.Error(t, err)
}
