package history

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/handyrules/internal/engine"
	"github.com/roach88/handyrules/internal/rule"
	"github.com/roach88/handyrules/internal/testutil"
)

func openTestLog(t *testing.T, opts ...Option) *Log {
	t.Helper()
	l, err := Open(MemoryPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func entry(rid, ruleID string) Entry {
	return Entry{
		RequestID: rid,
		RuleID:    ruleID,
		Kind:      "regex",
		Input:     "in " + ruleID,
		Output:    "out " + ruleID,
		Matched:   true,
		Status:    "matched",
	}
}

func ruleIDs(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.RuleID
	}
	return ids
}

func TestOpen_FileDatabaseReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.db")
	ctx := context.Background()

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, []Entry{entry("req-1", "comma")}))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, err := l.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, v)
}

func TestOpen_EmptyPathIsMemory(t *testing.T) {
	l, err := Open("")
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Append(context.Background(), []Entry{entry("r", "a")}))
	n, err := l.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, DefaultMaxEntries, l.MaxEntries())
}

func TestAppend_RoundTrip(t *testing.T) {
	clock := testutil.NewSteppingClock(testutil.DefaultClockStart, time.Second)
	l := openTestLog(t, WithClock(clock.Now))
	ctx := context.Background()

	e := entry("req-1", "comma")
	e.Error = "SHELL_TIMEOUT"
	e.Matched = false
	require.NoError(t, l.Append(ctx, []Entry{e}))

	got, err := l.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "req-1", got[0].RequestID)
	assert.Equal(t, "in comma", got[0].Input)
	assert.Equal(t, "out comma", got[0].Output)
	assert.False(t, got[0].Matched)
	assert.Equal(t, "SHELL_TIMEOUT", got[0].Error)
	assert.Equal(t, testutil.DefaultClockStart.Add(time.Second), got[0].CreatedAt)
}

func TestAppend_EvictsOldest(t *testing.T) {
	l := openTestLog(t, WithMaxEntries(3))
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, []Entry{entry("r1", "a"), entry("r1", "b")}))
	require.NoError(t, l.Append(ctx, []Entry{entry("r2", "c"), entry("r2", "d")}))

	got, err := l.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, ruleIDs(got))

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAppend_UnboundedWhenMaxIsZero(t *testing.T) {
	l := openTestLog(t, WithMaxEntries(0))
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, l.Append(ctx, []Entry{entry("r", fmt.Sprint(i))}))
	}
	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestRecent_NewestNOldestFirst(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	require.NoError(t, l.Append(ctx, []Entry{entry("r", "a"), entry("r", "b"), entry("r", "c")}))

	got, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ruleIDs(got))
}

func TestRecent_EmptyIsNotNil(t *testing.T) {
	got, err := openTestLog(t).Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestClear(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	require.NoError(t, l.Append(ctx, []Entry{entry("r", "a"), entry("r", "b")}))

	n, err := l.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAppend_Concurrent(t *testing.T) {
	l := openTestLog(t, WithMaxEntries(0))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.Append(ctx, []Entry{entry(fmt.Sprint(i), "a"), entry(fmt.Sprint(i), "b")}))
		}(i)
	}
	wg.Wait()

	got, err := l.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 20)
	// Each request's rows stay adjacent and in order
	for i := 0; i < len(got); i += 2 {
		assert.Equal(t, got[i].RequestID, got[i+1].RequestID)
		assert.Equal(t, "a", got[i].RuleID)
	}
}

func TestFromTrace(t *testing.T) {
	trace := engine.Trace{
		Entries: []engine.TraceEntry{
			{RuleID: "comma", Kind: rule.KindRegex, Status: engine.StatusMatched, Matched: true, Input: "a comma", Output: "a,"},
			{RuleID: "sh", Kind: rule.KindShell, Status: engine.StatusSkipped, Input: "a,", Output: "a,"},
			{RuleID: "trim", Kind: rule.KindFunction, Status: engine.StatusNoMatch, Input: "a,", Output: "a,"},
		},
	}

	got := FromTrace("req-9", trace)

	require.Len(t, got, 2)
	assert.Equal(t, Entry{RequestID: "req-9", RuleID: "comma", Kind: "regex", Input: "a comma", Output: "a,", Matched: true, Status: "matched"}, got[0])
	assert.Equal(t, "trim", got[1].RuleID)
	assert.False(t, got[1].Matched)
}
