package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novelgrab/novelgrab/internal/novel"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func testCatalog(n int) novel.Catalog {
	cat := novel.Catalog{NovelName: "测试小说", Author: "某人", Signature: "sig-a"}
	for i := 0; i < n; i++ {
		cat.Refs = append(cat.Refs, novel.ChapterRef{
			Index:   i,
			Title:   "第" + string(rune('1'+i)) + "章",
			Locator: "https://example.com/" + string(rune('1'+i)) + ".html",
		})
	}
	return cat
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	clk := fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s, err := New(t.TempDir(), clk, nil)
	require.NoError(t, err)
	return s
}

func doneOutcome(ref novel.ChapterRef, at time.Time) novel.Outcome {
	return novel.Outcome{
		Index: ref.Index,
		Record: novel.ChapterRecord{
			Index:     ref.Index,
			Title:     ref.Title,
			Locator:   ref.Locator,
			Body:      "正文",
			FetchedAt: at,
			Status:    novel.StatusDone,
		},
	}
}

func TestLoadWithoutState(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Load(context.Background())
	require.ErrorIs(t, err, novel.ErrProgressNotFound)
}

func TestReconcileFreshRun(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	cat := testCatalog(3)

	plan, err := s.Reconcile(context.Background(), "abc123", cat, true)
	require.NoError(t, err)
	require.Len(t, plan.ToFetch, 3)
	require.Zero(t, plan.Skipped)

	st, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc123", st.NovelID)
	require.NotEmpty(t, st.RunID)
	require.Equal(t, 3, st.TotalChapters)
	require.Equal(t, novel.StatusPending, st.Chapters[0].Status)
}

func TestRecordResultPersistsImmediately(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	cat := testCatalog(3)
	_, err := s.Reconcile(context.Background(), "abc123", cat, true)
	require.NoError(t, err)

	at := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	require.NoError(t, s.RecordResult(context.Background(), doneOutcome(cat.Refs[1], at), "001_x.md"))

	// Read through a second store to prove the write hit the disk.
	other, err := New(s.dir, fixedClock{t: at}, nil)
	require.NoError(t, err)
	st, err := other.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, novel.StatusDone, st.Chapters[1].Status)
	require.Equal(t, "001_x.md", st.Chapters[1].Filename)
	require.Equal(t, 1, st.Completed())
}

func TestReconcileResumeSkipsDone(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	cat := testCatalog(4)
	_, err := s.Reconcile(context.Background(), "abc123", cat, true)
	require.NoError(t, err)

	at := time.Now().UTC()
	require.NoError(t, s.RecordResult(context.Background(), doneOutcome(cat.Refs[0], at), "000_a.md"))
	require.NoError(t, s.RecordResult(context.Background(), doneOutcome(cat.Refs[2], at), "002_c.md"))

	resumed, err := New(s.dir, fixedClock{t: at}, nil)
	require.NoError(t, err)
	plan, err := resumed.Reconcile(context.Background(), "abc123", cat, true)
	require.NoError(t, err)
	require.Equal(t, 2, plan.Skipped)
	require.Len(t, plan.ToFetch, 2)
	require.Equal(t, 1, plan.ToFetch[0].Index)
	require.Equal(t, 3, plan.ToFetch[1].Index)
}

func TestReconcileStaleSignatureStartsFresh(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	cat := testCatalog(2)
	_, err := s.Reconcile(context.Background(), "abc123", cat, true)
	require.NoError(t, err)
	at := time.Now().UTC()
	require.NoError(t, s.RecordResult(context.Background(), doneOutcome(cat.Refs[0], at), "000_a.md"))

	// A changed signature on resume must still yield a full fetch plan; the
	// stale saved state is only surfaced, never a reason to stop.
	changed := cat
	changed.Signature = "sig-b"
	resumed, err := New(s.dir, fixedClock{t: at}, nil)
	require.NoError(t, err)
	plan, err := resumed.Reconcile(context.Background(), "abc123", changed, true)
	require.NoError(t, err)
	require.True(t, plan.Stale)
	require.Len(t, plan.ToFetch, 2)
	require.Zero(t, plan.Skipped)

	// The stale completed set is discarded from the persisted state too.
	st := resumed.Snapshot()
	require.Equal(t, "sig-b", st.CatalogSignature)
	require.Equal(t, novel.StatusPending, st.Chapters[0].Status)

	// A matching signature keeps reporting a non-stale plan.
	plan, err = resumed.Reconcile(context.Background(), "abc123", changed, false)
	require.NoError(t, err)
	require.False(t, plan.Stale)
	require.Len(t, plan.ToFetch, 2)
}

func TestRecordResultNeverDemotesDone(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	cat := testCatalog(1)
	_, err := s.Reconcile(context.Background(), "abc123", cat, true)
	require.NoError(t, err)

	at := time.Now().UTC()
	require.NoError(t, s.RecordResult(context.Background(), doneOutcome(cat.Refs[0], at), "000_a.md"))

	failed := novel.Outcome{
		Index: 0,
		Kind:  novel.FailureTransientExhausted,
		Err:   errors.New("late failure"),
	}
	require.NoError(t, s.RecordResult(context.Background(), failed, ""))

	st := s.Snapshot()
	require.Equal(t, novel.StatusDone, st.Chapters[0].Status)
	require.Equal(t, "000_a.md", st.Chapters[0].Filename)
}

func TestRecordFailureKind(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	cat := testCatalog(1)
	_, err := s.Reconcile(context.Background(), "abc123", cat, true)
	require.NoError(t, err)

	out := novel.Outcome{
		Index: 0,
		Kind:  novel.FailurePermanentParse,
		Err:   errors.New("no content"),
	}
	require.NoError(t, s.RecordResult(context.Background(), out, ""))

	st := s.Snapshot()
	require.Equal(t, novel.StatusFailed, st.Chapters[0].Status)
	require.Equal(t, novel.FailurePermanentParse, st.Chapters[0].FailureKind)
	require.Equal(t, 1, st.Failed())
}
