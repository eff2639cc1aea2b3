package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailybrief/internal/model"
)

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "cache.json"))
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	return s
}

func event(id string, start time.Time, d time.Duration) model.Event {
	return model.Event{ID: id, Summary: id, StartTime: start.Unix(), EndTime: start.Add(d).Unix()}
}

func ids(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.ID)
	}
	return out
}

func TestReplaceEventsReplacesOnlyItsPartition(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.ReplaceEvents(ctx, "a", []model.Event{
		event("a1", fixedNow.Add(time.Hour), time.Hour),
		event("a2", fixedNow.Add(2*time.Hour), time.Hour),
	}, ""))
	require.NoError(t, s.ReplaceEvents(ctx, "b", []model.Event{
		event("b1", fixedNow.Add(3*time.Hour), time.Hour),
	}, ""))
	require.NoError(t, s.ReplaceEvents(ctx, "a", []model.Event{
		event("a3", fixedNow.Add(4*time.Hour), time.Hour),
	}, `"etag"`))

	got, err := s.EventsForToday(ctx, fixedNow, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a3"}, ids(got))
	assert.Equal(t, "a", got[0].Source)

	got, err = s.EventsForToday(ctx, fixedNow, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, ids(got))

	all, err := s.EventsForToday(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "a3"}, ids(all))

	meta, ok, err := s.Meta(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fixedNow.Unix(), meta.LastFetch)
	assert.Equal(t, `"etag"`, meta.ETag)
}

func TestReplaceEventsDeduplicatesByID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.ReplaceEvents(ctx, "a", []model.Event{
		event("x", fixedNow.Add(time.Hour), time.Hour),
		event("x", fixedNow.Add(2*time.Hour), time.Hour),
	}, ""))

	got, err := s.EventsForToday(ctx, fixedNow, "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fixedNow.Add(2*time.Hour).Unix(), got[0].StartTime)
}

func TestEventsForTodayRecomputesFlags(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	midnight := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.ReplaceEvents(ctx, "a", []model.Event{
		event("soon", fixedNow.Add(10*time.Minute), time.Hour),
		{ID: "holiday", Summary: "Holiday", StartTime: midnight.Unix(), EndTime: midnight.Add(24 * time.Hour).Unix(), AllDay: true},
		event("tomorrow", midnight.Add(30*time.Hour), time.Hour),
		event("overnight", midnight.Add(-2*time.Hour), 12*time.Hour),
	}, ""))

	got, err := s.EventsForToday(ctx, fixedNow, "a")
	require.NoError(t, err)
	require.Equal(t, []string{"holiday", "overnight", "soon"}, ids(got))
	assert.False(t, got[0].IsNow)
	assert.True(t, got[1].IsNow)
	assert.True(t, got[2].IsSoon)

	later, err := s.EventsForToday(ctx, fixedNow.Add(15*time.Minute), "a")
	require.NoError(t, err)
	assert.True(t, later[2].IsNow)
	assert.False(t, later[2].IsSoon)
}

func TestEventsForTodayEmptyStore(t *testing.T) {
	got, err := newStore(t).EventsForToday(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var missing model.GitHubBrief
	_, found, err := s.LoadSnapshot(ctx, "github", &missing)
	require.NoError(t, err)
	assert.False(t, found)

	in := model.EmptyGitHubBrief()
	in.PRsToReview = []model.PullRequest{{ID: 1, Title: "Fix it", Labels: []model.GitHubLabel{}}}
	require.NoError(t, s.SaveSnapshot(ctx, "github", in, ""))

	var out model.GitHubBrief
	meta, found, err := s.LoadSnapshot(ctx, "github", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, fixedNow.Unix(), meta.LastFetch)
	require.Len(t, out.PRsToReview, 1)
	assert.Equal(t, "Fix it", out.PRsToReview[0].Title)
}

func TestStatusAndClear(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.ReplaceEvents(ctx, "ics_url", nil, ""))
	require.NoError(t, s.SaveSnapshot(ctx, "github", model.EmptyGitHubBrief(), ""))

	status, err := s.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.Equal(t, "github", status[0].Source)
	assert.Equal(t, "ics_url", status[1].Source)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))

	status, err = s.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, status)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.ReplaceEvents(ctx, "a", []model.Event{
		event("old", fixedNow.Add(-48*time.Hour), time.Hour),
		event("today", fixedNow, time.Hour),
	}, ""))

	removed, err := s.Prune(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestCorruptFileIsStorageError(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.path, []byte("{not json"), 0o600))

	_, err := s.EventsForToday(context.Background(), fixedNow)
	require.Error(t, err)
	assert.True(t, IsStorage(err))

	err = s.ReplaceEvents(context.Background(), "a", nil, "")
	assert.True(t, IsStorage(err))
}
