package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skeetsweep/models"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "skeetsweep.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSummary(id string, started time.Time) models.RunSummary {
	return models.RunSummary{
		RunId:       id,
		StartedAt:   started,
		FinishedAt:  started.Add(90 * time.Second),
		ArchivePath: "archive/did_plc_abc/bsky-archive-2024-03-15T10_30_00Z.car",
		Stats: models.PlanStats{
			PostsExamined:     12,
			LikesExamined:     30,
			RetainedSelfLiked: 2,
			StalePosts:        4,
			ViralPosts:        1,
		},
		Unliked:        7,
		UnlikeFailures: 1,
		Deleted:        5,
		DeleteFailures: 0,
		Incomplete:     false,
		Confirmed:      true,
	}
}

func TestRecordRunRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	started := time.Unix(1710499800, 0).UTC()
	summary := sampleSummary("run-1", started)

	require.NoError(t, s.RecordRun(ctx, summary, "max_reposts=100 stale_limit_days=30"))

	records, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, summary, records[0].Summary)
	assert.Equal(t, "max_reposts=100 stale_limit_days=30", records[0].Policy)
}

func TestRecentRunsNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Unix(1710000000, 0).UTC()

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		summary := sampleSummary(id, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.RecordRun(ctx, summary, "p"))
	}

	records, err := s.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "run-c", records[0].Summary.RunId)
	assert.Equal(t, "run-b", records[1].Summary.RunId)
}

func TestDuplicateRunIdRejected(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	summary := sampleSummary("run-1", time.Now().UTC())

	require.NoError(t, s.RecordRun(ctx, summary, "p"))
	assert.Error(t, s.RecordRun(ctx, summary, "p"))
}

func TestCursorRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	cursor, err := s.LastCursor(ctx, "app.bsky.feed.like")
	require.NoError(t, err)
	assert.Empty(t, cursor)

	require.NoError(t, s.SaveCursor(ctx, "app.bsky.feed.like", "abc"))
	cursor, err = s.LastCursor(ctx, "app.bsky.feed.like")
	require.NoError(t, err)
	assert.Equal(t, "abc", cursor)

	// Upsert overwrites.
	require.NoError(t, s.SaveCursor(ctx, "app.bsky.feed.like", "def"))
	cursor, err = s.LastCursor(ctx, "app.bsky.feed.like")
	require.NoError(t, err)
	assert.Equal(t, "def", cursor)

	// Empty cursors are not persisted.
	require.NoError(t, s.SaveCursor(ctx, "app.bsky.feed.like", ""))
	cursor, err = s.LastCursor(ctx, "app.bsky.feed.like")
	require.NoError(t, err)
	assert.Equal(t, "def", cursor)
}

func TestCursorsAreTrackedPerCollection(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCursor(ctx, "app.bsky.feed.like", "likes-cursor"))
	require.NoError(t, s.SaveCursor(ctx, "app.bsky.feed.post", "posts-cursor"))

	likes, err := s.LastCursor(ctx, "app.bsky.feed.like")
	require.NoError(t, err)
	posts, err := s.LastCursor(ctx, "app.bsky.feed.post")
	require.NoError(t, err)
	assert.Equal(t, "likes-cursor", likes)
	assert.Equal(t, "posts-cursor", posts)
}

func TestAuditRecorderKeepsExecutionOrder(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	recorder := s.AuditRecorder("run-1")
	recorder.MutationExecuted("unlike", "at://did:plc:a/app.bsky.feed.like/1", "stale", nil)
	recorder.MutationExecuted("delete_post", "at://did:plc:a/app.bsky.feed.post/2", "viral", errors.New("gone"))
	recorder.MutationExecuted("delete_repost", "at://did:plc:a/app.bsky.feed.repost/3", "stale", nil)

	// Rows from another run stay invisible.
	s.AuditRecorder("run-2").MutationExecuted("unlike", "at://did:plc:a/app.bsky.feed.like/9", "stale", nil)

	entries, err := s.AuditEntries(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, []int{1, 2, 3}, []int{entries[0].Seq, entries[1].Seq, entries[2].Seq})
	assert.Equal(t, "unlike", entries[0].Kind)
	assert.True(t, entries[0].Ok)
	assert.Empty(t, entries[0].Error)

	assert.Equal(t, "delete_post", entries[1].Kind)
	assert.False(t, entries[1].Ok)
	assert.Equal(t, "gone", entries[1].Error)

	assert.Equal(t, "delete_repost", entries[2].Kind)
	assert.Equal(t, "at://did:plc:a/app.bsky.feed.repost/3", entries[2].Uri)
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "skeetsweep.db"))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
