package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLikeOwnedBy(t *testing.T) {
	like := Like{
		Uri:       "at://did:plc:me/app.bsky.feed.like/3aaa",
		TargetUri: "at://did:plc:me/app.bsky.feed.post/3bbb",
	}
	assert.True(t, like.OwnedBy("did:plc:me"))
	assert.False(t, like.OwnedBy("did:plc:other"))
	assert.False(t, like.OwnedBy(""))

	foreign := Like{TargetUri: "at://did:plc:other/app.bsky.feed.post/3ccc"}
	assert.False(t, foreign.OwnedBy("did:plc:me"))

	// A did that happens to be a prefix of the target's did must not match.
	prefix := Like{TargetUri: "at://did:plc:me2/app.bsky.feed.post/3ddd"}
	assert.False(t, prefix.OwnedBy("did:plc:me"))
}

func TestPostIsRepost(t *testing.T) {
	assert.False(t, Post{Uri: "at://did:plc:me/app.bsky.feed.post/3aaa"}.IsRepost())
	assert.True(t, Post{
		Uri:       "at://did:plc:other/app.bsky.feed.post/3bbb",
		RepostUri: "at://did:plc:me/app.bsky.feed.repost/3ccc",
	}.IsRepost())
}

func TestDeletionPlanEmpty(t *testing.T) {
	assert.True(t, DeletionPlan{}.Empty())
	assert.False(t, DeletionPlan{LikesToRemove: []Like{{}}}.Empty())
	assert.False(t, DeletionPlan{PostsToDelete: []PostDeletion{{}}}.Empty())
}

func TestRunSummaryFailed(t *testing.T) {
	assert.False(t, RunSummary{Unliked: 3, Deleted: 2}.Failed())
	assert.True(t, RunSummary{UnlikeFailures: 1}.Failed())
	assert.True(t, RunSummary{DeleteFailures: 1}.Failed())
	assert.True(t, RunSummary{Incomplete: true}.Failed())
}
