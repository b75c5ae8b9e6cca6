package models

import (
	"strings"
	"time"
)

// Post is one authored item from the account's feed: an original post, a
// reply, or the account's repost of someone else's post. Self-liked status is
// never stored here; the engine recomputes it from the current like set on
// every run.
type Post struct {
	Uri         string
	Cid         string
	AuthorDid   string
	CreatedAt   time.Time
	RepostCount int64
	Domains     []string
	RepostUri   string // the account's own repost record, set only for reposts
	Text        string
	IndexedAt   time.Time
}

// IsRepost reports whether deleting this item means deleting the account's
// repost record rather than the post itself.
func (p Post) IsRepost() bool {
	return p.RepostUri != ""
}

// Like is one of the account's like records. Uri identifies the like record
// itself (the id needed to unlike); TargetUri is the liked post.
type Like struct {
	Uri       string
	TargetUri string
	TargetCid string
	CreatedAt time.Time
}

// OwnedBy reports whether the like targets a record in the given account's
// own repo, i.e. whether it is a self-like.
func (l Like) OwnedBy(did string) bool {
	return did != "" && strings.HasPrefix(l.TargetUri, "at://"+did+"/")
}

// CandidateSet is one run's snapshot of the account, as gathered by the
// collector. The incomplete flags record that a page fetch failed and the
// collection was truncated; the engine must not schedule deletions against
// ambiguous data.
type CandidateSet struct {
	AccountDid      string
	Likes           []Like
	Posts           []Post
	LikesIncomplete bool
	PostsIncomplete bool

	// Last page cursors observed, surfaced for operational reuse: a future
	// run can seed fixed_likes_cursor from them.
	LastLikesCursor string
	LastPostsCursor string
}

type Reason string

const (
	ReasonStale Reason = "stale"
	ReasonViral Reason = "viral"
)

// PostDeletion is one planned deletion together with the rule that selected it.
type PostDeletion struct {
	Post   Post
	Reason Reason
}

// PlanStats tallies every item the engine examined, bucketed by the rule
// that decided its fate.
type PlanStats struct {
	PostsExamined          int
	LikesExamined          int
	RetainedSelfLiked      int
	RetainedProtected      int
	RetainedFresh          int
	StalePosts             int
	ViralPosts             int
	RetainedPreservingLike int
	RetainedFreshLikes     int
}

// DeletionPlan is the engine's output: the exact, ordered, duplicate-free
// sets of mutations for one run. SelectionSkipped is set when incomplete
// collections forced the engine to withhold some or all deletions.
type DeletionPlan struct {
	LikesToRemove    []Like
	PostsToDelete    []PostDeletion
	Stats            PlanStats
	SelectionSkipped bool
}

func (p DeletionPlan) Empty() bool {
	return len(p.LikesToRemove) == 0 && len(p.PostsToDelete) == 0
}

// RunSummary is the unit of observability a run returns to its caller:
// final tallies only, never item-level errors.
type RunSummary struct {
	RunId          string
	StartedAt      time.Time
	FinishedAt     time.Time
	ArchivePath    string
	Stats          PlanStats
	Unliked        int
	UnlikeFailures int
	Deleted        int
	DeleteFailures int
	Incomplete     bool
	Confirmed      bool
}

// Failed reports the exit contract: a run fails when any mutation failed or
// a collection was aborted incomplete.
func (s RunSummary) Failed() bool {
	return s.UnlikeFailures > 0 || s.DeleteFailures > 0 || s.Incomplete
}
