// Package engine decides which of the account's posts and likes a run
// deletes, applying the retention policy to one collected candidate set.
package engine

import (
	"time"

	log "github.com/sirupsen/logrus"

	"skeetsweep/models"
	"skeetsweep/policy"
)

// Engine turns candidate sets into deletion plans. It is deterministic:
// the same set and clock always produce the identical plan.
type Engine struct {
	policy *policy.Policy
}

func New(p *policy.Policy) *Engine {
	return &Engine{policy: p}
}

// BuildPlan classifies every candidate, in input order.
//
// A post survives when the account self-liked it (that overrides every
// deletion rule), or when it links to a protected domain; otherwise it is
// deleted when stale or viral. A like is removed when stale, unless it is
// itself the self-like preserving a post.
//
// Incomplete collections poison deletions: without the full like set the
// preservation join is unreliable, so nothing at all is selected; with only
// the posts truncated, likes are still processed but no post is deleted.
func (e *Engine) BuildPlan(set models.CandidateSet, now time.Time) models.DeletionPlan {
	plan := models.DeletionPlan{}
	plan.Stats.PostsExamined = len(set.Posts)
	plan.Stats.LikesExamined = len(set.Likes)

	if set.LikesIncomplete {
		log.Warn("Likes collection is incomplete; selecting nothing this run")
		plan.SelectionSkipped = true
		return plan
	}

	selfLiked := make(map[string]bool)
	for _, like := range set.Likes {
		if like.OwnedBy(set.AccountDid) {
			selfLiked[like.TargetUri] = true
		}
	}

	if set.PostsIncomplete {
		log.Warn("Posts collection is incomplete; skipping post deletions this run")
		plan.SelectionSkipped = true
	} else {
		for _, post := range set.Posts {
			switch {
			case selfLiked[post.Uri]:
				plan.Stats.RetainedSelfLiked++
			case e.policy.TouchesProtectedDomain(post.Domains):
				plan.Stats.RetainedProtected++
			case e.policy.IsStale(post.CreatedAt, now):
				plan.Stats.StalePosts++
				plan.PostsToDelete = append(plan.PostsToDelete, models.PostDeletion{
					Post:   post,
					Reason: models.ReasonStale,
				})
			case e.policy.IsViral(post.RepostCount):
				plan.Stats.ViralPosts++
				plan.PostsToDelete = append(plan.PostsToDelete, models.PostDeletion{
					Post:   post,
					Reason: models.ReasonViral,
				})
			default:
				plan.Stats.RetainedFresh++
			}
		}
	}

	for _, like := range set.Likes {
		switch {
		case selfLiked[like.TargetUri]:
			plan.Stats.RetainedPreservingLike++
		case e.policy.IsStale(like.CreatedAt, now):
			plan.LikesToRemove = append(plan.LikesToRemove, like)
		default:
			plan.Stats.RetainedFreshLikes++
		}
	}

	log.Infof(
		"Planned %d unlikes and %d deletions (%d stale, %d viral); retained %d self-liked, %d protected, %d fresh",
		len(plan.LikesToRemove), len(plan.PostsToDelete),
		plan.Stats.StalePosts, plan.Stats.ViralPosts,
		plan.Stats.RetainedSelfLiked, plan.Stats.RetainedProtected, plan.Stats.RetainedFresh,
	)
	return plan
}
