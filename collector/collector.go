// Package collector gathers the candidate set for one maintenance run by
// paging through the account's like records and authored feed.
package collector

import (
	"context"

	log "github.com/sirupsen/logrus"

	"skeetsweep/models"
	"skeetsweep/monitoring"
)

// PageFetcher is the slice of the account client the collector consumes.
type PageFetcher interface {
	Did() string
	FetchLikesPage(ctx context.Context, cursor string) ([]models.Like, string, error)
	FetchAuthoredPage(ctx context.Context, cursor string) ([]models.Post, string, error)
}

// Collector pages the account's collections to exhaustion, newest first.
// A page failure truncates that collection and marks it incomplete; retry
// policy belongs to the transport, not here.
type Collector struct {
	client PageFetcher

	// fixedLikesCursor, when set, stops likes pagination as soon as the
	// server hands back this cursor. The likes listing cycles forever on
	// some accounts; a fixed cursor is the operator's stop marker, and
	// reaching it counts as a complete collection.
	fixedLikesCursor string
}

func New(client PageFetcher, fixedLikesCursor string) *Collector {
	return &Collector{
		client:           client,
		fixedLikesCursor: fixedLikesCursor,
	}
}

// Collect gathers both collections. It always returns a usable set;
// truncation is reported through the incomplete flags, never as an error.
func (c *Collector) Collect(ctx context.Context) models.CandidateSet {
	set := models.CandidateSet{AccountDid: c.client.Did()}

	set.Likes, set.LastLikesCursor, set.LikesIncomplete = c.collectLikes(ctx)
	set.Posts, set.LastPostsCursor, set.PostsIncomplete = c.collectPosts(ctx)

	log.Infof(
		"Collected %d likes and %d authored items for %s",
		len(set.Likes), len(set.Posts), set.AccountDid,
	)
	if set.LastLikesCursor != "" {
		log.Infof("Last likes cursor: %s", set.LastLikesCursor)
	}
	return set
}

func (c *Collector) collectLikes(ctx context.Context) ([]models.Like, string, bool) {
	var likes []models.Like
	seen := make(map[string]bool)
	lastCursor := ""

	cursor := ""
	for {
		page, next, err := c.client.FetchLikesPage(ctx, cursor)
		if err != nil {
			log.Errorf("Error fetching likes page: %v", err)
			return likes, lastCursor, true
		}

		for _, like := range page {
			if seen[like.Uri] {
				log.Debugf("Duplicate like record '%s' skipped", like.Uri)
				continue
			}
			seen[like.Uri] = true
			likes = append(likes, like)
		}

		monitoring.PagesFetched.WithLabelValues("likes").Inc()
		monitoring.ItemsCollected.WithLabelValues("likes").Add(float64(len(page)))
		log.Debugf("Likes cursor at: %s", next)

		if next == "" {
			return likes, lastCursor, false
		}
		lastCursor = next
		if c.fixedLikesCursor != "" && next == c.fixedLikesCursor {
			return likes, lastCursor, false
		}
		cursor = next
	}
}

func (c *Collector) collectPosts(ctx context.Context) ([]models.Post, string, bool) {
	var posts []models.Post
	seen := make(map[string]bool)
	lastCursor := ""

	cursor := ""
	for {
		page, next, err := c.client.FetchAuthoredPage(ctx, cursor)
		if err != nil {
			log.Errorf("Error fetching author feed page: %v", err)
			return posts, lastCursor, true
		}

		for _, post := range page {
			// A post and the account's repost of that same post are
			// distinct candidates; the deletable record tells them apart.
			key := post.Uri
			if post.IsRepost() {
				key = post.RepostUri
			}
			if seen[key] {
				log.Debugf("Duplicate feed item '%s' skipped", key)
				continue
			}
			seen[key] = true
			posts = append(posts, post)
		}

		monitoring.PagesFetched.WithLabelValues("posts").Inc()
		monitoring.ItemsCollected.WithLabelValues("posts").Add(float64(len(page)))
		log.Debugf("Author feed cursor at: %s", next)

		if next == "" {
			return posts, lastCursor, false
		}
		lastCursor = next
		cursor = next
	}
}
