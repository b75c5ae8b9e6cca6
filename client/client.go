// Package client wraps the Bluesky XRPC API behind the narrow surface the
// rest of the tool consumes: session auth, paginated reads of the account's
// records, repo and blob downloads, and the three record deletions a
// maintenance run performs.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bluesky-social/indigo/xrpc"

	"skeetsweep/models"
)

const (
	LikesCollection   = "app.bsky.feed.like"
	PostsCollection   = "app.bsky.feed.post"
	RepostsCollection = "app.bsky.feed.repost"
)

// AccountClient is everything a maintenance run needs from the network.
// Consumers should accept the subset of methods they actually use.
type AccountClient interface {
	Authenticate(ctx context.Context) error
	Did() string

	FetchLikesPage(ctx context.Context, cursor string) ([]models.Like, string, error)
	FetchAuthoredPage(ctx context.Context, cursor string) ([]models.Post, string, error)

	FetchRepo(ctx context.Context) ([]byte, error)
	ListBlobs(ctx context.Context, cursor string) ([]string, string, error)
	FetchBlob(ctx context.Context, cid string) ([]byte, error)

	Unlike(ctx context.Context, likeUri string) error
	DeletePost(ctx context.Context, postUri string) error
	DeleteRepost(ctx context.Context, repostUri string) error
}

// AuthError reports a failed login. It is fatal: nothing is collected or
// mutated without a session.
type AuthError struct {
	Handle string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for '%s': %v", e.Handle, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// MutationError reports one failed deletion. Mutations are independent, so
// callers count these and move on rather than aborting the run.
type MutationError struct {
	Op  string
	Uri string
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s failed for '%s': %v", e.Op, e.Uri, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// RatelimitExhausted reports whether err is an XRPC response whose rate
// limit allowance is spent, and when the allowance resets.
func RatelimitExhausted(err error) (time.Time, bool) {
	var bskyErr *xrpc.Error
	if errors.As(err, &bskyErr) && bskyErr.Ratelimit != nil && bskyErr.Ratelimit.Remaining == 0 {
		return bskyErr.Ratelimit.Reset, true
	}
	return time.Time{}, false
}
