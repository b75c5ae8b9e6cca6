package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/identity"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/bluesky-social/indigo/xrpc"
	log "github.com/sirupsen/logrus"

	"skeetsweep/models"
	"skeetsweep/utils"
)

const (
	requestTimeout = 120 * time.Second
	pageLimit      = int64(100)

	// getAuthorFeed filter that returns everything the account authored:
	// posts, replies and reposts.
	authorFeedFilter = "posts_with_replies"
)

// Bluesky implements AccountClient against the atproto XRPC API.
type Bluesky struct {
	handle   string
	password string
	pdsUrl   string

	httpClient *http.Client
	client     *xrpc.Client
	did        string
}

// NewBluesky returns an unauthenticated client. pdsUrl may be empty, in
// which case the account's PDS is resolved from its handle at login.
func NewBluesky(handle, password, pdsUrl string) *Bluesky {
	return &Bluesky{
		handle:     handle,
		password:   password,
		pdsUrl:     pdsUrl,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Authenticate resolves the account's PDS (unless one was configured) and
// opens a session. Every later call reuses the session's access token.
func (b *Bluesky) Authenticate(ctx context.Context) error {
	host := b.pdsUrl
	identifier := b.handle

	if host == "" {
		atid, err := syntax.ParseAtIdentifier(b.handle)
		if err != nil {
			return &AuthError{Handle: b.handle, Err: err}
		}
		ident, err := identity.DefaultDirectory().Lookup(ctx, *atid)
		if err != nil {
			return &AuthError{Handle: b.handle, Err: err}
		}
		host = ident.PDSEndpoint()
		if host == "" {
			return &AuthError{Handle: b.handle, Err: fmt.Errorf("no PDS endpoint on identity")}
		}
		identifier = ident.DID.String()
	}

	session, err := comatproto.ServerCreateSession(
		ctx,
		&xrpc.Client{Host: host, Client: b.httpClient},
		&comatproto.ServerCreateSession_Input{
			Identifier: identifier,
			Password:   b.password,
		},
	)
	if err != nil {
		return &AuthError{Handle: b.handle, Err: err}
	}

	b.client = &xrpc.Client{
		Host:   host,
		Client: b.httpClient,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  session.AccessJwt,
			RefreshJwt: session.RefreshJwt,
			Handle:     session.Handle,
			Did:        session.Did,
		},
	}
	b.did = session.Did

	log.Infof("Authenticated as '%s' (%s) on %s", session.Handle, session.Did, host)
	return nil
}

// Did returns the authenticated account's DID, or "" before Authenticate.
func (b *Bluesky) Did() string {
	return b.did
}

// FetchLikesPage returns one page of the account's like records, newest
// first, and the cursor for the next page ("" when exhausted).
func (b *Bluesky) FetchLikesPage(ctx context.Context, cursor string) ([]models.Like, string, error) {
	response, err := comatproto.RepoListRecords(
		ctx, b.client, LikesCollection, cursor, pageLimit, b.did, false, "", "",
	)
	if err != nil {
		return nil, "", err
	}

	likes := make([]models.Like, 0, len(response.Records))
	for _, record := range response.Records {
		if record.Value == nil {
			continue
		}
		like, ok := record.Value.Val.(*appbsky.FeedLike)
		if !ok || like.Subject == nil {
			log.Errorf("Skipping malformed like record '%s'", record.Uri)
			continue
		}
		createdAt, err := dateparse.ParseAny(like.CreatedAt)
		if err != nil {
			log.Errorf("Error parsing created at: %s", err)
			continue
		}
		likes = append(likes, models.Like{
			Uri:       record.Uri,
			TargetUri: like.Subject.Uri,
			TargetCid: like.Subject.Cid,
			CreatedAt: createdAt.UTC(),
		})
	}

	next := ""
	if response.Cursor != nil {
		next = *response.Cursor
	}
	return likes, next, nil
}

// FetchAuthoredPage returns one page of the account's feed (posts, replies
// and reposts), newest first, and the cursor for the next page. Items that
// cannot be converted are logged and skipped; they are never candidates.
func (b *Bluesky) FetchAuthoredPage(ctx context.Context, cursor string) ([]models.Post, string, error) {
	response, err := appbsky.FeedGetAuthorFeed(
		ctx, b.client, b.did, cursor, authorFeedFilter, false, pageLimit,
	)
	if err != nil {
		return nil, "", err
	}

	posts := make([]models.Post, 0, len(response.Feed))
	for _, item := range response.Feed {
		if item.Post == nil {
			continue
		}
		post, err := b.postFromView(item)
		if err != nil {
			log.Errorf("Skipping feed item '%s': %v", item.Post.Uri, err)
			continue
		}
		posts = append(posts, post)
	}

	next := ""
	if response.Cursor != nil {
		next = *response.Cursor
	}
	return posts, next, nil
}

func (b *Bluesky) postFromView(item *appbsky.FeedDefs_FeedViewPost) (models.Post, error) {
	view := item.Post

	if view.Record == nil || view.Record.Val == nil {
		return models.Post{}, fmt.Errorf("missing record")
	}
	record, ok := view.Record.Val.(*appbsky.FeedPost)
	if !ok {
		return models.Post{}, fmt.Errorf("unexpected record type %T", view.Record.Val)
	}

	createdAt, err := dateparse.ParseAny(record.CreatedAt)
	if err != nil {
		return models.Post{}, fmt.Errorf("error parsing created at: %w", err)
	}

	post := models.Post{
		Uri:       view.Uri,
		Cid:       view.Cid,
		CreatedAt: createdAt.UTC(),
		Text:      record.Text,
		Domains:   extractDomains(view, record),
	}
	if view.Author != nil {
		post.AuthorDid = view.Author.Did
	}
	if view.RepostCount != nil {
		post.RepostCount = *view.RepostCount
	}
	if indexedAt, err := dateparse.ParseAny(view.IndexedAt); err == nil {
		post.IndexedAt = indexedAt.UTC()
	}

	if item.Reason != nil && item.Reason.FeedDefs_ReasonRepost != nil {
		// For reposts the deletable record is the account's own repost,
		// which the viewer state points at.
		if view.Viewer == nil || view.Viewer.Repost == nil || *view.Viewer.Repost == "" {
			return models.Post{}, fmt.Errorf("repost without own repost uri in viewer state")
		}
		post.RepostUri = *view.Viewer.Repost
	} else if post.AuthorDid != b.did {
		return models.Post{}, fmt.Errorf("foreign post '%s' in author feed", view.Uri)
	}

	return post, nil
}

// extractDomains collects the lower-cased hosts a post links out to, from
// the external embed (record and hydrated view) and from richtext link
// facets. Order follows discovery, duplicates are dropped.
func extractDomains(view *appbsky.FeedDefs_PostView, record *appbsky.FeedPost) []string {
	seen := make(map[string]bool)
	var domains []string

	add := func(raw string) {
		parsed, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			return
		}
		host := strings.ToLower(parsed.Hostname())
		if host == "" || seen[host] {
			return
		}
		seen[host] = true
		domains = append(domains, host)
	}

	if record.Embed != nil {
		if record.Embed.EmbedExternal != nil && record.Embed.EmbedExternal.External != nil {
			add(record.Embed.EmbedExternal.External.Uri)
		}
		if record.Embed.EmbedRecordWithMedia != nil &&
			record.Embed.EmbedRecordWithMedia.Media != nil &&
			record.Embed.EmbedRecordWithMedia.Media.EmbedExternal != nil &&
			record.Embed.EmbedRecordWithMedia.Media.EmbedExternal.External != nil {
			add(record.Embed.EmbedRecordWithMedia.Media.EmbedExternal.External.Uri)
		}
	}
	for _, facet := range record.Facets {
		for _, feature := range facet.Features {
			if feature.RichtextFacet_Link != nil {
				add(feature.RichtextFacet_Link.Uri)
			}
		}
	}
	if view.Embed != nil && view.Embed.EmbedExternal_View != nil &&
		view.Embed.EmbedExternal_View.External != nil {
		add(view.Embed.EmbedExternal_View.External.Uri)
	}

	return domains
}

// FetchRepo downloads the account's full repo as a CAR file.
func (b *Bluesky) FetchRepo(ctx context.Context) ([]byte, error) {
	return comatproto.SyncGetRepo(ctx, b.client, b.did, "")
}

// ListBlobs returns one page of the cids of all blobs the account's repo
// references, and the cursor for the next page ("" when exhausted).
func (b *Bluesky) ListBlobs(ctx context.Context, cursor string) ([]string, string, error) {
	response, err := comatproto.SyncListBlobs(ctx, b.client, cursor, b.did, pageLimit, "")
	if err != nil {
		return nil, "", err
	}
	next := ""
	if response.Cursor != nil {
		next = *response.Cursor
	}
	return response.Cids, next, nil
}

// FetchBlob downloads a single blob by cid.
func (b *Bluesky) FetchBlob(ctx context.Context, cid string) ([]byte, error) {
	return comatproto.SyncGetBlob(ctx, b.client, cid, b.did)
}

func (b *Bluesky) deleteRecord(ctx context.Context, op, collection, uri string) error {
	did, rkey, err := utils.SplitUri(uri, "/"+collection+"/")
	if err != nil {
		return &MutationError{Op: op, Uri: uri, Err: err}
	}
	if did != b.did {
		return &MutationError{
			Op:  op,
			Uri: uri,
			Err: fmt.Errorf("record belongs to '%s', not to the authenticated account", did),
		}
	}

	_, err = comatproto.RepoDeleteRecord(ctx, b.client, &comatproto.RepoDeleteRecord_Input{
		Collection: collection,
		Repo:       b.did,
		Rkey:       rkey,
	})
	if err != nil {
		return &MutationError{Op: op, Uri: uri, Err: err}
	}
	return nil
}

// Unlike deletes one of the account's like records.
func (b *Bluesky) Unlike(ctx context.Context, likeUri string) error {
	return b.deleteRecord(ctx, "unlike", LikesCollection, likeUri)
}

// DeletePost deletes one of the account's posts.
func (b *Bluesky) DeletePost(ctx context.Context, postUri string) error {
	return b.deleteRecord(ctx, "delete post", PostsCollection, postUri)
}

// DeleteRepost deletes one of the account's repost records, leaving the
// reposted subject untouched.
func (b *Bluesky) DeleteRepost(ctx context.Context, repostUri string) error {
	return b.deleteRecord(ctx, "delete repost", RepostsCollection, repostUri)
}
