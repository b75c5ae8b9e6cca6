// Package archive downloads the account's full repo as a CAR file plus every
// referenced blob before any deletion runs. The archive is the only surviving
// copy of the content once mutations execute, so a failed or unverifiable
// archive aborts the run.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/repo"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ipfs/go-cid"
	log "github.com/sirupsen/logrus"
	"github.com/whyrusleeping/cbor-gen"

	"skeetsweep/cli"
	"skeetsweep/monitoring"
)

const blobSubdir = "_blob"

// Fetcher is the slice of the account client the archiver needs.
type Fetcher interface {
	Did() string
	FetchRepo(ctx context.Context) ([]byte, error)
	ListBlobs(ctx context.Context, cursor string) ([]string, string, error)
	FetchBlob(ctx context.Context, cid string) ([]byte, error)
}

// Archiver writes snapshots of one account under a local directory tree:
//
//	<dir>/<did>/bsky-archive-<timestamp>.car
//	<dir>/<did>/_blob/<cid><ext>
type Archiver struct {
	client   Fetcher
	dir      string
	progress cli.ProgressReporter
}

func New(client Fetcher, dir string, progress cli.ProgressReporter) *Archiver {
	if progress == nil {
		progress = cli.NopProgress{}
	}
	return &Archiver{client: client, dir: dir, progress: progress}
}

// Pull downloads the account's repo and every blob it references, and
// returns the path of the written CAR file.
func (a *Archiver) Pull(ctx context.Context, now time.Time) (string, error) {
	did := a.client.Did()
	accountDir := AccountDir(a.dir, did)
	if err := os.MkdirAll(filepath.Join(accountDir, blobSubdir), 0o755); err != nil {
		return "", fmt.Errorf("creating archive directory: %w", err)
	}

	log.Infof("Downloading repo for '%s'", did)
	repoBytes, err := a.client.FetchRepo(ctx)
	if err != nil {
		return "", fmt.Errorf("downloading repo: %w", err)
	}

	carPath := CarPath(a.dir, did, now)
	if err := os.WriteFile(carPath, repoBytes, 0o644); err != nil {
		return "", fmt.Errorf("writing archive: %w", err)
	}
	monitoring.ArchiveBytes.Add(float64(len(repoBytes)))
	log.Infof("Wrote %s (%d bytes)", carPath, len(repoBytes))

	if err := a.pullBlobs(ctx, accountDir); err != nil {
		return "", err
	}
	return carPath, nil
}

func (a *Archiver) pullBlobs(ctx context.Context, accountDir string) error {
	cids, err := a.listAllBlobs(ctx)
	if err != nil {
		return fmt.Errorf("listing blobs: %w", err)
	}
	if len(cids) == 0 {
		return nil
	}

	log.Infof("Downloading %d blobs", len(cids))
	a.progress.Start(int64(len(cids)))
	for i, blobCid := range cids {
		if err := ctx.Err(); err != nil {
			return err
		}

		blob, err := a.client.FetchBlob(ctx, blobCid)
		if err != nil {
			return fmt.Errorf("downloading blob '%s': %w", blobCid, err)
		}
		name := blobCid + extensionFor(blob)
		if err := os.WriteFile(filepath.Join(accountDir, blobSubdir, name), blob, 0o644); err != nil {
			return fmt.Errorf("writing blob '%s': %w", name, err)
		}

		monitoring.ArchivedBlobs.Inc()
		monitoring.ArchiveBytes.Add(float64(len(blob)))
		a.progress.Update(int64(i + 1))
	}
	a.progress.Finish()
	return nil
}

func (a *Archiver) listAllBlobs(ctx context.Context) ([]string, error) {
	var cids []string
	cursor := ""
	for {
		page, next, err := a.client.ListBlobs(ctx, cursor)
		if err != nil {
			return nil, err
		}
		cids = append(cids, page...)
		if next == "" {
			return cids, nil
		}
		cursor = next
	}
}

// Manifest counts the records found while re-reading a written archive.
type Manifest struct {
	Did     string
	Posts   int
	Likes   int
	Reposts int
	Follows int
	Others  int
}

func (m Manifest) Records() int {
	return m.Posts + m.Likes + m.Reposts + m.Follows + m.Others
}

func (m Manifest) String() string {
	return fmt.Sprintf("%d posts, %d likes, %d reposts, %d follows, %d other records",
		m.Posts, m.Likes, m.Reposts, m.Follows, m.Others)
}

func (m *Manifest) count(record typegen.CBORMarshaler) {
	switch record.(type) {
	case *appbsky.FeedPost:
		m.Posts++
	case *appbsky.FeedLike:
		m.Likes++
	case *appbsky.FeedRepost:
		m.Reposts++
	case *appbsky.GraphFollow:
		m.Follows++
	default:
		m.Others++
	}
}

// Verify re-reads a written CAR file and walks every record in it, proving
// the archive is a usable copy before any deletion is allowed to run.
func (a *Archiver) Verify(ctx context.Context, carPath string) (Manifest, error) {
	manifest := Manifest{}

	carBytes, err := os.ReadFile(carPath)
	if err != nil {
		return manifest, fmt.Errorf("reading archive: %w", err)
	}
	repoData, err := repo.ReadRepoFromCar(ctx, bytes.NewReader(carBytes))
	if err != nil {
		return manifest, fmt.Errorf("parsing archive %s: %w", carPath, err)
	}

	manifest.Did = repoData.RepoDid()
	if did := a.client.Did(); did != "" && manifest.Did != did {
		return manifest, fmt.Errorf("archive %s belongs to '%s', not '%s'", carPath, manifest.Did, did)
	}

	err = repoData.ForEach(ctx, "", func(k string, v cid.Cid) error {
		_, record, err := repoData.GetRecord(ctx, k)
		if err != nil {
			return fmt.Errorf("reading record '%s': %w", k, err)
		}
		manifest.count(record)
		return nil
	})
	if err != nil {
		return manifest, err
	}

	log.Infof("Verified %s: %s", carPath, manifest)
	return manifest, nil
}

// AccountDir is the per-account directory under the archive root. Colons in
// the did are replaced so the name stays a legal filename everywhere.
func AccountDir(dir, did string) string {
	return filepath.Join(dir, strings.ReplaceAll(did, ":", "_"))
}

// CarPath names one archive snapshot. The timestamp keeps RFC 3339 ordering
// after the same colon replacement.
func CarPath(dir, did string, now time.Time) string {
	stamp := strings.ReplaceAll(now.UTC().Format(time.RFC3339), ":", "_")
	return filepath.Join(AccountDir(dir, did), "bsky-archive-"+stamp+".car")
}

func extensionFor(blob []byte) string {
	return mimetype.Detect(blob).Extension()
}
