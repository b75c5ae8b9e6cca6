// Package executor applies a deletion plan to the live account. Unlikes run
// before post deletions, both in plan order, and every mutation stands alone:
// a failed item is logged and counted, never a reason to abort the run.
package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"skeetsweep/cli"
	"skeetsweep/client"
	"skeetsweep/models"
	"skeetsweep/monitoring"
)

const (
	KindUnlike       = "unlike"
	KindDeletePost   = "delete_post"
	KindDeleteRepost = "delete_repost"

	// Like records are only ever removed because they aged out.
	likeRemovalReason = "stale"
)

// Mutator is the slice of the account client the executor needs.
type Mutator interface {
	Unlike(ctx context.Context, likeUri string) error
	DeletePost(ctx context.Context, postUri string) error
	DeleteRepost(ctx context.Context, repostUri string) error
}

// AuditSink receives one entry per attempted mutation, in execution order.
// Implementations must tolerate being called for failed mutations too.
type AuditSink interface {
	MutationExecuted(kind, uri, reason string, err error)
}

// Options configures a Driver. The zero value prompts on stdin/stdout,
// renders no progress and records no audit trail.
type Options struct {
	// RunId identifies the run in logs and audit rows. Generated when empty.
	RunId string

	// AutoConfirm skips the interactive confirmation prompts.
	AutoConfirm bool

	Input    io.Reader
	Output   io.Writer
	Progress cli.ProgressReporter
	Audit    AuditSink
}

// Driver executes deletion plans against an account.
type Driver struct {
	client   Mutator
	opts     Options
	prompter *bufio.Reader
}

func New(mutator Mutator, opts Options) *Driver {
	if opts.RunId == "" {
		opts.RunId = uuid.NewString()
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Progress == nil {
		opts.Progress = cli.NopProgress{}
	}
	return &Driver{
		client:   mutator,
		opts:     opts,
		prompter: bufio.NewReader(opts.Input),
	}
}

// Execute performs the plan's mutations and returns the run's final tallies.
// Each phase is confirmed interactively unless AutoConfirm is set; declining
// a phase skips it without failing the run. Cancelling ctx stops the run
// between items and marks it incomplete.
func (d *Driver) Execute(ctx context.Context, plan models.DeletionPlan) models.RunSummary {
	summary := models.RunSummary{
		RunId:      d.opts.RunId,
		StartedAt:  time.Now().UTC(),
		Stats:      plan.Stats,
		Incomplete: plan.SelectionSkipped,
		Confirmed:  true,
	}

	monitoring.PlannedMutations.WithLabelValues("unlike").Set(float64(len(plan.LikesToRemove)))
	monitoring.PlannedMutations.WithLabelValues("delete").Set(float64(len(plan.PostsToDelete)))

	if plan.Empty() {
		log.Info("Deletion plan is empty, nothing to execute")
		summary.FinishedAt = time.Now().UTC()
		return summary
	}

	d.runPhase(ctx, "unlike", unlikeMutations(plan.LikesToRemove), &summary, &summary.Unliked, &summary.UnlikeFailures)
	d.runPhase(ctx, "delete", deleteMutations(plan.PostsToDelete), &summary, &summary.Deleted, &summary.DeleteFailures)

	summary.FinishedAt = time.Now().UTC()
	log.Infof(
		"Run %s finished: %d unliked (%d failed), %d deleted (%d failed)",
		summary.RunId, summary.Unliked, summary.UnlikeFailures, summary.Deleted, summary.DeleteFailures,
	)
	return summary
}

// mutation is one pending record removal, dispatch already resolved.
type mutation struct {
	kind   string
	uri    string
	reason string
	apply  func(context.Context, Mutator) error
}

func unlikeMutations(likes []models.Like) []mutation {
	muts := make([]mutation, 0, len(likes))
	for _, like := range likes {
		uri := like.Uri
		muts = append(muts, mutation{
			kind:   KindUnlike,
			uri:    uri,
			reason: likeRemovalReason,
			apply: func(ctx context.Context, m Mutator) error {
				return m.Unlike(ctx, uri)
			},
		})
	}
	return muts
}

func deleteMutations(deletions []models.PostDeletion) []mutation {
	muts := make([]mutation, 0, len(deletions))
	for _, deletion := range deletions {
		mut := mutation{reason: string(deletion.Reason)}
		if deletion.Post.IsRepost() {
			uri := deletion.Post.RepostUri
			mut.kind = KindDeleteRepost
			mut.uri = uri
			mut.apply = func(ctx context.Context, m Mutator) error {
				return m.DeleteRepost(ctx, uri)
			}
		} else {
			uri := deletion.Post.Uri
			mut.kind = KindDeletePost
			mut.uri = uri
			mut.apply = func(ctx context.Context, m Mutator) error {
				return m.DeletePost(ctx, uri)
			}
		}
		muts = append(muts, mut)
	}
	return muts
}

func (d *Driver) runPhase(ctx context.Context, phase string, muts []mutation, summary *models.RunSummary, done, failed *int) {
	if len(muts) == 0 {
		return
	}
	if ctx.Err() != nil {
		summary.Incomplete = true
		log.Warnf("Skipping %d planned %ss, run was interrupted", len(muts), phase)
		return
	}

	if !d.confirm(phase, len(muts)) {
		summary.Confirmed = false
		log.Warnf("Skipping %d planned %ss, not confirmed", len(muts), phase)
		return
	}

	log.Infof("Executing %d %ss", len(muts), phase)
	d.opts.Progress.Start(int64(len(muts)))
	for i, mut := range muts {
		if ctx.Err() != nil {
			summary.Incomplete = true
			log.Warnf("Run interrupted, %d %ss not executed", len(muts)-i, phase)
			return
		}

		err := d.applyWithRatelimit(ctx, mut)
		if d.opts.Audit != nil {
			d.opts.Audit.MutationExecuted(mut.kind, mut.uri, mut.reason, err)
		}
		if err != nil {
			*failed++
			monitoring.MutationsTotal.WithLabelValues(phase, "error").Inc()
			log.Errorf("Mutation failed: %v", err)
		} else {
			*done++
			monitoring.MutationsTotal.WithLabelValues(phase, "success").Inc()
			log.Debugf("%s ok: %s", mut.kind, mut.uri)
		}
		d.opts.Progress.Update(int64(i + 1))
	}
	d.opts.Progress.Finish()
}

// applyWithRatelimit performs one mutation, waiting out an exhausted rate
// limit window and retrying once before giving up on the item.
func (d *Driver) applyWithRatelimit(ctx context.Context, mut mutation) error {
	err := mut.apply(ctx, d.client)
	reset, exhausted := client.RatelimitExhausted(err)
	if !exhausted {
		return err
	}

	wait := time.Until(reset)
	if wait < 0 {
		wait = 0
	}
	log.Warnf("Rate limit exhausted, resuming in %s", wait.Round(time.Second))
	select {
	case <-ctx.Done():
		return err
	case <-time.After(wait):
	}
	return mut.apply(ctx, d.client)
}

// confirm asks the operator to approve a phase, matching the tool's
// historical prompt. Only an exact "Y" proceeds and only an exact "n"
// declines; anything else re-asks.
func (d *Driver) confirm(phase string, n int) bool {
	if d.opts.AutoConfirm {
		return true
	}

	plural := ""
	if n != 1 {
		plural = "s"
	}
	for {
		fmt.Fprintf(
			d.opts.Output,
			"Proceed to %s %d post%s? WARNING: THIS IS DESTRUCTIVE AND CANNOT BE UNDONE. Y/n: ",
			phase, n, plural,
		)
		line, err := d.prompter.ReadString('\n')
		answer := strings.TrimSpace(line)
		switch answer {
		case "Y":
			return true
		case "n":
			return false
		}
		if err != nil {
			// Input is gone (EOF or a closed pipe); treat as declined.
			return false
		}
	}
}
