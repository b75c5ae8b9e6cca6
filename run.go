package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"skeetsweep/archive"
	"skeetsweep/cli"
	"skeetsweep/client"
	"skeetsweep/collector"
	"skeetsweep/config"
	"skeetsweep/engine"
	"skeetsweep/executor"
	"skeetsweep/models"
	"skeetsweep/monitoring"
	"skeetsweep/policy"
	"skeetsweep/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Archive the account, then delete per the configured thresholds",
	Long: `Run one maintenance pass: download and verify a full archive of the
account, collect its likes and authored posts, select what the thresholds
condemn, confirm, and delete. The archive always completes before the first
deletion; if archiving fails nothing is deleted.

With archive_only (or both thresholds at 0 and archive_only set) the run
stops after the archive.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := setupLogging(cfg); err != nil {
			return err
		}
		if err := cfg.RequireCredentials(); err != nil {
			return err
		}

		st, err := store.Open(cfg.DatabasePath())
		if err != nil {
			return err
		}
		defer st.Close()
		logPreviousRun(st)

		ctx := cli.SignalContext()
		summary, err := runPipeline(ctx, cfg, st, true)
		if err != nil {
			return err
		}

		printSummary(summary)
		if summary.Failed() {
			return fmt.Errorf("run %s finished with failures", summary.RunId)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runPipeline performs one full maintenance run: archive and verify, then
// collect, select, execute and record. Interactive runs render progress bars
// and prompt before mutating; scheduled runs do neither.
func runPipeline(ctx context.Context, cfg *config.Config, st *store.Store, interactive bool) (models.RunSummary, error) {
	pol, err := policy.New(cfg.MaxReposts, cfg.StaleLimitDays, cfg.ProtectedDomains)
	if err != nil {
		if !errors.Is(err, policy.ErrNoThresholds) || !cfg.ArchiveOnly {
			return models.RunSummary{}, err
		}
		pol = nil
	}

	bsky := client.NewBluesky(cfg.Handle, cfg.Password, cfg.PdsUrl)
	if err := bsky.Authenticate(ctx); err != nil {
		return models.RunSummary{}, err
	}

	progress := cli.ProgressReporter(cli.NopProgress{})
	if interactive {
		progress = cli.NewBarProgress(os.Stderr)
	}

	startedAt := time.Now().UTC()
	archiver := archive.New(bsky, cfg.ArchiveDir, progress)
	carPath, err := archiver.Pull(ctx, startedAt)
	if err != nil {
		return models.RunSummary{}, fmt.Errorf("archive failed, nothing was deleted: %w", err)
	}
	if _, err := archiver.Verify(ctx, carPath); err != nil {
		return models.RunSummary{}, fmt.Errorf("archive verification failed, nothing was deleted: %w", err)
	}

	if pol == nil || cfg.ArchiveOnly {
		summary := models.RunSummary{
			RunId:       uuid.NewString(),
			StartedAt:   startedAt,
			FinishedAt:  time.Now().UTC(),
			ArchivePath: carPath,
			Confirmed:   true,
		}
		if err := st.RecordRun(ctx, summary, "archive-only"); err != nil {
			log.Errorf("Recording run failed: %v", err)
		}
		observeRun(summary)
		return summary, nil
	}

	set := collector.New(bsky, cfg.FixedLikesCursor).Collect(ctx)
	rememberCursors(ctx, st, set)

	plan := engine.New(pol).BuildPlan(set, time.Now())
	if interactive {
		if set.LastLikesCursor != "" {
			fmt.Printf("Last likes cursor: %s (reusable as fixed_likes_cursor)\n", set.LastLikesCursor)
		}
		fmt.Printf("Found %d likes to remove and %d posts to delete.\n",
			len(plan.LikesToRemove), len(plan.PostsToDelete))
	}

	runId := uuid.NewString()
	driver := executor.New(bsky, executor.Options{
		RunId:       runId,
		AutoConfirm: cfg.AutoConfirm,
		Progress:    progress,
		Audit:       st.AuditRecorder(runId),
	})
	summary := driver.Execute(ctx, plan)
	summary.ArchivePath = carPath

	if err := st.RecordRun(ctx, summary, pol.String()); err != nil {
		log.Errorf("Recording run failed: %v", err)
	}
	observeRun(summary)
	return summary, nil
}

func rememberCursors(ctx context.Context, st *store.Store, set models.CandidateSet) {
	if err := st.SaveCursor(ctx, client.LikesCollection, set.LastLikesCursor); err != nil {
		log.Errorf("Saving likes cursor failed: %v", err)
	}
	if err := st.SaveCursor(ctx, client.PostsCollection, set.LastPostsCursor); err != nil {
		log.Errorf("Saving posts cursor failed: %v", err)
	}
}

func observeRun(summary models.RunSummary) {
	outcome := "success"
	if summary.Failed() {
		outcome = "failure"
	}
	monitoring.RunsTotal.WithLabelValues(outcome).Inc()
	monitoring.RunDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
}

func logPreviousRun(st *store.Store) {
	ctx := context.Background()
	if records, err := st.RecentRuns(ctx, 1); err == nil && len(records) > 0 {
		previous := records[0].Summary
		log.Debugf("Previous run %s finished %s: %d unliked, %d deleted",
			previous.RunId, previous.FinishedAt.Format(time.RFC3339), previous.Unliked, previous.Deleted)
	}
	if cursor, err := st.LastCursor(ctx, client.LikesCollection); err == nil && cursor != "" {
		log.Debugf("Likes cursor on record from earlier runs: %s", cursor)
	}
}

func printSummary(summary models.RunSummary) {
	fmt.Printf("Archived to %s\n", summary.ArchivePath)
	fmt.Printf("Unliked %d (%d failed), deleted %d (%d failed).\n",
		summary.Unliked, summary.UnlikeFailures, summary.Deleted, summary.DeleteFailures)
	if summary.Incomplete {
		fmt.Println("The run was incomplete: some collections or mutations were cut short.")
	}
}
