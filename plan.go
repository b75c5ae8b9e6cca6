package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"skeetsweep/cli"
	"skeetsweep/client"
	"skeetsweep/collector"
	"skeetsweep/engine"
	"skeetsweep/models"
	"skeetsweep/policy"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what a run would delete, without changing anything",
	Long: `Collect the account's likes and posts and print the deletion plan the
configured thresholds would produce. Nothing is archived, deleted, or
written to local state.`,
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

		pol, err := policy.New(cfg.MaxReposts, cfg.StaleLimitDays, cfg.ProtectedDomains)
		if err != nil {
			return err
		}

		ctx := cli.SignalContext()
		bsky := client.NewBluesky(cfg.Handle, cfg.Password, cfg.PdsUrl)
		if err := bsky.Authenticate(ctx); err != nil {
			return err
		}

		set := collector.New(bsky, cfg.FixedLikesCursor).Collect(ctx)
		plan := engine.New(pol).BuildPlan(set, time.Now())
		if set.LastLikesCursor != "" {
			fmt.Printf("Last likes cursor: %s (reusable as fixed_likes_cursor)\n", set.LastLikesCursor)
		}
		printPlan(plan)

		if plan.SelectionSkipped {
			return fmt.Errorf("collection was incomplete; the plan is partial or withheld")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func printPlan(plan models.DeletionPlan) {
	for _, like := range plan.LikesToRemove {
		fmt.Printf("unlike  stale  %s\n", like.Uri)
	}
	for _, deletion := range plan.PostsToDelete {
		uri := deletion.Post.Uri
		if deletion.Post.IsRepost() {
			uri = deletion.Post.RepostUri
		}
		fmt.Printf("delete  %s  %s\n", deletion.Reason, uri)
	}

	stats := plan.Stats
	fmt.Printf("Examined %d posts and %d likes.\n", stats.PostsExamined, stats.LikesExamined)
	fmt.Printf("Would remove %d likes and delete %d posts (%d stale, %d viral).\n",
		len(plan.LikesToRemove), len(plan.PostsToDelete), stats.StalePosts, stats.ViralPosts)
	fmt.Printf("Retained: %d self-liked, %d protected, %d fresh posts; %d likes preserving a post, %d fresh likes.\n",
		stats.RetainedSelfLiked, stats.RetainedProtected, stats.RetainedFresh,
		stats.RetainedPreservingLike, stats.RetainedFreshLikes)
}
