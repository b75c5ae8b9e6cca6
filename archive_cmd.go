package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"skeetsweep/archive"
	"skeetsweep/cli"
	"skeetsweep/client"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Download the account's repo and blobs, deleting nothing",
	Long: `Download the account's full repo as a CAR file plus every blob it
references, then verify the written archive by re-reading it. No thresholds
are required and nothing is deleted.`,
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

		ctx := cli.SignalContext()
		bsky := client.NewBluesky(cfg.Handle, cfg.Password, cfg.PdsUrl)
		if err := bsky.Authenticate(ctx); err != nil {
			return err
		}

		archiver := archive.New(bsky, cfg.ArchiveDir, cli.NewBarProgress(os.Stderr))
		carPath, err := archiver.Pull(ctx, time.Now())
		if err != nil {
			return err
		}
		manifest, err := archiver.Verify(ctx, carPath)
		if err != nil {
			return err
		}

		fmt.Printf("Archived to %s (%s)\n", carPath, manifest)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}
