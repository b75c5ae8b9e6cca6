package main

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"skeetsweep/config"
)

var rootFlags struct {
	configPath  string
	verbosity   int
	maxReposts  int
	staleLimit  int
	domains     string
	likesCursor string
	yes         bool
}

var rootCmd = &cobra.Command{
	Use:   "skeetsweep",
	Short: "Archive a Bluesky account, then sweep out stale and viral content",
	Long: `Skeetsweep keeps a Bluesky account tidy on your terms: every run first
downloads the account's full repo and blobs into a local archive, then
deletes posts older than the stale limit or reposted more often than the
repost ceiling, and removes stale likes. Posts you have liked yourself and
posts linking to a protected domain are never touched.

Thresholds set to 0 are disabled. Nothing is ever deleted before the
archive for the run has been written and verified.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Any failure exits non-zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootFlags.configPath, "config", config.DefaultPath, "config file path")
	flags.CountVarP(&rootFlags.verbosity, "verbose", "v", "log more (-v info, -vv debug)")
	flags.IntVarP(&rootFlags.maxReposts, "max-reposts", "l", 0, "delete posts with more than this many reposts (0 disables)")
	flags.IntVarP(&rootFlags.staleLimit, "stale-limit", "s", 0, "delete posts and likes at least this many days old (0 disables)")
	flags.StringVarP(&rootFlags.domains, "domains-to-protect", "d", "", "comma separated domains whose links exempt a post")
	flags.StringVarP(&rootFlags.likesCursor, "fixed-likes-cursor", "c", "", "stop likes pagination at this cursor")
	flags.BoolVarP(&rootFlags.yes, "yes", "y", false, "skip confirmation prompts")
}

// loadConfig resolves the effective configuration: file, then environment,
// then any explicitly set flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, err
	}

	flags := rootCmd.PersistentFlags()
	if flags.Changed("max-reposts") {
		cfg.MaxReposts = rootFlags.maxReposts
	}
	if flags.Changed("stale-limit") {
		cfg.StaleLimitDays = rootFlags.staleLimit
	}
	if flags.Changed("domains-to-protect") {
		cfg.ProtectedDomains = config.SplitDomains(rootFlags.domains)
	}
	if flags.Changed("fixed-likes-cursor") {
		cfg.FixedLikesCursor = rootFlags.likesCursor
	}
	if rootFlags.yes {
		cfg.AutoConfirm = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging applies the verbosity flags and optional log file. The
// default level only surfaces warnings so interactive output stays clean.
func setupLogging(cfg *config.Config) error {
	switch rootFlags.verbosity {
	case 0:
		log.SetLevel(log.WarnLevel)
	case 1:
		log.SetLevel(log.InfoLevel)
	default:
		log.SetLevel(log.DebugLevel)
	}

	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	}
	return nil
}
