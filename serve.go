package main

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"skeetsweep/cli"
	"skeetsweep/config"
	"skeetsweep/monitoring"
	"skeetsweep/store"
	"skeetsweep/tasks"
	"skeetsweep/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run maintenance on a cron schedule with Prometheus metrics",
	Long: `Stay resident and trigger a full maintenance run on the configured cron
schedule. Overlapping triggers are skipped, the config file is reloaded on
change, and /metrics plus /healthz are served on listen_addr.

Scheduled runs cannot prompt, so serve refuses to start until auto_confirm
is enabled.`,
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
		if cfg.Schedule == "" {
			return fmt.Errorf("serve needs a schedule; set schedule in the config file or SKEETSWEEP_SCHEDULE")
		}
		if !cfg.AutoConfirm {
			return fmt.Errorf("scheduled runs cannot prompt; enable auto_confirm (or pass -y) to use serve")
		}

		st, err := store.Open(cfg.DatabasePath())
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cli.SignalContext()

		// Runs read the newest config at trigger time; reloads swap the
		// pointer between runs.
		var current atomic.Pointer[config.Config]
		current.Store(cfg)

		scheduler, err := tasks.NewScheduler(cfg.Schedule, func(runCtx context.Context) error {
			summary, err := runPipeline(runCtx, current.Load(), st, false)
			if err != nil {
				return err
			}
			if summary.Failed() {
				return fmt.Errorf("run %s finished with failures", summary.RunId)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := scheduler.Start(ctx); err != nil {
			return err
		}

		watchConfig(ctx, &current)

		return monitoring.NewServer(cfg.ListenAddr, st).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// watchConfig reloads settings when the config file changes. The schedule
// itself is fixed for the life of the process; changing it takes a restart.
func watchConfig(ctx context.Context, current *atomic.Pointer[config.Config]) {
	watcher, err := tasks.NewConfigWatcher(rootFlags.configPath)
	if err != nil {
		log.Warnf("Config watching disabled: %v", err)
		return
	}

	go utils.Recoverer(math.MaxInt, 1, func() {
		watcher.Watch(ctx, func() {
			reloaded, err := loadConfig()
			if err != nil {
				log.Errorf("Config reload failed, keeping previous settings: %v", err)
				return
			}
			previous := current.Load()
			if reloaded.Schedule != previous.Schedule {
				log.Warnf("Schedule changed to '%s' but requires a restart; still running '%s'",
					reloaded.Schedule, previous.Schedule)
			}
			current.Store(reloaded)
			log.Info("Config reloaded")
		})
	})
}
