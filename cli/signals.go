package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// SignalContext returns a context canceled on SIGINT or SIGTERM. The first
// signal cancels so a run can stop cleanly between mutations; a second
// signal exits immediately.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Warn("Shutdown signal received, finishing current item")
		cancel()
		<-sigChan
		log.Error("Second signal received, exiting now")
		os.Exit(1)
	}()

	return ctx
}
