package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"skeetsweep/store"
	"skeetsweep/utils"
)

// RunHistory is the slice of the local store the health endpoint reads.
type RunHistory interface {
	RecentRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
}

// Server exposes /metrics and /healthz while serve mode is running.
type Server struct {
	addr    string
	history RunHistory
	srv     *http.Server
}

// NewServer prepares the listener. history may be nil, in which case the
// health endpoint only reports liveness.
func NewServer(addr string, history RunHistory) *Server {
	return &Server{addr: addr, history: history}
}

// Run blocks serving until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.getHealth)

	s.srv = &http.Server{
		Addr:    s.addr,
		Handler: NewPrometheusMiddleware(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Metrics server shutdown: %v", err)
		}
	}()

	log.Infof("Serving metrics on %s", s.addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
	}

	if s.history != nil {
		runs, err := s.history.RecentRuns(r.Context(), 1)
		if err != nil {
			log.Errorf("Reading run history: %v", err)
		} else if len(runs) == 1 {
			summary := runs[0].Summary
			resp["last_run"] = map[string]any{
				"id":          summary.RunId,
				"finished_at": summary.FinishedAt.Format(time.RFC3339),
				"unliked":     summary.Unliked,
				"deleted":     summary.Deleted,
				"failed":      summary.Failed(),
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(utils.ToJson(resp))
}
