package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skeetsweep/models"
	"skeetsweep/store"
)

type fakeHistory struct {
	records []store.RunRecord
	err     error
}

func (f *fakeHistory) RecentRuns(context.Context, int) ([]store.RunRecord, error) {
	return f.records, f.err
}

func getHealthz(t *testing.T, s *Server) map[string]any {
	t.Helper()
	recorder := httptest.NewRecorder()
	s.getHealth(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func TestHealthWithoutHistory(t *testing.T) {
	body := getHealthz(t, NewServer(":0", nil))

	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "last_run")
}

func TestHealthReportsLastRun(t *testing.T) {
	finished := time.Date(2024, 3, 15, 10, 31, 30, 0, time.UTC)
	history := &fakeHistory{
		records: []store.RunRecord{{
			Summary: models.RunSummary{
				RunId:      "run-1",
				FinishedAt: finished,
				Unliked:    7,
				Deleted:    2,
				Incomplete: true,
			},
		}},
	}

	body := getHealthz(t, NewServer(":0", history))

	assert.Equal(t, "ok", body["status"])
	lastRun, ok := body["last_run"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "run-1", lastRun["id"])
	assert.Equal(t, "2024-03-15T10:31:30Z", lastRun["finished_at"])
	assert.Equal(t, float64(7), lastRun["unliked"])
	assert.Equal(t, float64(2), lastRun["deleted"])
	assert.Equal(t, true, lastRun["failed"])
}

func TestHealthToleratesHistoryErrors(t *testing.T) {
	body := getHealthz(t, NewServer(":0", &fakeHistory{err: errors.New("db gone")}))

	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "last_run")
}

func TestPrometheusMiddlewarePassesThrough(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("handled"))
	})

	recorder := httptest.NewRecorder()
	NewPrometheusMiddleware(inner).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusTeapot, recorder.Code)
	assert.Equal(t, "handled", recorder.Body.String())
}
