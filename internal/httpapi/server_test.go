package httpapi

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

	"newsmonitor/internal/domain"
	"newsmonitor/internal/infrastructure/scheduler"
	"newsmonitor/internal/infrastructure/storage"
)

var now = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type stubStore struct {
	stats  storage.StoreStats
	recent []domain.ProcessedRecord
	err    error
}

func (s stubStore) Stats(context.Context, time.Time) (storage.StoreStats, error) {
	return s.stats, s.err
}

func (s stubStore) Recent(context.Context, int) ([]domain.ProcessedRecord, error) {
	return s.recent, s.err
}

type stubScheduler struct{ state scheduler.State }

func (s stubScheduler) State() scheduler.State { return s.state }
func (s stubScheduler) Runs() int64            { return 7 }
func (s stubScheduler) Skipped() int64         { return 2 }

type stubRuns struct{ report domain.RunReport }

func (s stubRuns) LastRun() (domain.RunReport, string, bool) { return s.report, "", true }

func serve(t *testing.T, deps Deps, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	deps.Clock = func() time.Time { return now }
	srv := NewServer(":0", deps, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthHealthy(t *testing.T) {
	t.Parallel()

	rec, body := serve(t, Deps{
		Store:     stubStore{},
		Scheduler: stubScheduler{state: scheduler.StateWaiting},
	}, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["store"])
	assert.Equal(t, "waiting", checks["scheduler"])
}

func TestHealthUnhealthy(t *testing.T) {
	t.Parallel()

	rec, body := serve(t, Deps{Store: stubStore{err: errors.New("database is locked")}}, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", body["status"])

	rec, _ = serve(t, Deps{Scheduler: stubScheduler{state: scheduler.StateStopped}}, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	rec, body := serve(t, Deps{
		Store: stubStore{
			stats: storage.StoreStats{Total: 12, Since: 3, LastProcessedAt: now.Add(-time.Hour)},
			recent: []domain.ProcessedRecord{{
				ArticleID: "1",
				Title:     "Budget",
				Summary:   domain.VerdictSummary{Status: domain.VerdictFlagged, IssueCount: 2},
			}},
		},
		Scheduler: stubScheduler{state: scheduler.StateRunning},
		Runs: stubRuns{report: domain.RunReport{
			RunID:    "run-1",
			Fetched:  4,
			Failed:   1,
			Failures: []domain.ArticleFailure{{ArticleID: "9", Stage: domain.StageExtract, Error: "timeout"}},
		}},
		Settings: map[string]any{"interval_minutes": 20},
	}, "/status")

	require.Equal(t, http.StatusOK, rec.Code)

	store := body["store"].(map[string]any)
	assert.EqualValues(t, 12, store["total"])
	assert.EqualValues(t, 3, store["last_24h"])
	assert.Equal(t, "2025-06-01T07:00:00Z", store["last_processed_at"])
	recent := store["recent"].([]any)
	require.Len(t, recent, 1)
	assert.Equal(t, "flagged:2", recent[0].(map[string]any)["verdict"])

	sched := body["scheduler"].(map[string]any)
	assert.Equal(t, "running", sched["state"])
	assert.EqualValues(t, 2, sched["skipped_ticks"])

	last := body["last_run"].(map[string]any)
	assert.Equal(t, "run-1", last["run_id"])
	assert.Len(t, last["failures"], 1)

	assert.EqualValues(t, 20, body["config"].(map[string]any)["interval_minutes"])
}

func TestStatusStoreError(t *testing.T) {
	t.Parallel()

	rec, body := serve(t, Deps{Store: stubStore{err: errors.New("disk I/O error")}}, "/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "disk I/O error", body["error"])
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"metric":1}`))
	})
	rec, body := serve(t, Deps{Metrics: metrics}, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["metric"])
}
