// Package httpapi serves health, status and metrics endpoints.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"newsmonitor/internal/domain"
	"newsmonitor/internal/infrastructure/scheduler"
	"newsmonitor/internal/infrastructure/storage"
	"newsmonitor/pkg/logger"
)

const (
	checkTimeout    = 5 * time.Second
	recentLimit     = 10
	shutdownTimeout = 10 * time.Second
)

// StoreReader exposes read-only views of the dedup store.
type StoreReader interface {
	Stats(ctx context.Context, since time.Time) (storage.StoreStats, error)
	Recent(ctx context.Context, limit int) ([]domain.ProcessedRecord, error)
}

// SchedulerView reports driver progress.
type SchedulerView interface {
	State() scheduler.State
	Runs() int64
	Skipped() int64
}

// RunHistory returns the last completed run.
type RunHistory interface {
	LastRun() (domain.RunReport, string, bool)
}

// Deps carries everything the handlers read from.
type Deps struct {
	Store     StoreReader
	Scheduler SchedulerView
	Runs      RunHistory
	Metrics   http.Handler
	// Settings is echoed under "config" in /status; it must not carry secrets.
	Settings map[string]any
	Clock    func() time.Time
}

// Server represents the status HTTP server with lifecycle management.
type Server struct {
	router *gin.Engine
	server *http.Server
	deps   Deps
	logger *slog.Logger
}

// NewServer builds the router and the underlying http.Server.
func NewServer(addr string, deps Deps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{router: router, deps: deps, logger: log}
	router.GET("/health", s.health)
	router.GET("/status", s.status)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          logger.New(log, "http"),
	}
	return s
}

// Router returns the underlying Gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// StartAsync starts listening in a goroutine. The channel receives a listen
// error, if any, and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		s.logger.Info("starting HTTP server", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()
	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info("HTTP server stopped gracefully")
	return nil
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if s.deps.Store != nil {
		if _, err := s.deps.Store.Stats(ctx, s.deps.Clock().Add(-24*time.Hour)); err != nil {
			checks["store"] = err.Error()
			healthy = false
		} else {
			checks["store"] = "ok"
		}
	}
	if s.deps.Scheduler != nil {
		state := s.deps.Scheduler.State()
		checks["scheduler"] = state.String()
		if state == scheduler.StateStopped {
			healthy = false
		}
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": s.deps.Clock().Format(time.RFC3339),
	})
}

func (s *Server) status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	body := gin.H{"timestamp": s.deps.Clock().Format(time.RFC3339)}

	if s.deps.Store != nil {
		stats, err := s.deps.Store.Stats(ctx, s.deps.Clock().Add(-24*time.Hour))
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		recent, err := s.deps.Store.Recent(ctx, recentLimit)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		body["store"] = gin.H{
			"total":             stats.Total,
			"last_24h":          stats.Since,
			"last_processed_at": formatTime(stats.LastProcessedAt),
			"recent":            recordsView(recent),
		}
	}

	if s.deps.Scheduler != nil {
		body["scheduler"] = gin.H{
			"state":         s.deps.Scheduler.State().String(),
			"runs":          s.deps.Scheduler.Runs(),
			"skipped_ticks": s.deps.Scheduler.Skipped(),
		}
	}

	if s.deps.Runs != nil {
		if report, runErr, ok := s.deps.Runs.LastRun(); ok {
			body["last_run"] = runView(report, runErr)
		}
	}

	if s.deps.Settings != nil {
		body["config"] = s.deps.Settings
	}

	c.JSON(http.StatusOK, body)
}

func runView(r domain.RunReport, runErr string) gin.H {
	failures := make([]gin.H, 0, len(r.Failures))
	for _, f := range r.Failures {
		failures = append(failures, gin.H{
			"article_id": f.ArticleID,
			"url":        f.URL,
			"stage":      f.Stage,
			"error":      f.Error,
		})
	}
	view := gin.H{
		"run_id":            r.RunID,
		"started_at":        formatTime(r.StartedAt),
		"finished_at":       formatTime(r.FinishedAt),
		"duration_seconds":  r.Duration().Seconds(),
		"fetched":           r.Fetched,
		"skipped_duplicate": r.SkippedDuplicate,
		"processed_ok":      r.ProcessedOK,
		"failed":            r.Failed,
		"failures":          failures,
	}
	if runErr != "" {
		view["error"] = runErr
	}
	return view
}

func recordsView(records []domain.ProcessedRecord) []gin.H {
	out := make([]gin.H, 0, len(records))
	for _, rec := range records {
		out = append(out, gin.H{
			"article_id":   rec.ArticleID,
			"title":        rec.Title,
			"url":          rec.URL,
			"processed_at": formatTime(rec.ProcessedAt),
			"verdict":      rec.Summary.String(),
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
