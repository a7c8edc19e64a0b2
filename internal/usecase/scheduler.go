package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"newsmonitor/internal/domain"
	"newsmonitor/internal/ports"
)

// Run outcomes reported to the RunRecorder.
const (
	OutcomeOK                = "ok"
	OutcomeSourceUnavailable = "source_unavailable"
	OutcomeStoreFatal        = "store_fatal"
	OutcomeAborted           = "aborted"
)

const alertTimeout = 30 * time.Second

// RunRecorder observes finished runs.
type RunRecorder interface {
	ObserveRun(report domain.RunReport, outcome string)
}

// SchedulerDeps wires the scheduler use case.
type SchedulerDeps struct {
	Driver   ports.Scheduler
	Pipeline *Pipeline
	Alerter  ports.Alerter
	Recorder RunRecorder
	Logger   *slog.Logger
}

// Scheduler wires the driver with the pipeline use case and applies the
// failure policy: an unavailable source waits for the next tick, a store
// failure is escalated and halts the driver.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	alerter  ports.Alerter
	recorder RunRecorder
	logger   *slog.Logger

	mu      sync.RWMutex
	last    domain.RunReport
	lastErr string
	hasRun  bool
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		driver:   deps.Driver,
		pipeline: deps.Pipeline,
		alerter:  deps.Alerter,
		recorder: deps.Recorder,
		logger:   logger,
	}
}

// Start registers the pipeline with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return errors.New("scheduler is not configured")
	}
	return s.driver.Start(ctx, s.Run)
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}

// Run executes one pipeline pass. It returns an error only when the store
// failed, which stops the driver.
func (s *Scheduler) Run(ctx context.Context, trigger time.Time) error {
	report, err := s.pipeline.RunOnce(ctx)
	outcome := classify(err)
	s.remember(report, err)
	if s.recorder != nil {
		s.recorder.ObserveRun(report, outcome)
	}

	logger := s.logger.With("run_id", report.RunID, "trigger", trigger)
	switch outcome {
	case OutcomeOK:
		return nil
	case OutcomeSourceUnavailable:
		logger.Warn("news source unavailable, retrying next tick", "error", err)
		return nil
	case OutcomeStoreFatal:
		logger.Error("dedup store failure, halting scheduler", "error", err)
		s.alert(ctx, report, err)
		return err
	default:
		logger.Warn("run aborted", "error", err)
		return nil
	}
}

// LastRun returns the most recent run report and its error text, if any.
func (s *Scheduler) LastRun() (domain.RunReport, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastErr, s.hasRun
}

func (s *Scheduler) remember(report domain.RunReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = report
	s.hasRun = true
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
}

func (s *Scheduler) alert(ctx context.Context, report domain.RunReport, cause error) {
	if s.alerter == nil {
		return
	}
	alertCtx, cancel := context.WithTimeout(ctx, alertTimeout)
	defer cancel()

	body := fmt.Sprintf(
		"The news monitor stopped because the processed-articles store failed.\n\nRun: %s\nStarted: %s\nError: %v\n\nProcessed before failure: %d\n",
		report.RunID, report.StartedAt.Format(time.RFC3339), cause, report.ProcessedOK,
	)
	if err := s.alerter.Alert(alertCtx, "dedup store failure", body); err != nil {
		s.logger.Error("operator alert failed", "error", err)
	}
}

func classify(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrStoreFatal):
		return OutcomeStoreFatal
	case errors.Is(err, domain.ErrSourceUnavailable):
		return OutcomeSourceUnavailable
	default:
		return OutcomeAborted
	}
}
