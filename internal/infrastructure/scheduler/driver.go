package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"newsmonitor/internal/ports"
)

// State is the driver lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateWaiting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrStopped        = errors.New("scheduler stopped")
)

// Options configures a Driver.
type Options struct {
	Schedule cron.Schedule
	Logger   *slog.Logger
	// OnSkip is called with the number of fire times dropped because a run overran them.
	OnSkip func(missed int)
}

// Driver runs a job immediately on Start and then at every fire time of its
// schedule. Runs never overlap: fire times that pass during a run are dropped.
type Driver struct {
	schedule cron.Schedule
	logger   *slog.Logger
	onSkip   func(int)

	mu      sync.Mutex
	state   State
	started bool
	err     error

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	runs    atomic.Int64
	skipped atomic.Int64
}

var _ ports.Scheduler = (*Driver)(nil)

// NewDriver returns an idle driver.
func NewDriver(opts Options) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Driver{
		schedule: opts.Schedule,
		logger:   logger,
		onSkip:   opts.OnSkip,
		state:    StateIdle,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the loop goroutine. The job receives a context that is not
// cancelled by shutdown so an in-flight run can finish.
func (d *Driver) Start(ctx context.Context, job ports.Job) error {
	if job == nil || d.schedule == nil {
		return errors.New("scheduler requires a job and a schedule")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateStopped {
		return ErrStopped
	}
	if d.started {
		return ErrAlreadyStarted
	}
	d.started = true

	go d.loop(ctx, job)
	return nil
}

// Stop prevents further runs and waits for an in-flight run to complete or
// for ctx to expire.
func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()

	d.stopOnce.Do(func() { close(d.stop) })
	if !started {
		d.finish(nil)
		return nil
	}

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the driver stops and returns the job error that halted it, if any.
func (d *Driver) Wait() error {
	<-d.done
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Done is closed once the driver has stopped.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// State reports the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Runs counts completed job invocations.
func (d *Driver) Runs() int64 {
	return d.runs.Load()
}

// Skipped counts fire times dropped because a run was still executing.
func (d *Driver) Skipped() int64 {
	return d.skipped.Load()
}

func (d *Driver) loop(ctx context.Context, job ports.Job) {
	runCtx := context.WithoutCancel(ctx)
	fire := time.Now()

	for {
		if d.stopping(ctx) {
			d.finish(nil)
			return
		}

		d.setState(StateRunning)
		err := job(runCtx, fire)
		d.runs.Add(1)
		if err != nil {
			d.logger.Error("scheduled run failed, stopping scheduler", "error", err)
			d.finish(err)
			return
		}

		finished := time.Now()
		next := d.schedule.Next(fire)
		missed := 0
		for !next.IsZero() && !next.After(finished) {
			missed++
			next = d.schedule.Next(next)
		}
		if next.IsZero() {
			d.logger.Warn("schedule has no further fire times")
			d.finish(nil)
			return
		}
		if missed > 0 {
			d.skipped.Add(int64(missed))
			d.logger.Warn("run overran scheduled ticks, skipping", "missed", missed, "next", next)
			if d.onSkip != nil {
				d.onSkip(missed)
			}
		}

		d.setState(StateWaiting)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			fire = next
		case <-d.stop:
			timer.Stop()
			d.finish(nil)
			return
		case <-ctx.Done():
			timer.Stop()
			d.finish(nil)
			return
		}
	}
}

func (d *Driver) stopping(ctx context.Context) bool {
	select {
	case <-d.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateStopped {
		d.state = s
	}
}

func (d *Driver) finish(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateStopped {
		return
	}
	d.state = StateStopped
	d.err = err
	close(d.done)
}
