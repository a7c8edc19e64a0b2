package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsmonitor/internal/domain"
	"newsmonitor/internal/infrastructure/scheduler"
)

type fixedInterval time.Duration

func (f fixedInterval) Next(t time.Time) time.Time { return t.Add(time.Duration(f)) }

func TestSchedulerStoreFailureStopsDriver(t *testing.T) {
	t.Parallel()

	h := newHarness("a")
	h.store.markErr = errDiskIO
	alerts := &fakeAlerter{}
	rec := &recorder{}
	driver := scheduler.NewDriver(scheduler.Options{Schedule: fixedInterval(5 * time.Millisecond)})

	s := NewScheduler(SchedulerDeps{
		Driver:   driver,
		Pipeline: h.pipeline,
		Alerter:  alerts,
		Recorder: rec,
	})
	require.NoError(t, s.Start(context.Background()))

	err := driver.Wait()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStoreFatal))
	assert.Equal(t, scheduler.StateStopped, driver.State())
	assert.EqualValues(t, 1, driver.Runs())
	assert.Equal(t, 1, alerts.count())
	assert.Equal(t, []string{OutcomeStoreFatal}, rec.outcomes)

	last, lastErr, ok := s.LastRun()
	require.True(t, ok)
	assert.Equal(t, 1, last.Fetched)
	assert.Contains(t, lastErr, errDiskIO.Error())
}

func TestSchedulerSwallowsSourceUnavailable(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.source.err = fmt.Errorf("%w: 503", domain.ErrSourceUnavailable)
	alerts := &fakeAlerter{}
	rec := &recorder{}

	s := NewScheduler(SchedulerDeps{Pipeline: h.pipeline, Alerter: alerts, Recorder: rec})
	require.NoError(t, s.Run(context.Background(), time.Now()))
	assert.Zero(t, alerts.count())
	assert.Equal(t, []string{OutcomeSourceUnavailable}, rec.outcomes)
}

func TestSchedulerRecordsSuccessfulRun(t *testing.T) {
	t.Parallel()

	h := newHarness("a", "b")
	rec := &recorder{}
	s := NewScheduler(SchedulerDeps{Pipeline: h.pipeline, Recorder: rec})

	_, _, ok := s.LastRun()
	assert.False(t, ok)

	require.NoError(t, s.Run(context.Background(), time.Now()))
	last, lastErr, ok := s.LastRun()
	require.True(t, ok)
	assert.Empty(t, lastErr)
	assert.Equal(t, 2, last.ProcessedOK)
	assert.Equal(t, []string{OutcomeOK}, rec.outcomes)
}

func TestSchedulerStartRequiresDriver(t *testing.T) {
	t.Parallel()

	s := NewScheduler(SchedulerDeps{})
	assert.Error(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
