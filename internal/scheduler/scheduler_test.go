package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/hailwatch/internal/pipeline"
	"github.com/couchcryptid/hailwatch/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	runs  atomic.Int32
	delay time.Duration
}

func (r *countingRunner) RunPass(context.Context) pipeline.PassReport {
	r.runs.Add(1)
	time.Sleep(r.delay)
	return pipeline.PassReport{Attempted: 1, Inserted: 1}
}

type failingLocker struct{}

func (failingLocker) TryLock(context.Context, string) (func(), bool, error) {
	return nil, false, errors.New("database unavailable")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunLocked_RunsPass(t *testing.T) {
	runner := &countingRunner{}
	locks := store.NewMemoryStore()

	report, ran, err := RunLocked(context.Background(), runner, locks, "ingest", discardLogger())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, int32(1), runner.runs.Load())

	release, ok, err := locks.TryLock(context.Background(), "ingest")
	require.NoError(t, err)
	assert.True(t, ok, "lock must be released after the pass")
	release()
}

func TestRunLocked_SkipsWhenLockHeld(t *testing.T) {
	runner := &countingRunner{}
	locks := store.NewMemoryStore()
	release, ok, err := locks.TryLock(context.Background(), "ingest")
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	_, ran, err := RunLocked(context.Background(), runner, locks, "ingest", discardLogger())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, int32(0), runner.runs.Load())
}

func TestRunLocked_LockError(t *testing.T) {
	runner := &countingRunner{}

	_, ran, err := RunLocked(context.Background(), runner, failingLocker{}, "ingest", discardLogger())
	require.Error(t, err)
	assert.False(t, ran)
	assert.Equal(t, int32(0), runner.runs.Load())
}

func TestScheduler_RunsImmediatelyAndRepeats(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, store.NewMemoryStore(), "ingest", 50*time.Millisecond, discardLogger())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return runner.runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_StopWaitsForRunningPass(t *testing.T) {
	runner := &countingRunner{delay: 200 * time.Millisecond}
	locks := store.NewMemoryStore()
	s := New(runner, locks, "ingest", time.Hour, discardLogger())
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool { return runner.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	release, ok, err := locks.TryLock(context.Background(), "ingest")
	require.NoError(t, err)
	assert.True(t, ok, "pass must have finished and released the lock")
	release()
}
