package alerts

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyRunner struct {
	calls atomic.Int32
}

func (r *flakyRunner) Run(ctx context.Context) error {
	if r.calls.Add(1) == 1 {
		return errors.New("broker unreachable")
	}
	<-ctx.Done()
	return nil
}

func TestWorkerRestartsFailedSourceAndStops(t *testing.T) {
	runner := &flakyRunner{}
	w := NewWorker("mqtt", runner, nil)
	w.restart = 10 * time.Millisecond

	w.StartWithContext(context.Background())
	w.StartWithContext(context.Background())
	assert.Eventually(t, func() bool { return runner.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.StopWithContext(ctx))
	require.NoError(t, w.StopWithContext(ctx), "second stop is a no-op")
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestWorkerWithoutRunnerIsInert(t *testing.T) {
	var w *Worker
	w.StartWithContext(context.Background())
	require.NoError(t, w.StopWithContext(context.Background()))

	idle := NewWorker("none", nil, nil)
	idle.StartWithContext(context.Background())
	require.NoError(t, idle.StopWithContext(context.Background()))
}
