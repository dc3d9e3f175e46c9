package alerts

import (
	"context"
	"sync"
	"time"

	"checkops/core/utils"
)

// Runner is an alert source loop; it returns when ctx is cancelled or the source fails.
type Runner interface {
	Run(ctx context.Context) error
}

// Worker keeps one alert source running in the background and restarts it after
// failures. It satisfies the server's background worker contract.
type Worker struct {
	name    string
	runner  Runner
	logger  *utils.Logger
	restart time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

func NewWorker(name string, runner Runner, logger *utils.Logger) *Worker {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Worker{name: name, runner: runner, logger: logger, restart: 5 * time.Second}
}

func (w *Worker) StartWithContext(ctx context.Context) {
	if w == nil || w.runner == nil {
		return
	}
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		for {
			err := w.runner.Run(runCtx)
			if runCtx.Err() != nil {
				return
			}
			if err != nil {
				sourceErrors.WithLabelValues(w.name, "run").Inc()
				w.logger.Errorw("alert source stopped, restarting", "source", w.name, "error", err.Error(), "delay", w.restart.String())
			}
			select {
			case <-runCtx.Done():
				return
			case <-time.After(w.restart):
			}
		}
	}()
}

func (w *Worker) StopWithContext(ctx context.Context) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	wasRunning := w.running
	w.mu.Unlock()
	if !wasRunning || cancel == nil {
		return nil
	}
	cancel()
	waitDone := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
