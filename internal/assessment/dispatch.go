package assessment

import (
	"context"
	"errors"
	"sync"

	"github.com/jonathan/perfect-fit/internal/types"
	"go.uber.org/zap"
)

// ErrDispatcherClosed is returned by Dispatch after Shutdown.
var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// LocalDispatcher runs each batch on its own goroutine in this process.
// The goroutine is detached from the request context's cancellation.
type LocalDispatcher struct {
	proc Processor
	log  *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewLocalDispatcher creates a LocalDispatcher.
func NewLocalDispatcher(proc Processor, log *zap.Logger) *LocalDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalDispatcher{proc: proc, log: log}
}

// Dispatch starts scoring batch and returns immediately.
func (d *LocalDispatcher) Dispatch(ctx context.Context, batch *types.ScoringBatch) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if _, err := d.proc.Process(detached, batch); err != nil {
			d.log.Error("background scoring failed",
				zap.String("application_id", batch.ApplicationID.String()),
				zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops accepting batches and waits for in-flight ones until ctx ends.
func (d *LocalDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
