package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/runnerr0/dwell/internal/logfields"
)

// ErrQueueClosed is returned by Dispatch once the queue has stopped running.
var ErrQueueClosed = errors.New("signal queue closed")

// Queue feeds signals to a Tracker strictly in arrival order, one at a time.
type Queue struct {
	tracker *Tracker
	signals chan Signal
	logger  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewQueue creates a queue with room for size buffered signals.
func NewQueue(t *Tracker, size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		tracker: t,
		signals: make(chan Signal, size),
		logger:  t.logger,
		done:    make(chan struct{}),
	}
}

// Dispatch enqueues sig. It blocks while the buffer is full; signals are
// never dropped.
func (q *Queue) Dispatch(ctx context.Context, sig Signal) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.signals <- sig:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run handles a startup signal, then every dispatched signal until ctx is
// canceled. Before returning it drains what is already queued and stops
// tracking so the final interval reaches the ledger.
func (q *Queue) Run(ctx context.Context) {
	q.handle(ctx, Signal{Kind: KindStartup})

	for {
		select {
		case sig := <-q.signals:
			q.handle(ctx, sig)
		case <-ctx.Done():
			q.shutdown(context.WithoutCancel(ctx))
			return
		}
	}
}

func (q *Queue) shutdown(ctx context.Context) {
	q.closeOnce.Do(func() { close(q.done) })

	for {
		select {
		case sig := <-q.signals:
			q.handle(ctx, sig)
		default:
			if err := q.tracker.Shutdown(ctx); err != nil {
				q.logger.Error("Final commit failed", logfields.Error(err))
			}
			q.logger.Info("Signal queue stopped")
			return
		}
	}
}

func (q *Queue) handle(ctx context.Context, sig Signal) {
	if err := q.tracker.Handle(ctx, sig); err != nil {
		// the next signal or alarm retries; the loop never stops on errors
		q.logger.Warn("Signal handling failed",
			logfields.Signal(string(sig.Kind)),
			logfields.Error(err))
	}
}
