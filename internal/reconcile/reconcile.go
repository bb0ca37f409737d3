// Package reconcile resolves ledger rows left PENDING, for example after a
// restart dropped the browser that was watching them.
package reconcile

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/pix-deposit/internal/core/datamodel/payment"
	"github.com/frahmantamala/pix-deposit/internal/poller"
)

type PendingLister interface {
	ListPending(ctx context.Context, olderThan time.Time, afterID int64, limit int) ([]payment.Payment, error)
}

// Watcher follows one payment until it resolves. Resolved payments reach the
// ledger through the event bus, not through this package.
type Watcher interface {
	Watch(ctx context.Context, paymentID string, fn func(poller.Snapshot)) error
}

type Config struct {
	Pool      PoolConfig
	BatchSize int
	// MinAge skips rows younger than this; a browser is probably still watching them.
	MinAge time.Duration
	// WatchTimeout bounds how long one row may occupy a worker.
	WatchTimeout time.Duration
}

type Result struct {
	Scanned    int
	Resolved   int
	Unresolved int
}

type Reconciler struct {
	lister  PendingLister
	watcher Watcher
	config  Config
	logger  *slog.Logger
	now     func() time.Time
}

func New(lister PendingLister, watcher Watcher, config Config, logger *slog.Logger) *Reconciler {
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
	if config.WatchTimeout <= 0 {
		config.WatchTimeout = 10 * time.Minute
	}
	return &Reconciler{
		lister:  lister,
		watcher: watcher,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Run makes one pass over the pending rows and returns once every row was
// resolved or gave up.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	var resolved, unresolved atomic.Int64

	pool := NewPool(r.config.Pool, func(_ context.Context, job Job) {
		if r.resolve(ctx, job) {
			resolved.Add(1)
		} else {
			unresolved.Add(1)
		}
	}, r.logger)
	defer pool.Shutdown()

	cutoff := r.now().Add(-r.config.MinAge)
	var afterID int64
	scanned := 0
	var runErr error

	for {
		rows, err := r.lister.ListPending(ctx, cutoff, afterID, r.config.BatchSize)
		if err != nil {
			runErr = fmt.Errorf("failed to load pending payments: %w", err)
			break
		}

		for _, row := range rows {
			if err := pool.Submit(ctx, Job{RowID: row.ID, PaymentID: row.GatewayID}); err != nil {
				runErr = err
				break
			}
			scanned++
			afterID = row.ID
		}

		if runErr != nil || len(rows) < r.config.BatchSize {
			break
		}
	}

	pool.Wait()

	result := Result{
		Scanned:    scanned,
		Resolved:   int(resolved.Load()),
		Unresolved: int(unresolved.Load()),
	}
	r.logger.Info("reconcile pass finished",
		"scanned", result.Scanned,
		"resolved", result.Resolved,
		"unresolved", result.Unresolved)

	return result, runErr
}

func (r *Reconciler) resolve(ctx context.Context, job Job) bool {
	ctx, cancel := context.WithTimeout(ctx, r.config.WatchTimeout)
	defer cancel()

	var final poller.Snapshot
	err := r.watcher.Watch(ctx, job.PaymentID, func(snapshot poller.Snapshot) {
		final = snapshot
		if snapshot.PersistentFailure {
			r.logger.Warn("status endpoint keeps failing",
				"payment_id", job.PaymentID,
				"consecutive_errors", snapshot.ConsecutiveErrors)
		}
	})
	if err != nil && !stdErrors.Is(err, context.DeadlineExceeded) && !stdErrors.Is(err, context.Canceled) {
		r.logger.Error("failed to watch pending payment", "payment_id", job.PaymentID, "error", err)
		return false
	}

	if !final.State.IsTerminal() {
		r.logger.Info("payment still pending", "payment_id", job.PaymentID, "row_id", job.RowID)
		return false
	}

	r.logger.Info("pending payment resolved", "payment_id", job.PaymentID, "status", final.State)
	return true
}
