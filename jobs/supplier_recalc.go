package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/wholesale-hub/settlement/internal/jobs"
	"github.com/wholesale-hub/settlement/internal/shared"
	"github.com/wholesale-hub/settlement/internal/supplier"
)

func defaultJobMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(nil)
}

// SupplierReconciler recomputes supplier balances from their ledgers.
type SupplierReconciler interface {
	Recalculate(ctx context.Context, supplierID int64, trigger string) (supplier.Balance, error)
	ReconcileAll(ctx context.Context) (int, error)
}

// Locker serialises work on one supplier across workers.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// SupplierRecalcJob handles per-supplier and nightly recalculation tasks.
type SupplierRecalcJob struct {
	Service SupplierReconciler
	Locker  Locker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSupplierRecalcJob constructs the job handler.
func NewSupplierRecalcJob(service SupplierReconciler, locker Locker, logger *slog.Logger, metrics *jobmetrics.Metrics) *SupplierRecalcJob {
	return &SupplierRecalcJob{Service: service, Locker: locker, Logger: logger, Metrics: metrics}
}

// Handle recalculates the supplier named by the payload. A busy lock means
// another worker is folding the same ledger, so the task is retried later.
func (j *SupplierRecalcJob) Handle(ctx context.Context, task *asynq.Task) (err error) {
	if j == nil || j.Service == nil {
		return errors.New("supplier recalc: dependencies not configured")
	}
	var payload SupplierRecalcPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.SupplierID <= 0 {
		return fmt.Errorf("supplier recalc: bad payload: %w", asynq.SkipRetry)
	}
	if payload.Trigger == "" {
		payload.Trigger = "order"
	}

	tracker := j.metrics().Track(TaskSupplierRecalc)
	defer func() { err = tracker.End(err) }()

	release, err := j.acquire(ctx, payload.SupplierID)
	if err != nil {
		return err
	}
	defer release()

	balance, err := j.Service.Recalculate(ctx, payload.SupplierID, payload.Trigger)
	if err != nil {
		j.log(TaskSupplierRecalc).Error("recalculate supplier balance", slog.Int64("supplier_id", payload.SupplierID), slog.Any("error", err))
		return err
	}
	j.log(TaskSupplierRecalc).Debug("supplier balance recalculated",
		slog.Int64("supplier_id", payload.SupplierID),
		slog.String("balance", balance.Balance.StringFixed(2)))
	return nil
}

// HandleReconcileAll re-folds every supplier ledger.
func (j *SupplierRecalcJob) HandleReconcileAll(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Service == nil {
		return errors.New("supplier reconcile: dependencies not configured")
	}
	tracker := j.metrics().Track(TaskSupplierReconcileAll)
	defer func() { err = tracker.End(err) }()

	start := time.Now()
	changed, err := j.Service.ReconcileAll(ctx)
	if err != nil {
		j.log(TaskSupplierReconcileAll).Error("reconcile suppliers", slog.Any("error", err))
		return err
	}
	j.metrics().AddDrift("supplier", changed)
	j.log(TaskSupplierReconcileAll).Info("reconciled supplier balances",
		slog.Int("changed", changed),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *SupplierRecalcJob) acquire(ctx context.Context, supplierID int64) (func(), error) {
	if j.Locker == nil {
		return func() {}, nil
	}
	return j.Locker.Acquire(ctx, shared.SupplierReconcileLockKey(supplierID))
}

func (j *SupplierRecalcJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics()
}

func (j *SupplierRecalcJob) log(task string) *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", task))
	}
	return slog.Default().With(slog.String("job", task))
}
