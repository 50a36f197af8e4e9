package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSupplierRecalc recalculates one supplier's balance after an order commits.
	TaskSupplierRecalc = "supplier:balance:recalculate"
	// TaskSupplierReconcileAll re-folds every supplier balance.
	TaskSupplierReconcileAll = "supplier:balance:reconcile-all"
	// TaskWalletAudit compares stored wallet balances with their ledgers.
	TaskWalletAudit = "wallet:audit"
	// TaskIdempotencyCleanup prunes expired checkout idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"

	// ReconcileAllCron runs at 02:00 UTC.
	ReconcileAllCron = "0 2 * * *"
	// WalletAuditCron runs at 03:00 UTC.
	WalletAuditCron = "0 3 * * *"
	// IdempotencyCleanupCron runs at 03:30 UTC.
	IdempotencyCleanupCron = "30 3 * * *"
)

// SupplierRecalcPayload identifies the supplier to recalculate.
type SupplierRecalcPayload struct {
	SupplierID int64  `json:"supplier_id"`
	Trigger    string `json:"trigger,omitempty"`
}

// NewSupplierRecalcTask constructs a recalculation task.
func NewSupplierRecalcTask(supplierID int64, trigger string) (*asynq.Task, error) {
	if supplierID <= 0 {
		return nil, fmt.Errorf("supplier recalc: invalid supplier id %d", supplierID)
	}
	data, err := json.Marshal(SupplierRecalcPayload{SupplierID: supplierID, Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSupplierRecalc, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewSupplierReconcileAllTask constructs the nightly reconcile task.
func NewSupplierReconcileAllTask() *asynq.Task {
	return asynq.NewTask(TaskSupplierReconcileAll, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// NewWalletAuditTask constructs the wallet audit task.
func NewWalletAuditTask() *asynq.Task {
	return asynq.NewTask(TaskWalletAudit, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// NewIdempotencyCleanupTask constructs the key pruning task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// DefaultCron is the nightly schedule of ledger maintenance.
func DefaultCron() []CronRegistration {
	return []CronRegistration{
		{Spec: ReconcileAllCron, Task: NewSupplierReconcileAllTask()},
		{Spec: WalletAuditCron, Task: NewWalletAuditTask()},
		{Spec: IdempotencyCleanupCron, Task: NewIdempotencyCleanupTask()},
	}
}
