package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/wholesale-hub/settlement/internal/jobs"
	"github.com/wholesale-hub/settlement/internal/wallet"
)

// WalletAuditor folds every wallet ledger against its stored balance.
type WalletAuditor interface {
	Audit(ctx context.Context) ([]wallet.Reconciliation, error)
}

// WalletAuditJob reports wallets whose balance drifted from the ledger.
type WalletAuditJob struct {
	Service WalletAuditor
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewWalletAuditJob constructs the job handler.
func NewWalletAuditJob(service WalletAuditor, logger *slog.Logger, metrics *jobmetrics.Metrics) *WalletAuditJob {
	return &WalletAuditJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle runs the audit. Drift is reported, never corrected.
func (j *WalletAuditJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Service == nil {
		return errors.New("wallet audit: dependencies not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics()
	}
	tracker := metrics.Track(TaskWalletAudit)
	defer func() { err = tracker.End(err) }()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskWalletAudit))

	drifted, err := j.Service.Audit(ctx)
	if err != nil {
		logger.Error("wallet audit", slog.Any("error", err))
		return err
	}
	metrics.AddDrift("wallet", len(drifted))
	logger.Info("wallet audit finished", slog.Int("drifted", len(drifted)))
	return nil
}
