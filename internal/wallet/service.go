package wallet

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetWallet(ctx context.Context, userID int64) (Wallet, error)
	ListTransactions(ctx context.Context, userID int64) ([]Transaction, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// Service handles wallet top-ups, reads and audits.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Balance returns the stored balance; a user without a wallet holds zero.
func (s *Service) Balance(ctx context.Context, userID int64) (Wallet, error) {
	if userID == 0 {
		return Wallet{}, ErrUserRequired
	}
	w, err := s.repo.GetWallet(ctx, userID)
	if errors.Is(err, ErrWalletNotFound) {
		return Wallet{UserID: userID, Balance: decimal.Zero}, nil
	}
	return w, err
}

// Deposit tops up the wallet.
func (s *Service) Deposit(ctx context.Context, userID int64, amount decimal.Decimal, reference string) (Wallet, error) {
	return s.credit(ctx, Transaction{UserID: userID, Type: TransactionDeposit, Amount: amount, Reference: reference})
}

// Refund credits money back outside an order cancellation.
func (s *Service) Refund(ctx context.Context, userID int64, amount decimal.Decimal, reference string) (Wallet, error) {
	return s.credit(ctx, Transaction{UserID: userID, Type: TransactionRefund, Amount: amount, Reference: reference})
}

func (s *Service) credit(ctx context.Context, in Transaction) (Wallet, error) {
	var balance decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := Credit(ctx, tx, in)
		balance = b
		return err
	})
	if err != nil {
		return Wallet{}, err
	}
	s.logger.Info("wallet credited",
		slog.Int64("user_id", in.UserID),
		slog.String("type", string(in.Type)),
		slog.String("amount", in.Amount.StringFixed(2)))
	return Wallet{UserID: in.UserID, Balance: balance}, nil
}

// Transactions lists the wallet ledger.
func (s *Service) Transactions(ctx context.Context, userID int64) ([]Transaction, error) {
	if userID == 0 {
		return nil, ErrUserRequired
	}
	return s.repo.ListTransactions(ctx, userID)
}

// Reconcile folds the ledger and compares it with the stored balance.
func (s *Service) Reconcile(ctx context.Context, userID int64) (Reconciliation, error) {
	w, err := s.Balance(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}
	txs, err := s.repo.ListTransactions(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}
	folded := Fold(txs)
	return Reconciliation{UserID: userID, Stored: w.Balance, Folded: folded, Drift: w.Balance.Sub(folded)}, nil
}

// Audit reconciles every wallet and returns the ones that drifted.
func (s *Service) Audit(ctx context.Context) ([]Reconciliation, error) {
	ids, err := s.repo.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	var drifted []Reconciliation
	for _, id := range ids {
		rec, err := s.Reconcile(ctx, id)
		if err != nil {
			return drifted, err
		}
		if !rec.Balanced() {
			s.logger.Warn("wallet drift detected",
				slog.Int64("user_id", id),
				slog.String("stored", rec.Stored.StringFixed(2)),
				slog.String("folded", rec.Folded.StringFixed(2)))
			drifted = append(drifted, rec)
		}
	}
	return drifted, nil
}
