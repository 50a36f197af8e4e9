package credit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetAccount(ctx context.Context, userID int64) (Account, error)
	ListTransactions(ctx context.Context, userID int64) ([]Transaction, error)
}

// Service exposes the trade-credit ledger to collaborators.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// CheckEligibility reports whether amount can be bought on credit now.
func (s *Service) CheckEligibility(ctx context.Context, userID int64, amount decimal.Decimal) (Eligibility, error) {
	if !amount.IsPositive() {
		return Eligibility{}, ErrInvalidAmount
	}
	var out Eligibility
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acct, err := OpenAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		checkErr := Check(ctx, tx, acct, amount.Round(2), s.now())
		if checkErr != nil && !isRejection(checkErr) {
			return checkErr
		}
		out = EligibilityFromError(acct, checkErr)
		return nil
	})
	return out, err
}

// CreatePurchase records a standalone credit purchase against an order.
func (s *Service) CreatePurchase(ctx context.Context, userID, orderID int64, amount decimal.Decimal) (Transaction, error) {
	var out Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := Purchase(ctx, tx, userID, orderID, amount, s.now())
		out = t
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.logger.Info("credit purchase recorded",
		slog.Int64("user_id", userID),
		slog.Int64("order_id", orderID),
		slog.String("amount", out.Amount.StringFixed(2)))
	return out, nil
}

// CreatePayment records a repayment, typically collected by a driver.
func (s *Service) CreatePayment(ctx context.Context, userID int64, amount decimal.Decimal, notes string) (PaymentResult, error) {
	var out PaymentResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		r, err := Pay(ctx, tx, userID, amount, notes, s.now())
		out = r
		return err
	})
	if err != nil {
		return PaymentResult{}, err
	}
	s.logger.Info("credit payment recorded",
		slog.Int64("user_id", userID),
		slog.String("amount", out.Payment.Amount.StringFixed(2)),
		slog.Int("settled", len(out.SettledIDs)))
	return out, nil
}

// SetEligibility switches credit on or off for a user.
func (s *Service) SetEligibility(ctx context.Context, userID int64, eligible bool) (Account, error) {
	var out Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acct, err := OpenAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		acct.IsEligible = eligible
		acct.UpdatedAt = s.now()
		out = acct
		return tx.UpdateAccount(ctx, acct)
	})
	return out, err
}

// Summary returns the account with its outstanding and overdue totals. A
// user without an account reads as a fresh bronze account.
func (s *Service) Summary(ctx context.Context, userID int64) (Summary, error) {
	if userID == 0 {
		return Summary{}, ErrUserRequired
	}
	acct, err := s.repo.GetAccount(ctx, userID)
	if errors.Is(err, ErrAccountNotFound) {
		return Summarize(NewAccount(userID), nil, s.now()), nil
	}
	if err != nil {
		return Summary{}, err
	}
	txs, err := s.repo.ListTransactions(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(acct, txs, s.now()), nil
}

// Transactions lists the credit ledger.
func (s *Service) Transactions(ctx context.Context, userID int64) ([]Transaction, error) {
	if userID == 0 {
		return nil, ErrUserRequired
	}
	return s.repo.ListTransactions(ctx, userID)
}

func isRejection(err error) bool {
	return errors.Is(err, ErrCreditNotEligible) || errors.Is(err, ErrCreditLimitExceeded) || errors.Is(err, ErrCreditOverdue)
}
