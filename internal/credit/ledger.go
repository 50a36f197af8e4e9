package credit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TxRepository exposes the credit ledger inside a transaction.
type TxRepository interface {
	// LockAccount returns ErrAccountNotFound when no row exists.
	LockAccount(ctx context.Context, userID int64) (Account, error)
	// InsertAccount is a no-op when the account already exists.
	InsertAccount(ctx context.Context, acct Account) error
	UpdateAccount(ctx context.Context, acct Account) error
	InsertTransaction(ctx context.Context, tx Transaction) (Transaction, error)
	ListTransactions(ctx context.Context, userID int64) ([]Transaction, error)
	// ListPending returns pending purchases ordered by due date, oldest first.
	ListPending(ctx context.Context, userID int64) ([]Transaction, error)
	MarkPaid(ctx context.Context, ids []int64) error
}

// OpenAccount locks the user's account, opening it at bronze when missing.
func OpenAccount(ctx context.Context, repo TxRepository, userID int64) (Account, error) {
	if userID == 0 {
		return Account{}, ErrUserRequired
	}
	acct, err := repo.LockAccount(ctx, userID)
	if !errors.Is(err, ErrAccountNotFound) {
		return acct, err
	}
	if err := repo.InsertAccount(ctx, NewAccount(userID)); err != nil {
		return Account{}, err
	}
	return repo.LockAccount(ctx, userID)
}

// Check gates a credit purchase. The order of rejections is: account
// switched off, limit, then overdue purchases.
func Check(ctx context.Context, repo TxRepository, acct Account, amount decimal.Decimal, now time.Time) error {
	if !acct.IsEligible {
		return ErrCreditNotEligible
	}
	available := acct.CreditLimit.Sub(acct.CurrentBalance)
	if amount.GreaterThan(available) {
		if available.IsNegative() {
			available = decimal.Zero
		}
		return &CreditLimitExceededError{
			UserID:    acct.UserID,
			Requested: amount,
			Available: available,
			Shortfall: amount.Sub(available),
		}
	}
	pending, err := repo.ListPending(ctx, acct.UserID)
	if err != nil {
		return err
	}
	for _, p := range pending {
		if p.Overdue(now) {
			return fmt.Errorf("%w: purchase %d was due %s", ErrCreditOverdue, p.ID, p.DueDate.Format(time.DateOnly))
		}
	}
	return nil
}

// Purchase puts amount on the user's account, due after the tier's period.
func Purchase(ctx context.Context, repo TxRepository, userID, orderID int64, amount decimal.Decimal, now time.Time) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	amount = amount.Round(2)
	acct, err := OpenAccount(ctx, repo, userID)
	if err != nil {
		return Transaction{}, err
	}
	if err := Check(ctx, repo, acct, amount, now); err != nil {
		return Transaction{}, err
	}
	due := now.AddDate(0, 0, acct.CreditPeriodDays)
	acct.CurrentBalance = acct.CurrentBalance.Add(amount)
	acct.UpdatedAt = now
	if err := repo.UpdateAccount(ctx, acct); err != nil {
		return Transaction{}, err
	}
	return repo.InsertTransaction(ctx, Transaction{
		UserID:       userID,
		OrderID:      orderID,
		Type:         TransactionPurchase,
		Amount:       amount,
		BalanceAfter: acct.CurrentBalance,
		DueDate:      &due,
		Status:       StatusPending,
	})
}

// Pay records a repayment and settles pending purchases oldest-due first.
// Payments are applied cumulatively: a purchase is marked paid only once the
// payments not yet consumed by earlier settlements cover its full amount.
// Only the amount owed is recorded; anything tendered beyond it is returned
// as Excess and never becomes credit against future purchases.
func Pay(ctx context.Context, repo TxRepository, userID int64, amount decimal.Decimal, notes string, now time.Time) (PaymentResult, error) {
	if userID == 0 {
		return PaymentResult{}, ErrUserRequired
	}
	if !amount.IsPositive() {
		return PaymentResult{}, ErrInvalidAmount
	}
	amount = amount.Round(2)
	acct, err := repo.LockAccount(ctx, userID)
	if err != nil {
		return PaymentResult{}, err
	}
	if !acct.CurrentBalance.IsPositive() {
		return PaymentResult{}, ErrNothingOwed
	}
	excess := decimal.Zero
	if amount.GreaterThan(acct.CurrentBalance) {
		excess = amount.Sub(acct.CurrentBalance)
		amount = acct.CurrentBalance
	}
	acct.CurrentBalance = acct.CurrentBalance.Sub(amount)
	acct.LastPaymentDate = &now
	acct.UpdatedAt = now
	if err := repo.UpdateAccount(ctx, acct); err != nil {
		return PaymentResult{}, err
	}
	payment, err := repo.InsertTransaction(ctx, Transaction{
		UserID:       userID,
		Type:         TransactionPayment,
		Amount:       amount,
		BalanceAfter: acct.CurrentBalance,
		Status:       StatusPaid,
		Notes:        notes,
	})
	if err != nil {
		return PaymentResult{}, err
	}

	all, err := repo.ListTransactions(ctx, userID)
	if err != nil {
		return PaymentResult{}, err
	}
	unapplied := Unapplied(all)
	pending, err := repo.ListPending(ctx, userID)
	if err != nil {
		return PaymentResult{}, err
	}
	var settled []int64
	for _, p := range pending {
		if p.Amount.GreaterThan(unapplied) {
			break
		}
		unapplied = unapplied.Sub(p.Amount)
		settled = append(settled, p.ID)
	}
	if len(settled) > 0 {
		if err := repo.MarkPaid(ctx, settled); err != nil {
			return PaymentResult{}, err
		}
	}
	return PaymentResult{Payment: payment, Balance: acct.CurrentBalance, SettledIDs: settled, Unallocated: unapplied, Excess: excess}, nil
}

// Unapplied is Σpayments minus the purchases already marked paid.
func Unapplied(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		switch {
		case t.Type == TransactionPayment:
			total = total.Add(t.Amount)
		case t.Type == TransactionPurchase && t.Status == StatusPaid:
			total = total.Sub(t.Amount)
		}
	}
	return total
}

// RecordVolume adds a committed order to lifetime purchases and upgrades the
// tier when a threshold is crossed. Tiers never go down.
func RecordVolume(ctx context.Context, repo TxRepository, userID int64, amount decimal.Decimal, now time.Time) (Account, error) {
	acct, err := OpenAccount(ctx, repo, userID)
	if err != nil {
		return Account{}, err
	}
	acct.TotalPurchases = acct.TotalPurchases.Add(amount)
	if t := TierFor(acct.TotalPurchases); rank(t.Level) > rank(acct.LoyaltyLevel) {
		acct.LoyaltyLevel = t.Level
		acct.CreditLimit = t.Limit
		acct.CreditPeriodDays = t.PeriodDays
	}
	acct.UpdatedAt = now
	if err := repo.UpdateAccount(ctx, acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// ReverseVolume takes a cancelled order back out of lifetime purchases. The
// tier is re-derived from the remaining volume, so it drops when the cancelled
// order was what lifted it.
func ReverseVolume(ctx context.Context, repo TxRepository, userID int64, amount decimal.Decimal, now time.Time) (Account, error) {
	acct, err := OpenAccount(ctx, repo, userID)
	if err != nil {
		return Account{}, err
	}
	acct.TotalPurchases = acct.TotalPurchases.Sub(amount)
	if acct.TotalPurchases.IsNegative() {
		acct.TotalPurchases = decimal.Zero
	}
	if t := TierFor(acct.TotalPurchases); rank(t.Level) < rank(acct.LoyaltyLevel) {
		acct.LoyaltyLevel = t.Level
		acct.CreditLimit = t.Limit
		acct.CreditPeriodDays = t.PeriodDays
	}
	acct.UpdatedAt = now
	if err := repo.UpdateAccount(ctx, acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// Summarize folds an account's ledger into outstanding and overdue totals.
func Summarize(acct Account, txs []Transaction, now time.Time) Summary {
	s := Summary{Account: acct, PendingAmount: decimal.Zero, OverdueAmount: decimal.Zero}
	for _, t := range txs {
		if t.Type != TransactionPurchase || t.Status != StatusPending {
			continue
		}
		s.PendingAmount = s.PendingAmount.Add(t.Amount)
		s.PendingCount++
		if t.Overdue(now) {
			s.OverdueAmount = s.OverdueAmount.Add(t.Amount)
			s.OverdueCount++
		}
		if t.DueDate != nil && (s.NextDueDate == nil || t.DueDate.Before(*s.NextDueDate)) {
			due := *t.DueDate
			s.NextDueDate = &due
		}
	}
	return s
}
