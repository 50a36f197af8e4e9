package wallet

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// TxRepository exposes wallet access inside a transaction.
type TxRepository interface {
	// LockWallet returns ErrWalletNotFound when the user has no wallet row.
	LockWallet(ctx context.Context, userID int64) (Wallet, error)
	SetBalance(ctx context.Context, userID int64, balance decimal.Decimal) error
	// AddBalance creates the wallet when missing and returns the new balance.
	AddBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
	InsertTransaction(ctx context.Context, tx Transaction) (Transaction, error)
	ListTransactions(ctx context.Context, userID int64) ([]Transaction, error)
}

// Discounted applies rate to total, rounded to cents.
func Discounted(total, rate decimal.Decimal) decimal.Decimal {
	return total.Mul(decimal.NewFromInt(1).Sub(rate)).Round(2)
}

// Pay debits the discounted order total from the user's locked wallet row.
// The balance check and the debit happen under the same row lock.
func Pay(ctx context.Context, repo TxRepository, userID, orderID int64, total, rate decimal.Decimal) (Payment, error) {
	if userID == 0 {
		return Payment{}, ErrUserRequired
	}
	if !total.IsPositive() {
		return Payment{}, ErrInvalidAmount
	}
	due := Discounted(total, rate)
	w, err := repo.LockWallet(ctx, userID)
	if errors.Is(err, ErrWalletNotFound) {
		return Payment{}, &InsufficientBalanceError{UserID: userID, Required: due, Available: decimal.Zero}
	}
	if err != nil {
		return Payment{}, err
	}
	if w.Balance.LessThan(due) {
		return Payment{}, &InsufficientBalanceError{UserID: userID, Required: due, Available: w.Balance}
	}
	after := w.Balance.Sub(due)
	if err := repo.SetBalance(ctx, userID, after); err != nil {
		return Payment{}, err
	}
	if _, err := repo.InsertTransaction(ctx, Transaction{
		UserID:  userID,
		Type:    TransactionPayment,
		Amount:  due,
		OrderID: orderID,
	}); err != nil {
		return Payment{}, err
	}
	return Payment{Charged: due, Discount: total.Sub(due), BalanceAfter: after}, nil
}

// Credit adds a deposit or refund to the wallet.
func Credit(ctx context.Context, repo TxRepository, in Transaction) (decimal.Decimal, error) {
	if in.UserID == 0 {
		return decimal.Zero, ErrUserRequired
	}
	if !in.Amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if in.Type != TransactionDeposit && in.Type != TransactionRefund {
		return decimal.Zero, errors.New("wallet: credit must be a deposit or refund")
	}
	in.Amount = in.Amount.Round(2)
	balance, err := repo.AddBalance(ctx, in.UserID, in.Amount)
	if err != nil {
		return decimal.Zero, err
	}
	if _, err := repo.InsertTransaction(ctx, in); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Fold sums the signed ledger.
func Fold(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Signed())
	}
	return total
}
