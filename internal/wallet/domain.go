package wallet

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDiscountRate is the share knocked off orders paid from the wallet.
var DefaultDiscountRate = decimal.RequireFromString("0.01")

// TransactionType enumerates wallet ledger entries.
type TransactionType string

const (
	TransactionDeposit TransactionType = "deposit"
	TransactionRefund  TransactionType = "refund"
	TransactionPayment TransactionType = "payment"
)

// Wallet is a customer's prepaid balance.
type Wallet struct {
	UserID    int64
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

// Transaction is an append-only wallet ledger row. Amount is always positive;
// Type carries the direction.
type Transaction struct {
	ID        int64
	UserID    int64
	Type      TransactionType
	Amount    decimal.Decimal
	OrderID   int64
	Reference string
	CreatedAt time.Time
}

// Signed returns the amount with the direction applied.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionPayment {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Payment is the outcome of settling an order from the wallet.
type Payment struct {
	Charged      decimal.Decimal
	Discount     decimal.Decimal
	BalanceAfter decimal.Decimal
}

// Reconciliation compares the stored balance with the folded ledger.
type Reconciliation struct {
	UserID int64           `json:"user_id"`
	Stored decimal.Decimal `json:"stored"`
	Folded decimal.Decimal `json:"folded"`
	Drift  decimal.Decimal `json:"drift"`
}

// Balanced reports whether stored and folded agree.
func (r Reconciliation) Balanced() bool {
	return r.Drift.IsZero()
}

var (
	// ErrInsufficientBalance is matched by every *InsufficientBalanceError.
	ErrInsufficientBalance = errors.New("wallet: insufficient balance")
	// ErrWalletNotFound means the user never funded a wallet.
	ErrWalletNotFound = errors.New("wallet: not found")
	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = errors.New("wallet: amount must be positive")
	// ErrUserRequired indicates a missing user id.
	ErrUserRequired = errors.New("wallet: user required")
)

// InsufficientBalanceError carries the discounted amount due and what the
// wallet holds.
type InsufficientBalanceError struct {
	UserID    int64
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("wallet: insufficient balance for user %d: required %s, available %s",
		e.UserID, e.Required.StringFixed(2), e.Available.StringFixed(2))
}

// Is makes errors.Is(err, ErrInsufficientBalance) hold.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
