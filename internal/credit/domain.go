package credit

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Level names a loyalty tier.
type Level string

const (
	LevelBronze  Level = "bronze"
	LevelSilver  Level = "silver"
	LevelGold    Level = "gold"
	LevelDiamond Level = "diamond"
)

// Tier binds a lifetime purchase threshold to a credit limit and period.
type Tier struct {
	Level      Level
	Threshold  decimal.Decimal
	Limit      decimal.Decimal
	PeriodDays int
}

// Tiers is ordered from lowest to highest threshold.
var Tiers = []Tier{
	{Level: LevelBronze, Threshold: decimal.Zero, Limit: decimal.NewFromInt(500_000), PeriodDays: 7},
	{Level: LevelSilver, Threshold: decimal.NewFromInt(1_000_000), Limit: decimal.NewFromInt(1_500_000), PeriodDays: 14},
	{Level: LevelGold, Threshold: decimal.NewFromInt(5_000_000), Limit: decimal.NewFromInt(3_000_000), PeriodDays: 21},
	{Level: LevelDiamond, Threshold: decimal.NewFromInt(10_000_000), Limit: decimal.NewFromInt(5_000_000), PeriodDays: 30},
}

// TierFor returns the highest tier whose threshold the volume reaches.
func TierFor(totalPurchases decimal.Decimal) Tier {
	out := Tiers[0]
	for _, t := range Tiers {
		if totalPurchases.GreaterThanOrEqual(t.Threshold) {
			out = t
		}
	}
	return out
}

func rank(l Level) int {
	for i, t := range Tiers {
		if t.Level == l {
			return i
		}
	}
	return -1
}

// TierByLevel looks up a tier by name.
func TierByLevel(l Level) (Tier, bool) {
	for _, t := range Tiers {
		if t.Level == l {
			return t, true
		}
	}
	return Tier{}, false
}

// AtLeast reports whether l ranks at or above min. Unknown levels never match.
func AtLeast(l, min Level) bool {
	r := rank(l)
	return r >= 0 && r >= rank(min)
}

// Account is a customer's trade-credit standing.
type Account struct {
	UserID           int64
	TotalPurchases   decimal.Decimal
	CreditLimit      decimal.Decimal
	CurrentBalance   decimal.Decimal
	LoyaltyLevel     Level
	CreditPeriodDays int
	IsEligible       bool
	LastPaymentDate  *time.Time
	UpdatedAt        time.Time
}

// NewAccount opens an eligible bronze account.
func NewAccount(userID int64) Account {
	t := Tiers[0]
	return Account{
		UserID:           userID,
		TotalPurchases:   decimal.Zero,
		CreditLimit:      t.Limit,
		CurrentBalance:   decimal.Zero,
		LoyaltyLevel:     t.Level,
		CreditPeriodDays: t.PeriodDays,
		IsEligible:       true,
	}
}

// Available is the unused part of the limit, never negative.
func (a Account) Available() decimal.Decimal {
	avail := a.CreditLimit.Sub(a.CurrentBalance)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// TransactionType enumerates credit ledger entries.
type TransactionType string

// Status tracks whether a purchase has been covered by payments.
type Status string

const (
	TransactionPurchase TransactionType = "purchase"
	TransactionPayment  TransactionType = "payment"

	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// Transaction is a credit ledger row. Purchases carry a due date.
type Transaction struct {
	ID           int64
	UserID       int64
	OrderID      int64
	Type         TransactionType
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	DueDate      *time.Time
	Status       Status
	Notes        string
	CreatedAt    time.Time
}

// Overdue reports whether a pending purchase is past due at now.
func (t Transaction) Overdue(now time.Time) bool {
	return t.Type == TransactionPurchase && t.Status == StatusPending && t.DueDate != nil && t.DueDate.Before(now)
}

// Eligibility answers whether a purchase amount can go on credit.
type Eligibility struct {
	Eligible  bool            `json:"eligible"`
	Reason    string          `json:"reason,omitempty"`
	Available decimal.Decimal `json:"available"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

// PaymentResult reports the new balance and the purchases settled.
type PaymentResult struct {
	Payment     Transaction
	Balance     decimal.Decimal
	SettledIDs  []int64
	Unallocated decimal.Decimal
	// Excess is the part of the tendered amount above the balance owed.
	Excess decimal.Decimal
}

// Summary is a read-side view of an account.
type Summary struct {
	Account       Account
	PendingAmount decimal.Decimal
	PendingCount  int
	OverdueAmount decimal.Decimal
	OverdueCount  int
	NextDueDate   *time.Time
}

// Eligibility reasons.
const (
	ReasonNotEligible   = "not_eligible"
	ReasonLimitExceeded = "credit_limit_exceeded"
	ReasonOverdue       = "overdue"
)

var (
	// ErrCreditNotEligible means the account was switched off for credit.
	ErrCreditNotEligible = errors.New("credit: account not eligible")
	// ErrCreditLimitExceeded is matched by every *CreditLimitExceededError.
	ErrCreditLimitExceeded = errors.New("credit: limit exceeded")
	// ErrCreditOverdue means a pending purchase is past its due date.
	ErrCreditOverdue = errors.New("credit: overdue purchases block further credit")
	// ErrAccountNotFound means the user never opened a credit account.
	ErrAccountNotFound = errors.New("credit: account not found")
	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = errors.New("credit: amount must be positive")
	// ErrNothingOwed indicates a payment against a settled account.
	ErrNothingOwed = errors.New("credit: nothing owed")
	// ErrUserRequired indicates a missing user id.
	ErrUserRequired = errors.New("credit: user required")
)

// CreditLimitExceededError reports how far a purchase overshoots the limit.
type CreditLimitExceededError struct {
	UserID    int64
	Requested decimal.Decimal
	Available decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *CreditLimitExceededError) Error() string {
	return fmt.Sprintf("credit: limit exceeded for user %d: requested %s, available %s, shortfall %s",
		e.UserID, e.Requested.StringFixed(2), e.Available.StringFixed(2), e.Shortfall.StringFixed(2))
}

// Is makes errors.Is(err, ErrCreditLimitExceeded) hold.
func (e *CreditLimitExceededError) Is(target error) bool {
	return target == ErrCreditLimitExceeded
}

// EligibilityFromError turns a Check result into a caller-facing answer.
func EligibilityFromError(acct Account, err error) Eligibility {
	out := Eligibility{Eligible: err == nil, Available: acct.Available(), Shortfall: decimal.Zero}
	var limitErr *CreditLimitExceededError
	switch {
	case err == nil:
	case errors.Is(err, ErrCreditNotEligible):
		out.Reason = ReasonNotEligible
	case errors.As(err, &limitErr):
		out.Reason = ReasonLimitExceeded
		out.Shortfall = limitErr.Shortfall
	case errors.Is(err, ErrCreditOverdue):
		out.Reason = ReasonOverdue
	}
	return out
}
