package credit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wholesale-hub/settlement/internal/platform/db"
)

// Repository persists credit accounts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	q db.DBTX
}

// NewTxRepository binds credit queries to an open transaction or pool.
func NewTxRepository(q db.DBTX) TxRepository {
	return &txRepository{q: q}
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("credit repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// GetAccount reads an account without locking.
func (r *Repository) GetAccount(ctx context.Context, userID int64) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM customer_credits WHERE user_id = $1`, userID))
}

// ListTransactions returns the credit ledger outside any transaction.
func (r *Repository) ListTransactions(ctx context.Context, userID int64) ([]Transaction, error) {
	return NewTxRepository(r.pool).ListTransactions(ctx, userID)
}

const accountColumns = `user_id, total_purchases, credit_limit, current_balance, loyalty_level, credit_period_days, is_eligible, last_payment_date, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var level string
	err := row.Scan(&a.UserID, &a.TotalPurchases, &a.CreditLimit, &a.CurrentBalance, &level,
		&a.CreditPeriodDays, &a.IsEligible, &a.LastPaymentDate, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, err
	}
	a.LoyaltyLevel = Level(level)
	return a, nil
}

func (r *txRepository) LockAccount(ctx context.Context, userID int64) (Account, error) {
	return scanAccount(r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM customer_credits WHERE user_id = $1 FOR UPDATE`, userID))
}

func (r *txRepository) InsertAccount(ctx context.Context, a Account) error {
	_, err := r.q.Exec(ctx, `INSERT INTO customer_credits
(user_id, total_purchases, credit_limit, current_balance, loyalty_level, credit_period_days, is_eligible, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (user_id) DO NOTHING`,
		a.UserID, a.TotalPurchases, a.CreditLimit, a.CurrentBalance, string(a.LoyaltyLevel), a.CreditPeriodDays, a.IsEligible)
	return err
}

func (r *txRepository) UpdateAccount(ctx context.Context, a Account) error {
	tag, err := r.q.Exec(ctx, `UPDATE customer_credits SET
total_purchases = $2, credit_limit = $3, current_balance = $4, loyalty_level = $5,
credit_period_days = $6, is_eligible = $7, last_payment_date = $8, updated_at = NOW()
WHERE user_id = $1`,
		a.UserID, a.TotalPurchases, a.CreditLimit, a.CurrentBalance, string(a.LoyaltyLevel),
		a.CreditPeriodDays, a.IsEligible, a.LastPaymentDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	var orderID any
	if t.OrderID != 0 {
		orderID = t.OrderID
	}
	err := r.q.QueryRow(ctx, `INSERT INTO credit_transactions (user_id, order_id, type, amount, balance_after, due_date, status, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`,
		t.UserID, orderID, string(t.Type), t.Amount, t.BalanceAfter, t.DueDate, string(t.Status), t.Notes).
		Scan(&t.ID, &t.CreatedAt)
	return t, err
}

const transactionColumns = `id, user_id, COALESCE(order_id, 0), type, amount, balance_after, due_date, status, notes, created_at`

func scanTransactions(rows pgx.Rows) ([]Transaction, error) {
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		var typ, status string
		if err := rows.Scan(&t.ID, &t.UserID, &t.OrderID, &typ, &t.Amount, &t.BalanceAfter, &t.DueDate, &status, &t.Notes, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = TransactionType(typ)
		t.Status = Status(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *txRepository) ListTransactions(ctx context.Context, userID int64) ([]Transaction, error) {
	rows, err := r.q.Query(ctx, `SELECT `+transactionColumns+` FROM credit_transactions WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func (r *txRepository) ListPending(ctx context.Context, userID int64) ([]Transaction, error) {
	rows, err := r.q.Query(ctx, `SELECT `+transactionColumns+` FROM credit_transactions
WHERE user_id = $1 AND type = 'purchase' AND status = 'pending'
ORDER BY due_date ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func (r *txRepository) MarkPaid(ctx context.Context, ids []int64) error {
	_, err := r.q.Exec(ctx, `UPDATE credit_transactions SET status = 'paid' WHERE id = ANY($1) AND status = 'pending'`, ids)
	return err
}
