package wallet

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wholesale-hub/settlement/internal/platform/db"
)

// Repository persists wallets in PostgreSQL.
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

// NewTxRepository binds wallet queries to an open transaction or pool.
func NewTxRepository(q db.DBTX) TxRepository {
	return &txRepository{q: q}
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("wallet repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// GetWallet reads a wallet without locking.
func (r *Repository) GetWallet(ctx context.Context, userID int64) (Wallet, error) {
	w := Wallet{UserID: userID}
	err := r.pool.QueryRow(ctx, `SELECT balance, updated_at FROM wallets WHERE user_id = $1`, userID).Scan(&w.Balance, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	if err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// ListTransactions returns the user's wallet ledger.
func (r *Repository) ListTransactions(ctx context.Context, userID int64) ([]Transaction, error) {
	return NewTxRepository(r.pool).ListTransactions(ctx, userID)
}

// ListUserIDs returns every user holding a wallet.
func (r *Repository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM wallets ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *txRepository) LockWallet(ctx context.Context, userID int64) (Wallet, error) {
	w := Wallet{UserID: userID}
	err := r.q.QueryRow(ctx, `SELECT balance, updated_at FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).Scan(&w.Balance, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	if err != nil {
		return Wallet{}, err
	}
	return w, nil
}

func (r *txRepository) SetBalance(ctx context.Context, userID int64, balance decimal.Decimal) error {
	tag, err := r.q.Exec(ctx, `UPDATE wallets SET balance = $2, updated_at = NOW() WHERE user_id = $1`, userID, balance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrWalletNotFound
	}
	return nil
}

func (r *txRepository) AddBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.q.QueryRow(ctx, `INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = NOW()
RETURNING balance`, userID, amount).Scan(&balance)
	return balance, err
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	var orderID any
	if t.OrderID != 0 {
		orderID = t.OrderID
	}
	err := r.q.QueryRow(ctx, `INSERT INTO wallet_transactions (user_id, type, amount, order_id, reference)
VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		t.UserID, string(t.Type), t.Amount, orderID, t.Reference).Scan(&t.ID, &t.CreatedAt)
	return t, err
}

func (r *txRepository) ListTransactions(ctx context.Context, userID int64) ([]Transaction, error) {
	rows, err := r.q.Query(ctx, `SELECT id, user_id, type, amount, COALESCE(order_id, 0), reference, created_at
FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		var typ string
		if err := rows.Scan(&t.ID, &t.UserID, &typ, &t.Amount, &t.OrderID, &t.Reference, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = TransactionType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}
