package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wholesale-hub/settlement/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
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

// NewTxRepository binds the stock queries to an open transaction or pool.
func NewTxRepository(q db.DBTX) TxRepository {
	return &txRepository{q: q}
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// GetStock reads stock outside any transaction.
func (r *Repository) GetStock(ctx context.Context, productID, warehouseID int64) (Stock, error) {
	if r == nil {
		return Stock{}, errors.New("inventory repository not initialised")
	}
	return NewTxRepository(r.pool).GetStock(ctx, productID, warehouseID)
}

func (r *txRepository) DecrementStock(ctx context.Context, productID, warehouseID int64, qty int) (bool, error) {
	tag, err := r.q.Exec(ctx, `UPDATE inventory SET stock = stock - $3, updated_at = NOW()
WHERE product_id = $1 AND warehouse_id = $2 AND stock >= $3`, productID, warehouseID, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *txRepository) IncrementStock(ctx context.Context, productID, warehouseID int64, qty int) error {
	_, err := r.q.Exec(ctx, `INSERT INTO inventory (product_id, warehouse_id, stock, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (product_id, warehouse_id) DO UPDATE SET stock = inventory.stock + EXCLUDED.stock, updated_at = NOW()`, productID, warehouseID, qty)
	return err
}

func (r *txRepository) GetStock(ctx context.Context, productID, warehouseID int64) (Stock, error) {
	st := Stock{ProductID: productID, WarehouseID: warehouseID}
	err := r.q.QueryRow(ctx, `SELECT stock, updated_at FROM inventory WHERE product_id = $1 AND warehouse_id = $2`, productID, warehouseID).
		Scan(&st.Quantity, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return Stock{}, err
	}
	return st, nil
}
