package supplier

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wholesale-hub/settlement/internal/inventory"
	"github.com/wholesale-hub/settlement/internal/platform/db"
)

// Repository persists supplier ledger data in PostgreSQL.
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

// NewTxRepository binds the supplier queries to an open transaction or pool.
func NewTxRepository(q db.DBTX) TxRepository {
	return &txRepository{q: q}
}

// WithTx runs fn with supplier and stock ledgers bound to one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository, inventory.TxRepository) error) error {
	if r == nil {
		return errors.New("supplier repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx), inventory.NewTxRepository(tx))
	})
}

// GetBalance reads the materialised balance row.
func (r *Repository) GetBalance(ctx context.Context, supplierID int64) (Balance, error) {
	if r == nil {
		return Balance{}, errors.New("supplier repository not initialised")
	}
	b := Balance{SupplierID: supplierID}
	err := r.pool.QueryRow(ctx, `SELECT total_imports, total_exports, total_sales, total_payments, balance, total_stock_value, updated_at
FROM supplier_balances WHERE supplier_id = $1`, supplierID).
		Scan(&b.TotalImports, &b.TotalExports, &b.TotalSales, &b.TotalPayments, &b.Balance, &b.TotalStockValue, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, ErrBalanceNotFound
	}
	if err != nil {
		return Balance{}, err
	}
	return b, nil
}

// ListTransactions returns the supplier ledger outside any transaction.
func (r *Repository) ListTransactions(ctx context.Context, supplierID int64) ([]Transaction, error) {
	return NewTxRepository(r.pool).ListTransactions(ctx, supplierID)
}

// ListPositions returns the supplier lots outside any transaction.
func (r *Repository) ListPositions(ctx context.Context, supplierID int64) ([]Position, error) {
	return NewTxRepository(r.pool).ListPositions(ctx, supplierID)
}

// ListSupplierIDs returns every supplier with ledger activity.
func (r *Repository) ListSupplierIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT supplier_id FROM supplier_transactions
UNION SELECT supplier_id FROM supplier_stock_positions
ORDER BY supplier_id`)
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

const positionColumns = `supplier_id, product_id, warehouse_id, quantity, avg_cost, last_import_date`

func scanPositions(rows pgx.Rows) ([]Position, error) {
	defer rows.Close()
	var out []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.SupplierID, &p.ProductID, &p.WarehouseID, &p.Quantity, &p.AvgCost, &p.LastImportDate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *txRepository) LockOpenPositions(ctx context.Context, productID int64) ([]Position, error) {
	rows, err := r.q.Query(ctx, `SELECT `+positionColumns+`
FROM supplier_stock_positions
WHERE product_id = $1 AND quantity > 0
ORDER BY last_import_date ASC, supplier_id ASC, warehouse_id ASC
FOR UPDATE`, productID)
	if err != nil {
		return nil, err
	}
	return scanPositions(rows)
}

func (r *txRepository) GetPositionForUpdate(ctx context.Context, supplierID, productID, warehouseID int64) (Position, error) {
	var p Position
	err := r.q.QueryRow(ctx, `SELECT `+positionColumns+`
FROM supplier_stock_positions
WHERE supplier_id = $1 AND product_id = $2 AND warehouse_id = $3
FOR UPDATE`, supplierID, productID, warehouseID).
		Scan(&p.SupplierID, &p.ProductID, &p.WarehouseID, &p.Quantity, &p.AvgCost, &p.LastImportDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return Position{}, ErrSupplierLotNotFound
	}
	if err != nil {
		return Position{}, err
	}
	return p, nil
}

func (r *txRepository) UpsertPosition(ctx context.Context, p Position) error {
	_, err := r.q.Exec(ctx, `INSERT INTO supplier_stock_positions (supplier_id, product_id, warehouse_id, quantity, avg_cost, last_import_date)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (supplier_id, product_id, warehouse_id) DO UPDATE
SET quantity = EXCLUDED.quantity, avg_cost = EXCLUDED.avg_cost, last_import_date = EXCLUDED.last_import_date`,
		p.SupplierID, p.ProductID, p.WarehouseID, p.Quantity, p.AvgCost, p.LastImportDate)
	return err
}

func (r *txRepository) SetPositionQuantity(ctx context.Context, supplierID, productID, warehouseID int64, qty int) error {
	tag, err := r.q.Exec(ctx, `UPDATE supplier_stock_positions SET quantity = $4
WHERE supplier_id = $1 AND product_id = $2 AND warehouse_id = $3`, supplierID, productID, warehouseID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrSupplierLotNotFound
	}
	return nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, tx Transaction) (Transaction, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO supplier_transactions
(supplier_id, product_id, warehouse_id, type, quantity, unit_price, total_amount, reference_number, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at`,
		tx.SupplierID, nullableID(tx.ProductID), nullableID(tx.WarehouseID), string(tx.Type),
		nullableQty(tx.Quantity), nullableAmount(tx.UnitPrice, tx.Quantity), tx.TotalAmount,
		nullableText(tx.ReferenceNumber), tx.Notes).
		Scan(&tx.ID, &tx.CreatedAt)
	return tx, err
}

func (r *txRepository) ListTransactions(ctx context.Context, supplierID int64) ([]Transaction, error) {
	rows, err := r.q.Query(ctx, `SELECT id, supplier_id, COALESCE(product_id, 0), COALESCE(warehouse_id, 0), type,
COALESCE(quantity, 0), COALESCE(unit_price, 0), total_amount, COALESCE(reference_number, ''), notes, created_at
FROM supplier_transactions WHERE supplier_id = $1 ORDER BY created_at, id`, supplierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		var typ string
		if err := rows.Scan(&t.ID, &t.SupplierID, &t.ProductID, &t.WarehouseID, &typ,
			&t.Quantity, &t.UnitPrice, &t.TotalAmount, &t.ReferenceNumber, &t.Notes, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = TransactionType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *txRepository) ListPositions(ctx context.Context, supplierID int64) ([]Position, error) {
	rows, err := r.q.Query(ctx, `SELECT `+positionColumns+`
FROM supplier_stock_positions WHERE supplier_id = $1 ORDER BY product_id, warehouse_id`, supplierID)
	if err != nil {
		return nil, err
	}
	return scanPositions(rows)
}

func (r *txRepository) UpsertBalance(ctx context.Context, b Balance) error {
	_, err := r.q.Exec(ctx, `INSERT INTO supplier_balances
(supplier_id, total_imports, total_exports, total_sales, total_payments, balance, total_stock_value, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (supplier_id) DO UPDATE SET
total_imports = EXCLUDED.total_imports,
total_exports = EXCLUDED.total_exports,
total_sales = EXCLUDED.total_sales,
total_payments = EXCLUDED.total_payments,
balance = EXCLUDED.balance,
total_stock_value = EXCLUDED.total_stock_value,
updated_at = EXCLUDED.updated_at`,
		b.SupplierID, b.TotalImports, b.TotalExports, b.TotalSales, b.TotalPayments, b.Balance, b.TotalStockValue, b.UpdatedAt)
	return err
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableQty(q int) any {
	if q == 0 {
		return nil
	}
	return q
}

func nullableAmount(v decimal.Decimal, qty int) any {
	if qty == 0 {
		return nil
	}
	return v
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
