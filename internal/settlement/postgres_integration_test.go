//go:build integration

package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/wholesale-hub/settlement/internal/inventory"
	"github.com/wholesale-hub/settlement/internal/platform/db/dbtest"
)

func seed(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) {
	t.Helper()
	_, err := pool.Exec(context.Background(), sql, args...)
	require.NoError(t, err)
}

func TestPostgresConcurrentOrdersNeverOversell(t *testing.T) {
	pool := dbtest.NewPool(t)
	ctx := context.Background()
	seed(t, pool, `INSERT INTO inventory (product_id, warehouse_id, stock) VALUES (1, 1, 10)`)
	seed(t, pool, `INSERT INTO supplier_stock_positions (supplier_id, product_id, warehouse_id, quantity, avg_cost, last_import_date)
		VALUES (5, 1, 1, 10, 7.5, $1)`, time.Now().Add(-time.Hour))

	seed(t, pool, `INSERT INTO product_prices (product_id, unit_price) VALUES (1, 10)`)
	svc := NewService(NewRepository(pool), Config{TaxRate: decimal.Zero}, Options{}, nil)

	errs := make([]error, 2)
	var g errgroup.Group
	for i := range errs {
		i := i
		g.Go(func() error {
			_, errs[i] = svc.SettleOrder(ctx, Request{
				UserID:      int64(200 + i),
				WarehouseID: 1,
				Items:       []Line{{ProductID: 1, Quantity: 6}},
				PaymentMode: PaymentCash,
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var failed int
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, inventory.ErrInsufficientStock)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	var stock, orders, sales int
	require.NoError(t, pool.QueryRow(ctx, `SELECT stock FROM inventory WHERE product_id = 1 AND warehouse_id = 1`).Scan(&stock))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&orders))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM supplier_transactions WHERE type = 'sale'`).Scan(&sales))
	assert.Equal(t, 4, stock)
	assert.Equal(t, 1, orders)
	assert.Equal(t, 6, sales)
}

func TestPostgresWalletSettlementAndCancel(t *testing.T) {
	pool := dbtest.NewPool(t)
	ctx := context.Background()
	seed(t, pool, `INSERT INTO inventory (product_id, warehouse_id, stock) VALUES (1, 1, 3)`)
	seed(t, pool, `INSERT INTO wallets (user_id, balance) VALUES (9, 100000)`)
	seed(t, pool, `INSERT INTO cart_items (user_id, product_id, warehouse_id, quantity) VALUES (9, 1, 1, 1)`)
	seed(t, pool, `INSERT INTO product_prices (product_id, unit_price) VALUES (1, 100000)`)

	svc := NewService(NewRepository(pool), Config{TaxRate: decimal.Zero}, Options{}, nil)
	res, err := svc.SettleOrder(ctx, Request{
		UserID:      9,
		WarehouseID: 1,
		Items:       []Line{{ProductID: 1, Quantity: 1}},
		PaymentMode: PaymentWallet,
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(dec("99000")))
	require.NotNil(t, got.WalletDiscount)
	assert.True(t, got.WalletDiscount.Equal(dec("1000")))
	require.Len(t, got.Items, 1)

	var balance decimal.Decimal
	var cart int
	require.NoError(t, pool.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id = 9`).Scan(&balance))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM cart_items WHERE user_id = 9`).Scan(&cart))
	assert.True(t, balance.Equal(dec("1000")))
	assert.Zero(t, cart)

	_, err = svc.Cancel(ctx, res.Order.ID)
	require.NoError(t, err)
	require.NoError(t, pool.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id = 9`).Scan(&balance))
	assert.True(t, balance.Equal(dec("100000")))
}
