package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type memoryRepo struct {
	mu    sync.Mutex
	stock map[string]int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stock: make(map[string]int)}
}

func key(productID, warehouseID int64) string {
	return fmt.Sprintf("%d:%d", productID, warehouseID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetStock(ctx context.Context, productID, warehouseID int64) (Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{repo: r}).GetStock(ctx, productID, warehouseID)
}

func (tx *memoryTx) DecrementStock(ctx context.Context, productID, warehouseID int64, qty int) (bool, error) {
	k := key(productID, warehouseID)
	if tx.repo.stock[k] < qty {
		return false, nil
	}
	tx.repo.stock[k] -= qty
	return true, nil
}

func (tx *memoryTx) IncrementStock(ctx context.Context, productID, warehouseID int64, qty int) error {
	tx.repo.stock[key(productID, warehouseID)] += qty
	return nil
}

func (tx *memoryTx) GetStock(ctx context.Context, productID, warehouseID int64) (Stock, error) {
	return Stock{ProductID: productID, WarehouseID: warehouseID, Quantity: tx.repo.stock[key(productID, warehouseID)]}, nil
}

func TestDecrementRejectsOversell(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[key(1, 1)] = 5
	ctx := context.Background()

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return Decrement(ctx, tx, 1, 1, 6)
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(1), stockErr.ProductID)
	require.Equal(t, 6, stockErr.Requested)
	require.Equal(t, 5, repo.stock[key(1, 1)])
}

func TestDecrementValidatesInput(t *testing.T) {
	tx := &memoryTx{repo: newMemoryRepo()}
	ctx := context.Background()
	require.ErrorIs(t, Decrement(ctx, tx, 1, 0, 1), ErrLocationRequired)
	require.ErrorIs(t, Decrement(ctx, tx, 1, 1, 0), ErrInvalidQuantity)
	require.ErrorIs(t, Restock(ctx, tx, 1, 1, -2), ErrInvalidQuantity)
}

func TestConcurrentDecrementsNeverGoNegative(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[key(7, 2)] = 10
	ctx := context.Background()

	var mu sync.Mutex
	succeeded, failed := 0, 0
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				return Decrement(ctx, tx, 7, 2, 6)
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientStock):
				failed++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, failed)
	require.Equal(t, 4, repo.stock[key(7, 2)])
}

func TestServiceRestock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	st, err := svc.Restock(ctx, 3, 1, 12)
	require.NoError(t, err)
	require.Equal(t, 12, st.Quantity)

	st, err = svc.Stock(ctx, 3, 1)
	require.NoError(t, err)
	require.Equal(t, 12, st.Quantity)

	_, err = svc.Stock(ctx, 0, 1)
	require.ErrorIs(t, err, ErrLocationRequired)
}
