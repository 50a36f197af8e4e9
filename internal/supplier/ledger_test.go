package supplier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTwoLots(repo *memoryRepo) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.seedLot(Position{SupplierID: 1, ProductID: 7, WarehouseID: 1, Quantity: 5, AvgCost: dec("1000"), LastImportDate: t0})
	repo.seedLot(Position{SupplierID: 2, ProductID: 7, WarehouseID: 1, Quantity: 10, AvgCost: dec("1200"), LastImportDate: t0.Add(24 * time.Hour)})
}

func TestAllocateSaleConsumesOldestLotFirst(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoLots(repo)

	var alloc Allocation
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository, _ inventoryTx) error {
		var err error
		alloc, err = AllocateSale(ctx, tx, 7, 8, 42)
		return err
	})
	require.NoError(t, err)

	require.Len(t, alloc.Lines, 2)
	assert.Equal(t, int64(1), alloc.Lines[0].SupplierID)
	assert.Equal(t, 5, alloc.Lines[0].Quantity)
	assert.True(t, alloc.Lines[0].Total.Equal(dec("5000")))
	assert.Equal(t, int64(2), alloc.Lines[1].SupplierID)
	assert.Equal(t, 3, alloc.Lines[1].Quantity)
	assert.True(t, alloc.Lines[1].Total.Equal(dec("3600")))
	assert.True(t, alloc.Cost().Equal(dec("8600")))
	assert.Equal(t, 8, alloc.Allocated)
	assert.Zero(t, alloc.Unattributed)
	assert.NoError(t, alloc.Shortfall())
	assert.ElementsMatch(t, []int64{1, 2}, alloc.SupplierIDs())

	assert.Equal(t, 0, repo.lot(1, 7, 1).Quantity)
	assert.Equal(t, 7, repo.lot(2, 7, 1).Quantity)

	rows, err := repo.ListTransactions(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, TransactionSale, rows[0].Type)
	assert.Equal(t, "ORD-42", rows[0].ReferenceNumber)
	assert.True(t, rows[0].UnitPrice.Equal(dec("1200")))
}

func TestAllocateSaleReportsShortfallWithoutFailing(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoLots(repo)

	var alloc Allocation
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository, _ inventoryTx) error {
		var err error
		alloc, err = AllocateSale(ctx, tx, 7, 20, 43)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 15, alloc.Allocated)
	assert.Equal(t, 5, alloc.Unattributed)
	assert.ErrorIs(t, alloc.Shortfall(), ErrSupplierLotNotFound)
	assert.Equal(t, 0, repo.lot(1, 7, 1).Quantity)
	assert.Equal(t, 0, repo.lot(2, 7, 1).Quantity)
}

func TestAllocateSaleWithoutLots(t *testing.T) {
	repo := newMemoryRepo()
	var alloc Allocation
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository, _ inventoryTx) error {
		var err error
		alloc, err = AllocateSale(ctx, tx, 99, 3, 44)
		return err
	})
	require.NoError(t, err)
	assert.Empty(t, alloc.Lines)
	assert.Equal(t, 3, alloc.Unattributed)
}

func TestAllocateSaleRejectsNonPositiveQuantity(t *testing.T) {
	_, err := AllocateSale(context.Background(), &memoryTx{state: newMemoryRepo().state}, 7, 0, 1)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestFoldExcludesSalesFromBalance(t *testing.T) {
	txs := []Transaction{
		{SupplierID: 1, Type: TransactionImport, TotalAmount: dec("10000")},
		{SupplierID: 1, Type: TransactionExport, TotalAmount: dec("1000")},
		{SupplierID: 1, Type: TransactionSale, TotalAmount: dec("2000")},
		{SupplierID: 1, Type: TransactionPayment, TotalAmount: dec("3000")},
		{SupplierID: 2, Type: TransactionImport, TotalAmount: dec("999")},
	}
	positions := []Position{
		{SupplierID: 1, Quantity: 3, AvgCost: dec("1000.5")},
		{SupplierID: 1, Quantity: 2, AvgCost: dec("250")},
	}
	b := Fold(1, txs, positions)
	assert.True(t, b.TotalImports.Equal(dec("10000")))
	assert.True(t, b.TotalSales.Equal(dec("2000")))
	assert.True(t, b.Balance.Equal(dec("6000")))
	assert.True(t, b.TotalStockValue.Equal(dec("3501.5")))
}

func TestRecalculateIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	seedTwoLots(repo)
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	var first, second Balance
	require.NoError(t, repo.WithTx(ctx, func(ctx context.Context, tx TxRepository, _ inventoryTx) error {
		if _, err := tx.InsertTransaction(ctx, Transaction{SupplierID: 1, Type: TransactionImport, TotalAmount: dec("5000")}); err != nil {
			return err
		}
		var err error
		first, err = Recalculate(ctx, tx, 1, now)
		return err
	}))
	require.NoError(t, repo.WithTx(ctx, func(ctx context.Context, tx TxRepository, _ inventoryTx) error {
		var err error
		second, err = Recalculate(ctx, tx, 1, now)
		return err
	}))
	assert.True(t, first.Equal(second))
	stored, err := repo.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, stored.Equal(first))
	assert.True(t, stored.TotalStockValue.Equal(dec("5000")))
}

func TestWeightedAverageCost(t *testing.T) {
	cases := []struct {
		name  string
		q     int
		avg   string
		n     int
		price string
		want  string
	}{
		{"empty lot takes price", 0, "0", 10, "1200", "1200"},
		{"even merge", 10, "1000", 10, "1200", "1100"},
		{"rounds to four places", 3, "10", 4, "11", "10.5714"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := WeightedAverageCost(tc.q, dec(tc.avg), tc.n, dec(tc.price))
			assert.True(t, got.Equal(dec(tc.want)), "got %s", got)
		})
	}
}
