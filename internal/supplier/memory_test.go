package supplier

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wholesale-hub/settlement/internal/inventory"
)

type lotKey struct {
	supplierID, productID, warehouseID int64
}

type stockKey struct {
	productID, warehouseID int64
}

type memoryState struct {
	lots     map[lotKey]Position
	txs      []Transaction
	balances map[int64]Balance
	stock    map[stockKey]int
	nextID   int64
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		lots:     make(map[lotKey]Position, len(s.lots)),
		txs:      append([]Transaction(nil), s.txs...),
		balances: make(map[int64]Balance, len(s.balances)),
		stock:    make(map[stockKey]int, len(s.stock)),
		nextID:   s.nextID,
	}
	for k, v := range s.lots {
		out.lots[k] = v
	}
	for k, v := range s.balances {
		out.balances[k] = v
	}
	for k, v := range s.stock {
		out.stock[k] = v
	}
	return out
}

type memoryRepo struct {
	mu    sync.Mutex
	state *memoryState
	// locks records the rows each transaction touched, in order.
	locks []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: &memoryState{
		lots:     make(map[lotKey]Position),
		balances: make(map[int64]Balance),
		stock:    make(map[stockKey]int),
	}}
}

// seedLot writes a lot and its stock directly, bypassing the ledger.
func (r *memoryRepo) seedLot(p Position) {
	r.state.lots[lotKey{p.SupplierID, p.ProductID, p.WarehouseID}] = p
	r.state.stock[stockKey{p.ProductID, p.WarehouseID}] += p.Quantity
}

func (r *memoryRepo) lot(supplierID, productID, warehouseID int64) Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.lots[lotKey{supplierID, productID, warehouseID}]
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository, inventory.TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	work := r.state.clone()
	tx := &memoryTx{state: work, trace: &r.locks}
	if err := fn(ctx, tx, tx); err != nil {
		return err
	}
	r.state = work
	return nil
}

func (r *memoryRepo) GetBalance(ctx context.Context, supplierID int64) (Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.state.balances[supplierID]
	if !ok {
		return Balance{}, ErrBalanceNotFound
	}
	return b, nil
}

func (r *memoryRepo) ListTransactions(ctx context.Context, supplierID int64) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{state: r.state}).ListTransactions(ctx, supplierID)
}

func (r *memoryRepo) ListPositions(ctx context.Context, supplierID int64) ([]Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{state: r.state}).ListPositions(ctx, supplierID)
}

func (r *memoryRepo) ListSupplierIDs(ctx context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[int64]bool{}
	for _, t := range r.state.txs {
		seen[t.SupplierID] = true
	}
	for k := range r.state.lots {
		seen[k.supplierID] = true
	}
	var ids []int64
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type memoryTx struct {
	state *memoryState
	trace *[]string
}

func (tx *memoryTx) note(row string) {
	if tx.trace != nil {
		*tx.trace = append(*tx.trace, row)
	}
}

func (tx *memoryTx) LockOpenPositions(ctx context.Context, productID int64) ([]Position, error) {
	tx.note("lot")
	var out []Position
	for _, p := range tx.state.lots {
		if p.ProductID == productID && p.Quantity > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastImportDate.Equal(out[j].LastImportDate) {
			return out[i].LastImportDate.Before(out[j].LastImportDate)
		}
		if out[i].SupplierID != out[j].SupplierID {
			return out[i].SupplierID < out[j].SupplierID
		}
		return out[i].WarehouseID < out[j].WarehouseID
	})
	return out, nil
}

func (tx *memoryTx) GetPositionForUpdate(ctx context.Context, supplierID, productID, warehouseID int64) (Position, error) {
	tx.note("lot")
	p, ok := tx.state.lots[lotKey{supplierID, productID, warehouseID}]
	if !ok {
		return Position{}, ErrSupplierLotNotFound
	}
	return p, nil
}

func (tx *memoryTx) UpsertPosition(ctx context.Context, p Position) error {
	tx.state.lots[lotKey{p.SupplierID, p.ProductID, p.WarehouseID}] = p
	return nil
}

func (tx *memoryTx) SetPositionQuantity(ctx context.Context, supplierID, productID, warehouseID int64, qty int) error {
	k := lotKey{supplierID, productID, warehouseID}
	p, ok := tx.state.lots[k]
	if !ok {
		return ErrSupplierLotNotFound
	}
	p.Quantity = qty
	tx.state.lots[k] = p
	return nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	tx.state.nextID++
	t.ID = tx.state.nextID
	t.CreatedAt = time.Unix(tx.state.nextID, 0).UTC()
	tx.state.txs = append(tx.state.txs, t)
	return t, nil
}

func (tx *memoryTx) ListTransactions(ctx context.Context, supplierID int64) ([]Transaction, error) {
	var out []Transaction
	for _, t := range tx.state.txs {
		if t.SupplierID == supplierID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (tx *memoryTx) ListPositions(ctx context.Context, supplierID int64) ([]Position, error) {
	var out []Position
	for _, p := range tx.state.lots {
		if p.SupplierID == supplierID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].WarehouseID < out[j].WarehouseID
	})
	return out, nil
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, b Balance) error {
	tx.state.balances[b.SupplierID] = b
	return nil
}

func (tx *memoryTx) DecrementStock(ctx context.Context, productID, warehouseID int64, qty int) (bool, error) {
	tx.note("stock")
	k := stockKey{productID, warehouseID}
	if tx.state.stock[k] < qty {
		return false, nil
	}
	tx.state.stock[k] -= qty
	return true, nil
}

func (tx *memoryTx) IncrementStock(ctx context.Context, productID, warehouseID int64, qty int) error {
	tx.note("stock")
	tx.state.stock[stockKey{productID, warehouseID}] += qty
	return nil
}

func (tx *memoryTx) GetStock(ctx context.Context, productID, warehouseID int64) (inventory.Stock, error) {
	return inventory.Stock{ProductID: productID, WarehouseID: warehouseID, Quantity: tx.state.stock[stockKey{productID, warehouseID}]}, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type inventoryTx = inventory.TxRepository
