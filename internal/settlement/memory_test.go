package settlement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wholesale-hub/settlement/internal/credit"
	"github.com/wholesale-hub/settlement/internal/inventory"
	"github.com/wholesale-hub/settlement/internal/shared"
	"github.com/wholesale-hub/settlement/internal/supplier"
	"github.com/wholesale-hub/settlement/internal/wallet"
)

type loc struct{ product, warehouse int64 }

type lotKey struct{ supplier, product, warehouse int64 }

// memoryState is the whole database; a transaction works on a deep copy and
// swaps it in on commit.
type memoryState struct {
	stock       map[loc]int
	lots        map[lotKey]supplier.Position
	supplierTxs []supplier.Transaction
	wallets     map[int64]decimal.Decimal
	walletTxs   []wallet.Transaction
	accounts    map[int64]credit.Account
	creditTxs   []credit.Transaction
	orders      map[int64]Order
	items       []OrderItem
	cart        map[int64]int
	prices      map[int64]decimal.Decimal
	seq         int64
}

func newMemoryState() *memoryState {
	return &memoryState{
		stock:    make(map[loc]int),
		lots:     make(map[lotKey]supplier.Position),
		wallets:  make(map[int64]decimal.Decimal),
		accounts: make(map[int64]credit.Account),
		orders:   make(map[int64]Order),
		cart:     make(map[int64]int),
		prices:   make(map[int64]decimal.Decimal),
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		stock:       make(map[loc]int, len(s.stock)),
		lots:        make(map[lotKey]supplier.Position, len(s.lots)),
		supplierTxs: append([]supplier.Transaction(nil), s.supplierTxs...),
		wallets:     make(map[int64]decimal.Decimal, len(s.wallets)),
		walletTxs:   append([]wallet.Transaction(nil), s.walletTxs...),
		accounts:    make(map[int64]credit.Account, len(s.accounts)),
		creditTxs:   append([]credit.Transaction(nil), s.creditTxs...),
		orders:      make(map[int64]Order, len(s.orders)),
		items:       append([]OrderItem(nil), s.items...),
		cart:        make(map[int64]int, len(s.cart)),
		prices:      make(map[int64]decimal.Decimal, len(s.prices)),
		seq:         s.seq,
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	for k, v := range s.lots {
		c.lots[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.cart {
		c.cart[k] = v
	}
	for k, v := range s.prices {
		c.prices[k] = v
	}
	return c
}

func (s *memoryState) nextID() int64 {
	s.seq++
	return s.seq
}

type memoryStore struct {
	mu       sync.Mutex
	state    *memoryState
	failNext error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{state: newMemoryState()}
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(ctx, &memoryTx{s: work, failClearCart: m.failNext}); err != nil {
		return err
	}
	m.failNext = nil
	m.state = work
	return nil
}

func (m *memoryStore) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryTx{s: m.state}).LockOrder(ctx, orderID)
}

func (m *memoryStore) ListOrders(ctx context.Context, userID int64, limit int) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.state.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) SetPrice(ctx context.Context, productID int64, price decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.prices[productID] = price
	return nil
}

// snapshot returns the committed state for assertions.
func (m *memoryStore) snapshot() *memoryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

type memoryTx struct {
	s             *memoryState
	failClearCart error
}

func (t *memoryTx) Orders() OrderRepository           { return (*memoryOrders)(t) }
func (t *memoryTx) Inventory() inventory.TxRepository { return (*memoryInventory)(t) }
func (t *memoryTx) Suppliers() supplier.TxRepository  { return (*memorySuppliers)(t) }
func (t *memoryTx) Wallets() wallet.TxRepository      { return (*memoryWallets)(t) }
func (t *memoryTx) Credits() credit.TxRepository      { return (*memoryCredits)(t) }

func (t *memoryTx) LockOrder(ctx context.Context, orderID int64) (Order, error) {
	o, ok := t.s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	o.Items = nil
	for _, it := range t.s.items {
		if it.OrderID == orderID {
			o.Items = append(o.Items, it)
		}
	}
	return o, nil
}

type memoryOrders memoryTx

func (r *memoryOrders) InsertOrder(ctx context.Context, o Order) (Order, error) {
	o.ID = r.s.nextID()
	o.CreatedAt = time.Unix(o.ID, 0).UTC()
	o.UpdatedAt = o.CreatedAt
	r.s.orders[o.ID] = o
	return o, nil
}

func (r *memoryOrders) InsertItem(ctx context.Context, it OrderItem) (OrderItem, error) {
	it.ID = r.s.nextID()
	r.s.items = append(r.s.items, it)
	return it, nil
}

func (r *memoryOrders) UpdatePayment(ctx context.Context, orderID int64, total decimal.Decimal, walletDiscount *decimal.Decimal, status PaymentStatus) error {
	o, ok := r.s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Total = total
	o.WalletDiscount = walletDiscount
	o.PaymentStatus = status
	r.s.orders[orderID] = o
	return nil
}

func (r *memoryOrders) LockOrder(ctx context.Context, orderID int64) (Order, error) {
	return (*memoryTx)(r).LockOrder(ctx, orderID)
}

func (r *memoryOrders) UpdateStatus(ctx context.Context, orderID int64, status Status, payment PaymentStatus) error {
	o, ok := r.s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	o.PaymentStatus = payment
	r.s.orders[orderID] = o
	return nil
}

func (r *memoryOrders) ClearCart(ctx context.Context, userID int64) error {
	if r.failClearCart != nil {
		return r.failClearCart
	}
	delete(r.s.cart, userID)
	return nil
}

func (r *memoryOrders) UnitPrices(ctx context.Context, productIDs []int64) (map[int64]decimal.Decimal, error) {
	out := make(map[int64]decimal.Decimal, len(productIDs))
	for _, id := range productIDs {
		if p, ok := r.s.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type memoryInventory memoryTx

func (r *memoryInventory) DecrementStock(ctx context.Context, productID, warehouseID int64, qty int) (bool, error) {
	k := loc{productID, warehouseID}
	if r.s.stock[k] < qty {
		return false, nil
	}
	r.s.stock[k] -= qty
	return true, nil
}

func (r *memoryInventory) IncrementStock(ctx context.Context, productID, warehouseID int64, qty int) error {
	r.s.stock[loc{productID, warehouseID}] += qty
	return nil
}

func (r *memoryInventory) GetStock(ctx context.Context, productID, warehouseID int64) (inventory.Stock, error) {
	return inventory.Stock{ProductID: productID, WarehouseID: warehouseID, Quantity: r.s.stock[loc{productID, warehouseID}]}, nil
}

type memorySuppliers memoryTx

func (r *memorySuppliers) LockOpenPositions(ctx context.Context, productID int64) ([]supplier.Position, error) {
	var out []supplier.Position
	for _, p := range r.s.lots {
		if p.ProductID == productID && p.Quantity > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastImportDate.Before(out[j].LastImportDate) })
	return out, nil
}

func (r *memorySuppliers) GetPositionForUpdate(ctx context.Context, supplierID, productID, warehouseID int64) (supplier.Position, error) {
	p, ok := r.s.lots[lotKey{supplierID, productID, warehouseID}]
	if !ok {
		return supplier.Position{}, supplier.ErrSupplierLotNotFound
	}
	return p, nil
}

func (r *memorySuppliers) UpsertPosition(ctx context.Context, p supplier.Position) error {
	r.s.lots[lotKey{p.SupplierID, p.ProductID, p.WarehouseID}] = p
	return nil
}

func (r *memorySuppliers) SetPositionQuantity(ctx context.Context, supplierID, productID, warehouseID int64, qty int) error {
	k := lotKey{supplierID, productID, warehouseID}
	p, ok := r.s.lots[k]
	if !ok {
		return supplier.ErrSupplierLotNotFound
	}
	p.Quantity = qty
	r.s.lots[k] = p
	return nil
}

func (r *memorySuppliers) InsertTransaction(ctx context.Context, t supplier.Transaction) (supplier.Transaction, error) {
	t.ID = r.s.nextID()
	r.s.supplierTxs = append(r.s.supplierTxs, t)
	return t, nil
}

func (r *memorySuppliers) ListTransactions(ctx context.Context, supplierID int64) ([]supplier.Transaction, error) {
	var out []supplier.Transaction
	for _, t := range r.s.supplierTxs {
		if t.SupplierID == supplierID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memorySuppliers) ListPositions(ctx context.Context, supplierID int64) ([]supplier.Position, error) {
	var out []supplier.Position
	for _, p := range r.s.lots {
		if p.SupplierID == supplierID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memorySuppliers) UpsertBalance(ctx context.Context, b supplier.Balance) error {
	return nil
}

type memoryWallets memoryTx

func (r *memoryWallets) LockWallet(ctx context.Context, userID int64) (wallet.Wallet, error) {
	b, ok := r.s.wallets[userID]
	if !ok {
		return wallet.Wallet{}, wallet.ErrWalletNotFound
	}
	return wallet.Wallet{UserID: userID, Balance: b}, nil
}

func (r *memoryWallets) SetBalance(ctx context.Context, userID int64, balance decimal.Decimal) error {
	r.s.wallets[userID] = balance
	return nil
}

func (r *memoryWallets) AddBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	r.s.wallets[userID] = r.s.wallets[userID].Add(amount)
	return r.s.wallets[userID], nil
}

func (r *memoryWallets) InsertTransaction(ctx context.Context, t wallet.Transaction) (wallet.Transaction, error) {
	t.ID = r.s.nextID()
	r.s.walletTxs = append(r.s.walletTxs, t)
	return t, nil
}

func (r *memoryWallets) ListTransactions(ctx context.Context, userID int64) ([]wallet.Transaction, error) {
	var out []wallet.Transaction
	for _, t := range r.s.walletTxs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

type memoryCredits memoryTx

func (r *memoryCredits) LockAccount(ctx context.Context, userID int64) (credit.Account, error) {
	a, ok := r.s.accounts[userID]
	if !ok {
		return credit.Account{}, credit.ErrAccountNotFound
	}
	return a, nil
}

func (r *memoryCredits) InsertAccount(ctx context.Context, a credit.Account) error {
	if _, ok := r.s.accounts[a.UserID]; !ok {
		r.s.accounts[a.UserID] = a
	}
	return nil
}

func (r *memoryCredits) UpdateAccount(ctx context.Context, a credit.Account) error {
	if _, ok := r.s.accounts[a.UserID]; !ok {
		return credit.ErrAccountNotFound
	}
	r.s.accounts[a.UserID] = a
	return nil
}

func (r *memoryCredits) InsertTransaction(ctx context.Context, t credit.Transaction) (credit.Transaction, error) {
	t.ID = r.s.nextID()
	r.s.creditTxs = append(r.s.creditTxs, t)
	return t, nil
}

func (r *memoryCredits) ListTransactions(ctx context.Context, userID int64) ([]credit.Transaction, error) {
	var out []credit.Transaction
	for _, t := range r.s.creditTxs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memoryCredits) ListPending(ctx context.Context, userID int64) ([]credit.Transaction, error) {
	var out []credit.Transaction
	for _, t := range r.s.creditTxs {
		if t.UserID == userID && t.Type == credit.TransactionPurchase && t.Status == credit.StatusPending {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out, nil
}

func (r *memoryCredits) MarkPaid(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		for i := range r.s.creditTxs {
			if r.s.creditTxs[i].ID == id {
				r.s.creditTxs[i].Status = credit.StatusPaid
			}
		}
	}
	return nil
}

type fakeEnqueuer struct {
	mu        sync.Mutex
	suppliers []int64
	err       error
}

func (f *fakeEnqueuer) EnqueueSupplierRecalc(ctx context.Context, supplierID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suppliers = append(f.suppliers, supplierID)
	return f.err
}

type fakeObserver struct {
	mu           sync.Mutex
	outcomes     map[string]int
	unattributed int
}

func (f *fakeObserver) ObserveSettlement(mode, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcomes == nil {
		f.outcomes = make(map[string]int)
	}
	f.outcomes[mode+":"+outcome]++
}

func (f *fakeObserver) ObserveUnattributed(units int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unattributed += units
}

type fakeIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}


func (f *fakeIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = make(map[string]bool)
	}
	if f.keys[module+":"+key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[module+":"+key] = true
	return nil
}

func (f *fakeIdempotency) Delete(ctx context.Context, key, module string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, module+":"+key)
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
