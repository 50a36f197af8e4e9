package credit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type memoryRepo struct {
	mu       sync.Mutex
	accounts map[int64]Account
	txs      []Transaction
}

type memoryTx struct {
	accounts map[int64]Account
	txs      []Transaction
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[int64]Account)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{accounts: make(map[int64]Account, len(r.accounts)), txs: append([]Transaction(nil), r.txs...)}
	for k, v := range r.accounts {
		tx.accounts[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.accounts, r.txs = tx.accounts, tx.txs
	return nil
}

func (r *memoryRepo) GetAccount(ctx context.Context, userID int64) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[userID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (r *memoryRepo) ListTransactions(ctx context.Context, userID int64) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{txs: r.txs}).ListTransactions(ctx, userID)
}

// seedPurchase appends a pending purchase directly.
func (r *memoryRepo) seedPurchase(userID int64, amount decimal.Decimal, due time.Time) {
	d := due
	r.txs = append(r.txs, Transaction{
		ID:      int64(len(r.txs) + 1),
		UserID:  userID,
		Type:    TransactionPurchase,
		Amount:  amount,
		DueDate: &d,
		Status:  StatusPending,
	})
}

func (r *memoryRepo) status(id int64) Status {
	for _, t := range r.txs {
		if t.ID == id {
			return t.Status
		}
	}
	return ""
}

func (tx *memoryTx) LockAccount(ctx context.Context, userID int64) (Account, error) {
	a, ok := tx.accounts[userID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (tx *memoryTx) InsertAccount(ctx context.Context, a Account) error {
	if _, ok := tx.accounts[a.UserID]; !ok {
		tx.accounts[a.UserID] = a
	}
	return nil
}

func (tx *memoryTx) UpdateAccount(ctx context.Context, a Account) error {
	if _, ok := tx.accounts[a.UserID]; !ok {
		return ErrAccountNotFound
	}
	tx.accounts[a.UserID] = a
	return nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	t.ID = int64(len(tx.txs) + 1)
	tx.txs = append(tx.txs, t)
	return t, nil
}

func (tx *memoryTx) ListTransactions(ctx context.Context, userID int64) ([]Transaction, error) {
	var out []Transaction
	for _, t := range tx.txs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (tx *memoryTx) ListPending(ctx context.Context, userID int64) ([]Transaction, error) {
	var out []Transaction
	for _, t := range tx.txs {
		if t.UserID == userID && t.Type == TransactionPurchase && t.Status == StatusPending {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out, nil
}

func (tx *memoryTx) MarkPaid(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		for i := range tx.txs {
			if tx.txs[i].ID == id {
				tx.txs[i].Status = StatusPaid
			}
		}
	}
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
