package supplier

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wholesale-hub/settlement/internal/inventory"
	"github.com/wholesale-hub/settlement/internal/platform/cache"
	"github.com/wholesale-hub/settlement/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository, inventory.TxRepository) error) error
	GetBalance(ctx context.Context, supplierID int64) (Balance, error)
	ListTransactions(ctx context.Context, supplierID int64) ([]Transaction, error)
	ListPositions(ctx context.Context, supplierID int64) ([]Position, error)
	ListSupplierIDs(ctx context.Context) ([]int64, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// RecalcObserver counts balance recalculations by trigger.
type RecalcObserver interface {
	ObserveSupplierRecalc(trigger string)
}

// Service orchestrates supplier ledger entries and balance upkeep.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	cache    *cache.Cache
	observer RecalcObserver
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs supplier service. cache and audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort, c *cache.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: c, logger: logger, now: time.Now}
}

// WithObserver attaches a recalculation observer.
func (s *Service) WithObserver(o RecalcObserver) *Service {
	s.observer = o
	return s
}

// RecordImport receives goods into a supplier lot, restocks inventory and
// rebalances the supplier in one transaction.
func (s *Service) RecordImport(ctx context.Context, in ImportInput) (Transaction, error) {
	if in.SupplierID == 0 || in.ProductID == 0 || in.WarehouseID == 0 {
		return Transaction{}, ErrSupplierRequired
	}
	if in.Quantity <= 0 {
		return Transaction{}, ErrInvalidQuantity
	}
	if !in.UnitPrice.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	now := s.now()
	var out Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository, stock inventory.TxRepository) error {
		// Inventory row before supplier lots, the same order settlement takes.
		if err := inventory.Restock(ctx, stock, in.ProductID, in.WarehouseID, in.Quantity); err != nil {
			return err
		}
		lot, err := tx.GetPositionForUpdate(ctx, in.SupplierID, in.ProductID, in.WarehouseID)
		switch {
		case err == nil:
		case isLotMissing(err):
			lot = Position{SupplierID: in.SupplierID, ProductID: in.ProductID, WarehouseID: in.WarehouseID, AvgCost: decimal.Zero}
		default:
			return err
		}
		lot.AvgCost = WeightedAverageCost(lot.Quantity, lot.AvgCost, in.Quantity, in.UnitPrice)
		lot.Quantity += in.Quantity
		lot.LastImportDate = now
		if err := tx.UpsertPosition(ctx, lot); err != nil {
			return fmt.Errorf("upsert lot: %w", err)
		}
		row, err := tx.InsertTransaction(ctx, Transaction{
			SupplierID:      in.SupplierID,
			ProductID:       in.ProductID,
			WarehouseID:     in.WarehouseID,
			Type:            TransactionImport,
			Quantity:        in.Quantity,
			UnitPrice:       in.UnitPrice,
			TotalAmount:     in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2),
			ReferenceNumber: in.ReferenceNumber,
			Notes:           in.Notes,
		})
		if err != nil {
			return err
		}
		out = row
		_, err = Recalculate(ctx, tx, in.SupplierID, now)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.afterWrite(ctx, in.SupplierID, "import", in.ActorID, out)
	return out, nil
}

// RecordExport returns goods from a lot to its supplier.
func (s *Service) RecordExport(ctx context.Context, in ExportInput) (Transaction, error) {
	if in.SupplierID == 0 || in.ProductID == 0 || in.WarehouseID == 0 {
		return Transaction{}, ErrSupplierRequired
	}
	if in.Quantity <= 0 {
		return Transaction{}, ErrInvalidQuantity
	}
	if in.UnitPrice.IsNegative() {
		return Transaction{}, ErrInvalidAmount
	}
	now := s.now()
	var out Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository, stock inventory.TxRepository) error {
		// Inventory row before supplier lots, the same order settlement takes.
		// A missing or short lot fails afterwards and rolls the decrement back.
		if err := inventory.Decrement(ctx, stock, in.ProductID, in.WarehouseID, in.Quantity); err != nil {
			return err
		}
		lot, err := tx.GetPositionForUpdate(ctx, in.SupplierID, in.ProductID, in.WarehouseID)
		if err != nil {
			return err
		}
		if lot.Quantity < in.Quantity {
			return fmt.Errorf("%w: lot holds %d, export requests %d", ErrInsufficientLotQuantity, lot.Quantity, in.Quantity)
		}
		if err := tx.SetPositionQuantity(ctx, in.SupplierID, in.ProductID, in.WarehouseID, lot.Quantity-in.Quantity); err != nil {
			return err
		}
		price := in.UnitPrice
		if price.IsZero() {
			price = lot.AvgCost
		}
		row, err := tx.InsertTransaction(ctx, Transaction{
			SupplierID:      in.SupplierID,
			ProductID:       in.ProductID,
			WarehouseID:     in.WarehouseID,
			Type:            TransactionExport,
			Quantity:        in.Quantity,
			UnitPrice:       price,
			TotalAmount:     price.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2),
			ReferenceNumber: in.ReferenceNumber,
			Notes:           in.Notes,
		})
		if err != nil {
			return err
		}
		out = row
		_, err = Recalculate(ctx, tx, in.SupplierID, now)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.afterWrite(ctx, in.SupplierID, "export", in.ActorID, out)
	return out, nil
}

// RecordPayment appends a payment to the supplier.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (Transaction, error) {
	if in.SupplierID == 0 {
		return Transaction{}, ErrSupplierRequired
	}
	if !in.Amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	now := s.now()
	var out Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository, _ inventory.TxRepository) error {
		row, err := tx.InsertTransaction(ctx, Transaction{
			SupplierID:      in.SupplierID,
			Type:            TransactionPayment,
			TotalAmount:     in.Amount.Round(2),
			ReferenceNumber: in.ReferenceNumber,
			Notes:           in.Notes,
		})
		if err != nil {
			return err
		}
		out = row
		_, err = Recalculate(ctx, tx, in.SupplierID, now)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.afterWrite(ctx, in.SupplierID, "payment", in.ActorID, out)
	return out, nil
}

// Recalculate rebuilds the balance row in its own transaction.
func (s *Service) Recalculate(ctx context.Context, supplierID int64, trigger string) (Balance, error) {
	if supplierID == 0 {
		return Balance{}, ErrSupplierRequired
	}
	var out Balance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository, _ inventory.TxRepository) error {
		b, err := Recalculate(ctx, tx, supplierID, s.now())
		out = b
		return err
	})
	if err != nil {
		return Balance{}, err
	}
	s.invalidate(ctx, supplierID)
	if s.observer != nil {
		s.observer.ObserveSupplierRecalc(trigger)
	}
	return out, nil
}

// ReconcileAll recalculates every supplier and reports how many rows moved.
func (s *Service) ReconcileAll(ctx context.Context) (int, error) {
	ids, err := s.repo.ListSupplierIDs(ctx)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, id := range ids {
		before, err := s.repo.GetBalance(ctx, id)
		if err != nil && !isBalanceMissing(err) {
			return changed, err
		}
		after, err := s.Recalculate(ctx, id, "reconcile")
		if err != nil {
			return changed, fmt.Errorf("supplier %d: %w", id, err)
		}
		if !before.Equal(after) {
			changed++
			s.logger.Warn("supplier balance drift corrected",
				slog.Int64("supplier_id", id),
				slog.String("stored", before.Balance.StringFixed(2)),
				slog.String("folded", after.Balance.StringFixed(2)))
		}
	}
	return changed, nil
}

// Balance returns the materialised balance through the read cache.
func (s *Service) Balance(ctx context.Context, supplierID int64) (Balance, error) {
	var out Balance
	err := s.cache.FetchJSON(ctx, balanceKey(supplierID), &out, func(ctx context.Context) (any, error) {
		return s.repo.GetBalance(ctx, supplierID)
	})
	return out, err
}

// Transactions lists the supplier's ledger rows.
func (s *Service) Transactions(ctx context.Context, supplierID int64) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, supplierID)
}

// Positions lists the supplier's lots.
func (s *Service) Positions(ctx context.Context, supplierID int64) ([]Position, error) {
	return s.repo.ListPositions(ctx, supplierID)
}

func (s *Service) afterWrite(ctx context.Context, supplierID int64, action string, actorID int64, row Transaction) {
	s.invalidate(ctx, supplierID)
	if s.observer != nil {
		s.observer.ObserveSupplierRecalc(action)
	}
	s.logger.Info("supplier ledger entry recorded",
		slog.Int64("supplier_id", supplierID),
		slog.String("type", string(row.Type)),
		slog.String("amount", row.TotalAmount.StringFixed(2)))
	if s.audit == nil {
		return
	}
	meta := map[string]any{"type": string(row.Type), "amount": row.TotalAmount.StringFixed(2)}
	if row.ProductID != 0 {
		meta["product_id"] = row.ProductID
		meta["warehouse_id"] = row.WarehouseID
		meta["quantity"] = row.Quantity
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "supplier." + action,
		Entity:   "supplier_transaction",
		EntityID: strconv.FormatInt(row.ID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, supplierID int64) {
	if err := s.cache.InvalidatePattern(ctx, balanceKey(supplierID)); err != nil {
		s.logger.Warn("supplier balance cache invalidation failed", slog.Int64("supplier_id", supplierID), slog.Any("error", err))
	}
}

func balanceKey(supplierID int64) string {
	return "supplier:" + strconv.FormatInt(supplierID, 10) + ":balance"
}
