package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wholesale-hub/settlement/internal/credit"
	"github.com/wholesale-hub/settlement/internal/inventory"
	"github.com/wholesale-hub/settlement/internal/shared"
	"github.com/wholesale-hub/settlement/internal/supplier"
	"github.com/wholesale-hub/settlement/internal/wallet"
)

const idempotencyModule = "settlement"

// Config holds pricing parameters.
type Config struct {
	TaxRate            decimal.Decimal
	WalletDiscountRate decimal.Decimal
}

// Options carries optional collaborators. Nil members are skipped.
type Options struct {
	Locker      Locker
	Idempotency IdempotencyPort
	Enqueuer    RecalcEnqueuer
	Observer    Observer
}

// Service settles carts into orders and manages their lifecycle.
type Service struct {
	store  Store
	cfg    Config
	opts   Options
	logger *slog.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

// NewService builds Service.
func NewService(store Store, cfg Config, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cfg: cfg, opts: opts, logger: logger, now: time.Now, newID: uuid.New}
}

// SettleOrder turns cart lines into a committed order in one transaction:
// lines are priced from the price list, then for each line the item is
// inserted, stock reserved and cost attributed to supplier lots; then payment
// is settled and the cart cleared. Any failure rolls everything back and is
// returned as a *StageError.
func (s *Service) SettleOrder(ctx context.Context, req Request) (Result, error) {
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}
	release, err := s.acquire(ctx, req.UserID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	if req.IdempotencyKey != "" && s.opts.Idempotency != nil {
		if err := s.opts.Idempotency.CheckAndInsert(ctx, req.IdempotencyKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Result{}, ErrDuplicateRequest
			}
			return Result{}, err
		}
	}

	res, stage, err := s.settle(ctx, req)
	if err != nil {
		if req.IdempotencyKey != "" && s.opts.Idempotency != nil {
			if delErr := s.opts.Idempotency.Delete(context.WithoutCancel(ctx), req.IdempotencyKey, idempotencyModule); delErr != nil {
				s.logger.Warn("idempotency key release failed", slog.Any("error", delErr))
			}
		}
		s.observe(req.PaymentMode, outcomeFor(err))
		s.logger.Info("settlement rolled back",
			slog.Int64("user_id", req.UserID),
			slog.String("stage", stage.String()),
			slog.String("payment_mode", string(req.PaymentMode)),
			slog.Any("error", err))
		return Result{}, &StageError{Stage: stage, Err: err}
	}
	s.afterCommit(ctx, res)
	return res, nil
}

func (s *Service) settle(ctx context.Context, req Request) (Result, Stage, error) {
	now := s.now()
	stage := StageDraft
	var res Result
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		res = Result{}
		stage = StageDraft
		items, err := priceLines(ctx, tx.Orders(), req.Items)
		if err != nil {
			return err
		}
		subtotal, tax, total := Totals(items, s.cfg.TaxRate)
		order, err := tx.Orders().InsertOrder(ctx, Order{
			PublicID:      s.newID(),
			UserID:        req.UserID,
			WarehouseID:   req.WarehouseID,
			Status:        StatusPending,
			PaymentMode:   req.PaymentMode,
			PaymentStatus: PaymentUnpaid,
			Subtotal:      subtotal,
			Tax:           tax,
			Total:         total,
		})
		if err != nil {
			return err
		}

		for _, it := range items {
			stage = StageItemsInserted
			item, err := tx.Orders().InsertItem(ctx, OrderItem{
				OrderID:   order.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
				LineTotal: lineTotal(it),
			})
			if err != nil {
				return err
			}
			order.Items = append(order.Items, item)

			stage = StageStockReserved
			if err := inventory.Decrement(ctx, tx.Inventory(), it.ProductID, req.WarehouseID, it.Quantity); err != nil {
				return err
			}

			stage = StageCostAllocated
			alloc, err := supplier.AllocateSale(ctx, tx.Suppliers(), it.ProductID, it.Quantity, order.ID)
			if err != nil {
				return err
			}
			res.Allocations = append(res.Allocations, alloc)
		}

		stage = StagePaymentSettled
		if err := s.settlePayment(ctx, tx, &order, now); err != nil {
			return err
		}
		if _, err := credit.RecordVolume(ctx, tx.Credits(), req.UserID, order.Total, now); err != nil {
			return err
		}

		stage = StageCommitted
		if err := tx.Orders().ClearCart(ctx, req.UserID); err != nil {
			return err
		}
		res.Order = order
		return nil
	})
	if err != nil {
		return Result{}, stage, err
	}
	return res, StageCommitted, nil
}

// priceLines attaches list prices to the requested lines.
func priceLines(ctx context.Context, orders OrderRepository, lines []Line) ([]Item, error) {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	prices, err := orders.UnitPrices(ctx, ids)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		price, ok := prices[l.ProductID]
		if !ok || !price.IsPositive() {
			return nil, fmt.Errorf("%w: product %d", ErrProductNotPriced, l.ProductID)
		}
		items = append(items, Item{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: price})
	}
	return items, nil
}

func (s *Service) settlePayment(ctx context.Context, tx Tx, order *Order, now time.Time) error {
	switch order.PaymentMode {
	case PaymentWallet:
		p, err := wallet.Pay(ctx, tx.Wallets(), order.UserID, order.ID, order.Total, s.discountRate())
		if err != nil {
			return err
		}
		discount := p.Discount
		order.Total = p.Charged
		order.WalletDiscount = &discount
		order.PaymentStatus = PaymentPaid
	case PaymentCredit:
		if _, err := credit.Purchase(ctx, tx.Credits(), order.UserID, order.ID, order.Total, now); err != nil {
			return err
		}
		order.PaymentStatus = PaymentOnCredit
	case PaymentCash:
		order.PaymentStatus = PaymentUnpaid
	default:
		return ErrUnknownPaymentMode
	}
	return tx.Orders().UpdatePayment(ctx, order.ID, order.Total, order.WalletDiscount, order.PaymentStatus)
}

func (s *Service) afterCommit(ctx context.Context, res Result) {
	s.observe(res.Order.PaymentMode, "committed")
	for _, a := range res.Allocations {
		if err := a.Shortfall(); err != nil {
			s.logger.Warn("supplier allocation shortfall",
				slog.Int64("product_id", a.ProductID),
				slog.Int64("order_id", a.OrderID),
				slog.Int("unattributed", a.Unattributed))
		}
	}
	if n := res.Unattributed(); n > 0 && s.opts.Observer != nil {
		s.opts.Observer.ObserveUnattributed(n)
	}
	if s.opts.Enqueuer != nil {
		for _, id := range res.SupplierIDs() {
			if err := s.opts.Enqueuer.EnqueueSupplierRecalc(context.WithoutCancel(ctx), id); err != nil {
				s.logger.Warn("enqueue supplier recalculation failed", slog.Int64("supplier_id", id), slog.Any("error", err))
			}
		}
	}
	s.logger.Info("order settled",
		slog.Int64("order_id", res.Order.ID),
		slog.Int64("user_id", res.Order.UserID),
		slog.String("payment_mode", string(res.Order.PaymentMode)),
		slog.String("total", res.Order.Total.StringFixed(2)))
}

// Cancel cancels a non-terminal order in one transaction. Stock is returned,
// wallet payments are refunded, credit purchases are offset by a credit
// payment and the order leaves the customer's lifetime volume. Supplier sale
// rows stay as recorded.
func (s *Service) Cancel(ctx context.Context, orderID int64) (Order, error) {
	now := s.now()
	var out Order
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, StatusCancelled) {
			return ErrInvalidTransition
		}
		for _, it := range o.Items {
			if err := inventory.Restock(ctx, tx.Inventory(), it.ProductID, o.WarehouseID, it.Quantity); err != nil {
				return err
			}
		}
		payment := o.PaymentStatus
		ref := supplier.SaleReference(o.ID)
		switch {
		case o.PaymentMode == PaymentWallet && o.PaymentStatus == PaymentPaid:
			if _, err := wallet.Credit(ctx, tx.Wallets(), wallet.Transaction{
				UserID:    o.UserID,
				Type:      wallet.TransactionRefund,
				Amount:    o.Total,
				OrderID:   o.ID,
				Reference: ref,
			}); err != nil {
				return err
			}
			payment = PaymentRefunded
		case o.PaymentMode == PaymentCredit && o.PaymentStatus == PaymentOnCredit:
			_, err := credit.Pay(ctx, tx.Credits(), o.UserID, o.Total, "cancelled "+ref, now)
			if err != nil && !errors.Is(err, credit.ErrNothingOwed) {
				return err
			}
			payment = PaymentRefunded
		}
		if _, err := credit.ReverseVolume(ctx, tx.Credits(), o.UserID, o.Total, now); err != nil {
			return err
		}
		if err := tx.Orders().UpdateStatus(ctx, o.ID, StatusCancelled, payment); err != nil {
			return err
		}
		o.Status = StatusCancelled
		o.PaymentStatus = payment
		out = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.logger.Info("order cancelled", slog.Int64("order_id", orderID), slog.String("payment_status", string(out.PaymentStatus)))
	return out, nil
}

// UpdateStatus moves an order along its lifecycle. Cancelling goes through
// Cancel so the ledgers are unwound.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, to Status) (Order, error) {
	if to == StatusCancelled {
		return s.Cancel(ctx, orderID)
	}
	var out Order
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, to) {
			return ErrInvalidTransition
		}
		payment := o.PaymentStatus
		if to == StatusDelivered && o.PaymentMode == PaymentCash {
			payment = PaymentPaid
		}
		if err := tx.Orders().UpdateStatus(ctx, o.ID, to, payment); err != nil {
			return err
		}
		o.Status = to
		o.PaymentStatus = payment
		out = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return out, nil
}

// SetPrice lists a product at price for future settlements. Settled orders
// keep the price they were settled at.
func (s *Service) SetPrice(ctx context.Context, productID int64, price decimal.Decimal) error {
	if productID <= 0 || !price.IsPositive() {
		return ErrInvalidItem
	}
	return s.store.SetPrice(ctx, productID, price.Round(2))
}

// Get returns an order with its items.
func (s *Service) Get(ctx context.Context, orderID int64) (Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// ListForUser returns the user's most recent orders.
func (s *Service) ListForUser(ctx context.Context, userID int64, limit int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListOrders(ctx, userID, limit)
}

func (s *Service) acquire(ctx context.Context, userID int64) (func(), error) {
	if s.opts.Locker == nil {
		return func() {}, nil
	}
	return s.opts.Locker.Acquire(ctx, shared.CheckoutLockKey(userID))
}

func (s *Service) discountRate() decimal.Decimal {
	if s.cfg.WalletDiscountRate.IsZero() {
		return wallet.DefaultDiscountRate
	}
	return s.cfg.WalletDiscountRate
}

func (s *Service) observe(mode PaymentMode, outcome string) {
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveSettlement(string(mode), outcome)
	}
}

func validateRequest(req Request) error {
	if req.UserID == 0 {
		return shared.ErrMissingUser
	}
	if req.WarehouseID == 0 {
		return ErrWarehouseRequired
	}
	if len(req.Items) == 0 {
		return ErrEmptyOrder
	}
	if _, err := ParsePaymentMode(string(req.PaymentMode)); err != nil {
		return err
	}
	for _, it := range req.Items {
		if it.ProductID == 0 || it.Quantity <= 0 {
			return ErrInvalidItem
		}
	}
	return nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, wallet.ErrInsufficientBalance):
		return "insufficient_wallet_balance"
	case errors.Is(err, credit.ErrCreditLimitExceeded):
		return "credit_limit_exceeded"
	case errors.Is(err, credit.ErrCreditOverdue):
		return "credit_overdue"
	case errors.Is(err, credit.ErrCreditNotEligible):
		return "credit_not_eligible"
	}
	return "error"
}
