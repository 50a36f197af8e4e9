package inventory

import (
	"context"
	"log/slog"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStock(ctx context.Context, productID, warehouseID int64) (Stock, error)
}

// Service exposes stock reads and manual restocks outside settlement.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Stock returns on-hand quantity; a missing row reads as zero.
func (s *Service) Stock(ctx context.Context, productID, warehouseID int64) (Stock, error) {
	if productID == 0 || warehouseID == 0 {
		return Stock{}, ErrLocationRequired
	}
	return s.repo.GetStock(ctx, productID, warehouseID)
}

// Restock adds stock in its own transaction and returns the new level.
func (s *Service) Restock(ctx context.Context, productID, warehouseID int64, qty int) (Stock, error) {
	var out Stock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := Restock(ctx, tx, productID, warehouseID, qty); err != nil {
			return err
		}
		st, err := tx.GetStock(ctx, productID, warehouseID)
		if err != nil {
			return err
		}
		out = st
		return nil
	})
	if err != nil {
		return Stock{}, err
	}
	s.logger.Info("inventory restocked",
		slog.Int64("product_id", productID),
		slog.Int64("warehouse_id", warehouseID),
		slog.Int("qty", qty),
		slog.Int("stock", out.Quantity))
	return out, nil
}
