package repository

import (
	"context"

	"github.com/fastygo/agritrace/domain"
)

type LotFilter struct {
	ProducerID string
	Limit      int
	Offset     int
}

// LotRepository persists lots. Lots are insert-only.
type LotRepository interface {
	// Create returns domain.ErrHashConflict when the content hash is taken.
	Create(ctx context.Context, lot *domain.Lot) error
	GetByID(ctx context.Context, id string) (*domain.Lot, error)
	// Lock reads the lot and, inside a transaction, holds it until commit.
	Lock(ctx context.Context, id string) (*domain.Lot, error)
	// List orders by creation time, newest first.
	List(ctx context.Context, filter LotFilter) ([]domain.Lot, error)
	Count(ctx context.Context) (int, error)
}
