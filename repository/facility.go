package repository

import (
	"context"

	"github.com/fastygo/agritrace/domain"
)

type FacilityFilter struct {
	Kind   domain.FacilityKind
	Limit  int
	Offset int
}

type FacilityRepository interface {
	Create(ctx context.Context, facility *domain.Facility) error
	GetByID(ctx context.Context, id string) (*domain.Facility, error)
	// Lock reads the facility and, inside a transaction, serializes other
	// writers of its stock until commit.
	Lock(ctx context.Context, id string) (*domain.Facility, error)
	List(ctx context.Context, filter FacilityFilter) ([]domain.Facility, error)
	SetStock(ctx context.Context, id string, stock float64) error
}
