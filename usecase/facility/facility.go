package facility

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/repository"
	"github.com/fastygo/agritrace/usecase"
)

type CreateInput struct {
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Location string  `json:"location"`
	Capacity float64 `json:"capacity"`
}

// Usage is a facility paired with its utilization ratio.
type Usage struct {
	domain.Facility
	Utilization float64 `json:"utilization"`
}

type UseCase struct {
	store  repository.Store
	cache  repository.DashboardCache
	now    func() time.Time
	logger *zap.Logger
}

func New(store repository.Store, cache repository.DashboardCache, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		store:  store,
		cache:  cache,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Create registers a facility with zero stock.
func (uc *UseCase) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Facility, error) {
	if err := actor.Require(domain.CapManageFacilities); err != nil {
		return nil, err
	}
	kind, err := domain.ParseFacilityKind(in.Kind)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Validationf("facility name is required")
	}
	location := strings.TrimSpace(in.Location)
	if location == "" {
		return nil, domain.Validationf("facility location is required")
	}
	if math.IsNaN(in.Capacity) || math.IsInf(in.Capacity, 0) || in.Capacity <= 0 {
		return nil, domain.Validationf("facility capacity must be positive, got %v", in.Capacity)
	}

	facility := &domain.Facility{
		Name:      name,
		Kind:      kind,
		Location:  location,
		Capacity:  in.Capacity,
		CreatedAt: uc.now(),
	}
	if err := uc.store.Facilities().Create(ctx, facility); err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx); err != nil {
			uc.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
		}
	}

	uc.logger.Info("facility created",
		zap.String("facility_id", facility.ID),
		zap.String("kind", string(facility.Kind)),
		zap.Float64("capacity", facility.Capacity),
		zap.String("actor_id", actor.ID),
	)
	return facility, nil
}

func (uc *UseCase) Get(ctx context.Context, id string) (*domain.Facility, error) {
	return uc.store.Facilities().GetByID(ctx, id)
}

// ListByKind lists facilities of the kind, or all of them when kind is empty.
func (uc *UseCase) ListByKind(ctx context.Context, kind domain.FacilityKind) ([]domain.Facility, error) {
	return usecase.CollectAll(usecase.Paginate(usecase.MaxPageSize, func(limit, offset int) ([]domain.Facility, error) {
		return uc.store.Facilities().List(ctx, repository.FacilityFilter{Kind: kind, Limit: limit, Offset: offset})
	}))
}

// Utilization is the facility's current stock over its capacity.
func (uc *UseCase) Utilization(ctx context.Context, id string) (float64, error) {
	facility, err := uc.store.Facilities().GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return facility.Utilization(), nil
}

// Usage lists facilities of the kind together with their utilization.
func (uc *UseCase) Usage(ctx context.Context, kind domain.FacilityKind) ([]Usage, error) {
	facilities, err := uc.ListByKind(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]Usage, 0, len(facilities))
	for i := range facilities {
		out = append(out, Usage{Facility: facilities[i], Utilization: facilities[i].Utilization()})
	}
	return out, nil
}

// List returns the facilities of the kind with their utilization. Producers
// have no facility view.
func (uc *UseCase) List(ctx context.Context, actor domain.Actor, kind domain.FacilityKind) ([]Usage, error) {
	if err := actor.Require(domain.CapViewFacilities); err != nil {
		return nil, err
	}
	return uc.Usage(ctx, kind)
}

// View returns one facility with its utilization under the same rule as List.
func (uc *UseCase) View(ctx context.Context, actor domain.Actor, id string) (*Usage, error) {
	if err := actor.Require(domain.CapViewFacilities); err != nil {
		return nil, err
	}
	facility, err := uc.store.Facilities().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Usage{Facility: *facility, Utilization: facility.Utilization()}, nil
}
