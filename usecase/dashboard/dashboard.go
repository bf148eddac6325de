package dashboard

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/repository"
	"github.com/fastygo/agritrace/usecase"
	"github.com/fastygo/agritrace/usecase/facility"
)

// Limits caps the recent-event feeds per audience.
type Limits struct {
	Producer int
	Operator int
}

func DefaultLimits() Limits {
	return Limits{Producer: 10, Operator: 20}
}

type Totals struct {
	Lots       int `json:"lots"`
	Facilities int `json:"facilities"`
}

// Dashboard is the role-specific summary returned to an actor.
type Dashboard struct {
	Role         domain.Role            `json:"role"`
	Lots         []domain.Lot           `json:"lots,omitempty"`
	Facilities   []facility.Usage       `json:"facilities,omitempty"`
	RecentEvents []domain.TrackingEvent `json:"recent_events"`
	Totals       *Totals                `json:"totals,omitempty"`
}

// FacilityUsage lists facilities with their utilization.
type FacilityUsage interface {
	Usage(ctx context.Context, kind domain.FacilityKind) ([]facility.Usage, error)
}

type UseCase struct {
	store      repository.Store
	facilities FacilityUsage
	cache      repository.DashboardCache
	limits     Limits
	logger     *zap.Logger
}

func New(store repository.Store, facilities FacilityUsage, cache repository.DashboardCache, limits Limits, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.Producer <= 0 {
		limits.Producer = DefaultLimits().Producer
	}
	if limits.Operator <= 0 {
		limits.Operator = DefaultLimits().Operator
	}
	return &UseCase{
		store:      store,
		facilities: facilities,
		cache:      cache,
		limits:     limits,
		logger:     logger,
	}
}

// ForActor builds the dashboard for the actor's role. Reads are served from
// the cache when one is configured; cache failures fall through to the store.
func (uc *UseCase) ForActor(ctx context.Context, actor domain.Actor) (*Dashboard, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthorized
	}

	key := cacheKey(actor)
	cacheable := false
	var gen repository.CacheGeneration
	if uc.cache != nil {
		var cached Dashboard
		g, hit, err := uc.cache.Get(ctx, key, &cached)
		switch {
		case err != nil:
			uc.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
		case hit:
			return &cached, nil
		default:
			gen, cacheable = g, true
		}
	}

	board, err := uc.build(ctx, actor)
	if err != nil {
		return nil, err
	}

	// The board is filed under the generation observed before building; an
	// invalidation that raced the build retires it.
	if cacheable {
		if err := uc.cache.Set(ctx, gen, key, board); err != nil {
			uc.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return board, nil
}

func (uc *UseCase) build(ctx context.Context, actor domain.Actor) (*Dashboard, error) {
	board := &Dashboard{Role: actor.Role}
	var err error

	switch actor.Role {
	case domain.RoleProducer:
		board.Lots, err = usecase.CollectAll(usecase.Paginate(usecase.MaxPageSize, func(limit, offset int) ([]domain.Lot, error) {
			return uc.store.Lots().List(ctx, repository.LotFilter{ProducerID: actor.ID, Limit: limit, Offset: offset})
		}))
		if err != nil {
			return nil, err
		}
		board.RecentEvents, err = uc.recent(ctx, repository.EventFilter{ProducerID: actor.ID, Limit: uc.limits.Producer})

	case domain.RolePlantOperator:
		err = uc.operatorView(ctx, board, domain.KindProcessing)

	case domain.RoleWarehouseOperator:
		err = uc.operatorView(ctx, board, domain.KindStorage)

	case domain.RoleAdministrator:
		lots, cerr := uc.store.Lots().Count(ctx)
		if cerr != nil {
			return nil, cerr
		}
		if err = uc.operatorView(ctx, board, ""); err != nil {
			return nil, err
		}
		board.Totals = &Totals{Lots: lots, Facilities: len(board.Facilities)}

	default:
		return nil, domain.Forbiddenf("role %q has no dashboard", actor.Role)
	}

	if err != nil {
		return nil, err
	}
	return board, nil
}

func (uc *UseCase) operatorView(ctx context.Context, board *Dashboard, kind domain.FacilityKind) error {
	usage, err := uc.facilities.Usage(ctx, kind)
	if err != nil {
		return err
	}
	board.Facilities = usage
	board.RecentEvents, err = uc.recent(ctx, repository.EventFilter{FacilityKind: kind, Limit: uc.limits.Operator})
	return err
}

func (uc *UseCase) recent(ctx context.Context, filter repository.EventFilter) ([]domain.TrackingEvent, error) {
	events, err := uc.store.Events().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.TrackingEvent{}
	}
	return events, nil
}

func cacheKey(actor domain.Actor) string {
	if actor.Role == domain.RoleProducer {
		return string(actor.Role) + ":" + actor.ID
	}
	return string(actor.Role)
}
