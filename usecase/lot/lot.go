package lot

import (
	"context"
	"iter"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/pkg/identity"
	"github.com/fastygo/agritrace/repository"
	"github.com/fastygo/agritrace/usecase"
)

type RegisterInput struct {
	ProduceType  string  `json:"produce_type"`
	Variety      string  `json:"variety"`
	Quantity     float64 `json:"quantity"`
	QualityGrade string  `json:"quality_grade"`
}

// Detail is a lot together with its history, newest event first.
type Detail struct {
	Lot     domain.Lot             `json:"lot"`
	History []domain.TrackingEvent `json:"history"`
}

// HistoryReader supplies a lot's tracking history.
type HistoryReader interface {
	History(ctx context.Context, lotID string) ([]domain.TrackingEvent, error)
}

type UseCase struct {
	store    repository.Store
	ids      *identity.Generator
	history  HistoryReader
	cache    repository.DashboardCache
	now      func() time.Time
	pageSize int
	logger   *zap.Logger
}

type Option func(*UseCase)

func WithCache(c repository.DashboardCache) Option {
	return func(uc *UseCase) { uc.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		if now != nil {
			uc.now = now
		}
	}
}

// WithPageSize sets how many lots ListByProducer fetches per round trip.
func WithPageSize(n int) Option {
	return func(uc *UseCase) { uc.pageSize = n }
}

func New(store repository.Store, ids *identity.Generator, history HistoryReader, logger *zap.Logger, opts ...Option) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ids == nil {
		ids = identity.NewGenerator()
	}
	uc := &UseCase{
		store:    store,
		ids:      ids,
		history:  history,
		now:      time.Now,
		pageSize: usecase.MaxPageSize,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Register creates a lot owned by the calling producer.
func (uc *UseCase) Register(ctx context.Context, actor domain.Actor, in RegisterInput) (*domain.Lot, error) {
	if err := actor.Require(domain.CapRegisterLot); err != nil {
		return nil, err
	}
	produceType, err := domain.ParseProduceType(in.ProduceType)
	if err != nil {
		return nil, err
	}
	grade, err := domain.ParseQualityGrade(in.QualityGrade)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(in.Quantity) || math.IsInf(in.Quantity, 0) || in.Quantity <= 0 {
		return nil, domain.Validationf("lot quantity must be positive, got %v", in.Quantity)
	}

	createdAt := identity.Normalize(uc.now())
	lot := &domain.Lot{
		ContentHash:  uc.ids.Generate(actor.ID, string(produceType), in.Quantity, createdAt),
		ProducerID:   actor.ID,
		ProduceType:  produceType,
		Variety:      strings.TrimSpace(in.Variety),
		Quantity:     in.Quantity,
		QualityGrade: grade,
		CreatedAt:    createdAt,
	}

	if err := uc.store.Lots().Create(ctx, lot); err != nil {
		uc.logger.Warn("lot registration failed",
			zap.String("producer_id", actor.ID),
			zap.String("content_hash", lot.ContentHash),
			zap.Error(err),
		)
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx); err != nil {
			uc.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
		}
	}

	uc.logger.Info("lot registered",
		zap.String("lot_id", lot.ID),
		zap.String("producer_id", lot.ProducerID),
		zap.String("produce_type", string(lot.ProduceType)),
		zap.Float64("quantity", lot.Quantity),
	)
	return lot, nil
}

func (uc *UseCase) Get(ctx context.Context, id string) (*domain.Lot, error) {
	return uc.store.Lots().GetByID(ctx, id)
}

// ListByProducer lazily yields the producer's lots, newest first. The
// sequence can be ranged over more than once.
func (uc *UseCase) ListByProducer(ctx context.Context, producerID string) iter.Seq2[domain.Lot, error] {
	return usecase.Paginate(uc.pageSize, func(limit, offset int) ([]domain.Lot, error) {
		return uc.store.Lots().List(ctx, repository.LotFilter{
			ProducerID: producerID,
			Limit:      limit,
			Offset:     offset,
		})
	})
}

// List returns the lots visible to the actor: producers see their own,
// every other role sees all of them.
func (uc *UseCase) List(ctx context.Context, actor domain.Actor) ([]domain.Lot, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	producerID := ""
	if !actor.Can(domain.CapViewAllLots) {
		producerID = actor.ID
	}
	return usecase.CollectAll(uc.ListByProducer(ctx, producerID))
}

// View returns the lot with its history. Producers may only view their own
// lots.
func (uc *UseCase) View(ctx context.Context, actor domain.Actor, id string) (*Detail, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	lot, err := uc.store.Lots().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Can(domain.CapViewAllLots) && !lot.OwnedBy(actor.ID) {
		return nil, domain.Forbiddenf("lot %s belongs to another producer", id)
	}

	detail := &Detail{Lot: *lot, History: []domain.TrackingEvent{}}
	if uc.history != nil {
		history, err := uc.history.History(ctx, lot.ID)
		if err != nil {
			return nil, err
		}
		if history != nil {
			detail.History = history
		}
	}
	return detail, nil
}
