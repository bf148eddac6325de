package tracking

import (
	"context"
	"fmt"
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

// DriftTolerance absorbs floating point noise when comparing replayed and
// stored stock.
const DriftTolerance = 1e-6

type AppendInput struct {
	LotID      string  `json:"lot_id"`
	FacilityID string  `json:"facility_id"`
	Status     string  `json:"status"`
	Quantity   float64 `json:"quantity"`
	Notes      string  `json:"notes"`
}

// Reconciliation compares a facility's stored stock with the value replayed
// from its ledger.
type Reconciliation struct {
	FacilityID    string  `json:"facility_id"`
	StoredStock   float64 `json:"stored_stock"`
	ReplayedStock float64 `json:"replayed_stock"`
	Drift         float64 `json:"drift"`
	Events        int     `json:"events"`
}

// Consistent reports whether stored and replayed stock agree.
func (r Reconciliation) Consistent() bool {
	return math.Abs(r.Drift) <= DriftTolerance
}

type UseCase struct {
	store    repository.Store
	policy   domain.LedgerPolicy
	notifier usecase.LedgerNotifier
	metrics  usecase.LedgerMetrics
	cache    repository.DashboardCache
	now      func() time.Time
	pageSize int
	logger   *zap.Logger
}

type Option func(*UseCase)

func WithNotifier(n usecase.LedgerNotifier) Option {
	return func(uc *UseCase) { uc.notifier = n }
}

func WithMetrics(m usecase.LedgerMetrics) Option {
	return func(uc *UseCase) {
		if m != nil {
			uc.metrics = m
		}
	}
}

func WithCache(c repository.DashboardCache) Option {
	return func(uc *UseCase) { uc.cache = c }
}

// WithPageSize sets how many events each history read fetches at once.
func WithPageSize(n int) Option {
	return func(uc *UseCase) { uc.pageSize = n }
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		if now != nil {
			uc.now = now
		}
	}
}

func New(store repository.Store, policy domain.LedgerPolicy, logger *zap.Logger, opts ...Option) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	uc := &UseCase{
		store:    store,
		policy:   policy,
		metrics:  usecase.NopMetrics{},
		now:      time.Now,
		pageSize: usecase.MaxPageSize,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// AppendEvent records a tracking event and applies its stock delta to the
// facility in one transaction. Either both happen or neither does.
func (uc *UseCase) AppendEvent(ctx context.Context, actor domain.Actor, in AppendInput) (*domain.TrackingEvent, error) {
	event, stock, err := uc.append(ctx, actor, in)
	if err != nil {
		uc.metrics.AppendRejected(usecase.ErrorCodeOf(err))
		uc.logger.Warn("tracking event rejected",
			zap.String("lot_id", in.LotID),
			zap.String("facility_id", in.FacilityID),
			zap.String("status", in.Status),
			zap.Float64("quantity", in.Quantity),
			zap.String("actor_id", actor.ID),
			zap.Error(err),
		)
		return nil, err
	}

	uc.afterCommit(ctx, *event, stock)
	return event, nil
}

func (uc *UseCase) append(ctx context.Context, actor domain.Actor, in AppendInput) (*domain.TrackingEvent, float64, error) {
	if err := actor.Require(domain.CapAppendEvent); err != nil {
		return nil, 0, err
	}
	status, err := domain.ParseStatus(in.Status)
	if err != nil {
		return nil, 0, err
	}
	if math.IsNaN(in.Quantity) || math.IsInf(in.Quantity, 0) || in.Quantity < 0 {
		return nil, 0, domain.Validationf("event quantity must be a non-negative number, got %v", in.Quantity)
	}

	event := &domain.TrackingEvent{
		LotID:      strings.TrimSpace(in.LotID),
		FacilityID: strings.TrimSpace(in.FacilityID),
		Status:     status,
		Quantity:   in.Quantity,
		Notes:      strings.TrimSpace(in.Notes),
		ActorID:    actor.ID,
	}

	var stock float64
	err = uc.store.WithinTx(ctx, func(tx repository.Stores) error {
		lot, err := tx.Lots().Lock(ctx, event.LotID)
		if err != nil {
			return err
		}
		latest, err := tx.Events().Latest(ctx, lot.ID)
		if err != nil {
			return fmt.Errorf("load latest event: %w", err)
		}
		facility, err := tx.Facilities().Lock(ctx, event.FacilityID)
		if err != nil {
			return err
		}

		next, err := uc.policy.Evaluate(domain.AppendCheck{
			Lot:      lot,
			Latest:   latest,
			Facility: facility,
			Status:   status,
			Quantity: event.Quantity,
		})
		if err != nil {
			return err
		}

		// Timestamps are taken under the lot lock so a lot's history never
		// runs backwards, even across clock adjustments.
		event.RecordedAt = identity.Normalize(uc.now())
		if latest != nil && event.RecordedAt.Before(latest.RecordedAt) {
			event.RecordedAt = latest.RecordedAt
		}

		if err := tx.Events().Append(ctx, event); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		if err := tx.Facilities().SetStock(ctx, facility.ID, next); err != nil {
			return fmt.Errorf("update facility stock: %w", err)
		}
		stock = next
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return event, stock, nil
}

func (uc *UseCase) afterCommit(ctx context.Context, event domain.TrackingEvent, stock float64) {
	uc.metrics.EventAppended(event, stock)

	if uc.notifier != nil {
		if err := uc.notifier.NotifyAppended(ctx, event, stock); err != nil {
			uc.logger.Error("failed to enqueue ledger notification", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx); err != nil {
			uc.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
		}
	}

	uc.logger.Info("tracking event appended",
		zap.String("event_id", event.ID),
		zap.Int64("sequence", event.Sequence),
		zap.String("lot_id", event.LotID),
		zap.String("facility_id", event.FacilityID),
		zap.String("status", string(event.Status)),
		zap.Float64("quantity", event.Quantity),
		zap.Float64("facility_stock", stock),
	)
}

// History returns every event recorded for the lot, newest first.
func (uc *UseCase) History(ctx context.Context, lotID string) ([]domain.TrackingEvent, error) {
	if _, err := uc.store.Lots().GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	return usecase.CollectAll(uc.events(ctx, repository.EventFilter{LotID: lotID}))
}

// Latest returns the lot's most recent event, or nil when it has none.
func (uc *UseCase) Latest(ctx context.Context, lotID string) (*domain.TrackingEvent, error) {
	if _, err := uc.store.Lots().GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	return uc.store.Events().Latest(ctx, lotID)
}

// FacilityEvents lists every event recorded at the facility, newest first.
func (uc *UseCase) FacilityEvents(ctx context.Context, actor domain.Actor, facilityID string) ([]domain.TrackingEvent, error) {
	if err := actor.Require(domain.CapViewFacilities); err != nil {
		return nil, err
	}
	if _, err := uc.store.Facilities().GetByID(ctx, facilityID); err != nil {
		return nil, err
	}
	return usecase.CollectAll(uc.events(ctx, repository.EventFilter{FacilityID: facilityID}))
}

// Reconcile replays the facility's ledger and reports how far the stored
// stock has drifted from it. The facility row is locked while reading so a
// concurrent append cannot show up as drift.
func (uc *UseCase) Reconcile(ctx context.Context, facilityID string) (*Reconciliation, error) {
	var rec Reconciliation
	err := uc.store.WithinTx(ctx, func(tx repository.Stores) error {
		facility, err := tx.Facilities().Lock(ctx, facilityID)
		if err != nil {
			return err
		}
		events, err := tx.Events().ForFacility(ctx, facility.ID)
		if err != nil {
			return fmt.Errorf("load facility events: %w", err)
		}
		rec = reconcile(facility, events)
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.StockDrift(rec.FacilityID, rec.Drift)
	return &rec, nil
}

// ReconcileAll reconciles every facility.
func (uc *UseCase) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	facilities := usecase.Paginate(usecase.MaxPageSize, func(limit, offset int) ([]domain.Facility, error) {
		return uc.store.Facilities().List(ctx, repository.FacilityFilter{Limit: limit, Offset: offset})
	})

	var out []Reconciliation
	for facility, err := range facilities {
		if err != nil {
			return nil, err
		}
		rec, err := uc.Reconcile(ctx, facility.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Rebuild overwrites the facility's stored stock with the replayed value.
// The returned reconciliation describes the state before the rewrite.
func (uc *UseCase) Rebuild(ctx context.Context, facilityID string) (*Reconciliation, error) {
	var rec Reconciliation
	err := uc.store.WithinTx(ctx, func(tx repository.Stores) error {
		facility, err := tx.Facilities().Lock(ctx, facilityID)
		if err != nil {
			return err
		}
		events, err := tx.Events().ForFacility(ctx, facility.ID)
		if err != nil {
			return fmt.Errorf("load facility events: %w", err)
		}
		rec = reconcile(facility, events)
		return tx.Facilities().SetStock(ctx, facility.ID, rec.ReplayedStock)
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.StockDrift(rec.FacilityID, 0)
	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx); err != nil {
			uc.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
		}
	}
	if !rec.Consistent() {
		uc.logger.Warn("facility stock rebuilt from ledger",
			zap.String("facility_id", rec.FacilityID),
			zap.Float64("stored_stock", rec.StoredStock),
			zap.Float64("replayed_stock", rec.ReplayedStock),
		)
	}
	return &rec, nil
}

func (uc *UseCase) events(ctx context.Context, filter repository.EventFilter) iter.Seq2[domain.TrackingEvent, error] {
	return usecase.PaginateAfter(uc.pageSize, func(limit int, after *repository.EventCursor) ([]domain.TrackingEvent, error) {
		filter.Limit, filter.Before = limit, after
		return uc.store.Events().List(ctx, filter)
	}, repository.CursorOf)
}

func reconcile(facility *domain.Facility, events []domain.TrackingEvent) Reconciliation {
	replayed := domain.Replay(events)
	return Reconciliation{
		FacilityID:    facility.ID,
		StoredStock:   facility.CurrentStock,
		ReplayedStock: replayed,
		Drift:         facility.CurrentStock - replayed,
		Events:        len(events),
	}
}
