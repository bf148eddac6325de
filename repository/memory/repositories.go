package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/repository"
)

type lotRepository struct {
	sc scope
}

func (r *lotRepository) Create(_ context.Context, lot *domain.Lot) error {
	if lot == nil {
		return domain.ErrInvalidPayload
	}
	return r.sc.write(func(s *memoryState) error {
		if _, taken := s.hashes[lot.ContentHash]; taken {
			return domain.ErrHashConflict
		}
		if lot.ID == "" {
			lot.ID = uuid.NewString()
		}
		if lot.CreatedAt.IsZero() {
			lot.CreatedAt = r.sc.now()
		}
		s.lots[lot.ID] = *lot
		s.hashes[lot.ContentHash] = lot.ID
		return nil
	})
}

func (r *lotRepository) GetByID(_ context.Context, id string) (*domain.Lot, error) {
	var out *domain.Lot
	err := r.sc.read(func(s *memoryState) error {
		lot, ok := s.lots[id]
		if !ok {
			return domain.ErrLotNotFound
		}
		out = &lot
		return nil
	})
	return out, err
}

// Lock is a plain read: transactions already hold the store exclusively.
func (r *lotRepository) Lock(ctx context.Context, id string) (*domain.Lot, error) {
	return r.GetByID(ctx, id)
}

func (r *lotRepository) List(_ context.Context, filter repository.LotFilter) ([]domain.Lot, error) {
	var out []domain.Lot
	err := r.sc.read(func(s *memoryState) error {
		lots := make([]domain.Lot, 0, len(s.lots))
		for _, lot := range s.lots {
			if filter.ProducerID != "" && lot.ProducerID != filter.ProducerID {
				continue
			}
			lots = append(lots, lot)
		}
		sort.Slice(lots, func(i, j int) bool {
			if !lots[i].CreatedAt.Equal(lots[j].CreatedAt) {
				return lots[i].CreatedAt.After(lots[j].CreatedAt)
			}
			return lots[i].ID > lots[j].ID
		})
		out = page(lots, filter.Limit, filter.Offset)
		return nil
	})
	return out, err
}

func (r *lotRepository) Count(_ context.Context) (int, error) {
	var n int
	err := r.sc.read(func(s *memoryState) error {
		n = len(s.lots)
		return nil
	})
	return n, err
}

type facilityRepository struct {
	sc scope
}

func (r *facilityRepository) Create(_ context.Context, facility *domain.Facility) error {
	if facility == nil {
		return domain.ErrInvalidPayload
	}
	return r.sc.write(func(s *memoryState) error {
		if facility.ID == "" {
			facility.ID = uuid.NewString()
		}
		if facility.CreatedAt.IsZero() {
			facility.CreatedAt = r.sc.now()
		}
		facility.CurrentStock = 0
		s.facilities[facility.ID] = *facility
		return nil
	})
}

func (r *facilityRepository) GetByID(_ context.Context, id string) (*domain.Facility, error) {
	var out *domain.Facility
	err := r.sc.read(func(s *memoryState) error {
		f, ok := s.facilities[id]
		if !ok {
			return domain.ErrFacilityNotFound
		}
		out = &f
		return nil
	})
	return out, err
}

func (r *facilityRepository) Lock(ctx context.Context, id string) (*domain.Facility, error) {
	return r.GetByID(ctx, id)
}

func (r *facilityRepository) List(_ context.Context, filter repository.FacilityFilter) ([]domain.Facility, error) {
	var out []domain.Facility
	err := r.sc.read(func(s *memoryState) error {
		facilities := make([]domain.Facility, 0, len(s.facilities))
		for _, f := range s.facilities {
			if filter.Kind != "" && f.Kind != filter.Kind {
				continue
			}
			facilities = append(facilities, f)
		}
		sort.Slice(facilities, func(i, j int) bool {
			if !facilities[i].CreatedAt.Equal(facilities[j].CreatedAt) {
				return facilities[i].CreatedAt.Before(facilities[j].CreatedAt)
			}
			return facilities[i].ID < facilities[j].ID
		})
		out = page(facilities, filter.Limit, filter.Offset)
		return nil
	})
	return out, err
}

func (r *facilityRepository) SetStock(_ context.Context, id string, stock float64) error {
	return r.sc.write(func(s *memoryState) error {
		f, ok := s.facilities[id]
		if !ok {
			return domain.ErrFacilityNotFound
		}
		f.CurrentStock = stock
		s.facilities[id] = f
		return nil
	})
}

type eventRepository struct {
	sc scope
}

func (r *eventRepository) Append(_ context.Context, event *domain.TrackingEvent) error {
	if event == nil {
		return domain.ErrInvalidPayload
	}
	return r.sc.write(func(s *memoryState) error {
		if _, ok := s.lots[event.LotID]; !ok {
			return domain.ErrLotNotFound
		}
		if _, ok := s.facilities[event.FacilityID]; !ok {
			return domain.ErrFacilityNotFound
		}
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if event.RecordedAt.IsZero() {
			event.RecordedAt = r.sc.now()
		}
		s.seq++
		event.Sequence = s.seq
		s.events = append(s.events, *event)
		return nil
	})
}

func (r *eventRepository) Latest(_ context.Context, lotID string) (*domain.TrackingEvent, error) {
	var out *domain.TrackingEvent
	err := r.sc.read(func(s *memoryState) error {
		for i := range s.events {
			ev := s.events[i]
			if ev.LotID != lotID {
				continue
			}
			if out == nil || out.Before(ev) {
				out = &ev
			}
		}
		return nil
	})
	return out, err
}

func (r *eventRepository) List(_ context.Context, filter repository.EventFilter) ([]domain.TrackingEvent, error) {
	var out []domain.TrackingEvent
	err := r.sc.read(func(s *memoryState) error {
		var matched []domain.TrackingEvent
		for _, ev := range s.events {
			if filter.LotID != "" && ev.LotID != filter.LotID {
				continue
			}
			if filter.FacilityID != "" && ev.FacilityID != filter.FacilityID {
				continue
			}
			if filter.ProducerID != "" && s.lots[ev.LotID].ProducerID != filter.ProducerID {
				continue
			}
			if filter.FacilityKind != "" && s.facilities[ev.FacilityID].Kind != filter.FacilityKind {
				continue
			}
			if c := filter.Before; c != nil && !ev.Before(domain.TrackingEvent{RecordedAt: c.RecordedAt, Sequence: c.Sequence}) {
				continue
			}
			matched = append(matched, ev)
		}
		domain.SortNewestFirst(matched)
		out = page(matched, filter.Limit, filter.Offset)
		return nil
	})
	return out, err
}

func (r *eventRepository) ForFacility(_ context.Context, facilityID string) ([]domain.TrackingEvent, error) {
	var out []domain.TrackingEvent
	err := r.sc.read(func(s *memoryState) error {
		for _, ev := range s.events {
			if ev.FacilityID == facilityID {
				out = append(out, ev)
			}
		}
		domain.SortChronological(out)
		return nil
	})
	return out, err
}
