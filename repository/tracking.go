package repository

import (
	"context"
	"time"

	"github.com/fastygo/agritrace/domain"
)

// EventFilter narrows event listings. All fields are optional; results are
// ordered newest first (recorded_at, then sequence).
type EventFilter struct {
	LotID        string
	FacilityID   string
	ProducerID   string
	FacilityKind domain.FacilityKind
	Limit        int
	Offset       int
	// Before keeps only events strictly older than the cursor. Paging by
	// cursor is stable while new events are appended.
	Before *EventCursor
}

// EventCursor is a position in the newest-first event ordering.
type EventCursor struct {
	RecordedAt time.Time
	Sequence   int64
}

// CursorOf returns the position of ev.
func CursorOf(ev domain.TrackingEvent) EventCursor {
	return EventCursor{RecordedAt: ev.RecordedAt, Sequence: ev.Sequence}
}

// EventRepository is the append-only tracking ledger.
type EventRepository interface {
	// Append stores the event and assigns its Sequence.
	Append(ctx context.Context, event *domain.TrackingEvent) error
	// Latest returns nil without error when the lot has no events.
	Latest(ctx context.Context, lotID string) (*domain.TrackingEvent, error)
	List(ctx context.Context, filter EventFilter) ([]domain.TrackingEvent, error)
	// ForFacility returns every event recorded at the facility, oldest first.
	ForFacility(ctx context.Context, facilityID string) ([]domain.TrackingEvent, error)
}
