package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/agritrace/domain"
)

// Notification is a committed tracking event waiting to be published.
type Notification struct {
	ID            string        `json:"id"`
	EventID       string        `json:"event_id"`
	Sequence      int64         `json:"sequence"`
	LotID         string        `json:"lot_id"`
	FacilityID    string        `json:"facility_id"`
	Status        domain.Status `json:"status"`
	Quantity      float64       `json:"quantity"`
	FacilityStock float64       `json:"facility_stock"`
	ActorID       string        `json:"actor_id"`
	RecordedAt    time.Time     `json:"recorded_at"`
	Attempts      int           `json:"attempts"`
	EnqueuedAt    time.Time     `json:"enqueued_at"`

	key []byte
}

// FromEvent builds the notification for an appended event.
func FromEvent(event domain.TrackingEvent, facilityStock float64) Notification {
	return Notification{
		EventID:       event.ID,
		Sequence:      event.Sequence,
		LotID:         event.LotID,
		FacilityID:    event.FacilityID,
		Status:        event.Status,
		Quantity:      event.Quantity,
		FacilityStock: facilityStock,
		ActorID:       event.ActorID,
		RecordedAt:    event.RecordedAt,
	}
}

func (n *Notification) normalize() {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.EnqueuedAt.IsZero() {
		n.EnqueuedAt = time.Now().UTC()
	}
}
