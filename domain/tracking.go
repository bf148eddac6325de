package domain

import (
	"sort"
	"strings"
	"time"
)

// Status is the custody state observed by a tracking event.
type Status string

const (
	StatusReceived   Status = "received"
	StatusProcessing Status = "processing"
	StatusStored     Status = "stored"
	StatusShipped    Status = "shipped"
	StatusRejected   Status = "rejected"
)

// Statuses lists every status in custody order.
var Statuses = []Status{StatusReceived, StatusProcessing, StatusStored, StatusShipped, StatusRejected}

func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Statuses {
		if s == known {
			return s, nil
		}
	}
	return "", Validationf("unrecognized tracking status %q", value)
}

// TrackingEvent is one immutable step in a lot's chain of custody.
// Sequence is assigned by the store at append time and breaks ties
// between events sharing a RecordedAt.
type TrackingEvent struct {
	ID         string    `json:"id"`
	Sequence   int64     `json:"sequence"`
	LotID      string    `json:"lot_id"`
	FacilityID string    `json:"facility_id"`
	Status     Status    `json:"status"`
	Quantity   float64   `json:"quantity"`
	Notes      string    `json:"notes,omitempty"`
	ActorID    string    `json:"actor_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// StockDelta is the reconciliation rule: the change an event of the given
// status and quantity applies to the stock of the facility it names.
func StockDelta(status Status, quantity float64) float64 {
	switch status {
	case StatusStored, StatusProcessing:
		return quantity
	case StatusShipped:
		return -quantity
	default:
		return 0
	}
}

// Before orders events chronologically, falling back to insertion order.
func (e TrackingEvent) Before(other TrackingEvent) bool {
	if !e.RecordedAt.Equal(other.RecordedAt) {
		return e.RecordedAt.Before(other.RecordedAt)
	}
	return e.Sequence < other.Sequence
}

// SortChronological sorts events oldest first in place.
func SortChronological(events []TrackingEvent) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Before(events[j]) })
}

// SortNewestFirst sorts events newest first in place.
func SortNewestFirst(events []TrackingEvent) {
	sort.SliceStable(events, func(i, j int) bool { return events[j].Before(events[i]) })
}

// Replay folds the events through StockDelta from a zero stock. The input
// is not modified; events are applied in chronological order regardless of
// how they are passed in.
func Replay(events []TrackingEvent) float64 {
	ordered := make([]TrackingEvent, len(events))
	copy(ordered, events)
	SortChronological(ordered)

	var stock float64
	for _, ev := range ordered {
		stock += StockDelta(ev.Status, ev.Quantity)
	}
	return stock
}

// allowedPredecessors is the transition table applied under
// LedgerPolicy.StrictTransitions. The empty status stands for "no prior event".
var allowedPredecessors = map[Status][]Status{
	StatusReceived:   {"", StatusShipped},
	StatusProcessing: {StatusReceived, StatusProcessing},
	StatusStored:     {StatusReceived, StatusProcessing, StatusStored},
	StatusShipped:    {StatusProcessing, StatusStored},
	StatusRejected:   {StatusReceived, StatusProcessing, StatusStored},
}

// CanFollow reports whether next may be recorded after prev under the
// strict transition table. prev is empty for a lot with no events.
func CanFollow(prev, next Status) bool {
	for _, p := range allowedPredecessors[next] {
		if p == prev {
			return true
		}
	}
	return false
}
