package usecase

import (
	"context"
	"errors"

	"github.com/fastygo/agritrace/domain"
)

// LedgerNotifier receives tracking events after they are committed so they
// can be published asynchronously. Failures never undo the ledger entry.
type LedgerNotifier interface {
	NotifyAppended(ctx context.Context, event domain.TrackingEvent, facilityStock float64) error
}

// LedgerMetrics records ledger activity.
type LedgerMetrics interface {
	EventAppended(event domain.TrackingEvent, facilityStock float64)
	AppendRejected(code domain.ErrorCode)
	StockDrift(facilityID string, drift float64)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) EventAppended(domain.TrackingEvent, float64) {}
func (NopMetrics) AppendRejected(domain.ErrorCode)             {}
func (NopMetrics) StockDrift(string, float64)                  {}

// ErrorCodeOf classifies err for metrics and transport mapping.
func ErrorCodeOf(err error) domain.ErrorCode {
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return domain.ErrCodeInternal
}
