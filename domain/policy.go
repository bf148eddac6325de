package domain

// LedgerPolicy selects which of the optional ledger invariants are enforced
// when an event is appended.
type LedgerPolicy struct {
	// EnforceMonotonic rejects an event whose quantity exceeds the lot's
	// most recent recorded quantity (registered quantity if none).
	EnforceMonotonic bool
	// RejectNegativeStock rejects an event that would drive the facility's
	// stock below zero.
	RejectNegativeStock bool
	// StrictTransitions applies the predecessor table in CanFollow.
	StrictTransitions bool
}

// DefaultPolicy enforces quantity monotonicity and nothing else.
func DefaultPolicy() LedgerPolicy {
	return LedgerPolicy{EnforceMonotonic: true}
}

// PermissivePolicy reproduces the unguarded behaviour: any status, any
// non-negative quantity, stock may go negative.
func PermissivePolicy() LedgerPolicy {
	return LedgerPolicy{}
}

// AppendCheck carries the state an append is validated against.
type AppendCheck struct {
	Lot      *Lot
	Latest   *TrackingEvent
	Facility *Facility
	Status   Status
	Quantity float64
}

// LastQuantity is the quantity most recently recorded for the lot.
func (c AppendCheck) LastQuantity() float64 {
	if c.Latest != nil {
		return c.Latest.Quantity
	}
	if c.Lot != nil {
		return c.Lot.Quantity
	}
	return 0
}

// Evaluate validates the append and returns the facility's resulting stock.
func (p LedgerPolicy) Evaluate(c AppendCheck) (float64, error) {
	if c.Lot == nil {
		return 0, ErrLotNotFound
	}
	if c.Facility == nil {
		return 0, ErrFacilityNotFound
	}
	if c.Quantity < 0 {
		return 0, Validationf("event quantity must not be negative, got %v", c.Quantity)
	}
	if p.EnforceMonotonic && c.Quantity > c.LastQuantity() {
		return 0, Validationf("event quantity %v exceeds last recorded quantity %v for lot %s",
			c.Quantity, c.LastQuantity(), c.Lot.ID)
	}
	if p.StrictTransitions {
		var prev Status
		if c.Latest != nil {
			prev = c.Latest.Status
		}
		if !CanFollow(prev, c.Status) {
			return 0, Validationf("status %q may not follow %q", c.Status, prev)
		}
	}

	next := c.Facility.CurrentStock + StockDelta(c.Status, c.Quantity)
	if p.RejectNegativeStock && next < 0 {
		return 0, Validationf("shipping %v from facility %s would leave stock at %v",
			c.Quantity, c.Facility.ID, next)
	}
	return next, nil
}
