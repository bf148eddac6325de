package repository

import "context"

// Stores groups the repositories bound to one connection or transaction.
type Stores interface {
	Lots() LotRepository
	Facilities() FacilityRepository
	Events() EventRepository
}

// Store is the persistence collaborator. Repositories returned directly are
// bound to the pool; WithinTx hands fn repositories bound to a single
// transaction that commits when fn returns nil and rolls back otherwise.
type Store interface {
	Stores
	WithinTx(ctx context.Context, fn func(tx Stores) error) error
}
