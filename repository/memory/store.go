// Package memory provides an in-process implementation of the repository
// store used by tests and the LEDGER_STORE=memory mode.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/repository"
)

var _ repository.Store = (*Store)(nil)

type memoryState struct {
	lots       map[string]domain.Lot
	hashes     map[string]string
	facilities map[string]domain.Facility
	events     []domain.TrackingEvent
	seq        int64
}

func newState() memoryState {
	return memoryState{
		lots:       make(map[string]domain.Lot),
		hashes:     make(map[string]string),
		facilities: make(map[string]domain.Facility),
	}
}

// clone copies the maps; the events slice is capped so appends inside a
// transaction never write into the committed backing array.
func (s memoryState) clone() memoryState {
	return memoryState{
		lots:       maps.Clone(s.lots),
		hashes:     maps.Clone(s.hashes),
		facilities: maps.Clone(s.facilities),
		events:     s.events[:len(s.events):len(s.events)],
		seq:        s.seq,
	}
}

// Store keeps lots, facilities and the tracking ledger in memory.
// Transactions are serialized and work on a copy of the state that replaces
// the committed state only when the callback succeeds.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for default timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewStore returns an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state: newState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Lots() repository.LotRepository            { return &lotRepository{scope{store: s}} }
func (s *Store) Facilities() repository.FacilityRepository { return &facilityRepository{scope{store: s}} }
func (s *Store) Events() repository.EventRepository        { return &eventRepository{scope{store: s}} }

// WithinTx executes fn against a transactional copy of the store state.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	state := s.state.clone()
	if err := fn(txStores{scope{store: s, tx: &state}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = state
	return nil
}

type txStores struct {
	sc scope
}

func (t txStores) Lots() repository.LotRepository            { return &lotRepository{t.sc} }
func (t txStores) Facilities() repository.FacilityRepository { return &facilityRepository{t.sc} }
func (t txStores) Events() repository.EventRepository        { return &eventRepository{t.sc} }

// scope routes repository calls either to the transaction copy, which the
// caller already owns exclusively, or to the committed state under the lock.
type scope struct {
	store *Store
	tx    *memoryState
}

func (sc scope) read(fn func(*memoryState) error) error {
	if sc.tx != nil {
		return fn(sc.tx)
	}
	sc.store.mu.RLock()
	defer sc.store.mu.RUnlock()
	return fn(&sc.store.state)
}

func (sc scope) write(fn func(*memoryState) error) error {
	if sc.tx != nil {
		return fn(sc.tx)
	}
	sc.store.mu.Lock()
	defer sc.store.mu.Unlock()
	return fn(&sc.store.state)
}

func (sc scope) now() time.Time {
	return sc.store.nowFn()
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
