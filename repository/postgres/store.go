package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/agritrace/repository"
)

type stores struct {
	db DBTX
}

func (s stores) Lots() repository.LotRepository            { return NewLotRepository(s.db) }
func (s stores) Facilities() repository.FacilityRepository { return NewFacilityRepository(s.db) }
func (s stores) Events() repository.EventRepository        { return NewEventRepository(s.db) }

// Store is the pgx-backed persistence collaborator.
type Store struct {
	stores
	pool *pgxpool.Pool
}

// NewStore creates a Store over the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{stores: stores{db: pool}, pool: pool}
}

// WithinTx runs fn inside a read-committed transaction. Row locks taken
// through the Lock methods are held until fn returns.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Stores) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(stores{db: tx})
	})
}

var _ repository.Store = (*Store)(nil)
