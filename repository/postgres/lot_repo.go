package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/repository"
)

const lotColumns = `id, content_hash, producer_id, produce_type, variety, quantity, quality_grade, created_at`

type lotRepository struct {
	db DBTX
}

// NewLotRepository returns a Postgres-backed LotRepository bound to db.
func NewLotRepository(db DBTX) repository.LotRepository {
	return &lotRepository{db: db}
}

func (r *lotRepository) Create(ctx context.Context, lot *domain.Lot) error {
	if lot == nil {
		return domain.ErrInvalidPayload
	}
	if lot.ID == "" {
		lot.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO lots (` + lotColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
	RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, query,
		lot.ID,
		lot.ContentHash,
		lot.ProducerID,
		string(lot.ProduceType),
		lot.Variety,
		lot.Quantity,
		string(lot.QualityGrade),
		nullTime(lot.CreatedAt),
	).Scan(&lot.CreatedAt); err != nil {
		if isUniqueViolation(err, "lots_content_hash_key") {
			return domain.ErrHashConflict
		}
		return err
	}
	return nil
}

func (r *lotRepository) GetByID(ctx context.Context, id string) (*domain.Lot, error) {
	const query = `SELECT ` + lotColumns + ` FROM lots WHERE id = $1`
	return scanLot(r.db.QueryRow(ctx, query, id))
}

func (r *lotRepository) Lock(ctx context.Context, id string) (*domain.Lot, error) {
	const query = `SELECT ` + lotColumns + ` FROM lots WHERE id = $1 FOR UPDATE`
	return scanLot(r.db.QueryRow(ctx, query, id))
}

func (r *lotRepository) List(ctx context.Context, filter repository.LotFilter) ([]domain.Lot, error) {
	const query = `
	SELECT ` + lotColumns + `
	FROM lots
	WHERE ($1 = '' OR producer_id = $1)
	ORDER BY created_at DESC, id DESC
	LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, filter.ProducerID, clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []domain.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, *lot)
	}
	return lots, rows.Err()
}

func (r *lotRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM lots`).Scan(&n)
	return n, err
}

func scanLot(row pgx.Row) (*domain.Lot, error) {
	var (
		lot          domain.Lot
		produceType  string
		qualityGrade string
	)
	if err := row.Scan(
		&lot.ID,
		&lot.ContentHash,
		&lot.ProducerID,
		&produceType,
		&lot.Variety,
		&lot.Quantity,
		&qualityGrade,
		&lot.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLotNotFound
		}
		return nil, err
	}
	lot.ProduceType = domain.ProduceType(produceType)
	lot.QualityGrade = domain.QualityGrade(qualityGrade)
	return &lot, nil
}
