package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/repository"
)

const facilityColumns = `id, name, kind, location, capacity, current_stock, created_at`

type facilityRepository struct {
	db DBTX
}

// NewFacilityRepository returns a Postgres-backed FacilityRepository bound to db.
func NewFacilityRepository(db DBTX) repository.FacilityRepository {
	return &facilityRepository{db: db}
}

func (r *facilityRepository) Create(ctx context.Context, facility *domain.Facility) error {
	if facility == nil {
		return domain.ErrInvalidPayload
	}
	if facility.ID == "" {
		facility.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO facilities (` + facilityColumns + `)
	VALUES ($1, $2, $3, $4, $5, 0, COALESCE($6, NOW()))
	RETURNING current_stock, created_at
	`
	return r.db.QueryRow(ctx, query,
		facility.ID,
		facility.Name,
		string(facility.Kind),
		facility.Location,
		facility.Capacity,
		nullTime(facility.CreatedAt),
	).Scan(&facility.CurrentStock, &facility.CreatedAt)
}

func (r *facilityRepository) GetByID(ctx context.Context, id string) (*domain.Facility, error) {
	const query = `SELECT ` + facilityColumns + ` FROM facilities WHERE id = $1`
	return scanFacility(r.db.QueryRow(ctx, query, id))
}

func (r *facilityRepository) Lock(ctx context.Context, id string) (*domain.Facility, error) {
	const query = `SELECT ` + facilityColumns + ` FROM facilities WHERE id = $1 FOR UPDATE`
	return scanFacility(r.db.QueryRow(ctx, query, id))
}

func (r *facilityRepository) List(ctx context.Context, filter repository.FacilityFilter) ([]domain.Facility, error) {
	const query = `
	SELECT ` + facilityColumns + `
	FROM facilities
	WHERE ($1 = '' OR kind = $1)
	ORDER BY created_at ASC, id ASC
	LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, string(filter.Kind), clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facilities []domain.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		facilities = append(facilities, *f)
	}
	return facilities, rows.Err()
}

func (r *facilityRepository) SetStock(ctx context.Context, id string, stock float64) error {
	tag, err := r.db.Exec(ctx, `UPDATE facilities SET current_stock = $2 WHERE id = $1`, id, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrFacilityNotFound
	}
	return nil
}

func scanFacility(row pgx.Row) (*domain.Facility, error) {
	var (
		f    domain.Facility
		kind string
	)
	if err := row.Scan(
		&f.ID,
		&f.Name,
		&kind,
		&f.Location,
		&f.Capacity,
		&f.CurrentStock,
		&f.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFacilityNotFound
		}
		return nil, err
	}
	f.Kind = domain.FacilityKind(kind)
	return &f, nil
}
