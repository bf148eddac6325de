package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/repository"
)

const eventColumns = `e.id, e.seq, e.lot_id, e.facility_id, e.status, e.quantity, e.notes, e.actor_id, e.recorded_at`

type eventRepository struct {
	db DBTX
}

// NewEventRepository returns a Postgres-backed tracking ledger bound to db.
func NewEventRepository(db DBTX) repository.EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Append(ctx context.Context, event *domain.TrackingEvent) error {
	if event == nil {
		return domain.ErrInvalidPayload
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO tracking_events (id, lot_id, facility_id, status, quantity, notes, actor_id, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
	RETURNING seq, recorded_at
	`
	return r.db.QueryRow(ctx, query,
		event.ID,
		event.LotID,
		event.FacilityID,
		string(event.Status),
		event.Quantity,
		event.Notes,
		event.ActorID,
		nullTime(event.RecordedAt),
	).Scan(&event.Sequence, &event.RecordedAt)
}

func (r *eventRepository) Latest(ctx context.Context, lotID string) (*domain.TrackingEvent, error) {
	const query = `
	SELECT ` + eventColumns + `
	FROM tracking_events e
	WHERE e.lot_id = $1
	ORDER BY e.recorded_at DESC, e.seq DESC
	LIMIT 1
	`
	ev, err := scanEvent(r.db.QueryRow(ctx, query, lotID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ev, err
}

func (r *eventRepository) List(ctx context.Context, filter repository.EventFilter) ([]domain.TrackingEvent, error) {
	const query = `
	SELECT ` + eventColumns + `
	FROM tracking_events e
	JOIN lots l ON l.id = e.lot_id
	JOIN facilities f ON f.id = e.facility_id
	WHERE ($1 = '' OR e.lot_id = $1)
	  AND ($2 = '' OR e.facility_id = $2)
	  AND ($3 = '' OR l.producer_id = $3)
	  AND ($4 = '' OR f.kind = $4)
	  AND ($7::timestamptz IS NULL OR (e.recorded_at, e.seq) < ($7::timestamptz, $8::bigint))
	ORDER BY e.recorded_at DESC, e.seq DESC
	LIMIT $5 OFFSET $6
	`
	var (
		beforeAt  *time.Time
		beforeSeq int64
	)
	if filter.Before != nil {
		beforeAt, beforeSeq = &filter.Before.RecordedAt, filter.Before.Sequence
	}
	rows, err := r.db.Query(ctx, query,
		filter.LotID,
		filter.FacilityID,
		filter.ProducerID,
		string(filter.FacilityKind),
		clampLimit(filter.Limit),
		filter.Offset,
		beforeAt,
		beforeSeq,
	)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r *eventRepository) ForFacility(ctx context.Context, facilityID string) ([]domain.TrackingEvent, error) {
	const query = `
	SELECT ` + eventColumns + `
	FROM tracking_events e
	WHERE e.facility_id = $1
	ORDER BY e.recorded_at ASC, e.seq ASC
	`
	rows, err := r.db.Query(ctx, query, facilityID)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]domain.TrackingEvent, error) {
	defer rows.Close()

	var events []domain.TrackingEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// scanEvent passes pgx.ErrNoRows through untouched; Latest relies on it.
func scanEvent(row pgx.Row) (*domain.TrackingEvent, error) {
	var (
		ev     domain.TrackingEvent
		status string
	)
	if err := row.Scan(
		&ev.ID,
		&ev.Sequence,
		&ev.LotID,
		&ev.FacilityID,
		&status,
		&ev.Quantity,
		&ev.Notes,
		&ev.ActorID,
		&ev.RecordedAt,
	); err != nil {
		return nil, err
	}
	ev.Status = domain.Status(status)
	return &ev, nil
}
