package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/pagination"
)

// ErrNotFound is returned when no event matches the lookup.
var ErrNotFound = errors.New("event not found")

const eventColumns = `id, user_id, name, description, start_time, end_time, reminder_sent_at, created_at, updated_at`

// Repository handles event persistence.
type Repository struct {
	pool    *pgxpool.Pool
	loaders Loaders
}

// NewRepository creates an event repository. loaders resolve included relations.
func NewRepository(pool *pgxpool.Pool, loaders Loaders) *Repository {
	return &Repository{pool: pool, loaders: loaders}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.OwnerID, &e.Name, &e.Description, &e.StartTime, &e.EndTime, &e.ReminderSentAt, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Entity wraps event for in-place relation loading.
func (r *Repository) Entity(event *models.Event) *Entity {
	return NewEntity(event, r.loaders)
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (user_id, name, description, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	if err := r.pool.QueryRow(ctx, q, e.OwnerID, e.Name, e.Description, e.StartTime, e.EndTime).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

// List runs q for one page, newest start time first, and eager-loads its relations.
func (r *Repository) List(ctx context.Context, q *Query, page pagination.Page) ([]models.Event, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY start_time DESC, id LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	list := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loaders.load(ctx, q, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Update writes name, description and times of e.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET name = $1, description = $2, start_time = $3, end_time = $4, updated_at = NOW()
		WHERE id = $5 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, e.Name, e.Description, e.StartTime, e.EndTime, e.ID).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes an event by ID. Its attendees are removed by cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DueForReminder returns events starting in [from, to) that have not been reminded yet.
func (r *Repository) DueForReminder(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE start_time >= $1 AND start_time < $2 AND reminder_sent_at IS NULL
		 ORDER BY start_time`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// MarkReminded records that reminders went out for the event.
func (r *Repository) MarkReminded(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE events SET reminder_sent_at = NOW() WHERE id = $1 AND reminder_sent_at IS NULL`, id)
	return err
}
