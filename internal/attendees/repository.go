package attendees

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/pagination"
)

// ErrNotFound is returned when no attendee matches the lookup.
var ErrNotFound = errors.New("attendee not found")

const attendeeColumns = `id, event_id, user_id, created_at, updated_at`

// Repository handles attendee persistence.
type Repository struct {
	pool  *pgxpool.Pool
	users UserDirectory
}

// NewRepository creates an attendee repository. users resolves the "user" relation.
func NewRepository(pool *pgxpool.Pool, users UserDirectory) *Repository {
	return &Repository{pool: pool, users: users}
}

func scanAttendee(row pgx.Row) (*models.Attendee, error) {
	var a models.Attendee
	err := row.Scan(&a.ID, &a.EventID, &a.UserID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collect(rows pgx.Rows) ([]models.Attendee, error) {
	defer rows.Close()
	list := []models.Attendee{}
	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// Entity wraps attendee, which belongs to event, for in-place relation loading.
func (r *Repository) Entity(attendee *models.Attendee, event *models.Event) *Entity {
	return NewEntity(attendee, event, r.users)
}

// IsAttending reports whether userID has an attendee row for eventID.
func (r *Repository) IsAttending(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attendees WHERE event_id = $1 AND user_id = $2)`,
		eventID, userID).Scan(&ok)
	return ok, err
}

// List runs q for one page and eager-loads its relations.
func (r *Repository) List(ctx context.Context, q *Query, page pagination.Page) ([]models.Attendee, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendees WHERE event_id = $1`, q.EventID()).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count attendees: %w", err)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+attendeeColumns+` FROM attendees WHERE event_id = $1
		 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		q.EventID(), page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list attendees: %w", err)
	}
	list, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := load(ctx, r.users, q, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ByEvents returns the attendees of each given event, newest first.
func (r *Repository) ByEvents(ctx context.Context, eventIDs []uuid.UUID) (map[uuid.UUID][]models.Attendee, error) {
	out := make(map[uuid.UUID][]models.Attendee, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+attendeeColumns+` FROM attendees WHERE event_id = ANY($1) ORDER BY created_at DESC, id`,
		eventIDs)
	if err != nil {
		return nil, err
	}
	list, err := collect(rows)
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		out[a.EventID] = append(out[a.EventID], a)
	}
	return out, nil
}

// GetByID returns an attendee by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Attendee, error) {
	return scanAttendee(r.pool.QueryRow(ctx, `SELECT `+attendeeColumns+` FROM attendees WHERE id = $1`, id))
}

// Create registers userID for eventID. When the pair already exists the
// stored row is returned with created false.
func (r *Repository) Create(ctx context.Context, eventID, userID uuid.UUID) (*models.Attendee, bool, error) {
	const q = `INSERT INTO attendees (event_id, user_id) VALUES ($1, $2)
		ON CONFLICT (event_id, user_id) DO NOTHING
		RETURNING ` + attendeeColumns
	a, err := scanAttendee(r.pool.QueryRow(ctx, q, eventID, userID))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("insert attendee: %w", err)
	}
	a, err = scanAttendee(r.pool.QueryRow(ctx,
		`SELECT `+attendeeColumns+` FROM attendees WHERE event_id = $1 AND user_id = $2`, eventID, userID))
	if err != nil {
		return nil, false, fmt.Errorf("load existing attendee: %w", err)
	}
	return a, false, nil
}

// Delete removes an attendee by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM attendees WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Recipients returns names and addresses of everyone attending eventID.
func (r *Repository) Recipients(ctx context.Context, eventID uuid.UUID) ([]models.Recipient, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, u.id, u.name, u.email FROM attendees a
		 JOIN users u ON u.id = a.user_id
		 WHERE a.event_id = $1 ORDER BY a.created_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recipient
	for rows.Next() {
		var rc models.Recipient
		if err := rows.Scan(&rc.AttendeeID, &rc.UserID, &rc.Name, &rc.Email); err != nil {
			return nil, err
		}
		list = append(list, rc)
	}
	return list, rows.Err()
}
