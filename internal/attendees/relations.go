package attendees

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/aura-events/backend/internal/include"
	"github.com/aura-events/backend/internal/models"
)

// Relation names an attendee response may include.
const (
	RelationUser  = "user"
	RelationEvent = "event"
)

// Relations is the include whitelist for attendee endpoints.
var Relations = []string{RelationUser, RelationEvent}

// UserDirectory resolves public user profiles.
type UserDirectory interface {
	PublicByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserPublic, error)
}

func checkRelation(relation string) error {
	switch relation {
	case RelationUser, RelationEvent:
		return nil
	}
	return include.Unknown(relation)
}

// Query lists the attendees of one event, newest first. It does not touch
// storage; With only extends the plan the repository executes.
type Query struct {
	event     *models.Event
	relations []string
}

// NewQuery plans a listing of event's attendees.
func NewQuery(event *models.Event) *Query {
	return &Query{event: event}
}

// EventID is the event whose attendees are listed.
func (q *Query) EventID() uuid.UUID {
	return q.event.ID
}

// With adds relation to the query plan.
func (q *Query) With(_ context.Context, relation string) error {
	if err := checkRelation(relation); err != nil {
		return err
	}
	if !slices.Contains(q.relations, relation) {
		q.relations = append(q.relations, relation)
	}
	return nil
}

// Relations returns the relations planned for loading.
func (q *Query) Relations() []string {
	return slices.Clone(q.relations)
}

// Entity is a fetched attendee whose relations are loaded in place by With.
// event must be the attendee's own event.
type Entity struct {
	Attendee *models.Attendee
	event    *models.Event
	users    UserDirectory
}

// NewEntity wraps attendee for in-place relation loading.
func NewEntity(attendee *models.Attendee, event *models.Event, users UserDirectory) *Entity {
	return &Entity{Attendee: attendee, event: event, users: users}
}

// With loads relation onto the wrapped attendee unless it is already loaded.
func (e *Entity) With(ctx context.Context, relation string) error {
	if err := checkRelation(relation); err != nil {
		return err
	}
	switch relation {
	case RelationUser:
		if e.Attendee.User != nil {
			return nil
		}
		return attachUsers(ctx, e.users, []*models.Attendee{e.Attendee})
	case RelationEvent:
		e.Attendee.Event = e.event
	}
	return nil
}

// load runs the relations planned in q over a fetched page.
func load(ctx context.Context, users UserDirectory, q *Query, list []models.Attendee) error {
	if len(list) == 0 {
		return nil
	}
	ptrs := make([]*models.Attendee, len(list))
	for i := range list {
		ptrs[i] = &list[i]
	}
	for _, relation := range q.Relations() {
		switch relation {
		case RelationUser:
			if err := attachUsers(ctx, users, ptrs); err != nil {
				return err
			}
		case RelationEvent:
			for _, a := range ptrs {
				a.Event = q.event
			}
		}
	}
	return nil
}

func attachUsers(ctx context.Context, users UserDirectory, list []*models.Attendee) error {
	ids := make([]uuid.UUID, 0, len(list))
	for _, a := range list {
		if !slices.Contains(ids, a.UserID) {
			ids = append(ids, a.UserID)
		}
	}
	byID, err := users.PublicByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	for _, a := range list {
		if u, ok := byID[a.UserID]; ok {
			a.User = &u
		}
	}
	return nil
}
