package events

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/aura-events/backend/internal/include"
	"github.com/aura-events/backend/internal/models"
)

// Relation names an event response may include.
const (
	RelationUser      = "user"
	RelationAttendees = "attendees"
)

// Relations is the include whitelist for event endpoints.
var Relations = []string{RelationUser, RelationAttendees}

// UserDirectory resolves public user profiles.
type UserDirectory interface {
	PublicByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserPublic, error)
}

// AttendeeLister returns the attendees of several events at once.
type AttendeeLister interface {
	ByEvents(ctx context.Context, eventIDs []uuid.UUID) (map[uuid.UUID][]models.Attendee, error)
}

// Loaders bundles what is needed to eager-load event relations.
type Loaders struct {
	Users     UserDirectory
	Attendees AttendeeLister
}

func checkRelation(relation string) error {
	switch relation {
	case RelationUser, RelationAttendees:
		return nil
	}
	return include.Unknown(relation)
}

// Query is an event listing that has not run yet. With adds a relation to
// load once the rows are fetched.
type Query struct {
	relations []string
}

// NewQuery returns an empty event listing.
func NewQuery() *Query {
	return &Query{}
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

// Entity is a fetched event whose relations are loaded in place by With.
type Entity struct {
	Event   *models.Event
	loaders Loaders
	loaded  map[string]bool
}

// NewEntity wraps event for in-place relation loading.
func NewEntity(event *models.Event, loaders Loaders) *Entity {
	return &Entity{Event: event, loaders: loaders, loaded: map[string]bool{}}
}

// With loads relation onto the wrapped event unless it is already loaded.
func (e *Entity) With(ctx context.Context, relation string) error {
	if err := checkRelation(relation); err != nil {
		return err
	}
	if e.loaded[relation] {
		return nil
	}
	if err := e.loaders.attach(ctx, relation, []*models.Event{e.Event}); err != nil {
		return err
	}
	e.loaded[relation] = true
	return nil
}

// load runs the relations planned in q over a fetched page.
func (l Loaders) load(ctx context.Context, q *Query, list []models.Event) error {
	ptrs := make([]*models.Event, len(list))
	for i := range list {
		ptrs[i] = &list[i]
	}
	for _, relation := range q.Relations() {
		if err := l.attach(ctx, relation, ptrs); err != nil {
			return err
		}
	}
	return nil
}

func (l Loaders) attach(ctx context.Context, relation string, list []*models.Event) error {
	if len(list) == 0 {
		return nil
	}
	switch relation {
	case RelationUser:
		return l.attachOwners(ctx, list)
	case RelationAttendees:
		return l.attachAttendees(ctx, list)
	}
	return include.Unknown(relation)
}

func (l Loaders) attachOwners(ctx context.Context, list []*models.Event) error {
	ids := make([]uuid.UUID, 0, len(list))
	for _, e := range list {
		if !slices.Contains(ids, e.OwnerID) {
			ids = append(ids, e.OwnerID)
		}
	}
	users, err := l.Users.PublicByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load owners: %w", err)
	}
	for _, e := range list {
		if u, ok := users[e.OwnerID]; ok {
			e.User = &u
		}
	}
	return nil
}

func (l Loaders) attachAttendees(ctx context.Context, list []*models.Event) error {
	ids := make([]uuid.UUID, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.ID)
	}
	byEvent, err := l.Attendees.ByEvents(ctx, ids)
	if err != nil {
		return fmt.Errorf("load attendees: %w", err)
	}
	for _, e := range list {
		e.Attendees = byEvent[e.ID]
	}
	return nil
}
