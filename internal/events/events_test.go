package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/policy"
	"github.com/aura-events/backend/pkg/pagination"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers map[uuid.UUID]models.UserPublic

func (f fakeUsers) PublicByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserPublic, error) {
	out := map[uuid.UUID]models.UserPublic{}
	for _, id := range ids {
		if u, ok := f[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type fakeAttendees struct {
	rows  []models.Attendee
	calls int
}

func (f *fakeAttendees) ByEvents(_ context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.Attendee, error) {
	f.calls++
	out := map[uuid.UUID][]models.Attendee{}
	for _, a := range f.rows {
		for _, id := range ids {
			if a.EventID == id {
				out[id] = append(out[id], a)
			}
		}
	}
	return out, nil
}

func (f *fakeAttendees) IsAttending(_ context.Context, eventID, userID uuid.UUID) (bool, error) {
	for _, a := range f.rows {
		if a.EventID == eventID && a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

type fakeStore struct {
	events  map[uuid.UUID]*models.Event
	loaders Loaders
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *fakeStore) List(ctx context.Context, q *Query, page pagination.Page) ([]models.Event, int, error) {
	list := []models.Event{}
	for _, e := range s.events {
		list = append(list, *e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartTime.After(list[j].StartTime) })
	total := len(list)
	start := min(page.Offset(), total)
	end := min(start+page.PerPage, total)
	list = list[start:end]
	if err := s.loaders.load(ctx, q, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *fakeStore) Create(_ context.Context, e *models.Event) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *fakeStore) Update(_ context.Context, e *models.Event) error {
	if _, ok := s.events[e.ID]; !ok {
		return ErrNotFound
	}
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.events, id)
	return nil
}

func (s *fakeStore) Entity(e *models.Event) *Entity {
	return NewEntity(e, s.loaders)
}

type env struct {
	router    *gin.Engine
	store     *fakeStore
	attendees *fakeAttendees
	owner     models.UserPublic
	guest     uuid.UUID
	event     *models.Event
}

func setup(t *testing.T) *env {
	t.Helper()
	owner := models.UserPublic{ID: uuid.New(), Name: "Owner"}
	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	event := &models.Event{ID: uuid.New(), OwnerID: owner.ID, Name: "Launch", StartTime: start, EndTime: start.Add(time.Hour)}
	guest := uuid.New()
	att := &fakeAttendees{rows: []models.Attendee{{ID: uuid.New(), EventID: event.ID, UserID: guest}}}
	store := &fakeStore{
		events:  map[uuid.UUID]*models.Event{event.ID: event},
		loaders: Loaders{Users: fakeUsers{owner.ID: owner}, Attendees: att},
	}
	h := NewHandler(store, policy.NewEventPolicy(), policy.NewAttendeePolicy(att), pagination.DefaultConfig, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id, err := uuid.Parse(c.GetHeader("X-User")); err == nil {
			c.Set(middleware.ContextUserID, id)
		}
		c.Next()
	})
	r.GET("/events", h.List)
	r.POST("/events", h.Create)
	one := r.Group("/events/:event", Resolve(store, nil))
	one.GET("", h.Show)
	one.PUT("", h.Update)
	one.DELETE("", h.Delete)
	return &env{router: r, store: store, attendees: att, owner: owner, guest: guest, event: event}
}

func (e *env) do(method, path string, actor uuid.UUID, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", actor.String())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type listBody struct {
	Data []models.Event `json:"data"`
	Meta pagination.Meta `json:"meta"`
}

type oneBody struct {
	Data models.Event `json:"data"`
}

func TestListIncludesOnlyRequestedRelations(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodGet, "/events", e.owner.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var plain listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plain))
	require.Len(t, plain.Data, 1)
	assert.Nil(t, plain.Data[0].User)
	assert.Empty(t, plain.Data[0].Attendees)
	assert.Equal(t, pagination.Meta{CurrentPage: 1, PerPage: 15, Total: 1, LastPage: 1}, plain.Meta)

	w = e.do(http.MethodGet, "/events?include=user,%20comments", e.owner.ID, nil)
	var withUser listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &withUser))
	require.NotNil(t, withUser.Data[0].User)
	assert.Equal(t, e.owner.ID, withUser.Data[0].User.ID)
	assert.Empty(t, withUser.Data[0].Attendees)
	assert.Zero(t, e.attendees.calls)

	w = e.do(http.MethodGet, "/events?include=attendees", e.owner.ID, nil)
	var withAttendees listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &withAttendees))
	assert.Len(t, withAttendees.Data[0].Attendees, 1)
	assert.Nil(t, withAttendees.Data[0].User)
}

func TestShowEntityShapeMatchesQueryShape(t *testing.T) {
	e := setup(t)
	w := e.do(http.MethodGet, "/events/"+e.event.ID.String()+"?include=user,attendees", e.owner.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var one oneBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	require.NotNil(t, one.Data.User)
	assert.Len(t, one.Data.Attendees, 1)

	w = e.do(http.MethodGet, "/events?include=user,attendees", e.owner.ID, nil)
	var list listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, one.Data.User, list.Data[0].User)
	assert.Equal(t, one.Data.Attendees, list.Data[0].Attendees)
}

func TestIncludedAttendeesFollowListPolicy(t *testing.T) {
	e := setup(t)
	cases := []struct {
		name    string
		actor   uuid.UUID
		visible bool
	}{
		{"owner", e.owner.ID, true},
		{"attendee", e.guest, true},
		{"stranger", uuid.New(), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(http.MethodGet, "/events/"+e.event.ID.String()+"?include=user,attendees", tc.actor, nil)
			require.Equal(t, http.StatusOK, w.Code)
			var one oneBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
			assert.NotNil(t, one.Data.User, "owner relation is public")

			w = e.do(http.MethodGet, "/events?include=attendees", tc.actor, nil)
			require.Equal(t, http.StatusOK, w.Code)
			var list listBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
			require.Len(t, list.Data, 1)

			if tc.visible {
				assert.Len(t, one.Data.Attendees, 1)
				assert.Len(t, list.Data[0].Attendees, 1)
			} else {
				assert.Empty(t, one.Data.Attendees)
				assert.Empty(t, list.Data[0].Attendees)
				assert.NotContains(t, w.Body.String(), e.guest.String())
			}
		})
	}
}

func TestEntityWithIsIdempotent(t *testing.T) {
	e := setup(t)
	ent := e.store.Entity(e.event)
	for i := 0; i < 2; i++ {
		require.NoError(t, ent.With(context.Background(), RelationAttendees))
	}
	assert.Equal(t, 1, e.attendees.calls)
	assert.Len(t, ent.Event.Attendees, 1)

	assert.Error(t, ent.With(context.Background(), "comments"))
}

func TestQueryWithIsIdempotent(t *testing.T) {
	q := NewQuery()
	require.NoError(t, q.With(context.Background(), RelationUser))
	require.NoError(t, q.With(context.Background(), RelationUser))
	assert.Equal(t, []string{RelationUser}, q.Relations())
	assert.Error(t, q.With(context.Background(), "comments"))
}

func TestResolveErrors(t *testing.T) {
	e := setup(t)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/events/not-a-uuid", e.owner.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/events/"+uuid.NewString(), e.owner.ID, nil).Code)
}

func TestCreate(t *testing.T) {
	e := setup(t)
	start := time.Date(2031, 5, 1, 9, 0, 0, 0, time.UTC)
	w := e.do(http.MethodPost, "/events", e.owner.ID, CreateRequest{Name: " Meetup ", StartTime: start, EndTime: start.Add(2 * time.Hour)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var one oneBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	assert.Equal(t, "Meetup", one.Data.Name)
	assert.Equal(t, e.owner.ID, one.Data.OwnerID)

	w = e.do(http.MethodPost, "/events", e.owner.ID, CreateRequest{Name: "Backwards", StartTime: start, EndTime: start.Add(-time.Hour)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	before := len(e.store.events)
	w = e.do(http.MethodPost, "/events", e.owner.ID, CreateRequest{Name: "   ", StartTime: start, EndTime: start.Add(time.Hour)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, e.store.events, before, "blank name is not stored")
}

func TestUpdateAndDeleteOwnerOnly(t *testing.T) {
	e := setup(t)
	path := "/events/" + e.event.ID.String()
	name := "Renamed"

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPut, path, uuid.New(), UpdateRequest{Name: &name}).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodDelete, path, uuid.New(), nil).Code)

	w := e.do(http.MethodPut, path, e.owner.ID, UpdateRequest{Name: &name})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Renamed", e.store.events[e.event.ID].Name)

	early := e.event.StartTime.Add(-time.Hour)
	w = e.do(http.MethodPut, path, e.owner.ID, UpdateRequest{EndTime: &early})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, path, e.owner.ID, nil).Code)
	assert.Empty(t, e.store.events)
}
