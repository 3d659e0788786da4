package attendees

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

	"github.com/aura-events/backend/internal/events"
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

type fakeStore struct {
	rows  []models.Attendee
	users fakeUsers
	clock time.Time
}

func (s *fakeStore) IsAttending(_ context.Context, eventID, userID uuid.UUID) (bool, error) {
	for _, a := range s.rows {
		if a.EventID == eventID && a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) List(ctx context.Context, q *Query, page pagination.Page) ([]models.Attendee, int, error) {
	list := []models.Attendee{}
	for _, a := range s.rows {
		if a.EventID == q.EventID() {
			list = append(list, a)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	total := len(list)
	start := min(page.Offset(), total)
	list = list[start:min(start+page.PerPage, total)]
	if err := load(ctx, s.users, q, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Attendee, error) {
	for _, a := range s.rows {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) Create(_ context.Context, eventID, userID uuid.UUID) (*models.Attendee, bool, error) {
	for _, a := range s.rows {
		if a.EventID == eventID && a.UserID == userID {
			cp := a
			return &cp, false, nil
		}
	}
	s.clock = s.clock.Add(time.Minute)
	a := models.Attendee{ID: uuid.New(), EventID: eventID, UserID: userID, CreatedAt: s.clock}
	s.rows = append(s.rows, a)
	return &a, true, nil
}

func (s *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	for i, a := range s.rows {
		if a.ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *fakeStore) Entity(a *models.Attendee, e *models.Event) *Entity {
	return NewEntity(a, e, s.users)
}

type fakeEvents map[uuid.UUID]*models.Event

func (f fakeEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if e, ok := f[id]; ok {
		return e, nil
	}
	return nil, events.ErrNotFound
}

type recordingNotifier struct {
	registered []uuid.UUID
}

func (n *recordingNotifier) AttendeeRegistered(_ context.Context, _ *models.Event, a *models.Attendee) {
	n.registered = append(n.registered, a.ID)
}

type env struct {
	router   *gin.Engine
	store    *fakeStore
	notifier *recordingNotifier
	owner    uuid.UUID
	guest    uuid.UUID
	stranger uuid.UUID
	event    *models.Event
	other    *models.Event
}

func setup(t *testing.T) *env {
	t.Helper()
	owner, guest, stranger := uuid.New(), uuid.New(), uuid.New()
	event := &models.Event{ID: uuid.New(), OwnerID: owner, Name: "Launch"}
	other := &models.Event{ID: uuid.New(), OwnerID: stranger, Name: "Elsewhere"}
	store := &fakeStore{
		users: fakeUsers{
			owner:    {ID: owner, Name: "Owner"},
			guest:    {ID: guest, Name: "Guest"},
			stranger: {ID: stranger, Name: "Stranger"},
		},
		clock: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	notifier := &recordingNotifier{}
	h := NewHandler(store, policy.NewAttendeePolicy(store), notifier, pagination.DefaultConfig, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id, err := uuid.Parse(c.GetHeader("X-User")); err == nil {
			c.Set(middleware.ContextUserID, id)
		}
		c.Next()
	})
	g := r.Group("/events/:event/attendees", events.Resolve(fakeEvents{event.ID: event, other.ID: other}, nil))
	g.GET("", h.Index)
	g.POST("", h.Create)
	g.GET("/:attendee", h.Show)
	g.DELETE("/:attendee", h.Destroy)
	return &env{router: r, store: store, notifier: notifier, owner: owner, guest: guest, stranger: stranger, event: event, other: other}
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

func (e *env) path(event *models.Event, rest string) string {
	return "/events/" + event.ID.String() + "/attendees" + rest
}

func (e *env) register(t *testing.T, event *models.Event, actor uuid.UUID) models.Attendee {
	t.Helper()
	w := e.do(http.MethodPost, e.path(event, ""), actor, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body oneBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data
}

type listBody struct {
	Data []models.Attendee `json:"data"`
	Meta pagination.Meta   `json:"meta"`
}

type oneBody struct {
	Data models.Attendee `json:"data"`
}

func TestIndexAccess(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodGet, e.path(e.event, ""), e.owner, nil)
	require.Equal(t, http.StatusOK, w.Code, "owner with zero attendees")
	var empty listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &empty))
	assert.Empty(t, empty.Data)
	assert.Equal(t, 0, empty.Meta.Total)

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, e.path(e.event, ""), e.guest, nil).Code)

	e.register(t, e.event, e.guest)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, e.path(e.event, ""), e.guest, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, e.path(e.event, ""), e.stranger, nil).Code)
}

func TestIndexIncludeAndOrder(t *testing.T) {
	e := setup(t)
	first := e.register(t, e.event, e.guest)
	second := e.register(t, e.event, e.stranger)

	w := e.do(http.MethodGet, e.path(e.event, "?include=user,%20comments"), e.owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, second.ID, body.Data[0].ID, "newest first")
	assert.Equal(t, first.ID, body.Data[1].ID)
	for _, a := range body.Data {
		require.NotNil(t, a.User)
		assert.Equal(t, a.UserID, a.User.ID)
		assert.Nil(t, a.Event)
	}
	assert.NotContains(t, w.Body.String(), `"email"`, "included users carry no contact details")

	w = e.do(http.MethodGet, e.path(e.event, "?per_page=1&page=2"), e.owner, nil)
	var page listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, first.ID, page.Data[0].ID)
	assert.Nil(t, page.Data[0].User)
	assert.Equal(t, pagination.Meta{CurrentPage: 2, PerPage: 1, Total: 2, LastPage: 2}, page.Meta)
}

func TestCreateSelfRegistrationOnce(t *testing.T) {
	e := setup(t)
	a := e.register(t, e.event, e.guest)
	assert.Equal(t, e.guest, a.UserID)
	assert.Equal(t, e.event.ID, a.EventID)

	w := e.do(http.MethodPost, e.path(e.event, ""), e.guest, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, e.store.rows, 1)
	assert.Equal(t, []uuid.UUID{a.ID}, e.notifier.registered)

	e.register(t, e.other, e.guest)
}

func TestCreateByOwner(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodPost, e.path(e.event, "?include=user"), e.owner, CreateRequest{UserID: &e.guest})
	require.Equal(t, http.StatusCreated, w.Code)
	var created oneBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, e.guest, created.Data.UserID)
	require.NotNil(t, created.Data.User)
	assert.Equal(t, "Guest", created.Data.User.Name)

	w = e.do(http.MethodPost, e.path(e.event, ""), e.owner, CreateRequest{UserID: &e.guest})
	require.Equal(t, http.StatusOK, w.Code, "owner duplicate returns the existing row")
	var again oneBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.Equal(t, created.Data.ID, again.Data.ID)
	assert.Len(t, e.store.rows, 1)
	assert.Len(t, e.notifier.registered, 1)

	e.register(t, e.event, e.owner)
	w = e.do(http.MethodPost, e.path(e.event, ""), e.owner, nil)
	assert.Equal(t, http.StatusOK, w.Code, "owner is never denied")
}

func TestCreateForOthersRequiresOwner(t *testing.T) {
	e := setup(t)
	w := e.do(http.MethodPost, e.path(e.event, ""), e.stranger, CreateRequest{UserID: &e.guest})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, e.store.rows)

	w = e.do(http.MethodPost, e.path(e.event, ""), e.guest, CreateRequest{UserID: &e.guest})
	assert.Equal(t, http.StatusCreated, w.Code, "naming yourself is a self-registration")
}

func TestCreateBadBody(t *testing.T) {
	e := setup(t)
	req := httptest.NewRequest(http.MethodPost, e.path(e.event, ""), bytes.NewBufferString(`{"user_id":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", e.guest.String())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShow(t *testing.T) {
	e := setup(t)
	a := e.register(t, e.event, e.guest)
	path := e.path(e.event, "/"+a.ID.String())

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, path, e.guest, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, path, e.stranger, nil).Code)

	w := e.do(http.MethodGet, path+"?include=event", e.owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body oneBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Data.Event)
	assert.Equal(t, e.event.ID, body.Data.Event.ID)
	assert.Nil(t, body.Data.User)
}

func TestShowMismatchIsNotFound(t *testing.T) {
	e := setup(t)
	a := e.register(t, e.other, e.guest)

	w := e.do(http.MethodGet, e.path(e.event, "/"+a.ID.String()), e.owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "attendee of another event")
	w = e.do(http.MethodGet, e.path(e.event, "/"+uuid.NewString()), e.owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(http.MethodGet, e.path(e.event, "/not-a-uuid"), e.owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(http.MethodDelete, e.path(e.event, "/"+a.ID.String()), e.guest, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "delete checks the event before the policy")
	assert.Len(t, e.store.rows, 1)
}

func TestDestroy(t *testing.T) {
	e := setup(t)
	a := e.register(t, e.event, e.guest)
	b := e.register(t, e.event, e.stranger)

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodDelete, e.path(e.event, "/"+a.ID.String()), e.stranger, nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, e.path(e.event, "/"+a.ID.String()), e.guest, nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, e.path(e.event, "/"+b.ID.String()), e.owner, nil).Code)
	assert.Empty(t, e.store.rows)
}

func TestQueryAndEntityAttachSameEvent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	a := e.register(t, e.event, e.guest)

	q := NewQuery(e.event)
	require.NoError(t, q.With(ctx, RelationEvent))
	require.NoError(t, q.With(ctx, RelationEvent))
	assert.Equal(t, []string{RelationEvent}, q.Relations())
	list, _, err := e.store.List(ctx, q, pagination.Page{Number: 1, PerPage: 15})
	require.NoError(t, err)
	require.Len(t, list, 1)

	ent := e.store.Entity(&a, e.event)
	require.NoError(t, ent.With(ctx, RelationEvent))
	require.NoError(t, ent.With(ctx, RelationEvent))

	assert.Same(t, list[0].Event, ent.Attendee.Event)
	assert.Nil(t, list[0].User)
	assert.Nil(t, ent.Attendee.User)

	assert.Error(t, q.With(ctx, "comments"))
	assert.Error(t, ent.With(ctx, "comments"))
}
