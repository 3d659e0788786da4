package attendees

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/events"
	"github.com/aura-events/backend/internal/include"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/policy"
	"github.com/aura-events/backend/pkg/database"
	"github.com/aura-events/backend/pkg/pagination"
	"github.com/aura-events/backend/pkg/response"
)

// ParamAttendee is the path parameter holding the attendee ID.
const ParamAttendee = "attendee"

// Store is the attendee storage the handler needs.
type Store interface {
	List(ctx context.Context, q *Query, page pagination.Page) ([]models.Attendee, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Attendee, error)
	Create(ctx context.Context, eventID, userID uuid.UUID) (*models.Attendee, bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Entity(attendee *models.Attendee, event *models.Event) *Entity
}

// Notifier is told about new registrations.
type Notifier interface {
	AttendeeRegistered(ctx context.Context, event *models.Event, attendee *models.Attendee)
}

// CreateRequest is the optional body for POST /events/:event/attendees.
// Only the event owner may name a user other than themselves.
type CreateRequest struct {
	UserID *uuid.UUID `json:"user_id"`
}

// Handler handles attendee HTTP endpoints. Routes must run behind events.Resolve.
type Handler struct {
	store    Store
	policy   policy.Attendees
	notifier Notifier
	pages    pagination.Config
	logger   *zap.Logger
}

// NewHandler creates an attendee handler. notifier may be nil.
func NewHandler(store Store, p policy.Attendees, notifier Notifier, pages pagination.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, policy: p, notifier: notifier, pages: pages, logger: logger}
}

// Index handles GET /events/:event/attendees.
func (h *Handler) Index(c *gin.Context) {
	ctx := c.Request.Context()
	event := events.FromContext(c)

	allowed, err := h.policy.CanViewAny(ctx, middleware.CurrentUserID(c), event)
	if err != nil {
		h.fail(c, "authorize attendee list failed", err, event.ID)
		return
	}
	if !allowed {
		response.Forbidden(c, "only the organizer and attendees can see the attendee list")
		return
	}

	q, err := include.Load(ctx, NewQuery(event), Relations, include.Parse(c.Query("include")))
	if err != nil {
		h.fail(c, "plan attendee query failed", err, event.ID)
		return
	}
	page := pagination.Parse(c.Query("page"), c.Query("per_page"), h.pages)
	list, total, err := h.store.List(ctx, q, page)
	if err != nil {
		h.fail(c, "list attendees failed", err, event.ID)
		return
	}
	response.Paginated(c, list, pagination.NewMeta(page, total))
}

// Create handles POST /events/:event/attendees.
func (h *Handler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	event := events.FromContext(c)
	actor := middleware.CurrentUserID(c)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := actor
	if req.UserID != nil && *req.UserID != actor {
		if !event.OwnedBy(actor) {
			response.Forbidden(c, "only the organizer can register other users")
			return
		}
		userID = *req.UserID
	}

	allowed, err := h.policy.CanCreate(ctx, actor, event)
	if err != nil {
		h.fail(c, "authorize attendee create failed", err, event.ID)
		return
	}
	if !allowed {
		response.Forbidden(c, "already registered for this event")
		return
	}

	attendee, created, err := h.store.Create(ctx, event.ID, userID)
	if database.IsForeignKeyViolation(err) {
		response.NotFound(c, "user not found")
		return
	}
	if err != nil {
		h.fail(c, "create attendee failed", err, event.ID)
		return
	}
	if !created {
		h.respond(c, attendee, event, response.OK)
		return
	}
	h.logger.Info("attendee registered",
		zap.String("event_id", event.ID.String()),
		zap.String("attendee_id", attendee.ID.String()),
		zap.String("user_id", userID.String()))
	if h.notifier != nil {
		h.notifier.AttendeeRegistered(ctx, event, attendee)
	}
	h.respond(c, attendee, event, response.Created)
}

// Show handles GET /events/:event/attendees/:attendee.
func (h *Handler) Show(c *gin.Context) {
	event := events.FromContext(c)
	attendee, ok := h.lookup(c, event)
	if !ok {
		return
	}
	if !h.policy.CanView(middleware.CurrentUserID(c), event, attendee) {
		response.Forbidden(c, "not allowed to view this attendee")
		return
	}
	h.respond(c, attendee, event, response.OK)
}

// Destroy handles DELETE /events/:event/attendees/:attendee.
func (h *Handler) Destroy(c *gin.Context) {
	event := events.FromContext(c)
	attendee, ok := h.lookup(c, event)
	if !ok {
		return
	}
	if !h.policy.CanDelete(middleware.CurrentUserID(c), event, attendee) {
		response.Forbidden(c, "not allowed to delete this attendee")
		return
	}
	if err := h.store.Delete(c.Request.Context(), attendee.ID); err != nil && !errors.Is(err, ErrNotFound) {
		h.fail(c, "delete attendee failed", err, event.ID)
		return
	}
	response.NoContent(c)
}

// lookup loads the :attendee of event. An attendee of another event is
// reported exactly like a missing one.
func (h *Handler) lookup(c *gin.Context, event *models.Event) (*models.Attendee, bool) {
	id, err := uuid.Parse(c.Param(ParamAttendee))
	if err != nil {
		response.BadRequest(c, "invalid attendee id")
		return nil, false
	}
	attendee, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) || (err == nil && attendee.EventID != event.ID) {
		response.NotFound(c, "attendee not found")
		return nil, false
	}
	if err != nil {
		h.fail(c, "load attendee failed", err, event.ID)
		return nil, false
	}
	return attendee, true
}

func (h *Handler) respond(c *gin.Context, attendee *models.Attendee, event *models.Event, send func(*gin.Context, interface{})) {
	entity, err := include.Load(c.Request.Context(), h.store.Entity(attendee, event), Relations, include.Parse(c.Query("include")))
	if err != nil {
		h.fail(c, "load attendee relations failed", err, event.ID)
		return
	}
	send(c, entity.Attendee)
}

func (h *Handler) fail(c *gin.Context, msg string, err error, eventID uuid.UUID) {
	h.logger.Error(msg, zap.Error(err), zap.String("event_id", eventID.String()))
	response.Internal(c, "internal error")
}
