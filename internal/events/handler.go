package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/include"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/policy"
	"github.com/aura-events/backend/pkg/pagination"
	"github.com/aura-events/backend/pkg/response"
)

// Store is the event storage the handler needs.
type Store interface {
	Getter
	List(ctx context.Context, q *Query, page pagination.Page) ([]models.Event, int, error)
	Create(ctx context.Context, e *models.Event) error
	Update(ctx context.Context, e *models.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
	Entity(event *models.Event) *Entity
}

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Name        string    `json:"name" binding:"required,max=255"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required,gtfield=StartTime"`
}

// UpdateRequest is the body for PUT /events/:event. Absent fields keep their value.
type UpdateRequest struct {
	Name        *string    `json:"name" binding:"omitempty,max=255"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	store     Store
	policy    policy.Events
	attendees policy.Attendees
	pages     pagination.Config
	logger    *zap.Logger
}

// NewHandler creates an event handler. attendees decides who may see the
// attendee list when "attendees" is included.
func NewHandler(store Store, p policy.Events, attendees policy.Attendees, pages pagination.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, policy: p, attendees: attendees, pages: pages, logger: logger}
}

// List handles GET /events.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	q, err := include.Load(ctx, NewQuery(), Relations, include.Parse(c.Query("include")))
	if err != nil {
		h.logger.Error("plan event query failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	page := pagination.Parse(c.Query("page"), c.Query("per_page"), h.pages)
	list, total, err := h.store.List(ctx, q, page)
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	ptrs := make([]*models.Event, len(list))
	for i := range list {
		ptrs[i] = &list[i]
	}
	if err := h.hideAttendees(ctx, middleware.CurrentUserID(c), ptrs); err != nil {
		h.logger.Error("authorize attendee lists failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.Paginated(c, list, pagination.NewMeta(page, total))
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		response.BadRequest(c, "name must not be empty")
		return
	}
	e := &models.Event{
		OwnerID:     middleware.CurrentUserID(c),
		Name:        name,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
	if err := h.store.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event failed", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	h.respond(c, e, response.Created)
}

// Show handles GET /events/:event.
func (h *Handler) Show(c *gin.Context) {
	h.respond(c, FromContext(c), response.OK)
}

// Update handles PUT /events/:event (owner only).
func (h *Handler) Update(c *gin.Context) {
	e := FromContext(c)
	if !h.policy.CanUpdate(middleware.CurrentUserID(c), e) {
		response.Forbidden(c, "only the owner can update this event")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	updated := *e
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.StartTime != nil {
		updated.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		updated.EndTime = *req.EndTime
	}
	if updated.Name == "" {
		response.BadRequest(c, "name must not be empty")
		return
	}
	if !updated.EndTime.After(updated.StartTime) {
		response.BadRequest(c, "end_time must be after start_time")
		return
	}
	if err := h.store.Update(c.Request.Context(), &updated); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("update event failed", zap.Error(err), zap.String("event_id", e.ID.String()))
		response.Internal(c, "failed to update event")
		return
	}
	h.respond(c, &updated, response.OK)
}

// Delete handles DELETE /events/:event (owner only).
func (h *Handler) Delete(c *gin.Context) {
	e := FromContext(c)
	if !h.policy.CanDelete(middleware.CurrentUserID(c), e) {
		response.Forbidden(c, "only the owner can delete this event")
		return
	}
	if err := h.store.Delete(c.Request.Context(), e.ID); err != nil && !errors.Is(err, ErrNotFound) {
		h.logger.Error("delete event failed", zap.Error(err), zap.String("event_id", e.ID.String()))
		response.Internal(c, "failed to delete event")
		return
	}
	response.NoContent(c)
}

func (h *Handler) respond(c *gin.Context, e *models.Event, send func(*gin.Context, interface{})) {
	ctx := c.Request.Context()
	entity, err := include.Load(ctx, h.store.Entity(e), Relations, include.Parse(c.Query("include")))
	if err == nil {
		err = h.hideAttendees(ctx, middleware.CurrentUserID(c), []*models.Event{entity.Event})
	}
	if err != nil {
		h.logger.Error("load event relations failed", zap.Error(err), zap.String("event_id", e.ID.String()))
		response.Internal(c, "failed to load event")
		return
	}
	send(c, entity.Event)
}

// hideAttendees clears loaded attendee lists of events whose attendee list
// actor may not view.
func (h *Handler) hideAttendees(ctx context.Context, actor uuid.UUID, list []*models.Event) error {
	for _, e := range list {
		if len(e.Attendees) == 0 {
			continue
		}
		ok, err := h.attendees.CanViewAny(ctx, actor, e)
		if err != nil {
			return err
		}
		if !ok {
			e.Attendees = nil
		}
	}
	return nil
}
