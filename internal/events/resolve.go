package events

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/response"
)

// ContextEvent is the gin context key for the event named in the path.
const ContextEvent = "event"

// ParamEvent is the path parameter holding the event ID.
const ParamEvent = "event"

// Getter loads a single event.
type Getter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Resolve loads the event named by the :event path parameter and stores it in
// the context. Responds 400 for a malformed ID and 404 for an unknown event.
func Resolve(getter Getter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param(ParamEvent))
		if err != nil {
			response.BadRequest(c, "invalid event id")
			c.Abort()
			return
		}
		event, err := getter.GetByID(c.Request.Context(), id)
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			c.Abort()
			return
		}
		if err != nil {
			logger.Error("load event failed", zap.Error(err), zap.String("event_id", id.String()))
			response.Internal(c, "failed to load event")
			c.Abort()
			return
		}
		c.Set(ContextEvent, event)
		c.Next()
	}
}

// FromContext returns the event stored by Resolve.
func FromContext(c *gin.Context) *models.Event {
	return c.MustGet(ContextEvent).(*models.Event)
}
