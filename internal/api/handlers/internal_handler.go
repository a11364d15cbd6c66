package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Kareem-3del/auction-platform-sub003/internal/domain"
	"github.com/Kareem-3del/auction-platform-sub003/internal/services"
	"github.com/Kareem-3del/auction-platform-sub003/pkg/logger"

	"github.com/labstack/echo/v4"
)

// InternalHandler exposes the trusted submission endpoints. These are reached
// only by the transactional system over the internal listener, never by
// browsers, so no per-request credential check happens here.
type InternalHandler struct {
	relay *services.EventRelay
	stats StatsProvider
	log   logger.Logger
}

type StatsProvider interface {
	Stats() domain.RegistryStats
}

type SubmitEventRequest struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type NotifyUserRequest struct {
	UserID       string          `json:"userId"`
	Notification json.RawMessage `json:"notification"`
}

func NewInternalHandler(relay *services.EventRelay, stats StatsProvider, log logger.Logger) *InternalHandler {
	return &InternalHandler{
		relay: relay,
		stats: stats,
		log:   log,
	}
}

func (h *InternalHandler) Register(e *echo.Echo) {
	internal := e.Group("/internal")
	internal.POST("/events", h.SubmitEvent)
	internal.POST("/notify", h.NotifyUser)
	internal.GET("/status", h.Status)
}

// SubmitEvent accepts a committed bid or status event and answers the
// broadcast outcome synchronously. The caller's transaction is already final;
// a failure here is logged by the caller, never rolled back.
func (h *InternalHandler) SubmitEvent(c echo.Context) error {
	var req SubmitEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	err := h.relay.SubmitEvent(c.Request().Context(), req.Action, req.Data)
	if err != nil {
		if errors.Is(err, services.ErrMissingFields) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   "action and data are required",
			})
		}
		h.log.Error("Failed to relay event", "action", req.Action, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Failed to broadcast event",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Event broadcast",
	})
}

func (h *InternalHandler) NotifyUser(c echo.Context) error {
	var req NotifyUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	err := h.relay.NotifyUser(c.Request().Context(), req.UserID, req.Notification)
	if err != nil {
		if errors.Is(err, services.ErrMissingFields) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   "userId and notification are required",
			})
		}
		h.log.Error("Failed to notify user", "user_id", req.UserID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Failed to deliver notification",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Notification delivered",
	})
}

// Status is the read-only monitoring endpoint.
func (h *InternalHandler) Status(c echo.Context) error {
	stats := h.stats.Stats()

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":             "ok",
		"connections":        stats.Connections,
		"userConnections":    stats.Users,
		"productConnections": stats.Rooms,
	})
}
