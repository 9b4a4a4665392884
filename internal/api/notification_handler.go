package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"qrintake/internal/database"
)

// NotificationInbox lists and acknowledges owner notifications.
type NotificationInbox interface {
	List(ctx context.Context, ownerID uint, status string, limit int) ([]database.Notification, error)
	MarkRead(ctx context.Context, id, ownerID uint) error
}

type NotificationHandler struct {
	inbox NotificationInbox
}

func NewNotificationHandler(inbox NotificationInbox) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		limit = 50
	}

	items, err := h.inbox.List(c.Request.Context(), userID, c.Query("status"), limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		BadRequest(c, "invalid notification id")
		return
	}

	if err := h.inbox.MarkRead(c.Request.Context(), id, userID); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
