package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/engagement-backend/internal/interface/http/dto"
	"github.com/ignatzorin/engagement-backend/internal/interface/http/response"
	"github.com/ignatzorin/engagement-backend/internal/usecase/notification"
)

type NotificationHandler struct {
	listUC    *notification.ListNotificationsUseCase
	getUC     *notification.GetNotificationUseCase
	markUC    *notification.MarkReadUseCase
	markAllUC *notification.MarkAllReadUseCase
	countUC   *notification.CountUnreadUseCase
}

func NewNotificationHandler(
	listUC *notification.ListNotificationsUseCase,
	getUC *notification.GetNotificationUseCase,
	markUC *notification.MarkReadUseCase,
	markAllUC *notification.MarkAllReadUseCase,
	countUC *notification.CountUnreadUseCase,
) *NotificationHandler {
	return &NotificationHandler{listUC: listUC, getUC: getUC, markUC: markUC, markAllUC: markAllUC, countUC: countUC}
}

// ListNotifications: GET /api/notifications?unread=true&limit=&offset=
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset := page(c)
	unreadOnly := c.Query("unread") == "true"

	items, total, err := h.listUC.Execute(c.Request.Context(), user, unreadOnly, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, dto.ToNotificationResponses(items), total, limit, offset)
}

func (h *NotificationHandler) GetNotification(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "уведомления")
	if !ok {
		return
	}

	n, err := h.getUC.Execute(c.Request.Context(), user, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.ToNotificationResponse(n))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "уведомления")
	if !ok {
		return
	}

	if err := h.markUC.Execute(c.Request.Context(), user, id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	n, err := h.markAllUC.Execute(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"updated": n})
}

func (h *NotificationHandler) CountUnread(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	n, err := h.countUC.Execute(c.Request.Context(), user)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"unread": n})
}
