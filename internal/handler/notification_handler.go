package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/openbook/internal/model"
)

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	List(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	// MarkRead は既読化する。他ユーザー宛の通知はNotFoundになる。
	MarkRead(ctx context.Context, userID, notificationID string) error
}

// NotificationHandler は通知のHTTPハンドラー。
type NotificationHandler struct {
	service        NotificationServiceInterface
	resultsPerPage int
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface, resultsPerPage int) *NotificationHandler {
	return &NotificationHandler{
		service:        service,
		resultsPerPage: resultsPerPage,
	}
}

// notificationResponse は通知のAPIレスポンス。
// dataは通知作成時点のスナップショットをそのまま返す。
type notificationResponse struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
	Read      bool            `json:"read"`
}

// List は自分宛の通知を新しい順で返す。
// GET /api/notification
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r, h.resultsPerPage)
	notifications, err := h.service.List(r.Context(), userID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]notificationResponse, len(notifications))
	for i, n := range notifications {
		items[i] = notificationResponse{
			ID:        n.ID,
			Type:      string(n.Type),
			Data:      n.Payload,
			CreatedAt: n.CreatedAt,
			Read:      n.Read,
		}
	}
	writeJSON(w, http.StatusOK, items)
}

// UnreadCount は自分宛の未読通知数を返す。
// GET /api/notification/unread
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// MarkRead は自分宛の通知を既読化する。
// PATCH /api/notification/read/{id}
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
