package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/openbook/internal/model"
)

// FriendshipServiceInterface は友達関係ハンドラーが必要とするサービスインターフェース。
type FriendshipServiceInterface interface {
	// RequestOrAdvance は相手との関係を1段階進める。
	// 関係がなければリクエストを作成し、受信済みリクエストがあれば承認する。
	RequestOrAdvance(ctx context.Context, requesterID, targetID string) (model.FriendshipResult, error)
	// Remove は友達関係または未承認リクエストを削除する。
	Remove(ctx context.Context, userID, otherID string) error
	// ListFriendIDs は成立済みの友達のID一覧を返す。
	ListFriendIDs(ctx context.Context, userID string) ([]string, error)
}

// FriendshipHandler は友達関係のHTTPハンドラー。
type FriendshipHandler struct {
	service FriendshipServiceInterface
}

// NewFriendshipHandler はFriendshipHandlerを生成する。
func NewFriendshipHandler(service FriendshipServiceInterface) *FriendshipHandler {
	return &FriendshipHandler{service: service}
}

// Add は友達リクエストの送信または受信済みリクエストの承認を処理する。
// 新規リクエストは201、承認は200を返す。
// POST /api/friendship/add/{id}
func (h *FriendshipHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	targetID := chi.URLParam(r, "id")

	result, err := h.service.RequestOrAdvance(r.Context(), userID, targetID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if result == model.FriendshipCreated {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Remove は友達関係の解消、またはリクエストの取り消し・拒否を処理する。
// どちらの操作になるかはリクエストを送った側かどうかで決まる。
// DELETE /api/friendship/remove/{id}
func (h *FriendshipHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	otherID := chi.URLParam(r, "id")

	if err := h.service.Remove(r.Context(), userID, otherID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// List は成立済みの友達のID一覧を返す。
// GET /api/friendship
func (h *FriendshipHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	ids, err := h.service.ListFriendIDs(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}
