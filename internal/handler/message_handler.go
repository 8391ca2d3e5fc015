package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/openbook/internal/model"
)

// privateFilePrefix はメッセージ添付ファイルのURLパスのプレフィックス。
const privateFilePrefix = "/api/private/"

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	// Send は友達である相手へメッセージを送る。友達でなければNOT_FRIENDSを返す。
	Send(ctx context.Context, senderID, recipientID, content, file string) (*model.Message, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	// ThreadWith は相手とのスレッドを取得し、相手からの未読を既読化する。
	ThreadWith(ctx context.Context, userID, peerID string, limit, offset int) ([]*model.Message, error)
	ChatSummaries(ctx context.Context, userID string) ([]*model.ChatSummary, error)
}

// MessageHandler はダイレクトメッセージのHTTPハンドラー。
type MessageHandler struct {
	service        MessageServiceInterface
	store          FileSaver
	resultsPerPage int
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(service MessageServiceInterface, store FileSaver, resultsPerPage int) *MessageHandler {
	return &MessageHandler{
		service:        service,
		store:          store,
		resultsPerPage: resultsPerPage,
	}
}

// messageResponse はメッセージのAPIレスポンス。
type messageResponse struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Content     string    `json:"content"`
	File        string    `json:"file,omitempty"`
	SentAt      time.Time `json:"sentAt"`
	Read        bool      `json:"read"`
}

// chatResponse は会話一覧の1行のAPIレスポンス。
type chatResponse struct {
	FriendID     string    `json:"friendId"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	ProfileImage string    `json:"profileImage"`
	LastActive   time.Time `json:"lastActive"`
	SentAt       time.Time `json:"sentAt"`
	Content      string    `json:"content"`
	Attention    bool      `json:"attention"`
}

// toMessageResponse はメッセージをAPIレスポンスに変換する。
// 添付ファイルは当事者チェック付きのプライベートURLで返す。
func toMessageResponse(m *model.Message) messageResponse {
	resp := messageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		SentAt:      m.SentAt,
		Read:        m.Read,
	}
	if m.File != "" {
		resp.File = privateFilePrefix + m.File
	}
	return resp
}

// sendRequest はメッセージ送信リクエストのボディ。
type sendRequest struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

// Send はメッセージを送信する。
// マルチパートの場合は添付ファイル（フィールドfile）をプライベート
// ディレクトリへ保存する。
// POST /api/message
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := parseUploadForm(r); err != nil {
		writeInvalidBody(w)
		return
	}

	var req sendRequest
	var file string

	if r.MultipartForm != nil {
		req.RecipientID = r.FormValue("recipientId")
		req.Content = r.FormValue("content")

		var err error
		if file, err = savePrivateUpload(r, "file", h.store); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("添付ファイルを保存できませんでした"))
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	if req.RecipientID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("送信先が指定されていません"))
		return
	}

	msg, err := h.service.Send(r.Context(), userID, req.RecipientID, req.Content, file)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

// Chats は会話相手ごとの最新メッセージの一覧を新しい順で返す。
// GET /api/message/chats
func (h *MessageHandler) Chats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	chats, err := h.service.ChatSummaries(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]chatResponse, len(chats))
	for i, c := range chats {
		items[i] = chatResponse{
			FriendID:     c.FriendID,
			FirstName:    c.FirstName,
			LastName:     c.LastName,
			ProfileImage: publicFileURL(c.ProfileImage),
			LastActive:   c.LastActive,
			SentAt:       c.SentAt,
			Content:      c.Content,
			Attention:    c.Attention,
		}
	}
	writeJSON(w, http.StatusOK, items)
}

// UnreadCount は未読メッセージ数を返す。
// GET /api/message/unread
func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
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

// Thread は相手との会話スレッドを新しい順で返す。
// 取得と同時に相手からの未読メッセージが既読化される。
// GET /api/message/{id}
func (h *MessageHandler) Thread(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r, h.resultsPerPage)
	messages, err := h.service.ThreadWith(r.Context(), userID, chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]messageResponse, len(messages))
	for i, m := range messages {
		items[i] = toMessageResponse(m)
	}
	writeJSON(w, http.StatusOK, items)
}
