package handler

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/openbook/internal/model"
)

// MessageFileFinder は添付ファイル名からメッセージを逆引きするインターフェース。
type MessageFileFinder interface {
	FindByFile(ctx context.Context, file string) (*model.Message, error)
}

// PrivateFileOpener はプライベートファイルの読み出しインターフェース。
type PrivateFileOpener interface {
	OpenPrivate(name string) (*os.File, error)
}

// PrivateFileHandler はメッセージ添付ファイルの配信ハンドラー。
// ファイルはそのメッセージの送信者か受信者にのみ配信され、
// それ以外には存在の有無を漏らさず404を返す。
type PrivateFileHandler struct {
	messages MessageFileFinder
	store    PrivateFileOpener
}

// NewPrivateFileHandler はPrivateFileHandlerを生成する。
func NewPrivateFileHandler(messages MessageFileFinder, store PrivateFileOpener) *PrivateFileHandler {
	return &PrivateFileHandler{
		messages: messages,
		store:    store,
	}
}

// Serve は添付ファイルを配信する。
// GET /api/private/{file}
func (h *PrivateFileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	fileName := chi.URLParam(r, "file")

	msg, err := h.messages.FindByFile(r.Context(), fileName)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if msg == nil || (msg.SenderID != userID && msg.RecipientID != userID) {
		http.NotFound(w, r)
		return
	}

	f, err := h.store.OpenPrivate(fileName)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, fileName, info.ModTime(), io.ReadSeeker(f))
}
