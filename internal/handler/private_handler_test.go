package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hitoshi/openbook/internal/model"
)

// --- モック定義 ---

// mockMessageFileFinder はMessageFileFinderのモック実装。
type mockMessageFileFinder struct {
	findByFileFn func(ctx context.Context, file string) (*model.Message, error)
}

func (m *mockMessageFileFinder) FindByFile(ctx context.Context, file string) (*model.Message, error) {
	if m.findByFileFn != nil {
		return m.findByFileFn(ctx, file)
	}
	return nil, nil
}

// dirFileOpener はテンポラリディレクトリから読み出すPrivateFileOpener実装。
type dirFileOpener struct {
	dir string
}

func (d *dirFileOpener) OpenPrivate(name string) (*os.File, error) {
	return os.Open(filepath.Join(d.dir, name))
}

func privateTestSetup(t *testing.T, msg *model.Message) (*PrivateFileHandler, string) {
	t.Helper()
	dir := t.TempDir()
	content := "secret-file-content"
	if err := os.WriteFile(filepath.Join(dir, "attach.png"), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	finder := &mockMessageFileFinder{
		findByFileFn: func(ctx context.Context, file string) (*model.Message, error) {
			if file == "attach.png" {
				return msg, nil
			}
			return nil, nil
		},
	}
	return NewPrivateFileHandler(finder, &dirFileOpener{dir: dir}), content
}

// --- GET /api/private/{file} テスト ---

func TestPrivateFileHandler_Serve_SenderCanAccess(t *testing.T) {
	msg := &model.Message{ID: "msg-1", SenderID: "user-1", RecipientID: "user-2", File: "attach.png"}
	h, content := privateTestSetup(t, msg)

	req := httptest.NewRequest(http.MethodGet, "/api/private/attach.png", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "file", "attach.png")
	w := httptest.NewRecorder()

	h.Serve(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != content {
		t.Errorf("body = %q, want %q", got, content)
	}
}

func TestPrivateFileHandler_Serve_RecipientCanAccess(t *testing.T) {
	msg := &model.Message{ID: "msg-1", SenderID: "user-1", RecipientID: "user-2", File: "attach.png"}
	h, _ := privateTestSetup(t, msg)

	req := httptest.NewRequest(http.MethodGet, "/api/private/attach.png", nil)
	req = withUserID(req, "user-2")
	req = withChiURLParam(req, "file", "attach.png")
	w := httptest.NewRecorder()

	h.Serve(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestPrivateFileHandler_Serve_ThirdPartyGets404(t *testing.T) {
	msg := &model.Message{ID: "msg-1", SenderID: "user-1", RecipientID: "user-2", File: "attach.png"}
	h, _ := privateTestSetup(t, msg)

	req := httptest.NewRequest(http.MethodGet, "/api/private/attach.png", nil)
	req = withUserID(req, "user-3")
	req = withChiURLParam(req, "file", "attach.png")
	w := httptest.NewRecorder()

	h.Serve(w, req)

	// 当事者以外には存在の有無を漏らさず404を返す。
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestPrivateFileHandler_Serve_UnknownFileGets404(t *testing.T) {
	msg := &model.Message{ID: "msg-1", SenderID: "user-1", RecipientID: "user-2", File: "attach.png"}
	h, _ := privateTestSetup(t, msg)

	req := httptest.NewRequest(http.MethodGet, "/api/private/missing.png", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "file", "missing.png")
	w := httptest.NewRecorder()

	h.Serve(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestPrivateFileHandler_Serve_Unauthenticated(t *testing.T) {
	h := NewPrivateFileHandler(&mockMessageFileFinder{}, &dirFileOpener{dir: t.TempDir()})

	req := httptest.NewRequest(http.MethodGet, "/api/private/attach.png", nil)
	req = withChiURLParam(req, "file", "attach.png")
	w := httptest.NewRecorder()

	h.Serve(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
