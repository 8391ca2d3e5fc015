package user

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/openbook/internal/model"
)

// --- モック ---

type mockSSRFValidator struct {
	validateErr error
}

func (m *mockSSRFValidator) ValidateURL(rawURL string) error { return m.validateErr }
func (m *mockSSRFValidator) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

type memorySaver struct {
	saved   map[string][]byte
	saveErr error
}

func (m *memorySaver) SavePublic(name string, r io.Reader) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.saved == nil {
		m.saved = map[string][]byte{}
	}
	data, _ := io.ReadAll(r)
	m.saved[name] = data
	return nil
}

func assertInvalidImageURL(t *testing.T, err error) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidImageURL {
		t.Fatalf("err = %v, want INVALID_IMAGE_URL", err)
	}
}

func TestImport_SavesImageWithExtension(t *testing.T) {
	payload := []byte("png-image-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "Openbook/1.0" {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer server.Close()

	store := &memorySaver{}
	fetcher := NewAvatarFetcher(&mockSSRFValidator{}, store, 5*time.Second, 1<<20)

	name, err := fetcher.Import(context.Background(), server.URL+"/me.png")
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if !strings.HasSuffix(name, ".png") {
		t.Errorf("name = %q, want .png suffix", name)
	}
	if !bytes.Equal(store.saved[name], payload) {
		t.Errorf("saved bytes differ")
	}
}

// Content-Typeのパラメータ部は無視される
func TestImport_ContentTypeWithCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/JPEG; charset=utf-8")
		w.Write([]byte("jpeg"))
	}))
	defer server.Close()

	fetcher := NewAvatarFetcher(&mockSSRFValidator{}, &memorySaver{}, 5*time.Second, 1<<20)

	name, err := fetcher.Import(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if !strings.HasSuffix(name, ".jpg") {
		t.Errorf("name = %q, want .jpg suffix", name)
	}
}

func TestImport_BlockedURL_Rejected(t *testing.T) {
	fetcher := NewAvatarFetcher(&mockSSRFValidator{validateErr: errors.New("private IP")}, &memorySaver{}, 5*time.Second, 1<<20)

	_, err := fetcher.Import(context.Background(), "http://169.254.169.254/latest/meta-data")
	assertInvalidImageURL(t, err)
}

func TestImport_NonImageContentType_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not an image</html>"))
	}))
	defer server.Close()

	fetcher := NewAvatarFetcher(&mockSSRFValidator{}, &memorySaver{}, 5*time.Second, 1<<20)

	_, err := fetcher.Import(context.Background(), server.URL)
	assertInvalidImageURL(t, err)
}

func TestImport_OversizedImage_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(bytes.Repeat([]byte("x"), 2048))
	}))
	defer server.Close()

	fetcher := NewAvatarFetcher(&mockSSRFValidator{}, &memorySaver{}, 5*time.Second, 1024)

	_, err := fetcher.Import(context.Background(), server.URL)
	assertInvalidImageURL(t, err)
}

func TestImport_UpstreamError_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewAvatarFetcher(&mockSSRFValidator{}, &memorySaver{}, 5*time.Second, 1<<20)

	_, err := fetcher.Import(context.Background(), server.URL)
	assertInvalidImageURL(t, err)
}

func TestImport_SaveFailure_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	defer server.Close()

	store := &memorySaver{saveErr: errors.New("disk full")}
	fetcher := NewAvatarFetcher(&mockSSRFValidator{}, store, 5*time.Second, 1<<20)

	_, err := fetcher.Import(context.Background(), server.URL)
	assertInvalidImageURL(t, err)
}
