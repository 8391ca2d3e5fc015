package user

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/openbook/internal/model"
)

// SSRFValidator はSSRF防止機能のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// PublicSaver は公開ファイルストアへの保存インターフェース。
type PublicSaver interface {
	SavePublic(name string, r io.Reader) error
}

// AvatarFetcher は外部URLからプロフィール画像を取り込む実装。
// プライベートIPやメタデータIPへの到達はSSRFガードで遮断し、
// サイズと Content-Type を検証してからファイルストアへ保存する。
type AvatarFetcher struct {
	ssrfGuard SSRFValidator
	store     PublicSaver
	timeout   time.Duration
	maxSize   int64
}

// NewAvatarFetcher はAvatarFetcherの新しいインスタンスを生成する。
func NewAvatarFetcher(ssrfGuard SSRFValidator, store PublicSaver, timeout time.Duration, maxSize int64) *AvatarFetcher {
	return &AvatarFetcher{
		ssrfGuard: ssrfGuard,
		store:     store,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// Import は画像URLを検証付きで取得し、ファイルストアへ保存して保存名を返す。
func (f *AvatarFetcher) Import(ctx context.Context, rawURL string) (string, error) {
	if err := f.ssrfGuard.ValidateURL(rawURL); err != nil {
		slog.Warn("画像取り込み: SSRFブロック", "url", rawURL, "error", err)
		return "", model.NewInvalidImageURLError("このURLへはアクセスできません")
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", model.NewInvalidImageURLError("URLの形式が正しくありません")
	}
	req.Header.Set("User-Agent", "Openbook/1.0")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("画像取り込み: HTTPリクエスト失敗", "url", rawURL, "error", err)
		return "", model.NewInvalidImageURLError("画像を取得できませんでした")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", model.NewInvalidImageURLError("画像の取得先がエラーを返しました")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return "", model.NewInvalidImageURLError("画像の読み取りに失敗しました")
	}
	if int64(len(body)) > f.maxSize {
		return "", model.NewInvalidImageURLError("画像サイズが上限を超えています")
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	ext, ok := imageExtensions[mimeType]
	if !ok {
		return "", model.NewInvalidImageURLError("画像以外のコンテンツです")
	}

	name := uuid.New().String() + ext
	if err := f.store.SavePublic(name, bytes.NewReader(body)); err != nil {
		slog.Error("画像取り込み: 保存失敗", "name", name, "error", err)
		return "", model.NewInvalidImageURLError("画像の保存に失敗しました")
	}
	return name, nil
}

// imageExtensions は受け入れる画像MIMEタイプと保存時の拡張子の対応。
var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// compile-time interface check
var _ AvatarImporter = (*AvatarFetcher)(nil)
