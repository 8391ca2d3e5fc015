package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// maxUploadSize はマルチパートリクエスト全体のサイズ上限（20MB）。
const maxUploadSize = 20 << 20

// FileSaver はアップロードファイルの保存インターフェース。
type FileSaver interface {
	SavePublic(name string, r io.Reader) error
	SavePrivate(name string, r io.Reader) error
}

// uploadExtensions は受け入れるContent-Typeと保存時の拡張子の対応。
var uploadExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

// saveUpload は1つのマルチパートファイルを新しい保存名で保存する。
func saveUpload(fh *multipart.FileHeader, save func(name string, r io.Reader) error) (string, error) {
	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(fh.Header.Get("Content-Type"), ";", 2)[0]))
	ext, ok := uploadExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	name := uuid.New().String() + ext
	if err := save(name, f); err != nil {
		return "", err
	}
	return name, nil
}

// savePublicUploads はフォームフィールドの全ファイルを公開ディレクトリへ保存し、保存名を返す。
// フィールドが存在しない場合は空のスライスを返す。
func savePublicUploads(r *http.Request, field string, store FileSaver) ([]string, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var names []string
	for _, fh := range r.MultipartForm.File[field] {
		name, err := saveUpload(fh, store.SavePublic)
		if err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

// savePublicUpload はフォームフィールドの先頭1ファイルを公開ディレクトリへ保存する。
// ファイルが添付されていない場合は空文字を返す。
func savePublicUpload(r *http.Request, field string, store FileSaver) (string, error) {
	names, err := savePublicUploads(r, field, store)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", nil
	}
	return names[0], nil
}

// savePrivateUpload はフォームフィールドの先頭1ファイルをプライベートディレクトリへ保存する。
func savePrivateUpload(r *http.Request, field string, store FileSaver) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return "", nil
	}
	return saveUpload(files[0], store.SavePrivate)
}

// parseUploadForm はマルチパートフォームを解析する。
// マルチパート以外のリクエストではなにもしない。
func parseUploadForm(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		return nil
	}
	return r.ParseMultipartForm(maxUploadSize)
}
