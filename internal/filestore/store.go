// Package filestore はアップロードファイルのローカル保存を提供する。
//
// 公開ディレクトリ（投稿・コメントの添付、プロフィール画像）は
// URLで直接参照され、プライベートディレクトリ（メッセージ添付）は
// 当事者チェックを通ったリクエストにのみ配信される。
package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store はローカルファイルシステム上のファイルストア。
type Store struct {
	publicDir  string
	privateDir string
}

// New はStoreを生成し、両ディレクトリを用意する。
func New(publicDir, privateDir string) (*Store, error) {
	for _, dir := range []string{publicDir, privateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create file dir %s: %w", dir, err)
		}
	}
	return &Store{publicDir: publicDir, privateDir: privateDir}, nil
}

// SavePublic は公開ディレクトリへファイルを保存する。
func (s *Store) SavePublic(name string, r io.Reader) error {
	return save(s.publicDir, name, r)
}

// SavePrivate はプライベートディレクトリへファイルを保存する。
func (s *Store) SavePrivate(name string, r io.Reader) error {
	return save(s.privateDir, name, r)
}

// RemovePublic は公開ディレクトリのファイルを削除する。
// 存在しないファイルの削除はエラーにしない。
func (s *Store) RemovePublic(name string) error {
	return remove(s.publicDir, name)
}

// RemovePrivate はプライベートディレクトリのファイルを削除する。
func (s *Store) RemovePrivate(name string) error {
	return remove(s.privateDir, name)
}

// PublicDir は公開ディレクトリのパスを返す。静的配信のルートに使う。
func (s *Store) PublicDir() string {
	return s.publicDir
}

// OpenPrivate はプライベートディレクトリのファイルを開く。
// 呼び出し側がCloseする。
func (s *Store) OpenPrivate(name string) (*os.File, error) {
	path, err := securePath(s.privateDir, name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func save(dir, name string, r io.Reader) error {
	path, err := securePath(dir, name)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func remove(dir, name string) error {
	path, err := securePath(dir, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// securePath はファイル名をディレクトリ配下のパスに解決する。
// パス区切りや親ディレクトリ参照を含む名前はディレクトリトラバーサルとして拒否する。
func securePath(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid file name: %q", name)
	}
	return filepath.Join(dir, name), nil
}
