// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザー投稿テキスト（投稿本文、コメント、
// メッセージ、自己紹介文）をサニタイズし、XSS攻撃などのセキュリティ
// リスクからユーザーを保護する。bluemondayライブラリの許可リストベースの
// ポリシーで、タグをすべて除去したプレーンテキストだけを保存する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
// 投稿・コメント・メッセージ・プロフィールの保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize は入力からHTMLタグをすべて除去したプレーンテキストを返す。
	// scriptやiframe等のタグはタグごと除去され、テキスト部分のみが残る。
	// 前後の空白は取り除かれる。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（決定的）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicy（許可タグなし）を使い、タグ除去後のテキストを
// エンティティ復元してプレーンテキストとして返す。
// 保存するのは表示用HTMLではなくテキストそのものなので、
// エスケープはAPI応答側（JSONエンコード）に任せる。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグをすべて除去したプレーンテキストを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
