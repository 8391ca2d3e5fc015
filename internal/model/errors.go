// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, social, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodePostNotFound         = "POST_NOT_FOUND"
	ErrCodeCommentNotFound      = "COMMENT_NOT_FOUND"
	ErrCodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	ErrCodeFriendshipNotFound   = "FRIENDSHIP_NOT_FOUND"
	ErrCodeAlreadyFriends       = "ALREADY_FRIENDS"
	ErrCodeRequestPending       = "FRIEND_REQUEST_PENDING"
	ErrCodeNotFriends           = "NOT_FRIENDS"
	ErrCodeContentRequired      = "CONTENT_REQUIRED"
	ErrCodeEmailTaken           = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidImageURL      = "INVALID_IMAGE_URL"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", userID),
		Category: "social",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewPostNotFoundError は投稿が見つからない場合のエラーを生成する。
// 所有権のない投稿への操作にも同じエラーを返し、存在の有無を漏らさない。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", postID),
		Category: "social",
		Action:   "投稿IDを確認してください。",
	}
}

// NewCommentNotFoundError はコメントが見つからない場合のエラーを生成する。
// 他人のコメントへの削除操作にも同じエラーを返す。
func NewCommentNotFoundError(commentID string) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("指定されたコメントが見つかりません: %s", commentID),
		Category: "social",
		Action:   "コメントIDを確認してください。",
	}
}

// NewNotificationNotFoundError は通知が見つからない場合のエラーを生成する。
// 他ユーザー宛の通知にも同じエラーを返し、存在の有無を漏らさない。
func NewNotificationNotFoundError(notificationID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotificationNotFound,
		Message:  fmt.Sprintf("指定された通知が見つかりません: %s", notificationID),
		Category: "social",
		Action:   "通知IDを確認してください。",
	}
}

// NewFriendshipNotFoundError は削除対象の友達関係が存在しない場合のエラーを生成する。
func NewFriendshipNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeFriendshipNotFound,
		Message:  "このユーザーとの友達関係またはリクエストが存在しません。",
		Category: "social",
		Action:   "相手との関係を確認してください。",
	}
}

// NewAlreadyFriendsError はすでに友達関係が成立している場合のエラーを生成する。
func NewAlreadyFriendsError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyFriends,
		Message:  "このユーザーとはすでに友達です。",
		Category: "social",
		Action:   "追加の操作は不要です。",
	}
}

// NewRequestPendingError は送信済みリクエストの重複送信エラーを生成する。
// 自分で送ったリクエストを自分で承認することも防ぐ。
func NewRequestPendingError() *APIError {
	return &APIError{
		Code:     ErrCodeRequestPending,
		Message:  "このユーザーへの友達リクエストはすでに送信済みです。",
		Category: "social",
		Action:   "相手の承認を待ってください。",
	}
}

// NewNotFriendsError は友達関係を前提とする操作の失敗エラーを生成する。
func NewNotFriendsError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFriends,
		Message:  "このユーザーとは友達ではないため、この操作はできません。",
		Category: "social",
		Action:   "先に友達リクエストを送信してください。",
	}
}

// NewContentRequiredError は本文と添付ファイルの両方が空の場合のエラーを生成する。
func NewContentRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeContentRequired,
		Message:  "本文または添付ファイルのいずれかが必要です。",
		Category: "validation",
		Action:   "本文を入力するか、ファイルを添付してください。",
	}
}

// NewEmailTakenError はメールアドレスが登録済みの場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスはすでに登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証情報が一致しない場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidRequestError はリクエスト内容が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidImageURLError はプロフィール画像URLの取り込みに失敗した場合のエラーを生成する。
func NewInvalidImageURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageURL,
		Message:  fmt.Sprintf("画像URLを取り込めませんでした: %s", reason),
		Category: "validation",
		Action:   "公開されているhttpsの画像URLを指定してください。",
	}
}
