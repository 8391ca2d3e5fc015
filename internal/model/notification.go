// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// NotificationType は通知種別の閉じた列挙。
type NotificationType string

const (
	// NotificationFriendRequest は友達リクエスト受信の通知。
	NotificationFriendRequest NotificationType = "FRIEND_REQUEST"
	// NotificationFriendRequestAccepted は友達リクエスト承認の通知。
	NotificationFriendRequestAccepted NotificationType = "FRIEND_REQUEST_ACCEPTED"
	// NotificationFriendPosted は友達の新規投稿の通知。
	NotificationFriendPosted NotificationType = "FRIEND_POSTED"
	// NotificationPostLiked は投稿へのいいねの通知。
	NotificationPostLiked NotificationType = "POST_LIKED"
	// NotificationPostCommented は投稿へのコメントの通知。
	NotificationPostCommented NotificationType = "POST_COMMENTED"
)

// Notification はユーザー宛の非同期イベントを表す。
// ドメインイベントに反応したエンジンだけが作成する。
// Readフラグ以外は作成後に変更されない。
type Notification struct {
	ID          string
	RecipientID string
	Type        NotificationType
	Payload     json.RawMessage
	CreatedAt   time.Time
	Read        bool
}
