// Package model はドメインモデルを定義する。
package model

import "time"

// Message は友達同士の1対1ダイレクトメッセージを表す。
// ContentとFileの両方が空のメッセージは作成できない。
// Readは受信者が相手とのスレッドを開いたときにのみtrueへ遷移する。
type Message struct {
	ID          string
	SenderID    string
	RecipientID string
	Content     string
	File        string
	SentAt      time.Time
	Read        bool
}

// AttachmentPlaceholder は本文のないメッセージのプレビュー表示に使う記号。
const AttachmentPlaceholder = "📎 Attachment"

// ChatSummary は会話相手ごとの最新メッセージの要約行を表す。
// 双方向のメッセージ関係を相手ごとに最新1件へ畳み込んだ結果で、
// 単一のスナップショットに対する1クエリで計算される。
type ChatSummary struct {
	FriendID     string
	FirstName    string
	LastName     string
	ProfileImage string
	LastActive   time.Time
	SentAt       time.Time
	Content      string
	Attention    bool
}
