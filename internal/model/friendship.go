// Package model はドメインモデルを定義する。
package model

import "time"

// Friendship は2ユーザー間の友達関係（または友達リクエスト）を表す。
// AcceptedAtがnilの間はPENDING、設定されるとACCEPTED。
// 拒否状態は持たず、拒否・キャンセル・解除はすべて行の削除で表現する。
// 同じ2人の組に対しては向きに関わらず最大1行しか存在しない
// （ストレージ層のLEAST/GREATEST一意インデックスで強制される）。
type Friendship struct {
	ID            string
	RequestedByID string
	AcceptedByID  string
	AcceptedAt    *time.Time
}

// Accepted は友達関係が成立済みかどうかを返す。
func (f *Friendship) Accepted() bool {
	return f.AcceptedAt != nil
}

// FriendshipStatus は自分から見た相手との関係を表す。
type FriendshipStatus string

const (
	// FriendshipStatusStranger は関係が存在しない状態。
	FriendshipStatusStranger FriendshipStatus = "stranger"
	// FriendshipStatusRequested は自分がリクエストを送信済みの状態。
	FriendshipStatusRequested FriendshipStatus = "requested"
	// FriendshipStatusReceived は相手からリクエストを受信済みの状態。
	FriendshipStatusReceived FriendshipStatus = "received"
	// FriendshipStatusFriend は友達関係が成立している状態。
	FriendshipStatusFriend FriendshipStatus = "friend"
)

// StatusFor は視点ユーザーから見た友達関係の状態を返す。
// fがnilの場合はstrangerを返す。
func (f *Friendship) StatusFor(viewerID string) FriendshipStatus {
	if f == nil {
		return FriendshipStatusStranger
	}
	if f.Accepted() {
		return FriendshipStatusFriend
	}
	if f.RequestedByID == viewerID {
		return FriendshipStatusRequested
	}
	return FriendshipStatusReceived
}

// FriendshipResult は友達リクエスト操作の成功バリアントを表す。
type FriendshipResult string

const (
	// FriendshipCreated は新規リクエストが作成されたことを表す。
	FriendshipCreated FriendshipResult = "created"
	// FriendshipAccepted は受信済みリクエストが承認されたことを表す。
	FriendshipAccepted FriendshipResult = "accepted"
)
