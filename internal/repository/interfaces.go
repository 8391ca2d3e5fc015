// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/openbook/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスの一意制約違反の場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile はユーザーのプロフィール属性を更新する。
	UpdateProfile(ctx context.Context, user *model.User) error

	// Search は氏名またはメールアドレスの部分一致でユーザーを検索する。
	Search(ctx context.Context, query string, limit, offset int) ([]*model.User, error)

	// TouchLastActive は最終アクティブ時刻を現在時刻に更新する。
	TouchLastActive(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// FriendshipRepository は友達関係データの永続化インターフェース。
// すべての検索・削除は(A,B)と(B,A)を同一の関係として扱う。
type FriendshipRepository interface {
	// FindByPair は2ユーザーの組に対する友達関係を向きに関わらず取得する。
	// 見つからない場合はnilを返す。
	FindByPair(ctx context.Context, userA, userB string) (*model.Friendship, error)

	// Create は未承認の友達リクエスト行を作成する。
	// 同じ組の行がすでに存在する場合（同時実行の敗者を含む）はErrDuplicateを返す。
	Create(ctx context.Context, f *model.Friendship) error

	// Accept は指定IDの行にaccepted_atを設定する。
	Accept(ctx context.Context, id string, acceptedAt time.Time) error

	// DeleteByPair は2ユーザーの組に対する行を状態に関わらず削除する。
	// 削除した場合はtrueを返す。
	DeleteByPair(ctx context.Context, userA, userB string) (bool, error)

	// ListFriendIDs は承認済みの友達関係にある相手のID集合を返す。
	// 自分がリクエスト側・承認側いずれの行も対象で、重複は含まない。
	ListFriendIDs(ctx context.Context, userID string) ([]string, error)

	// AreFriends は承認済みの友達関係が存在するかを返す。
	AreFriends(ctx context.Context, userA, userB string) (bool, error)
}

// NotificationRepository は通知データの永続化インターフェース。
type NotificationRepository interface {
	// Create は通知を1件作成する。
	Create(ctx context.Context, n *model.Notification) error

	// CreateBatch は同一内容の通知を複数の宛先へ1回の文で一括作成する。
	// ファンアウトの遅延を宛先数に比例させないためのバッチ挿入。
	CreateBatch(ctx context.Context, recipientIDs []string, typ model.NotificationType, payload []byte, createdAt time.Time) error

	// ListByRecipient は宛先ユーザーの通知をcreated_at降順で返す。
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*model.Notification, error)

	// CountUnread は宛先ユーザーの未読通知数を返す。
	CountUnread(ctx context.Context, recipientID string) (int, error)

	// MarkRead は宛先ユーザー本人の通知を既読にする。
	// 通知が存在しない、または他ユーザー宛の場合はfalseを返す。
	MarkRead(ctx context.Context, recipientID, notificationID string) (bool, error)
}

// MessageRepository はメッセージデータの永続化インターフェース。
type MessageRepository interface {
	// Create はメッセージを作成する。
	Create(ctx context.Context, m *model.Message) error

	// CountUnread は宛先ユーザーの未読メッセージ数を返す。
	CountUnread(ctx context.Context, recipientID string) (int, error)

	// Thread は相手からの未読を既読化した上で、双方向のスレッドを
	// sent_at降順で返す。既読化と取得は同一トランザクションで行う。
	Thread(ctx context.Context, userID, peerID string, limit, offset int) ([]*model.Message, error)

	// ChatSummaries は会話相手ごとの最新メッセージ要約を新しい順で返す。
	// 双方向のメッセージ関係を単一のクエリで相手ごとの最新1件に畳み込む。
	ChatSummaries(ctx context.Context, userID string) ([]*model.ChatSummary, error)

	// FindByFile は添付ファイル名でメッセージを検索する。見つからない場合はnilを返す。
	// プライベートファイル配信の当事者チェックに使用する。
	FindByFile(ctx context.Context, file string) (*model.Message, error)
}

// PostRepository は投稿と従属エンティティの永続化インターフェース。
type PostRepository interface {
	// Create は投稿と添付ファイル行を同一トランザクションで作成する。
	Create(ctx context.Context, post *model.Post, files []*model.PostFile) error

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// FindWithMeta は指定IDの投稿を注釈付きで取得する。見つからない場合はnilを返す。
	FindWithMeta(ctx context.Context, id, viewerID string) (*model.PostWithMeta, error)

	// Delete は投稿を削除し、従属する添付・いいね・コメントを連鎖削除する。
	// 削除前に添付ファイル名の一覧を返す（ストレージ側の後始末用）。
	// 投稿が存在しない場合はnil, falseを返す。
	Delete(ctx context.Context, id string) (files []string, deleted bool, err error)

	// ListByAuthors は指定した著者集合の投稿を注釈付きでposted_at降順に返す。
	ListByAuthors(ctx context.Context, authorIDs []string, viewerID string, limit, offset int) ([]*model.PostWithMeta, error)

	// InsertLike は(post, user)のいいね行を作成する。
	// すでに存在する場合はfalseを返す（行は増えない）。
	InsertLike(ctx context.Context, like *model.PostLike) (bool, error)

	// DeleteLike は(post, user)のいいね行を削除する。削除した場合はtrueを返す。
	DeleteLike(ctx context.Context, postID, userID string) (bool, error)

	// CreateComment はコメントを作成する。
	CreateComment(ctx context.Context, c *model.PostComment) error

	// FindCommentOwnedBy は指定著者本人のコメントを取得する。
	// 存在しない、または他ユーザーのコメントの場合はnilを返す。
	FindCommentOwnedBy(ctx context.Context, commentID, authorID string) (*model.PostComment, error)

	// DeleteComment は指定IDのコメントを削除する。
	DeleteComment(ctx context.Context, commentID string) error

	// ListComments は投稿のコメントを投稿者プロフィール付きでcommented_at降順に返す。
	ListComments(ctx context.Context, postID string, limit, offset int) ([]*model.CommentWithAuthor, error)
}
