// Package message はダイレクトメッセージエンジンのドメインロジックを提供する。
package message

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/openbook/internal/model"
	"github.com/hitoshi/openbook/internal/repository"
)

// EventNewMessage は新着メッセージをクライアントへ知らせるリアルタイムイベント名。
const EventNewMessage = "NEW_MESSAGE"

// FriendshipChecker は承認済み友達関係の有無を問うインターフェース。
// repository.FriendshipRepositoryの部分集合として定義する。
type FriendshipChecker interface {
	AreFriends(ctx context.Context, userA, userB string) (bool, error)
}

// Pusher はリアルタイムチャネルへのプッシュ配信インターフェース。
type Pusher interface {
	Push(userID, event string)
}

// Sanitizer はユーザー入力本文のサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Collector はメッセージメトリクスの収集インターフェース。
type Collector interface {
	RecordMessageSent()
}

// Service はメッセージエンジンのサービス層。
type Service struct {
	repo      repository.MessageRepository
	friends   FriendshipChecker
	sanitizer Sanitizer
	pusher    Pusher
	collector Collector
}

// NewService はServiceの新しいインスタンスを生成する。
// pusherとcollectorはnilでもよい。
func NewService(
	repo repository.MessageRepository,
	friends FriendshipChecker,
	sanitizer Sanitizer,
	pusher Pusher,
	collector Collector,
) *Service {
	return &Service{
		repo:      repo,
		friends:   friends,
		sanitizer: sanitizer,
		pusher:    pusher,
		collector: collector,
	}
}

// Send は友達宛のメッセージを保存する。
//
// 前提条件:
//   - 送信者と宛先の間に承認済みの友達関係があること。宛先ユーザーが
//     存在しない場合も友達関係は存在し得ないため、同じNotFriendsになる。
//   - 本文と添付ファイルの少なくとも一方があること。
func (s *Service) Send(ctx context.Context, senderID, recipientID, content, file string) (*model.Message, error) {
	areFriends, err := s.friends.AreFriends(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}
	if !areFriends {
		return nil, model.NewNotFriendsError()
	}

	// サニタイズでタグのみの本文は空になるため、空チェックはサニタイズ後に行う。
	content = s.sanitizer.Sanitize(content)
	if content == "" && file == "" {
		return nil, model.NewContentRequiredError()
	}

	m := &model.Message{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		File:        file,
		SentAt:      time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	if s.collector != nil {
		s.collector.RecordMessageSent()
	}
	if s.pusher != nil {
		s.pusher.Push(recipientID, EventNewMessage)
	}
	return m, nil
}

// UnreadCount は自分宛の未読メッセージ数を返す。
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// ThreadWith は相手との双方向スレッドを新しい順で返す。
// 副作用として相手から自分宛の未読をすべて既読化する。
// 既読化は取得と同一トランザクションで行われるため、この操作は
// 未読数に対して冪等になる（2回目の呼び出しは状態を変えない）。
func (s *Service) ThreadWith(ctx context.Context, userID, peerID string, limit, offset int) ([]*model.Message, error) {
	return s.repo.Thread(ctx, userID, peerID, limit, offset)
}

// ChatSummaries は会話相手ごとの最新メッセージ要約を新しい順で返す。
func (s *Service) ChatSummaries(ctx context.Context, userID string) ([]*model.ChatSummary, error) {
	return s.repo.ChatSummaries(ctx, userID)
}

// FindByFile は添付ファイル名でメッセージを検索する。
// プライベートファイル配信の当事者チェックに使用する。
func (s *Service) FindByFile(ctx context.Context, file string) (*model.Message, error) {
	return s.repo.FindByFile(ctx, file)
}
