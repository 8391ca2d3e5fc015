// Package notification は通知エンジンのドメインロジックを提供する。
//
// 通知の記録はベストエフォートで行う。記録や配信の失敗は呼び出し元の
// 操作を失敗させてはならないため、エラーはログに残して握りつぶす。
// リトライやデッドレターは持たない（意図的な割り切り）。
package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/openbook/internal/model"
	"github.com/hitoshi/openbook/internal/repository"
)

// EventNewNotification は新着通知をクライアントへ知らせるリアルタイムイベント名。
const EventNewNotification = "NEW_NOTIFICATION"

// Pusher はリアルタイムチャネルへのプッシュ配信インターフェース。
// 接続していないユーザーへのプッシュは黙って無視される。
type Pusher interface {
	Push(userID, event string)
}

// Collector は通知メトリクスの収集インターフェース。
type Collector interface {
	RecordNotificationEmitted(typ string, count int)
}

// Service は通知エンジンのサービス層。
type Service struct {
	repo      repository.NotificationRepository
	pusher    Pusher
	collector Collector
}

// NewService はServiceの新しいインスタンスを生成する。
// pusherとcollectorはnilでもよい。
func NewService(repo repository.NotificationRepository, pusher Pusher, collector Collector) *Service {
	return &Service{
		repo:      repo,
		pusher:    pusher,
		collector: collector,
	}
}

// Emit は通知を1件記録し、接続中ならリアルタイムで知らせる。
// 失敗しても呼び出し元の操作には影響しない。
func (s *Service) Emit(ctx context.Context, recipientID string, typ model.NotificationType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("通知ペイロードのエンコードに失敗しました",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
		return
	}

	n := &model.Notification{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Type:        typ,
		Payload:     data,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, n); err != nil {
		slog.Error("通知の記録に失敗しました",
			slog.String("type", string(typ)),
			slog.String("recipient_id", recipientID),
			slog.String("error", err.Error()),
		)
		return
	}

	if s.collector != nil {
		s.collector.RecordNotificationEmitted(string(typ), 1)
	}
	if s.pusher != nil {
		s.pusher.Push(recipientID, EventNewNotification)
	}
}

// EmitToAll は同一内容の通知を複数の宛先へ一括記録する。
// 投稿ファンアウトのように宛先が友達リスト全体になるケース用で、
// 宛先数に比例したトランザクションを発行しない。
func (s *Service) EmitToAll(ctx context.Context, recipientIDs []string, typ model.NotificationType, payload any) {
	if len(recipientIDs) == 0 {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("通知ペイロードのエンコードに失敗しました",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.repo.CreateBatch(ctx, recipientIDs, typ, data, time.Now().UTC()); err != nil {
		slog.Error("通知の一括記録に失敗しました",
			slog.String("type", string(typ)),
			slog.Int("recipients", len(recipientIDs)),
			slog.String("error", err.Error()),
		)
		return
	}

	if s.collector != nil {
		s.collector.RecordNotificationEmitted(string(typ), len(recipientIDs))
	}
	if s.pusher != nil {
		for _, id := range recipientIDs {
			s.pusher.Push(id, EventNewNotification)
		}
	}
}

// List は自分宛の通知を新しい順でページ取得する。
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*model.Notification, error) {
	return s.repo.ListByRecipient(ctx, userID, limit, offset)
}

// UnreadCount は自分宛の未読通知数を返す。
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead は自分宛の通知を既読にする。
// 通知が存在しない場合も他ユーザー宛の場合も同じNotFoundを返す。
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	ok, err := s.repo.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewNotificationNotFoundError(notificationID)
	}
	return nil
}
