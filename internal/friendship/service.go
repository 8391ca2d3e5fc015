// Package friendship は友達関係エンジンのドメインロジックを提供する。
package friendship

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/openbook/internal/model"
	"github.com/hitoshi/openbook/internal/repository"
)

// UserFinder はユーザー存在確認と取得のインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Notifier は通知エンジンへのイベント送出インターフェース。
// 送出はベストエフォートで、失敗しても呼び出し元の操作は失敗しない。
type Notifier interface {
	Emit(ctx context.Context, recipientID string, typ model.NotificationType, payload any)
}

// Service は友達関係エンジンのサービス層。
// リクエスト送信・承認・解除のライフサイクルと「2人は友達か」の問いを司る。
type Service struct {
	users    UserFinder
	repo     repository.FriendshipRepository
	notifier Notifier
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users UserFinder, repo repository.FriendshipRepository, notifier Notifier) *Service {
	return &Service{
		users:    users,
		repo:     repo,
		notifier: notifier,
	}
}

// RequestOrAdvance は友達リクエストの状態機械を1段階進める。
//
//	行なし            → リクエスト作成、相手へFRIEND_REQUEST通知
//	承認済み          → AlreadyFriendsエラー（変更なし）
//	未承認・自分が送信側 → RequestPendingエラー（重複送信と自己承認の防止）
//	未承認・自分が受信側 → 承認、元の送信者へFRIEND_REQUEST_ACCEPTED通知
//
// 同じ組への同時リクエストはストレージの一意制約で片方が敗者になり、
// 敗者は行を読み直して上記の分類にやり直される。
func (s *Service) RequestOrAdvance(ctx context.Context, requesterID, targetID string) (model.FriendshipResult, error) {
	if requesterID == targetID {
		return "", model.NewInvalidRequestError("自分自身に友達リクエストは送れません")
	}

	requester, err := s.users.FindByID(ctx, requesterID)
	if err != nil {
		return "", err
	}
	if requester == nil {
		return "", model.NewUserNotFoundError(requesterID)
	}

	target, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return "", err
	}
	if target == nil {
		return "", model.NewUserNotFoundError(targetID)
	}

	f, err := s.repo.FindByPair(ctx, requesterID, targetID)
	if err != nil {
		return "", err
	}

	if f == nil {
		created := &model.Friendship{
			ID:            uuid.New().String(),
			RequestedByID: requesterID,
			AcceptedByID:  targetID,
		}
		err := s.repo.Create(ctx, created)
		if errors.Is(err, repository.ErrDuplicate) {
			// 同時実行の敗者。勝者が作った行を読み直して分類し直す。
			f, err = s.repo.FindByPair(ctx, requesterID, targetID)
			if err != nil {
				return "", err
			}
			if f == nil {
				// 勝者の行が即座に削除された稀なケース。呼び直してもらう。
				return "", model.NewFriendshipNotFoundError()
			}
			return s.classifyExisting(ctx, requester, f)
		}
		if err != nil {
			return "", err
		}

		s.notifier.Emit(ctx, targetID, model.NotificationFriendRequest, model.PublicProfileOf(requester))
		return model.FriendshipCreated, nil
	}

	return s.classifyExisting(ctx, requester, f)
}

// classifyExisting は既存の行に対する操作結果を決める。
func (s *Service) classifyExisting(ctx context.Context, requester *model.User, f *model.Friendship) (model.FriendshipResult, error) {
	if f.Accepted() {
		return "", model.NewAlreadyFriendsError()
	}

	if f.RequestedByID == requester.ID {
		return "", model.NewRequestPendingError()
	}

	// 受信側による承認
	if err := s.repo.Accept(ctx, f.ID, time.Now().UTC()); err != nil {
		return "", err
	}

	s.notifier.Emit(ctx, f.RequestedByID, model.NotificationFriendRequestAccepted, model.PublicProfileOf(requester))
	return model.FriendshipAccepted, nil
}

// Remove は2人の組に対する行を状態に関わらず削除する。
// 友達解除・送信済みリクエストの取消・受信済みリクエストの拒否を
// すべてこの1操作で扱う。行が存在しない場合はNotFoundを返す。
func (s *Service) Remove(ctx context.Context, userID, otherID string) error {
	deleted, err := s.repo.DeleteByPair(ctx, userID, otherID)
	if err != nil {
		return err
	}
	if !deleted {
		return model.NewFriendshipNotFoundError()
	}
	return nil
}

// ListFriendIDs は承認済みの友達のID集合を返す。順序は保証しない。
func (s *Service) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	return s.repo.ListFriendIDs(ctx, userID)
}

// StatusBetween は視点ユーザーから見た相手との関係を返す。
func (s *Service) StatusBetween(ctx context.Context, viewerID, otherID string) (model.FriendshipStatus, error) {
	f, err := s.repo.FindByPair(ctx, viewerID, otherID)
	if err != nil {
		return "", err
	}
	return f.StatusFor(viewerID), nil
}
