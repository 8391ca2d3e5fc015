// Package post は投稿エンジン（投稿・コメント・いいね・フィード）のドメインロジックを提供する。
package post

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/openbook/internal/model"
	"github.com/hitoshi/openbook/internal/repository"
)

// UserFinder はユーザー取得のインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// FriendLister は友達ID集合の取得インターフェース。
// フィードの可視著者集合と投稿ファンアウトの宛先に使う。
type FriendLister interface {
	ListFriendIDs(ctx context.Context, userID string) ([]string, error)
}

// Notifier は通知エンジンへのイベント送出インターフェース。
type Notifier interface {
	Emit(ctx context.Context, recipientID string, typ model.NotificationType, payload any)
	EmitToAll(ctx context.Context, recipientIDs []string, typ model.NotificationType, payload any)
}

// Sanitizer はユーザー入力本文のサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// FileRemover は公開ファイルの削除インターフェース。
// 投稿の連鎖削除後にストレージ側の添付ファイルを後始末する。
type FileRemover interface {
	RemovePublic(name string) error
}

// Collector は投稿メトリクスの収集インターフェース。
type Collector interface {
	RecordPostCreated(fanout int)
}

// Service は投稿エンジンのサービス層。
type Service struct {
	repo      repository.PostRepository
	users     UserFinder
	friends   FriendLister
	notifier  Notifier
	sanitizer Sanitizer
	files     FileRemover
	collector Collector
}

// NewService はServiceの新しいインスタンスを生成する。
// filesとcollectorはnilでもよい。
func NewService(
	repo repository.PostRepository,
	users UserFinder,
	friends FriendLister,
	notifier Notifier,
	sanitizer Sanitizer,
	files FileRemover,
	collector Collector,
) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		friends:   friends,
		notifier:  notifier,
		sanitizer: sanitizer,
		files:     files,
		collector: collector,
	}
}

// friendPostedPayload はFRIEND_POSTED通知のペイロード。
// 投稿者プロフィールは通知作成時点のスナップショットを埋め込む。
type friendPostedPayload struct {
	PostID string `json:"postId"`
	model.PublicProfile
}

// postReactionPayload はPOST_LIKED / POST_COMMENTED通知のペイロード。
type postReactionPayload struct {
	PostID string `json:"postId"`
	model.PublicProfile
	Content string `json:"content,omitempty"`
}

// Create は投稿を作成し、全友達へFRIEND_POSTEDをファンアウトする。
// 本文と添付ファイルの両方が空の投稿は作成できない。
func (s *Service) Create(ctx context.Context, authorID, content string, fileNames []string) (*model.Post, error) {
	// サニタイズでタグのみの本文は空になるため、空チェックはサニタイズ後に行う。
	content = s.sanitizer.Sanitize(content)
	if content == "" && len(fileNames) == 0 {
		return nil, model.NewContentRequiredError()
	}

	author, err := s.users.FindByID(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, model.NewUserNotFoundError(authorID)
	}

	p := &model.Post{
		ID:       uuid.New().String(),
		AuthorID: authorID,
		Content:  content,
		PostedAt: time.Now().UTC(),
	}

	files := make([]*model.PostFile, len(fileNames))
	for i, name := range fileNames {
		files[i] = &model.PostFile{
			ID:     uuid.New().String(),
			PostID: p.ID,
			File:   name,
		}
	}

	if err := s.repo.Create(ctx, p, files); err != nil {
		return nil, err
	}

	// 作成時点の友達リスト全体へのファンアウト。通知はベストエフォート。
	friendIDs, err := s.friends.ListFriendIDs(ctx, authorID)
	if err != nil {
		slog.Error("ファンアウト先の友達リスト取得に失敗しました",
			slog.String("post_id", p.ID),
			slog.String("error", err.Error()),
		)
		friendIDs = nil
	}
	s.notifier.EmitToAll(ctx, friendIDs, model.NotificationFriendPosted, friendPostedPayload{
		PostID:        p.ID,
		PublicProfile: model.PublicProfileOf(author),
	})

	if s.collector != nil {
		s.collector.RecordPostCreated(len(friendIDs))
	}
	return p, nil
}

// Delete は自分の投稿を削除する。コメント・いいね・添付はDB側で
// 連鎖削除され、ストレージ上の添付ファイルも後始末される。
// 他人の投稿は存在しない場合と同じNotFoundになる。
func (s *Service) Delete(ctx context.Context, userID, postID string) error {
	p, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return err
	}
	if p == nil || p.AuthorID != userID {
		return model.NewPostNotFoundError(postID)
	}

	files, deleted, err := s.repo.Delete(ctx, postID)
	if err != nil {
		return err
	}
	if !deleted {
		return model.NewPostNotFoundError(postID)
	}

	// DB側の削除が確定した後の後始末。失敗してもロールバックしない。
	if s.files != nil {
		for _, f := range files {
			if err := s.files.RemovePublic(f); err != nil {
				slog.Warn("添付ファイルの削除に失敗しました",
					slog.String("file", f),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return nil
}

// ToggleLike は(投稿, ユーザー)のいいねをトグルする。
// いいねした場合はtrue、取り消した場合はfalseを返す。
// いいね時は投稿者へPOST_LIKEDを通知する。自分の投稿への自分の
// いいねも通知される（既存挙動の踏襲。抑制はしない）。
func (s *Service) ToggleLike(ctx context.Context, userID, postID string) (bool, error) {
	p, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, model.NewPostNotFoundError(postID)
	}

	inserted, err := s.repo.InsertLike(ctx, &model.PostLike{
		ID:        uuid.New().String(),
		PostID:    postID,
		LikedByID: userID,
	})
	if err != nil {
		return false, err
	}

	if !inserted {
		// すでにいいね済みなので取り消し
		if _, err := s.repo.DeleteLike(ctx, postID, userID); err != nil {
			return false, err
		}
		return false, nil
	}

	liker, err := s.users.FindByID(ctx, userID)
	if err != nil || liker == nil {
		return true, nil
	}
	s.notifier.Emit(ctx, p.AuthorID, model.NotificationPostLiked, postReactionPayload{
		PostID:        postID,
		PublicProfile: model.PublicProfileOf(liker),
	})
	return true, nil
}

// AddComment は投稿へコメントを付け、投稿者へPOST_COMMENTEDを通知する。
// 本文と添付ファイルの両方が空のコメントは作成できない。
func (s *Service) AddComment(ctx context.Context, authorID, postID, content, file string) (*model.PostComment, error) {
	p, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	content = s.sanitizer.Sanitize(content)
	if content == "" && file == "" {
		return nil, model.NewContentRequiredError()
	}

	c := &model.PostComment{
		ID:          uuid.New().String(),
		PostID:      postID,
		AuthorID:    authorID,
		Content:     content,
		File:        file,
		CommentedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, err
	}

	commenter, err := s.users.FindByID(ctx, authorID)
	if err == nil && commenter != nil {
		preview := c.Content
		if preview == "" {
			preview = "An attachment"
		}
		s.notifier.Emit(ctx, p.AuthorID, model.NotificationPostCommented, postReactionPayload{
			PostID:        postID,
			PublicProfile: model.PublicProfileOf(commenter),
			Content:       preview,
		})
	}
	return c, nil
}

// DeleteComment は自分のコメントを削除する。
// 他人のコメントは存在しない場合と同じNotFoundになる。
func (s *Service) DeleteComment(ctx context.Context, userID, commentID string) error {
	c, err := s.repo.FindCommentOwnedBy(ctx, commentID, userID)
	if err != nil {
		return err
	}
	if c == nil {
		return model.NewCommentNotFoundError(commentID)
	}

	if err := s.repo.DeleteComment(ctx, commentID); err != nil {
		return err
	}

	if s.files != nil && c.File != "" {
		if err := s.files.RemovePublic(c.File); err != nil {
			slog.Warn("コメント添付ファイルの削除に失敗しました",
				slog.String("file", c.File),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// ListComments は投稿のコメントを新しい順でページ取得する。
func (s *Service) ListComments(ctx context.Context, postID string, limit, offset int) ([]*model.CommentWithAuthor, error) {
	p, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	return s.repo.ListComments(ctx, postID, limit, offset)
}

// Feed は自分と友達の投稿を新しい順で返す。
// カウントやいいね状態は取得時に集計される読み取り専用の注釈で、
// 並行して変化するため永続化はしない。
func (s *Service) Feed(ctx context.Context, userID string, limit, offset int) ([]*model.PostWithMeta, error) {
	friendIDs, err := s.friends.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByAuthors(ctx, append(friendIDs, userID), userID, limit, offset)
}

// PostsOf は指定ユーザーの投稿一覧を新しい順で返す。
// プロフィール単位の可視性なので友達関係は要求しない。
func (s *Service) PostsOf(ctx context.Context, authorID, viewerID string, limit, offset int) ([]*model.PostWithMeta, error) {
	author, err := s.users.FindByID(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, model.NewUserNotFoundError(authorID)
	}
	return s.repo.ListByAuthors(ctx, []string{authorID}, viewerID, limit, offset)
}

// Get は指定IDの投稿を注釈付きで返す。
func (s *Service) Get(ctx context.Context, postID, viewerID string) (*model.PostWithMeta, error) {
	p, err := s.repo.FindWithMeta(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	return p, nil
}
