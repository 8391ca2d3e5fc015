// Package user はプロフィール閲覧・検索・更新のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/openbook/internal/model"
	"github.com/hitoshi/openbook/internal/repository"
)

// StatusResolver は閲覧者から見た相手との友達関係の解決インターフェース。
type StatusResolver interface {
	StatusBetween(ctx context.Context, viewerID, otherID string) (model.FriendshipStatus, error)
}

// Sanitizer はユーザー入力テキストのサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// AvatarImporter は外部URLからのプロフィール画像取り込みインターフェース。
type AvatarImporter interface {
	// Import は画像URLを検証付きで取得し、ファイルストアへ保存して
	// 保存名を返す。不正なURLや画像以外はAPIErrorを返す。
	Import(ctx context.Context, rawURL string) (string, error)
}

// Profile は閲覧者視点のプロフィール応答。
// 友達関係の状態は閲覧のたびに解決される。
type Profile struct {
	User             *model.User
	FriendshipStatus model.FriendshipStatus
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo  repository.UserRepository
	statuses  StatusResolver
	sanitizer Sanitizer
	avatars   AvatarImporter
}

// NewService はServiceの新しいインスタンスを生成する。
// avatarsはnilでもよく、その場合は画像URLの取り込みが無効になる。
func NewService(
	userRepo repository.UserRepository,
	statuses StatusResolver,
	sanitizer Sanitizer,
	avatars AvatarImporter,
) *Service {
	return &Service{
		userRepo:  userRepo,
		statuses:  statuses,
		sanitizer: sanitizer,
		avatars:   avatars,
	}
}

// Get は指定ユーザーのプロフィールを閲覧者との友達関係付きで返す。
func (s *Service) Get(ctx context.Context, viewerID, userID string) (*Profile, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	status, err := s.statuses.StatusBetween(ctx, viewerID, userID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: u, FriendshipStatus: status}, nil
}

// Search は氏名またはメールアドレスの部分一致でユーザーを検索する。
// 空クエリには空の結果を返す。
func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*model.User, error) {
	if query == "" {
		return []*model.User{}, nil
	}
	return s.userRepo.Search(ctx, query, limit, offset)
}

// UpdateInput はプロフィール更新の入力。
// nilのフィールドは更新しない。
type UpdateInput struct {
	FirstName          *string
	LastName           *string
	Password           *string
	Gender             *string
	RelationshipStatus *string
	Bio                *string
	Location           *string
	Occupation         *string
	Education          *string
	Hobbies            *string
	ProfileImageURL    *string
	BackgroundImageURL *string
	// マルチパートアップロードで保存済みのファイル名。URL取り込みより優先される。
	ProfileImageFile    string
	BackgroundImageFile string
}

// Update はプロフィール属性を更新する。
// パスワードが指定された場合は再ハッシュし、画像URLが指定された場合は
// SSRF検証付きで取り込んでから保存名をプロフィールに反映する。
func (s *Service) Update(ctx context.Context, userID string, in UpdateInput) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	if in.FirstName != nil {
		if *in.FirstName == "" {
			return nil, model.NewInvalidRequestError("名は空にできません")
		}
		u.FirstName = s.sanitizer.Sanitize(*in.FirstName)
	}
	if in.LastName != nil {
		if *in.LastName == "" {
			return nil, model.NewInvalidRequestError("姓は空にできません")
		}
		u.LastName = s.sanitizer.Sanitize(*in.LastName)
	}
	if in.Password != nil {
		if len(*in.Password) < 8 {
			return nil, model.NewInvalidRequestError("パスワードは8文字以上で指定してください")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	if in.Gender != nil {
		u.Gender = s.sanitizer.Sanitize(*in.Gender)
	}
	if in.RelationshipStatus != nil {
		u.RelationshipStatus = s.sanitizer.Sanitize(*in.RelationshipStatus)
	}
	if in.Bio != nil {
		u.Bio = s.sanitizer.Sanitize(*in.Bio)
	}
	if in.Location != nil {
		u.Location = s.sanitizer.Sanitize(*in.Location)
	}
	if in.Occupation != nil {
		u.Occupation = s.sanitizer.Sanitize(*in.Occupation)
	}
	if in.Education != nil {
		u.Education = s.sanitizer.Sanitize(*in.Education)
	}
	if in.Hobbies != nil {
		u.Hobbies = s.sanitizer.Sanitize(*in.Hobbies)
	}

	profileImage, err := s.resolveImage(ctx, in.ProfileImageFile, in.ProfileImageURL)
	if err != nil {
		return nil, err
	}
	if profileImage != "" {
		u.ProfileImage = profileImage
	}

	backgroundImage, err := s.resolveImage(ctx, in.BackgroundImageFile, in.BackgroundImageURL)
	if err != nil {
		return nil, err
	}
	if backgroundImage != "" {
		u.BackgroundImage = backgroundImage
	}

	if err := s.userRepo.UpdateProfile(ctx, u); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	slog.Info("プロフィールを更新しました", slog.String("user_id", userID))
	return u, nil
}

// resolveImage はアップロード済みファイル名かURL取り込みの結果を返す。
// どちらも指定されていない場合は空文字を返す。
func (s *Service) resolveImage(ctx context.Context, fileName string, rawURL *string) (string, error) {
	if fileName != "" {
		return fileName, nil
	}
	if rawURL == nil || *rawURL == "" {
		return "", nil
	}
	if s.avatars == nil {
		return "", model.NewInvalidImageURLError("画像URLの取り込みは無効になっています")
	}
	return s.avatars.Import(ctx, *rawURL)
}
