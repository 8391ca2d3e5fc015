package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/openbook/internal/model"
	"github.com/hitoshi/openbook/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Get(ctx context.Context, viewerID, userID string) (*user.Profile, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*model.User, error)
	Update(ctx context.Context, userID string, in user.UpdateInput) (*model.User, error)
}

// UserHandler はプロフィール閲覧・検索・更新のHTTPハンドラー。
type UserHandler struct {
	service        UserServiceInterface
	store          FileSaver
	resultsPerPage int
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, store FileSaver, resultsPerPage int) *UserHandler {
	return &UserHandler{
		service:        service,
		store:          store,
		resultsPerPage: resultsPerPage,
	}
}

// userResponse はユーザープロフィールのAPIレスポンス。
// パスワードハッシュは含まれない。
type userResponse struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	ProfileImage       string     `json:"profileImage"`
	BackgroundImage    string     `json:"backgroundImage"`
	Gender             string     `json:"gender,omitempty"`
	RelationshipStatus string     `json:"relationshipStatus,omitempty"`
	Bio                string     `json:"bio,omitempty"`
	Location           string     `json:"location,omitempty"`
	Occupation         string     `json:"occupation,omitempty"`
	Education          string     `json:"education,omitempty"`
	Hobbies            string     `json:"hobbies,omitempty"`
	JoinedAt           time.Time  `json:"joinedAt"`
	LastActive         time.Time  `json:"lastActive"`
	FriendshipStatus   string     `json:"friendshipStatus,omitempty"`
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:                 u.ID,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		ProfileImage:       publicFileURL(u.ProfileImage),
		BackgroundImage:    publicFileURL(u.BackgroundImage),
		Gender:             u.Gender,
		RelationshipStatus: u.RelationshipStatus,
		Bio:                u.Bio,
		Location:           u.Location,
		Occupation:         u.Occupation,
		Education:          u.Education,
		Hobbies:            u.Hobbies,
		JoinedAt:           u.JoinedAt,
		LastActive:         u.LastActive,
	}
}

// Get は指定ユーザーのプロフィールを取得する。
// 閲覧者との友達関係（stranger/requested/received/friend）を含む。
// GET /api/user/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "id")

	profile, err := h.service.Get(r.Context(), viewerID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := toUserResponse(profile.User)
	resp.FriendshipStatus = string(profile.FriendshipStatus)
	writeJSON(w, http.StatusOK, resp)
}

// Search は氏名またはメールアドレスの部分一致でユーザーを検索する。
// GET /api/user/search/{query}
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	query := chi.URLParam(r, "query")

	limit, offset := pagination(r, h.resultsPerPage)
	users, err := h.service.Search(r.Context(), query, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]userResponse, len(users))
	for i, u := range users {
		items[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// updateRequest はプロフィール更新リクエストのボディ。
// マルチパートの場合はフォームフィールド、JSONの場合はボディから読み取る。
type updateRequest struct {
	FirstName          *string `json:"firstName"`
	LastName           *string `json:"lastName"`
	Password           *string `json:"password"`
	Gender             *string `json:"gender"`
	RelationshipStatus *string `json:"relationshipStatus"`
	Bio                *string `json:"bio"`
	Location           *string `json:"location"`
	Occupation         *string `json:"occupation"`
	Education          *string `json:"education"`
	Hobbies            *string `json:"hobbies"`
	ProfileImageURL    *string `json:"profileImageURL"`
	BackgroundImageURL *string `json:"backgroundImageURL"`
}

// Update は自分のプロフィールを更新する。
// 画像はマルチパートのファイル添付か、httpsのURL指定のどちらかで更新できる。
// PATCH /api/user
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := parseUploadForm(r); err != nil {
		writeInvalidBody(w)
		return
	}

	var req updateRequest
	var profileFile, backgroundFile string

	if r.MultipartForm != nil {
		req = updateRequestFromForm(r)

		var err error
		if profileFile, err = savePublicUpload(r, "profileImage", h.store); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("プロフィール画像を保存できませんでした"))
			return
		}
		if backgroundFile, err = savePublicUpload(r, "backgroundImage", h.store); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("背景画像を保存できませんでした"))
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, user.UpdateInput{
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		Password:            req.Password,
		Gender:              req.Gender,
		RelationshipStatus:  req.RelationshipStatus,
		Bio:                 req.Bio,
		Location:            req.Location,
		Occupation:          req.Occupation,
		Education:           req.Education,
		Hobbies:             req.Hobbies,
		ProfileImageURL:     req.ProfileImageURL,
		BackgroundImageURL:  req.BackgroundImageURL,
		ProfileImageFile:    profileFile,
		BackgroundImageFile: backgroundFile,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// updateRequestFromForm はマルチパートフォームの値フィールドを読み取る。
// 送信されなかったフィールドはnilのまま（更新しない）。
func updateRequestFromForm(r *http.Request) updateRequest {
	var req updateRequest
	fields := map[string]**string{
		"firstName":          &req.FirstName,
		"lastName":           &req.LastName,
		"password":           &req.Password,
		"gender":             &req.Gender,
		"relationshipStatus": &req.RelationshipStatus,
		"bio":                &req.Bio,
		"location":           &req.Location,
		"occupation":         &req.Occupation,
		"education":          &req.Education,
		"hobbies":            &req.Hobbies,
		"profileImageURL":    &req.ProfileImageURL,
		"backgroundImageURL": &req.BackgroundImageURL,
	}
	for name, dst := range fields {
		if values, ok := r.MultipartForm.Value[name]; ok && len(values) > 0 {
			v := values[0]
			*dst = &v
		}
	}
	return req
}
