package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/openbook/internal/model"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, authorID, content string, fileNames []string) (*model.Post, error)
	Delete(ctx context.Context, userID, postID string) error
	ToggleLike(ctx context.Context, userID, postID string) (bool, error)
	AddComment(ctx context.Context, authorID, postID, content, file string) (*model.PostComment, error)
	DeleteComment(ctx context.Context, userID, commentID string) error
	ListComments(ctx context.Context, postID string, limit, offset int) ([]*model.CommentWithAuthor, error)
	Feed(ctx context.Context, userID string, limit, offset int) ([]*model.PostWithMeta, error)
	PostsOf(ctx context.Context, authorID, viewerID string, limit, offset int) ([]*model.PostWithMeta, error)
	Get(ctx context.Context, postID, viewerID string) (*model.PostWithMeta, error)
}

// PostHandler は投稿・コメント・いいね・フィードのHTTPハンドラー。
type PostHandler struct {
	service        PostServiceInterface
	store          FileSaver
	resultsPerPage int
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface, store FileSaver, resultsPerPage int) *PostHandler {
	return &PostHandler{
		service:        service,
		store:          store,
		resultsPerPage: resultsPerPage,
	}
}

// postResponse はフィード・一覧で返す投稿のAPIレスポンス。
type postResponse struct {
	ID           string          `json:"id"`
	Content      string          `json:"content"`
	PostedAt     time.Time       `json:"postedAt"`
	Author       profileResponse `json:"author"`
	CommentCount int             `json:"commentCount"`
	LikeCount    int             `json:"likeCount"`
	Liked        bool            `json:"liked"`
	Files        []string        `json:"files"`
}

// commentResponse はコメントのAPIレスポンス。
type commentResponse struct {
	ID          string          `json:"id"`
	PostID      string          `json:"postId"`
	Content     string          `json:"content"`
	File        string          `json:"file,omitempty"`
	CommentedAt time.Time       `json:"commentedAt"`
	Author      profileResponse `json:"author"`
}

// toPostResponse は注釈付き投稿をAPIレスポンスに変換する。
func toPostResponse(p *model.PostWithMeta) postResponse {
	return postResponse{
		ID:           p.ID,
		Content:      p.Content,
		PostedAt:     p.PostedAt,
		Author:       toProfileResponse(p.Author),
		CommentCount: p.CommentCount,
		LikeCount:    p.LikeCount,
		Liked:        p.Liked,
		Files:        publicFileURLs(p.Files),
	}
}

// toCommentResponse はコメントをAPIレスポンスに変換する。
func toCommentResponse(c *model.CommentWithAuthor) commentResponse {
	return commentResponse{
		ID:          c.ID,
		PostID:      c.PostID,
		Content:     c.Content,
		File:        publicFileURL(c.File),
		CommentedAt: c.CommentedAt,
		Author:      toProfileResponse(c.Author),
	}
}

// Create は投稿を作成し、全友達へ通知をファンアウトする。
// 本文はフォームフィールドcontent、添付はフィールドfilesから読み取る。
// POST /api/post
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := parseUploadForm(r); err != nil {
		writeInvalidBody(w)
		return
	}

	files, err := savePublicUploads(r, "files", h.store)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("添付ファイルを保存できませんでした"))
		return
	}

	post, err := h.service.Create(r.Context(), userID, r.FormValue("content"), files)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": post.ID})
}

// Delete は自分の投稿を削除する。
// DELETE /api/post/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Like はいいねをトグルする。いいね時は201、取り消し時は200を返す。
// POST /api/post/like/{id}
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	liked, err := h.service.ToggleLike(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if liked {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Comment は投稿へコメントを付ける。添付はフィールドfileから読み取る。
// POST /api/post/comment/{id}
func (h *PostHandler) Comment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := parseUploadForm(r); err != nil {
		writeInvalidBody(w)
		return
	}

	file, err := savePublicUpload(r, "file", h.store)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("添付ファイルを保存できませんでした"))
		return
	}

	comment, err := h.service.AddComment(r.Context(), userID, chi.URLParam(r, "id"), r.FormValue("content"), file)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": comment.ID})
}

// DeleteComment は自分のコメントを削除する。
// DELETE /api/post/comment/{id}
func (h *PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteComment(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ListComments は投稿のコメント一覧を新しい順で返す。
// GET /api/post/{id}/comments
func (h *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	limit, offset := pagination(r, h.resultsPerPage)
	comments, err := h.service.ListComments(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]commentResponse, len(comments))
	for i, c := range comments {
		items[i] = toCommentResponse(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Feed は自分と友達の投稿を新しい順で返す。
// GET /api/post/feed
func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r, h.resultsPerPage)
	posts, err := h.service.Feed(r.Context(), userID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": toPostResponses(posts)})
}

// OfUser は指定ユーザーの投稿一覧を新しい順で返す。
// GET /api/post/ofUser/{id}
func (h *PostHandler) OfUser(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r, h.resultsPerPage)
	posts, err := h.service.PostsOf(r.Context(), chi.URLParam(r, "id"), viewerID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": toPostResponses(posts)})
}

// Get は単一の投稿を注釈付きで返す。
// GET /api/post/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	post, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), viewerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(post))
}

func toPostResponses(posts []*model.PostWithMeta) []postResponse {
	items := make([]postResponse, len(posts))
	for i, p := range posts {
		items[i] = toPostResponse(p)
	}
	return items
}
