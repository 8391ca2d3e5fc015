// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/openbook/internal/middleware"
	"github.com/hitoshi/openbook/internal/model"
)

const sessionCookieName = "session_id"

// publicFilePrefix は公開ファイルのURLパスのプレフィックス。
const publicFilePrefix = "/api/public/"

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeUnauthorized は認証エラーの統一レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeInvalidBody はリクエストボディ解析エラーの統一レスポンスを書き込む。
func writeInvalidBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しい形式でリクエストしてください。",
	})
}

// requireUserID はリクエストコンテキストから認証済みユーザーIDを取り出す。
// 取得できない場合は401を書き込んでfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return "", false
	}
	return userID, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUserNotFound,
		model.ErrCodePostNotFound,
		model.ErrCodeCommentNotFound,
		model.ErrCodeNotificationNotFound,
		model.ErrCodeFriendshipNotFound:
		return http.StatusNotFound
	case model.ErrCodeAlreadyFriends,
		model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodeRequestPending,
		model.ErrCodeNotFriends:
		return http.StatusForbidden
	case model.ErrCodeContentRequired,
		model.ErrCodeInvalidRequest,
		model.ErrCodeInvalidImageURL:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// pagination はpageクエリパラメータをLIMIT/OFFSETへ変換する。
// pageは1始まりで、不正な値は1として扱う。
func pagination(r *http.Request, resultsPerPage int) (limit, offset int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	return resultsPerPage, (page - 1) * resultsPerPage
}

// publicFileURL は保存名を公開ファイルのURLパスへ変換する。
// 空の保存名は空のまま返す。
func publicFileURL(name string) string {
	if name == "" {
		return ""
	}
	return publicFilePrefix + name
}

// publicFileURLs は保存名のスライスを公開ファイルのURLパスへ変換する。
func publicFileURLs(names []string) []string {
	urls := make([]string, len(names))
	for i, name := range names {
		urls[i] = publicFileURL(name)
	}
	return urls
}

// profileResponse は公開プロフィールのAPIレスポンス。
type profileResponse struct {
	UserID       string `json:"userId"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	ProfileImage string `json:"profileImage"`
}

// toProfileResponse は公開プロフィールをAPIレスポンスに変換する。
func toProfileResponse(p model.PublicProfile) profileResponse {
	return profileResponse{
		UserID:       p.UserID,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		ProfileImage: publicFileURL(p.ProfileImage),
	}
}
