package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/openbook/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメインサービス
	UserService         UserServiceInterface
	FriendshipService   FriendshipServiceInterface
	PostService         PostServiceInterface
	NotificationService NotificationServiceInterface
	MessageService      MessageServiceInterface
	MessageFileFinder   MessageFileFinder

	// ファイルストア
	FileStore     FileSaver
	PrivateFiles  PrivateFileOpener
	PublicFileDir string

	// 外部ハンドラー
	RealtimeHandler http.Handler
	MetricsHandler  http.Handler

	// 観測用（nilの場合は記録しない）
	MetricsCollector middleware.HTTPCollector

	// CSRF Cookieの属性
	CookieSecure bool
	CookieDomain string

	ResultsPerPage int
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	→ Session → RateLimit(General) → CSRF
//
// 前半は全ルートに効き、後半は認証が必要なルートにのみ効く。
// 登録・ログインと/healthz・/metrics・/wsは認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	if deps.MetricsCollector != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.MetricsCollector))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService, deps.FileStore, deps.ResultsPerPage)
	friendshipHandler := NewFriendshipHandler(deps.FriendshipService)
	postHandler := NewPostHandler(deps.PostService, deps.FileStore, deps.ResultsPerPage)
	notificationHandler := NewNotificationHandler(deps.NotificationService, deps.ResultsPerPage)
	messageHandler := NewMessageHandler(deps.MessageService, deps.FileStore, deps.ResultsPerPage)
	privateHandler := NewPrivateFileHandler(deps.MessageFileFinder, deps.PrivateFiles)

	// --- 認証不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// リアルタイムチャネル。認証は最初のフレームのトークンで行う。
	if deps.RealtimeHandler != nil {
		r.Handle("/ws", deps.RealtimeHandler)
	}

	r.Post("/api/user/register", authHandler.Register)
	r.Post("/api/user/login", authHandler.Login)

	// ログイン前のフロントエンドが最初に取得するCSRFトークン
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(middleware.CSRFConfig{
		CookieSecure: deps.CookieSecure,
		CookieDomain: deps.CookieDomain,
	}))

	// 投稿・コメント添付とプロフィール画像の静的配信
	if deps.PublicFileDir != "" {
		fileServer := http.StripPrefix(publicFilePrefix, http.FileServer(http.Dir(deps.PublicFileDir)))
		r.Get(publicFilePrefix+"*", fileServer.ServeHTTP)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{
			CookieSecure: deps.CookieSecure,
			CookieDomain: deps.CookieDomain,
		}))

		write := deps.RateLimiter.WriteMiddleware()

		// ユーザー管理
		r.Route("/api/user", func(r chi.Router) {
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.Patch("/", userHandler.Update)
			r.Get("/search/{query}", userHandler.Search)
			r.Get("/{id}", userHandler.Get)
		})

		// 友達関係
		r.Route("/api/friendship", func(r chi.Router) {
			r.Get("/", friendshipHandler.List)
			r.With(write).Post("/add/{id}", friendshipHandler.Add)
			r.Delete("/remove/{id}", friendshipHandler.Remove)
		})

		// 投稿
		r.Route("/api/post", func(r chi.Router) {
			r.With(write).Post("/", postHandler.Create)
			r.Get("/feed", postHandler.Feed)
			r.Get("/ofUser/{id}", postHandler.OfUser)
			r.Post("/like/{id}", postHandler.Like)
			r.With(write).Post("/comment/{id}", postHandler.Comment)
			r.Delete("/comment/{id}", postHandler.DeleteComment)
			r.Get("/{id}/comments", postHandler.ListComments)
			r.Get("/{id}", postHandler.Get)
			r.Delete("/{id}", postHandler.Delete)
		})

		// 通知
		r.Route("/api/notification", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Get("/unread", notificationHandler.UnreadCount)
			r.Patch("/read/{id}", notificationHandler.MarkRead)
		})

		// メッセージ
		r.Route("/api/message", func(r chi.Router) {
			r.With(write).Post("/", messageHandler.Send)
			r.Get("/chats", messageHandler.Chats)
			r.Get("/unread", messageHandler.UnreadCount)
			r.Get("/{id}", messageHandler.Thread)
		})

		// メッセージ添付ファイル（当事者のみ）
		r.Get("/api/private/{file}", privateHandler.Serve)
	})

	return r
}
