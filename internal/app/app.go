package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/openbook/internal/auth"
	"github.com/hitoshi/openbook/internal/config"
	"github.com/hitoshi/openbook/internal/database"
	"github.com/hitoshi/openbook/internal/filestore"
	"github.com/hitoshi/openbook/internal/friendship"
	"github.com/hitoshi/openbook/internal/handler"
	"github.com/hitoshi/openbook/internal/logger"
	"github.com/hitoshi/openbook/internal/message"
	"github.com/hitoshi/openbook/internal/metrics"
	"github.com/hitoshi/openbook/internal/middleware"
	"github.com/hitoshi/openbook/internal/notification"
	"github.com/hitoshi/openbook/internal/post"
	"github.com/hitoshi/openbook/internal/realtime"
	"github.com/hitoshi/openbook/internal/repository"
	"github.com/hitoshi/openbook/internal/security"
	"github.com/hitoshi/openbook/internal/user"
	"github.com/hitoshi/openbook/internal/worker"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	friendshipRepo := repository.NewPostgresFriendshipRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)
	messageRepo := repository.NewPostgresMessageRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)

	// 3. メトリクスとファイルストアの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	store, err := filestore.New(cfg.PublicFileDir, cfg.PrivateFileDir)
	if err != nil {
		return fmt.Errorf("failed to init file store: %w", err)
	}

	// 4. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 5. リアルタイムチャネルの初期化
	hub := realtime.NewHub(sessionRepo, collector, cfg.CORSAllowedOrigin)
	defer hub.Close()

	// 6. ドメインサービスの初期化
	authService := auth.NewService(
		userRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	notificationService := notification.NewService(notificationRepo, hub, collector)
	friendshipService := friendship.NewService(userRepo, friendshipRepo, notificationService)

	messageService := message.NewService(
		messageRepo, friendshipRepo, sanitizer, hub, collector,
	)

	postService := post.NewService(
		postRepo, userRepo, friendshipService, notificationService,
		sanitizer, store, collector,
	)

	avatarFetcher := user.NewAvatarFetcher(ssrfGuard, store, cfg.AvatarFetchTimeout, cfg.AvatarMaxSize)
	userService := user.NewService(userRepo, friendshipService, sanitizer, avatarFetcher)

	// 7. ルーターの構築
	rateLimiterCfg := middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		WriteRate:       rate.Limit(float64(cfg.RateLimitWrite) / 60.0),
		WriteBurst:      cfg.RateLimitWrite,
		CleanupInterval: 5 * time.Minute,
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		UserService:         userService,
		FriendshipService:   friendshipService,
		PostService:         postService,
		NotificationService: notificationService,
		MessageService:      messageService,
		MessageFileFinder:   messageRepo,

		FileStore:     store,
		PrivateFiles:  store,
		PublicFileDir: store.PublicDir(),

		RealtimeHandler:  hub,
		MetricsHandler:   metrics.Handler(registry),
		MetricsCollector: collector,

		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,

		ResultsPerPage: cfg.ResultsPerPage,
	}

	router := handler.NewRouter(deps)

	// 8. バックグラウンドジョブの起動（期限切れセッションの削除）
	scheduler := worker.NewScheduler(slog.Default(), worker.NewSessionCleanupJob(db, slog.Default()))
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()
	go scheduler.Start(jobCtx, time.Hour)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
