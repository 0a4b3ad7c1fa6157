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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/foodorder/internal/api"
	"github.com/hitoshi/foodorder/internal/auth"
	"github.com/hitoshi/foodorder/internal/cart"
	"github.com/hitoshi/foodorder/internal/config"
	"github.com/hitoshi/foodorder/internal/database"
	"github.com/hitoshi/foodorder/internal/handler"
	"github.com/hitoshi/foodorder/internal/logger"
	"github.com/hitoshi/foodorder/internal/metrics"
	"github.com/hitoshi/foodorder/internal/middleware"
	"github.com/hitoshi/foodorder/internal/order"
	"github.com/hitoshi/foodorder/internal/payment"
	"github.com/hitoshi/foodorder/internal/repository"
	"github.com/hitoshi/foodorder/internal/security"
	"github.com/hitoshi/foodorder/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

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
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// 期限切れセッションのクリーンアップも同じプロセスで実行する。
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

	// 2. リポジトリ・カートストアの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)

	carts, closeCarts, err := openCartStore(cfg)
	if err != nil {
		return err
	}
	defer closeCarts()

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. バックエンドAPIクライアントの初期化
	apiClient := api.NewClient(
		&http.Client{Timeout: cfg.APITimeout},
		slog.Default(),
		cfg.APIBaseURL,
		collector,
	)

	// 5. ドメインサービスの初期化
	authService := auth.NewService(
		apiClient, sessionRepo, carts, collector,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	tracker := order.NewTracker(order.DefaultReconcileWindow, collector)
	authService.Forgetter = tracker
	orderService := order.NewService(apiClient, carts, tracker, collector)
	paymentService := payment.NewService(apiClient)

	// 6. 画面テンプレートの初期化
	renderer, err := handler.NewRenderer(security.NewContentSanitizer())
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	// 7. ルーターの構築
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = middleware.PerMinute(cfg.RateLimitGeneral)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.OrderRate = middleware.PerMinute(cfg.RateLimitOrder)
	rateLimiterCfg.OrderBurst = cfg.RateLimitOrder
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		SessionFinder: sessionRepo,
		RateLimiter:   rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger: slog.Default(),

		Renderer: renderer,
		Carts:    carts,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		Catalog:        apiClient,
		OrderService:   orderService,
		PaymentService: paymentService,
	}

	router := handler.NewRouter(deps)

	// 8. クリーンアップジョブの起動
	// 確認待ち状態とメモリ上のカートはこのプロセスにしかないため同じプロセスで実行する
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanupJob := cleanup.NewCleanupJob(sessionRepo, carts, slog.Default())
	cleanupJob.Tracker = tracker
	cleanupJob.Recorder = collector
	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		if err := cleanupJob.Start(ctx, cfg.SessionCleanupSchedule); err != nil {
			slog.Error("cleanup scheduler failed", slog.String("error", err.Error()))
		}
	}()

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.APITimeout*2 + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down web server...")

	cancel()
	<-cleanupDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションと、Redisに保持されたカートを定期的に削除する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリ・カートストアの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)

	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL is not set; worker only deletes sessions, carts stay in each server process")
	}
	carts, closeCarts, err := openCartStore(cfg)
	if err != nil {
		return err
	}
	defer closeCarts()

	cleanupJob := cleanup.NewCleanupJob(sessionRepo, carts, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.String("schedule", cfg.SessionCleanupSchedule),
	)

	// クリーンアップスケジューラをメインgoroutineで実行（ブロッキング）
	if err := cleanupJob.Start(ctx, cfg.SessionCleanupSchedule); err != nil {
		return fmt.Errorf("cleanup scheduler failed: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// openCartStore はREDIS_URLが設定されていればRedis、なければメモリのカートストアを返す。
func openCartStore(cfg *config.Config) (cart.Store, func(), error) {
	if cfg.RedisURL == "" {
		slog.Info("using in-memory cart store")
		return cart.NewMemoryStore(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established", slog.String("addr", opts.Addr))
	ttl := time.Duration(cfg.SessionMaxAge) * time.Second
	return cart.NewRedisStore(client, ttl), func() { client.Close() }, nil
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
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
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
