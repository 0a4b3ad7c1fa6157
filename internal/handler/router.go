package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/foodorder/internal/cart"
	"github.com/hitoshi/foodorder/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通を確認する依存先。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ミドルウェア依存
	SessionFinder middleware.SessionFinder
	RateLimiter   *middleware.RateLimiter
	CSRFConfig    middleware.CSRFConfig
	Logger        *slog.Logger

	// 画面
	Renderer *Renderer
	Carts    cart.Store

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// レストラン・注文・支払い方法
	Catalog        CatalogClient
	OrderService   OrderServiceInterface
	PaymentService PaymentServiceInterface
}

// NewRouter は全画面のルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CSRF → Session → RateLimit(General)
//
// /health と /metrics はCSRF以降のチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.Renderer, deps.AuthConfig)
	restaurantHandler := NewRestaurantHandler(deps.Catalog, deps.Carts, deps.Renderer)
	cartHandler := NewCartHandler(deps.Carts, deps.OrderService, deps.Renderer)
	orderHandler := NewOrderHandler(deps.OrderService, deps.PaymentService, deps.Carts, deps.Renderer)
	paymentHandler := NewPaymentHandler(deps.PaymentService, deps.Carts, deps.Renderer)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// --- 認証不要のルート ---
		r.Get("/", authHandler.Root)
		r.Get("/login", authHandler.LoginPage)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Session → RateLimit(General)
		r.Route("/dashboard", func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			// レストラン
			r.Get("/", restaurantHandler.List)
			r.Route("/restaurants", func(r chi.Router) {
				r.Get("/", restaurantHandler.List)
				r.Post("/{restaurantID}/menu/{itemID}/add", restaurantHandler.AddItem)
				r.Post("/{restaurantID}/menu/{itemID}/decrement", restaurantHandler.DecrementItem)
			})

			// カート（注文作成は専用レート制限を追加）
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.Show)
				r.Post("/items/{itemID}", cartHandler.UpdateQuantity)
				r.Post("/items/{itemID}/remove", cartHandler.Remove)
				r.With(deps.RateLimiter.OrderMiddleware()).Post("/order", cartHandler.PlaceOrder)
			})

			// 注文
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", orderHandler.List)
				r.Post("/{orderID}/cancel", orderHandler.Cancel)
				r.With(deps.RateLimiter.OrderMiddleware()).Post("/{orderID}/checkout", orderHandler.Checkout)
			})

			// 支払い方法（管理者のみ）
			r.Route("/payments", func(r chi.Router) {
				r.Get("/", paymentHandler.Show)
				r.Post("/", paymentHandler.Save)
				r.Post("/{methodID}", paymentHandler.Save)
			})
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}

		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				status = http.StatusServiceUnavailable
				body["status"] = "unavailable"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}
