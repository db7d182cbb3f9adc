package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/coliana/internal/metrics"
	"github.com/hitoshi/coliana/internal/middleware"
	"github.com/hitoshi/coliana/internal/options"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger   *slog.Logger
	Registry *options.Registry

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter // nilの場合はレート制限なし
	Recorder          metrics.Recorder
	MetricsHandler    http.Handler // nilの場合は/metricsを公開しない

	// ヘルスチェック（nilの場合は常に200）
	HealthChecker HealthChecker

	// サービス
	IntakeService  IntakeService
	ProfileService ProfileService
	WebCalls       WebCallCreator
	Submission     SubmissionConfig
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Recovery → SecurityHeaders → CORS → RateLimit(POSTのみ)
//
// /healthと/metricsはCORSとレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Recorder))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.Get("/health", NewHealthHandler(deps.HealthChecker, deps.Logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	submission := NewSubmissionHandler(
		deps.IntakeService, deps.ProfileService, deps.WebCalls,
		deps.Recorder, deps.Logger, deps.Submission,
	)
	query := NewQueryHandler(deps.ProfileService, deps.Registry, deps.Logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.SubmissionMiddleware())
		}

		// プリフライトはCORSミドルウェアが204で応答する
		r.Options("/", func(w http.ResponseWriter, r *http.Request) {})
		r.Get("/", query.Query)
		r.Post("/", submission.Submit)
	})

	return r
}
