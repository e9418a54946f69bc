package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/scimbridge/internal/metrics"
	"github.com/hitoshi/scimbridge/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter

	UserService   UserSyncService
	DomainService DomainService

	// ヘルスチェック用。nil可。
	DB *sql.DB

	// Prometheusスクレイプ用。nilの場合/metricsは公開されない。
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// /healthzと/metricsはレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	userHandler := NewUserHandler(deps.UserService)
	domainHandler := NewDomainHandler(deps.DomainService)

	// --- 運用ルート（レート制限なし） ---

	r.Get("/healthz", healthzHandler(deps.DB))

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- APIルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/users", func(r chi.Router) {
			// 登録・削除には登録専用レート制限を追加
			r.With(deps.RateLimiter.RegistrationMiddleware()).Post("/", userHandler.Register)

			r.Get("/count", userHandler.Count)

			r.Route("/{username}", func(r chi.Router) {
				r.Get("/", userHandler.Lookup)
				r.Post("/validate", userHandler.Validate)
				r.With(deps.RateLimiter.RegistrationMiddleware()).Delete("/", userHandler.Remove)
				r.Put("/attributes/{kind}", userHandler.UpdateAttribute)
			})
		})

		r.Route("/api/domain", func(r chi.Router) {
			r.Post("/", domainHandler.Provision)
			r.Delete("/", domainHandler.Remove)
			r.Get("/status", domainHandler.Status)
		})
	})

	return r
}

// healthzHandler はヘルスチェックハンドラーを返す。
// DBが渡されている場合は疎通も確認する。
func healthzHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	}
}
