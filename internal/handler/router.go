package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nftopia/analytics/internal/middleware"
)

// HealthChecker はヘルスチェック時の疎通確認インターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はルーター構築に必要な依存関係。
type RouterDeps struct {
	HealthChecker    HealthChecker
	AuthHandler      *AuthHandler
	AnalyticsHandler *AnalyticsHandler
	TrackingHandler  *TrackingHandler
	SessionFinder    middleware.SessionFinder
	UserFinder       middleware.UserFinder
	RateLimiter      *middleware.RateLimiter
	Logger           *slog.Logger
	RequestRecorder  middleware.RequestRecorder
	AllowedOrigin    string
	CSRFConfig       middleware.CSRFConfig
}

// NewRouter はルートとミドルウェアを構成したルーターを返す。
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.AllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.RequestRecorder))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
				})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// 認証エンドポイント（セッション不要）
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", deps.AuthHandler.Login)
		r.Post("/logout", deps.AuthHandler.Logout)
		r.Get("/me", deps.AuthHandler.Me)
	})

	// トラッキングエンドポイント（ログイン必須、スタッフ権限不要）
	r.Route("/api/track", func(r chi.Router) {
		r.Use(NewTrackingAuthMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.TrackingMiddleware())
		r.Post("/wallet-connection", deps.TrackingHandler.TrackWalletConnection)
		r.Post("/page-view", deps.TrackingHandler.TrackPageView)
	})

	// 集計エンドポイント（スタッフ限定）
	r.Route("/api/analytics", func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewStaffMiddleware(deps.UserFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Get("/dashboard", deps.AnalyticsHandler.Dashboard)
		r.Get("/retention", deps.AnalyticsHandler.Retention)
		r.Get("/sessions", deps.AnalyticsHandler.Sessions)
		r.Get("/wallets", deps.AnalyticsHandler.Wallets)
		r.Get("/segments", deps.AnalyticsHandler.Segments)
		r.Get("/pages", deps.AnalyticsHandler.Pages)
	})

	return r
}
