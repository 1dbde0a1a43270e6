package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/secrets/internal/metrics"
	"github.com/hitoshi/secrets/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Sessions SessionManagerInterface
	CSRF     middleware.CSRFConfig
	Logger   *slog.Logger
	Metrics  metrics.MetricsCollector

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// シークレット
	SecretService SecretServiceInterface

	// ページ描画
	Renderer PageRenderer

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler // nilなら/metricsを公開しない
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Session(LoadAndSave) → Identity → Logging → CSRF
//
// /health と /metrics はセッションを読み込まない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	pageHandler := NewPageHandler(deps.Renderer, deps.AuthService.Providers())
	authHandler := NewAuthHandler(deps.AuthService, deps.Sessions, deps.AuthConfig)
	secretHandler := NewSecretHandler(deps.SecretService, deps.Sessions, deps.Renderer)

	// --- ページ ---
	r.Group(func(r chi.Router) {
		r.Use(deps.Sessions.LoadAndSave)
		r.Use(middleware.NewIdentityMiddleware(deps.Sessions))
		r.Use(middleware.NewLoggingMiddleware(logger, mc))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.Get("/", pageHandler.Home)
		r.Get(pathLogin, pageHandler.Login)
		r.Get(pathRegister, pageHandler.Register)
		r.Get(pathSecrets, secretHandler.List)
		r.With(middleware.RequireAuth).Get(pathSubmit, pageHandler.Submit)

		r.Post(pathSubmit, secretHandler.Submit)
		r.Post(pathRegister, authHandler.Register)
		r.Post(pathLogin, authHandler.Login)
		r.Get("/logout", authHandler.Logout)

		// 外部IdP（/auth/google, /auth/facebook）
		r.Route("/auth/{provider}", func(r chi.Router) {
			r.Get("/", authHandler.BeginOAuth)
			r.Get("/secrets", authHandler.OAuthCallback)
		})
	})

	return r
}
