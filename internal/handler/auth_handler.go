// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/secrets/internal/auth"
	"github.com/hitoshi/secrets/internal/model"
	"github.com/hitoshi/secrets/internal/session"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600 // 10分

	pathHome     = "/"
	pathLogin    = "/login"
	pathRegister = "/register"
	pathSecrets  = "/secrets"
	pathSubmit   = "/submit"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Providers() []string
	Register(ctx context.Context, username, password string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*model.User, error)
	BeginOAuth(provider string) (authURL, state string, err error)
	CompleteOAuth(ctx context.Context, provider string, cb auth.Callback) (*model.User, error)
}

// SessionManagerInterface はセッションの開始・破棄を行うインターフェース。
// session.Managerが実装する。
type SessionManagerInterface interface {
	LoadAndSave(next http.Handler) http.Handler
	Establish(ctx context.Context, identity session.Identity) error
	Current(ctx context.Context) (session.Identity, bool)
	Destroy(ctx context.Context) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// AuthHandler はローカル認証とOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionManagerInterface
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, sessions SessionManagerInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		config:   config,
	}
}

// Register はローカルアカウントを作成してログインさせる。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	slog.Info("register requested", slog.String("username", username))

	user, err := h.service.Register(r.Context(), username, r.PostFormValue("password"))
	if err != nil {
		logAuthError("registration failed", err)
		http.Redirect(w, r, pathRegister, http.StatusFound)
		return
	}

	if err := h.establish(r.Context(), user); err != nil {
		slog.Error("failed to start session after registration",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, pathRegister, http.StatusFound)
		return
	}

	http.Redirect(w, r, pathSecrets, http.StatusFound)
}

// Login はユーザー名とパスワードでログインする。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	slog.Info("login requested", slog.String("username", username))

	user, err := h.service.Login(r.Context(), username, r.PostFormValue("password"))
	if err != nil {
		logAuthError("login failed", err)
		http.Redirect(w, r, pathLogin, http.StatusFound)
		return
	}

	if err := h.establish(r.Context(), user); err != nil {
		slog.Error("failed to start session after login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, pathLogin, http.StatusFound)
		return
	}

	http.Redirect(w, r, pathSecrets, http.StatusFound)
}

// Logout はセッションを破棄する。未ログインでも安全に呼び出せる。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	slog.Info("logout requested")

	if err := h.sessions.Destroy(r.Context()); err != nil {
		// 破棄に失敗してもトップへ戻す
		slog.Error("failed to logout", slog.String("error", err.Error()))
	}

	http.Redirect(w, r, pathHome, http.StatusFound)
}

// BeginOAuth は外部IdPの同意画面へリダイレクトする。
// GET /auth/{provider}
func (h *AuthHandler) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	slog.Info("oauth login requested", slog.String("provider", provider))

	authURL, state, err := h.service.BeginOAuth(provider)
	if err != nil {
		if errors.Is(err, model.ErrUnknownProvider) {
			http.NotFound(w, r)
			return
		}
		slog.Error("failed to begin oauth",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, h.stateCookie(state, oauthStateMaxAge))

	http.Redirect(w, r, authURL, http.StatusFound)
}

// OAuthCallback はOAuthコールバックを処理する。失敗時はすべて/loginへリダイレクトする。
// GET /auth/{provider}/secrets?code=xxx&state=yyy
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	slog.Info("oauth callback received", slog.String("provider", provider))

	query := r.URL.Query()
	cb := auth.Callback{
		Code:  query.Get("code"),
		State: query.Get("state"),
		Error: query.Get("error"),
	}
	if c, err := r.Cookie(oauthStateCookie); err == nil {
		cb.CookieState = c.Value
	}

	// stateは1回限り
	http.SetCookie(w, h.stateCookie("", -1))

	user, err := h.service.CompleteOAuth(r.Context(), provider, cb)
	if err != nil {
		if errors.Is(err, model.ErrUnknownProvider) {
			http.NotFound(w, r)
			return
		}
		logAuthError("oauth callback failed", err, slog.String("provider", provider))
		http.Redirect(w, r, pathLogin, http.StatusFound)
		return
	}

	if err := h.establish(r.Context(), user); err != nil {
		slog.Error("failed to start session after oauth",
			slog.String("provider", provider),
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, pathLogin, http.StatusFound)
		return
	}

	http.Redirect(w, r, pathSecrets, http.StatusFound)
}

func (h *AuthHandler) establish(ctx context.Context, user *model.User) error {
	return h.sessions.Establish(ctx, session.Identity{
		ID:       user.ID,
		Username: user.Username,
	})
}

func (h *AuthHandler) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     oauthStateCookie,
		Value:    value,
		Path:     "/auth",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// logAuthError は利用者起因の失敗をWarn、それ以外をErrorで記録する。
func logAuthError(msg string, err error, attrs ...any) {
	attrs = append(attrs, slog.String("error", err.Error()))
	if auth.IsUserError(err) {
		slog.Warn(msg, attrs...)
		return
	}
	slog.Error(msg, attrs...)
}
