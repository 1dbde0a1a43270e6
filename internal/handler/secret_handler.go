package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/secrets/internal/middleware"
	"github.com/hitoshi/secrets/internal/model"
	"github.com/hitoshi/secrets/internal/view"
)

// SecretServiceInterface はシークレットハンドラーが必要とするサービスインターフェース。
type SecretServiceInterface interface {
	// SubmitSecret はユーザーのシークレットを上書きする。
	SubmitSecret(ctx context.Context, userID, secret string) error
	// ListSecrets はシークレットを持つ全ユーザーのシークレットを返す。
	ListSecrets(ctx context.Context) ([]model.SecretEntry, error)
}

// SessionDestroyer は現在のセッションを破棄する。
type SessionDestroyer interface {
	Destroy(ctx context.Context) error
}

// SecretHandler はシークレットの一覧と投稿のHTTPハンドラー。
type SecretHandler struct {
	service  SecretServiceInterface
	sessions SessionDestroyer
	renderer PageRenderer
}

// NewSecretHandler はSecretHandlerを生成する。
func NewSecretHandler(service SecretServiceInterface, sessions SessionDestroyer, renderer PageRenderer) *SecretHandler {
	return &SecretHandler{
		service:  service,
		sessions: sessions,
		renderer: renderer,
	}
}

// List はシークレット一覧を描画する。認証不要。
// ストアの読み込みに失敗した場合は空の一覧を描画する。
// GET /secrets
func (h *SecretHandler) List(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r, "Secrets")

	entries, err := h.service.ListSecrets(r.Context())
	if err != nil {
		slog.Error("failed to list secrets", slog.String("error", err.Error()))
		entries = nil
	}

	data.Secrets = make([]string, 0, len(entries))
	for _, e := range entries {
		data.Secrets = append(data.Secrets, e.Secret)
	}

	renderPage(w, r, h.renderer, view.PageSecrets, data)
}

// Submit はログイン中ユーザーのシークレットを上書きする。
// POST /submit
func (h *SecretHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		slog.Warn("secret submit without session")
		http.Redirect(w, r, pathLogin, http.StatusFound)
		return
	}

	slog.Info("secret submit requested", slog.String("user_id", userID))

	if err := h.service.SubmitSecret(r.Context(), userID, r.PostFormValue("secret")); err != nil {
		switch {
		case errors.Is(err, model.ErrAuthenticationRequired):
			slog.Warn("secret submit for unknown user",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			// 削除済みユーザーのセッションは残さない
			if err := h.sessions.Destroy(r.Context()); err != nil {
				slog.Error("failed to destroy stale session", slog.String("error", err.Error()))
			}
			http.Redirect(w, r, pathLogin, http.StatusFound)
		case errors.Is(err, model.ErrInvalidInput):
			slog.Warn("empty secret submitted", slog.String("user_id", userID))
			http.Redirect(w, r, pathSubmit, http.StatusFound)
		default:
			slog.Error("failed to submit secret",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			http.Redirect(w, r, pathSubmit, http.StatusFound)
		}
		return
	}

	http.Redirect(w, r, pathSecrets, http.StatusFound)
}
