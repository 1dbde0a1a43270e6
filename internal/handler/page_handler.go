package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/secrets/internal/middleware"
	"github.com/hitoshi/secrets/internal/view"
)

// PageRenderer はHTMLページを描画するインターフェース。view.Rendererが実装する。
type PageRenderer interface {
	Render(w http.ResponseWriter, status int, name string, data view.Data) error
}

// PageHandler は入力フォームなどの静的なページを描画するハンドラー。
type PageHandler struct {
	renderer  PageRenderer
	providers []string
}

// NewPageHandler はPageHandlerを生成する。providersはログイン画面に表示するIdP名。
func NewPageHandler(renderer PageRenderer, providers []string) *PageHandler {
	return &PageHandler{
		renderer:  renderer,
		providers: providers,
	}
}

// Home はトップページを描画する。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, view.PageHome, "Secrets")
}

// Login はログインフォームを描画する。
// GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, view.PageLogin, "Log in")
}

// Register は登録フォームを描画する。
// GET /register
func (h *PageHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, view.PageRegister, "Register")
}

// Submit はシークレット投稿フォームを描画する。RequireAuthの内側に置く。
// GET /submit
func (h *PageHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, view.PageSubmit, "Submit a secret")
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, page, title string) {
	data := newPageData(r, title)
	data.Providers = h.providers
	renderPage(w, r, h.renderer, page, data)
}

// newPageData はリクエストコンテキストからログイン中ユーザーとCSRFトークンを取り出す。
func newPageData(r *http.Request, title string) view.Data {
	data := view.Data{
		Title:     title,
		CSRFToken: middleware.CSRFToken(r.Context()),
	}
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		data.Identity = &identity
	}
	return data
}

func renderPage(w http.ResponseWriter, r *http.Request, renderer PageRenderer, page string, data view.Data) {
	if err := renderer.Render(w, http.StatusOK, page, data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", page),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
