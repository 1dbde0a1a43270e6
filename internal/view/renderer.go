// Package view はサーバーレンダリングのHTMLページを提供する。
// テンプレートはバイナリに埋め込む。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/hitoshi/secrets/internal/model"
	"github.com/hitoshi/secrets/internal/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

// ページ名。
const (
	PageHome     = "home"
	PageLogin    = "login"
	PageRegister = "register"
	PageSecrets  = "secrets"
	PageSubmit   = "submit"
)

var pages = []string{PageHome, PageLogin, PageRegister, PageSecrets, PageSubmit}

// Data はテンプレートに渡す値。
type Data struct {
	Title     string
	Identity  *session.Identity
	CSRFToken string
	Providers []string
	Secrets   []string
}

// Renderer はページ名ごとに解析済みのテンプレートを保持する。
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"providerName": providerName,
}

// NewRenderer は埋め込みテンプレートを解析してRendererを生成する。
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.New(name).Funcs(funcs).ParseFS(templatesFS,
			"templates/layout.html",
			"templates/providers.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render はページを描画する。途中で失敗した場合に部分的なHTMLを返さないよう、
// バッファに描画してから書き込む。
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data Data) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func providerName(provider string) string {
	switch provider {
	case model.ProviderGoogle:
		return "Google"
	case model.ProviderFacebook:
		return "Facebook"
	default:
		return provider
	}
}
