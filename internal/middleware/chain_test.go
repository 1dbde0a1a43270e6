package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// TestMiddlewareChain_RecoveryCatchesPanic はchiルーター上でpanicが500に変換されることを検証する。
func TestMiddlewareChain_RecoveryCatchesPanic(t *testing.T) {
	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware())
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("something went wrong")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestRecoveryMiddleware_RepanicsAbortHandler(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestSecurityHeadersMiddleware_SetsHeaders(t *testing.T) {
	handler := NewSecurityHeadersMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": contentSecurityPolicy,
		"Cache-Control":           "no-store",
	}
	for header, value := range want {
		if got := w.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
}

// TestMiddlewareChain_IdentityThenRequireAuth は本番と同じ順序で
// 認証済みリクエストがログに user_id 付きで記録されることを検証する。
func TestMiddlewareChain_IdentityThenRequireAuth(t *testing.T) {
	var buf bytes.Buffer

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware())
	r.Use(NewIdentityMiddleware(loggedInAs("u-9", "zoe")))
	r.Use(NewLoggingMiddleware(newJSONLogger(&buf), nil))
	r.With(RequireAuth).Get("/submit", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/submit", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if entry := decodeEntry(t, &buf); entry["user_id"] != "u-9" {
		t.Errorf("user_id = %v, want u-9", entry["user_id"])
	}
}

func TestMiddlewareChain_AnonymousSubmitRedirects(t *testing.T) {
	r := chi.NewRouter()
	r.Use(NewIdentityMiddleware(&mockIdentitySource{}))
	r.With(RequireAuth).Get("/submit", func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/submit", nil))

	if w.Code != http.StatusFound || w.Header().Get("Location") != LoginPath {
		t.Errorf("got %d %q, want 302 %q", w.Code, w.Header().Get("Location"), LoginPath)
	}
}
