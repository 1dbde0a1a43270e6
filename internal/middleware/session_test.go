package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/secrets/internal/session"
)

// --- モック定義 ---

type mockIdentitySource struct {
	currentFn func(ctx context.Context) (session.Identity, bool)
}

func (m *mockIdentitySource) Current(ctx context.Context) (session.Identity, bool) {
	if m.currentFn != nil {
		return m.currentFn(ctx)
	}
	return session.Identity{}, false
}

var _ IdentitySource = (*mockIdentitySource)(nil)
var _ IdentitySource = (*session.Manager)(nil)

func loggedInAs(id, username string) *mockIdentitySource {
	return &mockIdentitySource{
		currentFn: func(_ context.Context) (session.Identity, bool) {
			return session.Identity{ID: id, Username: username}, true
		},
	}
}

// --- テスト ---

func TestIdentityMiddleware_Authenticated_InjectsIdentity(t *testing.T) {
	mw := NewIdentityMiddleware(loggedInAs("user-123", "alice"))

	var captured session.Identity
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Error("expected identity in context")
		}
		captured = identity
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/secrets", nil))

	if captured != (session.Identity{ID: "user-123", Username: "alice"}) {
		t.Errorf("identity = %+v", captured)
	}
}

func TestIdentityMiddleware_Anonymous_PassesThrough(t *testing.T) {
	mw := NewIdentityMiddleware(&mockIdentitySource{})

	handlerCalled := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if _, err := UserIDFromContext(r.Context()); err == nil {
			t.Error("anonymous request must not carry a user id")
		}
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if !handlerCalled {
		t.Fatal("handler should have been called for anonymous request")
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRequireAuth_Anonymous_RedirectsToLogin(t *testing.T) {
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for anonymous request")
	}))

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(method, "/submit", nil))

			if w.Code != http.StatusFound {
				t.Errorf("status = %d, want %d", w.Code, http.StatusFound)
			}
			if loc := w.Header().Get("Location"); loc != LoginPath {
				t.Errorf("Location = %q, want %q", loc, LoginPath)
			}
		})
	}
}

func TestRequireAuth_Authenticated_CallsNext(t *testing.T) {
	handlerCalled := false
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/submit", nil)
	req = req.WithContext(ContextWithIdentity(req.Context(), session.Identity{ID: "u-1"}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Fatal("handler should have been called")
	}
}

func TestIdentityFromContext_EmptyID(t *testing.T) {
	ctx := ContextWithIdentity(context.Background(), session.Identity{Username: "no-id"})
	if _, ok := IdentityFromContext(ctx); ok {
		t.Error("identity without id must be treated as anonymous")
	}
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
}
