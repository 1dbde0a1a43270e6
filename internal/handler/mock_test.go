package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hitoshi/secrets/internal/auth"
	"github.com/hitoshi/secrets/internal/model"
	"github.com/hitoshi/secrets/internal/session"
	"github.com/hitoshi/secrets/internal/view"
)

// --- AuthServiceInterface のモック ---

type mockAuthService struct {
	providers       []string
	registerFn      func(ctx context.Context, username, password string) (*model.User, error)
	loginFn         func(ctx context.Context, username, password string) (*model.User, error)
	beginOAuthFn    func(provider string) (string, string, error)
	completeOAuthFn func(ctx context.Context, provider string, cb auth.Callback) (*model.User, error)
}

func (m *mockAuthService) Providers() []string {
	return m.providers
}

func (m *mockAuthService) Register(ctx context.Context, username, password string) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, username, password)
	}
	return &model.User{ID: "user-1", Username: username}, nil
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*model.User, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return &model.User{ID: "user-1", Username: username}, nil
}

func (m *mockAuthService) BeginOAuth(provider string) (string, string, error) {
	if m.beginOAuthFn != nil {
		return m.beginOAuthFn(provider)
	}
	return "https://idp.example.com/authorize?state=state-" + provider, "state-" + provider, nil
}

func (m *mockAuthService) CompleteOAuth(ctx context.Context, provider string, cb auth.Callback) (*model.User, error) {
	if m.completeOAuthFn != nil {
		return m.completeOAuthFn(ctx, provider, cb)
	}
	return &model.User{ID: "user-" + provider, Username: provider + " user"}, nil
}

// --- SessionManagerInterface のモック ---

type mockSessions struct {
	established []session.Identity
	destroyed   int
	current     *session.Identity
	establishFn func(ctx context.Context, identity session.Identity) error
	destroyFn   func(ctx context.Context) error
}

func (m *mockSessions) LoadAndSave(next http.Handler) http.Handler {
	return next
}

func (m *mockSessions) Establish(ctx context.Context, identity session.Identity) error {
	if m.establishFn != nil {
		if err := m.establishFn(ctx, identity); err != nil {
			return err
		}
	}
	m.established = append(m.established, identity)
	return nil
}

func (m *mockSessions) Current(ctx context.Context) (session.Identity, bool) {
	if m.current == nil {
		return session.Identity{}, false
	}
	return *m.current, true
}

func (m *mockSessions) Destroy(ctx context.Context) error {
	m.destroyed++
	if m.destroyFn != nil {
		return m.destroyFn(ctx)
	}
	return nil
}

// --- SecretServiceInterface のモック ---

type mockSecretService struct {
	submitFn func(ctx context.Context, userID, secret string) error
	listFn   func(ctx context.Context) ([]model.SecretEntry, error)
}

func (m *mockSecretService) SubmitSecret(ctx context.Context, userID, secret string) error {
	if m.submitFn != nil {
		return m.submitFn(ctx, userID, secret)
	}
	return nil
}

func (m *mockSecretService) ListSecrets(ctx context.Context) ([]model.SecretEntry, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

// --- PageRenderer のモック ---

type mockRenderer struct {
	page string
	data view.Data
	err  error
}

func (m *mockRenderer) Render(w http.ResponseWriter, status int, name string, data view.Data) error {
	m.page = name
	m.data = data
	if m.err != nil {
		return m.err
	}
	w.WriteHeader(status)
	_, err := fmt.Fprintf(w, "page:%s", name)
	return err
}

// --- HealthChecker のモック ---

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

var errStoreDown = model.NewStoreError("test", errors.New("connection refused"))

// compile-time interface check
var (
	_ AuthServiceInterface    = (*mockAuthService)(nil)
	_ SessionManagerInterface = (*mockSessions)(nil)
	_ SecretServiceInterface  = (*mockSecretService)(nil)
	_ PageRenderer            = (*mockRenderer)(nil)
	_ HealthChecker           = (*mockHealthChecker)(nil)
)
