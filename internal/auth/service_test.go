package auth

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/secrets/internal/metrics"
	"github.com/hitoshi/secrets/internal/model"
)

var _ metrics.MetricsCollector = (*recordingMetrics)(nil)

// recordingMetrics は記録された呼び出しを保持するMetricsCollector。
type recordingMetrics struct {
	logins         []string
	registrations  []string
	oauthCallbacks []string
}

func (m *recordingMetrics) RecordLogin(method, result string) {
	m.logins = append(m.logins, method+":"+result)
}
func (m *recordingMetrics) RecordRegistration(result string) {
	m.registrations = append(m.registrations, result)
}
func (m *recordingMetrics) RecordOAuthCallback(provider, result string) {
	m.oauthCallbacks = append(m.oauthCallbacks, provider+":"+result)
}
func (m *recordingMetrics) RecordSecretSubmitted()             {}
func (m *recordingMetrics) RecordHTTPStatus(int)               {}
func (m *recordingMetrics) RecordRequestLatency(time.Duration) {}

func TestService_Providers_Sorted(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockStates{}, nil,
		&mockOAuthProvider{name: "google"},
		&mockOAuthProvider{name: "facebook"},
	)

	if got := svc.Providers(); !reflect.DeepEqual(got, []string{"facebook", "google"}) {
		t.Errorf("Providers() = %v", got)
	}
}

func TestService_Register_HashesPassword(t *testing.T) {
	var stored *model.User
	repo := &mockUserRepo{
		createFn: func(_ context.Context, user *model.User) error {
			user.ID = "u-new"
			stored = user
			return nil
		},
	}
	rm := &recordingMetrics{}
	svc := NewService(repo, &mockStates{}, rm)

	user, err := svc.Register(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if user.ID != "u-new" || user.Username != "alice" {
		t.Errorf("user = %+v", user)
	}
	if user.PasswordHash != "" {
		t.Error("returned user must not carry the password hash")
	}
	if !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
		t.Errorf("stored hash = %q, want argon2id PHC string", stored.PasswordHash)
	}
	if ok, _ := VerifyPassword("pw", stored.PasswordHash); !ok {
		t.Error("stored hash does not verify")
	}
	if !reflect.DeepEqual(rm.registrations, []string{"success"}) {
		t.Errorf("registrations = %v", rm.registrations)
	}
}

func TestService_Register_Failures(t *testing.T) {
	storeErr := model.NewStoreError("create user", errors.New("disk full"))
	repo := &mockUserRepo{
		createFn: func(_ context.Context, _ *model.User) error { return storeErr },
	}
	rm := &recordingMetrics{}
	svc := NewService(repo, &mockStates{}, rm)

	if _, err := svc.Register(context.Background(), "", "pw"); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("empty username: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "bob", ""); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("empty password: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "bob", "pw"); !model.IsStoreFailure(err) {
		t.Errorf("expected store failure, got %v", err)
	}
	if len(rm.registrations) != 3 {
		t.Errorf("expected 3 failed registrations recorded, got %v", rm.registrations)
	}
}

func TestService_Login(t *testing.T) {
	hash := mustHash(t, "pw")
	repo := &mockUserRepo{
		findByUsernameFn: func(_ context.Context, username string) ([]*model.User, error) {
			return []*model.User{{ID: "u-1", Username: username, PasswordHash: hash}}, nil
		},
	}
	rm := &recordingMetrics{}
	svc := NewService(repo, &mockStates{}, rm)

	if _, err := svc.Login(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if _, err := svc.Login(context.Background(), "alice", "bad"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if !reflect.DeepEqual(rm.logins, []string{"local:success", "local:failure"}) {
		t.Errorf("logins = %v", rm.logins)
	}
}

func TestService_BeginOAuth(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockStates{}, nil, &mockOAuthProvider{name: "google"})

	authURL, state, err := svc.BeginOAuth("google")
	if err != nil {
		t.Fatalf("BeginOAuth() error: %v", err)
	}
	if state != "state-google" {
		t.Errorf("state = %q", state)
	}
	if !strings.Contains(authURL, "state=state-google") {
		t.Errorf("authURL = %q should carry the state", authURL)
	}

	if _, _, err := svc.BeginOAuth("github"); !errors.Is(err, model.ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestService_CompleteOAuth_Success(t *testing.T) {
	repo := &mockUserRepo{
		findOrCreateByProviderFn: func(_ context.Context, identity model.ExternalIdentity) (*model.User, bool, error) {
			if identity.ProviderUserID != "ext-abc" || identity.Provider != "google" {
				t.Errorf("unexpected identity %+v", identity)
			}
			return &model.User{ID: "u-g", GoogleID: strPtr(identity.ProviderUserID)}, true, nil
		},
	}
	rm := &recordingMetrics{}
	svc := NewService(repo, &mockStates{}, rm, &mockOAuthProvider{name: "google"})

	user, err := svc.CompleteOAuth(context.Background(), "google", Callback{
		Code:        "abc",
		State:       "state-google",
		CookieState: "state-google",
	})
	if err != nil {
		t.Fatalf("CompleteOAuth() error: %v", err)
	}
	if user.ID != "u-g" {
		t.Errorf("user.ID = %q, want u-g", user.ID)
	}
	if !reflect.DeepEqual(rm.oauthCallbacks, []string{"google:success"}) {
		t.Errorf("oauthCallbacks = %v", rm.oauthCallbacks)
	}
}

func TestService_CompleteOAuth_Failures(t *testing.T) {
	exchangeErr := errors.New("boom")
	tests := []struct {
		name     string
		provider string
		cb       Callback
		exchange func(ctx context.Context, code string) (*model.ExternalIdentity, error)
		wantErr  error
	}{
		{
			name:     "unknown provider",
			provider: "github",
			cb:       Callback{Code: "c", State: "state-github", CookieState: "state-github"},
			wantErr:  model.ErrUnknownProvider,
		},
		{
			name:     "consent denied",
			provider: "google",
			cb:       Callback{Error: "access_denied", State: "state-google", CookieState: "state-google"},
			wantErr:  model.ErrOAuthFailed,
		},
		{
			name:     "state missing",
			provider: "google",
			cb:       Callback{Code: "c", CookieState: "state-google"},
			wantErr:  model.ErrInvalidState,
		},
		{
			name:     "state does not match cookie",
			provider: "google",
			cb:       Callback{Code: "c", State: "state-google", CookieState: "other"},
			wantErr:  model.ErrInvalidState,
		},
		{
			name:     "state issued for another provider",
			provider: "google",
			cb:       Callback{Code: "c", State: "state-facebook", CookieState: "state-facebook"},
			wantErr:  model.ErrInvalidState,
		},
		{
			name:     "missing code",
			provider: "google",
			cb:       Callback{State: "state-google", CookieState: "state-google"},
			wantErr:  model.ErrOAuthFailed,
		},
		{
			name:     "exchange failure",
			provider: "google",
			cb:       Callback{Code: "c", State: "state-google", CookieState: "state-google"},
			exchange: func(_ context.Context, _ string) (*model.ExternalIdentity, error) {
				return nil, exchangeErr
			},
			wantErr: exchangeErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockUserRepo{
				findOrCreateByProviderFn: func(_ context.Context, _ model.ExternalIdentity) (*model.User, bool, error) {
					t.Fatal("store should not be called")
					return nil, false, nil
				},
			}
			svc := NewService(repo, &mockStates{}, nil, &mockOAuthProvider{name: "google", exchangeFn: tt.exchange})

			_, err := svc.CompleteOAuth(context.Background(), tt.provider, tt.cb)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestIsUserError(t *testing.T) {
	if !IsUserError(model.ErrInvalidCredentials) || !IsUserError(model.ErrInvalidInput) {
		t.Error("auth and input failures are user errors")
	}
	if IsUserError(model.NewStoreError("op", errors.New("x"))) {
		t.Error("store failures are not user errors")
	}
}
