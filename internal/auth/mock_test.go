package auth

import (
	"context"

	"github.com/hitoshi/secrets/internal/model"
	"github.com/hitoshi/secrets/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	createFn                 func(ctx context.Context, user *model.User) error
	findByIDFn               func(ctx context.Context, id string) (*model.User, error)
	findByUsernameFn         func(ctx context.Context, username string) ([]*model.User, error)
	findOrCreateByProviderFn func(ctx context.Context, identity model.ExternalIdentity) (*model.User, bool, error)
	updateSecretFn           func(ctx context.Context, userID, secret string) error
	listWithSecretsFn        func(ctx context.Context) ([]model.SecretEntry, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) ([]*model.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) FindOrCreateByProvider(ctx context.Context, identity model.ExternalIdentity) (*model.User, bool, error) {
	if m.findOrCreateByProviderFn != nil {
		return m.findOrCreateByProviderFn(ctx, identity)
	}
	return nil, false, nil
}

func (m *mockUserRepo) UpdateSecret(ctx context.Context, userID, secret string) error {
	if m.updateSecretFn != nil {
		return m.updateSecretFn(ctx, userID, secret)
	}
	return nil
}

func (m *mockUserRepo) ListWithSecrets(ctx context.Context) ([]model.SecretEntry, error) {
	if m.listWithSecretsFn != nil {
		return m.listWithSecretsFn(ctx)
	}
	return nil, nil
}

type mockOAuthProvider struct {
	name          string
	authCodeURLFn func(state string) string
	exchangeFn    func(ctx context.Context, code string) (*model.ExternalIdentity, error)
}

func (m *mockOAuthProvider) Name() string {
	return m.name
}

func (m *mockOAuthProvider) AuthCodeURL(state string) string {
	if m.authCodeURLFn != nil {
		return m.authCodeURLFn(state)
	}
	return "https://idp.example.com/consent?state=" + state
}

func (m *mockOAuthProvider) Exchange(ctx context.Context, code string) (*model.ExternalIdentity, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code)
	}
	return &model.ExternalIdentity{Provider: m.name, ProviderUserID: "ext-" + code}, nil
}

type mockStates struct {
	issueFn  func(provider string) (string, error)
	verifyFn func(state, provider string) error
}

func (m *mockStates) Issue(provider string) (string, error) {
	if m.issueFn != nil {
		return m.issueFn(provider)
	}
	return "state-" + provider, nil
}

func (m *mockStates) Verify(state, provider string) error {
	if m.verifyFn != nil {
		return m.verifyFn(state, provider)
	}
	if state != "state-"+provider {
		return model.ErrInvalidState
	}
	return nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)
var _ StateIssuer = (*mockStates)(nil)
