package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hitoshi/secrets/internal/metrics"
	"github.com/hitoshi/secrets/internal/model"
	"github.com/hitoshi/secrets/internal/repository"
)

// StateIssuer はOAuth stateの発行と検証のインターフェース。
type StateIssuer interface {
	Issue(provider string) (string, error)
	Verify(state, provider string) error
}

// Callback はOAuthコールバックで受け取った値。
type Callback struct {
	Code  string
	State string
	// CookieState は認可リクエスト時にCookieへ保存したstate。
	CookieState string
	// Error はIdPが返したerrorパラメータ（同意拒否など）。
	Error string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users     repository.UserRepository
	verifier  *CredentialVerifier
	federator *Federator
	providers map[string]OAuthProvider
	states    StateIssuer
	metrics   metrics.MetricsCollector
}

// NewService はServiceを生成する。metricsがnilの場合は記録しない。
func NewService(
	users repository.UserRepository,
	states StateIssuer,
	mc metrics.MetricsCollector,
	providers ...OAuthProvider,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	byName := make(map[string]OAuthProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Service{
		users:     users,
		verifier:  NewCredentialVerifier(users),
		federator: NewFederator(users),
		providers: byName,
		states:    states,
		metrics:   mc,
	}
}

// Providers は有効なプロバイダー名を名前順で返す。
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register はローカルアカウントを作成する。
// ユーザー名は一意ではないため、既存ユーザーと同名でも作成する。
func (s *Service) Register(ctx context.Context, username, password string) (*model.User, error) {
	if username == "" || password == "" {
		s.metrics.RecordRegistration(metrics.ResultFailure)
		return nil, model.ErrInvalidInput
	}

	hash, err := HashPassword(password)
	if err != nil {
		s.metrics.RecordRegistration(metrics.ResultFailure)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.metrics.RecordRegistration(metrics.ResultFailure)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.RecordRegistration(metrics.ResultSuccess)
	slog.Info("user registered", slog.String("user_id", user.ID))

	return withoutHash(user), nil
}

// Login はユーザー名とパスワードを検証する。
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		s.metrics.RecordLogin(metrics.MethodLocal, metrics.ResultFailure)
		return nil, err
	}

	s.metrics.RecordLogin(metrics.MethodLocal, metrics.ResultSuccess)
	return user, nil
}

// BeginOAuth は同意画面へのURLと、Cookieに保存する署名済みstateを返す。
func (s *Service) BeginOAuth(provider string) (authURL, state string, err error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", "", model.ErrUnknownProvider
	}

	state, err = s.states.Issue(provider)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue oauth state: %w", err)
	}

	return p.AuthCodeURL(state), state, nil
}

// CompleteOAuth はコールバックを検証し、外部IDに対応するユーザーを返す（なければ作成する）。
func (s *Service) CompleteOAuth(ctx context.Context, provider string, cb Callback) (*model.User, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, model.ErrUnknownProvider
	}

	user, err := s.completeOAuth(ctx, p, cb)
	if err != nil {
		s.metrics.RecordOAuthCallback(provider, metrics.ResultFailure)
		s.metrics.RecordLogin(provider, metrics.ResultFailure)
		return nil, err
	}

	s.metrics.RecordOAuthCallback(provider, metrics.ResultSuccess)
	s.metrics.RecordLogin(provider, metrics.ResultSuccess)
	return user, nil
}

func (s *Service) completeOAuth(ctx context.Context, p OAuthProvider, cb Callback) (*model.User, error) {
	// 1. IdPがエラーを返した（同意拒否など）
	if cb.Error != "" {
		return nil, fmt.Errorf("provider returned error %q: %w", cb.Error, model.ErrOAuthFailed)
	}

	// 2. stateの検証（Cookieとの一致、署名、有効期限、プロバイダー）
	if cb.State == "" || cb.State != cb.CookieState {
		return nil, fmt.Errorf("state does not match cookie: %w", model.ErrInvalidState)
	}
	if err := s.states.Verify(cb.State, p.Name()); err != nil {
		return nil, err
	}

	// 3. 認可コードを外部IDに交換
	if cb.Code == "" {
		return nil, fmt.Errorf("missing authorization code: %w", model.ErrOAuthFailed)
	}
	identity, err := p.Exchange(ctx, cb.Code)
	if err != nil {
		return nil, err
	}

	// 4. ローカルユーザーに解決
	user, err := s.federator.Resolve(ctx, *identity)
	if err != nil {
		return nil, err
	}
	return withoutHash(user), nil
}

// IsUserError はエラーが利用者の入力や認証失敗によるもので、警告レベルで記録すべきかを返す。
func IsUserError(err error) bool {
	return model.IsAuthFailure(err) || errors.Is(err, model.ErrInvalidInput)
}
