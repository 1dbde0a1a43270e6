// Package auth はローカル認証（ユーザー名・パスワード）と外部IdP（Google, Facebook）による
// OAuth 2.0認証フローを提供する。
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hitoshi/secrets/internal/model"
	"golang.org/x/oauth2"
)

// maxUserInfoSize はユーザー情報レスポンスの読み込み上限（バイト）。
const maxUserInfoSize = 1 << 20

// OAuthProvider は外部IdPのインターフェース。
type OAuthProvider interface {
	// Name はプロバイダー名（ルートの{provider}と一致する）を返す。
	Name() string
	// AuthCodeURL は同意画面へのURLを生成する。
	AuthCodeURL(state string) string
	// Exchange は認可コードをトークンに交換し、外部IDを取得する。
	Exchange(ctx context.Context, code string) (*model.ExternalIdentity, error)
}

// ProviderConfig はOAuthプロバイダーの設定。
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// HTTPClient はトークン交換とユーザー情報取得に使うクライアント。
	// nilの場合はhttp.DefaultClientが使われる。
	HTTPClient *http.Client
}

// oauth2Provider はx/oauth2を使うOAuthProviderの共通実装。
// ユーザー情報レスポンスの解釈だけがプロバイダーごとに異なる。
type oauth2Provider struct {
	name        string
	config      oauth2.Config
	userInfoURL string
	client      *http.Client
	parse       func(body []byte) (*model.ExternalIdentity, error)
}

func newOAuth2Provider(name string, cfg ProviderConfig, endpoint oauth2.Endpoint, scopes []string, defaultUserInfoURL string) *oauth2Provider {
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaultUserInfoURL
	}

	return &oauth2Provider{
		name: name,
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: cfg.UserInfoURL,
		client:      cfg.HTTPClient,
	}
}

// Name はプロバイダー名を返す。
func (p *oauth2Provider) Name() string {
	return p.name
}

// AuthCodeURL は同意画面へのURLを生成する。
func (p *oauth2Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange は認可コードをアクセストークンに交換し、ユーザー情報から外部IDを取得する。
// 失敗した場合はmodel.ErrOAuthFailedをラップしたエラーを返す。
func (p *oauth2Provider) Exchange(ctx context.Context, code string) (*model.ExternalIdentity, error) {
	if p.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}

	// 1. 認可コードをトークンに交換
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange code: %w", model.ErrOAuthFailed, err)
	}

	// 2. アクセストークンでユーザー情報を取得
	body, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch user info: %w", model.ErrOAuthFailed, err)
	}

	identity, err := p.parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrOAuthFailed, err)
	}
	identity.Provider = p.name

	return identity, nil
}

// fetchUserInfo はBearerトークン付きでユーザー情報エンドポイントを呼び出す。
func (p *oauth2Provider) fetchUserInfo(ctx context.Context, token *oauth2.Token) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info request failed with status %d", resp.StatusCode)
	}

	return body, nil
}

// decodeIdentity はユーザー情報JSONのIDフィールドと表示名を取り出す。
func decodeIdentity(body []byte, v interface{ identity() (string, string) }) (*model.ExternalIdentity, error) {
	if err := json.Unmarshal(body, v); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	id, name := v.identity()
	if id == "" {
		return nil, fmt.Errorf("user info has no subject identifier")
	}
	return &model.ExternalIdentity{ProviderUserID: id, Name: name}, nil
}
