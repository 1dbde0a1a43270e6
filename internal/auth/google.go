package auth

import (
	"github.com/hitoshi/secrets/internal/model"
	"golang.org/x/oauth2/google"
)

const defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// googleUserInfo はGoogleのユーザー情報エンドポイントのレスポンス。
type googleUserInfo struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
}

func (u *googleUserInfo) identity() (string, string) { return u.Sub, u.Name }

// NewGoogleProvider はGoogle OAuth 2.0のOAuthProviderを生成する。
// スコープはprofileのみ。外部IDにはsubを使う。
func NewGoogleProvider(cfg ProviderConfig) OAuthProvider {
	p := newOAuth2Provider(model.ProviderGoogle, cfg, google.Endpoint, []string{"profile"}, defaultGoogleUserInfoURL)
	p.parse = func(body []byte) (*model.ExternalIdentity, error) {
		return decodeIdentity(body, &googleUserInfo{})
	}
	return p
}
