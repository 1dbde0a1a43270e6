package auth

import (
	"github.com/hitoshi/secrets/internal/model"
	"golang.org/x/oauth2/facebook"
)

const defaultFacebookUserInfoURL = "https://graph.facebook.com/me?fields=id,name"

// facebookUserInfo はGraph API /me のレスポンス。
type facebookUserInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (u *facebookUserInfo) identity() (string, string) { return u.ID, u.Name }

// NewFacebookProvider はFacebook Loginのプロバイダーを生成する。
func NewFacebookProvider(cfg ProviderConfig) OAuthProvider {
	p := newOAuth2Provider(model.ProviderFacebook, cfg, facebook.Endpoint, []string{"public_profile"}, defaultFacebookUserInfoURL)
	p.parse = func(body []byte) (*model.ExternalIdentity, error) {
		return decodeIdentity(body, &facebookUserInfo{})
	}
	return p
}
