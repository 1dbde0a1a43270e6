package security

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// NewProviderClient は外部IdP（トークン交換、ユーザー情報取得）呼び出し用の
// SSRF防止機能付きHTTPクライアントを生成する。
// safeurlによりhttpsの443番ポート以外、プライベートIP、ループバック、
// リンクローカル、メタデータIPへのリクエストはブロックされる。
// DNS解決後のIPアドレスもDialerで検証されるため、DNS再バインディングにも対応する。
func NewProviderClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return safeurl.Client(config).Client
}
