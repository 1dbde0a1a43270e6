// Package session はscsによるサーバーサイドセッション管理を提供する。
// セッションにはログイン中ユーザーの識別情報（Identity）のみを保存する。
package session

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
)

// DefaultCookieName はセッションCookieの名前。
const DefaultCookieName = "session"

// identityKey はセッション内でIdentityを保存するキー。
const identityKey = "identity"

// Identity はセッションに保存するユーザー識別情報。
// ストアの再検証は行わず、保存時の値をそのまま返す。
type Identity struct {
	ID       string
	Username string
}

func init() {
	// scsのGobCodecで構造体を保存するために登録する
	gob.Register(Identity{})
}

// Config はセッションマネージャーの設定。
type Config struct {
	Lifetime     time.Duration
	CookieName   string
	CookieDomain string
	CookieSecure bool
}

// Manager はscs.SessionManagerをラップし、Identityの保存・取得・破棄を提供する。
type Manager struct {
	sm *scs.SessionManager
}

// NewManager はManagerを生成する。storeがnilの場合はscsのデフォルト（メモリストア）を使う。
func NewManager(store scs.Store, cfg Config) *Manager {
	sm := scs.New()
	if store != nil {
		sm.Store = store
	}
	if cfg.Lifetime > 0 {
		sm.Lifetime = cfg.Lifetime
	}
	sm.Cookie.Name = DefaultCookieName
	if cfg.CookieName != "" {
		sm.Cookie.Name = cfg.CookieName
	}
	sm.Cookie.Domain = cfg.CookieDomain
	sm.Cookie.Path = "/"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.CookieSecure
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Persist = true
	sm.ErrorFunc = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Error("session store error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
	return &Manager{sm: sm}
}

// LoadAndSave はリクエストごとにセッションを読み込み、レスポンス前に保存するミドルウェア。
func (m *Manager) LoadAndSave(next http.Handler) http.Handler {
	return m.sm.LoadAndSave(next)
}

// Establish はログイン成功時にセッションを開始する。
// セッション固定化を防ぐため、保存前にトークンを再発行する。
func (m *Manager) Establish(ctx context.Context, identity Identity) error {
	if identity.ID == "" {
		return fmt.Errorf("identity has no user id")
	}
	if err := m.sm.RenewToken(ctx); err != nil {
		return fmt.Errorf("failed to renew session token: %w", err)
	}
	m.sm.Put(ctx, identityKey, identity)
	return nil
}

// Current はセッションに保存されたIdentityを返す。未ログインならfalse。
func (m *Manager) Current(ctx context.Context) (Identity, bool) {
	identity, ok := m.sm.Get(ctx, identityKey).(Identity)
	if !ok || identity.ID == "" {
		return Identity{}, false
	}
	return identity, true
}

// Destroy はセッションを破棄する（ストアのレコード削除とCookieの失効）。
// 未ログインでも安全に呼び出せる。
func (m *Manager) Destroy(ctx context.Context) error {
	if err := m.sm.Destroy(ctx); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}
