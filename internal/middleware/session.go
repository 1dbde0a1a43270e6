// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/secrets/internal/session"
)

// LoginPath は未認証リクエストのリダイレクト先。
const LoginPath = "/login"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストにログイン中ユーザーを格納するためのキー。
var identityContextKey = contextKey("identity")

// IdentitySource はセッションからログイン中ユーザーを取得するインターフェース。
// session.Managerが実装する。
type IdentitySource interface {
	Current(ctx context.Context) (session.Identity, bool)
}

// NewIdentityMiddleware はセッションのログイン中ユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストもそのまま通す。scsのLoadAndSaveの内側に置くこと。
func NewIdentityMiddleware(src IdentitySource) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity, ok := src.Current(r.Context()); ok {
				r = r.WithContext(ContextWithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth は未認証リクエストを302で/loginへリダイレクトするミドルウェア。
// NewIdentityMiddlewareの内側に置くこと。
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext はリクエストコンテキストからログイン中ユーザーを取得する。
func IdentityFromContext(ctx context.Context) (session.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(session.Identity)
	if !ok || identity.ID == "" {
		return session.Identity{}, false
	}
	return identity, true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("user ID not found in context")
	}
	return identity.ID, nil
}

// ContextWithIdentity はコンテキストにログイン中ユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity session.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
