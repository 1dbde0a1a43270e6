// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/secrets/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// 各操作は単一レコードに対してアトミックであり、複数レコードのトランザクションは使用しない。
type UserRepository interface {
	// Create はローカルアカウントのユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名が一致するユーザーを登録順（created_at, id）で返す。
	// ユーザー名は一意ではないため、0件以上を返す。
	FindByUsername(ctx context.Context, username string) ([]*model.User, error)

	// FindOrCreateByProvider はproviderの外部IDでユーザーを検索し、
	// 存在しなければ作成する。作成した場合はcreated=trueを返す。
	FindOrCreateByProvider(ctx context.Context, identity model.ExternalIdentity) (user *model.User, created bool, err error)

	// UpdateSecret はユーザーのシークレットを上書きする。
	// 対象ユーザーが存在しない場合はmodel.ErrUserNotFoundを返す。
	UpdateSecret(ctx context.Context, userID, secret string) error

	// ListWithSecrets はシークレットが設定されている全ユーザーのシークレットを登録順で返す。
	ListWithSecrets(ctx context.Context) ([]model.SecretEntry, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
// scs.CtxStoreのメソッドセットに期限切れセッションの一括削除を加えたもの。
type SessionRepository interface {
	// Find は有効期限内のセッションデータを取得する。
	Find(token string) ([]byte, bool, error)
	// FindCtx は有効期限内のセッションデータを取得する。
	FindCtx(ctx context.Context, token string) ([]byte, bool, error)
	// Commit はセッションデータを保存する（存在すれば上書き）。
	Commit(token string, b []byte, expiry time.Time) error
	// CommitCtx はセッションデータを保存する（存在すれば上書き）。
	CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error
	// Delete はセッションを削除する。
	Delete(token string) error
	// DeleteCtx はセッションを削除する。
	DeleteCtx(ctx context.Context, token string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// providerField はプロバイダー名を永続化層のカラム名（フィールド名）に変換する。
// 未対応のプロバイダーはmodel.ErrUnknownProviderを返す。
func providerField(provider string) (string, error) {
	switch provider {
	case model.ProviderGoogle:
		return "google_id", nil
	case model.ProviderFacebook:
		return "facebook_id", nil
	default:
		return "", model.ErrUnknownProvider
	}
}
