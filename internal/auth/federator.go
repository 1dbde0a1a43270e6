package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/secrets/internal/model"
)

// IdentityStore はFederatorが必要とする永続化のインターフェース。
type IdentityStore interface {
	FindOrCreateByProvider(ctx context.Context, identity model.ExternalIdentity) (*model.User, bool, error)
}

// Federator は外部IDをローカルユーザーに解決する。
// 同じ(provider, 外部ID)は常に同じユーザーになり、未知の外部IDでは新しいユーザーを作成する。
// プロバイダー間やローカルアカウントとの統合は行わない。
type Federator struct {
	users IdentityStore
}

// NewFederator はFederatorを生成する。
func NewFederator(users IdentityStore) *Federator {
	return &Federator{users: users}
}

// Resolve は外部IDに対応するユーザーを検索し、なければ作成する。
func (f *Federator) Resolve(ctx context.Context, identity model.ExternalIdentity) (*model.User, error) {
	if identity.ProviderUserID == "" {
		return nil, fmt.Errorf("empty provider user id: %w", model.ErrOAuthFailed)
	}

	user, created, err := f.users.FindOrCreateByProvider(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create user: %w", err)
	}

	if created {
		slog.Info("new user created",
			slog.String("user_id", user.ID),
			slog.String("provider", identity.Provider),
		)
	} else {
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("provider", identity.Provider),
		)
	}

	return user, nil
}
