package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/secrets/internal/model"
)

// UserFinder はCredentialVerifierが必要とするユーザー検索のインターフェース。
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) ([]*model.User, error)
}

// CredentialVerifier はユーザー名とパスワードを保存済みハッシュと照合する。
type CredentialVerifier struct {
	users UserFinder
}

// NewCredentialVerifier はCredentialVerifierを生成する。
func NewCredentialVerifier(users UserFinder) *CredentialVerifier {
	return &CredentialVerifier{users: users}
}

// Verify はユーザー名が一致するユーザーを登録順に試し、最初にパスワードが一致したユーザーを返す。
// パスワードハッシュを持たないユーザー（外部IdPのみ）は対象外。
// 該当ユーザーなし・パスワード不一致はどちらもmodel.ErrInvalidCredentialsを返す。
// 返すユーザーのPasswordHashは空にしてある。
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, model.ErrInvalidCredentials
	}

	candidates, err := v.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find users by username: %w", err)
	}

	for _, u := range candidates {
		if u.PasswordHash == "" {
			continue
		}
		ok, err := VerifyPassword(password, u.PasswordHash)
		if err != nil {
			slog.Warn("skipping user with unreadable password hash",
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			return withoutHash(u), nil
		}
	}

	return nil, model.ErrInvalidCredentials
}

// withoutHash はパスワードハッシュを取り除いたユーザーのコピーを返す。
func withoutHash(u *model.User) *model.User {
	c := *u
	c.PasswordHash = ""
	return &c
}
