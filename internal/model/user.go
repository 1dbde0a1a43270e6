// Package model はドメインモデルを定義する。
package model

import "time"

// 対応している外部IdPの名前。
const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

// User はサービス利用ユーザーを表す。
// ローカルアカウントはPasswordHashを、外部IdP経由のアカウントは
// GoogleID/FacebookIDのいずれかを必ず持つ。
type User struct {
	ID       string
	Username string // 一意ではない

	// argon2idのPHC形式文字列（ソルトと導出パラメータを含む）。
	// 外部IdPのみのアカウントでは空。
	PasswordHash string

	GoogleID   *string
	FacebookID *string

	// Secret は投稿されたシークレット。未投稿ならnil。
	Secret *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCredential はユーザーが少なくとも1つの認証手段を持つかを返す。
func (u *User) HasCredential() bool {
	return u.PasswordHash != "" || u.GoogleID != nil || u.FacebookID != nil
}

// ProviderID は指定プロバイダーの外部IDを返す。未連携なら空文字列。
func (u *User) ProviderID(provider string) string {
	var id *string
	switch provider {
	case ProviderGoogle:
		id = u.GoogleID
	case ProviderFacebook:
		id = u.FacebookID
	}
	if id == nil {
		return ""
	}
	return *id
}

// ExternalIdentity は外部IdPから取得したユーザー情報を表す。
type ExternalIdentity struct {
	Provider       string
	ProviderUserID string
	Name           string
}

// SecretEntry はシークレット一覧の1行を表す。
type SecretEntry struct {
	UserID string
	Secret string
}
