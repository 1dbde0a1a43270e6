package model

import (
	"errors"
	"fmt"
)

// 認証失敗（AuthFailure）。利用者には区別せず /login へのリダイレクトとして扱う。
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOAuthFailed        = errors.New("oauth authentication failed")
	ErrInvalidState       = errors.New("invalid oauth state")
	ErrUnknownProvider    = errors.New("unknown identity provider")
)

// ErrAuthenticationRequired はセッションが必要な操作を匿名で実行しようとした場合のエラー（StateFailure）。
var ErrAuthenticationRequired = errors.New("authentication required")

// ErrInvalidInput は登録フォームの必須項目が欠けている場合のエラー。
var ErrInvalidInput = errors.New("invalid input")

// ErrUserNotFound は指定IDのユーザーが存在しない場合のエラー。
var ErrUserNotFound = errors.New("user not found")

// StoreError はデータストア操作の失敗（StoreFailure）を表す。
type StoreError struct {
	Op  string // 失敗した操作名
	Err error
}

// NewStoreError はStoreErrorを生成する。
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// Error はerrorインターフェースを実装する。
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreFailure はエラーチェーンにStoreErrorが含まれるかを判定する。
func IsStoreFailure(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// IsAuthFailure は認証失敗に分類されるエラーかを判定する。
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrOAuthFailed) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrUnknownProvider)
}
