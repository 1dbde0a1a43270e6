// Package user はユーザーのシークレット投稿と一覧のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/secrets/internal/metrics"
	"github.com/hitoshi/secrets/internal/model"
	"github.com/hitoshi/secrets/internal/security"
)

// SecretStore はシークレットの永続化インターフェース。
type SecretStore interface {
	UpdateSecret(ctx context.Context, userID, secret string) error
	ListWithSecrets(ctx context.Context) ([]model.SecretEntry, error)
}

// Service はシークレットのサービス層。
type Service struct {
	store   SecretStore
	markup  security.MarkupDetector
	metrics metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsがnilの場合は記録しない。
func NewService(store SecretStore, markup security.MarkupDetector, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		store:   store,
		markup:  markup,
		metrics: mc,
	}
}

// SubmitSecret はユーザーのシークレットを上書きする。ユーザーが持てるシークレットは1件のみ。
// userIDが空の場合はmodel.ErrAuthenticationRequired、
// 空白のみの場合はmodel.ErrInvalidInputを返す。本文は加工せずそのまま保存し、エスケープは表示側で行う。
// セッションのユーザーが存在しない場合はmodel.ErrAuthenticationRequiredとmodel.ErrUserNotFoundの両方に一致するエラーを返す。
func (s *Service) SubmitSecret(ctx context.Context, userID, secret string) error {
	if userID == "" {
		return model.ErrAuthenticationRequired
	}

	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("empty secret: %w", model.ErrInvalidInput)
	}
	if s.markup != nil && s.markup.ContainsMarkup(secret) {
		slog.Info("secret contains markup", slog.String("user_id", userID))
	}

	if err := s.store.UpdateSecret(ctx, userID, secret); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return fmt.Errorf("%w: %w", model.ErrAuthenticationRequired, err)
		}
		return fmt.Errorf("failed to update secret: %w", err)
	}

	s.metrics.RecordSecretSubmitted()
	slog.Info("secret submitted", slog.String("user_id", userID))
	return nil
}

// ListSecrets はシークレットを投稿済みの全ユーザーのシークレットを登録順で返す。
// 誰でも閲覧できる。
func (s *Service) ListSecrets(ctx context.Context) ([]model.SecretEntry, error) {
	entries, err := s.store.ListWithSecrets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}
	return entries, nil
}
