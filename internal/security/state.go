package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/secrets/internal/model"
)

// DefaultStateTTL はOAuth stateの有効期間。
const DefaultStateTTL = 10 * time.Minute

// stateClaims はOAuth stateトークンのクレーム。
// IDにランダムなnonceを入れ、Providerで発行先のIdPを束縛する。
type stateClaims struct {
	jwt.RegisteredClaims
	Provider string `json:"prv"`
}

// StateSigner はOAuth認可リクエストのstateをHS256で署名・検証する。
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewStateSigner はStateSignerを生成する。ttlが0以下の場合はDefaultStateTTLを使う。
func NewStateSigner(key []byte, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateSigner{key: key, ttl: ttl, now: time.Now}
}

// Issue は指定プロバイダー向けの署名済みstateを発行する。
func (s *StateSigner) Issue(provider string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        hex.EncodeToString(nonce),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Provider: provider,
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return signed, nil
}

// Verify はstateの署名、有効期限、プロバイダーを検証する。
// 失敗した場合はmodel.ErrInvalidStateをラップしたエラーを返す。
func (s *StateSigner) Verify(state, provider string) error {
	if state == "" {
		return fmt.Errorf("empty state: %w", model.ErrInvalidState)
	}

	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidState, err)
	}

	if claims.Provider != provider {
		return fmt.Errorf("state issued for %q: %w", claims.Provider, model.ErrInvalidState)
	}
	if claims.ID == "" {
		return fmt.Errorf("state has no nonce: %w", model.ErrInvalidState)
	}
	return nil
}
