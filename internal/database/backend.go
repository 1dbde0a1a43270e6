package database

import (
	"fmt"
	"net/url"
	"strings"
)

// Backend はデータストアの種類を表す。
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongodb"
)

// DetectBackend は接続URLのスキームからデータストアの種類を判定する。
func DetectBackend(databaseURL string) (Backend, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid database URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "mongodb", "mongodb+srv":
		return BackendMongo, nil
	default:
		return "", fmt.Errorf("unsupported database scheme: %q", u.Scheme)
	}
}
