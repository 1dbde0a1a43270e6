package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/secrets/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// scsのセッションストアとして利用する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// FindCtx は有効期限内のセッションデータを取得する。
func (r *PostgresSessionRepo) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE token = $1 AND expiry > now()`,
		token,
	).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, model.NewStoreError("find session", err)
	}
	return data, true, nil
}

// CommitCtx はセッションデータを保存する。同一トークンが存在すれば上書きする。
func (r *PostgresSessionRepo) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, data, expiry) VALUES ($1, $2, $3)
		 ON CONFLICT (token) DO UPDATE SET data = EXCLUDED.data, expiry = EXCLUDED.expiry`,
		token, b, expiry,
	)
	if err != nil {
		return model.NewStoreError("commit session", err)
	}
	return nil
}

// DeleteCtx は指定トークンのセッションを削除する。
func (r *PostgresSessionRepo) DeleteCtx(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE token = $1`,
		token,
	)
	if err != nil {
		return model.NewStoreError("delete session", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expiry <= now()`)
	if err != nil {
		return 0, model.NewStoreError("delete expired sessions", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, model.NewStoreError("delete expired sessions", err)
	}
	return n, nil
}

// Find はFindCtxのcontextなし版。
func (r *PostgresSessionRepo) Find(token string) ([]byte, bool, error) {
	return r.FindCtx(context.Background(), token)
}

// Commit はCommitCtxのcontextなし版。
func (r *PostgresSessionRepo) Commit(token string, b []byte, expiry time.Time) error {
	return r.CommitCtx(context.Background(), token, b, expiry)
}

// Delete はDeleteCtxのcontextなし版。
func (r *PostgresSessionRepo) Delete(token string) error {
	return r.DeleteCtx(context.Background(), token)
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
