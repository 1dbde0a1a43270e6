package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/secrets/internal/model"
)

const userColumns = `id, username, password_hash, google_id, facebook_id, secret, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*model.User, error) {
	user := &model.User{}
	var googleID, facebookID, secret sql.NullString
	if err := s.Scan(
		&user.ID, &user.Username, &user.PasswordHash,
		&googleID, &facebookID, &secret,
		&user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.GoogleID = nullStringPtr(googleID)
	user.FacebookID = nullStringPtr(facebookID)
	user.Secret = nullStringPtr(secret)
	return user, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Create はローカルアカウントのユーザーを作成する。
// IDと作成日時が未設定の場合はここで採番する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	if !user.HasCredential() {
		return fmt.Errorf("user must have a password or provider id: %w", model.ErrInvalidInput)
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		now := time.Now()
		user.CreatedAt = now
		user.UpdatedAt = now
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, google_id, facebook_id, secret, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Username, user.PasswordHash,
		user.GoogleID, user.FacebookID, user.Secret,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return model.NewStoreError("insert user", err)
	}
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, model.NewStoreError("find user by id", err)
	}
	return user, nil
}

// FindByUsername はユーザー名が一致するユーザーを登録順で返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 ORDER BY created_at, id`,
		username,
	)
	if err != nil {
		return nil, model.NewStoreError("find users by username", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, model.NewStoreError("scan user", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStoreError("iterate users", err)
	}
	return users, nil
}

// FindOrCreateByProvider はproviderの外部IDでユーザーを検索し、存在しなければ作成する。
// 外部IDカラムの部分ユニークインデックスにより、同時実行時も1レコードに収束する。
func (r *PostgresUserRepo) FindOrCreateByProvider(ctx context.Context, identity model.ExternalIdentity) (*model.User, bool, error) {
	column, err := providerField(identity.Provider)
	if err != nil {
		return nil, false, err
	}
	if identity.ProviderUserID == "" {
		return nil, false, fmt.Errorf("empty provider user id: %w", model.ErrInvalidInput)
	}

	existing, err := r.findByProviderColumn(ctx, column, identity.ProviderUserID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := time.Now()
	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf(
			`INSERT INTO users (id, username, %[1]s, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $4)
			 ON CONFLICT (%[1]s) WHERE %[1]s IS NOT NULL DO NOTHING`,
			column,
		),
		uuid.New().String(), identity.Name, identity.ProviderUserID, now,
	)
	if err != nil {
		return nil, false, model.NewStoreError("insert federated user", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, false, model.NewStoreError("insert federated user", err)
	}

	user, err := r.findByProviderColumn(ctx, column, identity.ProviderUserID)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		return nil, false, model.NewStoreError("find federated user", fmt.Errorf("user vanished after upsert"))
	}
	return user, rowsAffected == 1, nil
}

func (r *PostgresUserRepo) findByProviderColumn(ctx context.Context, column, providerUserID string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT `+userColumns+` FROM users WHERE %s = $1`, column),
		providerUserID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, model.NewStoreError("find user by provider", err)
	}
	return user, nil
}

// UpdateSecret はユーザーのシークレットを上書きする。
func (r *PostgresUserRepo) UpdateSecret(ctx context.Context, userID, secret string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET secret = $2, updated_at = now() WHERE id = $1`,
		userID, secret,
	)
	if err != nil {
		return model.NewStoreError("update secret", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return model.NewStoreError("update secret", err)
	}
	if rowsAffected == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// ListWithSecrets はシークレットが設定されている全ユーザーのシークレットを登録順で返す。
func (r *PostgresUserRepo) ListWithSecrets(ctx context.Context) ([]model.SecretEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, secret FROM users WHERE secret IS NOT NULL ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, model.NewStoreError("list secrets", err)
	}
	defer rows.Close()

	var entries []model.SecretEntry
	for rows.Next() {
		var e model.SecretEntry
		if err := rows.Scan(&e.UserID, &e.Secret); err != nil {
			return nil, model.NewStoreError("scan secret", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStoreError("iterate secrets", err)
	}
	return entries, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
