package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/scimbridge/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したローカルユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.LocalUser, error) {
	user := &model.LocalUser{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, first_name, last_name, enabled, federation_link, created_at, updated_at
		 FROM local_users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName,
		&user.Enabled, &user.FederationLink, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}

	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.LocalUser) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO local_users (id, username, email, first_name, last_name, enabled, federation_link, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName,
		user.Enabled, user.FederationLink, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateAttribute は指定ユーザーの単一属性を更新する。
// リモートへの書き込みが成功した後にのみ呼び出される。
func (r *PostgresUserRepo) UpdateAttribute(ctx context.Context, username string, kind model.AttributeKind, value string) error {
	var column string
	switch kind {
	case model.AttributeFirstName:
		column = "first_name"
	case model.AttributeLastName:
		column = "last_name"
	case model.AttributeEmail:
		column = "email"
	default:
		return fmt.Errorf("unsupported attribute kind: %s", kind)
	}

	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE local_users SET %s = $1, updated_at = NOW() WHERE username = $2`, column),
		value, username,
	)
	if err != nil {
		return fmt.Errorf("failed to update user attribute: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", username)
	}
	return nil
}

// DeleteByUsername は指定ユーザー名のユーザーを削除する。
// 関連するgroup_membersはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByUsername(ctx context.Context, username string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM local_users WHERE username = $1`,
		username,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", username)
	}
	return nil
}

// compile-time interface check
var _ LocalUserRepository = (*PostgresUserRepo)(nil)
