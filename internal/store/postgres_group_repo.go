package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/scimbridge/internal/model"
)

// PostgresGroupRepo はPostgreSQLを使用したローカルグループリポジトリ。
type PostgresGroupRepo struct {
	db *sql.DB
}

// NewPostgresGroupRepo はPostgresGroupRepoを生成する。
func NewPostgresGroupRepo(db *sql.DB) *PostgresGroupRepo {
	return &PostgresGroupRepo{db: db}
}

// FindByName は指定名のグループを取得する。見つからない場合はnilを返す。
func (r *PostgresGroupRepo) FindByName(ctx context.Context, name string) (*model.LocalGroup, error) {
	group := &model.LocalGroup{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM local_groups WHERE name = $1`,
		name,
	).Scan(&group.ID, &group.Name, &group.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find group by name: %w", err)
	}

	return group, nil
}

// Create はグループを作成する。
func (r *PostgresGroupRepo) Create(ctx context.Context, group *model.LocalGroup) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO local_groups (id, name, created_at) VALUES ($1, $2, $3)`,
		group.ID, group.Name, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// AddMember はユーザーをグループに参加させる。
// 既にメンバーの場合は何もしない。
func (r *PostgresGroupRepo) AddMember(ctx context.Context, groupID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (group_id, user_id) DO NOTHING`,
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// compile-time interface check
var _ LocalGroupRepository = (*PostgresGroupRepo)(nil)
