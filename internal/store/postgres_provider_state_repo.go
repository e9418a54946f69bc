package store

import (
	"context"
	"database/sql"
	"fmt"
)

// providerStateID はprovider_stateの単一行を指す固定キー。
const providerStateID = 1

// PostgresProviderStateRepo はPostgreSQLを使用したブリッジ有効化状態リポジトリ。
// provider_stateテーブルは常に1行のみ保持する。
type PostgresProviderStateRepo struct {
	db *sql.DB
}

// NewPostgresProviderStateRepo はPostgresProviderStateRepoを生成する。
func NewPostgresProviderStateRepo(db *sql.DB) *PostgresProviderStateRepo {
	return &PostgresProviderStateRepo{db: db}
}

// IsEnabled は現在の有効化状態を返す。行が無い場合はfalseを返す。
func (r *PostgresProviderStateRepo) IsEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := r.db.QueryRowContext(ctx,
		`SELECT enabled FROM provider_state WHERE id = $1`,
		providerStateID,
	).Scan(&enabled)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read provider state: %w", err)
	}

	return enabled, nil
}

// SetEnabled は有効化状態を更新する。行が無い場合は作成する。
func (r *PostgresProviderStateRepo) SetEnabled(ctx context.Context, enabled bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO provider_state (id, enabled, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (id) DO UPDATE SET enabled = $2, updated_at = NOW()`,
		providerStateID, enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to update provider state: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProviderStateRepository = (*PostgresProviderStateRepo)(nil)
