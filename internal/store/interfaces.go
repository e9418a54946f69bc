// Package store はローカルアイデンティティストアのインターフェースと
// PostgreSQL実装を提供する。
// Reconcilerはインターフェースのみに依存する。
package store

import (
	"context"

	"github.com/hitoshi/scimbridge/internal/model"
)

// LocalUserRepository はローカルユーザーの永続化インターフェース。
type LocalUserRepository interface {
	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.LocalUser, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.LocalUser) error

	// UpdateAttribute は指定ユーザーの単一属性を更新する。
	UpdateAttribute(ctx context.Context, username string, kind model.AttributeKind, value string) error

	// DeleteByUsername は指定ユーザー名のユーザーを削除する。
	// グループメンバーシップはCASCADE削除される。
	DeleteByUsername(ctx context.Context, username string) error
}

// LocalGroupRepository はローカルグループの永続化インターフェース。
type LocalGroupRepository interface {
	// FindByName は指定名のグループを取得する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.LocalGroup, error)

	// Create はグループを作成する。
	Create(ctx context.Context, group *model.LocalGroup) error

	// AddMember はユーザーをグループに参加させる。冪等に動作する。
	AddMember(ctx context.Context, groupID, userID string) error
}

// ProviderStateRepository はブリッジの有効化状態の永続化インターフェース。
// 統合ドメインのプロビジョニング完了をドメインチェックワーカーが検出すると
// 有効化される。
type ProviderStateRepository interface {
	// IsEnabled は現在の有効化状態を返す。
	IsEnabled(ctx context.Context) (bool, error)

	// SetEnabled は有効化状態を更新する。
	SetEnabled(ctx context.Context, enabled bool) error
}
