// Package domaincheck は統合ドメインのプロビジョニング完了を
// ポーリングで検出し、ブリッジを有効化するバックグラウンド処理を提供する。
// ドメイン作成はリモート側で非同期に完了するため、作成要求の直後には
// 利用可能にならない。
package domaincheck

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/scimbridge/internal/store"
)

// DomainChecker はドメインのプロビジョニング状態確認インターフェース。
// 実装はscim.Client。
type DomainChecker interface {
	IntegrationDomainCreated(ctx context.Context) (bool, error)
}

// Scheduler はドメインプロビジョニングの完了をポーリングする。
// 完了を検出するとブリッジを有効化し、以後のサイクルは何もしない。
type Scheduler struct {
	checker DomainChecker
	state   store.ProviderStateRepository
	logger  *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(
	checker DomainChecker,
	state store.ProviderStateRepository,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		checker: checker,
		state:   state,
		logger:  logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// ブリッジが有効化されるか、コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ドメインチェックを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	enabled, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("ドメインチェックの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
	if enabled {
		s.logger.Info("ドメインチェックを終了します（ブリッジ有効化済み）")
		return
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ドメインチェックを停止しました")
			return
		case <-ticker.C:
			enabled, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Error("ドメインチェックの実行に失敗しました",
					slog.String("error", err.Error()),
				)
				continue
			}
			if enabled {
				s.logger.Info("ドメインチェックを終了します（ブリッジ有効化済み）")
				return
			}
		}
	}
}

// RunOnce はプロビジョニング状態を1回確認する。
// ブリッジが有効化済み、またはこのサイクルで有効化された場合にtrueを返す。
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	enabled, err := s.state.IsEnabled(ctx)
	if err != nil {
		return false, err
	}
	if enabled {
		return true, nil
	}

	created, err := s.checker.IntegrationDomainCreated(ctx)
	if err != nil {
		return false, err
	}
	if !created {
		s.logger.Info("統合ドメインはまだプロビジョニングされていません")
		return false, nil
	}

	if err := s.state.SetEnabled(ctx, true); err != nil {
		return false, err
	}

	s.logger.Info("統合ドメインのプロビジョニングを確認し、ブリッジを有効化しました")

	return true, nil
}
