// Package sync はリモートSCIMディレクトリとローカルアイデンティティストアの
// 間の同期調停（Reconciler）を提供する。
// すべての操作でリモートへの変更がローカルへの変更に厳密に先行する。
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/scimbridge/internal/model"
	"github.com/hitoshi/scimbridge/internal/store"
)

// RemoteDirectory はReconcilerが依存するリモートディレクトリ操作。
// 実装はscim.Client。
type RemoteDirectory interface {
	GetUserByUserName(ctx context.Context, username string) (*model.DirectoryUser, error)
	CreateUser(ctx context.Context, username string) error
	UpdateUserAttribute(ctx context.Context, username string, kind model.AttributeKind, value string) error
	DeleteUser(ctx context.Context, username string) error
	CountUsers(ctx context.Context) (int, error)
	CreateIntegrationDomain(ctx context.Context, spec model.IntegrationDomainSpec) error
	RemoveIntegrationDomain(ctx context.Context) error
	IntegrationDomainCreated(ctx context.Context) (bool, error)
}

// DomainURLGuard は統合ドメインURLの検証インターフェース。
// 実装はsecurity.URLGuard。
type DomainURLGuard interface {
	// ValidateURL はURLの形式と宛先の安全性を検証する。
	ValidateURL(rawURL string) error
	// ProbeURL はURLへの疎通を確認する。
	ProbeURL(ctx context.Context, rawURL string) error
}

// Recorder は同期操作のメトリクス記録インターフェース。
type Recorder interface {
	RecordSyncOp(operation, outcome string)
	RecordWritethroughDropped()
}

// Service はリモートディレクトリとローカルストアを調停するReconciler。
// ローカルストアはキャッシュとして扱い、リモートを常に正とする。
type Service struct {
	remote         RemoteDirectory
	users          store.LocalUserRepository
	groups         store.LocalGroupRepository
	state          store.ProviderStateRepository
	guard          DomainURLGuard
	metrics        Recorder
	federationLink string
	domainSpec     *model.IntegrationDomainSpec
}

// NewService はServiceの新しいインスタンスを生成する。
// domainSpecは環境変数由来の既定ドメイン設定で、nil可。
// metricsはnil可。
func NewService(
	remote RemoteDirectory,
	users store.LocalUserRepository,
	groups store.LocalGroupRepository,
	state store.ProviderStateRepository,
	guard DomainURLGuard,
	metrics Recorder,
	federationLink string,
	domainSpec *model.IntegrationDomainSpec,
) *Service {
	return &Service{
		remote:         remote,
		users:          users,
		groups:         groups,
		state:          state,
		guard:          guard,
		metrics:        metrics,
		federationLink: federationLink,
		domainSpec:     domainSpec,
	}
}

// record は操作の結果をメトリクスに記録する。
func (s *Service) record(operation string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.metrics.RecordSyncOp(operation, outcome)
}

// LookupOrCreate はユーザー名でローカルユーザーを解決する。
// ローカルに存在すればそれを返す。存在しない場合はリモートを検索し、
// 一致があればローカルレコードを作成してグループを調停する。
// リモートに一致が無い場合は副作用なしで(nil, nil)を返す。
func (s *Service) LookupOrCreate(ctx context.Context, username string) (user *model.LocalUser, err error) {
	defer func() { s.record("lookup_or_create", err) }()

	local, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ローカルユーザーの取得に失敗しました: %w", err)
	}
	if local != nil {
		return local, nil
	}

	remote, err := s.remote.GetUserByUserName(ctx, username)
	if err != nil {
		if model.IsCode(err, model.ErrCodeUserNotFound) {
			// リモートにも存在しない。副作用なしの不在通知。
			return nil, nil
		}
		return nil, err
	}

	now := time.Now()
	local = &model.LocalUser{
		ID:             uuid.NewString(),
		Username:       remote.UserName,
		Email:          remote.Email,
		FirstName:      remote.GivenName,
		LastName:       remote.FamilyName,
		Enabled:        remote.Active,
		FederationLink: s.federationLink,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, local); err != nil {
		return nil, fmt.Errorf("ローカルユーザーの作成に失敗しました: %w", err)
	}

	if err := s.reconcileGroups(ctx, local, remote.Groups); err != nil {
		return nil, err
	}

	slog.Info("ローカルユーザーを作成しました",
		slog.String("username", local.Username),
		slog.String("user_id", local.ID),
		slog.Int("group_count", len(remote.Groups)),
	)

	return local, nil
}

// reconcileGroups はリモートのグループ表示名リストに対して
// ローカルグループのfind-or-createとメンバーシップ参加を行う。
// 既に存在するグループは再利用し、存在しないものだけ作成する。
func (s *Service) reconcileGroups(ctx context.Context, user *model.LocalUser, groupNames []string) error {
	for _, name := range groupNames {
		group, err := s.groups.FindByName(ctx, name)
		if err != nil {
			return fmt.Errorf("ローカルグループの取得に失敗しました: %w", err)
		}
		if group == nil {
			group = &model.LocalGroup{
				ID:        uuid.NewString(),
				Name:      name,
				CreatedAt: time.Now(),
			}
			if err := s.groups.Create(ctx, group); err != nil {
				return fmt.Errorf("ローカルグループの作成に失敗しました: %w", err)
			}
		}
		if err := s.groups.AddMember(ctx, group.ID, user.ID); err != nil {
			return fmt.Errorf("グループメンバーシップの追加に失敗しました: %w", err)
		}
	}
	return nil
}

// Validate はローカルユーザーをリモートの現在状態と照合する。
// リモートを正とし、差分のある属性のみローカルに上書きする。
// リモートに存在しない場合は(nil, nil)を返す（呼び出し元が
// ローカルレコードの扱いを決める）。
func (s *Service) Validate(ctx context.Context, username string) (user *model.LocalUser, err error) {
	defer func() { s.record("validate", err) }()

	local, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ローカルユーザーの取得に失敗しました: %w", err)
	}
	if local == nil {
		return nil, model.NewUserNotFoundError(username)
	}

	remote, err := s.remote.GetUserByUserName(ctx, username)
	if err != nil {
		if model.IsCode(err, model.ErrCodeUserNotFound) {
			return nil, nil
		}
		return nil, err
	}

	// 差分のある属性のみ上書きする
	updates := []struct {
		kind   model.AttributeKind
		local  string
		remote string
	}{
		{model.AttributeFirstName, local.FirstName, remote.GivenName},
		{model.AttributeLastName, local.LastName, remote.FamilyName},
		{model.AttributeEmail, local.Email, remote.Email},
	}
	for _, u := range updates {
		if u.local == u.remote {
			continue
		}
		if err := s.users.UpdateAttribute(ctx, username, u.kind, u.remote); err != nil {
			return nil, fmt.Errorf("ローカル属性の更新に失敗しました: %w", err)
		}
		slog.Info("ローカル属性をリモートに合わせて更新しました",
			slog.String("username", username),
			slog.String("attribute", string(u.kind)),
		)
	}

	local, err = s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ローカルユーザーの再取得に失敗しました: %w", err)
	}
	return local, nil
}

// Register はユーザーをリモートとローカルの両方に登録する。
// リモートへの作成が先行し、失敗した場合ローカルレコードは作成されない。
func (s *Service) Register(ctx context.Context, username string) (user *model.LocalUser, err error) {
	defer func() { s.record("register", err) }()

	local, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ローカルユーザーの取得に失敗しました: %w", err)
	}
	if local != nil {
		return local, nil
	}

	// リモート作成が先行する
	if err := s.remote.CreateUser(ctx, username); err != nil {
		return nil, err
	}

	now := time.Now()
	local = &model.LocalUser{
		ID:             uuid.NewString(),
		Username:       username,
		Enabled:        true,
		FederationLink: s.federationLink,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, local); err != nil {
		return nil, fmt.Errorf("ローカルユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを登録しました",
		slog.String("username", username),
		slog.String("user_id", local.ID),
	)

	return local, nil
}

// Remove はユーザーをリモートとローカルの両方から削除する。
// リモート削除が204で確認できた場合にのみローカルレコードを削除する。
// リモート削除の失敗時はローカルレコードを残し、エラーを返す。
func (s *Service) Remove(ctx context.Context, username string) (err error) {
	defer func() { s.record("remove", err) }()

	if err := s.remote.DeleteUser(ctx, username); err != nil {
		if model.IsCode(err, model.ErrCodeUserNotFound) {
			// リモートに既に存在しない場合はローカルのみ削除する
			slog.Warn("リモートにユーザーが存在しないためローカルのみ削除します",
				slog.String("username", username),
			)
			if derr := s.users.DeleteByUsername(ctx, username); derr != nil {
				return fmt.Errorf("ローカルユーザーの削除に失敗しました: %w", derr)
			}
			return nil
		}
		return err
	}

	if err := s.users.DeleteByUsername(ctx, username); err != nil {
		return fmt.Errorf("ローカルユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("ユーザーを削除しました",
		slog.String("username", username),
	)

	return nil
}

// PushAttribute はローカルユーザーの属性書き込みをリモートへ先行伝搬する。
// リモートの受理（200/204）が確認できた場合にのみローカルを更新する。
// リモートが受理しなかった場合、ローカル書き込みは破棄される。
func (s *Service) PushAttribute(ctx context.Context, username string, kind model.AttributeKind, value string) (err error) {
	defer func() { s.record("push_attribute", err) }()

	if kind == model.AttributeUserName {
		// ユーザー名の変更は非対応。黙って無視する。
		return nil
	}

	if err := s.remote.UpdateUserAttribute(ctx, username, kind, value); err != nil {
		// ローカル書き込みを破棄する。リモートとローカルの一貫性を
		// 暗黙の食い違いより優先する。
		slog.Warn("リモートが属性更新を受理しなかったためローカル書き込みを破棄します",
			slog.String("username", username),
			slog.String("attribute", string(kind)),
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordWritethroughDropped()
		}
		return err
	}

	if err := s.users.UpdateAttribute(ctx, username, kind, value); err != nil {
		return fmt.Errorf("ローカル属性の更新に失敗しました: %w", err)
	}

	return nil
}

// CountUsers はリモートディレクトリの全ユーザー数を返す。
func (s *Service) CountUsers(ctx context.Context) (count int, err error) {
	defer func() { s.record("count", err) }()
	return s.remote.CountUsers(ctx)
}

// ProvisionDomain は統合ドメインをリモートにプロビジョニングする。
// specがnilの場合は環境変数由来の既定設定を使用する。
// ドメインURLはSSRFガードによる検証と疎通確認を通過する必要がある。
func (s *Service) ProvisionDomain(ctx context.Context, spec *model.IntegrationDomainSpec) (err error) {
	defer func() { s.record("domain_provision", err) }()

	if spec == nil {
		spec = s.domainSpec
	}
	if spec == nil {
		return model.NewDomainNotConfiguredError()
	}

	if s.guard != nil {
		if err := s.guard.ValidateURL(spec.IntegrationDomainURL); err != nil {
			return model.NewInvalidDomainURLError(err.Error())
		}
		if err := s.guard.ProbeURL(ctx, spec.IntegrationDomainURL); err != nil {
			return model.NewInvalidDomainURLError(err.Error())
		}
	}

	if err := s.remote.CreateIntegrationDomain(ctx, *spec); err != nil {
		return err
	}

	slog.Info("統合ドメインをプロビジョニングしました",
		slog.String("domain_name", spec.Name),
		slog.String("id_provider", spec.IDProvider),
	)

	return nil
}

// RemoveDomain は統合ドメインをリモートから削除し、ブリッジを無効化する。
func (s *Service) RemoveDomain(ctx context.Context) (err error) {
	defer func() { s.record("domain_remove", err) }()

	if err := s.remote.RemoveIntegrationDomain(ctx); err != nil {
		return err
	}

	if err := s.state.SetEnabled(ctx, false); err != nil {
		return fmt.Errorf("ブリッジ状態の更新に失敗しました: %w", err)
	}

	slog.Info("統合ドメインを削除しました")

	return nil
}

// DomainStatus はドメインのプロビジョニング状態とブリッジの有効化状態を返す。
func (s *Service) DomainStatus(ctx context.Context) (created, enabled bool, err error) {
	defer func() { s.record("domain_status", err) }()

	created, err = s.remote.IntegrationDomainCreated(ctx)
	if err != nil {
		return false, false, err
	}

	enabled, err = s.state.IsEnabled(ctx)
	if err != nil {
		return created, false, fmt.Errorf("ブリッジ状態の取得に失敗しました: %w", err)
	}

	return created, enabled, nil
}
