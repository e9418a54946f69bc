package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/scimbridge/internal/model"
)

// ============================================================
// モック
// ============================================================

// mockRemote はRemoteDirectoryのモック実装。
// 各メソッドはfuncフィールドで差し替え、呼び出し順をcallsに記録する。
type mockRemote struct {
	calls []string

	getUserFn       func(ctx context.Context, username string) (*model.DirectoryUser, error)
	createUserFn    func(ctx context.Context, username string) error
	updateAttrFn    func(ctx context.Context, username string, kind model.AttributeKind, value string) error
	deleteUserFn    func(ctx context.Context, username string) error
	countUsersFn    func(ctx context.Context) (int, error)
	createDomainFn  func(ctx context.Context, spec model.IntegrationDomainSpec) error
	removeDomainFn  func(ctx context.Context) error
	domainCreatedFn func(ctx context.Context) (bool, error)
}

func (m *mockRemote) GetUserByUserName(ctx context.Context, username string) (*model.DirectoryUser, error) {
	m.calls = append(m.calls, "remote.get")
	if m.getUserFn != nil {
		return m.getUserFn(ctx, username)
	}
	return nil, model.NewUserNotFoundError(username)
}

func (m *mockRemote) CreateUser(ctx context.Context, username string) error {
	m.calls = append(m.calls, "remote.create")
	if m.createUserFn != nil {
		return m.createUserFn(ctx, username)
	}
	return nil
}

func (m *mockRemote) UpdateUserAttribute(ctx context.Context, username string, kind model.AttributeKind, value string) error {
	m.calls = append(m.calls, "remote.update")
	if m.updateAttrFn != nil {
		return m.updateAttrFn(ctx, username, kind, value)
	}
	return nil
}

func (m *mockRemote) DeleteUser(ctx context.Context, username string) error {
	m.calls = append(m.calls, "remote.delete")
	if m.deleteUserFn != nil {
		return m.deleteUserFn(ctx, username)
	}
	return nil
}

func (m *mockRemote) CountUsers(ctx context.Context) (int, error) {
	m.calls = append(m.calls, "remote.count")
	if m.countUsersFn != nil {
		return m.countUsersFn(ctx)
	}
	return 0, nil
}

func (m *mockRemote) CreateIntegrationDomain(ctx context.Context, spec model.IntegrationDomainSpec) error {
	m.calls = append(m.calls, "remote.domain_create")
	if m.createDomainFn != nil {
		return m.createDomainFn(ctx, spec)
	}
	return nil
}

func (m *mockRemote) RemoveIntegrationDomain(ctx context.Context) error {
	m.calls = append(m.calls, "remote.domain_remove")
	if m.removeDomainFn != nil {
		return m.removeDomainFn(ctx)
	}
	return nil
}

func (m *mockRemote) IntegrationDomainCreated(ctx context.Context) (bool, error) {
	m.calls = append(m.calls, "remote.domain_status")
	if m.domainCreatedFn != nil {
		return m.domainCreatedFn(ctx)
	}
	return false, nil
}

// mockUserRepo はLocalUserRepositoryのインメモリモック。
// remoteと共有のcallsスライスに呼び出し順を記録できる。
type mockUserRepo struct {
	users map[string]*model.LocalUser
	calls *[]string

	createErr error
	updateErr error
	deleteErr error
}

func newMockUserRepo(calls *[]string) *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.LocalUser), calls: calls}
}

func (m *mockUserRepo) log(name string) {
	if m.calls != nil {
		*m.calls = append(*m.calls, name)
	}
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.LocalUser, error) {
	m.log("local.find")
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.LocalUser) error {
	m.log("local.create")
	if m.createErr != nil {
		return m.createErr
	}
	copied := *user
	m.users[user.Username] = &copied
	return nil
}

func (m *mockUserRepo) UpdateAttribute(ctx context.Context, username string, kind model.AttributeKind, value string) error {
	m.log("local.update")
	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.users[username]
	if !ok {
		return errors.New("user not found")
	}
	switch kind {
	case model.AttributeFirstName:
		u.FirstName = value
	case model.AttributeLastName:
		u.LastName = value
	case model.AttributeEmail:
		u.Email = value
	}
	return nil
}

func (m *mockUserRepo) DeleteByUsername(ctx context.Context, username string) error {
	m.log("local.delete")
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.users, username)
	return nil
}

// mockGroupRepo はLocalGroupRepositoryのインメモリモック。
type mockGroupRepo struct {
	groups  map[string]*model.LocalGroup
	members map[string][]string // groupID -> userIDs
	created []string            // 作成されたグループ名の記録
}

func newMockGroupRepo() *mockGroupRepo {
	return &mockGroupRepo{
		groups:  make(map[string]*model.LocalGroup),
		members: make(map[string][]string),
	}
}

func (m *mockGroupRepo) FindByName(ctx context.Context, name string) (*model.LocalGroup, error) {
	g, ok := m.groups[name]
	if !ok {
		return nil, nil
	}
	return g, nil
}

func (m *mockGroupRepo) Create(ctx context.Context, group *model.LocalGroup) error {
	m.groups[group.Name] = group
	m.created = append(m.created, group.Name)
	return nil
}

func (m *mockGroupRepo) AddMember(ctx context.Context, groupID, userID string) error {
	for _, existing := range m.members[groupID] {
		if existing == userID {
			return nil
		}
	}
	m.members[groupID] = append(m.members[groupID], userID)
	return nil
}

// mockStateRepo はProviderStateRepositoryのインメモリモック。
type mockStateRepo struct {
	enabled bool
	err     error
}

func (m *mockStateRepo) IsEnabled(ctx context.Context) (bool, error) {
	return m.enabled, m.err
}

func (m *mockStateRepo) SetEnabled(ctx context.Context, enabled bool) error {
	if m.err != nil {
		return m.err
	}
	m.enabled = enabled
	return nil
}

// mockGuard はDomainURLGuardのモック。
type mockGuard struct {
	validateErr error
	probeErr    error
}

func (m *mockGuard) ValidateURL(rawURL string) error {
	return m.validateErr
}

func (m *mockGuard) ProbeURL(ctx context.Context, rawURL string) error {
	return m.probeErr
}

// mockRecorder はRecorderのモック。
type mockRecorder struct {
	ops     map[string]int
	dropped int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{ops: make(map[string]int)}
}

func (m *mockRecorder) RecordSyncOp(operation, outcome string) {
	m.ops[operation+"/"+outcome]++
}

func (m *mockRecorder) RecordWritethroughDropped() {
	m.dropped++
}

// newTestService はテスト用のServiceと依存モックを組み立てる。
func newTestService(remote *mockRemote) (*Service, *mockUserRepo, *mockGroupRepo, *mockStateRepo) {
	calls := &remote.calls
	users := newMockUserRepo(calls)
	groups := newMockGroupRepo()
	state := &mockStateRepo{}
	svc := NewService(remote, users, groups, state, &mockGuard{}, newMockRecorder(), "scimbridge", nil)
	return svc, users, groups, state
}

// ============================================================
// LookupOrCreate
// ============================================================

// ローカルに存在するユーザーはリモート照会なしで返されることを検証
func TestLookupOrCreate_LocalHit_NoRemoteCall(t *testing.T) {
	remote := &mockRemote{}
	svc, users, _, _ := newTestService(remote)
	users.users["alice"] = &model.LocalUser{ID: "id-1", Username: "alice"}

	user, err := svc.LookupOrCreate(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil || user.Username != "alice" {
		t.Fatalf("user = %+v, want alice", user)
	}

	for _, call := range remote.calls {
		if call == "remote.get" {
			t.Error("remote should not be queried on local hit")
		}
	}
}

// リモートに一致があればローカルユーザーが作成されることを検証
func TestLookupOrCreate_RemoteHit_CreatesLocal(t *testing.T) {
	remote := &mockRemote{
		getUserFn: func(ctx context.Context, username string) (*model.DirectoryUser, error) {
			return &model.DirectoryUser{
				ID:         "remote-1",
				UserName:   "alice",
				GivenName:  "Alice",
				FamilyName: "Example",
				Email:      "alice@example.com",
				Active:     true,
			}, nil
		},
	}
	svc, users, _, _ := newTestService(remote)

	user, err := svc.LookupOrCreate(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("expected non-nil user")
	}
	if user.FirstName != "Alice" || user.LastName != "Example" || user.Email != "alice@example.com" {
		t.Errorf("user attributes not copied from remote: %+v", user)
	}
	if user.FederationLink != "scimbridge" {
		t.Errorf("federation link = %q, want scimbridge", user.FederationLink)
	}
	if !user.Enabled {
		t.Error("user should be enabled when remote active is true")
	}
	if _, ok := users.users["alice"]; !ok {
		t.Error("local user record should be persisted")
	}
}

// リモート0件の場合に副作用なしで(nil, nil)が返ることを検証
func TestLookupOrCreate_RemoteMiss_NoSideEffects(t *testing.T) {
	remote := &mockRemote{} // デフォルトでUSER_NOT_FOUNDを返す
	svc, users, groups, _ := newTestService(remote)

	user, err := svc.LookupOrCreate(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
	if len(users.users) != 0 {
		t.Error("no local user should be created on remote miss")
	}
	if len(groups.created) != 0 {
		t.Error("no local group should be created on remote miss")
	}
}

// 2回呼び出しても2件目が作成されないこと（冪等性）を検証
func TestLookupOrCreate_Idempotent(t *testing.T) {
	remote := &mockRemote{
		getUserFn: func(ctx context.Context, username string) (*model.DirectoryUser, error) {
			return &model.DirectoryUser{UserName: "alice", Active: true}, nil
		},
	}
	svc, users, _, _ := newTestService(remote)

	first, err := svc.LookupOrCreate(context.Background(), "alice")
	if err != nil {
		t.Fatalf("1st call failed: %v", err)
	}
	second, err := svc.LookupOrCreate(context.Background(), "alice")
	if err != nil {
		t.Fatalf("2nd call failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second call should return the same record: %q != %q", first.ID, second.ID)
	}
	if len(users.users) != 1 {
		t.Errorf("local user count = %d, want 1", len(users.users))
	}
}

// グループ調停: 既存グループは再利用され、未知のグループのみ作成されることを検証
func TestLookupOrCreate_GroupReconciliation(t *testing.T) {
	remote := &mockRemote{
		getUserFn: func(ctx context.Context, username string) (*model.DirectoryUser, error) {
			return &model.DirectoryUser{
				UserName: "alice",
				Active:   true,
				Groups:   []string{"eng", "ops"},
			}, nil
		},
	}
	svc, _, groups, _ := newTestService(remote)

	// "eng" は既にローカルに存在する
	groups.groups["eng"] = &model.LocalGroup{ID: "group-eng", Name: "eng"}

	user, err := svc.LookupOrCreate(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(groups.created) != 1 || groups.created[0] != "ops" {
		t.Errorf("created groups = %v, want [ops]", groups.created)
	}

	// 両方のグループに参加していること
	if len(groups.members["group-eng"]) != 1 {
		t.Error("user should join the existing eng group")
	}
	opsID := groups.groups["ops"].ID
	if len(groups.members[opsID]) != 1 || groups.members[opsID][0] != user.ID {
		t.Error("user should join the newly created ops group")
	}
}

// ============================================================
// Validate
// ============================================================

// リモートとの差分属性のみローカルに上書きされることを検証
func TestValidate_OverwritesOnlyDiffs(t *testing.T) {
	remote := &mockRemote{
		getUserFn: func(ctx context.Context, username string) (*model.DirectoryUser, error) {
			return &model.DirectoryUser{
				UserName:   "alice",
				GivenName:  "Alice",
				FamilyName: "Changed",
				Email:      "alice@example.com",
			}, nil
		},
	}
	svc, users, _, _ := newTestService(remote)
	users.users["alice"] = &model.LocalUser{
		ID:        "id-1",
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Stale",
		Email:     "alice@example.com",
	}

	user, err := svc.Validate(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.LastName != "Changed" {
		t.Errorf("last name = %q, want Changed", user.LastName)
	}

	// 書き込みはlastNameの1回のみ
	updateCount := 0
	for _, call := range remote.calls {
		if call == "local.update" {
			updateCount++
		}
	}
	if updateCount != 1 {
		t.Errorf("local update count = %d, want 1", updateCount)
	}
}

// 差分なしの場合にローカル書き込みが発生しないことを検証
func TestValidate_NoDiff_NoWrites(t *testing.T) {
	remote := &mockRemote{
		getUserFn: func(ctx context.Context, username string) (*model.DirectoryUser, error) {
			return &model.DirectoryUser{
				UserName:   "alice",
				GivenName:  "Alice",
				FamilyName: "Example",
				Email:      "alice@example.com",
			}, nil
		},
	}
	svc, users, _, _ := newTestService(remote)
	users.users["alice"] = &model.LocalUser{
		ID:        "id-1",
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Example",
		Email:     "alice@example.com",
	}

	if _, err := svc.Validate(context.Background(), "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, call := range remote.calls {
		if call == "local.update" {
			t.Error("no local write should happen when attributes match")
		}
	}
}

// リモートから消えたユーザーのValidateが(nil, nil)を返すことを検証
func TestValidate_RemoteGone(t *testing.T) {
	remote := &mockRemote{} // USER_NOT_FOUND
	svc, users, _, _ := newTestService(remote)
	users.users["alice"] = &model.LocalUser{ID: "id-1", Username: "alice"}

	user, err := svc.Validate(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil when remote record is gone", user)
	}
}

// ローカルに存在しないユーザーのValidateがUSER_NOT_FOUNDを返すことを検証
func TestValidate_LocalMissing(t *testing.T) {
	remote := &mockRemote{}
	svc, _, _, _ := newTestService(remote)

	_, err := svc.Validate(context.Background(), "ghost")
	if !model.IsCode(err, model.ErrCodeUserNotFound) {
		t.Errorf("error = %v, want USER_NOT_FOUND", err)
	}
}

// ============================================================
// Register
// ============================================================

// リモート作成がローカル作成に先行することを検証
func TestRegister_RemoteBeforeLocal(t *testing.T) {
	remote := &mockRemote{}
	svc, users, _, _ := newTestService(remote)

	user, err := svc.Register(context.Background(), "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil || user.Username != "bob" {
		t.Fatalf("user = %+v, want bob", user)
	}
	if _, ok := users.users["bob"]; !ok {
		t.Fatal("local user record should be persisted")
	}

	// 呼び出し順: remote.create がローカル作成より前
	remoteIdx, localIdx := -1, -1
	for i, call := range remote.calls {
		switch call {
		case "remote.create":
			remoteIdx = i
		case "local.create":
			localIdx = i
		}
	}
	if remoteIdx == -1 || localIdx == -1 {
		t.Fatalf("missing calls: %v", remote.calls)
	}
	if remoteIdx > localIdx {
		t.Errorf("remote create must precede local create: %v", remote.calls)
	}
}

// リモート作成失敗時にローカルレコードが作成されないことを検証
func TestRegister_RemoteFailure_NoLocalRecord(t *testing.T) {
	remote := &mockRemote{
		createUserFn: func(ctx context.Context, username string) error {
			return model.NewUnexpectedStatusError("create", 500, "")
		},
	}
	svc, users, _, _ := newTestService(remote)

	_, err := svc.Register(context.Background(), "bob")
	if !model.IsCode(err, model.ErrCodeUnexpectedStatus) {
		t.Errorf("error = %v, want UNEXPECTED_STATUS", err)
	}
	if len(users.users) != 0 {
		t.Error("no local record should exist after remote failure")
	}
}

// 既存ユーザーのRegisterがリモート呼び出しなしで既存レコードを返すことを検証
func TestRegister_AlreadyExists(t *testing.T) {
	remote := &mockRemote{}
	svc, users, _, _ := newTestService(remote)
	users.users["bob"] = &model.LocalUser{ID: "id-1", Username: "bob"}

	user, err := svc.Register(context.Background(), "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "id-1" {
		t.Errorf("user.ID = %q, want id-1", user.ID)
	}
	for _, call := range remote.calls {
		if call == "remote.create" {
			t.Error("remote create should not be called for existing user")
		}
	}
}

// ============================================================
// Remove
// ============================================================

// リモート削除がローカル削除に先行することを検証
func TestRemove_RemoteBeforeLocal(t *testing.T) {
	remote := &mockRemote{}
	svc, users, _, _ := newTestService(remote)
	users.users["bob"] = &model.LocalUser{ID: "id-1", Username: "bob"}

	if err := svc.Remove(context.Background(), "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users.users) != 0 {
		t.Error("local record should be deleted after remote delete succeeds")
	}

	remoteIdx, localIdx := -1, -1
	for i, call := range remote.calls {
		switch call {
		case "remote.delete":
			remoteIdx = i
		case "local.delete":
			localIdx = i
		}
	}
	if remoteIdx == -1 || localIdx == -1 {
		t.Fatalf("missing calls: %v", remote.calls)
	}
	if remoteIdx > localIdx {
		t.Errorf("remote delete must precede local delete: %v", remote.calls)
	}
}

// リモート削除が失敗した場合にローカルレコードが残ることを検証
func TestRemove_RemoteFailure_LocalKept(t *testing.T) {
	remote := &mockRemote{
		deleteUserFn: func(ctx context.Context, username string) error {
			return model.NewUnexpectedStatusError("delete", 500, "")
		},
	}
	svc, users, _, _ := newTestService(remote)
	users.users["bob"] = &model.LocalUser{ID: "id-1", Username: "bob"}

	err := svc.Remove(context.Background(), "bob")
	if !model.IsCode(err, model.ErrCodeUnexpectedStatus) {
		t.Errorf("error = %v, want UNEXPECTED_STATUS", err)
	}
	if _, ok := users.users["bob"]; !ok {
		t.Error("local record must be kept when remote delete fails")
	}
}

// リモートに存在しないユーザーのRemoveでローカルのみ削除されることを検証
func TestRemove_RemoteAlreadyGone_LocalDeleted(t *testing.T) {
	remote := &mockRemote{
		deleteUserFn: func(ctx context.Context, username string) error {
			return model.NewUserNotFoundError(username)
		},
	}
	svc, users, _, _ := newTestService(remote)
	users.users["bob"] = &model.LocalUser{ID: "id-1", Username: "bob"}

	if err := svc.Remove(context.Background(), "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users.users) != 0 {
		t.Error("local record should be deleted when remote record is already gone")
	}
}

// ============================================================
// PushAttribute
// ============================================================

// リモート更新がローカル更新に先行することを検証
func TestPushAttribute_RemoteBeforeLocal(t *testing.T) {
	remote := &mockRemote{}
	svc, users, _, _ := newTestService(remote)
	users.users["alice"] = &model.LocalUser{ID: "id-1", Username: "alice", FirstName: "Old"}

	err := svc.PushAttribute(context.Background(), "alice", model.AttributeFirstName, "New")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if users.users["alice"].FirstName != "New" {
		t.Errorf("first name = %q, want New", users.users["alice"].FirstName)
	}

	remoteIdx, localIdx := -1, -1
	for i, call := range remote.calls {
		switch call {
		case "remote.update":
			remoteIdx = i
		case "local.update":
			localIdx = i
		}
	}
	if remoteIdx == -1 || localIdx == -1 {
		t.Fatalf("missing calls: %v", remote.calls)
	}
	if remoteIdx > localIdx {
		t.Errorf("remote update must precede local update: %v", remote.calls)
	}
}

// リモートが受理しなかった場合にローカル書き込みが破棄されることを検証
func TestPushAttribute_RemoteRejects_LocalDropped(t *testing.T) {
	remote := &mockRemote{
		updateAttrFn: func(ctx context.Context, username string, kind model.AttributeKind, value string) error {
			return model.NewUnexpectedStatusError("update", 500, "")
		},
	}
	recorder := newMockRecorder()
	calls := &remote.calls
	users := newMockUserRepo(calls)
	users.users["alice"] = &model.LocalUser{ID: "id-1", Username: "alice", FirstName: "Old"}
	svc := NewService(remote, users, newMockGroupRepo(), &mockStateRepo{}, &mockGuard{}, recorder, "scimbridge", nil)

	err := svc.PushAttribute(context.Background(), "alice", model.AttributeFirstName, "New")
	if !model.IsCode(err, model.ErrCodeUnexpectedStatus) {
		t.Errorf("error = %v, want UNEXPECTED_STATUS", err)
	}
	if users.users["alice"].FirstName != "Old" {
		t.Error("local write must be dropped when remote rejects")
	}
	if recorder.dropped != 1 {
		t.Errorf("dropped metric = %d, want 1", recorder.dropped)
	}
}

// ユーザー名変更が黙って無視されることを検証
func TestPushAttribute_UserNameIgnored(t *testing.T) {
	remote := &mockRemote{}
	svc, _, _, _ := newTestService(remote)

	err := svc.PushAttribute(context.Background(), "alice", model.AttributeUserName, "newname")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(remote.calls) != 0 {
		t.Errorf("no remote or local call expected: %v", remote.calls)
	}
}

// ============================================================
// ドメイン操作
// ============================================================

// ドメイン設定なしでProvisionDomainがDOMAIN_NOT_CONFIGUREDを返すことを検証
func TestProvisionDomain_NotConfigured(t *testing.T) {
	remote := &mockRemote{}
	svc, _, _, _ := newTestService(remote)

	err := svc.ProvisionDomain(context.Background(), nil)
	if !model.IsCode(err, model.ErrCodeDomainNotConfigured) {
		t.Errorf("error = %v, want DOMAIN_NOT_CONFIGURED", err)
	}
}

// URL検証失敗時にリモート呼び出しが発生しないことを検証
func TestProvisionDomain_InvalidURL_NoRemoteCall(t *testing.T) {
	remote := &mockRemote{}
	users := newMockUserRepo(&remote.calls)
	guard := &mockGuard{validateErr: errors.New("private address")}
	svc := NewService(remote, users, newMockGroupRepo(), &mockStateRepo{}, guard, newMockRecorder(), "scimbridge", nil)

	spec := &model.IntegrationDomainSpec{
		Name:                 "example",
		IntegrationDomainURL: "https://10.0.0.1/ipa",
	}
	err := svc.ProvisionDomain(context.Background(), spec)
	if !model.IsCode(err, model.ErrCodeInvalidDomainURL) {
		t.Errorf("error = %v, want INVALID_DOMAIN_URL", err)
	}
	for _, call := range remote.calls {
		if call == "remote.domain_create" {
			t.Error("remote should not be called when URL validation fails")
		}
	}
}

// 既定ドメイン設定でのプロビジョニングを検証
func TestProvisionDomain_UsesDefaultSpec(t *testing.T) {
	var got model.IntegrationDomainSpec
	remote := &mockRemote{
		createDomainFn: func(ctx context.Context, spec model.IntegrationDomainSpec) error {
			got = spec
			return nil
		},
	}
	defaultSpec := &model.IntegrationDomainSpec{
		Name:                 "corp",
		IntegrationDomainURL: "https://ipa.example.test",
		IDProvider:           "ipa",
	}
	users := newMockUserRepo(&remote.calls)
	svc := NewService(remote, users, newMockGroupRepo(), &mockStateRepo{}, &mockGuard{}, newMockRecorder(), "scimbridge", defaultSpec)

	if err := svc.ProvisionDomain(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "corp" || got.IDProvider != "ipa" {
		t.Errorf("spec = %+v, want default spec", got)
	}
}

// RemoveDomainがリモート削除後にブリッジを無効化することを検証
func TestRemoveDomain_DisablesBridge(t *testing.T) {
	remote := &mockRemote{}
	svc, _, _, state := newTestService(remote)
	state.enabled = true

	if err := svc.RemoveDomain(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.enabled {
		t.Error("bridge should be disabled after domain removal")
	}
}

// リモート削除失敗時にブリッジ状態が変更されないことを検証
func TestRemoveDomain_RemoteFailure_StateKept(t *testing.T) {
	remote := &mockRemote{
		removeDomainFn: func(ctx context.Context) error {
			return model.NewUnexpectedStatusError("domain remove", 500, "")
		},
	}
	svc, _, _, state := newTestService(remote)
	state.enabled = true

	if err := svc.RemoveDomain(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !state.enabled {
		t.Error("bridge state must be kept when remote removal fails")
	}
}

// DomainStatusが作成状態と有効化状態の両方を返すことを検証
func TestDomainStatus(t *testing.T) {
	remote := &mockRemote{
		domainCreatedFn: func(ctx context.Context) (bool, error) {
			return true, nil
		},
	}
	svc, _, _, state := newTestService(remote)
	state.enabled = true

	created, enabled, err := svc.DomainStatus(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created || !enabled {
		t.Errorf("created=%v enabled=%v, want true/true", created, enabled)
	}
}

// CountUsersがリモートの件数をそのまま返すことを検証
func TestCountUsers(t *testing.T) {
	remote := &mockRemote{
		countUsersFn: func(ctx context.Context) (int, error) {
			return 42, nil
		},
	}
	svc, _, _, _ := newTestService(remote)

	count, err := svc.CountUsers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
}
