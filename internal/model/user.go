// Package model はドメインモデルを定義する。
package model

import "time"

// DirectoryUser はリモートSCIMディレクトリ上のユーザーを表す。
// IDはディレクトリ側が採番する不透明な識別子であり、
// 再プロビジョニング後の安定性は保証されない。
// ローカルレコードとの対応付けにはUserNameのみを使用する。
type DirectoryUser struct {
	ID         string
	UserName   string
	GivenName  string
	FamilyName string
	Email      string
	Active     bool
	Groups     []string // グループ表示名のリスト
}

// LocalUser はローカルアイデンティティストア上のユーザーを表す。
// リモートに一致が見つかった際にReconcilerが作成し、
// validate/update時に更新される。FederationLinkは
// このブリッジが管理するレコードであることを示すマーカー。
type LocalUser struct {
	ID             string
	Username       string
	Email          string
	FirstName      string
	LastName       string
	Enabled        bool
	FederationLink string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LocalGroup はローカルアイデンティティストア上のグループを表す。
type LocalGroup struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// AttributeKind は書き込み同期の対象となる属性の種別。
type AttributeKind string

const (
	// AttributeFirstName は名（givenName）の更新を示す。
	AttributeFirstName AttributeKind = "firstName"
	// AttributeLastName は姓（familyName）の更新を示す。
	AttributeLastName AttributeKind = "lastName"
	// AttributeEmail はメールアドレスの更新を示す。
	AttributeEmail AttributeKind = "email"
	// AttributeUserName はユーザー名。変更は非対応であり、
	// 指定された場合は無視される。
	AttributeUserName AttributeKind = "userName"
)

// ParseAttributeKind は文字列をAttributeKindに変換する。
// 未知の種別の場合はfalseを返す。
func ParseAttributeKind(s string) (AttributeKind, bool) {
	switch AttributeKind(s) {
	case AttributeFirstName, AttributeLastName, AttributeEmail, AttributeUserName:
		return AttributeKind(s), true
	default:
		return "", false
	}
}
