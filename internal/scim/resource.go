// Package scim はリモートSCIM v2ディレクトリサーバーに対する
// プロトコルクライアントを提供する。
// ワイヤ型、CSRF/Cookieベースの認証セッション、型付き操作、
// ローカル表現へのマッパーを含む。
package scim

import (
	"encoding/json"
	"strings"
)

// SCIMスキーマURN
const (
	SchemaCoreUser      = "urn:ietf:params:scim:schemas:core:2.0:User"
	SchemaSearchRequest = "urn:ietf:params:scim:api:messages:2.0:SearchRequest"
	SchemaListResponse  = "urn:ietf:params:scim:api:messages:2.0:ListResponse"
)

// Name はSCIM Userリソースのnameオブジェクト。
type Name struct {
	GivenName  string `json:"givenName"`
	MiddleName string `json:"middleName,omitempty"`
	FamilyName string `json:"familyName"`
}

// Email はSCIM Userリソースのemails配列の要素。
type Email struct {
	Value   string `json:"value"`
	Type    string `json:"type,omitempty"`
	Primary bool   `json:"primary,omitempty"`
}

// GroupRef はSCIM Userリソースのgroups配列の要素。
// displayがグループ表示名、valueがグループIDを表す。
type GroupRef struct {
	Value   string `json:"value,omitempty"`
	Display string `json:"display,omitempty"`
}

// Resource はSCIM Userリソースを表す。
type Resource struct {
	Schemas  []string     `json:"schemas"`
	ID       string       `json:"id,omitempty"`
	UserName string       `json:"userName"`
	Name     Name         `json:"name"`
	Emails   []Email      `json:"emails"`
	Active   FlexibleBool `json:"active"`
	Groups   []GroupRef   `json:"groups,omitempty"`
}

// ListResponse はSCIMのListResponseエンベロープを表す。
// 検索・一覧操作のレスポンスに使用される。
type ListResponse struct {
	Schemas      []string   `json:"schemas"`
	TotalResults int        `json:"totalResults"`
	ItemsPerPage int        `json:"itemsPerPage,omitempty"`
	StartIndex   int        `json:"startIndex,omitempty"`
	Resources    []Resource `json:"Resources"`
}

// SearchRequest はPOST .searchのリクエストボディを表す。
type SearchRequest struct {
	Schemas []string `json:"schemas"`
	Filter  string   `json:"filter"`
}

// Error はSCIMサーバーが返すエラーレスポンスを表す。
type Error struct {
	Schemas []string `json:"schemas,omitempty"`
	Detail  string   `json:"detail"`
	Status  string   `json:"status,omitempty"`
}

// FlexibleBool はサーバーのバージョンによってbool・文字列の両方で
// 返されるactiveフラグを透過的に扱う。
type FlexibleBool bool

// UnmarshalJSON はbool値と"true"/"false"/"1"/"0"形式の文字列の両方を受理する。
// 解釈できない値はfalseに縮退する。
func (b *FlexibleBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = FlexibleBool(t)
	case string:
		switch strings.ToLower(t) {
		case "true", "1", "ok":
			*b = true
		default:
			*b = false
		}
	default:
		*b = false
	}
	return nil
}

// MarshalJSON は常にbool値として出力する。
func (b FlexibleBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

// BuildFilter は属性・値の完全一致フィルタ式をコンパイルする。
// 演算子はeqのみ対応（部分一致・複数属性・ページネーションは非対応）。
func BuildFilter(attribute, value string) string {
	// フィルタ値内のダブルクォートはエスケープする
	escaped := strings.ReplaceAll(value, `"`, `\"`)
	return attribute + ` eq "` + escaped + `"`
}
