package scim

import "github.com/hitoshi/scimbridge/internal/model"

// ToDirectoryUser はSCIM Resourceをローカル中立表現に変換する。
// 純粋・ステートレスな変換であり、スキーマ適合性の検証は行わない。
// 欠落・空のコレクションはエラーではなく空の結果に縮退する。
func ToDirectoryUser(res *Resource) *model.DirectoryUser {
	if res == nil {
		return nil
	}
	return &model.DirectoryUser{
		ID:         res.ID,
		UserName:   res.UserName,
		GivenName:  res.Name.GivenName,
		FamilyName: res.Name.FamilyName,
		Email:      PrimaryEmail(res.Emails),
		Active:     bool(res.Active),
		Groups:     GroupDisplayNames(res.Groups),
	}
}

// PrimaryEmail はprimaryフラグ付きのエントリを優先して返す。
// primaryが無い場合は先頭のエントリ、空の場合は空文字を返す。
func PrimaryEmail(emails []Email) string {
	for _, e := range emails {
		if e.Primary {
			return e.Value
		}
	}
	if len(emails) > 0 {
		return emails[0].Value
	}
	return ""
}

// GroupDisplayNames はgroups配列をグループ表示名のフラットなリストに変換する。
// 表示名が空のエントリはスキップする。
func GroupDisplayNames(groups []GroupRef) []string {
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		if g.Display == "" {
			continue
		}
		names = append(names, g.Display)
	}
	return names
}
