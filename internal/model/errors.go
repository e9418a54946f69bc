// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// SyncError は統一エラーフォーマットを表す。
// 呼び出し元（フェデレーション側）に返す原因カテゴリと対処方法を含む。
type SyncError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, remote, validation, system
	Action   string // 呼び出し元向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *SyncError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// IsCode はエラーが指定コードのSyncErrorかを判定する。
func IsCode(err error, code string) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Code == code
	}
	return false
}

// 定義済みエラーコード
const (
	ErrCodeConnectionFailed    = "CONNECTION_FAILED"
	ErrCodeLoginFailed         = "LOGIN_FAILED"
	ErrCodeUnexpectedStatus    = "UNEXPECTED_STATUS"
	ErrCodeMalformedResponse   = "MALFORMED_RESPONSE"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeInvalidAttribute    = "INVALID_ATTRIBUTE"
	ErrCodeInvalidDomainURL    = "INVALID_DOMAIN_URL"
	ErrCodeDomainNotConfigured = "DOMAIN_NOT_CONFIGURED"
)

// NewConnectionError はリモートホストへの到達失敗エラーを生成する。
// 現在の操作に対して致命的であり、自動リトライは行わない。
func NewConnectionError(reason string) *SyncError {
	return &SyncError{
		Code:     ErrCodeConnectionFailed,
		Message:  fmt.Sprintf("SCIMサーバーへの接続に失敗しました: %s", reason),
		Category: "remote",
		Action:   "SCIMサーバーのURLと疎通を確認してください。",
	}
}

// NewLoginFailedError は認証ステップが期待するCookieを返さなかった場合の
// エラーを生成する。呼び出し元は認証済みリクエストを続行してはならない。
func NewLoginFailedError(reason string) *SyncError {
	return &SyncError{
		Code:     ErrCodeLoginFailed,
		Message:  fmt.Sprintf("SCIMサーバーへのログインに失敗しました: %s", reason),
		Category: "auth",
		Action:   "ログイン用の認証情報（ユーザー名・パスワード）を確認してください。",
	}
}

// NewUnexpectedStatusError はリモートが操作の受理セット外のステータスを
// 返した場合のエラーを生成する。操作は反映されていないものとして扱い、
// 対応するローカル変更を適用してはならない。
func NewUnexpectedStatusError(operation string, statusCode int, detail string) *SyncError {
	msg := fmt.Sprintf("%s が予期しないステータス %d を返しました", operation, statusCode)
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	return &SyncError{
		Code:     ErrCodeUnexpectedStatus,
		Message:  msg,
		Category: "remote",
		Action:   "リモートディレクトリの状態を確認してから再度お試しください。",
	}
}

// NewMalformedResponseError はレスポンスボディを期待する形にデコード
// できなかった場合のエラーを生成する。該当呼び出しに対して致命的。
func NewMalformedResponseError(reason string) *SyncError {
	return &SyncError{
		Code:     ErrCodeMalformedResponse,
		Message:  fmt.Sprintf("SCIMレスポンスの解析に失敗しました: %s", reason),
		Category: "remote",
		Action:   "SCIMサーバーのバージョンとエンドポイント設定を確認してください。",
	}
}

// NewUserNotFoundError は検索結果0件（正常系の不在通知）を表すエラーを生成する。
// 転送・認証エラーとは区別される。
func NewUserNotFoundError(username string) *SyncError {
	return &SyncError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("ユーザーが見つかりません: %s", username),
		Category: "validation",
		Action:   "ユーザー名を確認してください。",
	}
}

// NewInvalidAttributeError は未対応の属性種別が指定された場合のエラーを生成する。
func NewInvalidAttributeError(kind string) *SyncError {
	return &SyncError{
		Code:     ErrCodeInvalidAttribute,
		Message:  fmt.Sprintf("未対応の属性種別です: %s", kind),
		Category: "validation",
		Action:   "属性には firstName、lastName、email のいずれかを指定してください。",
	}
}

// NewInvalidDomainURLError は統合ドメインURLが検証に失敗した場合のエラーを生成する。
func NewInvalidDomainURLError(reason string) *SyncError {
	return &SyncError{
		Code:     ErrCodeInvalidDomainURL,
		Message:  fmt.Sprintf("統合ドメインURLが無効です: %s", reason),
		Category: "validation",
		Action:   "公開されているIdPエンドポイントのURLを指定してください。",
	}
}

// NewDomainNotConfiguredError はドメイン設定が未指定の場合のエラーを生成する。
func NewDomainNotConfiguredError() *SyncError {
	return &SyncError{
		Code:     ErrCodeDomainNotConfigured,
		Message:  "統合ドメインの設定がありません。",
		Category: "validation",
		Action:   "リクエストボディまたは環境変数でドメイン設定を指定してください。",
	}
}
