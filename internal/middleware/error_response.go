package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/scimbridge/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, syncErr *model.SyncError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     syncErr.Code,
		Message:  syncErr.Message,
		Category: syncErr.Category,
		Action:   syncErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.SyncError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// StatusForError はエラーをHTTPステータスコードに対応付ける。
// リモート起因のエラーは502、検証エラーは4xxに対応する。
func StatusForError(err error) int {
	var syncErr *model.SyncError
	if !errors.As(err, &syncErr) {
		return http.StatusInternalServerError
	}

	switch syncErr.Code {
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidAttribute, model.ErrCodeInvalidDomainURL, model.ErrCodeDomainNotConfigured:
		return http.StatusBadRequest
	case model.ErrCodeConnectionFailed, model.ErrCodeLoginFailed,
		model.ErrCodeUnexpectedStatus, model.ErrCodeMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError はエラーをステータスコードに対応付けて書き込む。
// SyncError以外のエラーは詳細を隠した500として返す。
func WriteError(w http.ResponseWriter, err error) {
	var syncErr *model.SyncError
	if !errors.As(err, &syncErr) {
		WriteInternalServerError(w)
		return
	}
	WriteErrorResponse(w, StatusForError(err), syncErr)
}
