// Package handler はHTTP APIハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/scimbridge/internal/middleware"
	"github.com/hitoshi/scimbridge/internal/model"
)

// UserSyncService はユーザーハンドラーが必要とする同期サービスインターフェース。
type UserSyncService interface {
	LookupOrCreate(ctx context.Context, username string) (*model.LocalUser, error)
	Validate(ctx context.Context, username string) (*model.LocalUser, error)
	Register(ctx context.Context, username string) (*model.LocalUser, error)
	Remove(ctx context.Context, username string) error
	PushAttribute(ctx context.Context, username string, kind model.AttributeKind, value string) error
	CountUsers(ctx context.Context) (int, error)
}

// UserHandler はユーザー同期のHTTPハンドラー。
type UserHandler struct {
	service UserSyncService
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserSyncService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// userResponse はユーザーレスポンスのJSON表現。
type userResponse struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Enabled        bool      `json:"enabled"`
	FederationLink string    `json:"federation_link"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toUserResponse(u *model.LocalUser) userResponse {
	return userResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Enabled:        u.Enabled,
		FederationLink: u.FederationLink,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// Lookup はユーザー名でユーザーを解決する。ローカルに無い場合は
// リモートを検索してローカルレコードを作成する。
// GET /api/users/{username}
func (h *UserHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.service.LookupOrCreate(r.Context(), username)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(username))
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Validate はローカルユーザーをリモートの現在状態と照合する。
// リモートから消えている場合は404を返す。
// POST /api/users/{username}/validate
func (h *UserHandler) Validate(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.service.Validate(r.Context(), username)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(username))
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// registerRequest はユーザー登録リクエストのJSON表現。
type registerRequest struct {
	Username string `json:"username"`
}

// Register はユーザーをリモートとローカルの両方に登録する。
// POST /api/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.SyncError{
			Code:     "INVALID_REQUEST",
			Message:  "usernameを指定してください。",
			Category: "validation",
			Action:   "リクエストボディにusernameを含めてください。",
		})
		return
	}

	user, err := h.service.Register(r.Context(), req.Username)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Remove はユーザーをリモートとローカルの両方から削除する。
// DELETE /api/users/{username}
func (h *UserHandler) Remove(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := h.service.Remove(r.Context(), username); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// attributeRequest は属性更新リクエストのJSON表現。
type attributeRequest struct {
	Value string `json:"value"`
}

// UpdateAttribute はユーザー属性の書き込みをリモートへ先行伝搬する。
// リモートが受理しなかった場合は502を返し、ローカルは更新されない。
// PUT /api/users/{username}/attributes/{kind}
func (h *UserHandler) UpdateAttribute(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	kindParam := chi.URLParam(r, "kind")

	kind, ok := model.ParseAttributeKind(kindParam)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidAttributeError(kindParam))
		return
	}

	var req attributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.SyncError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "valueフィールドを含むJSONを指定してください。",
		})
		return
	}

	if err := h.service.PushAttribute(r.Context(), username, kind, req.Value); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Count はリモートディレクトリの全ユーザー数を返す。
// GET /api/users/count
func (h *UserHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CountUsers(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}
