package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/hitoshi/scimbridge/internal/middleware"
	"github.com/hitoshi/scimbridge/internal/model"
)

// DomainService はドメインハンドラーが必要とするサービスインターフェース。
type DomainService interface {
	ProvisionDomain(ctx context.Context, spec *model.IntegrationDomainSpec) error
	RemoveDomain(ctx context.Context) error
	DomainStatus(ctx context.Context) (created, enabled bool, err error)
}

// DomainHandler は統合ドメイン管理のHTTPハンドラー。
type DomainHandler struct {
	service DomainService
}

// NewDomainHandler はDomainHandlerを生成する。
func NewDomainHandler(service DomainService) *DomainHandler {
	return &DomainHandler{
		service: service,
	}
}

// Provision は統合ドメインをリモートにプロビジョニングする。
// ボディが空の場合は環境変数由来の既定設定を使用する。
// POST /api/domain
func (h *DomainHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var spec *model.IntegrationDomainSpec

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}
	if len(body) > 0 {
		spec = &model.IntegrationDomainSpec{}
		if err := json.Unmarshal(body, spec); err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.SyncError{
				Code:     "INVALID_REQUEST",
				Message:  "リクエストボディの解析に失敗しました。",
				Category: "validation",
				Action:   "統合ドメイン設定のJSONを指定してください。",
			})
			return
		}
	}

	if err := h.service.ProvisionDomain(r.Context(), spec); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// Remove は統合ドメインをリモートから削除する。
// DELETE /api/domain
func (h *DomainHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveDomain(r.Context()); err != nil {
		middleware.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Status はドメインのプロビジョニング状態とブリッジの有効化状態を返す。
// GET /api/domain/status
func (h *DomainHandler) Status(w http.ResponseWriter, r *http.Request) {
	created, enabled, err := h.service.DomainStatus(r.Context())
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"created": created,
		"enabled": enabled,
	})
}
