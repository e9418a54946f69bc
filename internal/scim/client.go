package scim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/scimbridge/internal/model"
)

// contentTypeSCIM はSCIMリソース送信時のContent-Type。
const contentTypeSCIM = "application/scim+json"

// maxResponseBody はレスポンスボディ読み取りの上限サイズ。
const maxResponseBody = 1 << 20

// 統合ドメインはリモート側で1つだけサポートされ、識別子は固定。
const integrationDomainID = "1"

// MetricsRecorder はリモート呼び出しのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordRemoteRequest(operation string, statusCode int)
	RecordRemoteLatency(operation string, d time.Duration)
	RecordLogin(success bool)
}

// Client はSCIMエンドポイントと管理ドメインエンドポイントに対する
// 型付き操作を提供するプロトコルクライアント。
// 各操作は実行前にセッションの認証を保証する。
// HTTPクライアントとセッションは起動時に構築して注入する
// （遅延シングルトンは使用しない）。
type Client struct {
	baseURL string
	session *Session
	http    *http.Client
	logger  *slog.Logger
	metrics MetricsRecorder
}

// NewClient はClientを生成する。
// serverURLはリモートサーバーのベースURL。metricsはnil可。
func NewClient(serverURL string, session *Session, httpClient *http.Client, logger *slog.Logger, metrics MetricsRecorder) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		session: session,
		http:    httpClient,
		logger:  logger,
		metrics: metrics,
	}
}

// Session はクライアントが使用する認証セッションを返す。
func (c *Client) Session() *Session {
	return c.session
}

// scimURL はSCIM v2エンドポイントのURLを組み立てる。
func (c *Client) scimURL(path string) string {
	return c.baseURL + "/scim/v2/" + path
}

// domainURL は統合ドメイン管理エンドポイントのURLを組み立てる。
func (c *Client) domainURL(path string) string {
	return c.baseURL + "/domains/v1/" + path
}

// SearchUserByAttribute は完全一致フィルタでユーザーを検索する。
// 属性にはuserNameのほかemails.value、name.givenName、name.familyNameを
// 指定できるが、Reconcilerのディスパッチに配線されているのは
// userNameのみである。
func (c *Client) SearchUserByAttribute(ctx context.Context, attribute, value string) (*ListResponse, error) {
	payload := SearchRequest{
		Schemas: []string{SchemaSearchRequest},
		Filter:  BuildFilter(attribute, value),
	}

	status, body, err := c.do(ctx, "search", http.MethodPost, c.scimURL("Users/.search"), payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, model.NewUnexpectedStatusError("search", status, errorDetail(body))
	}

	var list ListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, model.NewMalformedResponseError(err.Error())
	}
	return &list, nil
}

// GetUserByUserName はユーザー名で検索し、最初の一致をローカル表現で返す。
// 0件の場合はUSER_NOT_FOUNDエラー値を返す（正常系の不在通知）。
// 2件以上の一致は曖昧性解決せず、最初の1件を使用する。
func (c *Client) GetUserByUserName(ctx context.Context, username string) (*model.DirectoryUser, error) {
	res, err := c.lookupResource(ctx, username)
	if err != nil {
		return nil, err
	}
	return ToDirectoryUser(res), nil
}

// lookupResource はユーザー名でSCIMリソースを取得する。
func (c *Client) lookupResource(ctx context.Context, username string) (*Resource, error) {
	list, err := c.SearchUserByAttribute(ctx, "userName", username)
	if err != nil {
		return nil, err
	}
	if list.TotalResults == 0 || len(list.Resources) == 0 {
		return nil, model.NewUserNotFoundError(username)
	}
	res := list.Resources[0]
	return &res, nil
}

// CreateUser はプレースホルダー属性でSCIM Userリソースを作成する。
// 実際の属性は作成後にUpdateUserAttributeで埋められる。
// 201以外のステータスは操作未反映として扱う。
func (c *Client) CreateUser(ctx context.Context, username string) error {
	user := Resource{
		Schemas:  []string{SchemaCoreUser},
		UserName: username,
		Active:   true,
		Name:     Name{},
		Emails: []Email{
			{Value: username, Type: "work", Primary: true},
		},
		Groups: []GroupRef{},
	}

	status, body, err := c.do(ctx, "create", http.MethodPost, c.scimURL("Users"), user)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return model.NewUnexpectedStatusError("create", status, errorDetail(body))
	}
	return nil
}

// UpdateUserAttribute はリモートリソースを取得し、指定属性のみを
// 書き換えてフルリソースでPUTする。200/204のみ成功とみなす。
// userNameの変更は非対応であり、黙って無視する。
// 未知の属性種別はログに記録して無視する。
func (c *Client) UpdateUserAttribute(ctx context.Context, username string, kind model.AttributeKind, value string) error {
	switch kind {
	case model.AttributeFirstName, model.AttributeLastName, model.AttributeEmail:
		// 続行
	case model.AttributeUserName:
		return nil
	default:
		c.logger.Info("unknown user attribute to set, ignoring",
			slog.String("attribute", string(kind)),
			slog.String("username", username),
		)
		return nil
	}

	res, err := c.lookupResource(ctx, username)
	if err != nil {
		return err
	}

	switch kind {
	case model.AttributeFirstName:
		res.Name.GivenName = value
	case model.AttributeLastName:
		res.Name.FamilyName = value
	case model.AttributeEmail:
		res.Emails = []Email{{Value: value}}
	}

	status, body, err := c.do(ctx, "update", http.MethodPut, c.scimURL("Users/"+res.ID), res)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return model.NewUnexpectedStatusError("update", status, errorDetail(body))
	}
	return nil
}

// DeleteUser はユーザー名からリモートIDを解決してDELETEを発行する。
// 204のみ成功とみなす。
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	res, err := c.lookupResource(ctx, username)
	if err != nil {
		return err
	}

	status, body, err := c.do(ctx, "delete", http.MethodDelete, c.scimURL("Users/"+res.ID), nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return model.NewUnexpectedStatusError("delete", status, errorDetail(body))
	}
	return nil
}

// CountUsers は全件一覧のレスポンスエンベロープからtotalResultsを返す。
func (c *Client) CountUsers(ctx context.Context) (int, error) {
	status, body, err := c.do(ctx, "count", http.MethodGet, c.scimURL("Users"), nil)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, model.NewUnexpectedStatusError("count", status, errorDetail(body))
	}

	var list ListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return 0, model.NewMalformedResponseError(err.Error())
	}
	return list.TotalResults, nil
}

// CreateIntegrationDomain は統合ドメインをプロビジョニングする。
// 定常同期の一部ではないが、同じ認証済みクライアントを共有する。
func (c *Client) CreateIntegrationDomain(ctx context.Context, spec model.IntegrationDomainSpec) error {
	status, body, err := c.do(ctx, "domain_create", http.MethodPost, c.domainURL("domain"), spec)
	if err != nil {
		return err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return model.NewUnexpectedStatusError("domain create", status, errorDetail(body))
	}
	return nil
}

// RemoveIntegrationDomain は統合ドメインを削除する。
func (c *Client) RemoveIntegrationDomain(ctx context.Context) error {
	status, body, err := c.do(ctx, "domain_remove", http.MethodDelete, c.domainURL("domain/"+integrationDomainID), nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return model.NewUnexpectedStatusError("domain remove", status, errorDetail(body))
	}
	return nil
}

// IntegrationDomainCreated はドメインプロビジョニングの完了状態を確認する。
// 200で完了、404で未完了を表す。それ以外はエラー。
func (c *Client) IntegrationDomainCreated(ctx context.Context) (bool, error) {
	status, body, err := c.do(ctx, "domain_status", http.MethodGet, c.domainURL("domain/"+integrationDomainID), nil)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, model.NewUnexpectedStatusError("domain status", status, errorDetail(body))
	}
}

// do は認証を保証した上でHTTPリクエストを1回実行し、
// ステータスコードと読み取り済みボディを返す。
// 転送エラーはConnectionErrorとして返す。
func (c *Client) do(ctx context.Context, operation, method, rawURL string, payload any) (int, []byte, error) {
	if err := c.session.EnsureAuthenticated(ctx); err != nil {
		return 0, nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", contentTypeSCIM)
	}
	req.Header.Set("Accept", "application/json")
	c.session.ApplyHeaders(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, model.NewConnectionError(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, model.NewMalformedResponseError(err.Error())
	}

	if c.metrics != nil {
		c.metrics.RecordRemoteRequest(operation, resp.StatusCode)
		c.metrics.RecordRemoteLatency(operation, time.Since(start))
	}

	c.logger.Debug("scim request completed",
		slog.String("operation", operation),
		slog.String("method", method),
		slog.String("url", rawURL),
		slog.Int("status", resp.StatusCode),
	)

	return resp.StatusCode, body, nil
}

// errorDetail はSCIMエラーレスポンスからdetailを取り出す。
// デコードできない場合は空文字を返す。
func errorDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var scimErr Error
	if err := json.Unmarshal(body, &scimErr); err != nil {
		return ""
	}
	return scimErr.Detail
}
