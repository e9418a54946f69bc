package scim

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/hitoshi/scimbridge/internal/model"
)

// Cookie名はDjango管理画面の規約に従う。
const (
	csrfCookieName    = "csrftoken"
	sessionCookieName = "sessionid"
	csrfHeaderName    = "X-CSRFToken"
)

// Credentials は管理ログインに使用する認証情報。
type Credentials struct {
	Username string
	Password string
}

// LoginRecorder はログイン試行のメトリクス記録インターフェース。
type LoginRecorder interface {
	RecordLogin(success bool)
}

// Session はリモートサーバーに対する認証セッションを保持する。
// 状態機械: ANONYMOUS → LOGGING_IN → AUTHENTICATED。
// ログイン中の失敗はANONYMOUSへ戻り、呼び出しはエラーになる。
//
// トークン・Cookieはmutexで保護され、EnsureAuthenticatedはロックを
// ログインフロー全体にわたって保持する（single-flight）。
// 並行する初回呼び出しがあってもログインシーケンスは1回しか実行されない。
// プロセス再起動をまたいで永続化されることはない。
type Session struct {
	adminURL string
	creds    Credentials
	client   *http.Client
	logger   *slog.Logger
	metrics  LoginRecorder

	mu            sync.Mutex
	csrfToken     string
	sessionCookie string
	loggedIn      bool
}

// NewSession はSessionを生成する。
// serverURLはリモートサーバーのベースURL（例: "https://scim.example.test"）。
// 渡されたHTTPクライアントはリダイレクトを追跡しない形に複製される
// （ログインURLの発見にリダイレクトレスポンス自体が必要なため）。
// metricsはnil可。
func NewSession(serverURL string, creds Credentials, client *http.Client, logger *slog.Logger, metrics LoginRecorder) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Session{
		adminURL: strings.TrimRight(serverURL, "/") + "/admin/",
		creds:    creds,
		client:   &c,
		logger:   logger,
		metrics:  metrics,
	}
}

// EnsureAuthenticated は未認証の場合のみログインフローを実行する。
// 認証済みの場合は即座に返る。呼び出し側がログインステップを
// 直接実行することはない。
func (s *Session) EnsureAuthenticated(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loggedIn {
		return nil
	}

	csrf, session, err := s.login(ctx)
	if s.metrics != nil {
		s.metrics.RecordLogin(err == nil)
	}
	if err != nil {
		// 失敗時はANONYMOUSへ戻す
		s.csrfToken = ""
		s.sessionCookie = ""
		s.loggedIn = false
		return err
	}

	s.csrfToken = csrf
	s.sessionCookie = session
	s.loggedIn = true

	s.logger.Info("scim session established",
		slog.String("admin_url", s.adminURL),
		slog.String("login_user", s.creds.Username),
	)

	return nil
}

// Reset はセッションを破棄する。次の認証済み呼び出しで再ログインされる。
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrfToken = ""
	s.sessionCookie = ""
	s.loggedIn = false
}

// LoggedIn は現在の認証状態を返す。
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

// ApplyHeaders は認証済みリクエストに必要なヘッダーを付与する。
// CSRFトークンとセッションCookieの両方が存在する場合は両方を送る。
func (s *Session) ApplyHeaders(req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cookies []string
	if s.csrfToken != "" {
		req.Header.Set(csrfHeaderName, s.csrfToken)
		cookies = append(cookies, csrfCookieName+"="+s.csrfToken)
	}
	if s.sessionCookie != "" {
		cookies = append(cookies, sessionCookieName+"="+s.sessionCookie)
	}
	if len(cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(cookies, "; "))
	}
}

// login は3ステップのログインフローを実行し、取得した
// CSRFトークンとセッションCookieを返す。呼び出し側がmuを保持していること。
//
//  1. 管理ページをGETし、リダイレクト先のログインURLとCSRF Cookieを収集する
//  2. CSRFトークンが未取得の場合はログインURLをGETして取得する
//  3. CSRFトークンをCookieとヘッダーの両方に載せて認証情報をPOSTし、
//     ローテーションされたCSRFトークンとセッションCookieを受け取る
func (s *Session) login(ctx context.Context) (string, string, error) {
	// Step 1: ログインURLの発見
	resp, err := s.get(ctx, s.adminURL)
	if err != nil {
		return "", "", err
	}
	resp.Body.Close()

	loginURL := s.adminURL
	if isRedirect(resp.StatusCode) {
		loc := resp.Header.Get("Location")
		if loc == "" {
			return "", "", model.NewLoginFailedError("redirect without Location header")
		}
		resolved, err := resolveURL(s.adminURL, loc)
		if err != nil {
			return "", "", model.NewLoginFailedError(fmt.Sprintf("invalid login redirect: %v", err))
		}
		loginURL = resolved
	} else if resp.StatusCode >= 400 {
		return "", "", model.NewLoginFailedError(fmt.Sprintf("admin page returned status %d", resp.StatusCode))
	}

	csrf := cookieValue(resp, csrfCookieName)

	// Step 2: CSRFトークンの取得
	if csrf == "" {
		resp, err = s.get(ctx, loginURL)
		if err != nil {
			return "", "", err
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return "", "", model.NewLoginFailedError(fmt.Sprintf("login page returned status %d", resp.StatusCode))
		}
		csrf = cookieValue(resp, csrfCookieName)
	}
	if csrf == "" {
		return "", "", model.NewLoginFailedError("no csrftoken cookie in login page response")
	}

	// Step 3: 認証情報のPOST
	form := url.Values{
		"username": {s.creds.Username},
		"password": {s.creds.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(csrfHeaderName, csrf)
	req.Header.Set("Referer", loginURL)
	req.Header.Set("Cookie", csrfCookieName+"="+csrf)

	resp, err = s.client.Do(req)
	if err != nil {
		return "", "", model.NewConnectionError(err.Error())
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", "", model.NewLoginFailedError(fmt.Sprintf("credential post returned status %d", resp.StatusCode))
	}

	// サーバーはログイン成功時にCSRFトークンをローテーションする
	if rotated := cookieValue(resp, csrfCookieName); rotated != "" {
		csrf = rotated
	}

	session := cookieValue(resp, sessionCookieName)
	if session == "" {
		return "", "", model.NewLoginFailedError("no sessionid cookie in login response")
	}

	return csrf, session, nil
}

// get はログインフロー内のGETリクエストを実行する。
// 転送エラーはConnectionErrorとして返す。
func (s *Session) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, model.NewConnectionError(err.Error())
	}
	return resp, nil
}

// cookieValue はレスポンスのSet-Cookieから指定名のCookie値を取り出す。
func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name && c.Value != "" {
			return c.Value
		}
	}
	return ""
}

// isRedirect はリダイレクト系ステータスコードかを判定する。
func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// resolveURL はベースURLに対して相対参照を解決する。
func resolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
