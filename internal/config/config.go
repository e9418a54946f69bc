// Package config は環境変数ベースの設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hitoshi/scimbridge/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// SCIM
	SCIMServerURL string // 例: "https://scim.example.test"
	LoginUsername string
	LoginPassword string
	RemoteTimeout time.Duration

	// Federation
	FederationLink string

	// Integration Domain（未設定の場合はAPI経由でのみプロビジョニング可能）
	DomainName          string
	DomainDescription   string
	DomainURL           string
	DomainClientID      string
	DomainClientSecret  string
	DomainIDProvider    string
	DomainExtraAttrs    string
	DomainLDAPCACert    string
	DomainObjectClasses string
	DomainCheckInterval time.Duration

	// Rate Limit（req/min単位）
	RateLimitGeneral      int
	RateLimitRegistration int

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SCIMServerURL = os.Getenv("SCIM_SERVER_URL")
	if cfg.SCIMServerURL == "" {
		missing = append(missing, "SCIM_SERVER_URL")
	}

	cfg.LoginUsername = os.Getenv("SCIM_LOGIN_USERNAME")
	if cfg.LoginUsername == "" {
		missing = append(missing, "SCIM_LOGIN_USERNAME")
	}

	cfg.LoginPassword = os.Getenv("SCIM_LOGIN_PASSWORD")
	if cfg.LoginPassword == "" {
		missing = append(missing, "SCIM_LOGIN_PASSWORD")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RemoteTimeout = getEnvDuration("SCIM_REMOTE_TIMEOUT", 10*time.Second)
	cfg.FederationLink = getEnvString("FEDERATION_LINK", "scimbridge")

	cfg.DomainName = getEnvString("DOMAIN_NAME", "")
	cfg.DomainDescription = getEnvString("DOMAIN_DESCRIPTION", "")
	cfg.DomainURL = getEnvString("DOMAIN_URL", "")
	cfg.DomainClientID = getEnvString("DOMAIN_CLIENT_ID", "")
	cfg.DomainClientSecret = getEnvString("DOMAIN_CLIENT_SECRET", "")
	cfg.DomainIDProvider = getEnvString("DOMAIN_ID_PROVIDER", "ipa")
	cfg.DomainExtraAttrs = getEnvString("DOMAIN_USER_EXTRA_ATTRS", "")
	cfg.DomainLDAPCACert = getEnvString("DOMAIN_LDAP_TLS_CACERT", "")
	cfg.DomainObjectClasses = getEnvString("DOMAIN_USER_OBJECT_CLASSES", "")
	cfg.DomainCheckInterval = getEnvDuration("DOMAIN_CHECK_INTERVAL", time.Minute)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 300)
	cfg.RateLimitRegistration = getEnvInt("RATE_LIMIT_REGISTRATION", 30)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

// DomainSpec は環境変数由来の統合ドメイン設定を返す。
// ドメイン名が未設定の場合はnilを返す。
func (c *Config) DomainSpec() *model.IntegrationDomainSpec {
	if c.DomainName == "" {
		return nil
	}
	return &model.IntegrationDomainSpec{
		Name:                 c.DomainName,
		Description:          c.DomainDescription,
		IntegrationDomainURL: c.DomainURL,
		ClientID:             c.DomainClientID,
		ClientSecret:         c.DomainClientSecret,
		IDProvider:           c.DomainIDProvider,
		UserExtraAttrs:       c.DomainExtraAttrs,
		LDAPTLSCACert:        c.DomainLDAPCACert,
		UserObjectClasses:    c.DomainObjectClasses,
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
