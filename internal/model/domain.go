package model

// IntegrationDomainSpec はリモートディレクトリ側に統合ドメインを
// プロビジョニングするための設定レコード。
// リモートの管理APIに一度だけ送信される。JSONフィールド名はワイヤ仕様に従う。
type IntegrationDomainSpec struct {
	Name                 string `json:"name"`
	Description          string `json:"description"`
	IntegrationDomainURL string `json:"integration_domain_url"`
	ClientID             string `json:"client_id"`
	ClientSecret         string `json:"client_secret"`
	IDProvider           string `json:"id_provider"`
	UserExtraAttrs       string `json:"user_extra_attrs,omitempty"`
	LDAPTLSCACert        string `json:"ldap_tls_cacert,omitempty"`
	UserObjectClasses    string `json:"user_object_classes,omitempty"`
}
