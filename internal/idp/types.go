// Package idp validates identity-provider credentials, probes provider APIs and
// normalizes their application catalogs into one record shape.
package idp

import "context"

// ProviderType identifies a supported identity provider.
type ProviderType string

const (
	ProviderGoogleWorkspace ProviderType = "google_workspace"
	ProviderAzureAD         ProviderType = "azure_ad"
	ProviderOkta            ProviderType = "okta"
)

// ProviderTypes lists every supported provider in a stable order.
var ProviderTypes = []ProviderType{ProviderGoogleWorkspace, ProviderAzureAD, ProviderOkta}

// DisplayName returns the human label used in messages.
func (t ProviderType) DisplayName() string {
	switch t {
	case ProviderGoogleWorkspace:
		return "Google Workspace"
	case ProviderAzureAD:
		return "Azure AD"
	case ProviderOkta:
		return "Okta"
	default:
		return string(t)
	}
}

// Status is the integration state derived from the last connection test.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusError   Status = "error"
)

// TestStatus is the outcome of the most recent connection test.
type TestStatus string

const (
	TestSuccess TestStatus = "success"
	TestFailed  TestStatus = "failed"
)

// NormalizedApp is the provider-agnostic application record.
type NormalizedApp struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Provider is implemented once per identity provider.
// TestConnection and FetchApps return *Error values for every upstream failure.
type Provider interface {
	Type() ProviderType
	TestConnection(ctx context.Context, cfg Config) error
	FetchApps(ctx context.Context, cfg Config) ([]NormalizedApp, error)
}
