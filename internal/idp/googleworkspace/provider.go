// Package googleworkspace talks to the Google Admin SDK with a service-account key.
package googleworkspace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/topagents/idp-discovery/internal/idp"
)

const (
	defaultBaseURL = "https://admin.googleapis.com"
	defaultTimeout = idp.DefaultTimeout
)

// Scopes requested for the service-account token.
var Scopes = []string{
	"https://www.googleapis.com/auth/admin.directory.user.readonly",
	"https://www.googleapis.com/auth/admin.directory.domain.readonly",
}

// serviceAccountKey is the subset of the key file checked before signing.
type serviceAccountKey struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// Provider implements idp.Provider for Google Workspace.
type Provider struct {
	baseURL    string
	timeout    time.Duration
	maxPages   int
	httpClient *http.Client
}

// NewProvider creates a Provider with explicit configuration.
func NewProvider(baseURL string, timeout time.Duration) *Provider {
	return NewProviderWithClient(baseURL, timeout, nil)
}

// NewProviderWithClient creates a Provider with an optional custom HTTP client.
// Only the client's transport is used; each operation gets its own deadline.
func NewProviderWithClient(baseURL string, timeout time.Duration, httpClient *http.Client) *Provider {
	trimmedBaseURL := strings.TrimSpace(baseURL)
	if trimmedBaseURL == "" {
		trimmedBaseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Provider{
		baseURL:    strings.TrimRight(trimmedBaseURL, "/"),
		timeout:    timeout,
		maxPages:   idp.DefaultMaxPages,
		httpClient: httpClient,
	}
}

// WithMaxPages caps how many catalog pages FetchApps follows.
func (p *Provider) WithMaxPages(n int) *Provider {
	if n > 0 {
		p.maxPages = n
	}
	return p
}

func (p *Provider) Type() idp.ProviderType {
	return idp.ProviderGoogleWorkspace
}

// TestConnection signs a token with the key and lists one directory user.
func (p *Provider) TestConnection(ctx context.Context, cfg idp.Config) error {
	gw, err := p.config(cfg)
	if err != nil {
		return err
	}
	s := idp.NewSession(p.Type(), p.httpClient, p.timeout)
	ctx, cancel := s.Context(ctx)
	defer cancel()

	header, err := p.authorize(ctx, s, gw)
	if err != nil {
		return err
	}

	query := url.Values{
		"customer":   {customerID(gw)},
		"maxResults": {"1"},
	}
	resp, err := s.Get(ctx, p.apiURL(cfg)+"/admin/directory/v1/users?"+query.Encode(), header)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return s.StatusError(resp)
	}
	s.Discard(resp)
	return nil
}

// FetchApps lists the customer's applications, following nextPageToken.
func (p *Provider) FetchApps(ctx context.Context, cfg idp.Config) ([]idp.NormalizedApp, error) {
	gw, err := p.config(cfg)
	if err != nil {
		return nil, err
	}
	s := idp.NewSession(p.Type(), p.httpClient, p.timeout)
	ctx, cancel := s.Context(ctx)
	defer cancel()

	header, err := p.authorize(ctx, s, gw)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/admin/directory/v1/customer/%s/applications", p.apiURL(cfg), url.PathEscape(customerID(gw)))
	apps := make([]idp.NormalizedApp, 0)
	pageToken := ""
	for page := 0; page < p.maxPages; page++ {
		reqURL := endpoint
		if pageToken != "" {
			reqURL += "?" + url.Values{"pageToken": {pageToken}}.Encode()
		}

		resp, err := s.Get(ctx, reqURL, header)
		if err != nil {
			return nil, err
		}
		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusForbidden:
			return nil, s.QuotaError(resp)
		default:
			return nil, s.StatusError(resp)
		}

		var body idp.Record
		if err := s.DecodeJSON(resp, &body); err != nil {
			return nil, err
		}
		records, ok := idp.RecordList(body, "applications", "items")
		if !ok {
			return nil, idp.MalformedListError(p.Type(), "applications", "items")
		}
		apps = append(apps, idp.NormalizeGoogleApps(records)...)

		if pageToken = idp.NextPageToken(body, "nextPageToken"); pageToken == "" {
			break
		}
	}
	return apps, nil
}

func (p *Provider) config(cfg idp.Config) (*idp.GoogleWorkspaceConfig, error) {
	if cfg.GoogleWorkspace == nil {
		return nil, idp.NewValidationError(p.Type(), "type", "configuration is not a Google Workspace configuration")
	}
	return cfg.GoogleWorkspace, nil
}

func (p *Provider) apiURL(cfg idp.Config) string {
	if cfg.APIURL != "" {
		return cfg.APIURL
	}
	return p.baseURL
}

// authorize exchanges the service-account key for a bearer header.
func (p *Provider) authorize(ctx context.Context, s *idp.Session, gw *idp.GoogleWorkspaceConfig) (http.Header, error) {
	keyJSON := []byte(gw.ServiceAccountJSON)

	var key serviceAccountKey
	if err := json.Unmarshal(keyJSON, &key); err != nil {
		return nil, idp.NewInvalidCredentialsError(p.Type(), "service account JSON could not be parsed", err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, idp.NewInvalidCredentialsError(p.Type(), "service account JSON has no client_email or private_key", nil)
	}

	jwtConfig, err := google.JWTConfigFromJSON(keyJSON, Scopes...)
	if err != nil {
		return nil, idp.NewInvalidCredentialsError(p.Type(), "service account key is not usable", err)
	}
	if gw.AdminEmail != "" {
		jwtConfig.Subject = gw.AdminEmail
	}

	token, err := jwtConfig.TokenSource(ctx).Token()
	if err != nil {
		return nil, s.TokenError(err)
	}
	return http.Header{"Authorization": {token.Type() + " " + token.AccessToken}}, nil
}

func customerID(gw *idp.GoogleWorkspaceConfig) string {
	if gw.CustomerID != "" {
		return gw.CustomerID
	}
	return idp.DefaultGoogleCustomerID
}
