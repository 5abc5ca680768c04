// Package azuread talks to Microsoft Graph with the client-credentials grant.
package azuread

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/topagents/idp-discovery/internal/idp"
)

const (
	defaultBaseURL  = "https://graph.microsoft.com/v1.0"
	defaultLoginURL = "https://login.microsoftonline.com"
	defaultTimeout  = idp.DefaultTimeout

	graphScope = "https://graph.microsoft.com/.default"
)

// Provider implements idp.Provider for Azure AD (Entra ID).
type Provider struct {
	baseURL    string
	loginURL   string
	timeout    time.Duration
	maxPages   int
	httpClient *http.Client
}

// NewProvider creates a Provider with explicit configuration.
func NewProvider(baseURL, loginURL string, timeout time.Duration) *Provider {
	return NewProviderWithClient(baseURL, loginURL, timeout, nil)
}

// NewProviderWithClient creates a Provider with an optional custom HTTP client.
func NewProviderWithClient(baseURL, loginURL string, timeout time.Duration, httpClient *http.Client) *Provider {
	trimmedBaseURL := strings.TrimSpace(baseURL)
	if trimmedBaseURL == "" {
		trimmedBaseURL = defaultBaseURL
	}
	trimmedLoginURL := strings.TrimSpace(loginURL)
	if trimmedLoginURL == "" {
		trimmedLoginURL = defaultLoginURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Provider{
		baseURL:    strings.TrimRight(trimmedBaseURL, "/"),
		loginURL:   strings.TrimRight(trimmedLoginURL, "/"),
		timeout:    timeout,
		maxPages:   idp.DefaultMaxPages,
		httpClient: httpClient,
	}
}

// WithMaxPages caps how many @odata.nextLink pages FetchApps follows.
func (p *Provider) WithMaxPages(n int) *Provider {
	if n > 0 {
		p.maxPages = n
	}
	return p
}

func (p *Provider) Type() idp.ProviderType {
	return idp.ProviderAzureAD
}

// TestConnection obtains an app-only token and reads one application.
func (p *Provider) TestConnection(ctx context.Context, cfg idp.Config) error {
	az, err := p.config(cfg)
	if err != nil {
		return err
	}
	s := idp.NewSession(p.Type(), p.httpClient, p.timeout)
	ctx, cancel := s.Context(ctx)
	defer cancel()

	header, err := p.authorize(ctx, s, az)
	if err != nil {
		return err
	}
	resp, err := s.Get(ctx, p.apiURL(cfg)+"/applications?$top=1", header)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return s.StatusError(resp)
	}
	s.Discard(resp)
	return nil
}

// FetchApps lists application registrations, following @odata.nextLink.
func (p *Provider) FetchApps(ctx context.Context, cfg idp.Config) ([]idp.NormalizedApp, error) {
	az, err := p.config(cfg)
	if err != nil {
		return nil, err
	}
	s := idp.NewSession(p.Type(), p.httpClient, p.timeout)
	ctx, cancel := s.Context(ctx)
	defer cancel()

	header, err := p.authorize(ctx, s, az)
	if err != nil {
		return nil, err
	}

	base := p.apiURL(cfg)
	next := base + "/applications"
	apps := make([]idp.NormalizedApp, 0)
	for page := 0; page < p.maxPages && next != ""; page++ {
		resp, err := s.Get(ctx, next, header)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, s.StatusError(resp)
		}

		var body idp.Record
		if err := s.DecodeJSON(resp, &body); err != nil {
			return nil, err
		}
		records, ok := idp.RecordList(body, "value")
		if !ok {
			return nil, idp.MalformedListError(p.Type(), "value")
		}
		apps = append(apps, idp.NormalizeAzureApps(records)...)

		next = idp.NextPageToken(body, "@odata.nextLink")
		if next != "" && !idp.SameOrigin(base, next) {
			log.Printf("⚠️ [azure_ad] Ignoring nextLink on a different host")
			next = ""
		}
	}
	return apps, nil
}

func (p *Provider) config(cfg idp.Config) (*idp.AzureADConfig, error) {
	if cfg.AzureAD == nil {
		return nil, idp.NewValidationError(p.Type(), "type", "configuration is not an Azure AD configuration")
	}
	return cfg.AzureAD, nil
}

func (p *Provider) apiURL(cfg idp.Config) string {
	if cfg.APIURL != "" {
		return cfg.APIURL
	}
	return p.baseURL
}

func (p *Provider) tokenURL(tenantID string) string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", p.loginURL, url.PathEscape(tenantID))
}

func (p *Provider) authorize(ctx context.Context, s *idp.Session, az *idp.AzureADConfig) (http.Header, error) {
	cc := clientcredentials.Config{
		ClientID:     az.ClientID,
		ClientSecret: az.ClientSecret,
		TokenURL:     p.tokenURL(az.TenantID),
		Scopes:       []string{graphScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	token, err := cc.Token(ctx)
	if err != nil {
		return nil, s.TokenError(err)
	}
	return http.Header{"Authorization": {token.Type() + " " + token.AccessToken}}, nil
}
