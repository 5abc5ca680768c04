// Package okta talks to the Okta management API with an SSWS token.
package okta

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/topagents/idp-discovery/internal/idp"
)

const (
	defaultTimeout = idp.DefaultTimeout
	pageSize       = "200"
)

// DefaultKnownAppNames are catalog integrations reported by their Okta name
// rather than the tenant's label.
var DefaultKnownAppNames = []string{
	"Salesforce",
	"Slack",
	"Zoom",
	"Box",
	"Dropbox",
	"GitHub",
	"Atlassian",
	"Workday",
	"ServiceNow",
	"DocuSign",
}

// Provider implements idp.Provider for Okta.
type Provider struct {
	timeout    time.Duration
	maxPages   int
	knownApps  map[string]struct{}
	httpClient *http.Client
}

// NewProvider creates a Provider. A nil knownApps uses DefaultKnownAppNames.
func NewProvider(timeout time.Duration, knownApps []string) *Provider {
	return NewProviderWithClient(timeout, knownApps, nil)
}

// NewProviderWithClient creates a Provider with an optional custom HTTP client.
func NewProviderWithClient(timeout time.Duration, knownApps []string, httpClient *http.Client) *Provider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if knownApps == nil {
		knownApps = DefaultKnownAppNames
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Provider{
		timeout:    timeout,
		maxPages:   idp.DefaultMaxPages,
		knownApps:  idp.KnownNameSet(knownApps),
		httpClient: httpClient,
	}
}

// WithMaxPages caps how many Link rel="next" pages FetchApps follows.
func (p *Provider) WithMaxPages(n int) *Provider {
	if n > 0 {
		p.maxPages = n
	}
	return p
}

func (p *Provider) Type() idp.ProviderType {
	return idp.ProviderOkta
}

// TestConnection reads the org profile.
func (p *Provider) TestConnection(ctx context.Context, cfg idp.Config) error {
	o, err := p.config(cfg)
	if err != nil {
		return err
	}
	s := idp.NewSession(p.Type(), p.httpClient, p.timeout)
	ctx, cancel := s.Context(ctx)
	defer cancel()

	resp, err := s.Get(ctx, apiURL(cfg, o)+"/org", authHeader(o))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return s.StatusError(resp)
	}
	s.Discard(resp)
	return nil
}

// FetchApps lists app instances, following the Link rel="next" header.
func (p *Provider) FetchApps(ctx context.Context, cfg idp.Config) ([]idp.NormalizedApp, error) {
	o, err := p.config(cfg)
	if err != nil {
		return nil, err
	}
	s := idp.NewSession(p.Type(), p.httpClient, p.timeout)
	ctx, cancel := s.Context(ctx)
	defer cancel()

	base := apiURL(cfg, o)
	header := authHeader(o)
	next := base + "/apps?limit=" + pageSize
	apps := make([]idp.NormalizedApp, 0)
	for page := 0; page < p.maxPages && next != ""; page++ {
		resp, err := s.Get(ctx, next, header)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, s.StatusError(resp)
		}

		link := nextLink(resp.Header)
		var items []any
		if err := s.DecodeJSON(resp, &items); err != nil {
			return nil, err
		}
		records := make([]idp.Record, 0, len(items))
		for _, item := range items {
			if rec, ok := item.(map[string]any); ok {
				records = append(records, rec)
			}
		}
		apps = append(apps, idp.NormalizeOktaApps(records, p.knownApps)...)

		next = link
		if next != "" && !idp.SameOrigin(base, next) {
			log.Printf("⚠️ [okta] Ignoring next link on a different host")
			next = ""
		}
	}
	return apps, nil
}

func (p *Provider) config(cfg idp.Config) (*idp.OktaConfig, error) {
	if cfg.Okta == nil {
		return nil, idp.NewValidationError(p.Type(), "type", "configuration is not an Okta configuration")
	}
	return cfg.Okta, nil
}

func apiURL(cfg idp.Config, o *idp.OktaConfig) string {
	if cfg.APIURL != "" {
		return cfg.APIURL
	}
	return "https://" + o.Domain + "/api/v1"
}

func authHeader(o *idp.OktaConfig) http.Header {
	return http.Header{"Authorization": {"SSWS " + o.APIToken}}
}

// nextLink returns the rel="next" target of RFC 8288 Link headers.
func nextLink(h http.Header) string {
	for _, value := range h.Values("Link") {
		for _, part := range strings.Split(value, ",") {
			segments := strings.Split(part, ";")
			target := strings.TrimSpace(segments[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			for _, param := range segments[1:] {
				param = strings.ReplaceAll(strings.TrimSpace(param), " ", "")
				if param == `rel="next"` || param == "rel=next" {
					return strings.Trim(target, "<>")
				}
			}
		}
	}
	return ""
}
