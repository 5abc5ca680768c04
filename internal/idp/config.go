package idp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/topagents/idp-discovery/internal/util"
)

// DefaultGoogleCustomerID addresses the customer that owns the service account.
const DefaultGoogleCustomerID = "my_customer"

// oktaDomainPattern accepts <org>.okta.com with a DNS-label org name.
var oktaDomainPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.okta\.com$`)

// GoogleWorkspaceConfig holds a service-account key and optional delegation subject.
type GoogleWorkspaceConfig struct {
	ServiceAccountJSON string
	AdminEmail         string
	CustomerID         string
}

// AzureADConfig holds application credentials for the client-credentials grant.
type AzureADConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// OktaConfig holds an Okta org domain and its SSWS API token.
type OktaConfig struct {
	Domain   string
	APIToken string
}

// Config is a validated provider configuration. Exactly one variant pointer is set,
// matching Type.
type Config struct {
	Type   ProviderType
	APIURL string

	GoogleWorkspace *GoogleWorkspaceConfig
	AzureAD         *AzureADConfig
	Okta            *OktaConfig
}

type fieldSchema struct {
	required []string
	secrets  []string
}

var schemas = map[ProviderType]fieldSchema{
	ProviderGoogleWorkspace: {
		required: []string{"service_account_json"},
		secrets:  []string{"service_account_json"},
	},
	ProviderAzureAD: {
		required: []string{"tenant_id", "client_id", "client_secret"},
		secrets:  []string{"client_secret"},
	},
	ProviderOkta: {
		required: []string{"domain", "api_token"},
		secrets:  []string{"api_token"},
	},
}

// RequiredFields returns the required field names of a provider in declaration order.
func RequiredFields(t ProviderType) []string {
	return append([]string(nil), schemas[t].required...)
}

// ValidateConfig checks raw registration fields against the provider schema.
// It performs no network I/O.
func ValidateConfig(providerType string, fields map[string]string, apiURL string) (Config, error) {
	t := ProviderType(strings.TrimSpace(providerType))
	schema, ok := schemas[t]
	if !ok {
		return Config{}, NewUnsupportedProviderError(providerType)
	}

	var missing []string
	for _, name := range schema.required {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Config{}, NewMissingFieldsError(t, missing)
	}

	apiURL = strings.TrimSpace(apiURL)
	if apiURL != "" {
		if err := checkAPIURL(apiURL); err != nil {
			return Config{}, NewValidationError(t, "api_url", err.Error())
		}
		apiURL = strings.TrimRight(apiURL, "/")
	}

	cfg := Config{Type: t, APIURL: apiURL}
	get := func(name string) string { return strings.TrimSpace(fields[name]) }

	switch t {
	case ProviderGoogleWorkspace:
		cfg.GoogleWorkspace = &GoogleWorkspaceConfig{
			ServiceAccountJSON: fields["service_account_json"],
			AdminEmail:         get("admin_email"),
			CustomerID:         get("customer_id"),
		}
	case ProviderAzureAD:
		cfg.AzureAD = &AzureADConfig{
			TenantID:     get("tenant_id"),
			ClientID:     get("client_id"),
			ClientSecret: get("client_secret"),
		}
	case ProviderOkta:
		domain := strings.ToLower(get("domain"))
		if !oktaDomainPattern.MatchString(domain) {
			return Config{}, NewInvalidDomainFormatError(get("domain"))
		}
		cfg.Okta = &OktaConfig{Domain: domain, APIToken: get("api_token")}
	}
	return cfg, nil
}

func checkAPIURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must be absolute")
	}
	return nil
}

// Fields returns the provider-specific fields in their wire names. Empty optional
// fields are omitted.
func (c Config) Fields() map[string]string {
	out := map[string]string{}
	put := func(name, value string) {
		if value != "" {
			out[name] = value
		}
	}
	switch {
	case c.GoogleWorkspace != nil:
		put("service_account_json", c.GoogleWorkspace.ServiceAccountJSON)
		put("admin_email", c.GoogleWorkspace.AdminEmail)
		put("customer_id", c.GoogleWorkspace.CustomerID)
	case c.AzureAD != nil:
		put("tenant_id", c.AzureAD.TenantID)
		put("client_id", c.AzureAD.ClientID)
		put("client_secret", c.AzureAD.ClientSecret)
	case c.Okta != nil:
		put("domain", c.Okta.Domain)
		put("api_token", c.Okta.APIToken)
	}
	return out
}

// MarshalFields serializes the provider fields for storage.
func (c Config) MarshalFields() (string, error) {
	b, err := json.Marshal(c.Fields())
	if err != nil {
		return "", fmt.Errorf("marshal %s config: %w", c.Type, err)
	}
	return string(b), nil
}

// ParseStoredConfig rebuilds a Config from its stored JSON fields and re-validates it.
func ParseStoredConfig(providerType, stored, apiURL string) (Config, error) {
	fields := map[string]string{}
	if strings.TrimSpace(stored) != "" {
		if err := json.Unmarshal([]byte(stored), &fields); err != nil {
			return Config{}, fmt.Errorf("decode stored %s config: %w", providerType, err)
		}
	}
	return ValidateConfig(providerType, fields, apiURL)
}

// Redacted returns the fields with every secret masked.
func (c Config) Redacted() map[string]string {
	fields := c.Fields()
	for _, name := range schemas[c.Type].secrets {
		if v, ok := fields[name]; ok {
			fields[name] = util.MaskSecret(v)
		}
	}
	return fields
}

// FieldsFromJSON flattens a decoded JSON object into string fields.
// Nested objects (e.g. an inline service-account key) are re-encoded as JSON text;
// null values are dropped.
func FieldsFromJSON(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			out[k] = v
		case map[string]any, []any:
			if b, err := json.Marshal(v); err == nil {
				out[k] = string(b)
			}
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
