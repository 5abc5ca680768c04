package idp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig_MissingFieldsListedInOrder(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		fields   map[string]string
		want     []string
	}{
		{"google", "google_workspace", map[string]string{}, []string{"service_account_json"}},
		{"azure all", "azure_ad", map[string]string{}, []string{"tenant_id", "client_id", "client_secret"}},
		{"azure blank secret", "azure_ad", map[string]string{"tenant_id": "t", "client_id": "c", "client_secret": "  "}, []string{"client_secret"}},
		{"okta token", "okta", map[string]string{"domain": "acme.okta.com"}, []string{"api_token"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateConfig(tt.provider, tt.fields, "")
			require.Error(t, err)

			var ierr *Error
			require.ErrorAs(t, err, &ierr)
			assert.Equal(t, KindValidation, ierr.Kind)
			assert.Equal(t, tt.want, ierr.Fields)
			assert.True(t, strings.HasPrefix(ierr.Message, "Missing required fields"))
			for _, f := range tt.want {
				assert.Contains(t, ierr.Message, f)
			}
		})
	}
}

func TestValidateConfig_UnsupportedProvider(t *testing.T) {
	_, err := ValidateConfig("unsupported_provider", map[string]string{}, "")
	assert.Equal(t, KindUnsupportedProvider, KindOf(err))
	assert.Contains(t, err.Error(), "Unsupported provider type")
}

func TestValidateConfig_OktaDomain(t *testing.T) {
	tests := []struct {
		domain string
		ok     bool
	}{
		{"acme.okta.com", true},
		{"Acme-Corp.okta.com", true},
		{"a.okta.com", true},
		{"invalid-domain.com", false},
		{"-acme.okta.com", false},
		{"acme-.okta.com", false},
		{"acme.okta.com.evil.io", false},
		{"https://acme.okta.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			cfg, err := ValidateConfig("okta", map[string]string{"domain": tt.domain, "api_token": "00abc"}, "")
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, strings.ToLower(tt.domain), cfg.Okta.Domain)
				return
			}
			assert.Equal(t, KindInvalidDomainFormat, KindOf(err))
			assert.Contains(t, err.Error(), "Invalid domain format")
		})
	}
}

func TestValidateConfig_APIURL(t *testing.T) {
	fields := map[string]string{"tenant_id": "t", "client_id": "c", "client_secret": "s"}

	cfg, err := ValidateConfig("azure_ad", fields, "https://graph.example.test/v1.0/")
	require.NoError(t, err)
	assert.Equal(t, "https://graph.example.test/v1.0", cfg.APIURL)

	for _, bad := range []string{"graph.example.test", "ftp://graph.example.test", "https://"} {
		_, err := ValidateConfig("azure_ad", fields, bad)
		var ierr *Error
		require.ErrorAs(t, err, &ierr, bad)
		assert.Equal(t, KindValidation, ierr.Kind)
		assert.Equal(t, []string{"api_url"}, ierr.Fields)
	}
}

func TestValidateConfig_BuildsVariant(t *testing.T) {
	cfg, err := ValidateConfig(" google_workspace ", map[string]string{
		"service_account_json": `{"type":"service_account"}`,
		"admin_email":          "admin@example.com",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogleWorkspace, cfg.Type)
	require.NotNil(t, cfg.GoogleWorkspace)
	assert.Nil(t, cfg.AzureAD)
	assert.Nil(t, cfg.Okta)
	assert.Equal(t, "admin@example.com", cfg.GoogleWorkspace.AdminEmail)
}

func TestStoredConfigRoundTripAndRedaction(t *testing.T) {
	cfg, err := ValidateConfig("okta", map[string]string{"domain": "acme.okta.com", "api_token": "00aBcDeFgHiJkLmNoP1234"}, "")
	require.NoError(t, err)

	stored, err := cfg.MarshalFields()
	require.NoError(t, err)

	again, err := ParseStoredConfig("okta", stored, "")
	require.NoError(t, err)
	assert.Equal(t, cfg, again)

	redacted := cfg.Redacted()
	assert.Equal(t, "acme.okta.com", redacted["domain"])
	assert.NotContains(t, redacted["api_token"], "00aBcDeF")
}

func TestFieldsFromJSON(t *testing.T) {
	fields := FieldsFromJSON(map[string]any{
		"tenant_id":            "t-1",
		"service_account_json": map[string]any{"type": "service_account"},
		"max":                  float64(3),
		"nothing":              nil,
	})
	assert.Equal(t, "t-1", fields["tenant_id"])
	assert.JSONEq(t, `{"type":"service_account"}`, fields["service_account_json"])
	assert.Equal(t, "3", fields["max"])
	assert.NotContains(t, fields, "nothing")
}
