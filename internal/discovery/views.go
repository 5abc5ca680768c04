package discovery

import (
	"log"
	"time"

	"github.com/topagents/idp-discovery/internal/db/models"
	"github.com/topagents/idp-discovery/internal/idp"
)

// IntegrationView is the operator-facing view of an integration. Secrets in
// Config are masked.
type IntegrationView struct {
	ID             string            `json:"id"`
	DisplayName    string            `json:"display_name"`
	ProviderType   string            `json:"type"`
	APIURL         string            `json:"api_url,omitempty"`
	Status         string            `json:"status"`
	LastTestedAt   *time.Time        `json:"last_tested_at"`
	LastTestStatus string            `json:"last_test_status,omitempty"`
	ErrorMessage   *string           `json:"error_message"`
	Config         map[string]string `json:"config"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func newIntegrationView(integration *models.IDPIntegration) IntegrationView {
	view := IntegrationView{
		ID:             integration.ID,
		DisplayName:    integration.DisplayName,
		ProviderType:   integration.ProviderType,
		APIURL:         integration.APIURL,
		Status:         integration.Status,
		LastTestedAt:   integration.LastTestedAt,
		LastTestStatus: integration.LastTestStatus,
		ErrorMessage:   integration.ErrorMessage,
		Config:         map[string]string{},
		CreatedAt:      integration.CreatedAt,
		UpdatedAt:      integration.UpdatedAt,
	}
	cfg, err := idp.ParseStoredConfig(integration.ProviderType, integration.Config, integration.APIURL)
	if err != nil {
		log.Printf("⚠️ Stored config of integration %s does not parse: %s", integration.ID, idp.KindOf(err))
		return view
	}
	view.Config = cfg.Redacted()
	return view
}
