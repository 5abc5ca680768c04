package models

import "time"

// IDPIntegration stores one registered identity provider and the state of its
// last connection test. Config holds the provider fields as JSON and contains secrets.
type IDPIntegration struct {
	ID             string     `gorm:"primaryKey"` // UUID
	DisplayName    string     `gorm:"not null"`
	ProviderType   string     `gorm:"index;not null"` // google_workspace, azure_ad, okta
	Config         string     `gorm:"type:text;not null"`
	APIURL         string
	Status         string     `gorm:"index;not null;default:pending"` // pending, active, error
	LastTestedAt   *time.Time
	LastTestStatus string     // success, failed
	ErrorMessage   *string    `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName keeps the table name stable across struct renames.
func (IDPIntegration) TableName() string {
	return "idp_integrations"
}
