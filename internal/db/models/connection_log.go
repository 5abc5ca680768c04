package models

import "time"

// ConnectionTestLog records the outcome of one connection test. It never holds credentials.
type ConnectionTestLog struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	IntegrationID string    `gorm:"index;not null" json:"integration_id"`
	ProviderType  string    `json:"provider_type"`
	Outcome       string    `json:"outcome"` // success, failed
	ErrorKind     string    `json:"error_kind,omitempty"`
	ErrorMessage  string    `gorm:"type:text" json:"error_message,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	TestedAt      time.Time `gorm:"index" json:"tested_at"`
}
