package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/topagents/idp-discovery/internal/db/models"
)

// ErrNotFound is returned when an integration does not exist.
var ErrNotFound = errors.New("db: record not found")

// IntegrationStore persists IDP integrations and their connection test history.
type IntegrationStore struct {
	db *gorm.DB
}

func NewIntegrationStore(db *gorm.DB) *IntegrationStore {
	return &IntegrationStore{db: db}
}

func (s *IntegrationStore) CreateIntegration(ctx context.Context, integration *models.IDPIntegration) error {
	if err := s.db.WithContext(ctx).Create(integration).Error; err != nil {
		return fmt.Errorf("create integration %s: %w", integration.ID, err)
	}
	return nil
}

func (s *IntegrationStore) GetIntegration(ctx context.Context, id string) (*models.IDPIntegration, error) {
	var integration models.IDPIntegration
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&integration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get integration %s: %w", id, err)
	}
	return &integration, nil
}

// SaveIntegration writes every column of the record. Last writer wins.
func (s *IntegrationStore) SaveIntegration(ctx context.Context, integration *models.IDPIntegration) error {
	if err := s.db.WithContext(ctx).Save(integration).Error; err != nil {
		return fmt.Errorf("save integration %s: %w", integration.ID, err)
	}
	return nil
}

func (s *IntegrationStore) ListIntegrations(ctx context.Context) ([]models.IDPIntegration, error) {
	var integrations []models.IDPIntegration
	if err := s.db.WithContext(ctx).Order("created_at desc, id").Find(&integrations).Error; err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	return integrations, nil
}

func (s *IntegrationStore) AppendTestLog(ctx context.Context, entry *models.ConnectionTestLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append test log for %s: %w", entry.IntegrationID, err)
	}
	return nil
}

// ListTestLogs returns the newest logs first. limit <= 0 returns all of them.
func (s *IntegrationStore) ListTestLogs(ctx context.Context, integrationID string, limit int) ([]models.ConnectionTestLog, error) {
	q := s.db.WithContext(ctx).Where("integration_id = ?", integrationID).Order("tested_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var logs []models.ConnectionTestLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list test logs for %s: %w", integrationID, err)
	}
	return logs, nil
}

// Ping checks that the database answers queries.
func (s *IntegrationStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
