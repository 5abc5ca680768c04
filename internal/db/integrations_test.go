package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/topagents/idp-discovery/internal/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newIntegration(name string) *models.IDPIntegration {
	return &models.IDPIntegration{
		ID:           uuid.NewString(),
		DisplayName:  name,
		ProviderType: "okta",
		Config:       `{"domain":"acme.okta.com","api_token":"00tok"}`,
		Status:       "pending",
	}
}

func TestIntegrationStore_CreateGetSave(t *testing.T) {
	store := NewIntegrationStore(newTestDB(t))
	ctx := context.Background()

	rec := newIntegration("Acme Okta")
	require.NoError(t, store.CreateIntegration(ctx, rec))

	got, err := store.GetIntegration(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Okta", got.DisplayName)
	assert.Equal(t, "pending", got.Status)
	assert.Nil(t, got.ErrorMessage)

	now := time.Now().UTC()
	msg := "Invalid credentials: Okta rejected the credentials (401)"
	got.Status = "error"
	got.LastTestStatus = "failed"
	got.LastTestedAt = &now
	got.ErrorMessage = &msg
	require.NoError(t, store.SaveIntegration(ctx, got))

	again, err := store.GetIntegration(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "error", again.Status)
	require.NotNil(t, again.ErrorMessage)
	assert.Equal(t, msg, *again.ErrorMessage)
	require.NotNil(t, again.LastTestedAt)

	// clearing the message persists NULL
	again.Status = "active"
	again.ErrorMessage = nil
	require.NoError(t, store.SaveIntegration(ctx, again))
	cleared, err := store.GetIntegration(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.ErrorMessage)
}

func TestIntegrationStore_NotFound(t *testing.T) {
	store := NewIntegrationStore(newTestDB(t))
	_, err := store.GetIntegration(context.Background(), "nonexistent-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIntegrationStore_List(t *testing.T) {
	store := NewIntegrationStore(newTestDB(t))
	ctx := context.Background()
	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, store.CreateIntegration(ctx, newIntegration(name)))
	}

	list, err := store.ListIntegrations(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestIntegrationStore_TestLogs(t *testing.T) {
	store := NewIntegrationStore(newTestDB(t))
	ctx := context.Background()
	rec := newIntegration("logs")
	require.NoError(t, store.CreateIntegration(ctx, rec))

	base := time.Now().UTC()
	for i, outcome := range []string{"failed", "failed", "success"} {
		require.NoError(t, store.AppendTestLog(ctx, &models.ConnectionTestLog{
			ID:            uuid.NewString(),
			IntegrationID: rec.ID,
			ProviderType:  "okta",
			Outcome:       outcome,
			TestedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	logs, err := store.ListTestLogs(ctx, rec.ID, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "success", logs[0].Outcome)

	all, err := store.ListTestLogs(ctx, rec.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := store.ListTestLogs(ctx, "other", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIntegrationStore_Ping(t *testing.T) {
	store := NewIntegrationStore(newTestDB(t))
	assert.NoError(t, store.Ping(context.Background()))
}
