// Package discovery registers identity providers, tests their credentials and
// serves their application catalogs.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/topagents/idp-discovery/internal/db"
	"github.com/topagents/idp-discovery/internal/db/models"
	"github.com/topagents/idp-discovery/internal/idp"
	"github.com/topagents/idp-discovery/internal/logging"
)

// Store persists integrations and their connection test history.
// GetIntegration returns db.ErrNotFound for unknown ids.
type Store interface {
	CreateIntegration(ctx context.Context, integration *models.IDPIntegration) error
	GetIntegration(ctx context.Context, id string) (*models.IDPIntegration, error)
	SaveIntegration(ctx context.Context, integration *models.IDPIntegration) error
	ListIntegrations(ctx context.Context) ([]models.IDPIntegration, error)
	AppendTestLog(ctx context.Context, entry *models.ConnectionTestLog) error
	ListTestLogs(ctx context.Context, integrationID string, limit int) ([]models.ConnectionTestLog, error)
}

// Observer receives provider call outcomes. *metrics.Metrics implements it.
type Observer interface {
	ObserveProviderCall(provider, operation, outcome string, elapsed time.Duration)
	ObserveRegistration(provider, status string)
	ObserveAppsDiscovered(provider string, count int)
}

type nopObserver struct{}

func (nopObserver) ObserveProviderCall(string, string, string, time.Duration) {}
func (nopObserver) ObserveRegistration(string, string)                        {}
func (nopObserver) ObserveAppsDiscovered(string, int)                         {}

const (
	operationTest  = "test"
	operationFetch = "fetch"
	outcomeSuccess = "success"

	// DefaultHistoryLimit bounds TestHistory results unless WithHistoryLimit is used.
	DefaultHistoryLimit = 50
)

// RegisterRequest is a registration as submitted by the caller.
type RegisterRequest struct {
	DisplayName  string
	ProviderType string
	Fields       map[string]string
	APIURL       string
}

// RegisterResult describes the integration after its connection test.
// ID is empty when validation failed and nothing was stored.
type RegisterResult struct {
	ID      string
	Status  idp.Status
	Message string
}

// Registry orchestrates validation, connection tests and catalog fetches.
type Registry struct {
	store     Store
	providers map[idp.ProviderType]idp.Provider
	observer  Observer
	now       func() time.Time

	historyLimit int
}

// Option configures a Registry.
type Option func(*Registry)

// WithObserver reports provider call outcomes to o.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithHistoryLimit caps how many connection tests TestHistory returns.
func WithHistoryLimit(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.historyLimit = n
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry builds the provider dispatch table. A provider type without an
// entry is reported as unsupported.
func NewRegistry(store Store, providers []idp.Provider, opts ...Option) *Registry {
	r := &Registry{
		store:     store,
		providers: make(map[idp.ProviderType]idp.Provider, len(providers)),
		observer:  nopObserver{},
		now:       time.Now,

		historyLimit: DefaultHistoryLimit,
	}
	for _, p := range providers {
		r.providers[p.Type()] = p
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates the request, stores a pending integration and tests it.
// A failed test still returns the stored integration's id alongside the *idp.Error.
func (r *Registry) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	cfg, err := r.validate(req)
	if err != nil {
		return &RegisterResult{}, err
	}
	provider := r.providers[cfg.Type]

	stored, err := cfg.MarshalFields()
	if err != nil {
		return &RegisterResult{}, err
	}
	integration := &models.IDPIntegration{
		ID:           uuid.NewString(),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		ProviderType: string(cfg.Type),
		Config:       stored,
		APIURL:       cfg.APIURL,
		Status:       string(idp.StatusPending),
	}
	if err := r.store.CreateIntegration(ctx, integration); err != nil {
		return &RegisterResult{}, err
	}
	log.Printf("🆕 [%s] Registered %s integration %s, testing connection",
		logging.GetRequestID(ctx), cfg.Type, integration.ID)

	testErr := r.runTest(ctx, integration, cfg, provider)
	r.observer.ObserveRegistration(string(cfg.Type), integration.Status)
	return resultOf(integration), testErr
}

// validate checks the display name and provider fields together so a single
// response lists every missing field.
func (r *Registry) validate(req RegisterRequest) (idp.Config, error) {
	nameMissing := strings.TrimSpace(req.DisplayName) == ""

	cfg, err := idp.ValidateConfig(req.ProviderType, req.Fields, req.APIURL)
	if err != nil {
		var ierr *idp.Error
		if nameMissing && errors.As(err, &ierr) && ierr.Kind == idp.KindValidation && len(ierr.Fields) > 0 && ierr.Fields[0] != "api_url" {
			return idp.Config{}, idp.NewMissingFieldsError(ierr.Provider, append([]string{"display_name"}, ierr.Fields...))
		}
		return idp.Config{}, err
	}
	if nameMissing {
		return idp.Config{}, idp.NewMissingFieldsError(cfg.Type, []string{"display_name"})
	}
	if _, ok := r.providers[cfg.Type]; !ok {
		return idp.Config{}, idp.NewUnsupportedProviderError(req.ProviderType)
	}
	return cfg, nil
}

// Retest reruns the connection test of a stored integration.
func (r *Registry) Retest(ctx context.Context, id string) (*RegisterResult, error) {
	integration, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	cfg, provider, err := r.resolve(integration)
	if err != nil {
		return nil, err
	}
	testErr := r.runTest(ctx, integration, cfg, provider)
	return resultOf(integration), testErr
}

// GetAppCatalog fetches the normalized application list of an active integration.
// Fetch failures leave the stored integration untouched.
func (r *Registry) GetAppCatalog(ctx context.Context, id string) ([]idp.NormalizedApp, error) {
	integration, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if integration.Status != string(idp.StatusActive) {
		return nil, idp.NewIntegrationNotActiveError(idp.ProviderType(integration.ProviderType), idp.Status(integration.Status))
	}
	cfg, provider, err := r.resolve(integration)
	if err != nil {
		return nil, err
	}

	start := r.now()
	apps, err := provider.FetchApps(ctx, cfg)
	elapsed := r.now().Sub(start)
	if err != nil {
		ierr := idp.AsError(cfg.Type, err)
		r.observer.ObserveProviderCall(string(cfg.Type), operationFetch, string(ierr.Kind), elapsed)
		log.Printf("❌ [%s] Catalog fetch for %s (%s) failed: %s",
			logging.GetRequestID(ctx), integration.ID, cfg.Type, ierr.Kind)
		return nil, ierr
	}

	r.observer.ObserveProviderCall(string(cfg.Type), operationFetch, outcomeSuccess, elapsed)
	r.observer.ObserveAppsDiscovered(string(cfg.Type), len(apps))
	log.Printf("📦 [%s] Fetched %d apps for %s (%s) in %v",
		logging.GetRequestID(ctx), len(apps), integration.ID, cfg.Type, elapsed.Round(time.Millisecond))
	return apps, nil
}

// Get returns the masked view of one integration.
func (r *Registry) Get(ctx context.Context, id string) (*IntegrationView, error) {
	integration, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	view := newIntegrationView(integration)
	return &view, nil
}

// List returns masked views of every integration.
func (r *Registry) List(ctx context.Context) ([]IntegrationView, error) {
	integrations, err := r.store.ListIntegrations(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]IntegrationView, 0, len(integrations))
	for i := range integrations {
		views = append(views, newIntegrationView(&integrations[i]))
	}
	return views, nil
}

// TestHistory returns the most recent connection tests of an integration, newest first.
func (r *Registry) TestHistory(ctx context.Context, id string, limit int) ([]models.ConnectionTestLog, error) {
	if _, err := r.load(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > r.historyLimit {
		limit = r.historyLimit
	}
	logs, err := r.store.ListTestLogs(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []models.ConnectionTestLog{}
	}
	return logs, nil
}

func (r *Registry) load(ctx context.Context, id string) (*models.IDPIntegration, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, idp.NewIntegrationNotFoundError(id)
	}
	integration, err := r.store.GetIntegration(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, idp.NewIntegrationNotFoundError(id)
	}
	if err != nil {
		return nil, err
	}
	return integration, nil
}

func (r *Registry) resolve(integration *models.IDPIntegration) (idp.Config, idp.Provider, error) {
	cfg, err := idp.ParseStoredConfig(integration.ProviderType, integration.Config, integration.APIURL)
	if err != nil {
		var ierr *idp.Error
		if errors.As(err, &ierr) {
			return idp.Config{}, nil, ierr
		}
		return idp.Config{}, nil, fmt.Errorf("integration %s: %w", integration.ID, err)
	}
	provider, ok := r.providers[cfg.Type]
	if !ok {
		return idp.Config{}, nil, idp.NewUnsupportedProviderError(integration.ProviderType)
	}
	return cfg, provider, nil
}

// runTest tests the connection, stores the outcome on integration and appends a log.
// The returned error is the classified test failure, or a storage error.
func (r *Registry) runTest(ctx context.Context, integration *models.IDPIntegration, cfg idp.Config, provider idp.Provider) error {
	start := r.now()
	testErr := provider.TestConnection(ctx, cfg)
	testedAt := r.now()
	elapsed := testedAt.Sub(start)

	entry := &models.ConnectionTestLog{
		ID:            uuid.NewString(),
		IntegrationID: integration.ID,
		ProviderType:  integration.ProviderType,
		DurationMs:    elapsed.Milliseconds(),
		TestedAt:      testedAt.UTC(),
	}
	integration.LastTestedAt = &entry.TestedAt

	var ierr *idp.Error
	if testErr == nil {
		integration.Status = string(idp.StatusActive)
		integration.LastTestStatus = string(idp.TestSuccess)
		integration.ErrorMessage = nil
		entry.Outcome = string(idp.TestSuccess)
		r.observer.ObserveProviderCall(integration.ProviderType, operationTest, outcomeSuccess, elapsed)
		log.Printf("✅ [%s] Connection test for %s (%s) succeeded in %v",
			logging.GetRequestID(ctx), integration.ID, cfg.Type, elapsed.Round(time.Millisecond))
	} else {
		ierr = idp.AsError(cfg.Type, testErr)
		message := ierr.Message
		integration.Status = string(idp.StatusError)
		integration.LastTestStatus = string(idp.TestFailed)
		integration.ErrorMessage = &message
		entry.Outcome = string(idp.TestFailed)
		entry.ErrorKind = string(ierr.Kind)
		entry.ErrorMessage = message
		r.observer.ObserveProviderCall(integration.ProviderType, operationTest, string(ierr.Kind), elapsed)
		log.Printf("❌ [%s] Connection test for %s (%s) failed: %s",
			logging.GetRequestID(ctx), integration.ID, cfg.Type, ierr.Kind)
	}

	// The outcome is stored even if the caller went away mid-test.
	persistCtx := context.WithoutCancel(ctx)
	if err := r.store.SaveIntegration(persistCtx, integration); err != nil {
		return err
	}
	if err := r.store.AppendTestLog(persistCtx, entry); err != nil {
		log.Printf("⚠️ [%s] Failed to append test log for %s: %v", logging.GetRequestID(ctx), integration.ID, err)
	}

	if ierr != nil {
		return ierr
	}
	return nil
}

func resultOf(integration *models.IDPIntegration) *RegisterResult {
	res := &RegisterResult{ID: integration.ID, Status: idp.Status(integration.Status)}
	if integration.ErrorMessage != nil {
		res.Message = *integration.ErrorMessage
	}
	return res
}
