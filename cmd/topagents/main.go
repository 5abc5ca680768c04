package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/topagents/idp-discovery/internal/api"
	"github.com/topagents/idp-discovery/internal/config"
	"github.com/topagents/idp-discovery/internal/db"
	"github.com/topagents/idp-discovery/internal/discovery"
	"github.com/topagents/idp-discovery/internal/idp"
	"github.com/topagents/idp-discovery/internal/idp/azuread"
	"github.com/topagents/idp-discovery/internal/idp/googleworkspace"
	"github.com/topagents/idp-discovery/internal/idp/okta"
	"github.com/topagents/idp-discovery/internal/metrics"
	"github.com/topagents/idp-discovery/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Source != "" {
		log.Printf("📄 Config loaded from %s", cfg.Source)
	}

	// Initialize database
	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	store := db.NewIntegrationStore(database)

	promRegistry := metrics.NewRegistry()
	m := metrics.NewMetrics(promRegistry)

	registry := discovery.NewRegistry(store, buildProviders(cfg),
		discovery.WithObserver(m),
		discovery.WithHistoryLimit(cfg.HistoryLimit),
	)

	router := api.NewRouter(api.Options{
		Registry:        registry,
		Store:           store,
		Metrics:         m,
		MetricsRegistry: promRegistry,
		AdminPassword:   cfg.AdminPassword,
		CORSOrigins:     cfg.CORSOrigins,
	})

	addr := cfg.Addr()
	displayURL := "localhost:" + cfg.Port
	if cfg.Host == "0.0.0.0" {
		displayURL = "<your-ip>:" + cfg.Port
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("🚀 TopAgents IDP discovery %s starting on http://%s", version.Version, addr)
	log.Printf("🔌 Discovery API: http://%s/discovery", displayURL)
	log.Printf("📊 Metrics: http://%s/metrics", displayURL)
	if cfg.AdminPassword == "" {
		log.Printf("⚠️ Admin password not set, operator endpoints are unauthenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️ Shutdown: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	log.Printf("👋 Server stopped")
}

// buildProviders instantiates every provider enabled in cfg.
func buildProviders(cfg *config.Config) []idp.Provider {
	var providers []idp.Provider
	for _, t := range idp.ProviderTypes {
		settings, ok := cfg.Providers[t]
		if !ok || !settings.Enabled {
			log.Printf("⏭️ Provider %s disabled", t)
			continue
		}
		switch t {
		case idp.ProviderGoogleWorkspace:
			providers = append(providers,
				googleworkspace.NewProvider(settings.APIURL, settings.Timeout).WithMaxPages(cfg.MaxPages))
		case idp.ProviderAzureAD:
			providers = append(providers,
				azuread.NewProvider(settings.APIURL, settings.LoginURL, settings.Timeout).WithMaxPages(cfg.MaxPages))
		case idp.ProviderOkta:
			providers = append(providers,
				okta.NewProvider(settings.Timeout, settings.KnownApps).WithMaxPages(cfg.MaxPages))
		}
		log.Printf("🔑 Provider %s enabled (timeout %v)", t, settings.Timeout)
	}
	return providers
}
