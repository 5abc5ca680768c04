// Package config loads service settings from an optional YAML file and
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/topagents/idp-discovery/internal/idp"
)

const (
	defaultHost         = "127.0.0.1"
	defaultPort         = "8080"
	defaultDBPath       = "topagents.db"
	defaultMaxPages     = idp.DefaultMaxPages
	defaultHistoryLimit = 50
)

type fileConfig struct {
	Server    ServerConfig                  `yaml:"server"`
	Database  DatabaseConfig                `yaml:"database"`
	Admin     AdminConfig                   `yaml:"admin"`
	Discovery DiscoveryConfig               `yaml:"discovery"`
	Providers map[string]ProviderFileConfig `yaml:"providers"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AdminConfig struct {
	Password string `yaml:"password"`
}

type DiscoveryConfig struct {
	MaxPages     int `yaml:"max_pages"`
	HistoryLimit int `yaml:"history_limit"`
}

// ProviderFileConfig is one entry under providers: in the YAML file.
type ProviderFileConfig struct {
	Enabled   *bool    `yaml:"enabled"`
	APIURL    string   `yaml:"api_url"`
	LoginURL  string   `yaml:"login_url"`
	Timeout   string   `yaml:"timeout"`
	KnownApps []string `yaml:"known_apps"`
}

// ProviderSettings are the resolved runtime settings of one provider.
type ProviderSettings struct {
	Enabled   bool
	APIURL    string
	LoginURL  string
	Timeout   time.Duration
	KnownApps []string
}

// Config is the resolved service configuration.
type Config struct {
	Host          string
	Port          string
	CORSOrigins   []string
	DBPath        string
	AdminPassword string
	MaxPages      int
	HistoryLimit  int
	Providers     map[idp.ProviderType]ProviderSettings
	// Source is the file the settings were read from, empty when none was found.
	Source string
}

// Load reads the config file (if any) and applies environment overrides.
// A missing file is not an error; a file that does not parse is.
func Load() (*Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}

	var fc fileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
		}
	}
	return resolve(fc, path)
}

func resolve(fc fileConfig, source string) (*Config, error) {
	cfg := &Config{
		Host:          firstNonEmpty(os.Getenv("HOST"), fc.Server.Host, defaultHost),
		Port:          firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, defaultPort),
		CORSOrigins:   fc.Server.CORSOrigins,
		DBPath:        firstNonEmpty(os.Getenv("TOPAGENTS_DB_PATH"), fc.Database.Path, defaultDBPath),
		AdminPassword: firstNonEmpty(os.Getenv("TOPAGENTS_ADMIN_PASSWORD"), fc.Admin.Password),
		MaxPages:      fc.Discovery.MaxPages,
		HistoryLimit:  fc.Discovery.HistoryLimit,
		Providers:     make(map[idp.ProviderType]ProviderSettings, len(idp.ProviderTypes)),
		Source:        source,
	}
	if origins := strings.TrimSpace(os.Getenv("TOPAGENTS_CORS_ORIGINS")); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid port %q", cfg.Port)
	}

	for name := range fc.Providers {
		if !isKnownProvider(name) {
			return nil, fmt.Errorf("unknown provider %q in config", name)
		}
	}
	for _, t := range idp.ProviderTypes {
		settings, err := resolveProvider(t, fc.Providers[string(t)])
		if err != nil {
			return nil, err
		}
		cfg.Providers[t] = settings
	}
	return cfg, nil
}

func resolveProvider(t idp.ProviderType, fc ProviderFileConfig) (ProviderSettings, error) {
	s := ProviderSettings{
		Enabled:   true,
		APIURL:    strings.TrimSpace(fc.APIURL),
		LoginURL:  strings.TrimSpace(fc.LoginURL),
		Timeout:   idp.DefaultTimeout,
		KnownApps: fc.KnownApps,
	}
	if fc.Enabled != nil {
		s.Enabled = *fc.Enabled
	}
	if v := strings.TrimSpace(os.Getenv(providerEnvName(t, "ENABLED"))); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("invalid %s: %w", providerEnvName(t, "ENABLED"), err)
		}
		s.Enabled = enabled
	}
	if v := strings.TrimSpace(os.Getenv(providerEnvName(t, "API_URL"))); v != "" {
		s.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(providerEnvName(t, "LOGIN_URL"))); v != "" {
		s.LoginURL = v
	}
	if v := strings.TrimSpace(os.Getenv(providerEnvName(t, "KNOWN_APPS"))); v != "" {
		s.KnownApps = splitList(v)
	}

	timeouts := []struct{ source, raw string }{
		{"config timeout for " + string(t), fc.Timeout},
		{providerEnvName(t, "TIMEOUT"), os.Getenv(providerEnvName(t, "TIMEOUT"))},
	}
	for _, tt := range timeouts {
		raw := strings.TrimSpace(tt.raw)
		if raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return s, fmt.Errorf("invalid %s %q", tt.source, raw)
		}
		s.Timeout = parsed
	}
	return s, nil
}

// providerEnvName builds TOPAGENTS_<PROVIDER>_<SUFFIX>, e.g. TOPAGENTS_AZURE_AD_TIMEOUT.
func providerEnvName(t idp.ProviderType, suffix string) string {
	return "TOPAGENTS_" + strings.ToUpper(string(t)) + "_" + suffix
}

func resolveConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("TOPAGENTS_CONFIG_FILE")); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	candidates := []string{
		"config/topagents.yaml",
		"/etc/topagents/topagents.yaml",
		"/usr/local/etc/topagents/topagents.yaml",
	}
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != "" {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "topagents", "topagents.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

func isKnownProvider(name string) bool {
	for _, t := range idp.ProviderTypes {
		if string(t) == name {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}
