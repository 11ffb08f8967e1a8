// Package config loads drydock's configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all drydock configuration. Fields the update engine or
// scheduler might plausibly need to adjust at runtime are kept behind an
// RWMutex and accessed only through getter methods, matching the
// pattern used for every mutable field in the corpus's config package.
type Config struct {
	// Docker connection
	DockerHost string

	// Scheduler
	UpdateMode     string // INTERVAL, DAILY, WEEKLY, MONTHLY
	UpdateInterval time.Duration
	UpdateTime     string // HH:MM local
	UpdateDay      string // weekday name or day-of-month number
	CronExpr       string // optional 5-field cron, takes precedence over UpdateMode when set

	// Orchestrator
	PortainerURL         string
	PortainerAPIKey      string
	PortainerUsername    string
	PortainerPassword    string
	PortainerInsecureTLS bool

	// Logging / metrics
	LogJSON        bool
	MetricsEnabled bool
	MetricsPort    string

	// Freshness Oracle
	FreshnessDirectCheck bool   // precede the pull-based check with a registry HEAD digest compare
	DockerConfigPath     string // optional ~/.docker/config.json for direct-check registry credentials

	// Notifications
	NotifyWebhookURL  string
	NotifyGotifyURL   string
	NotifyGotifyToken string
	NotifyMQTTBroker  string
	NotifyMQTTTopic   string

	// mu protects the mutable runtime fields below.
	mu                    sync.RWMutex
	excludeImages         []string
	backupRetentionDays   int
	containerCheckSeconds int
}

// NewTestConfig creates a Config with sensible defaults for testing.
func NewTestConfig() *Config {
	return &Config{
		UpdateMode:            "INTERVAL",
		UpdateInterval:        10 * time.Minute,
		UpdateTime:            "03:00",
		UpdateDay:             "1",
		backupRetentionDays:   5,
		containerCheckSeconds: 10,
	}
}

// Load reads configuration from environment variables, applying the
// defaults documented for drydock's configuration surface.
func Load() *Config {
	return &Config{
		DockerHost: envStr("DOCKER_HOST", "/var/run/docker.sock"),

		UpdateMode:     strings.ToUpper(envStr("UPDATE_MODE", "INTERVAL")),
		UpdateInterval: ParseIntervalSuffix(envStr("UPDATE_INTERVAL", "")),
		UpdateTime:     envStr("UPDATE_TIME", "03:00"),
		UpdateDay:      envStr("UPDATE_DAY", "1"),
		CronExpr:       envStr("UPDATE_CRON", ""),

		PortainerURL:         envStr("PORTAINER_URL", ""),
		PortainerAPIKey:      envStr("PORTAINER_API_KEY", ""),
		PortainerUsername:    envStr("PORTAINER_USERNAME", ""),
		PortainerPassword:    envStr("PORTAINER_PASSWORD", ""),
		PortainerInsecureTLS: envBool("PORTAINER_INSECURE_TLS", false),

		LogJSON:        envBool("LOG_JSON", true),
		MetricsEnabled: envBool("METRICS_ENABLED", false),
		MetricsPort:    envStr("METRICS_PORT", "9090"),

		FreshnessDirectCheck: envBool("FRESHNESS_DIRECT_CHECK", false),
		DockerConfigPath:     envStr("DOCKER_CONFIG_PATH", ""),

		NotifyWebhookURL:  envStr("NOTIFY_WEBHOOK_URL", ""),
		NotifyGotifyURL:   envStr("NOTIFY_GOTIFY_URL", ""),
		NotifyGotifyToken: envStr("NOTIFY_GOTIFY_TOKEN", ""),
		NotifyMQTTBroker:  envStr("NOTIFY_MQTT_BROKER", ""),
		NotifyMQTTTopic:   envStr("NOTIFY_MQTT_TOPIC", ""),

		excludeImages:         envStringList("EXCLUDE_IMAGES"),
		backupRetentionDays:   envInt("BACKUP_RETENTION_DAYS", 5),
		containerCheckSeconds: envInt("CONTAINER_CHECK_SECONDS", 10),
	}
}

// Validate checks configuration for invalid values, returning every
// violation joined together so an operator sees the whole picture at once.
func (c *Config) Validate() error {
	c.mu.RLock()
	retention := c.backupRetentionDays
	checkSeconds := c.containerCheckSeconds
	c.mu.RUnlock()

	var errs []error

	switch c.UpdateMode {
	case "INTERVAL", "DAILY", "WEEKLY", "MONTHLY":
	default:
		errs = append(errs, fmt.Errorf("UPDATE_MODE must be one of INTERVAL, DAILY, WEEKLY, MONTHLY, got %q", c.UpdateMode))
	}
	if c.UpdateInterval <= 0 {
		errs = append(errs, fmt.Errorf("UPDATE_INTERVAL must be > 0, got %s", c.UpdateInterval))
	}
	if _, err := time.Parse("15:04", c.UpdateTime); err != nil {
		errs = append(errs, fmt.Errorf("UPDATE_TIME must be HH:MM, got %q", c.UpdateTime))
	}
	if retention <= 0 {
		errs = append(errs, fmt.Errorf("BACKUP_RETENTION_DAYS must be > 0, got %d", retention))
	}
	if checkSeconds <= 0 {
		errs = append(errs, fmt.Errorf("CONTAINER_CHECK_SECONDS must be > 0, got %d", checkSeconds))
	}
	if c.PortainerAPIKey != "" && (c.PortainerUsername != "" || c.PortainerPassword != "") {
		errs = append(errs, fmt.Errorf("PORTAINER_API_KEY and PORTAINER_USERNAME/PORTAINER_PASSWORD are mutually exclusive"))
	}
	if (c.PortainerUsername == "") != (c.PortainerPassword == "") {
		errs = append(errs, fmt.Errorf("PORTAINER_USERNAME and PORTAINER_PASSWORD must both be set or both empty"))
	}

	return errors.Join(errs...)
}

// OrchestratorEnabled reports whether enough Portainer configuration is
// present to enable the stack phase. Per spec §9, this is a capability
// with a disabled configuration rather than a null orchestrator object:
// the update engine checks this once per cycle and skips the stack phase
// entirely when it is false.
func (c *Config) OrchestratorEnabled() bool {
	if c.PortainerURL == "" {
		return false
	}
	return c.PortainerAPIKey != "" || (c.PortainerUsername != "" && c.PortainerPassword != "")
}

// ExcludePatterns returns the configured exclude substrings.
func (c *Config) ExcludePatterns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.excludeImages
}

// BackupRetention returns the configured backup tag retention window.
func (c *Config) BackupRetention() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.backupRetentionDays) * 24 * time.Hour
}

// ContainerCheckWindow returns the health-probe window (the "configured
// health window" of the Update State Machine's HealthProbing state).
func (c *Config) ContainerCheckWindow() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.containerCheckSeconds) * time.Second
}

// Values returns all configuration as a string map for display/logging.
func (c *Config) Values() map[string]string {
	c.mu.RLock()
	retention := c.backupRetentionDays
	checkSeconds := c.containerCheckSeconds
	exclude := strings.Join(c.excludeImages, ",")
	c.mu.RUnlock()

	return map[string]string{
		"DOCKER_HOST":             c.DockerHost,
		"UPDATE_MODE":             c.UpdateMode,
		"UPDATE_INTERVAL":         c.UpdateInterval.String(),
		"UPDATE_TIME":             c.UpdateTime,
		"UPDATE_DAY":              c.UpdateDay,
		"UPDATE_CRON":             c.CronExpr,
		"EXCLUDE_IMAGES":          exclude,
		"BACKUP_RETENTION_DAYS":   strconv.Itoa(retention),
		"CONTAINER_CHECK_SECONDS": strconv.Itoa(checkSeconds),
		"PORTAINER_URL":           c.PortainerURL,
		"PORTAINER_API_KEY":       redactSecret(c.PortainerAPIKey),
		"PORTAINER_USERNAME":      c.PortainerUsername,
		"PORTAINER_PASSWORD":      redactSecret(c.PortainerPassword),
		"PORTAINER_INSECURE_TLS":  fmt.Sprintf("%t", c.PortainerInsecureTLS),
		"LOG_JSON":                fmt.Sprintf("%t", c.LogJSON),
		"METRICS_ENABLED":         fmt.Sprintf("%t", c.MetricsEnabled),
		"METRICS_PORT":            c.MetricsPort,
		"FRESHNESS_DIRECT_CHECK":  fmt.Sprintf("%t", c.FreshnessDirectCheck),
		"DOCKER_CONFIG_PATH":      c.DockerConfigPath,
	}
}

// redactSecret returns "(set)" if the secret is non-empty, empty string otherwise.
func redactSecret(s string) string {
	if s != "" {
		return "(set)"
	}
	return ""
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// ParseIntervalSuffix parses an UPDATE_INTERVAL value with a
// case-insensitive s/m/h/d suffix, falling back to the documented
// 10-minute default on empty or malformed input.
func ParseIntervalSuffix(s string) time.Duration {
	const def = 10 * time.Minute
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}

	unit := strings.ToLower(s[len(s)-1:])
	var mult time.Duration
	switch unit {
	case "s":
		mult = time.Second
	case "m":
		mult = time.Minute
	case "h":
		mult = time.Hour
	case "d":
		mult = 24 * time.Hour
	default:
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
		return def
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * mult
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envStringList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
