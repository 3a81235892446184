package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "nexuspm.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "NEXUS_PORT")
	setString(&cfg.Server.CORSOrigin, "NEXUS_CORS_ORIGIN")
	setDuration(&cfg.Server.ShutdownTimeout, "NEXUS_SHUTDOWN_TIMEOUT")
	setDuration(&cfg.Server.HeartbeatInterval, "NEXUS_WS_HEARTBEAT")

	// Store
	setString(&cfg.Store.Backend, "NEXUS_STORE_BACKEND")
	setDuration(&cfg.Store.CheckpointTTL, "NEXUS_CHECKPOINT_TTL")
	setDuration(&cfg.Store.TelemetryTTL, "NEXUS_TELEMETRY_TTL")
	setDuration(&cfg.Store.HistoryTTL, "NEXUS_HISTORY_TTL")
	setDuration(&cfg.Store.SweepInterval, "NEXUS_SWEEP_INTERVAL")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "NEXUS_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "NEXUS_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "NEXUS_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "NEXUS_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "NEXUS_PG_HEALTH_CHECK")
	setString(&cfg.SQLite.Path, "NEXUS_SQLITE_PATH")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Bucket, "NEXUS_NATS_BUCKET")
	setString(&cfg.NATS.EphemeralBucket, "NEXUS_NATS_EPHEMERAL_BUCKET")
	setBool(&cfg.NATS.PublishTransitions, "NEXUS_NATS_PUBLISH_TRANSITIONS")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "NEXUS_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1Expire, "NEXUS_CACHE_L1_EXPIRE")
	setDuration(&cfg.Cache.TicketTTL, "NEXUS_CACHE_TICKET_TTL")

	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.LiteLLM.Model, "NEXUS_LLM_MODEL")
	setDuration(&cfg.LiteLLM.Timeout, "NEXUS_LLM_TIMEOUT")

	setString(&cfg.Logging.Level, "NEXUS_LOG_LEVEL")
	setString(&cfg.Logging.Service, "NEXUS_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "NEXUS_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "NEXUS_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "NEXUS_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "NEXUS_RATE_RPS")
	setInt(&cfg.Rate.Burst, "NEXUS_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "NEXUS_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "NEXUS_RATE_MAX_IDLE_TIME")

	// Observability
	setBool(&cfg.OTEL.Enabled, "NEXUS_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "NEXUS_OTEL_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "NEXUS_OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "NEXUS_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "NEXUS_OTEL_SAMPLE_RATE")

	setBool(&cfg.MCP.Enabled, "NEXUS_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "NEXUS_MCP_ADDR")
	setString(&cfg.MCP.APIKey, "NEXUS_MCP_API_KEY")
	setString(&cfg.Vault.SecretKey, "NEXUS_SECRET_KEY")

	// Integrations
	setString(&cfg.Slack.BotToken, "SLACK_BOT_TOKEN")
	setString(&cfg.Slack.ChannelID, "SLACK_CHANNEL_ID")
	setString(&cfg.Figma.AccessToken, "FIGMA_ACCESS_TOKEN")
	setString(&cfg.Figma.FileKey, "FIGMA_FILE_KEY")
	setString(&cfg.Jira.Domain, "JIRA_DOMAIN")
	setString(&cfg.Jira.Email, "JIRA_EMAIL")
	setString(&cfg.Jira.APIToken, "JIRA_API_TOKEN")
	setString(&cfg.Jira.ProjectKey, "JIRA_PROJECT_KEY")

	// Notifications
	setString(&cfg.Notify.SlackChannel, "NEXUS_NOTIFY_SLACK_CHANNEL")
	setString(&cfg.Notify.DiscordWebhook, "DISCORD_WEBHOOK_URL")
	if v := os.Getenv("NEXUS_NOTIFY_EVENTS"); v != "" {
		cfg.Notify.Events = splitList(v)
	}
}

var backends = []string{BackendMemory, BackendNATS, BackendPostgres, BackendSQLite}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if !slices.Contains(backends, cfg.Store.Backend) {
		return fmt.Errorf("store.backend %q is not one of %v", cfg.Store.Backend, backends)
	}
	switch cfg.Store.Backend {
	case BackendPostgres:
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case BackendSQLite:
		if cfg.SQLite.Path == "" {
			return errors.New("sqlite.path is required")
		}
	}
	if (cfg.Store.Backend == BackendNATS || cfg.NATS.PublishTransitions) && cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Store.CheckpointTTL <= 0 || cfg.Store.TelemetryTTL <= 0 || cfg.Store.HistoryTTL <= 0 {
		return errors.New("store ttls must be > 0")
	}
	if cfg.Store.SweepInterval <= 0 {
		return errors.New("store.sweep_interval must be > 0")
	}
	if cfg.Vault.SecretKey == "" {
		return errors.New("vault.secret_key is required")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	return nil
}

// splitList parses a comma separated env value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
