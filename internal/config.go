package internal

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is everything in config.yaml except the rule list.
type AppConfig struct {
	// Server holds server-specific configuration.
	Server struct {
		Port           int    `yaml:"port"`
		ReadTimeoutMS  int64  `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64  `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64  `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64  `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64  `yaml:"max_body_bytes"`
		RateLimitRPS   int64  `yaml:"rate_limit_rps"`
		RateLimitBurst int64  `yaml:"rate_limit_burst"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
		MetricsPath    string `yaml:"metrics_path"`
	} `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	GitHub   GitHubConfig   `yaml:"github"`
	Discord  DiscordConfig  `yaml:"discord"`
	Identity IdentityConfig `yaml:"identity"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Audit    AuditConfig    `yaml:"audit"`
	Admin    AdminConfig    `yaml:"admin"`

	// Watermill holds configuration for the audit and rule publishers.
	Watermill WatermillConfig `yaml:"watermill"`
}

// Config is the loaded file: AppConfig plus normalized rules.
type Config struct {
	AppConfig   `yaml:",inline"`
	Rules       []Rule   `yaml:"rules"`
	RulesStrict bool     `yaml:"rules_strict"`
	Ignore      []string `yaml:"ignore"`
}

// AdminConfig enables the user map and mute list API under Path.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Token   string `yaml:"token"`
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GitHubConfig configures the inbound webhook and the optional API client
// used to expand team mentions.
type GitHubConfig struct {
	Path           string     `yaml:"path"`
	Secret         string     `yaml:"secret"`
	Token          string     `yaml:"token"`
	BaseURL        string     `yaml:"base_url"`
	AppID          int64      `yaml:"app_id"`
	PrivateKeyPath string     `yaml:"private_key_path"`
	InstallationID int64      `yaml:"installation_id"`
	Repositories   RepoFilter `yaml:"repositories"`
	DisabledEvents []string   `yaml:"disabled_events"`
}

// RepoFilter limits notifications to repositories by full name.
type RepoFilter struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// DiscordConfig configures the outbound webhook.
type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Username   string `yaml:"username"`
	AvatarURL  string `yaml:"avatar_url"`
	TimeoutMS  int64  `yaml:"timeout_ms"`
}

// IdentityConfig points at the user map and mute list sources.
type IdentityConfig struct {
	Users      SourceConfig `yaml:"users"`
	Mutes      SourceConfig `yaml:"mutes"`
	CacheTTLMS int64        `yaml:"cache_ttl_ms"`
}

// SourceConfig selects exactly one of a local file, a URL or a SQL table.
// SQL wins over URL, and URL wins over Path.
type SourceConfig struct {
	Path string          `yaml:"path"`
	URL  string          `yaml:"url"`
	SQL  SQLSourceConfig `yaml:"sql"`
}

// SQLSourceConfig configures a GORM-backed identity table.
type SQLSourceConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	Table       string `yaml:"table"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// DedupConfig selects the dedup cache backend.
type DedupConfig struct {
	Backend string `yaml:"backend"`
	TTLMS   int64  `yaml:"ttl_ms"`
	Redis   struct {
		URL    string `yaml:"url"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`
}

// AuditConfig enables publishing every accepted delivery to Watermill.
type AuditConfig struct {
	Enabled bool     `yaml:"enabled"`
	Topic   string   `yaml:"topic"`
	Drivers []string `yaml:"drivers"`
}

// WatermillConfig selects the drivers that receive audit and rule topics.
type WatermillConfig struct {
	Driver       string             `yaml:"driver"`
	Drivers      []string           `yaml:"drivers"`
	GoChannel    GoChannelConfig    `yaml:"gochannel"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	NATS         NATSConfig         `yaml:"nats"`
	AMQP         AMQPConfig         `yaml:"amqp"`
	SQL          SQLConfig          `yaml:"sql"`
	HTTP         HTTPConfig         `yaml:"http"`
	RiverQueue   RiverQueueConfig   `yaml:"riverqueue"`
	PublishRetry PublishRetryConfig `yaml:"publish_retry"`
}

// GoChannelConfig is the in-process driver, the default when audit is on.
type GoChannelConfig struct {
	OutputChannelBuffer            int64 `yaml:"output_buffer"`
	Persistent                     bool  `yaml:"persistent"`
	BlockPublishUntilSubscriberAck bool  `yaml:"block_publish_until_subscriber_ack"`
}

// KafkaConfig lists the brokers. Messages are keyed by repository.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// NATSConfig targets NATS Streaming (stan).
type NATSConfig struct {
	ClusterID string `yaml:"cluster_id"`
	ClientID  string `yaml:"client_id"`
	URL       string `yaml:"url"`
}

// AMQPConfig. Mode is one of durable_queue, nondurable_queue, durable_pubsub, nondurable_pubsub.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// SQLConfig writes audit rows through watermill-sql.
type SQLConfig struct {
	Driver               string `yaml:"driver"`
	DSN                  string `yaml:"dsn"`
	Dialect              string `yaml:"dialect"`
	InitializeSchema     bool   `yaml:"initialize_schema"`
	AutoInitializeSchema bool   `yaml:"auto_initialize_schema"`
}

// HTTPConfig forwards deliveries to another webhook receiver. Mode is
// topic_url (the topic is the URL) or base_url (topic appended to BaseURL).
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
	Mode    string `yaml:"mode"`
}

// RiverQueueConfig is shared by the River publisher and the audit worker.
type RiverQueueConfig struct {
	DSN         string   `yaml:"dsn"`
	Queue       string   `yaml:"queue"`
	Kind        string   `yaml:"kind"`
	MaxAttempts int      `yaml:"max_attempts"`
	Priority    int      `yaml:"priority"`
	Tags        []string `yaml:"tags"`
}

type PublishRetryConfig struct {
	Attempts int `yaml:"attempts"`
	DelayMS  int `yaml:"delay_ms"`
}

// LoadConfig reads path, expands ${VAR} references and fills defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML document the same way LoadConfig does.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, err
	}

	applyDefaults(&cfg.AppConfig)
	if cfg.Admin.Enabled && cfg.Admin.Token == "" {
		return cfg, fmt.Errorf("admin.token is required when admin.enabled is true")
	}
	normalized, err := normalizeRules(cfg.Rules)
	if err != nil {
		return cfg, err
	}
	cfg.Rules = normalized
	cfg.Ignore = trimAll(cfg.Ignore)
	cfg.GitHub.DisabledEvents = trimAll(cfg.GitHub.DisabledEvents)
	cfg.GitHub.Repositories.Include = trimAll(cfg.GitHub.Repositories.Include)
	cfg.GitHub.Repositories.Exclude = trimAll(cfg.GitHub.Repositories.Exclude)

	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 30000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 25 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	cfg.Admin.Path = strings.TrimRight(cfg.Admin.Path, "/")
	if cfg.Admin.Path == "" {
		cfg.Admin.Path = "/admin"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.GitHub.Path == "" {
		cfg.GitHub.Path = "/"
	}
	if cfg.Discord.TimeoutMS == 0 {
		cfg.Discord.TimeoutMS = 10000
	}
	if cfg.Identity.Users.Path == "" {
		cfg.Identity.Users.Path = "data/github-user-map.json"
	}
	if cfg.Identity.Mutes.Path == "" {
		cfg.Identity.Mutes.Path = "data/mutes.json"
	}
	if cfg.Identity.CacheTTLMS == 0 {
		cfg.Identity.CacheTTLMS = 10000
	}
	if cfg.Identity.Users.SQL.Table == "" {
		cfg.Identity.Users.SQL.Table = "ghbridge_users"
	}
	if cfg.Identity.Mutes.SQL.Table == "" {
		cfg.Identity.Mutes.SQL.Table = "ghbridge_mutes"
	}
	if cfg.Dedup.Backend == "" {
		cfg.Dedup.Backend = "memory"
	}
	if cfg.Dedup.TTLMS == 0 {
		cfg.Dedup.TTLMS = 5 * 60 * 1000
	}
	if cfg.Dedup.Redis.Prefix == "" {
		cfg.Dedup.Redis.Prefix = "ghbridge:dedup:"
	}
	if cfg.Audit.Topic == "" {
		cfg.Audit.Topic = "ghbridge.events"
	}
	if cfg.Watermill.Driver == "" {
		cfg.Watermill.Driver = "gochannel"
	}
	if cfg.Watermill.GoChannel.OutputChannelBuffer == 0 {
		cfg.Watermill.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.Watermill.HTTP.Mode == "" {
		cfg.Watermill.HTTP.Mode = "topic_url"
	}
	if cfg.Watermill.RiverQueue.Queue == "" {
		cfg.Watermill.RiverQueue.Queue = "default"
	}
	if cfg.Watermill.RiverQueue.Kind == "" {
		cfg.Watermill.RiverQueue.Kind = "ghbridge.event"
	}
	if cfg.Watermill.RiverQueue.MaxAttempts == 0 {
		cfg.Watermill.RiverQueue.MaxAttempts = 25
	}
	if cfg.Watermill.PublishRetry.Attempts == 0 {
		cfg.Watermill.PublishRetry.Attempts = 3
	}
	if cfg.Watermill.PublishRetry.DelayMS == 0 {
		cfg.Watermill.PublishRetry.DelayMS = 500
	}
}

func normalizeRules(rules []Rule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for i := range rules {
		rule := rules[i]
		rule.When = strings.TrimSpace(rule.When)
		rule.Emit = trimAll(rule.Emit)
		if rule.When == "" || len(rule.Emit) == 0 {
			return nil, fmt.Errorf("rule %d is missing when or emit", i)
		}
		rule.Drivers = trimAll(rule.Drivers)
		out = append(out, rule)
	}
	return out, nil
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
