package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mohammad-safakhou/converse/provider"
)

// Config holds all configuration for the assistant.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       provider.Config `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// SearchConfig tunes the search pipeline.
type SearchConfig struct {
	QuoteFreshness   time.Duration `mapstructure:"quote_freshness"`
	SessionFreshness time.Duration `mapstructure:"session_freshness"`
	ClusterThreshold float64       `mapstructure:"cluster_threshold"`
	MaxFetchSources  int           `mapstructure:"max_fetch_sources"`
	MaxResults       int           `mapstructure:"max_results"`
	MinFetchWords    int           `mapstructure:"min_fetch_words"`
	MaxFetchChars    int           `mapstructure:"max_fetch_chars"`
}

func (s SearchConfig) Validate() error {
	if s.ClusterThreshold < 0 || s.ClusterThreshold > 1 {
		return fmt.Errorf("search.cluster_threshold must be in [0,1]")
	}
	if s.MaxFetchSources < 0 || s.MaxFetchSources > 2 {
		return fmt.Errorf("search.max_fetch_sources must be 0..2")
	}
	return nil
}

// ToolsConfig selects how tool operations are executed.
type ToolsConfig struct {
	// Mode is "local" (in-process operations) or "remote" (tool service).
	Mode           string        `mapstructure:"mode"`
	RemoteEndpoint string        `mapstructure:"remote_endpoint"`
	Timeout        time.Duration `mapstructure:"timeout"`

	// SearchProvider is "brave" or "serper".
	SearchProvider string `mapstructure:"search_provider"`
	BraveAPIKey    string `mapstructure:"brave_api_key"`
	SerperAPIKey   string `mapstructure:"serper_api_key"`

	// FetchType is "http" or "chromedp".
	FetchType string `mapstructure:"fetch_type"`
}

func (t ToolsConfig) Validate() error {
	switch t.Mode {
	case "local", "remote":
	default:
		return fmt.Errorf("tools.mode must be local or remote, got %q", t.Mode)
	}
	if t.Mode == "remote" && strings.TrimSpace(t.RemoteEndpoint) == "" {
		return errors.New("tools.remote_endpoint required when tools.mode is remote")
	}
	if t.Mode == "local" {
		switch t.SearchProvider {
		case "brave", "serper":
		default:
			return fmt.Errorf("tools.search_provider must be brave or serper, got %q", t.SearchProvider)
		}
	}
	return nil
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	// SessionBackend is "memory" or "redis".
	SessionBackend string        `mapstructure:"session_backend"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	Redis          RedisConfig   `mapstructure:"redis"`
}

func (s StorageConfig) Validate() error {
	switch s.SessionBackend {
	case "memory":
		return nil
	case "redis":
		return s.Redis.Validate()
	default:
		return fmt.Errorf("storage.session_backend must be memory or redis, got %q", s.SessionBackend)
	}
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return errors.New("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return errors.New("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// AuditConfig selects the audit sink.
type AuditConfig struct {
	// Sink is "log", "redis" or "none".
	Sink   string `mapstructure:"sink"`
	Stream string `mapstructure:"stream"`
	MaxLen int64  `mapstructure:"max_len"`
}

func (a AuditConfig) Validate() error {
	switch a.Sink {
	case "log", "redis", "none":
		return nil
	default:
		return fmt.Errorf("audit.sink must be log, redis or none, got %q", a.Sink)
	}
}

// TelemetryConfig contains monitoring settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults() {
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "60s")
	viper.SetDefault("server.address", ":8080")

	viper.SetDefault("llm.type", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 1024)
	viper.SetDefault("llm.timeout", "45s")
	viper.SetDefault("llm.retry_delay", "500ms")

	viper.SetDefault("search.quote_freshness", "6h")
	viper.SetDefault("search.session_freshness", "15m")
	viper.SetDefault("search.cluster_threshold", 0.3)
	viper.SetDefault("search.max_fetch_sources", 2)
	viper.SetDefault("search.max_results", 10)
	viper.SetDefault("search.min_fetch_words", 120)
	viper.SetDefault("search.max_fetch_chars", 6000)

	viper.SetDefault("tools.mode", "local")
	viper.SetDefault("tools.timeout", "20s")
	viper.SetDefault("tools.search_provider", "brave")
	viper.SetDefault("tools.fetch_type", "http")

	viper.SetDefault("storage.session_backend", "memory")
	viper.SetDefault("storage.session_ttl", "24h")
	viper.SetDefault("storage.redis.host", "localhost")
	viper.SetDefault("storage.redis.port", "6379")
	viper.SetDefault("storage.redis.timeout", "5s")

	viper.SetDefault("audit.sink", "log")
	viper.SetDefault("audit.stream", "converse:audit")
	viper.SetDefault("audit.max_len", 10000)

	viper.SetDefault("telemetry.enabled", true)
}

// LoadConfig loads the configuration from file and environment. A missing
// config file is fine (defaults plus CONVERSE_* env vars apply); a malformed
// one is fatal.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	setDefaults()

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("CONVERSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Tools.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Validate(); err != nil {
		panic(err)
	}
	if err := config.Audit.Validate(); err != nil {
		panic(err)
	}
	return &config
}
