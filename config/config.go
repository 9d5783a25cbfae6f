package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all configuration for the bot process
type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Search   SearchConfig   `mapstructure:"search"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// DiscordConfig contains chat platform settings
type DiscordConfig struct {
	Token              string        `mapstructure:"token"`
	GuildID            string        `mapstructure:"guild_id"` // empty registers the command globally
	CommandName        string        `mapstructure:"command_name"`
	InteractionTimeout time.Duration `mapstructure:"interaction_timeout"`
}

func (d DiscordConfig) Validate() error {
	if strings.TrimSpace(d.Token) == "" {
		return fmt.Errorf("discord.token required (BOT_TOKEN)")
	}
	if strings.TrimSpace(d.CommandName) == "" {
		return fmt.Errorf("discord.command_name required")
	}
	if d.InteractionTimeout <= 0 {
		return fmt.Errorf("discord.interaction_timeout must be > 0")
	}
	return nil
}

// SearchConfig selects and configures the image search provider
type SearchConfig struct {
	Provider   string        `mapstructure:"provider"` // serpapi, serper, brave
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Normalize applies defaults for unset search values.
func (s SearchConfig) Normalize() SearchConfig {
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.Provider == "" {
		s.Provider = "serpapi"
	}
	if s.MaxResults <= 0 {
		s.MaxResults = 10
	}
	if s.Timeout <= 0 {
		s.Timeout = 15 * time.Second
	}
	return s
}

func (s SearchConfig) Validate() error {
	switch s.Provider {
	case "serpapi", "serper", "brave":
	default:
		return fmt.Errorf("search.provider %q not supported", s.Provider)
	}
	if strings.TrimSpace(s.APIKey) == "" {
		return fmt.Errorf("search.api_key required (SERPAPI_KEY)")
	}
	if s.MaxResults > 100 {
		return fmt.Errorf("search.max_results must be <= 100")
	}
	return nil
}

// SessionsConfig controls where browsing sessions live
type SessionsConfig struct {
	Store         string        `mapstructure:"store"` // inmemory, redis
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
}

func (s SessionsConfig) Validate() error {
	switch s.Store {
	case "inmemory", "redis":
	default:
		return fmt.Errorf("sessions.store %q not supported", s.Store)
	}
	if s.IdleTTL < 0 {
		return fmt.Errorf("sessions.idle_ttl cannot be negative")
	}
	return nil
}

// StorageConfig contains storage settings
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

// ServerConfig contains the ops HTTP server settings
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

func (s ServerConfig) Validate() error {
	if s.Enabled && strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address required when server is enabled")
	}
	return nil
}

// Requirement says which sections LoadConfig must validate.
type Requirement int

const (
	// RequireAll is used by the bot process.
	RequireAll Requirement = iota
	// RequireSearch skips the discord section, for the search CLI.
	RequireSearch
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.debug", false)
	v.SetDefault("discord.guild_id", "")
	v.SetDefault("discord.command_name", "pic")
	v.SetDefault("discord.interaction_timeout", 30*time.Second)
	v.SetDefault("search.provider", "serpapi")
	v.SetDefault("search.base_url", "")
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.timeout", 15*time.Second)
	v.SetDefault("sessions.store", "inmemory")
	v.SetDefault("sessions.idle_ttl", time.Duration(0))
	v.SetDefault("sessions.sweep_interval", time.Minute)
	v.SetDefault("sessions.redis_prefix", "picbot:session:")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.address", ":9090")
}

// LoadConfig reads an optional config file, a .env file and the environment.
// An empty path searches the usual locations and tolerates a missing file.
func LoadConfig(path string, req Requirement) (*Config, error) {
	// .env mirrors the deployment secrets; real environment variables win.
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(exe))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("PICBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// original deployment variable names
	_ = v.BindEnv("discord.token", "PICBOT_DISCORD_TOKEN", "BOT_TOKEN")
	_ = v.BindEnv("search.api_key", "PICBOT_SEARCH_API_KEY", "SERPAPI_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Search = cfg.Search.Normalize()

	if err := cfg.Validate(req); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section the requirement needs.
func (c *Config) Validate(req Requirement) error {
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if req == RequireSearch {
		return nil
	}
	if err := c.Discord.Validate(); err != nil {
		return err
	}
	if err := c.Sessions.Validate(); err != nil {
		return err
	}
	if c.Sessions.Store == "redis" {
		if err := c.Storage.Redis.Validate(); err != nil {
			return err
		}
	}
	return c.Server.Validate()
}
