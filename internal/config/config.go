// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"wompbot/internal/game/answer"
	"wompbot/internal/game/session"
)

// Config holds all application configuration.
type Config struct {
	Discord     DiscordConfig     `mapstructure:"discord"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Games       GamesConfig       `mapstructure:"games"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Whitelist   WhitelistConfig   `mapstructure:"whitelist"`
	Log         LogConfig         `mapstructure:"log"`
}

// DiscordConfig holds Discord bot configuration. An empty token disables it.
type DiscordConfig struct {
	Token  string `mapstructure:"token"`
	Prefix string `mapstructure:"prefix"`
}

// TelegramConfig holds Telegram bot configuration. An empty token disables it.
type TelegramConfig struct {
	Token       string        `mapstructure:"token"`
	Prefix      string        `mapstructure:"prefix"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig enables event publishing when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// LLMConfig selects and configures the question model.
type LLMConfig struct {
	// Mode is "openai" for a real chat completions endpoint or "mock".
	Mode        string        `mapstructure:"mode"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// GamesConfig holds game engine configuration.
type GamesConfig struct {
	QuestionTimeout time.Duration     `mapstructure:"question_timeout"`
	IdleTimeout     time.Duration     `mapstructure:"idle_timeout"`
	SweepInterval   time.Duration     `mapstructure:"sweep_interval"`
	DefaultCount    int               `mapstructure:"default_count"`
	MaxCount        int               `mapstructure:"max_count"`
	JeopardyPenalty float64           `mapstructure:"jeopardy_penalty"`
	Scoring         session.Scoring   `mapstructure:"scoring"`
	Matcher         answer.Thresholds `mapstructure:"matcher"`
}

// PersistenceConfig tunes the session mirror.
type PersistenceConfig struct {
	QueueSize    int           `mapstructure:"queue_size"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// HTTPConfig holds the ops API listener. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []string `mapstructure:"ids"`
	// GateControls restricts stop and skip to admins and the game owner.
	GateControls bool `mapstructure:"gate_controls"`
}

// WhitelistConfig holds channel whitelist configuration.
type WhitelistConfig struct {
	Channels []string `mapstructure:"channels"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., DISCORD_TOKEN, DATABASE_HOST, LLM_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional - env vars can provide all config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.prefix", "!")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.prefix", "/")
	v.SetDefault("telegram.poll_timeout", "10s")

	// Database defaults
	v.SetDefault("database.enabled", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "wompbot")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "wompbot")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "wompbot:events:")

	v.SetDefault("llm.mode", "openai")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 2)

	// Game defaults
	v.SetDefault("games.question_timeout", "30s")
	v.SetDefault("games.idle_timeout", "10m")
	v.SetDefault("games.sweep_interval", "1m")
	v.SetDefault("games.default_count", 5)
	v.SetDefault("games.max_count", 20)
	v.SetDefault("games.jeopardy_penalty", 1.0)

	scoring := session.DefaultScoring()
	v.SetDefault("games.scoring.max_speed_multiplier", scoring.MaxSpeedMultiplier)
	v.SetDefault("games.scoring.fast_answer", scoring.FastAnswer.String())
	v.SetDefault("games.scoring.slow_answer", scoring.SlowAnswer.String())
	v.SetDefault("games.scoring.streak_step", scoring.StreakStep)
	v.SetDefault("games.scoring.streak_increment", scoring.StreakIncrement)
	v.SetDefault("games.scoring.max_streak_multiplier", scoring.MaxStreakMultiplier)

	th := answer.DefaultThresholds()
	v.SetDefault("games.matcher.short_len", th.ShortLen)
	v.SetDefault("games.matcher.short", th.Short)
	v.SetDefault("games.matcher.medium_len", th.MediumLen)
	v.SetDefault("games.matcher.medium", th.Medium)
	v.SetDefault("games.matcher.long", th.Long)
	v.SetDefault("games.matcher.min_substring_len", th.MinSubstringLen)

	v.SetDefault("persistence.queue_size", 256)
	v.SetDefault("persistence.write_timeout", "5s")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("admin.ids", []string{})
	v.SetDefault("admin.gate_controls", false)
	v.SetDefault("whitelist.channels", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// Validate rejects settings the bot cannot run with.
func (c *Config) Validate() error {
	switch c.LLM.Mode {
	case "openai", "mock":
	default:
		return fmt.Errorf("llm.mode must be openai or mock, got %q", c.LLM.Mode)
	}
	if c.LLM.Mode == "openai" && c.LLM.BaseURL == "" {
		return errors.New("llm.base_url is required in openai mode")
	}
	if c.Games.QuestionTimeout <= 0 {
		return errors.New("games.question_timeout must be positive")
	}
	if c.Games.MaxCount <= 0 || c.Games.DefaultCount <= 0 || c.Games.DefaultCount > c.Games.MaxCount {
		return fmt.Errorf("games.default_count (%d) must be between 1 and games.max_count (%d)",
			c.Games.DefaultCount, c.Games.MaxCount)
	}
	return nil
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID string) bool {
	return slices.Contains(c.Admin.IDs, userID)
}

// IsChannelAllowed checks if a channel ID is in the whitelist.
func (c *Config) IsChannelAllowed(channelID string) bool {
	// Empty whitelist means all channels are allowed
	if len(c.Whitelist.Channels) == 0 {
		return true
	}
	return slices.Contains(c.Whitelist.Channels, channelID)
}

// EngineConfig converts the games section for the session engine.
func (g GamesConfig) EngineConfig() session.Config {
	return session.Config{
		QuestionTimeout: g.QuestionTimeout,
		IdleTimeout:     g.IdleTimeout,
		SweepInterval:   g.SweepInterval,
		DefaultCount:    g.DefaultCount,
		MaxCount:        g.MaxCount,
		Scoring:         g.Scoring,
	}
}
