// Package config provides Viper-based configuration loading for the game server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// ServerConfig holds process-wide settings.
type ServerConfig struct {
	// Name identifies this instance in logs.
	Name string `mapstructure:"name"`
	// ShutdownTimeout bounds graceful shutdown of every service.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds the Redis connection used for shared battle counters.
type RedisConfig struct {
	// Enabled selects the Redis counter; when false an in-process counter is used.
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameServerConfig holds game server gRPC settings.
type GameServerConfig struct {
	// GRPCHost is the bind/connect address for the game server gRPC service.
	GRPCHost string `mapstructure:"grpc_host"`
	// GRPCPort is the TCP port for the game server gRPC service.
	GRPCPort int `mapstructure:"grpc_port"`
	// DedupeWindow is how many request IDs are remembered per account.
	DedupeWindow int `mapstructure:"dedupe_window"`
	// FeedBacklog is how many recent feed messages a subscriber receives.
	FeedBacklog int `mapstructure:"feed_backlog"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (g GameServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.GRPCHost, g.GRPCPort)
}

// HTTPConfig holds the read-only HTTP API settings.
type HTTPConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// AllowOrigins is the CORS allow list, comma separated.
	AllowOrigins string `mapstructure:"allow_origins"`
}

// Addr returns the "host:port" listen address.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// TelnetConfig holds the terminal frontend settings.
type TelnetConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
func (t TelnetConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// FlavorConfig selects and tunes the narrative generator.
type FlavorConfig struct {
	// Provider is "canned", "script" or "anthropic".
	Provider  string        `mapstructure:"provider"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int64         `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// ScriptDir holds Lua hooks; used by the script provider and as the
	// first fallback of the anthropic provider when set.
	ScriptDir        string `mapstructure:"script_dir"`
	InstructionLimit int    `mapstructure:"instruction_limit"`
}

// Loot policies for the Indomitable Spirit comeback.
const (
	LootInformational = "informational"
	LootTransfer      = "transfer"
)

// EconomyConfig holds tunables of the economy outside the fixed curves.
type EconomyConfig struct {
	DailyBattleLimit int `mapstructure:"daily_battle_limit"`
	// Timezone is the IANA zone whose midnight resets the daily allowance.
	Timezone string `mapstructure:"timezone"`
	// LootPolicy is "informational" or "transfer".
	LootPolicy string `mapstructure:"loot_policy"`
}

// MaintenanceConfig schedules housekeeping jobs.
type MaintenanceConfig struct {
	FeedRetention        time.Duration `mapstructure:"feed_retention"`
	InactiveCleanup      bool          `mapstructure:"inactive_cleanup"`
	InactiveAfter        time.Duration `mapstructure:"inactive_after"`
	HealthCheckInterval  time.Duration `mapstructure:"health_check_interval"`
	RetentionJobInterval time.Duration `mapstructure:"retention_job_interval"`
}

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	GameServer  GameServerConfig  `mapstructure:"gameserver"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Telnet      TelnetConfig      `mapstructure:"telnet"`
	Flavor      FlavorConfig      `mapstructure:"flavor"`
	Economy     EconomyConfig     `mapstructure:"economy"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, err := range []error{
		validateServer(c.Server),
		validateDatabase(c.Database),
		validateRedis(c.Redis),
		validateLogging(c.Logging),
		validateGameServer(c.GameServer),
		validateHTTP(c.HTTP),
		validateTelnet(c.Telnet),
		validateFlavor(c.Flavor),
		validateEconomy(c.Economy),
		validateMaintenance(c.Maintenance),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(errs, "; "))
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Name == "" {
		errs = append(errs, "server.name must not be empty")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "server.shutdown_timeout must be positive")
	}
	return joinErrs(errs)
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if !validPort(d.Port) {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	return joinErrs(errs)
}

func validateRedis(r RedisConfig) error {
	if !r.Enabled {
		return nil
	}
	var errs []string
	if r.Addr == "" {
		errs = append(errs, "redis.addr must not be empty when redis is enabled")
	}
	if r.DB < 0 {
		errs = append(errs, fmt.Sprintf("redis.db must be >= 0, got %d", r.DB))
	}
	return joinErrs(errs)
}

func validateGameServer(g GameServerConfig) error {
	var errs []string
	if g.GRPCHost == "" {
		errs = append(errs, "gameserver.grpc_host must not be empty")
	}
	if !validPort(g.GRPCPort) {
		errs = append(errs, fmt.Sprintf("gameserver.grpc_port must be 1-65535, got %d", g.GRPCPort))
	}
	if g.DedupeWindow < 1 {
		errs = append(errs, fmt.Sprintf("gameserver.dedupe_window must be >= 1, got %d", g.DedupeWindow))
	}
	if g.FeedBacklog < 1 {
		errs = append(errs, fmt.Sprintf("gameserver.feed_backlog must be >= 1, got %d", g.FeedBacklog))
	}
	return joinErrs(errs)
}

func validateHTTP(h HTTPConfig) error {
	if !h.Enabled {
		return nil
	}
	var errs []string
	if !validPort(h.Port) {
		errs = append(errs, fmt.Sprintf("http.port must be 1-65535, got %d", h.Port))
	}
	if h.ReadTimeout < 0 {
		errs = append(errs, "http.read_timeout must not be negative")
	}
	return joinErrs(errs)
}

func validateFlavor(f FlavorConfig) error {
	var errs []string
	switch f.Provider {
	case "canned":
	case "script":
		if f.ScriptDir == "" {
			errs = append(errs, "flavor.script_dir must not be empty for the script provider")
		}
	case "anthropic":
		if f.APIKey == "" {
			errs = append(errs, "flavor.api_key must not be empty for the anthropic provider")
		}
		if f.Model == "" {
			errs = append(errs, "flavor.model must not be empty for the anthropic provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("flavor.provider must be one of [canned, script, anthropic], got %q", f.Provider))
	}
	if f.MaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("flavor.max_tokens must be >= 1, got %d", f.MaxTokens))
	}
	if f.Timeout <= 0 {
		errs = append(errs, "flavor.timeout must be positive")
	}
	if f.InstructionLimit < 1 {
		errs = append(errs, fmt.Sprintf("flavor.instruction_limit must be >= 1, got %d", f.InstructionLimit))
	}
	return joinErrs(errs)
}

func validateTelnet(t TelnetConfig) error {
	var errs []string
	if !validPort(t.Port) {
		errs = append(errs, fmt.Sprintf("telnet.port must be 1-65535, got %d", t.Port))
	}
	if t.ReadTimeout < 0 || t.WriteTimeout < 0 {
		errs = append(errs, "telnet timeouts must not be negative")
	}
	return joinErrs(errs)
}

func validateEconomy(e EconomyConfig) error {
	var errs []string
	if e.DailyBattleLimit < 1 {
		errs = append(errs, fmt.Sprintf("economy.daily_battle_limit must be >= 1, got %d", e.DailyBattleLimit))
	}
	if _, err := time.LoadLocation(e.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("economy.timezone %q is not a known zone", e.Timezone))
	}
	if e.LootPolicy != LootInformational && e.LootPolicy != LootTransfer {
		errs = append(errs, fmt.Sprintf("economy.loot_policy must be one of [informational, transfer], got %q", e.LootPolicy))
	}
	return joinErrs(errs)
}

func validateMaintenance(m MaintenanceConfig) error {
	var errs []string
	if m.FeedRetention <= 0 {
		errs = append(errs, "maintenance.feed_retention must be positive")
	}
	if m.InactiveCleanup && m.InactiveAfter < 24*time.Hour {
		errs = append(errs, "maintenance.inactive_after must be at least 24h when inactive cleanup is enabled")
	}
	if m.HealthCheckInterval <= 0 {
		errs = append(errs, "maintenance.health_check_interval must be positive")
	}
	if m.RetentionJobInterval <= 0 {
		errs = append(errs, "maintenance.retention_job_interval must be positive")
	}
	return joinErrs(errs)
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path skips the file and uses
// defaults plus environment.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and KNIGHT_ environment
// overrides applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("KNIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	if v == nil {
		return Config{}, errors.New("nil viper instance")
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "knight")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "knight")
	v.SetDefault("database.password", "knight")
	v.SetDefault("database.name", "knight")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("gameserver.grpc_host", "127.0.0.1")
	v.SetDefault("gameserver.grpc_port", 50051)
	v.SetDefault("gameserver.dedupe_window", 32)
	v.SetDefault("gameserver.feed_backlog", 50)

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.allow_origins", "*")

	v.SetDefault("telnet.host", "0.0.0.0")
	v.SetDefault("telnet.port", 4000)
	v.SetDefault("telnet.read_timeout", "30m")
	v.SetDefault("telnet.write_timeout", "10s")

	v.SetDefault("flavor.provider", "canned")
	v.SetDefault("flavor.api_key", "")
	v.SetDefault("flavor.script_dir", "")
	v.SetDefault("flavor.model", "claude-3-5-haiku-latest")
	v.SetDefault("flavor.max_tokens", 300)
	v.SetDefault("flavor.timeout", "5s")
	v.SetDefault("flavor.instruction_limit", 100000)

	v.SetDefault("economy.daily_battle_limit", 20)
	v.SetDefault("economy.timezone", "Asia/Seoul")
	v.SetDefault("economy.loot_policy", LootInformational)

	v.SetDefault("maintenance.feed_retention", "168h")
	v.SetDefault("maintenance.inactive_cleanup", false)
	v.SetDefault("maintenance.inactive_after", "720h")
	v.SetDefault("maintenance.health_check_interval", "30s")
	v.SetDefault("maintenance.retention_job_interval", "1h")
}
