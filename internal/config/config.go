package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config captures the service runtime parameters.
type Config struct {
	HTTPAddress         string           `mapstructure:"http_address"`
	LogLevel            string           `mapstructure:"log_level"`
	LogPretty           bool             `mapstructure:"log_pretty"`
	ShutdownGracePeriod time.Duration    `mapstructure:"shutdown_grace_period"`
	Database            DatabaseConfig   `mapstructure:"database"`
	JWT                 JWTConfig        `mapstructure:"jwt"`
	CORS                CORSConfig       `mapstructure:"cors"`
	Membership          MembershipConfig `mapstructure:"membership"`
	Realtime            RealtimeConfig   `mapstructure:"realtime"`
	History             HistoryConfig    `mapstructure:"history"`
}

// DatabaseConfig points at the SQLite file backing trips, users and chat history.
type DatabaseConfig struct {
	Path     string `mapstructure:"path"`
	LogLevel string `mapstructure:"log_level"`
}

// JWTConfig must match the settings of the HTTP API issuing the tokens.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MembershipConfig tunes the trip membership lookups. A zero CacheTTL disables caching.
type MembershipConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// RealtimeConfig tunes the websocket transport and the hub.
type RealtimeConfig struct {
	AuthorizeTimeout time.Duration `mapstructure:"authorize_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	MaxMessageSize   int64         `mapstructure:"max_message_size"`
	SendBuffer       int           `mapstructure:"send_buffer"`
}

type HistoryConfig struct {
	Buffer       int `mapstructure:"buffer"`
	DefaultLimit int `mapstructure:"default_limit"`
}

const (
	envPrefix = "TRAVEL"

	defaultHTTPAddress         = ":8008"
	defaultLogLevel            = "info"
	defaultShutdownGracePeriod = 10 * time.Second
	defaultDatabasePath        = "travel-together.db"
	defaultDatabaseLogLevel    = "warn"
	defaultJWTSecret           = "development-insecure-secret-change-me"
	defaultJWTIssuer           = "travel-together-api"
	defaultJWTAudience         = "travel-together-clients"
	defaultJWTTTL              = 24 * time.Hour
	defaultMembershipCacheTTL  = 5 * time.Second
	defaultAuthorizeTimeout    = 3 * time.Second
	defaultPingInterval        = 30 * time.Second
	defaultPongWait            = 60 * time.Second
	defaultWriteWait           = 5 * time.Second
	defaultMaxMessageSize      = 64 * 1024
	defaultSendBuffer          = 64
	defaultHistoryBuffer       = 256
	defaultHistoryLimit        = 50
)

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr": "http_address",
	"log-level": "log_level",
	"db-path":   "database.path",
}

// Load reads configuration from the provided file path (if any), the environment and the
// command line flags. Environment variables are prefixed with TRAVEL_ and override file
// values; changed flags override both.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_address", defaultHTTPAddress)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("log_pretty", false)
	v.SetDefault("shutdown_grace_period", defaultShutdownGracePeriod)
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.log_level", defaultDatabaseLogLevel)
	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.issuer", defaultJWTIssuer)
	v.SetDefault("jwt.audience", defaultJWTAudience)
	v.SetDefault("jwt.ttl", defaultJWTTTL)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("membership.cache_ttl", defaultMembershipCacheTTL)
	v.SetDefault("realtime.authorize_timeout", defaultAuthorizeTimeout)
	v.SetDefault("realtime.ping_interval", defaultPingInterval)
	v.SetDefault("realtime.pong_wait", defaultPongWait)
	v.SetDefault("realtime.write_wait", defaultWriteWait)
	v.SetDefault("realtime.max_message_size", defaultMaxMessageSize)
	v.SetDefault("realtime.send_buffer", defaultSendBuffer)
	v.SetDefault("history.buffer", defaultHistoryBuffer)
	v.SetDefault("history.default_limit", defaultHistoryLimit)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Realtime.PongWait <= c.Realtime.PingInterval {
		return fmt.Errorf("realtime.pong_wait (%s) must exceed realtime.ping_interval (%s)",
			c.Realtime.PongWait, c.Realtime.PingInterval)
	}
	if c.Realtime.SendBuffer <= 0 {
		return fmt.Errorf("realtime.send_buffer must be positive, got %d", c.Realtime.SendBuffer)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret must not be empty")
	}
	return nil
}
