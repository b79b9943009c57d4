// Package config loads client and directory-server settings with viper.
//
// Values come, lowest precedence first, from defaults, an optional YAML file
// and SEALROOM_* environment variables (dots become underscores, so
// redis.addr is SEALROOM_REDIS_ADDR). Commands bind their flags on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "SEALROOM"
	FileName  = "config.yaml"
)

type Client struct {
	Home         string        `mapstructure:"home"`
	UserID       string        `mapstructure:"user_id"`
	DirectoryURL string        `mapstructure:"directory_url"`
	DeviceKey    string        `mapstructure:"device_key"`
	LogLevel     string        `mapstructure:"log_level"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
}

type Server struct {
	Listen    string    `mapstructure:"listen"`
	Store     string    `mapstructure:"store"`
	Redis     Redis     `mapstructure:"redis"`
	Postgres  Postgres  `mapstructure:"postgres"`
	RateLimit RateLimit `mapstructure:"rate_limit"`
	LogLevel  string    `mapstructure:"log_level"`
}

type Redis struct {
	Addr string `mapstructure:"addr"`
	DB   int    `mapstructure:"db"`
}

type Postgres struct {
	DSN string `mapstructure:"dsn"`
}

type RateLimit struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// DefaultHome is ~/.sealroom, or ./.sealroom when the home dir is unknown.
func DefaultHome() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".sealroom")
	}
	return ".sealroom"
}

// New returns a viper instance with env binding and the client and server defaults.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("home", DefaultHome())
	v.SetDefault("user_id", "")
	v.SetDefault("directory_url", "http://127.0.0.1:8080")
	v.SetDefault("device_key", "file")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_timeout", 10*time.Second)

	v.SetDefault("listen", ":8080")
	v.SetDefault("store", "memory")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("rate_limit.rps", 20.0)
	v.SetDefault("rate_limit.burst", 40)
	return v
}

// ReadFile merges the YAML file at path. A missing file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// LoadClient decodes and validates the client settings.
func LoadClient(v *viper.Viper) (Client, error) {
	var c Client
	if err := v.Unmarshal(&c); err != nil {
		return Client{}, fmt.Errorf("decode config: %w", err)
	}
	switch c.DeviceKey {
	case "file", "keyring":
	default:
		return Client{}, fmt.Errorf("device_key must be file or keyring, got %q", c.DeviceKey)
	}
	if c.Home == "" {
		return Client{}, errors.New("home must not be empty")
	}
	if c.HTTPTimeout <= 0 {
		return Client{}, fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout)
	}
	return c, nil
}

// LoadServer decodes and validates the directory settings.
func LoadServer(v *viper.Viper) (Server, error) {
	var s Server
	if err := v.Unmarshal(&s); err != nil {
		return Server{}, fmt.Errorf("decode config: %w", err)
	}
	switch s.Store {
	case "memory", "redis":
	case "postgres":
		if s.Postgres.DSN == "" {
			return Server{}, errors.New("postgres.dsn is required when store is postgres")
		}
	default:
		return Server{}, fmt.Errorf("store must be memory, redis or postgres, got %q", s.Store)
	}
	return s, nil
}
