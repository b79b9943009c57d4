package app

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"sealroom/internal/config"
	"sealroom/internal/directory"
	"sealroom/internal/keystore"
)

// KeyringService is the OS keyring service name holding device keys.
const KeyringService = "sealroom"

// DeviceKeySource picks the device key source named by cfg.
func DeviceKeySource(cfg config.Client) keystore.DeviceKeySource {
	if cfg.DeviceKey == "keyring" {
		account := cfg.UserID
		if account == "" {
			account = "default"
		}
		return keystore.NewKeyringDeviceKey(KeyringService, account)
	}
	return keystore.NewFileDeviceKey(cfg.Home)
}

// OpenStore opens the directory store named by cfg.
func OpenStore(ctx context.Context, cfg config.Server) (directory.Store, error) {
	switch cfg.Store {
	case "memory":
		return directory.NewMemoryStore(), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return directory.NewRedisStore(rdb), nil
	case "postgres":
		return directory.OpenPostgres(ctx, cfg.Postgres.DSN)
	default:
		return nil, errors.New("unknown store " + cfg.Store)
	}
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}
