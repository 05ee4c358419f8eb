// Package config reads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port      string `env:"POKEAYMAN_PORT" envDefault:"8080"`
	DBPath    string `env:"POKEAYMAN_DB_PATH" envDefault:"pokeayman.db"`
	LogLevel  string `env:"POKEAYMAN_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"POKEAYMAN_LOG_FORMAT" envDefault:"text"`

	// FallbackPath is where the degraded-mode store keeps its records.
	FallbackPath string `env:"POKEAYMAN_FALLBACK_PATH" envDefault:"pokeayman-fallback.json"`

	// ReconcileInterval is how often queued fallback writes are replayed
	// against the primary store.
	ReconcileInterval time.Duration `env:"POKEAYMAN_RECONCILE_INTERVAL" envDefault:"30s"`

	// Web push (optional). Both keys must be set to enable push delivery.
	VAPIDPublicKey  string `env:"POKEAYMAN_VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"POKEAYMAN_VAPID_PRIVATE_KEY"`

	// Encrypted backups (optional). Disabled unless bucket and passphrase
	// are set.
	BackupEndpoint   string        `env:"POKEAYMAN_BACKUP_S3_ENDPOINT"`
	BackupBucket     string        `env:"POKEAYMAN_BACKUP_S3_BUCKET"`
	BackupRegion     string        `env:"POKEAYMAN_BACKUP_S3_REGION" envDefault:"auto"`
	BackupAccessKey  string        `env:"POKEAYMAN_BACKUP_S3_ACCESS_KEY"`
	BackupSecretKey  string        `env:"POKEAYMAN_BACKUP_S3_SECRET_KEY"`
	BackupPassphrase string        `env:"POKEAYMAN_BACKUP_PASSPHRASE"`
	BackupInterval   time.Duration `env:"POKEAYMAN_BACKUP_INTERVAL" envDefault:"24h"`
	BackupRetention  int           `env:"POKEAYMAN_BACKUP_RETENTION" envDefault:"14"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
