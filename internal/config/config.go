package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the marketplace binaries.
// Fee amounts are in base currency units and are validated exact-match
// against the deposit attached to a call.
type Config struct {
	// Not every binary needs every connection, so presence is checked by
	// the binary that uses it rather than at parse time.
	DatabaseURL string `env:"MARKETPLACE_DB_URL"`
	RabbitURL   string `env:"RABBITMQ_URL"`
	RedisAddr   string `env:"REDIS_ADDR"`
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8080"`

	JWTPublicKeyFile string `env:"JWT_PUBLIC_KEY_FILE"`
	JWTIssuer        string `env:"JWT_ISSUER" envDefault:"tokenhaus"`

	// Account that holds custody of escrowed tokens.
	MarketplaceAccount string `env:"MARKETPLACE_ACCOUNT" envDefault:"marketplace"`

	MintFee          int64 `env:"MINT_FEE" envDefault:"100000"`
	CreateAuctionFee int64 `env:"CREATE_AUCTION_FEE" envDefault:"1000000"`
	EnrollFee        int64 `env:"ENROLL_FEE" envDefault:"100000"`

	RelayBatchSize int           `env:"RELAY_BATCH_SIZE" envDefault:"10"`
	RelayInterval  time.Duration `env:"RELAY_INTERVAL" envDefault:"1s"`
	LockTimeout    time.Duration `env:"LOCK_TIMEOUT" envDefault:"3s"`
}

// Load reads .env files (local overrides checked first) and parses the
// environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
