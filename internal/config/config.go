package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all service configuration loaded from environment variables.
// Redis, Postgres and MinIO are optional; leaving their address empty
// disables logout revocation, the play-session ledger and avatars.
type Config struct {
	Port      string `env:"PORT" envDefault:"3000"`
	MongoURI  string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB   string `env:"MONGODB_DB" envDefault:"battleRoyale"`
	JWTSecret string `env:"JWT_SECRET,notEmpty"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	PostgresDSN string `env:"POSTGRES_DSN"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"avatars"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`

	PublicDir      string   `env:"PUBLIC_DIR" envDefault:"public"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
