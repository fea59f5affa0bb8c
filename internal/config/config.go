package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0:8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"DEBUG"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`
	PostgresConfig
	PolicyConfig
	FeedConfig
}

// NewConfig reads the environment, after loading an optional .env file from
// the working directory.
func NewConfig() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("config.NewConfig: %w", err)
	}

	config := &Config{}

	err := env.Parse(config)
	if err != nil {
		return config, fmt.Errorf("config.NewConfig: %w", err)
	}
	return config, nil
}

// LoadDotEnv copies variables from the given files into the environment.
// Variables already set win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		err := godotenv.Load(file)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config.LoadDotEnv: %s: %w", file, err)
		}
	}
	return nil
}

type PostgresConfig struct {
	Conn            string `env:"POSTGRES_CONN" envDefault:"postgres://test:test@db:5432/test?sslmode=disable"`
	AutoMigrateUp   string `env:"AUTO_MIGRATE_UP" envDefault:"true"`
	AutoMigrateDown string `env:"AUTO_MIGRATE_DOWN" envDefault:"false"`
	// Empty means the migrations embedded into the binary.
	MigrationsURL string `env:"MIGRATIONS_URL" envDefault:""`
}

func NewPostgresConfig() (*PostgresConfig, error) {
	config := &PostgresConfig{}

	err := env.Parse(config)
	if err != nil {
		err = fmt.Errorf("config.NewPostgresConfig: %w", err)
	}
	return config, err
}

// PolicyConfig holds the business switches left open by the bidding rules.
type PolicyConfig struct {
	AcceptRejectsSiblings bool   `env:"ACCEPT_REJECTS_SIBLINGS" envDefault:"false"`
	RefundPolicy          string `env:"REFUND_POLICY" envDefault:"none"`
}

type FeedConfig struct {
	Path     string        `env:"FEED_PATH" envDefault:""`
	Interval time.Duration `env:"FEED_INTERVAL" envDefault:"15m"`
}
