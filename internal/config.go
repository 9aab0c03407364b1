package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env       string          `mapstructure:"env" env:"APP_ENV" envDefault:"development"`
	Server    ServerConfig    `mapstructure:"http_server" envPrefix:"HTTP_"`
	Database  DatabaseConfig  `mapstructure:"database" envPrefix:"DB_"`
	Security  SecurityConfig  `mapstructure:"security" envPrefix:"SECURITY_" validate:"required"`
	AI        AIConfig        `mapstructure:"ai" envPrefix:"AI_"`
	Exchange  ExchangeConfig  `mapstructure:"exchange" envPrefix:"EXCHANGE_"`
	Storage   StorageConfig   `mapstructure:"storage" envPrefix:"STORAGE_"`
	Ingestion IngestionConfig `mapstructure:"ingestion" envPrefix:"INGESTION_"`
	Logging   LoggingConfig   `mapstructure:"logging" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url" env:"BASE_URL"`
	AllowedOrigins    string        `mapstructure:"allowed_origins" env:"ALLOWED_ORIGINS"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" env:"READ_TIMEOUT" envDefault:"30s"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" env:"IDLE_TIMEOUT" envDefault:"120s"`
	// uploads wait on the extraction call, so the write timeout must cover it
	WriteTimeout time.Duration `mapstructure:"write_timeout" env:"WRITE_TIMEOUT" envDefault:"90s"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" env:"MAX_OPEN_CONNS" envDefault:"10" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" env:"MAX_IDLE_CONNS" envDefault:"5" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" env:"CONN_MAX_LIFETIME" envDefault:"30m" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME" envDefault:"5m" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" env:"SOURCE" validate:"required"`
}

type SecurityConfig struct {
	JWTSecret           string        `mapstructure:"jwt_secret" env:"JWT_SECRET" validate:"required,min=32"`
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration" env:"ACCESS_TOKEN_DURATION" envDefault:"24h" validate:"required,min=1m"`
	BCryptCost          int           `mapstructure:"bcrypt_cost" env:"BCRYPT_COST" envDefault:"10" validate:"required,min=4,max=15"`
}

type AIConfig struct {
	BaseURL string `mapstructure:"base_url" env:"BASE_URL"`
	APIKey  string `mapstructure:"api_key" env:"API_KEY"`
	Model   string `mapstructure:"model" env:"MODEL" envDefault:"gpt-4o" validate:"required"`
	// Timeout bounds each completion call.
	Timeout         time.Duration `mapstructure:"timeout" env:"TIMEOUT" envDefault:"60s" validate:"required"`
	MaxTransactions int           `mapstructure:"max_transactions" env:"MAX_TRANSACTIONS" envDefault:"20" validate:"min=1,max=200"`
}

type ExchangeConfig struct {
	BaseURL string        `mapstructure:"base_url" env:"BASE_URL" envDefault:"https://open.er-api.com" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" env:"TIMEOUT" envDefault:"5s" validate:"required"`
}

const (
	StorageDriverInline = "inline"
	StorageDriverS3     = "s3"
)

type StorageConfig struct {
	Driver          string        `mapstructure:"driver" env:"DRIVER" envDefault:"inline" validate:"required,oneof=inline s3"`
	Bucket          string        `mapstructure:"bucket" env:"BUCKET" validate:"required_if=Driver s3"`
	Region          string        `mapstructure:"region" env:"REGION" envDefault:"us-east-1"`
	Endpoint        string        `mapstructure:"endpoint" env:"ENDPOINT"`
	AccessKeyID     string        `mapstructure:"access_key_id" env:"ACCESS_KEY_ID"`
	SecretAccessKey string        `mapstructure:"secret_access_key" env:"SECRET_ACCESS_KEY"`
	KeyPrefix       string        `mapstructure:"key_prefix" env:"KEY_PREFIX" envDefault:"receipts"`
	PresignTTL      time.Duration `mapstructure:"presign_ttl" env:"PRESIGN_TTL" envDefault:"1h"`
}

type IngestionConfig struct {
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" envDefault:"10485760" validate:"min=1"`
	StaleAfter     time.Duration `mapstructure:"stale_after" env:"STALE_AFTER" envDefault:"15m" validate:"required"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval" env:"SWEEP_INTERVAL" envDefault:"5m" validate:"required"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" env:"LEVEL" envDefault:"info" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" env:"FORMAT" envDefault:"text" validate:"omitempty,oneof=json text"`
}

// LoadConfigFromEnv reads the whole configuration from environment variables.
func LoadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// ----------------- VALIDATION -----------------

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}
