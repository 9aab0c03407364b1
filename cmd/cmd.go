package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/frahmantamala/receiptlens/internal"
)

var (
	clearData  bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "receiptlens",
	Short: "ReceiptLens",
	Long:  `Receipt ingestion, spending insights and nudges for personal finance.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*internal.Config, error) {
	// a missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	if os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true" {
		cfg, err := internal.LoadConfigFromEnv()
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("error validating config from environment: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("http_server.port", 8080)
	v.SetDefault("http_server.read_header_timeout", "5s")
	v.SetDefault("http_server.read_timeout", "30s")
	v.SetDefault("http_server.write_timeout", "90s")
	v.SetDefault("http_server.idle_timeout", "120s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")

	v.SetDefault("security.access_token_duration", "24h")
	v.SetDefault("security.bcrypt_cost", 10)

	v.SetDefault("ai.model", "gpt-4o")
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.max_transactions", 20)

	v.SetDefault("exchange.base_url", "https://open.er-api.com")
	v.SetDefault("exchange.timeout", "5s")

	v.SetDefault("storage.driver", internal.StorageDriverInline)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.key_prefix", "receipts")
	v.SetDefault("storage.presign_ttl", "1h")

	v.SetDefault("ingestion.max_upload_bytes", 10<<20)
	v.SetDefault("ingestion.stale_after", "15m")
	v.SetDefault("ingestion.sweep_interval", "5m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yml")
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(workerCmd)
}
