package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frahmantamala/receiptlens/internal"
	"github.com/frahmantamala/receiptlens/internal/auth"
	authPostgres "github.com/frahmantamala/receiptlens/internal/auth/postgres"
	"github.com/frahmantamala/receiptlens/internal/blobstore"
	"github.com/frahmantamala/receiptlens/internal/core/events"
	"github.com/frahmantamala/receiptlens/internal/exchangerate"
	"github.com/frahmantamala/receiptlens/internal/insight"
	"github.com/frahmantamala/receiptlens/internal/llm"
	"github.com/frahmantamala/receiptlens/internal/nudge"
	nudgePostgres "github.com/frahmantamala/receiptlens/internal/nudge/postgres"
	"github.com/frahmantamala/receiptlens/internal/receipt"
	receiptPostgres "github.com/frahmantamala/receiptlens/internal/receipt/postgres"
	"github.com/frahmantamala/receiptlens/internal/transport/rest"
	"github.com/frahmantamala/receiptlens/internal/transport/swagger"
	"github.com/frahmantamala/receiptlens/pkg/logger"
)

var specFile string

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func init() {
	httpServerCmd.Flags().StringVar(&specFile, "spec", "api/openapi.yml", "OpenAPI document served at /openapi.yml")
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Bus      *events.EventBus
	Logger   *slog.Logger
	Auth     *auth.Service
	Receipts *receipt.Service
	Insights *insight.Service
	Nudges   *nudge.Service
}

func (d *Dependencies) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Bus.Wait(ctx); err != nil {
		d.Logger.Error("event handlers did not finish", "error", err)
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

func startHTTPServer() {
	deps, err := initializeDependencies(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	log := deps.Logger

	spec, err := swagger.LoadSpec(context.Background(), specFile)
	if err != nil {
		log.Error("failed to load openapi spec", "error", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Health:  rest.NewHealthHandler(map[string]rest.Pinger{"postgres": deps.DB}),
		Auth:    auth.NewHandler(deps.Auth),
		Receipt: receipt.NewHandler(deps.Receipts, deps.Config.Ingestion.MaxUploadBytes),
		Insight: insight.NewHandler(deps.Insights),
		Nudge:   nudge.NewHandler(deps.Nudges),
		Spec:    spec,
	}, log)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	log.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
		deps.Close()
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	log.Info("server stopped")
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.Configure(logger.Options{
		Env:    config.Env,
		Level:  config.Logging.Level,
		Format: config.Logging.Format,
	})

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	blobs, err := initBlobStore(ctx, config.Storage, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	ai := llm.NewClient(llm.Config{
		BaseURL:         config.AI.BaseURL,
		APIKey:          config.AI.APIKey,
		Model:           config.AI.Model,
		Timeout:         config.AI.Timeout,
		MaxTransactions: config.AI.MaxTransactions,
	}, log)
	rates := exchangerate.NewClient(config.Exchange.BaseURL, config.Exchange.Timeout, log)

	bus := events.NewEventBus(log)

	nudgeService := nudge.NewService(nudgePostgres.NewNudgeRepository(db), log)
	nudge.NewSubscriber(nudgeService, log).Register(bus)

	receiptRepo := receiptPostgres.NewReceiptRepository(gdb)
	receiptService := receipt.NewService(receiptRepo, ai, rates, blobs, bus, log)

	tokens := auth.NewJWTTokenGenerator(config.Security.JWTSecret, config.Security.AccessTokenDuration)
	authService := auth.NewService(authPostgres.NewRepository(gdb), tokens, config.Security.BCryptCost, log)

	return &Dependencies{
		Config:   config,
		DB:       db,
		Gorm:     gdb,
		Bus:      bus,
		Logger:   log,
		Auth:     authService,
		Receipts: receiptService,
		Insights: insight.NewService(receiptRepo, ai, log),
		Nudges:   nudgeService,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx connection pool with gorm.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
}

func initBlobStore(ctx context.Context, cfg internal.StorageConfig, log *slog.Logger) (blobstore.Store, error) {
	if cfg.Driver != internal.StorageDriverS3 {
		return blobstore.NewInlineStore(), nil
	}
	store, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		KeyPrefix:       cfg.KeyPrefix,
		PresignTTL:      cfg.PresignTTL,
	}, log)
	if err != nil {
		return nil, err
	}
	return store, nil
}
