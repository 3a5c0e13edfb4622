package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/pix-gateway/internal"
	"github.com/frahmantamala/pix-gateway/internal/charge"
	chargePostgres "github.com/frahmantamala/pix-gateway/internal/charge/postgres"
	"github.com/frahmantamala/pix-gateway/internal/core/events"
	"github.com/frahmantamala/pix-gateway/internal/ledger"
	ledgerPostgres "github.com/frahmantamala/pix-gateway/internal/ledger/postgres"
	"github.com/frahmantamala/pix-gateway/internal/provider"
	"github.com/frahmantamala/pix-gateway/internal/transport"
	"github.com/frahmantamala/pix-gateway/internal/transport/rest"
	"github.com/frahmantamala/pix-gateway/internal/webhook"
	webhookPostgres "github.com/frahmantamala/pix-gateway/internal/webhook/postgres"
	"github.com/frahmantamala/pix-gateway/internal/withdrawal"
	withdrawalPostgres "github.com/frahmantamala/pix-gateway/internal/withdrawal/postgres"
	"github.com/frahmantamala/pix-gateway/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle webhook deliveries and API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	GormDB *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger

	WebhookHandler    *webhook.Handler
	WithdrawalHandler *withdrawal.Handler
	LedgerHandler     *ledger.Handler

	WithdrawalService *withdrawal.Service
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, deps.WebhookHandler, deps.WithdrawalHandler, deps.LedgerHandler, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	eventBus := events.NewEventBus(lg)
	registerEventHandlers(eventBus, lg)

	baseHandler := transport.NewBaseHandler(lg)

	// Ledger
	ledgerRepo := ledgerPostgres.NewLedgerRepository(gormDB)
	ledgerService := ledger.NewService(ledgerRepo, lg)
	ledgerHandler := ledger.NewHandler(baseHandler, ledgerService, lg)

	// Charges
	chargeRepo := chargePostgres.NewChargeRepository(gormDB)
	chargeService := charge.NewService(chargeRepo, eventBus, lg)

	// Provider client
	providerClient := provider.NewClient(config.Provider, lg)

	// Withdrawals
	withdrawalRepo := withdrawalPostgres.NewWithdrawalRepository(gormDB)
	pixKeyRepo := withdrawalPostgres.NewPixKeyRepository(gormDB)
	withdrawalService := withdrawal.NewService(withdrawalRepo, pixKeyRepo, providerClient, ledgerService, eventBus, lg)
	withdrawalHandler := withdrawal.NewHandler(baseHandler, withdrawalService, lg)

	// Webhooks
	attemptRepo := webhookPostgres.NewAttemptRepository(gormDB)
	webhookConfigRepo := webhookPostgres.NewConfigRepository(gormDB)
	webhookService := webhook.NewService(attemptRepo, webhookConfigRepo, chargeService, withdrawalService, config.Webhook, lg)
	webhookHandler := webhook.NewHandler(baseHandler, webhookService, lg)

	return &Dependencies{
		Config: config,
		Logger: lg,
		DB:     db,
		GormDB: gormDB,
		Router: chi.NewRouter(),

		WebhookHandler:    webhookHandler,
		WithdrawalHandler: withdrawalHandler,
		LedgerHandler:     ledgerHandler,

		WithdrawalService: withdrawalService,
	}, nil
}

func registerEventHandlers(eventBus *events.EventBus, lg *slog.Logger) {
	eventBus.Subscribe(events.EventTypePaymentReceived, func(ctx context.Context, event events.Event) error {
		lg.Info("payment received",
			"event_id", event.EventID(),
			"payload", event.Payload())
		return nil
	})

	eventBus.Subscribe(events.EventTypeWithdrawalCompleted, func(ctx context.Context, event events.Event) error {
		lg.Info("withdrawal completed",
			"event_id", event.EventID(),
			"payload", event.Payload())
		return nil
	})

	eventBus.Subscribe(events.EventTypeWithdrawalFailed, func(ctx context.Context, event events.Event) error {
		lg.Warn("withdrawal failed",
			"event_id", event.EventID(),
			"payload", event.Payload())
		return nil
	})
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm layers the ORM over the already-pooled pgx connection.
// TranslateError is on so unique violations surface as gorm.ErrDuplicatedKey.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormPostgres.New(gormPostgres.Config{
		Conn: db.DB,
	}), &gorm.Config{
		TranslateError: true,
	})
}
