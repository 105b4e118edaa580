package app

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/fx"
	"go.uber.org/zap"

	moverAdapter "github.com/n2nstreams/saasfactory-cloud/internal/adapter/datamover/postgres"
	kafkaNotify "github.com/n2nstreams/saasfactory-cloud/internal/adapter/notify/kafka"
	webhookNotify "github.com/n2nstreams/saasfactory-cloud/internal/adapter/notify/webhook"
	nomadAdapter "github.com/n2nstreams/saasfactory-cloud/internal/adapter/provisioning/nomad"
	postgresProvisioner "github.com/n2nstreams/saasfactory-cloud/internal/adapter/provisioning/postgres"
	"github.com/n2nstreams/saasfactory-cloud/internal/adapter/repository/postgres"
	s3routes "github.com/n2nstreams/saasfactory-cloud/internal/adapter/routing/s3"
	"github.com/n2nstreams/saasfactory-cloud/internal/adapter/verification/httpprobe"
	"github.com/n2nstreams/saasfactory-cloud/internal/api"
	"github.com/n2nstreams/saasfactory-cloud/internal/config"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/promotion"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/provisioning"
	"github.com/n2nstreams/saasfactory-cloud/internal/domain/tenant"
	"github.com/n2nstreams/saasfactory-cloud/internal/outbox"
	"github.com/n2nstreams/saasfactory-cloud/internal/reconciler"
	"github.com/n2nstreams/saasfactory-cloud/internal/usecase/promote"
	"github.com/n2nstreams/saasfactory-cloud/pkg/db"
	zaplog "github.com/n2nstreams/saasfactory-cloud/pkg/log"
	"github.com/n2nstreams/saasfactory-cloud/pkg/nomad"
	"github.com/n2nstreams/saasfactory-cloud/pkg/snowflake"
	"github.com/n2nstreams/saasfactory-cloud/sql/migrations"
)

// RunServer starts the HTTP server and background workers.
func RunServer() {
	app := fx.New(
		fx.Provide(
			// Config
			config.Load,

			// Infrastructure (Adapters)
			nomad.NewClient,

			// Domain Adapters (Bind Interfaces)
			fx.Annotate(
				postgres.NewTenantRepository,
				fx.As(new(tenant.Repository)),
			),
			fx.Annotate(
				postgres.NewOutcomeRepository,
				fx.As(new(promotion.OutcomeRepository)),
			),
			fx.Annotate(
				newPostgresProvisioner,
				fx.As(new(provisioning.CredentialIssuer)),
				fx.As(new(provisioning.StoreProvisioner)),
			),
			fx.Annotate(
				newDataMover,
				fx.As(new(provisioning.DataMover)),
			),
			fx.Annotate(
				newRouteStore,
				fx.As(new(provisioning.RouteStore)),
			),
			fx.Annotate(
				nomadAdapter.NewAdapter,
				fx.As(new(provisioning.Provisioner)),
			),
			fx.Annotate(
				newVerificationProbe,
				fx.As(new(provisioning.VerificationProbe)),
			),
			newNotifier,

			// Use Cases
			promote.NewValidator,
			promote.NewProvisioner,
			promote.NewVerifier,
			promote.NewReporter,
			promote.NewOrchestrator,

			// Background workers
			outbox.NewProcessor,
			newStuckPromotionReconciler,
			reconciler.NewIsolationReconciler,

			// API
			api.NewRouter,
		),
		db.Module,        // Database Module
		snowflake.Module, // Snowflake ID Module
		zaplog.Module,    // Logger Module
		fx.Invoke(registerHooks),
	)

	app.Run()
}

// RunMigrations executes control-plane database migrations (up or down).
func RunMigrations(command string) error {
	if command == "" {
		command = "up"
	}

	cfg := config.Load()
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting database migration...", zap.String("command", command))

	dbURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBSSLMode,
	)

	d, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migration files: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, dbURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.Info("Migration up applied successfully")
	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Info("Migration down applied successfully")
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}

	return nil
}

func registerHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	router *api.Router,
	processor *outbox.Processor,
	watchdog *reconciler.StuckPromotionReconciler,
	isolation *reconciler.IsolationReconciler,
	logger *zap.Logger,
) {
	var processorCancel context.CancelFunc
	var watchdogCancel context.CancelFunc
	var isolationCancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting HTTP server", zap.String("port", cfg.Port))

			processorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			processorCancel = cancel
			go processor.Run(processorCtx)

			watchdogCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			watchdogCancel = cancel
			go watchdog.Run(watchdogCtx)

			isolationCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			isolationCancel = cancel
			go isolation.Run(isolationCtx)

			go func() {
				if err := router.Run(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Server failed to start", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server gracefully...")

			if processorCancel != nil {
				processorCancel()
			}
			if watchdogCancel != nil {
				watchdogCancel()
			}
			if isolationCancel != nil {
				isolationCancel()
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := router.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", zap.Error(err))
				return err
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		},
	})
}

// newPostgresProvisioner creates the credential issuer and store
// provisioner for the dedicated cluster.
func newPostgresProvisioner(cfg *config.Config) *postgresProvisioner.Adapter {
	adminConnString := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.ProvisionDBUser,
		cfg.ProvisionDBPassword,
		cfg.ProvisionDBHost,
		cfg.ProvisionDBPort,
		cfg.ProvisionDBName,
		cfg.ProvisionDBSSLMode,
	)
	return postgresProvisioner.NewAdapter(postgresProvisioner.Config{
		AdminConnString: adminConnString,
		Host:            cfg.ProvisionDBHost,
		Port:            mustParseInt(cfg.ProvisionDBPort),
		AdminUser:       cfg.ProvisionDBUser,
		AdminPassword:   cfg.ProvisionDBPassword,
		SSLMode:         cfg.ProvisionDBSSLMode,
	})
}

func newDataMover(cfg *config.Config) *moverAdapter.Mover {
	return moverAdapter.NewMover(cfg.ProvisionDBUser, cfg.ProvisionDBPassword, cfg.ProvisionDBSSLMode)
}

func newRouteStore(cfg *config.Config) (*s3routes.Store, error) {
	return s3routes.NewStore(context.Background(), cfg.RoutesBucket, cfg.RoutesPrefix)
}

func newVerificationProbe(cfg *config.Config) *httpprobe.Probe {
	return httpprobe.NewProbe(httpprobe.Config{
		RootDomain:   cfg.AppRootDomain,
		RootScheme:   cfg.AppRootScheme,
		JWTMasterKey: cfg.TenantAuthJWTSecretKey,
	})
}

// newNotifier selects the outcome sink. Webhook is the default; kafka is
// for deployments that fan outcomes out to multiple consumers.
func newNotifier(cfg *config.Config) (promotion.Notifier, error) {
	switch cfg.NotifyMode {
	case "kafka":
		return kafkaNotify.NewNotifier(kafkaNotify.Config{
			Brokers: cfg.NotifyKafkaBrokers,
			Topic:   cfg.NotifyKafkaTopic,
		})
	default:
		return webhookNotify.NewNotifier(
			webhookNotify.DefaultConfig(cfg.NotifyWebhookURL, cfg.NotifyWebhookToken),
		), nil
	}
}

func newStuckPromotionReconciler(repo tenant.Repository, cfg *config.Config, logger *zap.Logger) *reconciler.StuckPromotionReconciler {
	return reconciler.NewStuckPromotionReconciler(repo, cfg.PromotingDeadline, logger)
}

func mustParseInt(s string) int {
	val, err := strconv.Atoi(s)
	if err != nil {
		panic(fmt.Sprintf("invalid port: %s", s))
	}
	return val
}
