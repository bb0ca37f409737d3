package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/frahmantamala/pix-deposit/internal"
	"github.com/frahmantamala/pix-deposit/internal/core/datamodel/payment"
	"github.com/frahmantamala/pix-deposit/internal/core/events"
	"github.com/frahmantamala/pix-deposit/internal/notify"
	paymentpkg "github.com/frahmantamala/pix-deposit/internal/payment"
	paymentrepo "github.com/frahmantamala/pix-deposit/internal/payment/postgres"
	"github.com/frahmantamala/pix-deposit/internal/paymentgateway"
	"github.com/frahmantamala/pix-deposit/internal/poller"
)

// paymentCore is the part of the object graph shared by the server and the workers.
type paymentCore struct {
	Gateway paymentgateway.Gateway
	Bus     *events.EventBus
	Hub     *paymentpkg.Hub
	Repo    *paymentrepo.PaymentRepository
	Kafka   *notify.KafkaPublisher
	logger  *slog.Logger
}

func pollerConfig(cfg internal.PaymentConfig) poller.Config {
	return poller.Config{
		Interval:             cfg.PollInterval,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		FetchTimeout:         cfg.Timeout,
	}
}

func newPaymentCore(cfg *internal.Config, db *gorm.DB, log *slog.Logger) (*paymentCore, error) {
	gateway, err := paymentgateway.New(cfg.Payment, log)
	if err != nil {
		return nil, err
	}

	bus := events.NewEventBus(log)
	repo := paymentrepo.NewPaymentRepository(db)
	paymentpkg.NewLedgerUpdater(repo, log).Register(bus)

	core := &paymentCore{
		Gateway: gateway,
		Bus:     bus,
		Repo:    repo,
		logger:  log,
	}

	if brokers := cfg.Events.KafkaBrokerList(); len(brokers) > 0 {
		producer, err := notify.NewKafkaProducer(brokers)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to kafka: %w", err)
		}
		core.Kafka = notify.NewKafkaPublisher(producer, cfg.Events.KafkaTopic, log)
		core.Kafka.Register(bus)
		log.Info("publishing resolved payments to kafka", "brokers", brokers, "topic", cfg.Events.KafkaTopic)
	}

	publisher := paymentpkg.NewSnapshotPublisher(bus, log)
	core.Hub = paymentpkg.NewHub(gateway, pollerConfig(cfg.Payment), publisher.Observe, log)

	return core, nil
}

// Close stops every poller and waits for queued event handlers before
// releasing the Kafka producer.
func (c *paymentCore) Close(ctx context.Context) {
	c.Hub.Close()
	if err := c.Bus.Drain(ctx); err != nil {
		c.logger.Warn("event handlers still running at shutdown", "error", err)
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			c.logger.Error("failed to close kafka producer", "error", err)
		}
	}
}

// initDB opens the ledger database. The sqlite driver is meant for local
// runs and creates its schema on the fly; postgres is migrated with goose.
func initDB(cfg internal.DatabaseConfig) (*gorm.DB, *sql.DB, string, error) {
	var (
		dialector  gorm.Dialector
		driverName string
	)
	switch cfg.Driver {
	case "sqlite":
		dialector, driverName = sqlite.Open(cfg.Source), "sqlite3"
	default:
		dialector, driverName = postgres.Open(cfg.Source), "pgx"
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to get database handle: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, nil, "", fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		if err := db.AutoMigrate(&payment.Payment{}); err != nil {
			_ = sqlDB.Close()
			return nil, nil, "", fmt.Errorf("failed to create sqlite schema: %w", err)
		}
	}

	return db, sqlDB, driverName, nil
}
