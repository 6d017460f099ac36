package connectors

import (
	"context"
	"fmt"
	"net/url"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vocalisai/vocalis/pkg/commons"
	"github.com/vocalisai/vocalis/pkg/configs"
)

// PostgresConnector owns the gorm handle for the service database. Callers
// always go through DB(ctx) so statement-level context cancellation applies.
type PostgresConnector interface {
	DB(ctx context.Context) *gorm.DB
	Ping(ctx context.Context) error
	Close() error
}

type postgresConnector struct {
	db     *gorm.DB
	logger commons.Logger
}

// NewPostgresConnector opens the pool described by cfg. When cfg.Key is set it
// overrides the password component of the DSN.
func NewPostgresConnector(cfg configs.PostgresConfig, logger commons.Logger) (PostgresConnector, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connector: %w", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres connector: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres connector: pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.Infow("postgres pool ready",
		"max_open", cfg.MaxOpenConns, "max_idle", cfg.MaxIdleConns)
	return &postgresConnector{db: db, logger: logger}, nil
}

// NewPostgresConnectorFromDB wraps an already-open gorm handle. Used by tests
// that run against sqlite or sqlmock.
func NewPostgresConnectorFromDB(db *gorm.DB, logger commons.Logger) PostgresConnector {
	return &postgresConnector{db: db, logger: logger}
}

func (c *postgresConnector) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

func (c *postgresConnector) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *postgresConnector) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func buildDSN(cfg configs.PostgresConfig) (string, error) {
	if cfg.Url == "" {
		return "", fmt.Errorf("empty database url")
	}
	if cfg.Key == "" {
		return cfg.Url, nil
	}
	parsed, err := url.Parse(cfg.Url)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	user := ""
	if parsed.User != nil {
		user = parsed.User.Username()
	}
	parsed.User = url.UserPassword(user, cfg.Key)
	return parsed.String(), nil
}
