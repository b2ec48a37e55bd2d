package postgres

import (
	"context"
	"fmt"

	"pairwatch/config"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type PostgresClient struct {
	DB *gorm.DB
}

func NewClient(dsn string) (*PostgresClient, error) {
	return NewClientWithDialector(postgres.Open(dsn))
}

// NewClientWithDialector opens any GORM dialector. Tests use it with SQLite.
func NewClientWithDialector(dialector gorm.Dialector) (*PostgresClient, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &PostgresClient{DB: db}, nil
}

// InitializeAndMigrateAlertRecord connects to Postgres, optionally creates the DB, and runs AutoMigrate.
func InitializeAndMigrateAlertRecord(cfg config.PostgresConfig, env string) (*PostgresClient, error) {
	if cfg.CreateDB {
		if err := CreateDatabase(cfg, env); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	client, err := NewClient(cfg.DSN(env))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return prepare(client, cfg)
}

// prepare applies pool limits and migrations. The client is closed if either fails.
func prepare(client *PostgresClient, cfg config.PostgresConfig) (*PostgresClient, error) {
	if err := client.ConfigurePool(cfg); err != nil {
		_ = client.Close()
		return nil, err
	}

	if err := client.AutoMigrateAlertRecord(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

// ConfigurePool applies the connection pool limits from cfg. Zero values keep
// the database/sql defaults.
func (p *PostgresClient) ConfigurePool(cfg config.PostgresConfig) error {
	db, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return nil
}

func (p *PostgresClient) AutoMigrateAlertRecord() error {
	if err := p.DB.AutoMigrate(&AlertRecord{}); err != nil {
		return fmt.Errorf("auto-migrate alert table: %w", err)
	}
	return nil
}

// IsHealthy pings the database.
func (p *PostgresClient) IsHealthy(ctx context.Context) bool {
	db, err := p.DB.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

func (p *PostgresClient) Close() error {
	db, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}
