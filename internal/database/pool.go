package database

import (
	"errors"
	"fmt"
	"time"

	"smart-task-manager/backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrNoConnection = errors.New("database connection not initialized")

type PoolConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	LogLevel        logger.LogLevel
}

type DatabasePool struct {
	DB     *gorm.DB
	config *PoolConfig
}

func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Driver:          DriverPostgres,
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 30,
		LogLevel:        logger.Info,
	}
}

func (c *PoolConfig) validate() error {
	if c.DSN == "" {
		return errors.New("database DSN is required")
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("connection limits must not be negative (open=%d, idle=%d)", c.MaxOpenConns, c.MaxIdleConns)
	}
	if c.ConnMaxLifetime < 0 || c.ConnMaxIdleTime < 0 {
		return errors.New("connection lifetimes must not be negative")
	}
	switch c.Driver {
	case "", DriverPostgres, DriverSQLite:
		return nil
	default:
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

func NewDatabasePool(config *PoolConfig) (*DatabasePool, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch config.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(config.DSN)
	default:
		dialector = postgres.Open(config.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(config.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if config.Driver == DriverSQLite {
		// sqlite serializes writers; one long-lived connection also keeps
		// an in-memory database alive.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	}

	return &DatabasePool{DB: db, config: config}, nil
}

// Migrate creates or updates the schema for every persisted model.
func (p *DatabasePool) Migrate() error {
	if p.DB == nil {
		return ErrNoConnection
	}
	return Migrate(p.DB)
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Token{},
		&models.Task{},
		&models.Subtask{},
		&models.Reminder{},
	)
}

func (p *DatabasePool) Health() error {
	if p.DB == nil {
		return ErrNoConnection
	}
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (p *DatabasePool) Stats() map[string]interface{} {
	if p.DB == nil {
		return map[string]interface{}{"error": ErrNoConnection.Error()}
	}
	sqlDB, err := p.DB.DB()
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}

	stats := sqlDB.Stats()
	return map[string]interface{}{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}
}

func (p *DatabasePool) Close() error {
	if p.DB == nil {
		return nil
	}
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
