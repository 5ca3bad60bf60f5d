package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/lexicon/internal/messages"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	// DriverSQLite stores data in a local SQLite file.
	DriverSQLite = "sqlite"
	// DriverMySQL connects to a MySQL server through a DSN.
	DriverMySQL = "mysql"
)

// Options selects and parameterizes the database driver.
type Options struct {
	Driver string
	Path   string
	DSN    string
}

// Open connects using the configured driver and performs schema migrations.
func Open(options Options, logger *zap.Logger) (*gorm.DB, error) {
	switch strings.ToLower(strings.TrimSpace(options.Driver)) {
	case DriverSQLite, "":
		return OpenSQLite(options.Path, logger)
	case DriverMySQL:
		return OpenMySQL(options.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", options.Driver)
	}
}

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", DriverSQLite), zap.String("path", path))
	}
	return db, nil
}

// OpenMySQL establishes a MySQL connection and performs schema migrations.
func OpenMySQL(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", DriverMySQL))
	}
	return db, nil
}

func migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(&messages.Project{}, &messages.Message{}, &migrationRecord{}); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}
