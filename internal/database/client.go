// Package database provides the SQLite-backed store shared by every
// pipeline stage.
package database

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/agrade-energy/solarportal/internal/log"
	"go.uber.org/zap"
)

// Client holds the connection to the portal database
type Client struct {
	path   string
	DB     *gorm.DB // Exported so it can be accessed from other packages
	logger *zap.SugaredLogger
}

// NewClient creates a new database client for the SQLite file at path
func NewClient(path string, logger *zap.SugaredLogger) *Client {
	return &Client{
		path:   path,
		logger: logger,
	}
}

// Connect opens the database and migrates the schema. The DSN enables
// write-ahead logging so concurrent uploads can read while one writer
// proceeds, and turns foreign key enforcement on.
func (c *Client) Connect() error {
	var err error

	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,        // ErrRecordNotFound is part of the upsert flow
			Colorful:                  false,
		},
	)

	dsn := c.path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	log.Debugf("opening portal database at %s", c.path)
	c.DB, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return fmt.Errorf("unable to open portal database %s: %w", c.path, err)
	}

	if err := c.DB.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("error migrating portal database schema: %w", err)
	}
	log.Debugf("portal database ready at %s", c.path)

	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
