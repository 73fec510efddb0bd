// database/connection.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gewnthar/surveyetl/config"
	_ "github.com/go-sql-driver/mysql" // MariaDB / MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Store is a database output target. It implements the table writer and
// reader used by the survey loader, plus the load log.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the configured database, verifies the connection and
// makes sure the load log table exists.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	if d.name == "sqlite" {
		dir := filepath.Dir(cfg.DBName)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if d.name == "sqlite" {
		db.SetMaxOpenConns(1) // one writer
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, dialect: d}
	if err := s.ensureLoadLog(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("Database: Successfully connected to the %s database!\n", d.name)
	return s, nil
}

// DSN builds the driver specific data source name for cfg.
func DSN(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case "mysql":
		// username:password@protocol(address)/dbname?param=value
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
		), nil
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     cfg.Host + ":" + cfg.Port,
			Path:     "/" + cfg.DBName,
			RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
		}
		return u.String(), nil
	case "sqlite":
		if cfg.DBName == "" {
			return "", fmt.Errorf("sqlite database requires dbname to be a file path")
		}
		return cfg.DBName + "?_pragma=busy_timeout(5000)", nil
	}
	return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// DB exposes the connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	log.Println("Database: connection closed.")
	return err
}
