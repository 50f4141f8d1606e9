package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/iliyamo/movies-api/internal/config"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Open connects to the configured store and verifies the connection.
func Open(cfg config.DBConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case DriverMySQL:
		db, err = sql.Open(DriverMySQL, mysqlDSN(cfg))
		if err != nil {
			return nil, errors.Wrap(err, "unable to open mysql")
		}
		// Pool settings
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
		db.SetConnMaxLifetime(30 * time.Minute)
	case DriverSQLite:
		db, err = sql.Open(DriverSQLite, sqliteDSN(cfg.Path))
		if err != nil {
			return nil, errors.Wrap(err, "unable to open sqlite")
		}
		// sqlite allows a single writer; one connection serialises statements
		// instead of surfacing SQLITE_BUSY to callers.
		db.SetMaxOpenConns(1)
	default:
		return nil, errors.Errorf("unsupported db driver %q", cfg.Driver)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "unable to reach database")
	}
	return db, nil
}

// mysqlDSN builds the go-sql-driver DSN.  clientFoundRows=true makes
// RowsAffected report matched rows, so an UPDATE that rewrites identical
// values still counts as a hit.
func mysqlDSN(cfg config.DBConfig) string {
	auth := cfg.User
	if cfg.Pass != "" {
		auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Pass)
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		auth, cfg.Host, cfg.Port, cfg.Name)
}

func sqliteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
