package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// The movies table.  The entity field "year" lives in the year_released
// column; see repository.movieColumns for the full correspondence.
const mysqlSchema = `CREATE TABLE IF NOT EXISTS movies (
	id            INT          NOT NULL AUTO_INCREMENT,
	year_released INT          NULL,
	title         VARCHAR(255) NULL,
	director      VARCHAR(255) NULL,
	genre         VARCHAR(100) NULL,
	likes         INT          NULL DEFAULT 0,
	PRIMARY KEY (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// AUTOINCREMENT keeps sqlite from reusing the ids of deleted rows.
const sqliteSchema = `CREATE TABLE IF NOT EXISTS movies (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	year_released INTEGER,
	title         TEXT,
	director      TEXT,
	genre         TEXT,
	likes         INTEGER DEFAULT 0
)`

// Schema returns the DDL for driver.
func Schema(driver string) (string, error) {
	switch driver {
	case DriverMySQL:
		return mysqlSchema, nil
	case DriverSQLite:
		return sqliteSchema, nil
	}
	return "", errors.Errorf("unsupported db driver %q", driver)
}

// EnsureSchema creates the movies table when it does not exist yet.  It
// is safe to call on every start.
func EnsureSchema(ctx context.Context, db *sql.DB, driver string) error {
	ddl, err := Schema(driver)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(err, "failed to initialize schema")
	}
	return nil
}
