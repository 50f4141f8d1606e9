package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movies-api/internal/config"
)

func TestOpenSQLiteAndEnsureSchemaTwice(t *testing.T) {
	cfg := config.DBConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "movies.db")}
	db, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db, DriverSQLite))
	require.NoError(t, EnsureSchema(ctx, db, DriverSQLite))

	res, err := db.ExecContext(ctx, `INSERT INTO movies (title) VALUES ('Alien')`)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)

	var likes int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT likes FROM movies WHERE id = ?`, id).Scan(&likes))
	assert.Equal(t, 0, likes)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DBConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestMySQLDSN(t *testing.T) {
	dsn := mysqlDSN(config.DBConfig{User: "app", Pass: "secret", Host: "db", Port: "3306", Name: "movies"})
	assert.Equal(t, "app:secret@tcp(db:3306)/movies?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true", dsn)

	dsn = mysqlDSN(config.DBConfig{User: "app", Host: "db", Port: "3306", Name: "movies"})
	assert.Contains(t, dsn, "app@tcp(db:3306)/movies?")
}

func TestSchemaUnknownDriver(t *testing.T) {
	_, err := Schema("postgres")
	require.Error(t, err)
}
