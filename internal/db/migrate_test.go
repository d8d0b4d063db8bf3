package db

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kithbot/kith/internal/config"
)

func sqliteConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "nested", "kith.db")
	return cfg
}

func TestRunMigrateUnknownCommand(t *testing.T) {
	err := RunMigrate(nil, config.Defaults(), "invalid", nil)
	require.Error(t, err)
}

func TestRunMigrateForceRequiresVersion(t *testing.T) {
	err := RunMigrate(nil, config.Defaults(), "force", nil)
	require.Error(t, err)
}

func TestRunMigrateUnknownDriver(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Driver = "mongo"
	require.Error(t, RunMigrate(nil, cfg, "up", nil))
}

func TestMigrateUpCreatesSQLiteSchema(t *testing.T) {
	cfg := sqliteConfig(t)
	require.NoError(t, MigrateUp(nil, cfg))
	// A second run is a no-op.
	require.NoError(t, MigrateUp(nil, cfg))

	conn, err := OpenSQLite(context.Background(), cfg.Storage.SQLitePath)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	for _, table := range []string{"users", "contacts"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestMigrateDownDropsSchema(t *testing.T) {
	cfg := sqliteConfig(t)
	require.NoError(t, MigrateUp(nil, cfg))
	require.NoError(t, RunMigrate(nil, cfg, "down", nil))

	conn, err := OpenSQLite(context.Background(), cfg.Storage.SQLitePath)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var count int
	require.NoError(t, conn.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'contacts'`).Scan(&count))
	assert.Zero(t, count)
}

func TestDateRoundTrip(t *testing.T) {
	date, err := DateFromString("2020-03-15")
	require.NoError(t, err)
	assert.True(t, date.Valid)
	assert.Equal(t, "2020-03-15", DateToString(date))

	empty, err := DateFromString("")
	require.NoError(t, err)
	assert.False(t, empty.Valid)
	assert.Equal(t, "", DateToString(empty))

	_, err = DateFromString("15.03.2020")
	require.Error(t, err)
}

func TestMigrateLoggerTrimsNewline(t *testing.T) {
	var buf bytes.Buffer
	l := &migrateLogger{logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	l.Printf("Start buffering 1/u init_schema\n")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Start buffering 1/u init_schema", entry["msg"])
	assert.False(t, l.Verbose())
}
