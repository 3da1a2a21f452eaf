package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageFile, cfg.Storage.Driver)
	assert.Equal(t, "azureDevOpsTasks", cfg.Storage.ActiveKey)
	assert.Equal(t, "azureDevOpsArchivedTasks", cfg.Storage.ArchiveKey)
	assert.Equal(t, 3, cfg.Archive.MonthsBack)
	assert.Equal(t, 24*time.Hour, cfg.Archive.Interval)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "stderr", cfg.Logger.Output)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("ARCHIVE_MONTHS_BACK", "6")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("ARCHIVE_INTERVAL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, 6, cfg.Archive.MonthsBack)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Archive.Interval)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "indexeddb")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsSameKeys(t *testing.T) {
	t.Setenv("STORAGE_ACTIVE_KEY", "tasks")
	t.Setenv("STORAGE_ARCHIVE_KEY", "tasks")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5432, Name: "kanban", User: "u", Password: "p", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=kanban sslmode=disable", cfg.GetDSN())
}

func TestAppConfig_Environment(t *testing.T) {
	assert.True(t, (&AppConfig{Environment: "development"}).IsDevelopment())
	assert.False(t, (&AppConfig{Environment: "development"}).IsProduction())
	assert.True(t, (&AppConfig{Environment: "production"}).IsProduction())
}

func TestLoad_Timezone(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	loc, err := cfg.App.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	t.Setenv("APP_TIMEZONE", "UTC")
	cfg, err = Load()
	require.NoError(t, err)
	loc, err = cfg.App.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.Error(t, err)
}
