package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"APP_ENV", "APP_PORT", "LOG_LEVEL", "LOG_DIR", "STORAGE_TYPE", "SESSION_TTL",
		"CORS_ALLOWED_ORIGINS", "DB_USER", "DB_PASS", "DB_HOST", "DB_PORT", "DB_NAME", "FULL_DSN",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, StorageInMemory, cfg.StorageType)
	require.Equal(t, 90*24*time.Hour, cfg.SessionTTL)
	require.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	require.Equal(t, "expense_tracker", cfg.DB.Name)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "Production")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("STORAGE_TYPE", "MySQL")
	t.Setenv("FULL_DSN", "u:p@tcp(localhost:3306)/expense_tracker?parseTime=true")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "production", cfg.AppEnv)
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, time.Hour, cfg.SessionTTL)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	require.Equal(t, StorageMySQL, cfg.StorageType)
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad ttl", env: map[string]string{"SESSION_TTL": "soon"}},
		{name: "negative ttl", env: map[string]string{"SESSION_TTL": "-1h"}},
		{name: "unknown storage", env: map[string]string{"STORAGE_TYPE": "redis"}},
		{name: "mysql without credentials", env: map[string]string{"STORAGE_TYPE": "mysql", "DB_USER": "root"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
		})
	}
}
