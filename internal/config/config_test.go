package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "achievements.db", cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, LockSQL, cfg.LockBackend)
	assert.Equal(t, 20*time.Second, cfg.LockTTL)
	assert.Equal(t, 5*time.Millisecond, cfg.LockDelayStep)
	assert.Equal(t, 20, cfg.LockDelayCap)
	assert.True(t, cfg.BatchQueries)
	assert.Equal(t, "achievements-processor-lock", cfg.FirestoreCollection)
	assert.Nil(t, cfg.RedisCredentials)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"ACHIEVEMENTS_DB_DRIVER":         "pgx",
		"ACHIEVEMENTS_DATABASE_URL":      "postgres://localhost/achievements",
		"ACHIEVEMENTS_LOCK_BACKEND":      "redis",
		"ACHIEVEMENTS_LOCK_TTL":          "15s",
		"ACHIEVEMENTS_BATCH_QUERIES":     "false",
		"ACHIEVEMENTS_REDIS_CREDENTIALS": `{"host":"cache","password":"pw","port":6380}`,
	})
	require.NoError(t, err)

	assert.Equal(t, "pgx", cfg.DBDriver)
	assert.Equal(t, 15*time.Second, cfg.LockTTL)
	assert.False(t, cfg.BatchQueries)
	require.NotNil(t, cfg.RedisCredentials)
	assert.Equal(t, "cache:6380", cfg.RedisCredentials.Addr())
	assert.Equal(t, "pw", cfg.RedisCredentials.Password)
}

func TestLoadFrom_InvalidCredentials(t *testing.T) {
	tests := map[string]string{
		"not json":       `host=cache`,
		"missing host":   `{"password":"pw","port":6379}`,
		"blank password": `{"host":"cache","password":"  ","port":6379}`,
		"zero port":      `{"host":"cache","password":"pw","port":0}`,
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(map[string]string{
				"ACHIEVEMENTS_LOCK_BACKEND":      "redis",
				"ACHIEVEMENTS_REDIS_CREDENTIALS": value,
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCredentials), "got %v", err)
		})
	}
}

func TestLoadFrom_RedisBackendNeedsCredentials(t *testing.T) {
	_, err := LoadFrom(map[string]string{"ACHIEVEMENTS_LOCK_BACKEND": "redis"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoadFrom_ValidationErrors(t *testing.T) {
	tests := map[string]map[string]string{
		"ttl too short":   {"ACHIEVEMENTS_LOCK_TTL": "5s"},
		"ttl too long":    {"ACHIEVEMENTS_LOCK_TTL": "2m"},
		"unknown backend": {"ACHIEVEMENTS_LOCK_BACKEND": "zookeeper"},
		"firestore":       {"ACHIEVEMENTS_LOCK_BACKEND": "firestore"},
		"zero cap":        {"ACHIEVEMENTS_LOCK_DELAY_CAP": "0"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(vars)
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), "invalid config:"), "got %v", err)
		})
	}
}

func TestLoadFrom_ParseError(t *testing.T) {
	_, err := LoadFrom(map[string]string{"ACHIEVEMENTS_LOCK_TTL": "soon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}
