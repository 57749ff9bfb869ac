package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var touchedKeys = []string{
	"ENV", "PORT", "ALLOWED_ORIGINS", "REGISTRATION_RESUBMIT_POLICY", "REGISTRATION_ENFORCE_DEADLINES",
	"TIMETABLE_CACHE_BACKEND", "TIMETABLE_CACHE_TTL", "NOTIFY_RETRY_DELAY", "CARD_VERIFY_TTL", "AUTO_MIGRATE",
}

// isolateEnv blanks every key the tests read so godotenv side effects stay inside the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range touchedKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFileDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, ResubmitReject, cfg.Registration.ResubmitPolicy)
	assert.False(t, cfg.Registration.EnforceDeadline)
	assert.Equal(t, CacheBackendMemory, cfg.Timetable.CacheBackend)
	assert.Equal(t, 5*time.Minute, cfg.Timetable.CacheTTL)
	assert.Equal(t, 180*24*time.Hour, cfg.Cards.VerifyTTL)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.Migrations.AutoMigrate)
}

func TestLoadFileNormalizesValues(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "registrar.env")
	contents := "ENV=production\n" +
		"PORT=9090\n" +
		"ALLOWED_ORIGINS=https://a.example, ,https://b.example\n" +
		"REGISTRATION_RESUBMIT_POLICY= RESET \n" +
		"REGISTRATION_ENFORCE_DEADLINES=true\n" +
		"TIMETABLE_CACHE_BACKEND=memcached\n" +
		"NOTIFY_RETRY_DELAY=soon\n" +
		"AUTO_MIGRATE=true\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Env)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, ResubmitReset, cfg.Registration.ResubmitPolicy)
	assert.True(t, cfg.Registration.EnforceDeadline)
	assert.Equal(t, CacheBackendMemory, cfg.Timetable.CacheBackend, "unknown backends fall back to memory")
	assert.Equal(t, time.Second, cfg.Notifications.RetryDelay, "unparsable durations use the default")
	assert.True(t, cfg.Migrations.AutoMigrate)
}
