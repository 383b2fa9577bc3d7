package cliparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://test")
	t.Setenv("ADMIN_KEY_SALT", "test-salt")
	t.Setenv("VOTER_SALT", "voter-salt")
}

func TestParseFlags_EnvVars(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := ParseFlags([]string{})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestParseFlags_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := ParseFlags([]string{})
	require.NoError(t, err)

	assert.Equal(t, 3318, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, "@every 30s", cfg.SweepSchedule)
	assert.Equal(t, 4, cfg.SweepWorkers)
	assert.Empty(t, cfg.RedisURL)
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{"-p", "8080", "-d", "file:test.db", "-admin-salt", "s1", "-voter-salt", "s2", "-sweep", ""})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port, "CLI should override env")
	assert.Equal(t, "file:test.db", cfg.DatabaseURL)
	assert.Equal(t, "s1", cfg.AdminKeySalt)
	assert.Equal(t, "s2", cfg.VoterSalt)
	assert.Empty(t, cfg.SweepSchedule)
}

func TestParseFlags_MissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"database url", "DATABASE_URL"},
		{"admin salt", "ADMIN_KEY_SALT"},
		{"voter salt", "VOTER_SALT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			_, err := ParseFlags([]string{})
			assert.Error(t, err)
		})
	}
}

func TestParseFlags_Invalid(t *testing.T) {
	t.Run("bad port", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("PORT", "not-a-number")
		_, err := ParseFlags([]string{})
		assert.Error(t, err)
	})

	t.Run("unknown database type", func(t *testing.T) {
		setRequiredEnv(t)
		_, err := ParseFlags([]string{"-t", "mysql"})
		assert.Error(t, err)
	})

	t.Run("zero workers", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SWEEP_WORKERS", "0")
		_, err := ParseFlags([]string{})
		assert.Error(t, err)
	})
}
