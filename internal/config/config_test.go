package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LISTEN_ADDR", "BASE_URL", "DATABASE_URL", "STORE_BACKEND",
		"COOKIE_HASH_KEY", "COOKIE_BLOCK_KEY", "DAILY_APPOINTMENT_LIMIT",
		"BOOKING_WINDOW_DAYS", "BIRTH_DATE_FORMATS", "TIMEZONE", "SESSION_TTL_HOURS",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "RATE_LIMIT_PER_MIN", "RATE_LIMIT_BURST",
		"TRUSTED_PROXIES",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 20, cfg.DailyLimit)
	assert.Equal(t, 30, cfg.WindowDays)
	assert.Equal(t, []string{"02/01/2006", "2/1/2006", "2006-01-02", "2006-1-2"}, cfg.BirthDateFormats)
	assert.Equal(t, time.UTC.String(), cfg.Location.String())
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, BackendAuto, cfg.StoreBackend)
	assert.Equal(t, "postgres", cfg.DatabaseScheme())
	assert.Error(t, cfg.RequireCookieKeys())
	assert.Empty(t, cfg.TrustedProxies)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DAILY_APPOINTMENT_LIMIT", "5")
	t.Setenv("BOOKING_WINDOW_DAYS", "0")
	t.Setenv("BIRTH_DATE_FORMATS", " 2006-01-02 , 02.01.2006,")
	t.Setenv("TIMEZONE", "Africa/Mogadishu")
	t.Setenv("BASE_URL", "https://book.example.so/")
	t.Setenv("DATABASE_URL", "sqlite:///tmp/nira.db")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.DailyLimit)
	assert.Equal(t, 0, cfg.WindowDays)
	assert.Equal(t, []string{"2006-01-02", "02.01.2006"}, cfg.BirthDateFormats)
	assert.Equal(t, "Africa/Mogadishu", cfg.Location.String())
	assert.Equal(t, "https://book.example.so", cfg.BaseURL)
	assert.Equal(t, "sqlite", cfg.DatabaseScheme())
}

func TestFromEnvRejectsInvalidPolicy(t *testing.T) {
	cases := map[string]string{
		"DAILY_APPOINTMENT_LIMIT": "0",
		"BOOKING_WINDOW_DAYS":     "-1",
		"TIMEZONE":                "Mars/Olympus",
		"STORE_BACKEND":           "mongo",
		"SESSION_TTL_HOURS":       "abc",
		"TRUSTED_PROXIES":         "10.0.0.0/33",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestTrustedProxies(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRUSTED_PROXIES", "10.1.2.3/8, 192.0.2.10,::1")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Len(t, cfg.TrustedProxies, 3)
	assert.Equal(t, "10.0.0.0/8", cfg.TrustedProxies[0].String())
	assert.Equal(t, "192.0.2.10/32", cfg.TrustedProxies[1].String())
	assert.Equal(t, "::1/128", cfg.TrustedProxies[2].String())
}

func TestCookieKeysFromFile(t *testing.T) {
	clearEnv(t)
	hash := base64.StdEncoding.EncodeToString(make([]byte, 32))
	block := base64.StdEncoding.EncodeToString(make([]byte, 16))

	path := filepath.Join(t.TempDir(), "hash.key")
	require.NoError(t, os.WriteFile(path, []byte(hash+"\n"), 0o600))

	t.Setenv("COOKIE_HASH_KEY", path)
	t.Setenv("COOKIE_BLOCK_KEY", block)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Len(t, cfg.CookieHashKey, 32)
	assert.Len(t, cfg.CookieBlockKey, 16)
	assert.NoError(t, cfg.RequireCookieKeys())
}
