package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 30*time.Minute, cfg.JWTTTL)
	assert.Equal(t, "leadops", cfg.JWTIssuer)
	assert.True(t, cfg.RBACBootstrap)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "-1m")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadClientConfig(t *testing.T) {
	t.Setenv("LEADREC_API_URL", "https://crm.example.com")
	t.Setenv("LEADREC_TIMESLICE", "250ms")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://crm.example.com", cfg.APIURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeslice)
	assert.Equal(t, "audio/webm", cfg.MIMEType)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)

	t.Setenv("LEADREC_TIMESLICE", "0s")
	_, err = LoadClientConfig()
	assert.Error(t, err)
}

func TestClientConfigPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEADREC_STATE_DIR", dir)

	cfg, err := LoadClientConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "token"), cfg.TokenPath())
	assert.Equal(t, filepath.Join(dir, "staging.db"), cfg.StagingPath())
}
