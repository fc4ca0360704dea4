package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFlagPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackmock.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 3000\nlogLevel: debug\n"), 0o644))

	// Flags override the file; unset flags leave file values alone.
	cfg, err := loadConfig(&serveFlags{configFile: path, port: 4000, empty: true})
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Seed)

	// Without a file, flags apply over the defaults.
	cfg, err = loadConfig(&serveFlags{host: "0.0.0.0", jwtSecret: "sekrit"})
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sekrit", cfg.JWTSecret)
	assert.True(t, cfg.Seed)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	_, err := loadConfig(&serveFlags{port: -2})
	assert.Error(t, err)

	_, err = loadConfig(&serveFlags{configFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}
