package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"img-chaos/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg.Cipher)
	assert.Equal(t, ":4040", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 1, cfg.Workers)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img-chaos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cipher:
  gridSize: 64
  scramble: hilbert-fractal
  fractalOrder: 3
workers: 4
server:
  addr: ":9000"
`), 0o644))
	t.Setenv("IMGCHAOS_CIPHER_KEYING", "image")
	t.Setenv("IMGCHAOS_SERVER_ADDR", ":9100")

	cfg, err := loadConfig(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Cipher.GridSize)
	assert.Equal(t, config.ScrambleHilbertFractal, cfg.Cipher.Scramble)
	assert.Equal(t, 3, cfg.Cipher.FractalOrder)
	assert.Equal(t, config.KeyingImage, cfg.Cipher.Keying)
	assert.Equal(t, ":9100", cfg.Server.Addr, "env beats the file")
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	v := viper.New()
	v.Set("cipher.gridSize", 100)
	_, err := loadConfig(v, "")
	assert.Error(t, err)

	_, err = loadConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		l, err := newLogger(logConfig{Level: "debug", Format: format})
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
	_, err := newLogger(logConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
	_, err = newLogger(logConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
