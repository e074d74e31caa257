package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port          int           `env:"TEST_CFG_PORT" envDefault:"8080"`
	LogLevel      string        `env:"TEST_CFG_LOG_LEVEL" envDefault:"info"`
	MaxAssets     int           `env:"TEST_CFG_MAX_ASSETS" envDefault:"8" validate:"gte=1,lte=64"`
	UploadTimeout time.Duration `env:"TEST_CFG_UPLOAD_TIMEOUT" envDefault:"30s"`
	MimeTypes     []string      `env:"TEST_CFG_MIME_TYPES" envDefault:"image/jpeg,image/png" envSeparator:","`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8, cfg.MaxAssets)
	assert.Equal(t, 30*time.Second, cfg.UploadTimeout)
	assert.Equal(t, []string{"image/jpeg", "image/png"}, cfg.MimeTypes)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_MAX_ASSETS", "12")
	t.Setenv("TEST_CFG_UPLOAD_TIMEOUT", "5s")
	t.Setenv("TEST_CFG_MIME_TYPES", "image/webp")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 12, cfg.MaxAssets)
	assert.Equal(t, 5*time.Second, cfg.UploadTimeout)
	assert.Equal(t, []string{"image/webp"}, cfg.MimeTypes)
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

type requiredConfig struct {
	Bucket string `env:"TEST_CFG_BUCKET,required"`
}

func TestLoad_RequiredField(t *testing.T) {
	var missing requiredConfig
	require.Error(t, Load(&missing))

	t.Setenv("TEST_CFG_BUCKET", "product-media")
	var present requiredConfig
	require.NoError(t, Load(&present))
	assert.Equal(t, "product-media", present.Bucket)
}

func TestLoadAndValidate(t *testing.T) {
	var ok testConfig
	require.NoError(t, LoadAndValidate(&ok))

	t.Setenv("TEST_CFG_MAX_ASSETS", "0")
	var bad testConfig
	err := LoadAndValidate(&bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}
