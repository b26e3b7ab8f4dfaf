package config_test

import (
	"testing"

	"github.com/alkime/wardrobe/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("ARTIFACT_DIR", "/srv/wardrobe")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,172.16.0.0/12")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, config.EnvProduction, cfg.Env)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/srv/wardrobe", cfg.ArtifactDir)
	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12"}, cfg.TrustedProxies)
	assert.Equal(t, "relaxed", cfg.CSPMode)
}

func TestLoadConfig_BadValue(t *testing.T) {
	t.Setenv("HSTS_MAX_AGE", "forever")

	_, err := config.LoadConfig()
	require.Error(t, err)
}

func TestBuildCSP(t *testing.T) {
	t.Parallel()

	assert.Contains(t, config.BuildCSP("strict"), "object-src 'none'")
	assert.NotContains(t, config.BuildCSP("relaxed"), "object-src")
}
