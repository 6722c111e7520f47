package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.RegionHost)
	require.Equal(t, 13000, cfg.RegionPort)
	require.True(t, cfg.ServerSideBaking)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, ":9100", cfg.MetricsAddr)
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("REGION_HOST", "10.0.0.5")
	t.Setenv("REGION_PORT", "9000")
	t.Setenv("SERVER_SIDE_BAKING", "false")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "10.0.0.5", cfg.RegionHost)
	require.Equal(t, 9000, cfg.RegionPort)
	require.False(t, cfg.ServerSideBaking)
}
