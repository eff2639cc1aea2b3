package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailybrief/internal/config"
)

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"brief", "cached", "calendar", "github", "parse", "status", "clear", "serve", "watch", "noop"} {
		assert.Contains(t, commands, name)
	}
}

func TestNewAppAndOneShotCommands(t *testing.T) {
	cfg, err := config.Load([]string{"--cmd", "noop", "--cache.path", filepath.Join(t.TempDir(), "cache.json")})
	require.NoError(t, err)

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	require.NoError(t, err)

	require.NoError(t, noopCmd(ctx, a))
	require.NoError(t, cachedCmd(ctx, a))
	require.NoError(t, statusCmd(ctx, a))
	require.NoError(t, clearCmd(ctx, a))
	assert.Error(t, parseCmd(ctx, a))
}
