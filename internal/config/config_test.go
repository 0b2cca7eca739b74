package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	want := DefaultConfig()
	assert.Equal(t, want.Animation, cfg.Animation)
	assert.Equal(t, want.Feed, cfg.Feed)
	assert.Equal(t, want.Loop, cfg.Loop)
	assert.Equal(t, want.Model, cfg.Model)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Animation.BlinkDuration = 0.15
	cfg.Animation.Effects.ParticleCount = 12
	cfg.Feed.URL = "http://brain.local:9000"
	cfg.Feed.MaxBackoff = 30 * time.Second
	cfg.Model.Path = "/models/hannah.vrm"
	cfg.Loop.FPS = 30
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.15, loaded.Animation.BlinkDuration, 1e-9)
	assert.Equal(t, 12, loaded.Animation.Effects.ParticleCount)
	assert.Equal(t, "http://brain.local:9000", loaded.Feed.URL)
	assert.Equal(t, 30*time.Second, loaded.Feed.MaxBackoff)
	assert.Equal(t, "/models/hannah.vrm", loaded.Model.Path)
	assert.Equal(t, 30, loaded.Loop.FPS)
	assert.Equal(t, cfg.Model.HeadCenter, loaded.Model.HeadCenter)
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
animation:
  blink_min_delay: 5
  blink_max_delay: 3
  mouth_rate: 25
loop:
  fps: 0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	d := DefaultConfig()
	// Inverted blink range falls back to the default range.
	assert.Equal(t, d.Animation.BlinkMinDelay, cfg.Animation.BlinkMinDelay)
	assert.Equal(t, d.Animation.BlinkMaxDelay, cfg.Animation.BlinkMaxDelay)
	assert.Equal(t, 25.0, cfg.Animation.MouthRate)
	assert.Equal(t, d.Animation.ExpressionRate, cfg.Animation.ExpressionRate)
	assert.Equal(t, d.Loop.FPS, cfg.Loop.FPS)
	assert.Equal(t, d.Stream.Addr, cfg.Stream.Addr)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("AVATARCORE_FEED_URL", "http://env:1234")
	t.Setenv("AVATARCORE_LOOP_FPS", "90")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://env:1234", cfg.Feed.URL)
	assert.Equal(t, 90, cfg.Loop.FPS)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("animation: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(DefaultConfig(), path))

	var particles atomic.Int32
	require.NoError(t, Watch(path, func(c *Config) {
		particles.Store(int32(c.Animation.Effects.ParticleCount))
	}, nil))

	cfg := DefaultConfig()
	cfg.Animation.Effects.ParticleCount = 7
	require.NoError(t, Save(cfg, path))

	assert.Eventually(t, func() bool { return particles.Load() == 7 }, 3*time.Second, 20*time.Millisecond)
}

func TestWatchRequiresPath(t *testing.T) {
	assert.Error(t, Watch("", func(*Config) {}, nil))
}
