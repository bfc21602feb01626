package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Server.URL)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 300*time.Second, cfg.Poll.Ceiling)
	assert.Equal(t, 2, cfg.Diagram.Level)
	assert.Equal(t, 5, cfg.CallFlow.MaxDepth)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  url: http://analysis.internal:9000
poll:
  interval: 1s
  ceiling: 30s
diagram:
  level: 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://analysis.internal:9000", cfg.Server.URL)
	assert.Equal(t, time.Second, cfg.Poll.Interval)
	assert.Equal(t, 30*time.Second, cfg.Poll.Ceiling)
	assert.Equal(t, 3, cfg.Diagram.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ARCHMAP_SERVER_URL", "http://override:7000")
	t.Setenv("ARCHMAP_POLL_INTERVAL", "500ms")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://override:7000", cfg.Server.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.Interval)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Run("unparseable duration", func(t *testing.T) {
		t.Setenv("ARCHMAP_POLL_INTERVAL", "soon")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("non-positive interval", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "archmap.yaml")
		require.NoError(t, os.WriteFile(path, []byte("poll:\n  interval: 0s\n"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}
