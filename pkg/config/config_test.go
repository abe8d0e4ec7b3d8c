package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/showroom/pkg/protocol"
)

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "showroom.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := write(t, `
[surface]
fps = 60
probeTimeout = "500ms"
renderer = "webgl"

[panel]
shop = "acme.example"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Surface.FPS)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.Surface.ProbeTimeout)
	assert.Equal(t, "acme.example", cfg.Panel.Shop)
	assert.Equal(t, Default().Surface.Addr, cfg.Surface.Addr)
	assert.Equal(t, Default().Store.Path, cfg.Store.Path)

	pref, err := cfg.Surface.Preference()
	require.NoError(t, err)
	assert.Equal(t, protocol.RendererWebGL, pref)
}

func TestLoadMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown field", "[surface]\ncolour = 1\n"},
		{"fps", "[surface]\nfps = 0\n"},
		{"renderer", "[surface]\nrenderer = \"webgpu\"\n"},
		{"duration", "[surface]\nprobeTimeout = \"soon\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(write(t, tt.body))
			assert.Error(t, err)
		})
	}
}
