package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")

	s, err := LoadSettingsFrom(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), s)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := LoadSettingsFrom(path)
	require.NoError(t, err)
	assert.Equal(t, s.Assets, again.Assets)
	assert.Equal(t, s.ClearColor, again.ClearColor)
}

func TestOverrides(t *testing.T) {
	path := write(t, `
canvas = "hero"
assets = ["latte"]
angular_rate = 1.5
max_frame_delta = 0.1
autostart = false

[rates]
latte = 0.5
`)
	s, err := LoadSettingsFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "hero", s.Canvas)
	assert.Equal(t, []string{"latte"}, s.Assets)
	assert.Equal(t, 1.5, s.AngularRate)
	assert.Equal(t, 0.5, s.Rates["latte"])
	assert.Equal(t, 100*time.Millisecond, s.FrameDelta())
	assert.False(t, s.AutoStart)
	assert.Equal(t, 800, s.Width, "unset keys keep their defaults")
}

func TestInvalidValuesFallBack(t *testing.T) {
	path := write(t, `
width = -1
fov = 270.0
camera_distance = 0.0
clear_color = [0.0, 2.0, 0.0, 1.0]
load_concurrency = 0
`)
	s, err := LoadSettingsFrom(path)
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.Width, s.Width)
	assert.Equal(t, d.FOV, s.FOV)
	assert.Equal(t, d.CameraDistance, s.CameraDistance)
	assert.Equal(t, d.ClearColor, s.ClearColor)
	assert.Equal(t, d.LoadConcurrency, s.LoadConcurrency)
}

func TestMalformedFileUsesDefaults(t *testing.T) {
	s, err := LoadSettingsFrom(write(t, "this is = = not toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestKnownKeys(t *testing.T) {
	keys := getKnownKeys(&Settings{})
	assert.True(t, keys["asset_dir"])
	assert.True(t, keys["max_frame_delta"])
	assert.False(t, keys["AssetDir"])
}
