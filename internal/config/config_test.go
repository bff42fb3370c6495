package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
log:
  level: debug
scene:
  name: plaza
  camera: player
  camera_position: [0, 1.8, 0]
  tick_interval: 20ms
reporting:
  window: 2s
measurers:
  - kind: lod
    position: [3, 4, 0]
    distances: [10, 40]
  - kind: audio
    position: [0, 0, 10]
    distances: [2, 30]
    weak: true
`

func TestLoadYAML(t *testing.T) {
	c, err := LoadYAML(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "json", c.Log.Encoding, "defaults survive partial files")
	assert.Equal(t, "plaza", c.Scene.Name)
	assert.Equal(t, "player", c.Scene.Camera)
	assert.Equal(t, [3]float64{0, 1.8, 0}, c.Scene.CameraPos)
	assert.Equal(t, 20*time.Millisecond, c.Scene.TickInterval)
	assert.Equal(t, uint64(600), c.Scene.PruneEvery)
	assert.Equal(t, 2*time.Second, c.Reporting.Window)
	require.Len(t, c.Measurers, 2)
	assert.Equal(t, KindAudio, c.Measurers[1].Kind)
	assert.True(t, c.Measurers[1].Weak)
}

func TestLoadYAMLEmpty(t *testing.T) {
	c, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadJSON(t *testing.T) {
	c, err := LoadJSON(strings.NewReader(`{"scene":{"name":"json","tick_interval":1000000},"measurers":[{"kind":"cull","distances":[50]}]}`))
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	assert.Equal(t, "json", c.Scene.Name)
	assert.Equal(t, time.Millisecond, c.Scene.TickInterval)
	assert.Equal(t, "main", c.Scene.Camera)
}

func TestLoadJSONDurationStrings(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		tick   time.Duration
		window time.Duration
	}{
		{"strings", `{"scene":{"tick_interval":"16ms"},"reporting":{"window":"2s"}}`, 16 * time.Millisecond, 2 * time.Second},
		{"nanoseconds", `{"scene":{"tick_interval":16000000},"reporting":{"window":0}}`, 16 * time.Millisecond, 0},
		{"omitted keeps defaults", `{"scene":{"name":"x"}}`, time.Second / 60, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := LoadJSON(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.tick, c.Scene.TickInterval)
			assert.Equal(t, tt.window, c.Reporting.Window)
			assert.Equal(t, "main", c.Scene.Camera)
		})
	}

	_, err := LoadJSON(strings.NewReader(`{"scene":{"tick_interval":"soon"}}`))
	assert.Error(t, err)
}

func TestValidateJoinsErrors(t *testing.T) {
	c := Default()
	c.Log.Level = "shouty"
	c.Scene.TickInterval = 0
	c.Reporting.Window = -time.Second
	c.Measurers = []MeasurerConfig{
		{Kind: "laser"},
		{Kind: KindAudio, Distances: []float64{1}},
		{Kind: KindLOD},
		{Kind: KindBillboard, Distances: []float64{3}},
	}

	err := c.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInterval)
	assert.ErrorIs(t, err, ErrInvalidWindow)
	assert.ErrorIs(t, err, ErrInvalidMeasurer)
	assert.Contains(t, err.Error(), "measurers[0]")
	assert.Contains(t, err.Error(), "measurers[1]")
	assert.Contains(t, err.Error(), "measurers[2]")
	assert.NotContains(t, err.Error(), "measurers[3]")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(sampleYAML), 0o600))
	c, err := LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "plaza", c.Scene.Name)

	jsonPath := filepath.Join(dir, "scene.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"scene":{"tick_interval":0}}`), 0o600))
	_, err = LoadFile(jsonPath)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = LoadFile(filepath.Join(dir, "scene.toml"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
