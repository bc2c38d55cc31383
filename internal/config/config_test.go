package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "thermosentinel.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Measure.Scale)
	assert.Equal(t, "median", cfg.Measure.Primary)
	assert.Equal(t, 2*time.Second, cfg.Capture.Interval)
	assert.Equal(t, "fixed-delay", cfg.Capture.Cadence)
	assert.Equal(t, 1.1, cfg.Detector.Options.ScaleFactor)
	assert.Equal(t, 5, cfg.Detector.Options.MinNeighbors)
	assert.Equal(t, 30, cfg.Detector.Options.MinSize)
	assert.Equal(t, 100, cfg.Series.Capacity)
	assert.True(t, cfg.Camera.AutoRange)
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
camera:
  url: http://10.0.0.5/
  timeout: 3s
capture:
  interval: 500ms
  cadence: fixed-rate
detector:
  backend: python
  min_neighbors: 3
  detect_downscaled: true
measure:
  max_faces: 1
  primary: mean
  clamp_to_field: true
mqtt:
  broker: tcp://localhost:1883
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5/", cfg.Camera.URL)
	assert.Equal(t, 3*time.Second, cfg.Camera.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Capture.Interval)
	assert.Equal(t, "fixed-rate", cfg.Capture.Cadence)
	assert.Equal(t, "python", cfg.Detector.Backend)
	assert.Equal(t, 3, cfg.Detector.Options.MinNeighbors)
	assert.Equal(t, 1.1, cfg.Detector.Options.ScaleFactor, "unset keys keep their default")
	assert.True(t, cfg.Detector.DetectDownscaled)
	assert.Equal(t, 1, cfg.Measure.MaxFaces)
	assert.Equal(t, "mean", cfg.Measure.Primary)
	assert.True(t, cfg.Measure.ClampToField)
	assert.Equal(t, "admin", cfg.Camera.User)
	assert.Equal(t, "thermosentinel/measurements", cfg.MQTT.Topic)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("FLIR_USER", "operator")
	t.Setenv("FLIR_PASSWORD", "s3cret")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "operator", cfg.Camera.User)
	assert.Equal(t, "s3cret", cfg.Camera.Password)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "camera: [\n"},
		{"bad cadence", "capture:\n  cadence: sometimes\n"},
		{"bad backend", "detector:\n  backend: tensorflow\n"},
		{"bad scale", "measure:\n  scale: 0\n"},
		{"bad primary", "measure:\n  primary: mode\n"},
		{"negative faces", "measure:\n  max_faces: -1\n"},
		{"flat pyramid", "detector:\n  scale_factor: 1.0\n"},
		{"bad qos", "mqtt:\n  broker: tcp://x:1883\n  qos: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := Default()
	cfg.Capture.Cadence = ""
	cfg.Measure.Primary = ""
	cfg.Series.Capacity = 0
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "fixed-delay", cfg.Capture.Cadence)
	assert.Equal(t, "median", cfg.Measure.Primary)
	assert.Equal(t, 100, cfg.Series.Capacity)
}

func TestFakeCameraNeedsNoURL(t *testing.T) {
	cfg := Default()
	cfg.Camera.URL = ""
	assert.Error(t, Validate(cfg))
	cfg.Camera.Fake = true
	assert.NoError(t, Validate(cfg))
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	for _, k := range []string{"FLIR_URL", "FLIR_USER", "FLIR_PASSWORD"} {
		t.Setenv(k, "")
	}
	cfg, err := Load("../../thermosentinel.yaml")
	require.NoError(t, err)

	want := Default()
	want.Capture.WorkDir = "/tmp"
	assert.Equal(t, want, cfg)
}
