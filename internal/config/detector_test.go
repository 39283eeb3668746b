package config

import (
	"HelmetVision/pkg/detector"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "detector.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDetectorConfigDefaults(t *testing.T) {
	cfg, err := LoadDetectorConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	mock, err := cfg.ActiveMock()
	require.NoError(t, err)
	assert.Equal(t, detector.MockProfiles["default"], mock)
	assert.Nil(t, cfg.MockOptions())

	assert.True(t, cfg.Model.Enabled)
	assert.Equal(t, "runs/obb/train/weights/best.pt", cfg.Model.ModelPath)
	assert.Equal(t, []string{"With Helmet", "Without Helmet"}, cfg.Model.Vocabulary)
	assert.Equal(t, 640, cfg.Model.InputSize)
	assert.Equal(t, detector.ChannelOrderBGR, cfg.Model.ChannelOrder)
	assert.InDelta(t, 0.25, cfg.Model.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Model.LoadTimeout)
	assert.NoError(t, cfg.Model.ModelConfig.Validate())
}

func TestLoadDetectorConfigFile(t *testing.T) {
	path := writeConfig(t, `
mock:
  profile: demo
  seed: 42
  profiles:
    demo:
      min_count: 2
model:
  enabled: false
  worker_url: ws://worker:9000/ws/obb
  load_timeout: 5s
`)

	cfg, err := LoadDetectorConfig(path)
	require.NoError(t, err)

	mock, err := cfg.ActiveMock()
	require.NoError(t, err)

	want := detector.MockProfiles["demo"]
	want.MinCount = 2
	assert.Equal(t, want, mock)
	assert.Len(t, cfg.MockOptions(), 1)

	assert.False(t, cfg.Model.Enabled)
	assert.Equal(t, "ws://worker:9000/ws/obb", cfg.Model.WorkerURL)
	assert.Equal(t, 5*time.Second, cfg.Model.LoadTimeout)
}

func TestLoadDetectorConfigEnvOverride(t *testing.T) {
	t.Setenv("DETECTOR_MOCK_PROFILE", "demo")
	t.Setenv("DETECTOR_MODEL_INPUT_SIZE", "320")

	cfg, err := LoadDetectorConfig("")
	require.NoError(t, err)

	mock, err := cfg.ActiveMock()
	require.NoError(t, err)
	assert.Equal(t, detector.MockProfiles["demo"], mock)
	assert.Equal(t, 320, cfg.Model.InputSize)
}

func TestActiveMockErrors(t *testing.T) {
	t.Run("unknown profile", func(t *testing.T) {
		path := writeConfig(t, "mock:\n  profile: nope\n")
		cfg, err := LoadDetectorConfig(path)
		require.NoError(t, err)

		_, err = cfg.ActiveMock()
		assert.ErrorIs(t, err, detector.ErrConfiguration)
	})

	t.Run("inverted range", func(t *testing.T) {
		path := writeConfig(t, "mock:\n  profiles:\n    default:\n      min_count: 5\n      max_count: 1\n")
		cfg, err := LoadDetectorConfig(path)
		require.NoError(t, err)

		_, err = cfg.ActiveMock()
		assert.ErrorIs(t, err, detector.ErrConfiguration)
	})
}

func TestLoadDetectorConfigMalformedFile(t *testing.T) {
	path := writeConfig(t, "mock: [unclosed")

	_, err := LoadDetectorConfig(path)
	assert.ErrorIs(t, err, detector.ErrConfiguration)
}

func TestLoadAppConfig(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("DETECTION_TIMEOUT", "3s")
	t.Setenv("MAX_UPLOAD_SIZE", "garbage")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "")
	t.Setenv("SIDE_EFFECT_TIMEOUT", "750ms")

	cfg := LoadAppConfig()
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.DetectionTimeout)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxUploadSize)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 1e-9)
	assert.Equal(t, 100, cfg.RateLimitBurst)
	assert.Equal(t, 750*time.Millisecond, cfg.SideEffectTimeout)
}
