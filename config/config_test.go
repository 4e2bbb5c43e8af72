package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := Default()

	assert.Equal(t, float32(25), s.Motion.Sensitivity)
	assert.Equal(t, 5000.0, s.Motion.MinArea)
	assert.Equal(t, 2*time.Second, s.Motion.Cooldown)
	assert.Equal(t, 30, s.Motion.WarmupFrames)
	assert.Equal(t, 0.3, s.Detect.ConfidenceThreshold)
	assert.Equal(t, "0", s.Camera.Device)
	assert.Equal(t, 640, s.Camera.PreviewWidth)
	assert.Equal(t, 2304, s.Camera.StillWidth)
	assert.Equal(t, SaveAlways, s.Save)
	assert.Equal(t, "detection_stats.json", s.Paths.StatsFile)
	assert.NoError(t, s.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err, "a missing config file starts the appliance unconfigured")
	assert.Equal(t, Default(), s)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	content := `
motion:
  min_area: 12000
  cooldown: 5s
detect:
  confidence_threshold: 0.45
save_policy: targets-only
camera:
  device: "/dev/video2"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12000.0, s.Motion.MinArea)
	assert.Equal(t, 5*time.Second, s.Motion.Cooldown)
	assert.Equal(t, 0.45, s.Detect.ConfidenceThreshold)
	assert.Equal(t, SaveTargetsOnly, s.Save)
	assert.Equal(t, "/dev/video2", s.Camera.Device)
	// Untouched keys keep their defaults.
	assert.Equal(t, float32(25), s.Motion.Sensitivity)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("motion: [unclosed\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Settings)
		valid  bool
	}{
		{name: "defaults pass", mutate: func(s *Settings) {}, valid: true},
		{name: "zero min area", mutate: func(s *Settings) { s.Motion.MinArea = 0 }, valid: false},
		{name: "negative cooldown", mutate: func(s *Settings) { s.Motion.Cooldown = -time.Second }, valid: false},
		{name: "threshold above one", mutate: func(s *Settings) { s.Detect.ConfidenceThreshold = 1.5 }, valid: false},
		{name: "threshold at bounds", mutate: func(s *Settings) { s.Detect.ConfidenceThreshold = 1.0 }, valid: true},
		{name: "unknown save policy", mutate: func(s *Settings) { s.Save = "sometimes" }, valid: false},
		{name: "never save policy", mutate: func(s *Settings) { s.Save = SaveNever }, valid: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := Default()
			tc.mutate(s)
			err := s.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
