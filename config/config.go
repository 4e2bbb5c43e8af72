// Package config - Settings for the monitoring pipeline, loaded with viper.
//
// The core packages consume an already-parsed Settings struct; only this
// package knows about files and keys. Defaults match a conservative
// backyard deployment and every key can be overridden from sentinel.yaml
// or the SENTINEL_* environment.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// SavePolicy controls which detection artifacts are persisted.
type SavePolicy string

const (
	// SaveAlways persists an artifact for every classification run.
	SaveAlways SavePolicy = "always"
	// SaveTargetsOnly persists only runs that flagged a person, animal or bird.
	SaveTargetsOnly SavePolicy = "targets-only"
	// SaveNever disables artifact persistence.
	SaveNever SavePolicy = "never"
)

// MotionSettings tunes the motion gate.
type MotionSettings struct {
	// Sensitivity is the binary threshold applied to the foreground mask.
	// Lower values are more sensitive.
	Sensitivity float32 `mapstructure:"sensitivity"`
	// MinArea is the minimum contour area, in pixels, that counts as motion.
	MinArea float64 `mapstructure:"min_area"`
	// Cooldown is the minimum interval between two triggers.
	Cooldown time.Duration `mapstructure:"cooldown"`
	// WarmupFrames is the number of frames discarded while the background
	// model settles after startup or a reset.
	WarmupFrames int `mapstructure:"warmup_frames"`
}

// DetectSettings tunes the two-stage classifier.
type DetectSettings struct {
	// ConfidenceThreshold discards coarse candidates below this score.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	// ModelPath is the coarse detector ONNX model.
	ModelPath string `mapstructure:"model"`
	// IdentityModelPath is the animal identity ONNX model. Empty or missing
	// degrades the pipeline to detection-only mode.
	IdentityModelPath string `mapstructure:"identity_model"`
	// IdentityLabelsPath is a JSON file holding the identity label set.
	IdentityLabelsPath string `mapstructure:"identity_labels"`
}

// CameraSettings selects the capture device and its two geometries.
type CameraSettings struct {
	// Device is a device index ("0") or a video file path.
	Device string `mapstructure:"device"`
	// PreviewWidth/PreviewHeight is the low-res motion polling geometry.
	PreviewWidth  int `mapstructure:"preview_width"`
	PreviewHeight int `mapstructure:"preview_height"`
	// StillWidth/StillHeight is the high-res capture geometry.
	StillWidth  int `mapstructure:"still_width"`
	StillHeight int `mapstructure:"still_height"`
}

// PathSettings locates the on-disk artifacts.
type PathSettings struct {
	Captures   string `mapstructure:"captures"`
	Detections string `mapstructure:"detections"`
	StatsFile  string `mapstructure:"stats_file"`
	LogFile    string `mapstructure:"log_file"`
}

// StatsSettings tunes the aggregator reporting.
type StatsSettings struct {
	// Interval between periodic summary log lines. Zero disables them.
	Interval time.Duration `mapstructure:"interval"`
}

// MetricsSettings toggles the Prometheus registry.
type MetricsSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// Settings is the root configuration consumed by the pipeline.
type Settings struct {
	Motion  MotionSettings  `mapstructure:"motion"`
	Detect  DetectSettings  `mapstructure:"detect"`
	Camera  CameraSettings  `mapstructure:"camera"`
	Save    SavePolicy      `mapstructure:"save_policy"`
	Paths   PathSettings    `mapstructure:"paths"`
	Stats   StatsSettings   `mapstructure:"stats"`
	Metrics MetricsSettings `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("motion.sensitivity", 25.0)
	v.SetDefault("motion.min_area", 5000.0)
	v.SetDefault("motion.cooldown", 2*time.Second)
	v.SetDefault("motion.warmup_frames", 30)
	v.SetDefault("detect.confidence_threshold", 0.3)
	v.SetDefault("detect.model", "models/yolov8n.onnx")
	v.SetDefault("detect.identity_model", "models/identity.onnx")
	v.SetDefault("detect.identity_labels", "models/class_names.json")
	v.SetDefault("camera.device", "0")
	v.SetDefault("camera.preview_width", 640)
	v.SetDefault("camera.preview_height", 480)
	v.SetDefault("camera.still_width", 2304)
	v.SetDefault("camera.still_height", 1296)
	v.SetDefault("save_policy", string(SaveAlways))
	v.SetDefault("paths.captures", "captures")
	v.SetDefault("paths.detections", "detections")
	v.SetDefault("paths.stats_file", "detection_stats.json")
	v.SetDefault("paths.log_file", "sentinel.log")
	v.SetDefault("stats.interval", 5*time.Minute)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9514")
}

// Default returns the built-in settings without touching the filesystem.
func Default() *Settings {
	v := viper.New()
	setDefaults(v)
	s := &Settings{}
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(s)
	return s
}

// Load reads settings from the given file path. A missing file is not an
// error: defaults are returned so a bare appliance starts up unconfigured.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("sentinel")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "reading config %s", path)
			}
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects values the pipeline cannot run with.
func (s *Settings) Validate() error {
	if s.Motion.MinArea <= 0 {
		return errors.New("motion.min_area must be positive")
	}
	if s.Motion.Cooldown < 0 {
		return errors.New("motion.cooldown must not be negative")
	}
	if s.Detect.ConfidenceThreshold < 0 || s.Detect.ConfidenceThreshold > 1 {
		return errors.New("detect.confidence_threshold must be within [0, 1]")
	}
	switch s.Save {
	case SaveAlways, SaveTargetsOnly, SaveNever:
	default:
		return errors.Errorf("unknown save_policy %q", s.Save)
	}
	return nil
}
