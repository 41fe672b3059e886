// Package config loads go-proctor configuration from YAML, a .env file and
// environment overrides.
package config

import (
	"time"

	"github.com/teslashibe/go-proctor/pkg/audioio"
	"github.com/teslashibe/go-proctor/pkg/perception"
	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// Config is the root of proctor.yaml
type Config struct {
	Log       LogConfig               `yaml:"log"`
	Session   SessionConfig           `yaml:"session"`
	Audio     AudioConfig             `yaml:"audio"`
	Alert     AlertConfig             `yaml:"alert"`
	Gaze      GazeConfig              `yaml:"gaze"`
	HeadPose  HeadPoseConfig          `yaml:"head_pose"`
	Objects   ObjectsConfig           `yaml:"objects"`
	Faces     perception.FaceConfig   `yaml:"faces"`
	Camera    perception.CameraConfig `yaml:"camera"`
	Storage   StorageConfig           `yaml:"storage"`
	Redis     RedisConfig             `yaml:"redis"`
	Dashboard DashboardConfig         `yaml:"dashboard"`
	Metrics   MetricsConfig           `yaml:"metrics"`
}

// LogConfig controls internal/log
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text or empty for GO_ENV based
}

// SessionConfig bounds a session
type SessionConfig struct {
	MaxDuration time.Duration `yaml:"max_duration"` // 0 = until stopped
	SaveLog     bool          `yaml:"save_log"`
}

// AudioConfig is the microphone and its alert threshold
type AudioConfig struct {
	Threshold      int `yaml:"threshold"`
	audioio.Config `yaml:",inline"`
}

// AlertConfig is the alert tone
type AlertConfig struct {
	Enabled     bool          `yaml:"enabled"`
	FrequencyHz int           `yaml:"frequency_hz"`
	Duration    time.Duration `yaml:"duration"`
}

// GazeConfig controls region dwell detection
type GazeConfig struct {
	Dwell          time.Duration    `yaml:"dwell"`
	RegionFraction float64          `yaml:"region_fraction"` // Used when Regions is empty
	Regions        []proctor.Region `yaml:"regions"`
}

// HeadPoseConfig controls the sustained head turn check
type HeadPoseConfig struct {
	Persistence    int     `yaml:"persistence"` // Frames
	YawThreshold   float64 `yaml:"yaw_threshold"`
	PitchThreshold float64 `yaml:"pitch_threshold"`
}

// ObjectsConfig selects the detector and the labels that violate
type ObjectsConfig struct {
	Enabled                 bool     `yaml:"enabled"`
	Suspicious              []string `yaml:"suspicious"`
	perception.ObjectConfig `yaml:",inline"`
}

// StorageConfig selects audit log sinks. Empty paths disable a sink.
type StorageConfig struct {
	TextLog     string `yaml:"text_log"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// RedisConfig enables the live event feed when Addr is set
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DashboardConfig controls the web dashboard
type DashboardConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Port          string `yaml:"port"`
	CameraPreview bool   `yaml:"camera_preview"`
}

// MetricsConfig controls the Prometheus exporter
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	pc := proctor.DefaultConfig()
	return Config{
		Log:     LogConfig{Level: "info"},
		Session: SessionConfig{MaxDuration: pc.MaxDuration, SaveLog: pc.SaveLog},
		Audio:   AudioConfig{Threshold: pc.AudioThreshold, Config: audioio.DefaultConfig()},
		Alert: AlertConfig{
			Enabled:     true,
			FrequencyHz: pc.Tone.FrequencyHz,
			Duration:    pc.Tone.Duration,
		},
		Gaze: GazeConfig{Dwell: pc.GazeDwellThreshold, RegionFraction: 0.25},
		HeadPose: HeadPoseConfig{
			Persistence:    pc.HeadPosePersistence,
			YawThreshold:   pc.YawThreshold,
			PitchThreshold: pc.PitchThreshold,
		},
		Objects: ObjectsConfig{
			Enabled:      true,
			Suspicious:   pc.SuspiciousObjects,
			ObjectConfig: perception.DefaultObjectConfig(),
		},
		Faces:     perception.DefaultFaceConfig(),
		Camera:    perception.DefaultCameraConfig(),
		Storage:   StorageConfig{TextLog: "proctoring_activity.txt"},
		Dashboard: DashboardConfig{Enabled: true, Port: "8080", CameraPreview: true},
		Metrics:   MetricsConfig{Enabled: true},
	}
}

// Proctor returns the core session configuration
func (c *Config) Proctor() proctor.Config {
	regions := c.Gaze.Regions
	if len(regions) == 0 {
		regions = proctor.DefaultRegions(c.Gaze.RegionFraction)
	}
	return proctor.Config{
		AudioThreshold:      c.Audio.Threshold,
		Tone:                proctor.Tone{FrequencyHz: c.Alert.FrequencyHz, Duration: c.Alert.Duration},
		GazeDwellThreshold:  c.Gaze.Dwell,
		Regions:             regions,
		HeadPosePersistence: c.HeadPose.Persistence,
		YawThreshold:        c.HeadPose.YawThreshold,
		PitchThreshold:      c.HeadPose.PitchThreshold,
		SuspiciousObjects:   c.Objects.Suspicious,
		MaxDuration:         c.Session.MaxDuration,
		SaveLog:             c.Session.SaveLog,
	}
}
