package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty config: %v", err)
	}
	pc := cfg.Proctor()
	if pc.AudioThreshold != 2500 || pc.GazeDwellThreshold != 20*time.Second || pc.HeadPosePersistence != 15 {
		t.Errorf("defaults not applied: %+v", pc)
	}
	if len(pc.Regions) != 2 {
		t.Errorf("regions: got %d, want 2", len(pc.Regions))
	}
	if cfg.Storage.TextLog != "proctoring_activity.txt" {
		t.Errorf("text log: %q", cfg.Storage.TextLog)
	}
}

func TestLoadFromReader_Overrides(t *testing.T) {
	yml := `
log:
  level: debug
session:
  max_duration: 45m
audio:
  threshold: 4000
  backend: mock
  sample_rate: 16000
gaze:
  dwell: 5s
  regions:
    - {name: top, label: Top, x: 0.25, y: 0, width: 0.5, height: 0.2}
objects:
  suspicious: [cell phone]
  confidence: 0.6
camera:
  device: /dev/video2
  quality: 70
`
	cfg, err := LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatal(err)
	}
	pc := cfg.Proctor()
	if pc.MaxDuration != 45*time.Minute {
		t.Errorf("max duration: %v", pc.MaxDuration)
	}
	if pc.AudioThreshold != 4000 || cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Errorf("audio: %+v", cfg.Audio)
	}
	if len(pc.Regions) != 1 || pc.Regions[0].Name != "top" {
		t.Errorf("regions: %+v", pc.Regions)
	}
	if len(pc.SuspiciousObjects) != 1 || cfg.Objects.ConfidenceThresh != 0.6 {
		t.Errorf("objects: %+v", cfg.Objects)
	}
	if cfg.Objects.NMSThresh != 0.4 {
		t.Errorf("nms default lost: %v", cfg.Objects.NMSThresh)
	}
	if cfg.Camera.Device != "/dev/video2" || cfg.Camera.Width != 640 {
		t.Errorf("camera: %+v", cfg.Camera)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("audio:\n  treshold: 10\n"))
	if err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Audio.Threshold = -1
	cfg.Camera.Quality = 0
	cfg.Dashboard.Port = "http"

	err := Validate(&cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"log.level", "audio threshold", "jpeg quality", "dashboard.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvLogLevel:      "warn",
		EnvPostgresDSN:   "postgres://localhost/proctor",
		EnvRedisAddr:     "localhost:6379",
		EnvCamera:        "1",
		EnvDashboardPort: "9090",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := applyEnv(&cfg, lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "warn" || cfg.Storage.PostgresDSN != env[EnvPostgresDSN] ||
		cfg.Redis.Addr != "localhost:6379" || cfg.Camera.Device != "1" || cfg.Dashboard.Port != "9090" {
		t.Errorf("overrides not applied: %+v", cfg)
	}

	env[EnvDashboardPort] = "99999"
	if err := applyEnv(&cfg, lookup); err == nil {
		t.Error("expected error for out of range port")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proctor.yaml")
	if err := os.WriteFile(path, []byte("alert:\n  frequency_hz: 1000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvRedisAddr, "redis:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Alert.FrequencyHz != 1000 || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("loaded: alert=%+v redis=%+v", cfg.Alert, cfg.Redis)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
