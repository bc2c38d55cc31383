package config

import (
	"fmt"
	"os"
	"time"

	"github.com/andresmejia3/thermosentinel/internal/types"
	"gopkg.in/yaml.v3"
)

// Config represents the complete ThermoSentinel configuration
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Capture  CaptureConfig  `yaml:"capture"`
	Detector DetectorConfig `yaml:"detector"`
	Measure  MeasureConfig  `yaml:"measure"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	Series   SeriesConfig   `yaml:"series"`
	Output   OutputConfig   `yaml:"output"`
	Web      WebConfig      `yaml:"web"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// CameraConfig contains camera connection settings
type CameraConfig struct {
	URL       string        `yaml:"url"`
	User      string        `yaml:"user"`
	Password  string        `yaml:"password"`
	Timeout   time.Duration `yaml:"timeout"`
	Overlay   bool          `yaml:"overlay"`    // keep on-image graphics in snapshots
	AutoRange bool          `yaml:"auto_range"` // let the camera pick the temperature span
	Fake      bool          `yaml:"fake"`       // use the built-in synthetic camera
}

// CaptureConfig contains loop settings
type CaptureConfig struct {
	Interval       time.Duration `yaml:"interval"`
	Cadence        string        `yaml:"cadence"` // fixed-delay, fixed-rate
	AcquireRetries int           `yaml:"acquire_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	WorkDir        string        `yaml:"work_dir"`
	KeepSnapshots  bool          `yaml:"keep_snapshots"`
}

// DetectorConfig selects and tunes the face detector
type DetectorConfig struct {
	Backend          string              `yaml:"backend"` // opencv, python
	Cascade          string              `yaml:"cascade"`
	Script           string              `yaml:"script"` // python backend only
	Options          types.DetectOptions `yaml:",inline"`
	DetectDownscaled bool                `yaml:"detect_downscaled"`
}

// MeasureConfig contains forehead measurement settings
type MeasureConfig struct {
	Scale        int    `yaml:"scale"`     // visible pixels per thermal pixel
	MaxFaces     int    `yaml:"max_faces"` // 0 = all
	Primary      string `yaml:"primary"`   // median, mean
	ClampToField bool   `yaml:"clamp_to_field"`
}

// DecoderConfig locates external decoding tools
type DecoderConfig struct {
	ExifTool string `yaml:"exiftool"`
}

// SeriesConfig sizes the rolling temperature window
type SeriesConfig struct {
	Capacity int `yaml:"capacity"`
}

// OutputConfig controls annotated frame output
type OutputConfig struct {
	Dir string `yaml:"dir"` // empty disables writing frames
}

// WebConfig controls the live view server
type WebConfig struct {
	Listen string `yaml:"listen"` // empty disables the server
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables publishing
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			URL:       "http://192.168.0.10/",
			User:      "admin",
			Password:  "admin",
			Timeout:   10 * time.Second,
			AutoRange: true,
		},
		Capture: CaptureConfig{
			Interval:       2 * time.Second,
			Cadence:        "fixed-delay",
			AcquireRetries: 3,
			RetryBackoff:   500 * time.Millisecond,
			WorkDir:        os.TempDir(),
		},
		Detector: DetectorConfig{
			Backend: "opencv",
			Cascade: "haarcascade_frontalface_default.xml",
			Script:  "python/detector.py",
			Options: types.DefaultDetectOptions(),
		},
		Measure: MeasureConfig{
			Scale:   8,
			Primary: "median",
		},
		Decoder: DecoderConfig{ExifTool: "exiftool"},
		Series:  SeriesConfig{Capacity: 100},
		MQTT: MQTTConfig{
			Topic:    "thermosentinel/measurements",
			ClientID: "thermosentinel",
		},
	}
}

// Load reads a YAML configuration file on top of the defaults, applies
// environment overrides and validates the result. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	ApplyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides camera credentials from FLIR_URL, FLIR_USER and
// FLIR_PASSWORD when set.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("FLIR_URL"); v != "" {
		cfg.Camera.URL = v
	}
	if v := os.Getenv("FLIR_USER"); v != "" {
		cfg.Camera.User = v
	}
	if v := os.Getenv("FLIR_PASSWORD"); v != "" {
		cfg.Camera.Password = v
	}
}
