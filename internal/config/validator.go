package config

import "fmt"

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if !cfg.Camera.Fake && cfg.Camera.URL == "" {
		return fmt.Errorf("camera.url is required")
	}

	switch cfg.Capture.Cadence {
	case "":
		cfg.Capture.Cadence = "fixed-delay"
	case "fixed-delay", "fixed-rate":
	default:
		return fmt.Errorf("capture.cadence must be fixed-delay or fixed-rate, got %q", cfg.Capture.Cadence)
	}
	if cfg.Capture.Interval < 0 {
		return fmt.Errorf("capture.interval must be >= 0")
	}
	if cfg.Capture.AcquireRetries < 0 {
		return fmt.Errorf("capture.acquire_retries must be >= 0")
	}

	switch cfg.Detector.Backend {
	case "opencv", "python":
	default:
		return fmt.Errorf("detector.backend must be opencv or python, got %q", cfg.Detector.Backend)
	}
	if cfg.Detector.Options.ScaleFactor <= 1 {
		return fmt.Errorf("detector.scale_factor must be > 1")
	}
	if cfg.Detector.Options.MinNeighbors < 0 {
		return fmt.Errorf("detector.min_neighbors must be >= 0")
	}
	if cfg.Detector.Options.MinSize < 0 {
		return fmt.Errorf("detector.min_size must be >= 0")
	}

	if cfg.Measure.Scale < 1 {
		return fmt.Errorf("measure.scale must be >= 1")
	}
	if cfg.Measure.MaxFaces < 0 {
		return fmt.Errorf("measure.max_faces must be >= 0")
	}
	switch cfg.Measure.Primary {
	case "":
		cfg.Measure.Primary = "median"
	case "median", "mean":
	default:
		return fmt.Errorf("measure.primary must be median or mean, got %q", cfg.Measure.Primary)
	}

	if cfg.Series.Capacity <= 0 {
		cfg.Series.Capacity = 100 // default
	}

	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic is required when mqtt.broker is set")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}
	return nil
}
