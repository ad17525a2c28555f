package config

import (
	"fmt"
	"strings"
	"time"
)

var validFormats = map[string]bool{
	"ean_13": true, "ean_8": true, "upc_a": true, "upc_e": true,
	"code_128": true, "code_39": true, "itf": true,
}

// Validate validates the configuration with detailed error messages
func (c *Config) Validate() error {
	var errors []string

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errors = append(errors, fmt.Sprintf("invalid log.level: %s (must be: debug, info, warn, error)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid log.format: %s (must be: text or json)", c.Log.Format))
	}

	switch c.Camera.Backend {
	case "pion":
	case "ffmpeg":
		if c.Camera.Input == "" {
			errors = append(errors, "camera.input is required when camera.backend is ffmpeg")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid camera.backend: %s (must be: pion or ffmpeg)", c.Camera.Backend))
	}

	switch c.Camera.Facing {
	case "environment", "user", "any":
	default:
		errors = append(errors, fmt.Sprintf("invalid camera.facing: %s (must be: environment, user or any)", c.Camera.Facing))
	}

	if c.Camera.MinWidth <= 0 || c.Camera.MinHeight <= 0 {
		errors = append(errors, fmt.Sprintf("camera min resolution must be > 0, got: %dx%d", c.Camera.MinWidth, c.Camera.MinHeight))
	}
	if c.Camera.IdealWidth < c.Camera.MinWidth || c.Camera.IdealHeight < c.Camera.MinHeight {
		errors = append(errors, fmt.Sprintf("camera ideal resolution %dx%d is below the minimum %dx%d",
			c.Camera.IdealWidth, c.Camera.IdealHeight, c.Camera.MinWidth, c.Camera.MinHeight))
	}
	if c.Camera.FrameRate <= 0 {
		errors = append(errors, fmt.Sprintf("camera.frame_rate must be > 0, got: %d", c.Camera.FrameRate))
	}
	if c.Camera.AcquireTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("camera.acquire_timeout must be > 0, got: %v", c.Camera.AcquireTimeout))
	}

	switch c.Decode.Accelerated {
	case "auto", "on", "off":
	default:
		errors = append(errors, fmt.Sprintf("invalid decode.accelerated: %s (must be: auto, on or off)", c.Decode.Accelerated))
	}
	for _, f := range c.Decode.Formats {
		if !validFormats[strings.ToLower(f)] {
			errors = append(errors, fmt.Sprintf("unsupported decode format: %s", f))
		}
	}
	if c.Decode.Cooldown < 0 {
		errors = append(errors, fmt.Sprintf("decode.cooldown must be >= 0, got: %v", c.Decode.Cooldown))
	}
	if c.Decode.Software.ScanInterval <= 0 {
		errors = append(errors, fmt.Sprintf("decode.software.scan_interval must be > 0, got: %v", c.Decode.Software.ScanInterval))
	}

	if c.Sampler.RefreshHz <= 0 || c.Sampler.RefreshHz > 240 {
		errors = append(errors, fmt.Sprintf("sampler.refresh_hz must be between 1 and 240, got: %d", c.Sampler.RefreshHz))
	}

	if c.Web.Enabled && (c.Web.Port <= 0 || c.Web.Port > 65535) {
		errors = append(errors, fmt.Sprintf("web.port must be between 1 and 65535, got: %d", c.Web.Port))
	}

	if c.Web.PreviewQuality < 1 || c.Web.PreviewQuality > 100 {
		errors = append(errors, fmt.Sprintf("web.preview_quality must be between 1 and 100, got: %d", c.Web.PreviewQuality))
	}
	if c.Web.PreviewMaxWidth < 0 {
		errors = append(errors, fmt.Sprintf("web.preview_max_width must be >= 0, got: %d", c.Web.PreviewMaxWidth))
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errors = append(errors, "mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errors = append(errors, fmt.Sprintf("mqtt.qos must be 0, 1 or 2, got: %d", c.MQTT.QoS))
		}
		if c.MQTT.ConnectTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("mqtt.connect_timeout must be > 0, got: %v", c.MQTT.ConnectTimeout))
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.Interval < time.Second {
		errors = append(errors, fmt.Sprintf("telemetry.interval must be >= 1s, got: %v", c.Telemetry.Interval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}
