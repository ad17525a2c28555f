package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the scanner configuration
type Config struct {
	Camera    CameraConfig    `yaml:"camera"`
	Decode    DecodeConfig    `yaml:"decode"`
	Sampler   SamplerConfig   `yaml:"sampler"`
	Web       WebConfig       `yaml:"web"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Log       LogConfig       `yaml:"log,omitempty"`
}

// CameraConfig contains stream acquisition settings
type CameraConfig struct {
	Backend        string        `yaml:"backend"` // pion or ffmpeg
	Input          string        `yaml:"input"`   // ffmpeg input: device path, file or RTSP URL
	Facing         string        `yaml:"facing"`  // environment, user or any
	MinWidth       int           `yaml:"min_width"`
	MinHeight      int           `yaml:"min_height"`
	IdealWidth     int           `yaml:"ideal_width"`
	IdealHeight    int           `yaml:"ideal_height"`
	FrameRate      int           `yaml:"frame_rate"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	TorchDevice    string        `yaml:"torch_device"` // v4l2 device carrying the flash control, optional
}

// DecodeConfig contains detection settings shared by both strategies
type DecodeConfig struct {
	Accelerated string         `yaml:"accelerated"` // auto, on or off
	ZBarPath    string         `yaml:"zbar_path"`
	Formats     []string       `yaml:"formats"`
	Cooldown    time.Duration  `yaml:"cooldown"`
	Software    SoftwareConfig `yaml:"software"`
}

// SoftwareConfig tunes the bundled fallback decoder
type SoftwareConfig struct {
	TryHarder    *bool         `yaml:"try_harder"`
	ScanInterval time.Duration `yaml:"scan_interval"`
}

// SamplerConfig contains frame sampler settings
type SamplerConfig struct {
	RefreshHz int `yaml:"refresh_hz"`
}

// WebConfig contains the host HTTP surface configuration
type WebConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	PreviewMaxWidth int    `yaml:"preview_max_width"` // wider frames are scaled down, 0 keeps native size
	PreviewQuality  int    `yaml:"preview_quality"`   // JPEG quality, 1-100
}

// MQTTConfig contains the optional detection publisher settings
type MQTTConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Broker         string        `yaml:"broker"` // tcp://host:port, ssl:// or ws://
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	QoS            int           `yaml:"qos"`
	Retain         bool          `yaml:"retain"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// TelemetryConfig contains periodic metrics collection settings
type TelemetryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DefaultFormats is the retail 1-D allowlist used when none is configured
var DefaultFormats = []string{"ean_13", "ean_8", "upc_a", "upc_e", "code_128"}

// Load reads and parses the configuration file. An empty path with no file in
// the default locations yields the built-in defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = getDefaultConfigPath()
		if configPath == "" {
			return Default(), nil
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

// Default returns a configuration populated with defaults only
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// TryHarderEnabled reports whether the software decoder runs in its accuracy mode
func (s SoftwareConfig) TryHarderEnabled() bool {
	return s.TryHarder == nil || *s.TryHarder
}

func getDefaultConfigPath() string {
	paths := []string{
		"./config/scanner.dev.yaml",
		"./config/scanner.yaml",
		"../config/scanner.yaml",
		"/etc/barcode-scanner/scanner.yaml",
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Camera.Backend == "" {
		c.Camera.Backend = "pion"
	}
	if c.Camera.Facing == "" {
		c.Camera.Facing = "environment"
	}
	if c.Camera.MinWidth == 0 {
		c.Camera.MinWidth = 640
	}
	if c.Camera.MinHeight == 0 {
		c.Camera.MinHeight = 480
	}
	if c.Camera.IdealWidth == 0 {
		c.Camera.IdealWidth = 1280
	}
	if c.Camera.IdealHeight == 0 {
		c.Camera.IdealHeight = 720
	}
	if c.Camera.FrameRate == 0 {
		c.Camera.FrameRate = 30
	}
	if c.Camera.AcquireTimeout == 0 {
		c.Camera.AcquireTimeout = 10 * time.Second
	}

	if c.Decode.Accelerated == "" {
		c.Decode.Accelerated = "auto"
	}
	if c.Decode.ZBarPath == "" {
		c.Decode.ZBarPath = "zbarimg"
	}
	if len(c.Decode.Formats) == 0 {
		c.Decode.Formats = append([]string(nil), DefaultFormats...)
	}
	if c.Decode.Cooldown == 0 {
		c.Decode.Cooldown = 2 * time.Second
	}
	if c.Decode.Software.ScanInterval == 0 {
		c.Decode.Software.ScanInterval = 100 * time.Millisecond
	}

	if c.Sampler.RefreshHz == 0 {
		c.Sampler.RefreshHz = 60
	}

	if c.Web.Host == "" {
		c.Web.Host = "127.0.0.1"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8090
	}

	if c.Telemetry.Interval == 0 {
		c.Telemetry.Interval = time.Minute
	}

	if c.Web.PreviewQuality == 0 {
		c.Web.PreviewQuality = 80
	}

	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://127.0.0.1:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "barcode-scanner"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "scanner"
	}
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = 5 * time.Second
	}
}
