package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vzahanych/barcode-scanner/internal/logger"
)

// Service holds the running configuration. Every load goes through the same
// steps: read the file, apply SCANNER_* environment overrides, validate.
type Service struct {
	mu         sync.RWMutex
	config     *Config
	configPath string
	logger     *logger.Logger
	watchers   []ConfigWatcher
}

// ConfigWatcher is called after a successful reload
type ConfigWatcher func(ctx context.Context, oldConfig, newConfig *Config) error

// NewService loads the initial configuration
func NewService(configPath string, log *logger.Logger) (*Service, error) {
	cfg, err := loadEffective(configPath)
	if err != nil {
		return nil, err
	}
	return &Service{
		config:     cfg,
		configPath: configPath,
		logger:     log,
	}, nil
}

func loadEffective(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Get returns the current configuration. Callers must not modify it.
func (s *Service) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Reload re-reads the configuration and notifies watchers. On error the
// current configuration stays in place. A live scan session keeps its
// settings; watchers apply the new ones to the next session.
func (s *Service) Reload(ctx context.Context) error {
	newConfig, err := loadEffective(s.configPath)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	s.mu.Lock()
	oldConfig := s.config
	s.config = newConfig
	watchers := append([]ConfigWatcher(nil), s.watchers...)
	log := s.logger
	s.mu.Unlock()

	for _, watcher := range watchers {
		if err := watcher(ctx, oldConfig, newConfig); err != nil {
			log.Error("Config watcher error", "error", err)
		}
	}

	log.Info("Configuration reloaded", "path", s.configPath)
	return nil
}

// SetLogger replaces the logger used for reload messages
func (s *Service) SetLogger(log *logger.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = log
}

// Watch registers a watcher called after every successful reload
func (s *Service) Watch(watcher ConfigWatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, watcher)
}

// envOverride applies one environment variable when it is set and non-empty
type envOverride struct {
	key   string
	apply func(cfg *Config, val string)
}

var envOverrides = []envOverride{
	{"SCANNER_CAMERA_BACKEND", func(c *Config, v string) { c.Camera.Backend = v }},
	{"SCANNER_CAMERA_INPUT", func(c *Config, v string) { c.Camera.Input = v }},
	{"SCANNER_CAMERA_FACING", func(c *Config, v string) { c.Camera.Facing = v }},
	{"SCANNER_CAMERA_ACQUIRE_TIMEOUT", func(c *Config, v string) {
		c.Camera.AcquireTimeout = parseDuration(v, c.Camera.AcquireTimeout)
	}},
	{"SCANNER_CAMERA_TORCH_DEVICE", func(c *Config, v string) { c.Camera.TorchDevice = v }},

	{"SCANNER_DECODE_ACCELERATED", func(c *Config, v string) { c.Decode.Accelerated = v }},
	{"SCANNER_DECODE_FORMATS", func(c *Config, v string) { c.Decode.Formats = splitList(v) }},
	{"SCANNER_DECODE_COOLDOWN", func(c *Config, v string) {
		c.Decode.Cooldown = parseDuration(v, c.Decode.Cooldown)
	}},
	{"SCANNER_DECODE_TRY_HARDER", func(c *Config, v string) {
		tryHarder := parseBool(v)
		c.Decode.Software.TryHarder = &tryHarder
	}},
	{"SCANNER_DECODE_SCAN_INTERVAL", func(c *Config, v string) {
		c.Decode.Software.ScanInterval = parseDuration(v, c.Decode.Software.ScanInterval)
	}},

	{"SCANNER_SAMPLER_REFRESH_HZ", func(c *Config, v string) { c.Sampler.RefreshHz = parseInt(v, c.Sampler.RefreshHz) }},

	{"SCANNER_WEB_ENABLED", func(c *Config, v string) { c.Web.Enabled = parseBool(v) }},
	{"SCANNER_WEB_HOST", func(c *Config, v string) { c.Web.Host = v }},
	{"SCANNER_WEB_PORT", func(c *Config, v string) { c.Web.Port = parseInt(v, c.Web.Port) }},

	{"SCANNER_TELEMETRY_ENABLED", func(c *Config, v string) { c.Telemetry.Enabled = parseBool(v) }},
	{"SCANNER_TELEMETRY_INTERVAL", func(c *Config, v string) {
		c.Telemetry.Interval = parseDuration(v, c.Telemetry.Interval)
	}},

	{"SCANNER_MQTT_ENABLED", func(c *Config, v string) { c.MQTT.Enabled = parseBool(v) }},
	{"SCANNER_MQTT_BROKER", func(c *Config, v string) { c.MQTT.Broker = v }},
	{"SCANNER_MQTT_USERNAME", func(c *Config, v string) { c.MQTT.Username = v }},
	{"SCANNER_MQTT_PASSWORD", func(c *Config, v string) { c.MQTT.Password = v }},

	{"LOG_LEVEL", func(c *Config, v string) { c.Log.Level = v }},
	{"LOG_FORMAT", func(c *Config, v string) { c.Log.Format = v }},
	{"LOG_OUTPUT", func(c *Config, v string) { c.Log.Output = v }},
}

// applyEnvOverrides returns the keys it applied
func applyEnvOverrides(cfg *Config) []string {
	var applied []string
	for _, o := range envOverrides {
		val := strings.TrimSpace(os.Getenv(o.key))
		if val == "" {
			continue
		}
		o.apply(cfg, val)
		applied = append(applied, o.key)
	}
	return applied
}

func parseBool(val string) bool {
	switch strings.ToLower(val) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// parseInt and parseDuration keep the current value when val does not parse
func parseInt(val string, current int) int {
	n, err := strconv.Atoi(val)
	if err != nil {
		return current
	}
	return n
}

func parseDuration(val string, current time.Duration) time.Duration {
	d, err := time.ParseDuration(val)
	if err != nil {
		return current
	}
	return d
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
