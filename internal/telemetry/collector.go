package telemetry

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vzahanych/barcode-scanner/internal/config"
	"github.com/vzahanych/barcode-scanner/internal/logger"
	"github.com/vzahanych/barcode-scanner/internal/scanner"
	"github.com/vzahanych/barcode-scanner/internal/service"
)

// ScannerStatus is the read side of the scanner controller
type ScannerStatus interface {
	Snapshot() scanner.Status
}

// SessionCounters counts session outcomes seen on the event bus
type SessionCounters struct {
	Activated   uint64 `json:"activated"`
	Detected    uint64 `json:"detected"`
	Failed      uint64 `json:"failed"`
	Deactivated uint64 `json:"deactivated"`
}

// Metrics is one collected sample
type Metrics struct {
	Timestamp      time.Time       `json:"timestamp"`
	Goroutines     int             `json:"goroutines"`
	HeapAllocBytes uint64          `json:"heap_alloc_bytes"`
	SysBytes       uint64          `json:"sys_bytes"`
	NumGC          uint32          `json:"num_gc"`
	Sessions       SessionCounters `json:"sessions"`
	Scanner        *scanner.Status `json:"scanner,omitempty"`
}

// Collector collects process and scanner metrics
type Collector struct {
	*service.ServiceBase
	config  *config.TelemetryConfig
	logger  *logger.Logger
	scanner ScannerStatus

	activated   atomic.Uint64
	detected    atomic.Uint64
	failed      atomic.Uint64
	deactivated atomic.Uint64

	mu          sync.RWMutex
	lastMetrics *Metrics
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewCollector creates a new telemetry collector. sc may be nil.
func NewCollector(cfg *config.TelemetryConfig, log *logger.Logger, sc ScannerStatus) *Collector {
	return &Collector{
		ServiceBase: service.NewServiceBase("telemetry-collector", log),
		config:      cfg,
		logger:      log,
		scanner:     sc,
	}
}

// Start subscribes to session events and, when enabled, starts periodic
// collection
func (c *Collector) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	if bus := c.GetEventBus(); bus != nil {
		c.count(runCtx, bus, service.EventTypeScanActivated, &c.activated)
		c.count(runCtx, bus, service.EventTypeScanDetected, &c.detected)
		c.count(runCtx, bus, service.EventTypeScanError, &c.failed)
		c.count(runCtx, bus, service.EventTypeScanDeactivated, &c.deactivated)
	}

	c.GetStatus().SetStatus(service.StatusRunning)

	if !c.config.Enabled {
		c.LogInfo("Periodic telemetry collection is disabled")
		return nil
	}

	c.wg.Add(1)
	go c.loop(runCtx)

	c.LogInfo("Telemetry collector started", "interval", c.config.Interval)
	return nil
}

// Stop stops the telemetry collector service
func (c *Collector) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.GetStatus().SetStatus(service.StatusStopped)
	c.LogInfo("Telemetry collector stopped")
	return nil
}

func (c *Collector) count(ctx context.Context, bus *service.EventBus, t service.EventType, counter *atomic.Uint64) {
	bus.SubscribeWithHandler(ctx, t, func(context.Context, service.Event) error {
		counter.Add(1)
		return nil
	})
}

func (c *Collector) loop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m, err := c.Collect(ctx)
			if err != nil {
				c.LogWarn("Failed to collect telemetry", "error", err)
				continue
			}
			c.LogInfo("Telemetry",
				"goroutines", m.Goroutines,
				"heap_alloc_bytes", m.HeapAllocBytes,
				"sessions_activated", m.Sessions.Activated,
				"sessions_detected", m.Sessions.Detected,
				"sessions_failed", m.Sessions.Failed,
			)
		}
	}
}

// Collect takes a sample now
func (c *Collector) Collect(ctx context.Context) (*Metrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m := &Metrics{
		Timestamp:      time.Now(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
		SysBytes:       mem.Sys,
		NumGC:          mem.NumGC,
		Sessions:       c.Counters(),
	}
	if c.scanner != nil {
		st := c.scanner.Snapshot()
		m.Scanner = &st
	}

	c.mu.Lock()
	c.lastMetrics = m
	c.mu.Unlock()

	return m, nil
}

// GetLastMetrics returns the last collected metrics, or nil
func (c *Collector) GetLastMetrics() *Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastMetrics
}

// Counters returns the session counters
func (c *Collector) Counters() SessionCounters {
	return SessionCounters{
		Activated:   c.activated.Load(),
		Detected:    c.detected.Load(),
		Failed:      c.failed.Load(),
		Deactivated: c.deactivated.Load(),
	}
}
