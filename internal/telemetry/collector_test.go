package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vzahanych/barcode-scanner/internal/config"
	"github.com/vzahanych/barcode-scanner/internal/logger"
	"github.com/vzahanych/barcode-scanner/internal/scanner"
	"github.com/vzahanych/barcode-scanner/internal/service"
)

type fakeScanner struct{ status scanner.Status }

func (f fakeScanner) Snapshot() scanner.Status { return f.status }

func setupTestCollector(t *testing.T, cfg *config.TelemetryConfig) (*Collector, *service.EventBus) {
	t.Helper()
	bus := service.NewEventBus(16)
	c := NewCollector(cfg, logger.NewNopLogger(), fakeScanner{status: scanner.Status{State: scanner.StateScanning}})
	c.SetEventBus(bus)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return c, bus
}

func TestCollector_Collect(t *testing.T) {
	c, _ := setupTestCollector(t, &config.TelemetryConfig{})

	assert.Nil(t, c.GetLastMetrics())

	m, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Positive(t, m.Goroutines)
	assert.Positive(t, m.SysBytes)
	require.NotNil(t, m.Scanner)
	assert.Equal(t, scanner.StateScanning, m.Scanner.State)
	assert.Same(t, m, c.GetLastMetrics())
}

func TestCollector_CollectCancelled(t *testing.T) {
	c, _ := setupTestCollector(t, &config.TelemetryConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollector_CountsSessionEvents(t *testing.T) {
	c, bus := setupTestCollector(t, &config.TelemetryConfig{})

	bus.Publish(service.Event{Type: service.EventTypeScanActivated})
	bus.Publish(service.Event{Type: service.EventTypeScanDetected})
	bus.Publish(service.Event{Type: service.EventTypeScanActivated})
	bus.Publish(service.Event{Type: service.EventTypeScanError})
	bus.Publish(service.Event{Type: service.EventTypeScanDeactivated})
	bus.Publish(service.Event{Type: service.EventTypeTorchChanged})

	want := SessionCounters{Activated: 2, Detected: 1, Failed: 1, Deactivated: 1}
	assert.Eventually(t, func() bool {
		return c.Counters() == want
	}, time.Second, 5*time.Millisecond)
}

func TestCollector_PeriodicCollection(t *testing.T) {
	c, _ := setupTestCollector(t, &config.TelemetryConfig{Enabled: true, Interval: 5 * time.Millisecond})

	assert.Eventually(t, func() bool {
		return c.GetLastMetrics() != nil
	}, time.Second, 5*time.Millisecond)
}

func TestCollector_StopIsIdempotent(t *testing.T) {
	c := NewCollector(&config.TelemetryConfig{Enabled: true, Interval: time.Millisecond}, logger.NewNopLogger(), nil)
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, service.StatusStopped, c.GetStatus().GetStatus())
}
