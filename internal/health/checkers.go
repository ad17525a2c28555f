package health

import (
	"context"
	"fmt"
	"time"

	"github.com/vzahanych/barcode-scanner/internal/camera"
	"github.com/vzahanych/barcode-scanner/internal/decode"
)

// DeviceLister lists the video inputs a camera back-end can see
type DeviceLister interface {
	Devices(ctx context.Context) ([]camera.DeviceInfo, error)
}

// CameraChecker checks that at least one video input is visible
type CameraChecker struct {
	devices DeviceLister
	backend string
}

func NewCameraChecker(devices DeviceLister, backend string) *CameraChecker {
	return &CameraChecker{devices: devices, backend: backend}
}

func (c *CameraChecker) Name() string {
	return "camera"
}

func (c *CameraChecker) Check(ctx context.Context) Check {
	check := Check{
		Name:      c.Name(),
		Timestamp: time.Now(),
		Details:   map[string]interface{}{"backend": c.backend},
	}

	found, err := c.devices.Devices(ctx)
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("Failed to enumerate video inputs: %v", err)
		return check
	}

	labels := make([]string, 0, len(found))
	for _, d := range found {
		labels = append(labels, d.Label)
	}
	check.Details["devices"] = labels

	if len(found) == 0 {
		check.Status = StatusDegraded
		check.Message = "No video input devices"
		return check
	}

	check.Status = StatusHealthy
	check.Message = fmt.Sprintf("%d video input(s) available", len(found))
	return check
}

// DecoderChecker reports which decoding strategy the next session will use.
// The software decoder is bundled, so the check is never unhealthy.
type DecoderChecker struct {
	accelerated func() bool
}

func NewDecoderChecker(accelerated func() bool) *DecoderChecker {
	return &DecoderChecker{accelerated: accelerated}
}

func (c *DecoderChecker) Name() string {
	return "decoder"
}

func (c *DecoderChecker) Check(ctx context.Context) Check {
	strategy := decode.KindSoftware
	if c.accelerated != nil && c.accelerated() {
		strategy = decode.KindAccelerated
	}

	return Check{
		Name:      c.Name(),
		Status:    StatusHealthy,
		Message:   fmt.Sprintf("Next session uses the %s decoder", strategy),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"accelerated_decoder": strategy == decode.KindAccelerated,
			"strategy":            string(strategy),
		},
	}
}

// ConnectionReporter is a client that keeps a connection to a remote broker
type ConnectionReporter interface {
	IsConnected() bool
}

// BrokerChecker degrades the report while the MQTT publisher is
// disconnected. Scanning keeps working without it.
type BrokerChecker struct {
	conn   ConnectionReporter
	broker string
}

func NewBrokerChecker(conn ConnectionReporter, broker string) *BrokerChecker {
	return &BrokerChecker{conn: conn, broker: broker}
}

func (c *BrokerChecker) Name() string {
	return "mqtt"
}

func (c *BrokerChecker) Check(ctx context.Context) Check {
	check := Check{
		Name:      c.Name(),
		Status:    StatusHealthy,
		Message:   "Connected to broker",
		Timestamp: time.Now(),
		Details:   map[string]interface{}{"broker": c.broker},
	}
	if !c.conn.IsConnected() {
		check.Status = StatusDegraded
		check.Message = "Not connected to broker"
	}
	return check
}
