package integration

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/vzahanych/barcode-scanner/internal/camera"
	"github.com/vzahanych/barcode-scanner/internal/config"
	"github.com/vzahanych/barcode-scanner/internal/health"
	"github.com/vzahanych/barcode-scanner/internal/logger"
	"github.com/vzahanych/barcode-scanner/internal/probe"
	"github.com/vzahanych/barcode-scanner/internal/publisher"
	"github.com/vzahanych/barcode-scanner/internal/scanner"
	"github.com/vzahanych/barcode-scanner/internal/service"
	"github.com/vzahanych/barcode-scanner/internal/telemetry"
	"github.com/vzahanych/barcode-scanner/internal/web"
)

// TestEnvironment wires the real scanner stack over an in-memory camera
type TestEnvironment struct {
	Config     *config.Config
	Logger     *logger.Logger
	Devices    *camera.FakeDevices
	Cameras    *camera.Manager
	Controller *scanner.Controller
	Telemetry  *telemetry.Collector
	Publisher  *publisher.Publisher
	Broker     *RecordingBroker
	Web        *web.Server
	Services   *service.Manager
}

// SetupTestEnvironment builds the stack with the software decoder. frame is
// what the fake camera serves; nil serves nothing.
func SetupTestEnvironment(t *testing.T, frame image.Image) *TestEnvironment {
	t.Helper()

	cfg := config.Default()
	cfg.Decode.Accelerated = probe.ModeOff
	cfg.Decode.Software.ScanInterval = 10 * time.Millisecond
	cfg.Camera.AcquireTimeout = 2 * time.Second
	cfg.MQTT.Enabled = true

	log := logger.NewNopLogger()

	devices := camera.NewFakeDevices(frame)
	cameras := camera.NewManager(devices, camera.ManagerConfig{AcquireTimeout: cfg.Camera.AcquireTimeout}, log)

	opts, err := scanner.OptionsFromConfig(cfg, log)
	if err != nil {
		t.Fatalf("Failed to build scanner options: %v", err)
	}
	controller := scanner.NewController(cameras, opts, log)
	collector := telemetry.NewCollector(&cfg.Telemetry, log, controller)

	svcMgr := service.NewManager(log)
	svcMgr.Register(controller)
	svcMgr.Register(collector)

	broker := &RecordingBroker{}
	mqttPublisher := publisher.NewPublisher(cfg.MQTT, broker, log)
	svcMgr.Register(mqttPublisher)

	healthMgr := health.NewManager(log, svcMgr)
	healthMgr.RegisterChecker(health.NewCameraChecker(cameras, "fake"))
	healthMgr.RegisterChecker(health.NewDecoderChecker(func() bool { return false }))
	healthMgr.RegisterChecker(health.NewBrokerChecker(broker, cfg.MQTT.Broker))

	webServer := web.NewServer(&cfg.Web, log)
	webServer.SetScanner(controller)
	webServer.SetHealthReporter(healthMgr)
	webServer.SetTelemetryDependency(collector)
	svcMgr.Register(webServer)

	ctx, cancel := ContextWithTimeout(5 * time.Second)
	defer cancel()
	if err := svcMgr.Start(ctx); err != nil {
		t.Fatalf("Failed to start services: %v", err)
	}

	env := &TestEnvironment{
		Config:     cfg,
		Logger:     log,
		Devices:    devices,
		Cameras:    cameras,
		Controller: controller,
		Telemetry:  collector,
		Publisher:  mqttPublisher,
		Broker:     broker,
		Web:        webServer,
		Services:   svcMgr,
	}
	t.Cleanup(env.Cleanup)
	return env
}

// Cleanup stops every service
func (e *TestEnvironment) Cleanup() {
	ctx, cancel := ContextWithTimeout(5 * time.Second)
	defer cancel()
	_ = e.Services.Shutdown(ctx)
}

// RecordingBroker is an in-memory MQTT broker that keeps every message
type RecordingBroker struct {
	mu        sync.Mutex
	connected bool
	topics    []string
	payloads  [][]byte
}

func (b *RecordingBroker) Connect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

func (b *RecordingBroker) Publish(topic string, _ byte, _ bool, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	b.payloads = append(b.payloads, payload)
	return nil
}

func (b *RecordingBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *RecordingBroker) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
}

// Messages returns the topics and payloads published so far
func (b *RecordingBroker) Messages() ([]string, [][]byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.topics...), append([][]byte(nil), b.payloads...)
}

// RenderEAN13 draws value as an EAN-13 symbol on a white camera-sized frame
func RenderEAN13(t *testing.T, value string) *image.RGBA {
	t.Helper()

	matrix, err := oned.NewEAN13Writer().Encode(value, gozxing.BarcodeFormat_EAN_13, 380, 120, nil)
	if err != nil {
		t.Fatalf("Failed to encode %s: %v", value, err)
	}

	img := BlankFrame()
	offX := (img.Bounds().Dx() - matrix.GetWidth()) / 2
	offY := (img.Bounds().Dy() - matrix.GetHeight()) / 2
	for y := 0; y < matrix.GetHeight(); y++ {
		for x := 0; x < matrix.GetWidth(); x++ {
			if matrix.Get(x, y) {
				img.Set(x+offX, y+offY, color.Black)
			}
		}
	}
	return img
}

// BlankFrame returns a white 640x480 frame
func BlankFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// WaitForCondition waits for a condition to become true
func WaitForCondition(timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		<-ticker.C
	}
	return condition()
}

// ContextWithTimeout creates a context with timeout for tests
func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
