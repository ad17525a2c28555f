package web

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/vzahanych/barcode-scanner/internal/config"
	"github.com/vzahanych/barcode-scanner/internal/health"
	"github.com/vzahanych/barcode-scanner/internal/logger"
	"github.com/vzahanych/barcode-scanner/internal/scanner"
	"github.com/vzahanych/barcode-scanner/internal/service"
)

type fakeScanner struct {
	mu          sync.Mutex
	activateErr error
	torchErr    error
	torch       bool
	activations int
	deactivated int
	result      *scanner.Result
	frame       image.Image
	status      scanner.Status
}

func (f *fakeScanner) Activate(func(string), func(scanner.ErrorKind)) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activateErr != nil {
		return "", f.activateErr
	}
	f.activations++
	f.status.State = scanner.StateAcquiring
	f.status.SessionID = "session-1"
	return "session-1", nil
}

func (f *fakeScanner) Deactivate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivated++
	f.status.State = scanner.StateIdle
	f.status.SessionID = ""
}

func (f *fakeScanner) ToggleTorch(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.torchErr != nil {
		return f.torch, f.torchErr
	}
	f.torch = !f.torch
	return f.torch, nil
}

func (f *fakeScanner) Snapshot() scanner.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeScanner) LastResult() (scanner.Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result == nil {
		return scanner.Result{}, false
	}
	return *f.result, true
}

func (f *fakeScanner) Preview() (image.Image, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame, f.frame != nil
}

type fakeStatuses []service.StatusReport

func (f fakeStatuses) GetAllStatuses() []service.StatusReport { return f }

type unhealthyChecker struct{}

func (unhealthyChecker) Name() string { return "camera" }

func (unhealthyChecker) Check(context.Context) health.Check {
	return health.Check{Name: "camera", Status: health.StatusUnhealthy, Message: "no driver"}
}

type fakeConfigService struct {
	cfg       *config.Config
	reloadErr error
	reloads   int
}

func (f *fakeConfigService) Get() *config.Config { return f.cfg }

func (f *fakeConfigService) Reload(context.Context) error {
	f.reloads++
	return f.reloadErr
}

func grayFrame(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 251)
	}
	img.SetGray(0, 0, color.Gray{Y: 255})
	return img
}

func newTestServer(sc Scanner) *Server {
	server := NewServer(&config.WebConfig{Enabled: true, Host: "127.0.0.1", Port: 0}, logger.NewNopLogger())
	if sc != nil {
		server.SetScanner(sc)
	}
	server.Handler()
	return server
}
