package camera

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// v4l2 flash_led_mode menu values
const (
	flashModeNone  = 0
	flashModeTorch = 2
)

// ErrTorchUnsupported is returned when a device has no torch control
var ErrTorchUnsupported = errors.New("torch not supported")

// Torch switches a camera light
type Torch interface {
	Set(ctx context.Context, on bool) error
}

// TorchProber inspects an opened device for a torch
type TorchProber func(ctx context.Context, device DeviceInfo) (Torch, error)

// NoTorch is a prober for back-ends without torch control
func NoTorch(context.Context, DeviceInfo) (Torch, error) {
	return nil, ErrTorchUnsupported
}

// V4L2Torch drives the flash_led_mode control through v4l2-ctl
type V4L2Torch struct {
	device string
	run    commandRunner
	mu     sync.Mutex
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// NewV4L2TorchProber returns a prober that looks for flash_led_mode on the
// device path, or on override when set
func NewV4L2TorchProber(override string) TorchProber {
	return newV4L2TorchProber(override, exec.LookPath, runCommand)
}

func newV4L2TorchProber(override string, lookPath func(string) (string, error), run commandRunner) TorchProber {
	return func(ctx context.Context, device DeviceInfo) (Torch, error) {
		path := override
		if path == "" {
			path = device.Path
		}
		if path == "" {
			return nil, ErrTorchUnsupported
		}

		if _, err := lookPath("v4l2-ctl"); err != nil {
			return nil, fmt.Errorf("v4l2-ctl not available: %w", err)
		}

		out, err := run(ctx, "v4l2-ctl", "--device", path, "--list-ctrls-menus")
		if err != nil {
			return nil, fmt.Errorf("failed to list controls on %s: %w", path, err)
		}
		if !hasTorchMode(string(out)) {
			return nil, ErrTorchUnsupported
		}
		return &V4L2Torch{device: path, run: run}, nil
	}
}

// hasTorchMode looks for a flash_led_mode control offering the Torch entry
func hasTorchMode(controls string) bool {
	inFlash := false
	for _, line := range strings.Split(controls, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "flash_led_mode") {
			inFlash = true
			continue
		}
		if inFlash {
			// menu entries are indented "N: Label" lines
			if _, label, ok := strings.Cut(trimmed, ":"); ok && strings.EqualFold(strings.TrimSpace(label), "torch") {
				return true
			}
			if !strings.Contains(trimmed, ":") || strings.Contains(trimmed, "0x") {
				inFlash = false
			}
		}
	}
	return false
}

// Set implements Torch
func (t *V4L2Torch) Set(ctx context.Context, on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	mode := flashModeNone
	if on {
		mode = flashModeTorch
	}
	out, err := t.run(ctx, "v4l2-ctl", "--device", t.device, fmt.Sprintf("--set-ctrl=flash_led_mode=%d", mode))
	if err != nil {
		return fmt.Errorf("failed to set torch on %s: %w: %s", t.device, err, strings.TrimSpace(string(out)))
	}
	return nil
}
