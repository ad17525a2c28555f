package camera

import (
	"fmt"

	"github.com/vzahanych/barcode-scanner/internal/config"
	"github.com/vzahanych/barcode-scanner/internal/logger"
)

// Back-end names accepted in camera.backend
const (
	BackendPion   = "pion"
	BackendFFmpeg = "ffmpeg"
)

// NewMediaDevices creates the configured back-end
func NewMediaDevices(cfg config.CameraConfig, log *logger.Logger) (MediaDevices, error) {
	switch cfg.Backend {
	case BackendPion, "":
		return NewPionDevices(), nil
	case BackendFFmpeg:
		return NewFFmpegDevices(cfg.Input, log)
	}
	return nil, fmt.Errorf("unknown camera backend: %s", cfg.Backend)
}

// ManagerConfigFrom maps camera configuration onto a ManagerConfig
func ManagerConfigFrom(cfg config.CameraConfig) ManagerConfig {
	return ManagerConfig{
		Constraints: Constraints{
			MinWidth:    cfg.MinWidth,
			MinHeight:   cfg.MinHeight,
			IdealWidth:  cfg.IdealWidth,
			IdealHeight: cfg.IdealHeight,
			FrameRate:   cfg.FrameRate,
		},
		AcquireTimeout: cfg.AcquireTimeout,
		TorchProber:    NewV4L2TorchProber(cfg.TorchDevice),
	}
}
