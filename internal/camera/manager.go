package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vzahanych/barcode-scanner/internal/logger"
)

// DefaultAcquireTimeout bounds a single acquisition
const DefaultAcquireTimeout = 10 * time.Second

// Handle is an acquired stream. It is owned by exactly one session and
// released through Manager.Release.
type Handle struct {
	id         string
	device     DeviceInfo
	track      Track
	feed       *Feed
	torch      Torch
	acquiredAt time.Time

	mu       sync.Mutex
	torchOn  bool
	released bool
}

// ID returns the handle identifier
func (h *Handle) ID() string { return h.id }

// Device returns the device the stream was opened on
func (h *Handle) Device() DeviceInfo { return h.device }

// AcquiredAt returns when the stream was opened
func (h *Handle) AcquiredAt() time.Time { return h.acquiredAt }

// Feed returns the live frame feed used by decode consumers
func (h *Handle) Feed() *Feed { return h.feed }

// Preview returns the latest frame for display
func (h *Handle) Preview() (image.Image, bool) {
	img, _, ok := h.feed.Latest()
	return img, ok
}

// TorchAvailable reports whether the torch probe found a usable light
func (h *Handle) TorchAvailable() bool {
	return h.torch != nil
}

// TorchOn reports the last torch state successfully applied
func (h *Handle) TorchOn() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.torchOn
}

// SetTorch switches the torch. It fails when no torch is available or the
// handle has been released.
func (h *Handle) SetTorch(ctx context.Context, on bool) error {
	if h.torch == nil {
		return ErrTorchUnsupported
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return errors.New("stream released")
	}
	if err := h.torch.Set(ctx, on); err != nil {
		return err
	}
	h.torchOn = on
	return nil
}

// Released reports whether the handle has been released
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Stats counts stream acquisitions and releases
type Stats struct {
	Acquired    int64 `json:"acquired"`
	Released    int64 `json:"released"`
	Outstanding int64 `json:"outstanding"`
	Orphans     int   `json:"orphans"`
}

// ManagerConfig configures a Manager
type ManagerConfig struct {
	Constraints    Constraints
	AcquireTimeout time.Duration
	TorchProber    TorchProber
}

// Manager acquires and releases camera streams
type Manager struct {
	devices MediaDevices
	cfg     ManagerConfig
	log     *logger.Logger

	mu      sync.Mutex
	orphans map[string]chan struct{}

	acquired atomic.Int64
	released atomic.Int64
}

// NewManager creates a camera manager over a media back-end
func NewManager(devices MediaDevices, cfg ManagerConfig, log *logger.Logger) *Manager {
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.Constraints == (Constraints{}) {
		cfg.Constraints = DefaultConstraints()
	}
	if cfg.TorchProber == nil {
		cfg.TorchProber = NoTorch
	}
	return &Manager{
		devices: devices,
		cfg:     cfg,
		log:     log,
		orphans: make(map[string]chan struct{}),
	}
}

type acquireResult struct {
	handle *Handle
	err    error
}

// Acquire opens a stream for the preferred facing, degrading to any video
// device. It fails with *AcquisitionError; a stream that opens after the
// timeout or after ctx is cancelled is released here and never returned.
// The acquire timeout also bounds the wait for earlier abandoned streams.
func (m *Manager) Acquire(ctx context.Context, facing Facing) (*Handle, error) {
	acqCtx, cancel := context.WithTimeout(ctx, m.cfg.AcquireTimeout)
	defer cancel()

	if err := m.waitOrphans(acqCtx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, newAcquisitionError(DeviceUnavailable,
			fmt.Errorf("previous stream still pending after %s", m.cfg.AcquireTimeout))
	}

	results := make(chan acquireResult, 1)
	go func() {
		h, err := m.open(acqCtx, facing)
		results <- acquireResult{handle: h, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			return nil, r.err
		}
		if ctx.Err() != nil {
			m.Release(r.handle)
			return nil, ctx.Err()
		}
		return r.handle, nil
	case <-acqCtx.Done():
		m.reapOrphan(results)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, newAcquisitionError(DeviceUnavailable,
			fmt.Errorf("no stream within %s", m.cfg.AcquireTimeout))
	}
}

// reapOrphan releases whatever an abandoned acquisition eventually yields
func (m *Manager) reapOrphan(results <-chan acquireResult) {
	id := uuid.NewString()
	done := make(chan struct{})

	m.mu.Lock()
	m.orphans[id] = done
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.orphans, id)
			m.mu.Unlock()
			close(done)
		}()

		r := <-results
		if r.handle != nil {
			m.log.Warn("Releasing stream that arrived after acquisition was abandoned",
				"handle", r.handle.id)
			m.Release(r.handle)
		}
	}()
}

// waitOrphans blocks until abandoned acquisitions have settled so two
// streams never overlap
func (m *Manager) waitOrphans(ctx context.Context) error {
	m.mu.Lock()
	pending := make([]chan struct{}, 0, len(m.orphans))
	for _, ch := range m.orphans {
		pending = append(pending, ch)
	}
	m.mu.Unlock()

	for _, ch := range pending {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Manager) open(ctx context.Context, facing Facing) (*Handle, error) {
	devices, err := m.devices.Enumerate(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to enumerate devices: %w", err))
	}
	if len(devices) == 0 {
		return nil, newAcquisitionError(DeviceNotFound, errors.New("no video input devices"))
	}

	var firstErr *AcquisitionError
	for _, device := range orderByFacing(devices, facing) {
		track, err := m.devices.Open(ctx, device, m.cfg.Constraints)
		if err != nil {
			acqErr := classify(err)
			m.log.Debug("Failed to open video device",
				"device", device.ID,
				"label", device.Label,
				"kind", acqErr.Kind,
				"error", err)
			if firstErr == nil {
				firstErr = acqErr
			}
			// permission applies to every device
			if acqErr.Kind == PermissionDenied || ctx.Err() != nil {
				return nil, acqErr
			}
			continue
		}

		m.acquired.Add(1)
		h := &Handle{
			id:         uuid.NewString(),
			device:     device,
			track:      track,
			feed:       newFeed(track, m.log),
			acquiredAt: time.Now(),
		}

		torch, err := m.cfg.TorchProber(ctx, device)
		switch {
		case err == nil:
			h.torch = torch
		case errors.Is(err, ErrTorchUnsupported):
		default:
			m.log.Warn("Torch probe failed", "device", device.ID, "error", err)
		}

		m.log.Info("Camera stream acquired",
			"handle", h.id,
			"device", device.ID,
			"label", device.Label,
			"torch", h.TorchAvailable())
		return h, nil
	}
	return nil, firstErr
}

// Release stops the stream's track and detaches its feed. Releasing nil or an
// already released handle does nothing.
func (m *Manager) Release(h *Handle) {
	if h == nil {
		return
	}

	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	torchOn := h.torchOn
	h.torchOn = false
	h.mu.Unlock()

	if torchOn && h.torch != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := h.torch.Set(ctx, false); err != nil {
			m.log.Warn("Failed to switch torch off", "handle", h.id, "error", err)
		}
		cancel()
	}

	if err := h.track.Close(); err != nil {
		m.log.Warn("Failed to stop video track", "handle", h.id, "error", err)
	}
	h.feed.detach()

	m.released.Add(1)
	m.log.Info("Camera stream released", "handle", h.id, "held", time.Since(h.acquiredAt))
}

// Stats returns acquisition counters
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	orphans := len(m.orphans)
	m.mu.Unlock()

	acquired, released := m.acquired.Load(), m.released.Load()
	return Stats{
		Acquired:    acquired,
		Released:    released,
		Outstanding: acquired - released,
		Orphans:     orphans,
	}
}

// Devices lists the video inputs the back-end can see
func (m *Manager) Devices(ctx context.Context) ([]DeviceInfo, error) {
	return m.devices.Enumerate(ctx)
}
