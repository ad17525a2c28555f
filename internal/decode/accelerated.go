package decode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/vzahanych/barcode-scanner/internal/logger"
)

// Candidate is one symbol reported by a native detector
type Candidate struct {
	Value  string
	Format Format
}

// NativeDetector is a platform barcode detector driven one frame at a time
type NativeDetector interface {
	// Init prepares the detector for the given formats
	Init(formats []Format) error
	// Detect returns the symbols visible in frame; an empty slice is not an error
	Detect(ctx context.Context, frame image.Image) ([]Candidate, error)
	Close() error
}

// Accelerated decodes frames handed to it by the frame sampler
type Accelerated struct {
	detector NativeDetector
	log      *logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	emit    Emitter
	started bool
	closed  bool
}

// NewAccelerated initialises detector for formats. Any failure is reported as
// ErrAccelerationInit so the caller can fall back to the software strategy.
func NewAccelerated(detector NativeDetector, formats []Format, log *logger.Logger) (*Accelerated, error) {
	if detector == nil {
		return nil, fmt.Errorf("%w: no detector", ErrAccelerationInit)
	}
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	if err := detector.Init(formats); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccelerationInit, err)
	}
	return &Accelerated{
		detector: detector,
		log:      log,
		now:      time.Now,
	}, nil
}

// Kind implements Strategy
func (a *Accelerated) Kind() Kind {
	return KindAccelerated
}

// Start arms the strategy. Frames arrive through OnFrame, so src is unused.
func (a *Accelerated) Start(_ context.Context, _ FrameSource, emit Emitter) error {
	if emit == nil {
		return errors.New("accelerated strategy needs an emitter")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return errors.New("accelerated strategy already started")
	}
	if a.closed {
		return errors.New("accelerated strategy stopped")
	}
	a.emit = emit
	a.started = true
	return nil
}

// OnFrame runs one detection attempt. Empty results and detector errors are
// transient and only logged.
func (a *Accelerated) OnFrame(ctx context.Context, frame *image.RGBA) {
	a.mu.Lock()
	emit, started := a.emit, a.started
	a.mu.Unlock()
	if !started {
		return
	}

	candidates, err := a.detector.Detect(ctx, frame)
	if err != nil {
		if ctx.Err() == nil {
			a.log.Debug("Accelerated detect failed", "error", err)
		}
		return
	}
	if len(candidates) == 0 || ctx.Err() != nil {
		return
	}

	a.mu.Lock()
	started = a.started
	a.mu.Unlock()
	if !started {
		return
	}

	emit(Detection{
		Value:      candidates[0].Value,
		Format:     candidates[0].Format,
		ObservedAt: a.now(),
	})
}

// Stop disarms the strategy and closes the detector, started or not. Idempotent.
func (a *Accelerated) Stop() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.started = false
	a.emit = nil
	a.mu.Unlock()

	if err := a.detector.Close(); err != nil {
		return fmt.Errorf("failed to close detector: %w", err)
	}
	return nil
}
