package decode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vzahanych/barcode-scanner/internal/logger"
)

// DefaultScanInterval is the software loop period when none is configured
const DefaultScanInterval = 100 * time.Millisecond

// SoftwareConfig configures the software strategy
type SoftwareConfig struct {
	Formats      []Format
	TryHarder    bool
	ScanInterval time.Duration
}

// Software is the bundled gozxing fallback. It attaches to the live source
// and paces itself, independent of the frame sampler.
type Software struct {
	cfg SoftwareConfig
	log *logger.Logger

	mu      sync.Mutex
	decoder *ImageDecoder
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSoftware creates a software strategy. Readers are built on Start.
func NewSoftware(cfg SoftwareConfig, log *logger.Logger) *Software {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = DefaultFormats
	}
	return &Software{cfg: cfg, log: log}
}

// Kind implements Strategy
func (s *Software) Kind() Kind {
	return KindSoftware
}

// Start begins continuous decoding of src until Stop or ctx is done
func (s *Software) Start(ctx context.Context, src FrameSource, emit Emitter) error {
	if src == nil || emit == nil {
		return errors.New("software strategy needs a source and an emitter")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("software strategy already started")
	}

	decoder, err := NewImageDecoder(s.cfg.Formats, s.cfg.TryHarder)
	if err != nil {
		return fmt.Errorf("failed to create readers: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.decoder = decoder
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(loopCtx, decoder, src, emit, s.done)

	s.log.Debug("Software decoder started",
		"formats", decoder.Formats(),
		"try_harder", s.cfg.TryHarder,
		"interval", s.cfg.ScanInterval)
	return nil
}

func (s *Software) loop(ctx context.Context, decoder *ImageDecoder, src FrameSource, emit Emitter, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		img, seq, ok := src.Latest()
		if !ok || seq == lastSeq {
			continue
		}
		lastSeq = seq

		det, err := decoder.Decode(img)
		if err != nil {
			if !errors.Is(err, ErrNoSymbol) {
				s.log.Debug("Software decode attempt failed", "error", err)
			}
			continue
		}
		if ctx.Err() != nil {
			return
		}
		emit(det)
	}
}

// Stop halts the loop, waits for it to exit and resets every reader.
// Stopping a strategy that is not running is a no-op.
func (s *Software) Stop() error {
	s.mu.Lock()
	cancel, done, decoder := s.cancel, s.done, s.decoder
	s.cancel, s.done, s.decoder = nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	decoder.Reset()

	s.log.Debug("Software decoder stopped")
	return nil
}

// Running reports whether the loop is active
func (s *Software) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
