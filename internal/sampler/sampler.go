// Package sampler copies live video frames into a reusable buffer once per
// display refresh and hands each copy to a frame callback.
package sampler

import (
	"context"
	"errors"
	"image"
	"image/draw"
	"sync"
	"sync/atomic"

	"github.com/vzahanych/barcode-scanner/internal/logger"
)

// DefaultRefreshHz is the tick rate when no refresh signal is supplied
const DefaultRefreshHz = 60

// VideoSource is the live video being sampled. Latest returns false until the
// source holds enough data for a frame.
type VideoSource interface {
	Latest() (image.Image, uint64, bool)
}

// FrameFunc receives the snapshot buffer. The buffer is reused on the next
// tick and must not be retained.
type FrameFunc func(ctx context.Context, frame *image.RGBA)

// SignalFactory creates the refresh signal for one run
type SignalFactory func() RefreshSignal

// Stats counts sampler activity
type Stats struct {
	Ticks   uint64 `json:"ticks"`
	Skipped uint64 `json:"skipped"`
	Sampled uint64 `json:"sampled"`
}

// Sampler drives a FrameFunc in lock-step with a RefreshSignal
type Sampler struct {
	newSignal SignalFactory
	log       *logger.Logger

	mu     sync.Mutex
	signal RefreshSignal
	cancel context.CancelFunc
	done   chan struct{}
	buffer *image.RGBA

	ticks   atomic.Uint64
	skipped atomic.Uint64
	sampled atomic.Uint64
}

// New creates a sampler ticking at hz
func New(hz int, log *logger.Logger) *Sampler {
	return NewWithSignal(func() RefreshSignal { return NewTickerSignal(hz) }, log)
}

// NewWithSignal creates a sampler using a custom refresh signal
func NewWithSignal(factory SignalFactory, log *logger.Logger) *Sampler {
	return &Sampler{newSignal: factory, log: log}
}

// Start begins sampling src. Only one run may be active at a time.
func (s *Sampler) Start(ctx context.Context, src VideoSource, onFrame FrameFunc) error {
	if src == nil || onFrame == nil {
		return errors.New("sampler needs a source and a frame callback")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("sampler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	signal := s.newSignal()
	s.signal = signal
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx, signal, src, onFrame, s.done)
	return nil
}

func (s *Sampler) run(ctx context.Context, signal RefreshSignal, src VideoSource, onFrame FrameFunc, done chan struct{}) {
	defer close(done)

	stop := context.AfterFunc(ctx, signal.Stop)
	defer stop()

	for signal.Next() {
		if ctx.Err() != nil {
			return
		}
		s.ticks.Add(1)

		img, _, ok := src.Latest()
		if !ok || img == nil || img.Bounds().Empty() {
			s.skipped.Add(1)
			continue
		}

		frame := s.snapshot(img)
		s.sampled.Add(1)
		onFrame(ctx, frame)
	}
}

// snapshot copies img into the reusable buffer at its native size
func (s *Sampler) snapshot(img image.Image) *image.RGBA {
	b := img.Bounds()
	size := image.Rect(0, 0, b.Dx(), b.Dy())

	s.mu.Lock()
	if s.buffer == nil || s.buffer.Bounds() != size {
		s.buffer = image.NewRGBA(size)
		s.log.Debug("Sampler buffer allocated", "width", b.Dx(), "height", b.Dy())
	}
	buf := s.buffer
	s.mu.Unlock()

	draw.Draw(buf, size, img, b.Min, draw.Src)
	return buf
}

// Stop cancels the pending tick and waits for an in-flight one to finish.
// It is a no-op when the sampler is not running. Stop must not be called
// from inside the frame callback.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, signal, done := s.cancel, s.signal, s.done
	s.cancel, s.signal, s.done = nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	signal.Stop()
	<-done

	s.mu.Lock()
	s.buffer = nil
	s.mu.Unlock()
}

// Running reports whether a run is active
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Stats returns counters accumulated since the sampler was created
func (s *Sampler) Stats() Stats {
	return Stats{
		Ticks:   s.ticks.Load(),
		Skipped: s.skipped.Load(),
		Sampled: s.sampled.Load(),
	}
}
