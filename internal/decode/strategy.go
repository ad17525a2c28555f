// Package decode holds the two barcode decoding back-ends and the
// interface the scanner uses to drive either of them.
package decode

import (
	"context"
	"errors"
	"image"
	"time"
)

// Kind identifies the strategy running in a session
type Kind string

const (
	KindNone        Kind = "none"
	KindAccelerated Kind = "accelerated"
	KindSoftware    Kind = "software"
)

var (
	// ErrAccelerationInit is returned when the accelerated strategy cannot be
	// constructed even though the probe reported it available
	ErrAccelerationInit = errors.New("accelerated detector initialisation failed")
	// ErrNoSymbol marks a frame in which no barcode was found
	ErrNoSymbol = errors.New("no symbol found")
	// ErrNotStarted is returned by operations that need a started strategy
	ErrNotStarted = errors.New("strategy not started")
)

// Detection is one raw reading produced by a strategy
type Detection struct {
	Value      string
	Format     Format
	ObservedAt time.Time
}

// Emitter receives detections from a running strategy
type Emitter func(Detection)

// FrameSource is the live video the software strategy reads by itself.
// Latest returns the newest frame and a sequence number that increases with
// every new frame; the image must not be modified.
type FrameSource interface {
	Latest() (image.Image, uint64, bool)
}

// Strategy is a decoding back-end mounted for a single session
type Strategy interface {
	Kind() Kind
	Start(ctx context.Context, src FrameSource, emit Emitter) error
	Stop() error
}

// FrameConsumer is implemented by strategies driven by the frame sampler
type FrameConsumer interface {
	OnFrame(ctx context.Context, frame *image.RGBA)
}
