package camera

import (
	"errors"
	"image"
	"image/draw"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vzahanych/barcode-scanner/internal/logger"
)

// feedCloseTimeout bounds how long Close waits for a blocked track read
var feedCloseTimeout = 2 * time.Second

// Feed pumps frames from a track into a latest-frame slot. Readers get an
// immutable copy and never block the pump.
type Feed struct {
	track Track
	log   *logger.Logger

	mu     sync.RWMutex
	latest image.Image
	seq    uint64
	err    error

	frames atomic.Uint64
	done   chan struct{}
	closed atomic.Bool
}

func newFeed(track Track, log *logger.Logger) *Feed {
	f := &Feed{
		track: track,
		log:   log,
		done:  make(chan struct{}),
	}
	go f.pump()
	return f
}

func (f *Feed) pump() {
	defer close(f.done)

	for !f.closed.Load() {
		img, release, err := f.track.ReadFrame()
		if err != nil {
			if !f.closed.Load() && !errors.Is(err, io.EOF) {
				f.log.Warn("Video track read failed", "error", err)
			}
			f.mu.Lock()
			f.err = err
			f.mu.Unlock()
			return
		}

		frame := cloneImage(img)
		if release != nil {
			release()
		}
		if frame == nil {
			continue
		}

		// a read that outlived detach must not repopulate the slot
		f.mu.Lock()
		if f.closed.Load() {
			f.mu.Unlock()
			return
		}
		f.latest = frame
		f.seq++
		f.mu.Unlock()
		f.frames.Add(1)
	}
}

// Latest returns the newest frame and its sequence number. It reports false
// until the first frame has arrived.
func (f *Feed) Latest() (image.Image, uint64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.latest == nil {
		return nil, 0, false
	}
	return f.latest, f.seq, true
}

// Ready reports whether a frame is available
func (f *Feed) Ready() bool {
	_, _, ok := f.Latest()
	return ok
}

// Size returns the dimensions of the latest frame
func (f *Feed) Size() (int, int) {
	img, _, ok := f.Latest()
	if !ok {
		return 0, 0
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

// Frames returns the number of frames received
func (f *Feed) Frames() uint64 {
	return f.frames.Load()
}

// Err returns the error that ended the pump, if any
func (f *Feed) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

// Done is closed when the pump exits
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

// detach marks the feed closed and waits for the pump. The track must be
// closed first so a blocked read returns.
func (f *Feed) detach() {
	f.closed.Store(true)
	select {
	case <-f.done:
	case <-time.After(feedCloseTimeout):
		f.log.Warn("Video feed did not stop in time")
	}

	f.mu.Lock()
	f.latest = nil
	f.mu.Unlock()
}

// cloneImage copies a frame out of driver-owned memory
func cloneImage(img image.Image) image.Image {
	if img == nil {
		return nil
	}

	switch src := img.(type) {
	case *image.YCbCr:
		dst := *src
		dst.Y = append([]byte(nil), src.Y...)
		dst.Cb = append([]byte(nil), src.Cb...)
		dst.Cr = append([]byte(nil), src.Cr...)
		return &dst
	case *image.Gray:
		dst := *src
		dst.Pix = append([]byte(nil), src.Pix...)
		return &dst
	case *image.RGBA:
		dst := *src
		dst.Pix = append([]byte(nil), src.Pix...)
		return &dst
	}

	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}
