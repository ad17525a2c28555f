package camera

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vzahanych/barcode-scanner/internal/logger"
)

func TestCloneImage_CopiesPixels(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	src.SetGray(1, 1, color.Gray{Y: 200})

	dst := cloneImage(src).(*image.Gray)
	src.SetGray(1, 1, color.Gray{Y: 0})
	assert.Equal(t, uint8(200), dst.GrayAt(1, 1).Y)
}

func TestCloneImage_YCbCr(t *testing.T) {
	src := image.NewYCbCr(image.Rect(0, 0, 4, 4), image.YCbCrSubsampleRatio420)
	src.Y[0] = 99

	dst := cloneImage(src).(*image.YCbCr)
	src.Y[0] = 1
	assert.Equal(t, uint8(99), dst.Y[0])
	assert.Equal(t, src.Bounds(), dst.Bounds())
}

func TestCloneImage_OtherTypesBecomeRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(2, 2, 6, 6))
	src.Set(2, 2, color.NRGBA{R: 255, A: 255})

	dst, ok := cloneImage(src).(*image.RGBA)
	assert.True(t, ok)
	assert.Equal(t, src.Bounds(), dst.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, dst.RGBAAt(2, 2))
	assert.Nil(t, cloneImage(nil))
}

// stuckTrack blocks every read until unblock is closed
type stuckTrack struct {
	reading chan struct{}
	unblock chan struct{}
}

func (s *stuckTrack) ReadFrame() (image.Image, func(), error) {
	select {
	case s.reading <- struct{}{}:
	default:
	}
	<-s.unblock
	return image.NewGray(image.Rect(0, 0, 8, 8)), nil, nil
}

func (s *stuckTrack) Close() error { return nil }

func TestFeed_LateFrameAfterDetachIsDropped(t *testing.T) {
	saved := feedCloseTimeout
	feedCloseTimeout = 10 * time.Millisecond
	t.Cleanup(func() { feedCloseTimeout = saved })

	track := &stuckTrack{reading: make(chan struct{}, 1), unblock: make(chan struct{})}
	f := newFeed(track, logger.NewNopLogger())
	<-track.reading

	f.detach()
	close(track.unblock)

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("pump did not exit after the late frame")
	}
	_, _, ok := f.Latest()
	require.False(t, ok)
	assert.Zero(t, f.Frames())
}
