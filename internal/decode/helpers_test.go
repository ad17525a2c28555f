package decode

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/stretchr/testify/require"
)

// renderBarcode draws an encoded symbol onto a white padded RGBA canvas
func renderBarcode(t *testing.T, writer gozxing.Writer, format gozxing.BarcodeFormat, value string) *image.RGBA {
	t.Helper()

	matrix, err := writer.Encode(value, format, 380, 120, nil)
	require.NoError(t, err)

	const pad = 20
	w, h := matrix.GetWidth(), matrix.GetHeight()
	img := image.NewRGBA(image.Rect(0, 0, w+2*pad, h+2*pad))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if matrix.Get(x, y) {
				img.Set(x+pad, y+pad, color.Black)
			}
		}
	}
	return img
}

func renderEAN13(t *testing.T, value string) *image.RGBA {
	return renderBarcode(t, oned.NewEAN13Writer(), gozxing.BarcodeFormat_EAN_13, value)
}

func blankFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// staticSource always serves the same frame under a fixed sequence number
type staticSource struct {
	mu  sync.Mutex
	img image.Image
	seq uint64
}

func (s *staticSource) Latest() (image.Image, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return nil, 0, false
	}
	return s.img, s.seq, true
}

func (s *staticSource) set(img image.Image) {
	s.mu.Lock()
	s.img = img
	s.seq++
	s.mu.Unlock()
}

// fakeDetector is a scripted NativeDetector
type fakeDetector struct {
	mu         sync.Mutex
	initErr    error
	candidates []Candidate
	detectErr  error
	calls      int
	closed     bool
	formats    []Format
}

func (f *fakeDetector) Init(formats []Format) error {
	f.formats = formats
	return f.initErr
}

func (f *fakeDetector) Detect(_ context.Context, _ image.Image) ([]Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.candidates, f.detectErr
}

func (f *fakeDetector) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var errDetector = errors.New("detector exploded")
