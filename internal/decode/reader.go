package decode

import (
	"fmt"
	"image"
	"time"

	"github.com/makiuchi-d/gozxing"
)

// ImageDecoder runs the gozxing one-d readers for an allowlist of formats
// over still images. It is not safe for concurrent use.
type ImageDecoder struct {
	formats []Format
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
	now     func() time.Time
}

// NewImageDecoder builds one reader per allowed format
func NewImageDecoder(formats []Format, tryHarder bool) (*ImageDecoder, error) {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	ordered := orderedFormats(formats)
	if len(ordered) == 0 {
		return nil, fmt.Errorf("no supported formats in %v", formats)
	}

	possible := make([]gozxing.BarcodeFormat, 0, len(ordered))
	readers := make([]gozxing.Reader, 0, len(ordered))
	for _, f := range ordered {
		possible = append(possible, zxingFormats[f])
		readers = append(readers, newReader(f))
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_POSSIBLE_FORMATS: possible,
	}
	if tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	return &ImageDecoder{
		formats: ordered,
		readers: readers,
		hints:   hints,
		now:     time.Now,
	}, nil
}

// Formats returns the formats the decoder tries, in order
func (d *ImageDecoder) Formats() []Format {
	return append([]Format(nil), d.formats...)
}

// Decode returns the first symbol found in img, or ErrNoSymbol
func (d *ImageDecoder) Decode(img image.Image) (Detection, error) {
	if img == nil {
		return Detection{}, ErrNoSymbol
	}
	if d.readers == nil {
		return Detection{}, ErrNotStarted
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return Detection{}, fmt.Errorf("failed to binarize frame: %w", err)
	}

	for _, r := range d.readers {
		result, err := r.Decode(bmp, d.hints)
		if err != nil {
			// not found, checksum and format failures are per-frame noise
			continue
		}
		return Detection{
			Value:      result.GetText(),
			Format:     formatFromZXing(result.GetBarcodeFormat()),
			ObservedAt: d.now(),
		}, nil
	}
	return Detection{}, ErrNoSymbol
}

// Reset clears reader state and drops the readers. The decoder cannot be
// used afterwards.
func (d *ImageDecoder) Reset() {
	for _, r := range d.readers {
		r.Reset()
	}
	d.readers = nil
	d.hints = nil
}
