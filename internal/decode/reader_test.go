package decode

import (
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageDecoder_EAN13RoundTrip(t *testing.T) {
	dec, err := NewImageDecoder(DefaultFormats, true)
	require.NoError(t, err)

	det, err := dec.Decode(renderEAN13(t, "5901234123457"))
	require.NoError(t, err)
	assert.Equal(t, "5901234123457", det.Value)
	assert.Equal(t, FormatEAN13, det.Format)
	assert.False(t, det.ObservedAt.IsZero())
}

func TestImageDecoder_UPCAKeepsTwelveDigits(t *testing.T) {
	dec, err := NewImageDecoder(DefaultFormats, true)
	require.NoError(t, err)

	img := renderBarcode(t, oned.NewUPCAWriter(), gozxing.BarcodeFormat_UPC_A, "012345678905")
	det, err := dec.Decode(img)
	require.NoError(t, err)
	assert.Equal(t, "012345678905", det.Value)
	assert.Equal(t, FormatUPCA, det.Format)
}

func TestImageDecoder_Code128(t *testing.T) {
	dec, err := NewImageDecoder([]Format{FormatCode128}, false)
	require.NoError(t, err)

	img := renderBarcode(t, oned.NewCode128Writer(), gozxing.BarcodeFormat_CODE_128, "LOT-42")
	det, err := dec.Decode(img)
	require.NoError(t, err)
	assert.Equal(t, "LOT-42", det.Value)
	assert.Equal(t, FormatCode128, det.Format)
}

func TestImageDecoder_NoSymbol(t *testing.T) {
	dec, err := NewImageDecoder(nil, true)
	require.NoError(t, err)

	_, err = dec.Decode(blankFrame())
	assert.ErrorIs(t, err, ErrNoSymbol)

	_, err = dec.Decode(nil)
	assert.ErrorIs(t, err, ErrNoSymbol)
}

func TestImageDecoder_RespectsAllowlist(t *testing.T) {
	dec, err := NewImageDecoder([]Format{FormatCode128}, true)
	require.NoError(t, err)

	_, err = dec.Decode(renderEAN13(t, "5901234123457"))
	assert.ErrorIs(t, err, ErrNoSymbol)
}

func TestImageDecoder_ResetDisablesDecoder(t *testing.T) {
	dec, err := NewImageDecoder(nil, true)
	require.NoError(t, err)
	dec.Reset()

	_, err = dec.Decode(renderEAN13(t, "5901234123457"))
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestParseFormats(t *testing.T) {
	formats, err := ParseFormats(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultFormats, formats)

	formats, err = ParseFormats([]string{" EAN_13", "itf", "ean_13"})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatEAN13, FormatITF}, formats)

	_, err = ParseFormats([]string{"qr_code"})
	assert.Error(t, err)
}

func TestOrderedFormats_UPCABeforeEAN13(t *testing.T) {
	assert.Equal(t, []Format{FormatUPCA, FormatEAN13, FormatCode128},
		orderedFormats([]Format{FormatCode128, FormatEAN13, FormatUPCA}))
}
