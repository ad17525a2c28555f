package decode

import (
	"fmt"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// Format is a supported 1-D symbology
type Format string

const (
	FormatEAN13   Format = "ean_13"
	FormatEAN8    Format = "ean_8"
	FormatUPCA    Format = "upc_a"
	FormatUPCE    Format = "upc_e"
	FormatCode128 Format = "code_128"
	FormatCode39  Format = "code_39"
	FormatITF     Format = "itf"
)

// DefaultFormats is the retail allowlist: two EAN, two UPC and one industrial code
var DefaultFormats = []Format{FormatEAN13, FormatEAN8, FormatUPCA, FormatUPCE, FormatCode128}

// readerOrder puts UPC-A ahead of EAN-13 so a UPC-A symbol keeps its 12-digit form
var readerOrder = []Format{FormatUPCA, FormatEAN13, FormatEAN8, FormatUPCE, FormatCode128, FormatCode39, FormatITF}

var zxingFormats = map[Format]gozxing.BarcodeFormat{
	FormatEAN13:   gozxing.BarcodeFormat_EAN_13,
	FormatEAN8:    gozxing.BarcodeFormat_EAN_8,
	FormatUPCA:    gozxing.BarcodeFormat_UPC_A,
	FormatUPCE:    gozxing.BarcodeFormat_UPC_E,
	FormatCode128: gozxing.BarcodeFormat_CODE_128,
	FormatCode39:  gozxing.BarcodeFormat_CODE_39,
	FormatITF:     gozxing.BarcodeFormat_ITF,
}

var zbarSymbologies = map[Format]string{
	FormatEAN13:   "ean13",
	FormatEAN8:    "ean8",
	FormatUPCA:    "upca",
	FormatUPCE:    "upce",
	FormatCode128: "code128",
	FormatCode39:  "code39",
	FormatITF:     "i25",
}

// ParseFormats converts configuration names into formats. An empty list
// yields DefaultFormats.
func ParseFormats(names []string) ([]Format, error) {
	if len(names) == 0 {
		return append([]Format(nil), DefaultFormats...), nil
	}

	seen := make(map[Format]bool, len(names))
	formats := make([]Format, 0, len(names))
	for _, name := range names {
		f := Format(strings.ToLower(strings.TrimSpace(name)))
		if _, ok := zxingFormats[f]; !ok {
			return nil, fmt.Errorf("unsupported format: %s", name)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		formats = append(formats, f)
	}
	return formats, nil
}

func formatFromZXing(f gozxing.BarcodeFormat) Format {
	for name, zf := range zxingFormats {
		if zf == f {
			return name
		}
	}
	return Format(strings.ToLower(f.String()))
}

func formatFromZBar(symbology string) Format {
	s := strings.ToLower(symbology)
	switch s {
	case "ean-13":
		return FormatEAN13
	case "ean-8":
		return FormatEAN8
	case "upc-a":
		return FormatUPCA
	case "upc-e":
		return FormatUPCE
	case "code-128":
		return FormatCode128
	case "code-39":
		return FormatCode39
	case "i2/5":
		return FormatITF
	}
	return Format(s)
}

func newReader(f Format) gozxing.Reader {
	switch f {
	case FormatEAN13:
		return oned.NewEAN13Reader()
	case FormatEAN8:
		return oned.NewEAN8Reader()
	case FormatUPCA:
		return oned.NewUPCAReader()
	case FormatUPCE:
		return oned.NewUPCEReader()
	case FormatCode128:
		return oned.NewCode128Reader()
	case FormatCode39:
		return oned.NewCode39Reader()
	case FormatITF:
		return oned.NewITFReader()
	}
	return nil
}

// orderedFormats returns formats in reader order, keeping only allowed ones
func orderedFormats(allowed []Format) []Format {
	set := make(map[Format]bool, len(allowed))
	for _, f := range allowed {
		set[f] = true
	}
	out := make([]Format, 0, len(allowed))
	for _, f := range readerOrder {
		if set[f] {
			out = append(out, f)
		}
	}
	return out
}
