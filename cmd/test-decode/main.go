package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/vzahanych/barcode-scanner/internal/config"
	"github.com/vzahanych/barcode-scanner/internal/decode"
)

func main() {
	var formats string
	var tryHarder bool
	flag.StringVar(&formats, "formats", strings.Join(config.DefaultFormats, ","), "Comma-separated symbologies to look for")
	flag.BoolVar(&tryHarder, "try-harder", true, "Spend more time looking for a symbol")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: test-decode [-formats ean_13,upc_a] [-try-harder=false] image.png [image.jpg ...]")
		os.Exit(2)
	}

	allowed, err := decode.ParseFormats(strings.Split(formats, ","))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid formats: %v\n", err)
		os.Exit(2)
	}

	decoder, err := decode.NewImageDecoder(allowed, tryHarder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create decoder: %v\n", err)
		os.Exit(1)
	}
	defer decoder.Reset()

	failed := 0
	for _, path := range flag.Args() {
		img, err := loadImage(path)
		if err != nil {
			fmt.Printf("%s: ❌ %v\n", path, err)
			failed++
			continue
		}

		d, err := decoder.Decode(img)
		switch {
		case errors.Is(err, decode.ErrNoSymbol):
			fmt.Printf("%s: no barcode found\n", path)
			failed++
		case err != nil:
			fmt.Printf("%s: ❌ %v\n", path, err)
			failed++
		default:
			fmt.Printf("%s: %s %s\n", path, d.Format, d.Value)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
