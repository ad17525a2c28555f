package scanner

import (
	"fmt"

	"github.com/vzahanych/barcode-scanner/internal/camera"
	"github.com/vzahanych/barcode-scanner/internal/config"
	"github.com/vzahanych/barcode-scanner/internal/decode"
	"github.com/vzahanych/barcode-scanner/internal/logger"
	"github.com/vzahanych/barcode-scanner/internal/probe"
	"github.com/vzahanych/barcode-scanner/internal/sampler"
)

// OptionsFromConfig builds controller options backed by the zbarimg
// detector, the gozxing decoder and a ticker-driven sampler
func OptionsFromConfig(cfg *config.Config, log *logger.Logger) (Options, error) {
	formats, err := decode.ParseFormats(cfg.Decode.Formats)
	if err != nil {
		return Options{}, fmt.Errorf("invalid decode formats: %w", err)
	}

	env := probe.HostEnvironment(cfg.Decode.Accelerated, cfg.Decode.ZBarPath)
	decodeLog := log.Named("decode")
	software := decode.SoftwareConfig{
		Formats:      formats,
		TryHarder:    cfg.Decode.Software.TryHarderEnabled(),
		ScanInterval: cfg.Decode.Software.ScanInterval,
	}
	refreshHz := cfg.Sampler.RefreshHz

	return Options{
		Facing:      camera.ParseFacing(cfg.Camera.Facing),
		Cooldown:    cfg.Decode.Cooldown,
		Accelerated: func() bool { return probe.Accelerated(env) },
		NewAccelerated: func() (decode.Strategy, error) {
			return decode.NewAccelerated(decode.NewZBarDetector(cfg.Decode.ZBarPath), formats, decodeLog)
		},
		NewSoftware: func() decode.Strategy {
			return decode.NewSoftware(software, decodeLog)
		},
		NewSampler: func() FrameSampler {
			return sampler.New(refreshHz, log.Named("sampler"))
		},
	}, nil
}
