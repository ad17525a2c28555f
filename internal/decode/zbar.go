package decode

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"
)

// zbarimg exits with status 4 when the image holds no symbol
const zbarNoSymbolExit = 4

// ZBarDetector runs the zbarimg binary on each frame, piping a PNG on stdin
type ZBarDetector struct {
	path    string
	args    []string
	encoder png.Encoder
}

// NewZBarDetector creates a detector for the zbarimg binary at path
func NewZBarDetector(path string) *ZBarDetector {
	if path == "" {
		path = "zbarimg"
	}
	return &ZBarDetector{
		path:    path,
		encoder: png.Encoder{CompressionLevel: png.BestSpeed},
	}
}

// Init resolves the binary, checks that it runs and builds the symbology allowlist
func (z *ZBarDetector) Init(formats []Format) error {
	resolved, err := exec.LookPath(z.path)
	if err != nil {
		return fmt.Errorf("zbarimg not found: %w", err)
	}

	if out, err := exec.Command(resolved, "--version").CombinedOutput(); err != nil {
		return fmt.Errorf("zbarimg --version failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	z.path = resolved
	z.args = zbarArgs(formats)
	return nil
}

// zbarArgs disables every symbology, then enables the allowed ones
func zbarArgs(formats []Format) []string {
	args := []string{"--quiet", "-Sdisable"}
	for _, f := range orderedFormats(formats) {
		args = append(args, "-S"+zbarSymbologies[f]+".enable")
	}
	return append(args, "png:-")
}

// Args returns the command line used per frame
func (z *ZBarDetector) Args() []string {
	return append([]string(nil), z.args...)
}

// Detect implements NativeDetector
func (z *ZBarDetector) Detect(ctx context.Context, frame image.Image) ([]Candidate, error) {
	if z.args == nil {
		return nil, ErrNotStarted
	}

	var in bytes.Buffer
	if err := z.encoder.Encode(&in, frame); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	cmd := exec.CommandContext(ctx, z.path, z.args...)
	cmd.Stdin = &in
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == zbarNoSymbolExit {
			return nil, nil
		}
		return nil, fmt.Errorf("zbarimg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseZBarOutput(out), nil
}

// Close implements NativeDetector
func (z *ZBarDetector) Close() error {
	return nil
}

// parseZBarOutput reads "SYMBOLOGY:value" lines
func parseZBarOutput(out []byte) []Candidate {
	var candidates []Candidate
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		symbology, value, ok := strings.Cut(line, ":")
		if !ok || value == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			Value:  value,
			Format: formatFromZBar(symbology),
		})
	}
	return candidates
}
