package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vzahanych/barcode-scanner/internal/logger"
)

// FFmpegDevices is a back-end that decodes a v4l2 device, file or network
// stream with an ffmpeg subprocess emitting raw grayscale frames
type FFmpegDevices struct {
	ffmpegPath string
	input      string
	log        *logger.Logger
}

// NewFFmpegDevices creates the ffmpeg back-end for input
func NewFFmpegDevices(input string, log *logger.Logger) (*FFmpegDevices, error) {
	if input == "" {
		return nil, errors.New("ffmpeg back-end needs an input")
	}
	path, err := detectFFmpeg()
	if err != nil {
		return nil, err
	}
	return &FFmpegDevices{ffmpegPath: path, input: input, log: log}, nil
}

// detectFFmpeg finds the ffmpeg executable
func detectFFmpeg() (string, error) {
	paths := []string{"ffmpeg", "/usr/bin/ffmpeg", "/usr/local/bin/ffmpeg"}
	for _, path := range paths {
		if err := exec.Command(path, "-version").Run(); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("ffmpeg not found in PATH or common locations")
}

// Enumerate implements MediaDevices. The configured input is the only device.
func (f *FFmpegDevices) Enumerate(_ context.Context) ([]DeviceInfo, error) {
	info := DeviceInfo{ID: f.input, Label: filepath.Base(f.input)}
	if isVideoDevice(f.input) {
		if _, err := os.Stat(f.input); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil
			}
			return nil, err
		}
		info.Path = f.input
	}
	return []DeviceInfo{info}, nil
}

// Open implements MediaDevices. It returns once the first frame has been
// decoded, so input errors surface here rather than on the first read.
func (f *FFmpegDevices) Open(ctx context.Context, device DeviceInfo, c Constraints) (Track, error) {
	width, height := c.IdealWidth, c.IdealHeight
	if width <= 0 || height <= 0 {
		width, height = c.MinWidth, c.MinHeight
	}
	if width <= 0 || height <= 0 {
		return nil, newAcquisitionError(ConstraintsUnsatisfiable, fmt.Errorf("invalid frame size %dx%d", width, height))
	}

	// the process outlives ctx, which only bounds startup
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, f.ffmpegPath, buildArgs(device.ID, width, height, c.FrameRate)...)
	stderr := &syncBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	t := &ffmpegTrack{
		cmd:    cmd,
		cancel: cancel,
		stdout: stdout,
		stderr: stderr,
		width:  width,
		height: height,
	}

	first := make(chan error, 1)
	go func() {
		img, err := t.read()
		if err == nil {
			t.pending = img
		}
		first <- err
	}()

	select {
	case err := <-first:
		if err != nil {
			t.Close()
			return nil, t.describe(err)
		}
	case <-ctx.Done():
		t.Close()
		<-first
		return nil, ctx.Err()
	}

	f.log.Debug("ffmpeg stream started", "input", device.ID, "width", width, "height", height)
	return t, nil
}

func isVideoDevice(input string) bool {
	return strings.HasPrefix(input, "/dev/video")
}

func isRegularFile(input string) bool {
	info, err := os.Stat(input)
	return err == nil && info.Mode().IsRegular()
}

func buildArgs(input string, width, height, frameRate int) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}

	switch {
	case isVideoDevice(input):
		args = append(args, "-f", "v4l2")
		if frameRate > 0 {
			args = append(args, "-framerate", fmt.Sprintf("%d", frameRate))
		}
	case strings.HasPrefix(input, "rtsp://"):
		args = append(args, "-rtsp_transport", "tcp")
	case isRegularFile(input):
		// a file behaves like a camera looping in real time
		args = append(args, "-re", "-stream_loop", "-1")
	}

	args = append(args,
		"-i", input,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-",
	)
	return args
}

type ffmpegTrack struct {
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	stdout  io.ReadCloser
	stderr  *syncBuffer
	width   int
	height  int
	pending *image.Gray

	closeOnce sync.Once
}

func (t *ffmpegTrack) read() (*image.Gray, error) {
	img := image.NewGray(image.Rect(0, 0, t.width, t.height))
	if _, err := io.ReadFull(t.stdout, img.Pix); err != nil {
		return nil, err
	}
	return img, nil
}

func (t *ffmpegTrack) ReadFrame() (image.Image, func(), error) {
	if img := t.pending; img != nil {
		t.pending = nil
		return img, nil, nil
	}
	img, err := t.read()
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return nil, nil, err
	}
	return img, nil, nil
}

func (t *ffmpegTrack) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		_ = t.cmd.Wait()
	})
	return nil
}

// describe attaches ffmpeg's own diagnostics to a startup failure
func (t *ffmpegTrack) describe(err error) error {
	msg := strings.TrimSpace(t.stderr.String())
	if msg == "" {
		return fmt.Errorf("ffmpeg produced no frame: %w", err)
	}
	return fmt.Errorf("ffmpeg produced no frame: %s: %w", msg, err)
}

// syncBuffer is a bytes.Buffer safe for the writer goroutine exec starts
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
