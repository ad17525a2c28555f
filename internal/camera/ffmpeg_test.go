package camera

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildArgs_Device(t *testing.T) {
	args := buildArgs("/dev/video2", 1280, 720, 30)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", "v4l2", "-framerate", "30",
		"-i", "/dev/video2",
		"-an", "-vf", "scale=1280:720",
		"-f", "rawvideo", "-pix_fmt", "gray", "-",
	}, args)
}

func TestBuildArgs_RTSP(t *testing.T) {
	args := buildArgs("rtsp://cam.local/stream", 640, 480, 0)
	assert.Contains(t, args, "-rtsp_transport")
	assert.NotContains(t, args, "v4l2")
	assert.Contains(t, args, "scale=640:480")
}

func TestBuildArgs_FileLoops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	args := buildArgs(path, 640, 480, 30)
	assert.Equal(t, []string{"-re", "-stream_loop", "-1"}, args[4:7])
}

func TestFFmpegDevices_EnumerateMissingDevice(t *testing.T) {
	f := &FFmpegDevices{input: filepath.Join(t.TempDir(), "video9")}
	devices, err := f.Enumerate(context.Background())
	assert.NoError(t, err)
	assert.Len(t, devices, 1)

	f = &FFmpegDevices{input: "/dev/video-does-not-exist"}
	devices, err = f.Enumerate(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, devices)
}

func TestNewFFmpegDevices_RequiresInput(t *testing.T) {
	_, err := NewFFmpegDevices("", nil)
	assert.Error(t, err)
}
