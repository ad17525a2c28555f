package camera

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flashControls = `
Flash Controls

                 flash_led_mode 0x009c0901 (menu)   : min=0 max=2 default=0 value=0
                                0: Off
                                1: Flash
                                2: Torch
            flash_strobe_source 0x009c0902 (menu)   : min=0 max=1 default=0 value=0
                                0: Software
                                1: External
`

const noFlashControls = `
User Controls

                     brightness 0x00980900 (int)    : min=-64 max=64 step=1 default=0 value=0
                       contrast 0x00980901 (int)    : min=0 max=95 step=1 default=0 value=0
`

type recordedRun struct {
	calls [][]string
	out   map[string]string
	err   error
}

func (r *recordedRun) run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.err != nil {
		return []byte("boom"), r.err
	}
	return []byte(r.out[args[len(args)-1]]), nil
}

func foundLookPath(string) (string, error) { return "/usr/bin/v4l2-ctl", nil }

func TestHasTorchMode(t *testing.T) {
	assert.True(t, hasTorchMode(flashControls))
	assert.False(t, hasTorchMode(noFlashControls))
	assert.False(t, hasTorchMode(""))
}

func TestV4L2TorchProber(t *testing.T) {
	r := &recordedRun{out: map[string]string{"--list-ctrls-menus": flashControls}}
	probe := newV4L2TorchProber("", foundLookPath, r.run)

	torch, err := probe(context.Background(), DeviceInfo{ID: "cam0", Path: "/dev/video0"})
	require.NoError(t, err)
	require.NotNil(t, torch)

	require.NoError(t, torch.Set(context.Background(), true))
	require.NoError(t, torch.Set(context.Background(), false))

	require.Len(t, r.calls, 3)
	assert.Equal(t, "--set-ctrl=flash_led_mode=2", r.calls[1][3])
	assert.Equal(t, "--set-ctrl=flash_led_mode=0", r.calls[2][3])
}

func TestV4L2TorchProber_Unsupported(t *testing.T) {
	r := &recordedRun{out: map[string]string{"--list-ctrls-menus": noFlashControls}}
	probe := newV4L2TorchProber("", foundLookPath, r.run)

	_, err := probe(context.Background(), DeviceInfo{Path: "/dev/video0"})
	assert.ErrorIs(t, err, ErrTorchUnsupported)

	_, err = probe(context.Background(), DeviceInfo{ID: "no-path"})
	assert.ErrorIs(t, err, ErrTorchUnsupported)
}

func TestV4L2TorchProber_OverrideAndFailures(t *testing.T) {
	r := &recordedRun{err: errors.New("exit status 1")}
	probe := newV4L2TorchProber("/dev/v4l-subdev3", foundLookPath, r.run)

	_, err := probe(context.Background(), DeviceInfo{Path: "/dev/video0"})
	require.Error(t, err)
	assert.Equal(t, "/dev/v4l-subdev3", r.calls[0][2])

	missing := newV4L2TorchProber("", func(string) (string, error) {
		return "", errors.New("not found")
	}, r.run)
	_, err = missing(context.Background(), DeviceInfo{Path: "/dev/video0"})
	assert.True(t, strings.Contains(err.Error(), "v4l2-ctl"))
}
