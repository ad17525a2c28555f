package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	// registers the v4l2 camera driver
	_ "github.com/pion/mediadevices/pkg/driver/camera"
)

// PionDevices is the mediadevices back-end
type PionDevices struct {
	enumerate    func() []mediadevices.MediaDeviceInfo
	getUserMedia func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
}

// NewPionDevices creates the default camera back-end
func NewPionDevices() *PionDevices {
	return &PionDevices{
		enumerate:    mediadevices.EnumerateDevices,
		getUserMedia: mediadevices.GetUserMedia,
	}
}

// Enumerate implements MediaDevices
func (p *PionDevices) Enumerate(_ context.Context) ([]DeviceInfo, error) {
	var devices []DeviceInfo
	for _, d := range p.enumerate() {
		if d.Kind != mediadevices.VideoInput {
			continue
		}
		info := DeviceInfo{ID: d.DeviceID, Label: d.Label}
		// the v4l2 driver labels devices with their node path first
		for _, part := range strings.Split(d.Label, ";") {
			if strings.HasPrefix(part, "/dev/video") {
				info.Path = part
				break
			}
		}
		devices = append(devices, info)
	}
	return devices, nil
}

// Open implements MediaDevices
func (p *PionDevices) Open(ctx context.Context, device DeviceInfo, c Constraints) (Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream, err := p.getUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(mc *mediadevices.MediaTrackConstraints) {
			mc.DeviceID = prop.String(device.ID)
			mc.Width = prop.IntRanged{Min: c.MinWidth, Ideal: c.IdealWidth}
			mc.Height = prop.IntRanged{Min: c.MinHeight, Ideal: c.IdealHeight}
			if c.FrameRate > 0 {
				mc.FrameRate = prop.Float(c.FrameRate)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getUserMedia on %s: %w", device.ID, err)
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, newAcquisitionError(ConstraintsUnsatisfiable, errors.New("stream has no video track"))
	}

	vt, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		for _, t := range tracks {
			t.Close()
		}
		return nil, fmt.Errorf("unexpected track type %T", tracks[0])
	}

	// extra tracks are never used
	for _, t := range tracks[1:] {
		t.Close()
	}

	return &pionTrack{track: vt, reader: vt.NewReader(false)}, nil
}

type pionTrack struct {
	track  *mediadevices.VideoTrack
	reader video.Reader
}

func (t *pionTrack) ReadFrame() (image.Image, func(), error) {
	return t.reader.Read()
}

func (t *pionTrack) Close() error {
	return t.track.Close()
}
