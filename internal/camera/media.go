// Package camera acquires and releases live video streams and keeps the
// latest frame of an acquired stream available to preview and decode consumers.
package camera

import (
	"context"
	"image"
	"strings"
)

// Facing is the preferred camera direction
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
	FacingAny         Facing = "any"
)

// ParseFacing converts a configuration value, defaulting to FacingEnvironment
func ParseFacing(s string) Facing {
	switch Facing(strings.ToLower(strings.TrimSpace(s))) {
	case FacingUser:
		return FacingUser
	case FacingAny:
		return FacingAny
	}
	return FacingEnvironment
}

// Constraints are the stream properties requested from a back-end
type Constraints struct {
	MinWidth    int
	MinHeight   int
	IdealWidth  int
	IdealHeight int
	FrameRate   int
}

// DefaultConstraints asks for at least VGA and ideally 720p
func DefaultConstraints() Constraints {
	return Constraints{
		MinWidth:    640,
		MinHeight:   480,
		IdealWidth:  1280,
		IdealHeight: 720,
		FrameRate:   30,
	}
}

// DeviceInfo describes a video input
type DeviceInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// Path is the v4l2 node for the device when known
	Path string `json:"path,omitempty"`
}

// Track is an open video track
type Track interface {
	// ReadFrame blocks until the next frame. The image is valid until release
	// is called.
	ReadFrame() (img image.Image, release func(), err error)
	Close() error
}

// MediaDevices is a video back-end
type MediaDevices interface {
	Enumerate(ctx context.Context) ([]DeviceInfo, error)
	Open(ctx context.Context, device DeviceInfo, c Constraints) (Track, error)
}

var (
	environmentHints = []string{"back", "rear", "environment", "world"}
	userHints        = []string{"front", "user", "facetime", "integrated"}
)

// orderByFacing puts devices whose label suggests the wanted facing first and
// keeps the rest as fallbacks
func orderByFacing(devices []DeviceInfo, facing Facing) []DeviceInfo {
	var hints []string
	switch facing {
	case FacingEnvironment:
		hints = environmentHints
	case FacingUser:
		hints = userHints
	default:
		return append([]DeviceInfo(nil), devices...)
	}

	preferred := make([]DeviceInfo, 0, len(devices))
	rest := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		if labelMatches(d.Label, hints) {
			preferred = append(preferred, d)
		} else {
			rest = append(rest, d)
		}
	}
	return append(preferred, rest...)
}

func labelMatches(label string, hints []string) bool {
	l := strings.ToLower(label)
	for _, h := range hints {
		if strings.Contains(l, h) {
			return true
		}
	}
	return false
}
