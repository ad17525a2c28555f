package camera

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// FakeDevices is an in-memory MediaDevices for tests in this and other packages
type FakeDevices struct {
	mu        sync.Mutex
	Devices   []DeviceInfo
	OpenErr   error
	OpenErrs  map[string]error
	OpenDelay chan struct{}
	Frame     image.Image

	opened atomic.Int64
	closed atomic.Int64
	tracks []*FakeTrack
}

// NewFakeDevices returns a back-end with one camera serving frame
func NewFakeDevices(frame image.Image) *FakeDevices {
	return &FakeDevices{
		Devices: []DeviceInfo{{ID: "cam0", Label: "Back Camera", Path: "/dev/video0"}},
		Frame:   frame,
	}
}

// Enumerate implements MediaDevices
func (f *FakeDevices) Enumerate(context.Context) ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DeviceInfo(nil), f.Devices...), nil
}

// Open implements MediaDevices
func (f *FakeDevices) Open(ctx context.Context, device DeviceInfo, _ Constraints) (Track, error) {
	f.mu.Lock()
	delay := f.OpenDelay
	err := f.OpenErr
	if e, ok := f.OpenErrs[device.ID]; ok {
		err = e
	}
	frame := f.Frame
	f.mu.Unlock()

	if delay != nil {
		// ignores ctx on purpose, like a driver stuck in open
		<-delay
	}
	if err != nil {
		return nil, err
	}

	t := &FakeTrack{frame: frame, stop: make(chan struct{}), owner: f, Device: device}
	f.mu.Lock()
	f.tracks = append(f.tracks, t)
	f.mu.Unlock()
	f.opened.Add(1)
	return t, nil
}

// SetFrame changes the frame served by tracks opened afterwards
func (f *FakeDevices) SetFrame(img image.Image) {
	f.mu.Lock()
	f.Frame = img
	for _, t := range f.tracks {
		t.setFrame(img)
	}
	f.mu.Unlock()
}

// Opened returns the number of tracks opened
func (f *FakeDevices) Opened() int64 { return f.opened.Load() }

// Closed returns the number of tracks closed
func (f *FakeDevices) Closed() int64 { return f.closed.Load() }

// Live returns the number of tracks opened but not yet closed
func (f *FakeDevices) Live() int64 { return f.opened.Load() - f.closed.Load() }

// FakeTrack serves one frame repeatedly until closed
type FakeTrack struct {
	Device DeviceInfo

	mu     sync.Mutex
	frame  image.Image
	stop   chan struct{}
	once   sync.Once
	owner  *FakeDevices
	closed bool
}

func (t *FakeTrack) setFrame(img image.Image) {
	t.mu.Lock()
	t.frame = img
	t.mu.Unlock()
}

// ReadFrame implements Track
func (t *FakeTrack) ReadFrame() (image.Image, func(), error) {
	select {
	case <-t.stop:
		return nil, nil, io.EOF
	default:
	}

	t.mu.Lock()
	frame := t.frame
	t.mu.Unlock()

	if frame == nil {
		<-t.stop
		return nil, nil, io.EOF
	}

	// pace roughly like a camera
	select {
	case <-t.stop:
		return nil, nil, io.EOF
	case <-fakeFrameInterval():
	}
	return frame, func() {}, nil
}

// Close implements Track
func (t *FakeTrack) Close() error {
	closedNow := false
	t.once.Do(func() {
		close(t.stop)
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		closedNow = true
	})
	if !closedNow {
		return errors.New("track already closed")
	}
	t.owner.closed.Add(1)
	return nil
}

func fakeFrameInterval() <-chan time.Time {
	return time.After(2 * time.Millisecond)
}
