package scanner

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vzahanych/barcode-scanner/internal/camera"
	"github.com/vzahanych/barcode-scanner/internal/decode"
	"github.com/vzahanych/barcode-scanner/internal/logger"
	"github.com/vzahanych/barcode-scanner/internal/sampler"
)

// callLog records the order of observable calls across goroutines
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.snapshot() {
		if c == call {
			n++
		}
	}
	return n
}

func (l *callLog) index(call string) int {
	for i, c := range l.snapshot() {
		if c == call {
			return i
		}
	}
	return -1
}

// recordingCameras wraps a camera.Manager and logs acquire and release
type recordingCameras struct {
	*camera.Manager
	log *callLog
}

func (r *recordingCameras) Acquire(ctx context.Context, facing camera.Facing) (*camera.Handle, error) {
	h, err := r.Manager.Acquire(ctx, facing)
	if err == nil {
		r.log.add("acquire")
	}
	return h, err
}

func (r *recordingCameras) Release(h *camera.Handle) {
	live := h != nil && !h.Released()
	r.Manager.Release(h)
	if live {
		r.log.add("release")
	}
}

// fakeStrategy emits scripted detections once started
type fakeStrategy struct {
	kind     decode.Kind
	log      *callLog
	emitOnce []decode.Detection
	onFrame  []decode.Detection
	startErr error

	mu      sync.Mutex
	emit    decode.Emitter
	started bool
	frames  int
	stops   int
}

func (f *fakeStrategy) Kind() decode.Kind { return f.kind }

func (f *fakeStrategy) Start(_ context.Context, _ decode.FrameSource, emit decode.Emitter) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.emit = emit
	f.started = true
	f.mu.Unlock()
	f.log.add("start:" + string(f.kind))

	if len(f.emitOnce) > 0 {
		go func() {
			for _, d := range f.emitOnce {
				emit(d)
			}
		}()
	}
	return nil
}

func (f *fakeStrategy) Stop() error {
	f.mu.Lock()
	wasStarted := f.started
	f.started = false
	f.stops++
	f.mu.Unlock()
	if wasStarted {
		f.log.add("stop:" + string(f.kind))
	}
	return nil
}

func (f *fakeStrategy) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *fakeStrategy) running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// fakeFrameStrategy is a fakeStrategy driven by the sampler
type fakeFrameStrategy struct {
	*fakeStrategy
}

func (f *fakeFrameStrategy) OnFrame(_ context.Context, _ *image.RGBA) {
	f.mu.Lock()
	f.frames++
	emit, started := f.emit, f.started
	var d *decode.Detection
	if started && len(f.onFrame) > 0 {
		d = &f.onFrame[0]
		f.onFrame = f.onFrame[1:]
	}
	f.mu.Unlock()

	if d != nil {
		emit(*d)
	}
}

// loggingSampler wraps a real sampler and records stop calls
type loggingSampler struct {
	*sampler.Sampler
	log *callLog
}

func (l *loggingSampler) Stop() {
	if l.Running() {
		l.log.add("stop:sampler")
	}
	l.Sampler.Stop()
}

type harness struct {
	t          *testing.T
	calls      *callLog
	devices    *camera.FakeDevices
	manager    *camera.Manager
	controller *Controller

	accelerated   bool
	accelErr      error
	accelStartErr error
	clock         func() time.Time

	mu          sync.Mutex
	accelMade   []*fakeFrameStrategy
	softMade    []*fakeStrategy
	accelScript []decode.Detection
	softScript  []decode.Detection
}

func newHarness(t *testing.T, accelerated bool) *harness {
	t.Helper()
	h := &harness{
		t:           t,
		calls:       &callLog{},
		devices:     camera.NewFakeDevices(image.NewGray(image.Rect(0, 0, 64, 48))),
		accelerated: accelerated,
	}
	log := logger.NewNopLogger()
	h.manager = camera.NewManager(h.devices, camera.ManagerConfig{AcquireTimeout: time.Second}, log)
	cams := &recordingCameras{Manager: h.manager, log: h.calls}

	h.controller = NewController(cams, Options{
		Cooldown:    2 * time.Second,
		Accelerated: func() bool { return h.accelerated },
		NewAccelerated: func() (decode.Strategy, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			if h.accelErr != nil {
				return nil, h.accelErr
			}
			s := &fakeFrameStrategy{&fakeStrategy{
				kind:     decode.KindAccelerated,
				log:      h.calls,
				onFrame:  append([]decode.Detection(nil), h.accelScript...),
				startErr: h.accelStartErr,
			}}
			h.accelMade = append(h.accelMade, s)
			return s, nil
		},
		NewSoftware: func() decode.Strategy {
			h.mu.Lock()
			defer h.mu.Unlock()
			s := &fakeStrategy{
				kind:     decode.KindSoftware,
				log:      h.calls,
				emitOnce: append([]decode.Detection(nil), h.softScript...),
			}
			h.softMade = append(h.softMade, s)
			return s
		},
		NewSampler: func() FrameSampler {
			return &loggingSampler{Sampler: sampler.New(500, log), log: h.calls}
		},
		Clock: func() time.Time {
			h.mu.Lock()
			defer h.mu.Unlock()
			if h.clock != nil {
				return h.clock()
			}
			return time.Now()
		},
	}, log)
	require.NoError(t, h.controller.Start(context.Background()))
	t.Cleanup(func() { _ = h.controller.Stop(context.Background()) })
	return h
}

// outcome collects callback invocations
type outcome struct {
	mu       sync.Mutex
	detected []string
	errors   []ErrorKind
	done     chan struct{}
	once     sync.Once
}

func newOutcome() *outcome {
	return &outcome{done: make(chan struct{})}
}

func (o *outcome) onDetect(calls *callLog) func(string) {
	return func(v string) {
		calls.add("onDetect")
		o.mu.Lock()
		o.detected = append(o.detected, v)
		o.mu.Unlock()
		o.once.Do(func() { close(o.done) })
	}
}

func (o *outcome) onError(calls *callLog) func(ErrorKind) {
	return func(k ErrorKind) {
		calls.add("onError")
		o.mu.Lock()
		o.errors = append(o.errors, k)
		o.mu.Unlock()
		o.once.Do(func() { close(o.done) })
	}
}

func (o *outcome) wait(t *testing.T) {
	t.Helper()
	select {
	case <-o.done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
}

func (o *outcome) results() ([]string, []ErrorKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.detected...), append([]ErrorKind(nil), o.errors...)
}

func detection(v string) decode.Detection {
	return decode.Detection{Value: v, Format: decode.FormatEAN13, ObservedAt: time.Now()}
}
