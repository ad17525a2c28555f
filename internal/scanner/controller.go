// Package scanner runs barcode scanning sessions: it acquires a camera
// stream, mounts one decoding strategy, filters repeated readings and tears
// everything down before reporting the outcome.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/vzahanych/barcode-scanner/internal/camera"
	"github.com/vzahanych/barcode-scanner/internal/decode"
	"github.com/vzahanych/barcode-scanner/internal/dedup"
	"github.com/vzahanych/barcode-scanner/internal/logger"
	"github.com/vzahanych/barcode-scanner/internal/sampler"
	"github.com/vzahanych/barcode-scanner/internal/service"
)

// StreamManager acquires and releases camera streams
type StreamManager interface {
	Acquire(ctx context.Context, facing camera.Facing) (*camera.Handle, error)
	Release(h *camera.Handle)
	Stats() camera.Stats
}

// FrameSampler drives a FrameConsumer strategy
type FrameSampler interface {
	Start(ctx context.Context, src sampler.VideoSource, onFrame sampler.FrameFunc) error
	Stop()
	Stats() sampler.Stats
}

// Options wires a controller to its collaborators
type Options struct {
	Facing camera.Facing
	// Cooldown is the duplicate suppression window
	Cooldown time.Duration
	// Accelerated is the capability probe, called once per session
	Accelerated    func() bool
	NewAccelerated func() (decode.Strategy, error)
	NewSoftware    func() decode.Strategy
	NewSampler     func() FrameSampler
	// Clock overrides time.Now. When set it also replaces the ObservedAt
	// reported by strategies, so the suppressor and results share one clock.
	Clock func() time.Time
}

// Result is the outcome of the last finished session
type Result struct {
	SessionID string      `json:"session_id"`
	Barcode   string      `json:"barcode,omitempty"`
	Format    string      `json:"format,omitempty"`
	Strategy  decode.Kind `json:"strategy,omitempty"`
	Error     ErrorKind   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Cancelled bool        `json:"cancelled,omitempty"`
	At        time.Time   `json:"at"`
}

// Status is a point-in-time view of the controller
type Status struct {
	State          State         `json:"state"`
	SessionID      string        `json:"session_id,omitempty"`
	Strategy       decode.Kind   `json:"strategy"`
	TorchAvailable bool          `json:"torch_available"`
	TorchEngaged   bool          `json:"torch_engaged"`
	Device         string        `json:"device,omitempty"`
	Camera         camera.Stats  `json:"camera"`
	Sampler        sampler.Stats `json:"sampler"`
	LastResult     *Result       `json:"last_result,omitempty"`
}

// Controller owns at most one scanning session at a time
type Controller struct {
	*service.ServiceBase

	cameras    StreamManager
	opts       Options
	log        *logger.Logger
	suppressor *dedup.Suppressor

	activateMu sync.Mutex

	mu          sync.Mutex
	lifecycle   *fsm.FSM
	current     *session
	lastResult  *Result
	stopped     bool
	lastSampler FrameSampler
}

// NewController creates a controller
func NewController(cameras StreamManager, opts Options, log *logger.Logger) *Controller {
	opts = opts.withDefaults(log)
	return &Controller{
		ServiceBase: service.NewServiceBase("scanner", log),
		cameras:     cameras,
		opts:        opts,
		log:         log,
		suppressor:  opts.newSuppressor(),
		lifecycle:   newLifecycle(),
	}
}

func (o Options) withDefaults(log *logger.Logger) Options {
	if o.Facing == "" {
		o.Facing = camera.FacingEnvironment
	}
	if o.Accelerated == nil {
		o.Accelerated = func() bool { return false }
	}
	if o.NewSampler == nil {
		o.NewSampler = func() FrameSampler { return sampler.New(sampler.DefaultRefreshHz, log) }
	}
	return o
}

func (o Options) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

func (o Options) newSuppressor() *dedup.Suppressor {
	var dedupOpts []dedup.Option
	if o.Clock != nil {
		dedupOpts = append(dedupOpts, dedup.WithClock(o.Clock))
	}
	return dedup.New(o.Cooldown, dedupOpts...)
}

// Reconfigure replaces the options used by subsequent sessions. A live
// session keeps the options it was activated with.
func (c *Controller) Reconfigure(opts Options) {
	opts = opts.withDefaults(c.log)

	c.mu.Lock()
	c.opts = opts
	c.suppressor = opts.newSuppressor()
	c.mu.Unlock()

	c.LogInfo("Scanner reconfigured", "facing", opts.Facing, "cooldown", c.suppressor.Cooldown())
}

// Start implements service.Service
func (c *Controller) Start(ctx context.Context) error {
	c.GetStatus().SetStatus(service.StatusStarting)
	c.mu.Lock()
	c.stopped = false
	c.mu.Unlock()
	c.GetStatus().SetStatus(service.StatusRunning)
	c.LogInfo("Scanner controller started")
	return nil
}

// Stop implements service.Service. Any live session is torn down.
func (c *Controller) Stop(ctx context.Context) error {
	c.GetStatus().SetStatus(service.StatusStopping)
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.Deactivate()

	c.GetStatus().SetStatus(service.StatusStopped)
	c.LogInfo("Scanner controller stopped")
	return nil
}

// Activate starts a session, tearing down the current one first. Exactly one
// of onDetect or onError is called for the session unless it is deactivated;
// both run after the stream has been released.
func (c *Controller) Activate(onDetect func(barcode string), onError func(kind ErrorKind)) (string, error) {
	if onDetect == nil {
		onDetect = func(string) {}
	}
	if onError == nil {
		onError = func(ErrorKind) {}
	}

	c.activateMu.Lock()
	defer c.activateMu.Unlock()

	c.Deactivate()

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return "", ErrStopped
	}
	s := newSession(context.Background(), onDetect, onError)
	s.opts = c.opts
	s.suppressor = c.suppressor
	c.current = s
	c.fire(eventAcquire)
	c.suppressor.Reset()
	c.mu.Unlock()

	c.LogInfo("Scan session activated", "session", s.id)
	c.PublishEvent(service.EventTypeScanActivated, map[string]interface{}{
		"session_id": s.id,
	})

	go c.run(s)
	return s.id, nil
}

// Deactivate ends the current session, if any, and returns once its resources
// are released. It is safe to call from any state and never fails.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	s := c.current
	claimed := s != nil && c.claimLocked(s)
	c.mu.Unlock()

	if s == nil {
		return
	}
	if !claimed {
		// completion or failure is already tearing the session down
		<-s.finished
		return
	}

	c.teardown(s)
	c.finish(s, &Result{SessionID: s.id, Cancelled: true})

	c.LogInfo("Scan session deactivated", "session", s.id)
	c.PublishEvent(service.EventTypeScanDeactivated, map[string]interface{}{
		"session_id": s.id,
	})
}

// run is the session goroutine
func (c *Controller) run(s *session) {
	h, err := c.cameras.Acquire(s.ctx, s.opts.Facing)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		kind := kindFromAcquisition(err)
		c.LogWarn("Camera acquisition failed", "session", s.id, "kind", kind, "error", err)
		c.fail(s, kind)
		return
	}
	if !s.attachHandle(h) {
		c.cameras.Release(h)
		return
	}

	if err := c.mountStrategy(s, h); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		c.LogError("No decoding strategy could be started", err, "session", s.id)
		c.fail(s, DecoderUnavailable)
		return
	}

	c.mu.Lock()
	if c.current != s || s.claimed {
		c.mu.Unlock()
		return
	}
	c.fire(eventScan)
	c.mu.Unlock()

	for {
		select {
		case <-s.ctx.Done():
			return
		case d := <-s.events:
			if s.opts.Clock != nil {
				d.ObservedAt = s.opts.Clock()
			}
			if !s.suppressor.Accept(d) {
				c.LogDebug("Duplicate detection suppressed", "session", s.id, "value", d.Value)
				continue
			}
			c.complete(s, d)
			return
		}
	}
}

// mountStrategy picks and starts exactly one strategy for the session
func (c *Controller) mountStrategy(s *session, h *camera.Handle) error {
	var strategy decode.Strategy
	if s.opts.Accelerated() && s.opts.NewAccelerated != nil {
		acc, err := s.opts.NewAccelerated()
		if err != nil {
			c.LogWarn("Accelerated detector unavailable, using software decoder",
				"session", s.id, "kind", AccelerationInitFailed, "error", err)
		} else {
			strategy = acc
		}
	}
	if strategy != nil {
		if err := strategy.Start(s.ctx, h.Feed(), s.emit); err != nil {
			c.LogWarn("Accelerated detector failed to start, using software decoder",
				"session", s.id, "kind", AccelerationInitFailed, "error", err)
			c.stopStrategy(s, strategy)
			strategy = nil
		}
	}
	if strategy == nil {
		if s.opts.NewSoftware == nil {
			return errors.New("no software decoder configured")
		}
		strategy = s.opts.NewSoftware()
		if err := strategy.Start(s.ctx, h.Feed(), s.emit); err != nil {
			return fmt.Errorf("failed to start %s strategy: %w", strategy.Kind(), err)
		}
	}
	if !s.attachStrategy(strategy) {
		c.stopStrategy(s, strategy)
		return s.ctx.Err()
	}

	c.LogInfo("Decode strategy selected", "session", s.id, "strategy", strategy.Kind())
	c.PublishEvent(service.EventTypeScanStrategySelected, map[string]interface{}{
		"session_id": s.id,
		"strategy":   string(strategy.Kind()),
	})

	consumer, ok := strategy.(decode.FrameConsumer)
	if !ok {
		return nil
	}

	sp := s.opts.NewSampler()
	if err := sp.Start(s.ctx, h.Feed(), consumer.OnFrame); err != nil {
		return fmt.Errorf("failed to start frame sampler: %w", err)
	}
	if !s.attachSampler(sp) {
		sp.Stop()
		return s.ctx.Err()
	}

	c.mu.Lock()
	c.lastSampler = sp
	c.mu.Unlock()
	return nil
}

// claimLocked gives the caller exclusive right to end s. c.mu must be held.
func (c *Controller) claimLocked(s *session) bool {
	if c.current != s || s.claimed {
		return false
	}
	s.claimed = true
	return true
}

func (c *Controller) complete(s *session, d decode.Detection) {
	c.mu.Lock()
	if !c.claimLocked(s) {
		c.mu.Unlock()
		return
	}
	c.fire(eventComplete)
	c.mu.Unlock()

	_, kind, _ := s.snapshot()
	c.teardown(s)
	c.finish(s, &Result{
		SessionID: s.id,
		Barcode:   d.Value,
		Format:    string(d.Format),
		Strategy:  kind,
	})

	c.LogInfo("Barcode detected", "session", s.id, "format", d.Format, "strategy", kind)
	c.PublishEvent(service.EventTypeScanDetected, map[string]interface{}{
		"session_id": s.id,
		"barcode":    d.Value,
		"format":     string(d.Format),
		"strategy":   string(kind),
	})
	s.onDetect(d.Value)
}

func (c *Controller) fail(s *session, kind ErrorKind) {
	c.mu.Lock()
	if !c.claimLocked(s) {
		c.mu.Unlock()
		return
	}
	c.fire(eventFail)
	c.mu.Unlock()

	c.teardown(s)
	c.finish(s, &Result{
		SessionID: s.id,
		Error:     kind,
		Message:   kind.Message(),
	})

	c.PublishEvent(service.EventTypeScanError, map[string]interface{}{
		"session_id": s.id,
		"kind":       string(kind),
		"message":    kind.Message(),
	})
	s.onError(kind)
}

// teardown stops the sampler, then the strategy, then releases the stream.
// Each step is attempted regardless of the others.
func (c *Controller) teardown(s *session) {
	sp, strategy, h := s.close()

	if sp != nil {
		c.safely(s, "stop frame sampler", func() error {
			sp.Stop()
			return nil
		})
	}
	if strategy != nil {
		c.stopStrategy(s, strategy)
	}
	if h != nil {
		c.safely(s, "release camera stream", func() error {
			c.cameras.Release(h)
			return nil
		})
	}
}

func (c *Controller) stopStrategy(s *session, strategy decode.Strategy) {
	c.safely(s, "stop decode strategy", strategy.Stop)
}

// safely runs one cleanup step, logging errors and panics
func (c *Controller) safely(s *session, step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.LogError("Cleanup step panicked", fmt.Errorf("%v", r), "session", s.id, "step", step)
		}
	}()
	if err := fn(); err != nil {
		c.LogWarn("Cleanup step failed", "session", s.id, "step", step, "error", err)
	}
}

// finish returns the controller to idle and records the outcome
func (c *Controller) finish(s *session, result *Result) {
	result.At = s.opts.now()

	c.mu.Lock()
	if c.current == s {
		c.current = nil
	}
	c.fire(eventReset)
	c.lastResult = result
	s.suppressor.Reset()
	c.mu.Unlock()

	close(s.finished)
}

// fire drives the lifecycle. c.mu must be held.
func (c *Controller) fire(event string) {
	if err := c.lifecycle.Event(context.Background(), event); err != nil {
		c.LogWarn("Unexpected lifecycle transition", "event", event, "state", c.lifecycle.Current(), "error", err)
	}
}

// State returns the lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State(c.lifecycle.Current())
}

// SessionID returns the live session identifier, or ""
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.id
}

// TorchAvailable reports whether the live stream has a torch
func (c *Controller) TorchAvailable() bool {
	h := c.currentHandle()
	return h != nil && h.TorchAvailable()
}

// ToggleTorch flips the torch of the live stream. It returns
// ErrTorchUnavailable when there is no torch, and changes nothing.
func (c *Controller) ToggleTorch(ctx context.Context) (bool, error) {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil {
		return false, ErrTorchUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.handle == nil || !s.handle.TorchAvailable() {
		return false, ErrTorchUnavailable
	}

	engaged := !s.torchEngaged
	if err := s.handle.SetTorch(ctx, engaged); err != nil {
		return s.torchEngaged, fmt.Errorf("failed to switch torch: %w", err)
	}
	s.torchEngaged = engaged

	c.PublishEvent(service.EventTypeTorchChanged, map[string]interface{}{
		"session_id": s.id,
		"engaged":    engaged,
	})
	return engaged, nil
}

// Preview returns the latest frame of the live stream
func (c *Controller) Preview() (image.Image, bool) {
	h := c.currentHandle()
	if h == nil {
		return nil, false
	}
	return h.Preview()
}

// LastResult returns the outcome of the most recent finished session
func (c *Controller) LastResult() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastResult == nil {
		return Result{}, false
	}
	return *c.lastResult, true
}

// Snapshot returns the controller status
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	st := Status{
		State:    State(c.lifecycle.Current()),
		Strategy: decode.KindNone,
	}
	s := c.current
	sp := c.lastSampler
	if c.lastResult != nil {
		r := *c.lastResult
		st.LastResult = &r
	}
	c.mu.Unlock()

	if s != nil {
		h, kind, torchEngaged := s.snapshot()
		st.SessionID = s.id
		st.Strategy = kind
		st.TorchEngaged = torchEngaged
		if h != nil {
			st.TorchAvailable = h.TorchAvailable()
			st.Device = h.Device().Label
		}
	}
	if sp != nil {
		st.Sampler = sp.Stats()
	}
	st.Camera = c.cameras.Stats()
	return st
}

func (c *Controller) currentHandle() *camera.Handle {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	h, _, _ := s.snapshot()
	return h
}
