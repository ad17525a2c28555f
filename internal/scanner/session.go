package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vzahanych/barcode-scanner/internal/camera"
	"github.com/vzahanych/barcode-scanner/internal/decode"
	"github.com/vzahanych/barcode-scanner/internal/dedup"
)

// session is one activation. Resources are attached as they are set up; once
// the session is closed, whoever holds a new resource must free it.
type session struct {
	id         string
	ctx        context.Context
	cancel     context.CancelFunc
	onDetect   func(string)
	onError    func(ErrorKind)
	events     chan decode.Detection
	finished   chan struct{}
	startedAt  time.Time
	opts       Options
	suppressor *dedup.Suppressor

	// claimed is guarded by Controller.mu
	claimed bool

	mu           sync.Mutex
	closed       bool
	handle       *camera.Handle
	strategy     decode.Strategy
	kind         decode.Kind
	sampler      FrameSampler
	torchEngaged bool
}

func newSession(parent context.Context, onDetect func(string), onError func(ErrorKind)) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		id:        uuid.NewString(),
		ctx:       ctx,
		cancel:    cancel,
		onDetect:  onDetect,
		onError:   onError,
		events:    make(chan decode.Detection, 16),
		finished:  make(chan struct{}),
		startedAt: time.Now(),
		kind:      decode.KindNone,
	}
}

// emit hands a detection to the session loop, giving up once the session ends
func (s *session) emit(d decode.Detection) {
	select {
	case s.events <- d:
	case <-s.ctx.Done():
	}
}

func (s *session) attachHandle(h *camera.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.handle = h
	return true
}

func (s *session) attachStrategy(st decode.Strategy) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.strategy = st
	s.kind = st.Kind()
	return true
}

func (s *session) attachSampler(sp FrameSampler) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sampler = sp
	return true
}

// close marks the session closed and hands back its resources
func (s *session) close() (FrameSampler, decode.Strategy, *camera.Handle) {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	sp, st, h := s.sampler, s.strategy, s.handle
	s.sampler, s.strategy, s.handle = nil, nil, nil
	s.torchEngaged = false
	return sp, st, h
}

func (s *session) snapshot() (*camera.Handle, decode.Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle, s.kind, s.torchEngaged
}
