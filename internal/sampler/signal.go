package sampler

import (
	"sync"
	"time"
)

// RefreshSignal delivers one tick per display refresh. Next blocks until the
// next refresh or until the signal is stopped, in which case it returns false.
type RefreshSignal interface {
	Next() bool
	Stop()
}

// TickerSignal is a RefreshSignal backed by a time.Ticker
type TickerSignal struct {
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

// NewTickerSignal creates a signal firing hz times per second
func NewTickerSignal(hz int) *TickerSignal {
	if hz <= 0 {
		hz = DefaultRefreshHz
	}
	return &TickerSignal{
		ticker: time.NewTicker(time.Second / time.Duration(hz)),
		stop:   make(chan struct{}),
	}
}

// Next implements RefreshSignal
func (s *TickerSignal) Next() bool {
	select {
	case <-s.stop:
		return false
	default:
	}

	select {
	case <-s.ticker.C:
		return true
	case <-s.stop:
		return false
	}
}

// Stop implements RefreshSignal
func (s *TickerSignal) Stop() {
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.stop)
	})
}
