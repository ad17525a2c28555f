package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vzahanych/barcode-scanner/internal/decode"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSuppressor(cooldown time.Duration) (*Suppressor, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(cooldown, WithClock(clock.Now)), clock
}

func TestSuppressor_RepeatsWithinWindowForwardedOnce(t *testing.T) {
	s, clock := newTestSuppressor(2 * time.Second)

	forwarded := 0
	for i := 0; i < 30; i++ {
		if s.Accept(decode.Detection{Value: "012345678905"}) {
			forwarded++
		}
		clock.Advance(50 * time.Millisecond)
	}

	assert.Equal(t, 1, forwarded)
}

func TestSuppressor_RepeatAfterExpiryForwardedAgain(t *testing.T) {
	s, clock := newTestSuppressor(2 * time.Second)

	assert.True(t, s.Accept(decode.Detection{Value: "5901234123457"}))
	clock.Advance(1999 * time.Millisecond)
	assert.False(t, s.Accept(decode.Detection{Value: "5901234123457"}))
	clock.Advance(time.Millisecond)
	assert.True(t, s.Accept(decode.Detection{Value: "5901234123457"}))
}

func TestSuppressor_DifferentValueAlwaysForwarded(t *testing.T) {
	s, _ := newTestSuppressor(2 * time.Second)

	assert.True(t, s.Accept(decode.Detection{Value: "A"}))
	assert.True(t, s.Accept(decode.Detection{Value: "B"}))
	assert.True(t, s.Accept(decode.Detection{Value: "A"}))
}

func TestSuppressor_UsesObservedAt(t *testing.T) {
	s, clock := newTestSuppressor(time.Second)
	base := clock.Now()

	assert.True(t, s.Accept(decode.Detection{Value: "A", ObservedAt: base}))
	assert.False(t, s.Accept(decode.Detection{Value: "A", ObservedAt: base.Add(500 * time.Millisecond)}))
	assert.True(t, s.Accept(decode.Detection{Value: "A", ObservedAt: base.Add(time.Second)}))
}

func TestSuppressor_Reset(t *testing.T) {
	s, _ := newTestSuppressor(time.Minute)

	assert.True(t, s.Accept(decode.Detection{Value: "A"}))
	assert.Equal(t, "A", s.Window().LastValue)

	s.Reset()
	assert.Equal(t, Window{}, s.Window())
	assert.True(t, s.Accept(decode.Detection{Value: "A"}))
}

func TestNew_DefaultCooldown(t *testing.T) {
	assert.Equal(t, DefaultCooldown, New(0).Cooldown())
	assert.Equal(t, 3*time.Second, New(3*time.Second).Cooldown())
}
