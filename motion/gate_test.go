package motion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func solidFrame(t *testing.T, value float64) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), 480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return m
}

// movingClock is a manually advanced time source.
type movingClock struct {
	now time.Time
}

func (c *movingClock) Now() time.Time { return c.now }

func (c *movingClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGate(t *testing.T, cfg Config, clock *movingClock) *Gate {
	t.Helper()
	g := NewGate(cfg, WithClock(clock.Now))
	t.Cleanup(g.Close)
	return g
}

func TestGateWarmupDiscardsMotion(t *testing.T) {
	clock := &movingClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	g := newTestGate(t, Config{Sensitivity: 25, MinArea: 5000, Cooldown: 2 * time.Second, WarmupFrames: 5}, clock)

	require.Equal(t, Uninitialized, g.State())

	black := solidFrame(t, 0)
	white := solidFrame(t, 255)

	// Alternating frames are maximal motion, yet warmup must swallow them.
	for i := 0; i < 5; i++ {
		frame := black
		if i%2 == 1 {
			frame = white
		}
		assert.False(t, g.Feed(frame), "frame %d fed during warmup must not trigger", i)
	}
	assert.Equal(t, Warming, g.State())
	assert.True(t, g.LastTrigger().IsZero())
}

func TestGateTriggersAndEnforcesCooldown(t *testing.T) {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	clock := &movingClock{now: start}
	g := newTestGate(t, Config{Sensitivity: 25, MinArea: 5000, Cooldown: 2 * time.Second, WarmupFrames: 3}, clock)

	black := solidFrame(t, 0)
	white := solidFrame(t, 255)

	// Warm up and let the background model absorb the static scene.
	for i := 0; i < 12; i++ {
		assert.False(t, g.Feed(black))
		clock.Advance(100 * time.Millisecond)
	}
	require.Equal(t, Armed, g.State())

	// A full-frame change against the learned background triggers.
	require.True(t, g.Feed(white))
	first := g.LastTrigger()
	assert.Equal(t, clock.Now(), first)

	// Motion inside the cooldown window is suppressed.
	clock.Advance(500 * time.Millisecond)
	assert.False(t, g.Feed(white))
	assert.Equal(t, first, g.LastTrigger(), "suppressed motion must not move the trigger timestamp")

	// Past the cooldown the gate re-arms.
	clock.Advance(3 * time.Second)
	assert.True(t, g.Feed(white))
	assert.True(t, g.LastTrigger().After(first))
}

func TestGateRejectsMalformedFrames(t *testing.T) {
	clock := &movingClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	g := newTestGate(t, Config{Sensitivity: 25, MinArea: 5000, WarmupFrames: 0}, clock)

	empty := gocv.NewMat()
	defer empty.Close()
	assert.False(t, g.Feed(empty))

	fourChannel := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC4)
	defer fourChannel.Close()
	assert.False(t, g.Feed(fourChannel))

	// Rejected frames never advance the state machine.
	assert.Equal(t, Uninitialized, g.State())
}

func TestGateResetKeepsCooldown(t *testing.T) {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	clock := &movingClock{now: start}
	g := newTestGate(t, Config{Sensitivity: 25, MinArea: 5000, Cooldown: 10 * time.Second, WarmupFrames: 2}, clock)

	black := solidFrame(t, 0)
	white := solidFrame(t, 255)

	for i := 0; i < 10; i++ {
		g.Feed(black)
		clock.Advance(100 * time.Millisecond)
	}
	require.True(t, g.Feed(white))
	triggered := g.LastTrigger()

	g.Reset()
	assert.Equal(t, Warming, g.State(), "reset re-enters warmup")
	assert.Equal(t, triggered, g.LastTrigger(), "reset preserves the cooldown timestamp")

	// Even after warming back up, the cooldown window still holds.
	clock.Advance(time.Second)
	for i := 0; i < 10; i++ {
		assert.False(t, g.Feed(white), "triggers inside the cooldown stay suppressed after a reset")
	}
}

func TestGateDefaultSensitivity(t *testing.T) {
	g := NewGate(Config{MinArea: 5000})
	defer g.Close()
	assert.Equal(t, float32(25), g.cfg.Sensitivity)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "warming", Warming.String())
	assert.Equal(t, "armed", Armed.String())
	assert.Equal(t, "unknown", State(99).String())
}
