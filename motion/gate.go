// Package motion - Motion gating over a low-res preview stream.
//
// The Gate consumes successive frames, maintains an adaptive MOG2 background
// model, and decides when observed motion warrants a high-resolution capture.
// Pipeline per frame: grayscale -> Gaussian blur -> background subtraction ->
// threshold -> dilate -> contour extraction -> area gate -> cooldown gate.
//
// State machine: Uninitialized -> Warming(N frames) -> Armed. Warming frames
// update the background model but never trigger; Armed is only exited by an
// explicit Reset (for example after a camera reconfiguration invalidates the
// learned background).
package motion

import (
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/yardeye/go-sentinel/logging"
)

// State is the gate lifecycle state.
type State int

const (
	// Uninitialized means no frame has been fed yet.
	Uninitialized State = iota
	// Warming means the background model is still settling; motion signal
	// is discarded.
	Warming
	// Armed means triggers are live, subject to the cooldown gate.
	Armed
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Warming:
		return "warming"
	case Armed:
		return "armed"
	default:
		return "unknown"
	}
}

// Config tunes the gate.
type Config struct {
	// Sensitivity is the binary threshold applied to the foreground mask.
	Sensitivity float32
	// MinArea is the minimum contour area, in pixels, counted as motion.
	MinArea float64
	// Cooldown is the minimum interval between two triggers.
	Cooldown time.Duration
	// WarmupFrames is the number of frames discarded while warming.
	WarmupFrames int
}

// Gate is the motion-gating state machine. All methods are safe for
// concurrent use; the background model is owned exclusively by the gate.
type Gate struct {
	cfg Config

	mu            sync.Mutex
	state         State
	warmRemaining int
	lastTrigger   time.Time

	subtractor gocv.BackgroundSubtractorMOG2
	kernel     gocv.Mat

	now func() time.Time
	log *slog.Logger
}

// Option customizes a Gate.
type Option func(*Gate)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a gate in the Uninitialized state. Close must be called to
// release the native background model.
func NewGate(cfg Config, opts ...Option) *Gate {
	if cfg.Sensitivity <= 0 {
		cfg.Sensitivity = 25
	}
	g := &Gate{
		cfg:           cfg,
		state:         Uninitialized,
		warmRemaining: cfg.WarmupFrames,
		subtractor:    gocv.NewBackgroundSubtractorMOG2(),
		kernel:        gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
		now:           time.Now,
		log:           logging.ForService("motion"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Feed analyzes one preview frame and reports whether it triggers a capture.
// Analysis errors are non-fatal: they are logged and the frame is treated as
// motionless, model state unchanged. A true return atomically records the
// trigger timestamp, so no two triggers are closer than the cooldown.
func (g *Gate) Feed(frame gocv.Mat) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	moving, err := g.analyze(frame)
	if err != nil {
		g.log.Warn("frame analysis failed", "error", err)
		return false
	}

	switch g.state {
	case Uninitialized:
		g.state = Warming
		g.warmRemaining = g.cfg.WarmupFrames
		fallthrough
	case Warming:
		if g.warmRemaining > 0 {
			g.warmRemaining--
			return false
		}
		g.state = Armed
		g.log.Info("background model armed")
	}

	if !moving {
		return false
	}

	now := g.now()
	if !g.lastTrigger.IsZero() && now.Sub(g.lastTrigger) < g.cfg.Cooldown {
		return false
	}
	g.lastTrigger = now
	return true
}

// analyze runs the segmentation pipeline and reports whether any foreground
// region exceeds the minimum area.
func (g *Gate) analyze(frame gocv.Mat) (bool, error) {
	if frame.Empty() {
		return false, errors.New("frame is empty")
	}
	channels := frame.Channels()
	if channels != 1 && channels != 3 {
		return false, errors.Errorf("unsupported frame shape: %d channels", channels)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if channels == 3 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(21, 21), 0, 0, gocv.BorderDefault)

	delta := gocv.NewMat()
	defer delta.Close()
	if err := g.subtractor.Apply(blurred, &delta); err != nil {
		return false, errors.Wrap(err, "background subtraction")
	}

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(delta, &thresh, g.cfg.Sensitivity, 255, gocv.ThresholdBinary)

	if err := gocv.Dilate(thresh, &thresh, g.kernel); err != nil {
		return false, errors.Wrap(err, "dilating foreground mask")
	}

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) >= g.cfg.MinArea {
			return true, nil
		}
	}
	return false, nil
}

// Reset discards the learned background and re-enters Warming. Call after
// any camera reconfiguration. The last-trigger timestamp is kept so the
// cooldown invariant survives resets.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.subtractor.Close()
	g.subtractor = gocv.NewBackgroundSubtractorMOG2()
	g.state = Warming
	g.warmRemaining = g.cfg.WarmupFrames
	g.log.Info("gate reset, re-entering warmup", "frames", g.cfg.WarmupFrames)
}

// State returns the current lifecycle state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// LastTrigger returns the timestamp of the most recent trigger, zero if none.
func (g *Gate) LastTrigger() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastTrigger
}

// Close releases the native background model and kernel.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.subtractor.Close()
	g.kernel.Close()
}
