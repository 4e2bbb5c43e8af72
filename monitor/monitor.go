// Package monitor - The orchestrator wiring camera, motion gate, classifier
// and statistics into the monitoring loop.
//
// Two goroutines run concurrently: a polling loop that feeds preview frames
// to the motion gate, and a single trigger worker that performs the high-res
// capture, classification, stats update and artifact persistence. The
// hand-off between them is a single-slot channel: a trigger arriving while a
// capture is in flight is dropped, which the gate's cooldown makes harmless.
// Nothing in the trigger path can terminate the loops; every failure is
// logged and polling resumes.
package monitor

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/yardeye/go-sentinel/camera"
	"github.com/yardeye/go-sentinel/config"
	"github.com/yardeye/go-sentinel/logging"
	"github.com/yardeye/go-sentinel/metrics"
	"github.com/yardeye/go-sentinel/motion"
	"github.com/yardeye/go-sentinel/stats"
	"github.com/yardeye/go-sentinel/vision"
)

// Classifier is the classification capability the monitor invokes on each
// captured still. Satisfied by *vision.Classifier.
type Classifier interface {
	Classify(frame gocv.Mat) vision.DetectionEvent
}

// Config tunes the orchestration loop.
type Config struct {
	// Save selects which detection artifacts are persisted.
	Save config.SavePolicy
	// CapturesDir receives the raw high-res captures.
	CapturesDir string
	// DetectionsDir receives annotated images and JSON records.
	DetectionsDir string
	// PollInterval paces the preview loop.
	PollInterval time.Duration
	// StatsInterval paces periodic summary log lines. Zero disables them.
	StatsInterval time.Duration
}

// Monitor owns the two pipeline goroutines.
type Monitor struct {
	cfg        Config
	source     camera.Source
	gate       *motion.Gate
	classifier Classifier
	stats      *stats.Aggregator
	metrics    *metrics.Pipeline

	triggers chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool

	log *slog.Logger
}

// New wires the pipeline. All collaborators are required.
func New(cfg Config, source camera.Source, gate *motion.Gate, classifier Classifier, aggregator *stats.Aggregator, pipeline *metrics.Pipeline) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &Monitor{
		cfg:        cfg,
		source:     source,
		gate:       gate,
		classifier: classifier,
		stats:      aggregator,
		metrics:    pipeline,
		triggers:   make(chan struct{}, 1),
		log:        logging.ForService("monitor"),
	}
}

// Start creates the artifact directories and launches the polling loop and
// the trigger worker.
func (m *Monitor) Start(ctx context.Context) error {
	if m.started {
		return errors.New("monitor already started")
	}
	for _, dir := range []string{m.cfg.CapturesDir, m.cfg.DetectionsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating directory %s", dir)
		}
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.started = true
	m.wg.Add(2)
	go m.pollLoop(ctx)
	go m.triggerLoop(ctx)

	m.log.Info("monitoring started",
		"savePolicy", string(m.cfg.Save),
		"pollInterval", m.cfg.PollInterval)
	return nil
}

// Stop cancels the loops, waits for both goroutines to finish, and only then
// releases the camera, so no read can race the close.
func (m *Monitor) Stop() {
	if !m.started {
		return
	}
	m.cancel()
	m.wg.Wait()
	if err := m.source.Close(); err != nil {
		m.log.Warn("closing camera failed", "error", err)
	}
	m.started = false
	m.log.Info("monitoring stopped")
}

// pollLoop continuously pulls preview frames and feeds the motion gate. A
// trigger is handed to the worker through the single-slot channel; if the
// slot is occupied the trigger is dropped.
func (m *Monitor) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	frame := gocv.NewMat()
	defer frame.Close()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	var statsTick <-chan time.Time
	if m.cfg.StatsInterval > 0 {
		statsTicker := time.NewTicker(m.cfg.StatsInterval)
		defer statsTicker.Stop()
		statsTick = statsTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-statsTick:
			m.logSummary()
		case <-ticker.C:
			if err := m.source.ReadPreview(&frame); err != nil {
				m.log.Warn("preview read failed", "error", err)
				continue
			}
			m.metrics.FramesPolled.Inc()

			if !m.gate.Feed(frame) {
				continue
			}
			select {
			case m.triggers <- struct{}{}:
				m.metrics.TriggersFired.Inc()
			default:
				m.metrics.TriggersDropped.Inc()
			}
		}
	}
}

// triggerLoop is the single worker draining the trigger slot.
func (m *Monitor) triggerLoop(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.triggers:
			m.handleTrigger()
		}
	}
}

// handleTrigger runs the capture -> classify -> record -> persist path. It
// never returns an error: every failure is logged and the loop resumes.
func (m *Monitor) handleTrigger() {
	m.stats.RecordMotion()

	still, err := m.source.CaptureStill()
	if err != nil {
		m.metrics.CaptureErrors.Inc()
		m.log.Warn("high-res capture failed", "error", err)
		return
	}
	defer still.Close()

	m.saveCapture(still)

	ev := m.classifier.Classify(still)
	for _, det := range ev.Detections {
		m.metrics.Detections.WithLabelValues(string(det.Class)).Inc()
	}
	if len(ev.Detections) > 0 {
		m.stats.RecordDetections(ev)
	}

	if ev.HasTargets() {
		m.log.Info("targets detected",
			"person", ev.HasPerson,
			"animal", ev.HasAnimal,
			"bird", ev.HasBird,
			"species", ev.BirdSpecies,
			"identities", ev.DetectedIdentities)
	}

	if !m.shouldSave(ev) {
		return
	}
	if err := m.saveArtifact(still, ev); err != nil {
		m.metrics.PersistErrors.Inc()
		m.log.Warn("persisting artifact failed", "error", err)
	}
}

// shouldSave applies the save policy to a classification result.
func (m *Monitor) shouldSave(ev vision.DetectionEvent) bool {
	switch m.cfg.Save {
	case config.SaveAlways:
		return true
	case config.SaveTargetsOnly:
		return ev.HasTargets()
	default:
		return false
	}
}

// logSummary emits the periodic session statistics line.
func (m *Monitor) logSummary() {
	s := m.stats.Summary()
	m.log.Info("session stats",
		"running", s.SessionDuration.Round(time.Second).String(),
		"motionEvents", s.MotionEvents,
		"totalDetections", s.TotalDetections,
		"person", s.Detections[vision.ClassPerson],
		"animal", s.Detections[vision.ClassAnimal],
		"bird", s.Detections[vision.ClassBird])
}
