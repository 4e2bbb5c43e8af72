package vision

import (
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/yardeye/go-sentinel/images"
	"github.com/yardeye/go-sentinel/logging"
)

// Classifier runs the two-stage classification protocol: one coarse pass
// over the full frame, then a secondary classifier per animal (identity) and
// bird (species) detection. A nil identity classifier means detection-only
// mode: animals are still flagged, identities come back Unknown.
type Classifier struct {
	coarse    CoarseDetector
	identity  *IdentityClassifier
	species   *SpeciesClassifier
	threshold float64
	now       func() time.Time
	log       *slog.Logger
}

// ClassifierOption customizes a Classifier.
type ClassifierOption func(*Classifier)

// WithClock injects the timestamp source, for tests.
func WithClock(now func() time.Time) ClassifierOption {
	return func(c *Classifier) { c.now = now }
}

// NewClassifier wires the stages together. identity may be nil (degraded
// mode); species must not be.
func NewClassifier(coarse CoarseDetector, identity *IdentityClassifier, species *SpeciesClassifier, threshold float64, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		coarse:    coarse,
		identity:  identity,
		species:   species,
		threshold: threshold,
		now:       time.Now,
		log:       logging.ForService("vision"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.identity == nil {
		c.log.Warn("identity model unavailable, running in detection-only mode")
	}
	return c
}

// Classify runs one classification pass over a full-resolution frame. It
// never fails: a coarse-pass error yields an event with zero detections, and
// per-crop failures degrade that detection rather than aborting the run.
func (c *Classifier) Classify(frame gocv.Mat) DetectionEvent {
	ts := c.now()

	candidates, err := c.coarse.Detect(frame)
	if err != nil {
		c.log.Error("coarse detection failed", "error", err)
		return NewEvent(ts, nil)
	}

	var detections []Detection
	for _, cand := range candidates {
		if cand.Confidence < c.threshold {
			continue
		}
		class, ok := ClassForLabel(cand.Label)
		if !ok {
			continue
		}

		box := cand.Box.Canon()
		det := Detection{
			Class:      class,
			Confidence: cand.Confidence,
			BBox:       [4]int{box.Min.X, box.Min.Y, box.Max.X, box.Max.Y},
			Area:       float64(box.Dx()) * float64(box.Dy()),
		}

		switch class {
		case ClassAnimal:
			c.refineAnimal(frame, &det)
		case ClassBird:
			c.refineBird(frame, &det)
		}

		detections = append(detections, det)
	}

	return NewEvent(ts, detections)
}

// refineAnimal crops the detection and runs the identity classifier.
func (c *Classifier) refineAnimal(frame gocv.Mat, det *Detection) {
	id := UnknownIdentity
	if c.identity != nil {
		crop, err := images.Crop(frame, det.Rect())
		if err != nil {
			c.log.Warn("animal crop failed", "error", err)
		} else {
			defer crop.Close()
			id, err = c.identity.Classify(crop)
			if err != nil {
				c.log.Warn("identity classification failed", "error", err)
				id = UnknownIdentity
			}
		}
	}
	det.Identity = id.Label
	det.IdentityConfidence = id.Confidence
	det.IdentityScores = id.Scores
}

// refineBird crops the detection and applies the species heuristic.
func (c *Classifier) refineBird(frame gocv.Mat, det *Detection) {
	crop, err := images.Crop(frame, det.Rect())
	if err != nil {
		c.log.Warn("bird crop failed", "error", err)
		det.Species = "Unknown"
		return
	}
	defer crop.Close()
	det.Species = c.species.Classify(crop, det.Area)
}

// DetectionOnly reports whether the identity stage is unavailable.
func (c *Classifier) DetectionOnly() bool {
	return c.identity == nil
}

// Close releases the model sessions.
func (c *Classifier) Close() error {
	var firstErr error
	if c.coarse != nil {
		if err := c.coarse.Close(); err != nil {
			firstErr = err
		}
	}
	if c.identity != nil {
		if err := c.identity.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
