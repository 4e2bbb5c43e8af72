package vision

import (
	"image"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// stubDetector feeds canned candidates into the classification protocol.
type stubDetector struct {
	candidates []Candidate
	err        error
	closed     bool
}

func (s *stubDetector) Detect(frame gocv.Mat) ([]Candidate, error) {
	return s.candidates, s.err
}

func (s *stubDetector) Close() error {
	s.closed = true
	return nil
}

func testFrame(t *testing.T) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(120, 120, 120, 0), 480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })
	return frame
}

func newTestClassifier(coarse CoarseDetector, threshold float64) *Classifier {
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return NewClassifier(coarse, nil, NewSpeciesClassifier(nil), threshold,
		WithClock(func() time.Time { return ts }))
}

func TestClassifyFiltersByThresholdAndInterest(t *testing.T) {
	coarse := &stubDetector{candidates: []Candidate{
		{Label: "person", Confidence: 0.9, Box: image.Rect(10, 10, 100, 100)},
		{Label: "person", Confidence: 0.2, Box: image.Rect(10, 10, 100, 100)},
		{Label: "car", Confidence: 0.95, Box: image.Rect(200, 200, 300, 300)},
		{Label: "dog", Confidence: 0.8, Box: image.Rect(50, 50, 150, 150)},
	}}
	c := newTestClassifier(coarse, 0.3)

	ev := c.Classify(testFrame(t))

	require.Len(t, ev.Detections, 2, "below-threshold and out-of-interest candidates are dropped")
	assert.Equal(t, ClassPerson, ev.Detections[0].Class)
	assert.Equal(t, ClassAnimal, ev.Detections[1].Class)
	assert.True(t, ev.HasPerson)
	assert.True(t, ev.HasAnimal)
	assert.False(t, ev.HasBird)
}

func TestClassifyComputesBoxGeometry(t *testing.T) {
	coarse := &stubDetector{candidates: []Candidate{
		{Label: "person", Confidence: 0.9, Box: image.Rect(10, 20, 110, 220)},
	}}
	c := newTestClassifier(coarse, 0.3)

	ev := c.Classify(testFrame(t))

	require.Len(t, ev.Detections, 1)
	det := ev.Detections[0]
	assert.Equal(t, [4]int{10, 20, 110, 220}, det.BBox)
	assert.Equal(t, float64(100*200), det.Area)
}

func TestClassifyCoarseFailureYieldsEmptyEvent(t *testing.T) {
	coarse := &stubDetector{err: errors.New("session exploded")}
	c := newTestClassifier(coarse, 0.3)

	ev := c.Classify(testFrame(t))

	assert.Empty(t, ev.Detections)
	assert.False(t, ev.HasTargets())
	assert.NotEmpty(t, ev.ID, "a failed pass still produces a well-formed event")
}

func TestClassifyDegradedModeMarksAnimalsUnknown(t *testing.T) {
	coarse := &stubDetector{candidates: []Candidate{
		{Label: "cat", Confidence: 0.85, Box: image.Rect(100, 100, 300, 300)},
	}}
	c := newTestClassifier(coarse, 0.3)
	require.True(t, c.DetectionOnly())

	ev := c.Classify(testFrame(t))

	require.Len(t, ev.Detections, 1)
	assert.Equal(t, "Unknown", ev.Detections[0].Identity)
	assert.Zero(t, ev.Detections[0].IdentityConfidence)
	assert.True(t, ev.HasAnimal, "degraded mode still flags the animal")
	assert.Empty(t, ev.DetectedIdentities, "Unknown is not a detected identity")
}

func TestClassifyRefinesBirdSpecies(t *testing.T) {
	coarse := &stubDetector{candidates: []Candidate{
		// 300x300 crop of a uniform dark frame: large + dark buckets.
		{Label: "bird", Confidence: 0.7, Box: image.Rect(0, 0, 300, 300)},
	}}
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	c := NewClassifier(coarse, nil, NewSpeciesClassifier(func(string, int) int { return 0 }), 0.3,
		WithClock(func() time.Time { return ts }))

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 10, 10, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	ev := c.Classify(frame)

	require.Len(t, ev.Detections, 1)
	assert.Equal(t, "Crow", ev.Detections[0].Species)
	assert.Equal(t, "Crow", ev.BirdSpecies)
	assert.Equal(t, ts, ev.Timestamp)
}

func TestClassifierCloseReleasesCoarse(t *testing.T) {
	coarse := &stubDetector{}
	c := newTestClassifier(coarse, 0.3)

	require.NoError(t, c.Close())
	assert.True(t, coarse.closed)
}
