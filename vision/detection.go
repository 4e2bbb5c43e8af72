package vision

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// Detection is one recognized object instance within a frame.
type Detection struct {
	// Class is the coarse label.
	Class Class `json:"class"`
	// Confidence is the coarse detector score, 0.0-1.0.
	Confidence float64 `json:"confidence"`
	// BBox holds pixel coordinates [x1, y1, x2, y2] with x1<x2 and y1<y2.
	BBox [4]int `json:"bbox"`
	// Area is the bounding box area in square pixels.
	Area float64 `json:"area"`
	// Identity is the secondary identity label for animal detections.
	Identity string `json:"identity,omitempty"`
	// IdentityConfidence is the identity classifier score.
	IdentityConfidence float64 `json:"identityConfidence,omitempty"`
	// IdentityScores is the full confidence map over the identity label set.
	IdentityScores map[string]float64 `json:"identityScores,omitempty"`
	// Species is the heuristic species label for bird detections.
	Species string `json:"species,omitempty"`
}

// Rect returns the bounding box as an image.Rectangle.
func (d Detection) Rect() image.Rectangle {
	return image.Rect(d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3])
}

// Identity is the secondary classifier output for an animal crop.
type Identity struct {
	Label      string
	Confidence float64
	Scores     map[string]float64
}

// UnknownIdentity is emitted when the identity model is unavailable or a
// crop cannot be classified.
var UnknownIdentity = Identity{Label: "Unknown", Confidence: 0}

// DetectionEvent is the result of one classification run: the ordered
// detections plus flags derived from them.
type DetectionEvent struct {
	ID         string      `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	Detections []Detection `json:"detections"`

	HasPerson bool `json:"hasPerson"`
	HasAnimal bool `json:"hasAnimal"`
	HasBird   bool `json:"hasBird"`
	// BirdSpecies is the species of the most recent bird detection in the
	// sequence, empty when no bird was seen.
	BirdSpecies string `json:"birdSpecies,omitempty"`
	// DetectedIdentities lists the identity labels of all animal detections
	// in sequence order.
	DetectedIdentities []string `json:"detectedIdentities"`
}

// NewEvent assembles a DetectionEvent, computing the derived flags as a fold
// over the detection sequence.
func NewEvent(ts time.Time, detections []Detection) DetectionEvent {
	ev := DetectionEvent{
		ID:                 uuid.NewString(),
		Timestamp:          ts,
		Detections:         detections,
		DetectedIdentities: []string{},
	}
	for _, d := range detections {
		switch d.Class {
		case ClassPerson:
			ev.HasPerson = true
		case ClassAnimal:
			ev.HasAnimal = true
			if d.Identity != "" && d.Identity != UnknownIdentity.Label {
				ev.DetectedIdentities = append(ev.DetectedIdentities, d.Identity)
			}
		case ClassBird:
			ev.HasBird = true
			if d.Species != "" {
				ev.BirdSpecies = d.Species
			}
		}
	}
	return ev
}

// HasTargets reports whether any interest-set object was detected.
func (ev DetectionEvent) HasTargets() bool {
	return ev.HasPerson || ev.HasAnimal || ev.HasBird
}
