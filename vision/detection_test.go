package vision

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventDerivesFlags(t *testing.T) {
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	ev := NewEvent(ts, []Detection{
		{Class: ClassPerson, Confidence: 0.9},
		{Class: ClassAnimal, Confidence: 0.8, Identity: "felix"},
		{Class: ClassBird, Confidence: 0.6, Species: "Crow"},
		{Class: ClassAnimal, Confidence: 0.7, Identity: "leia"},
		{Class: ClassBird, Confidence: 0.5, Species: "Sparrow"},
	})

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, ts, ev.Timestamp)
	assert.True(t, ev.HasPerson)
	assert.True(t, ev.HasAnimal)
	assert.True(t, ev.HasBird)
	assert.True(t, ev.HasTargets())

	// The species flag follows the last bird in sequence order; identities
	// accumulate in order.
	assert.Equal(t, "Sparrow", ev.BirdSpecies)
	assert.Equal(t, []string{"felix", "leia"}, ev.DetectedIdentities)
}

func TestNewEventEmpty(t *testing.T) {
	ev := NewEvent(time.Now(), nil)

	assert.False(t, ev.HasTargets())
	assert.Empty(t, ev.BirdSpecies)
	require.NotNil(t, ev.DetectedIdentities, "identities serialize as [] rather than null")
	assert.Empty(t, ev.DetectedIdentities)
}

func TestNewEventSkipsUnlabeledRefinements(t *testing.T) {
	ev := NewEvent(time.Now(), []Detection{
		{Class: ClassAnimal, Confidence: 0.8},
		{Class: ClassBird, Confidence: 0.6},
	})

	assert.True(t, ev.HasAnimal)
	assert.True(t, ev.HasBird)
	assert.Empty(t, ev.DetectedIdentities, "animals without an identity label are not listed")
	assert.Empty(t, ev.BirdSpecies)
}

func TestEventIDsAreUnique(t *testing.T) {
	a := NewEvent(time.Now(), nil)
	b := NewEvent(time.Now(), nil)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestDetectionRect(t *testing.T) {
	d := Detection{BBox: [4]int{10, 20, 110, 220}}
	assert.Equal(t, image.Rect(10, 20, 110, 220), d.Rect())
}

func TestClassForLabel(t *testing.T) {
	testCases := []struct {
		label    string
		expected Class
		ok       bool
	}{
		{label: "person", expected: ClassPerson, ok: true},
		{label: "bird", expected: ClassBird, ok: true},
		{label: "dog", expected: ClassAnimal, ok: true},
		{label: "cat", expected: ClassAnimal, ok: true},
		{label: "bear", expected: ClassAnimal, ok: true},
		{label: "car", ok: false},
		{label: "traffic light", ok: false},
	}
	for _, tc := range testCases {
		t.Run(tc.label, func(t *testing.T) {
			class, ok := ClassForLabel(tc.label)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expected, class)
			}
		})
	}
}
