package vision

import (
	"fmt"
	"hash/fnv"

	"gocv.io/x/gocv"

	"github.com/yardeye/go-sentinel/images"
)

// SizeBucket is the coarse size classification of a bird crop.
type SizeBucket string

// ColorBucket is the coarse color classification of a bird crop.
type ColorBucket string

const (
	SizeLarge  SizeBucket = "large"
	SizeMedium SizeBucket = "medium"
	SizeSmall  SizeBucket = "small"

	ColorDark  ColorBucket = "dark"
	ColorRed   ColorBucket = "red"
	ColorBlue  ColorBucket = "blue"
	ColorBrown ColorBucket = "brown"
	ColorOther ColorBucket = "other"
)

// speciesTable maps a size_color bucket key to its candidate species.
var speciesTable = map[string][]string{
	"large_dark":   {"Crow", "Raven", "Blackbird"},
	"large_brown":  {"Hawk", "Eagle", "Owl"},
	"medium_red":   {"Cardinal", "Robin"},
	"medium_blue":  {"Blue Jay", "Bluebird"},
	"medium_brown": {"Sparrow", "Finch"},
	"small_any":    {"Wren", "Chickadee", "Nuthatch"},
}

// PickFunc selects an index in [0, n) for a bucket key. Injectable so tests
// can pin the choice.
type PickFunc func(key string, n int) int

// stablePick derives the index from the bucket key alone, so identical
// visual buckets always yield the same species label.
func stablePick(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

// SpeciesClassifier assigns a heuristic species label to bird crops from
// size and color buckets.
type SpeciesClassifier struct {
	pick PickFunc
}

// NewSpeciesClassifier builds a classifier with the given picker; nil picks
// deterministically from the bucket key.
func NewSpeciesClassifier(pick PickFunc) *SpeciesClassifier {
	if pick == nil {
		pick = stablePick
	}
	return &SpeciesClassifier{pick: pick}
}

// SizeBucketFor buckets a bounding box area in square pixels.
func SizeBucketFor(area float64) SizeBucket {
	switch {
	case area > 40000:
		return SizeLarge
	case area > 15000:
		return SizeMedium
	default:
		return SizeSmall
	}
}

// ColorBucketFor buckets the HSV features of a crop. Brightness dominates:
// a dark bird reads as dark regardless of hue.
func ColorBucketFor(f images.ColorFeatures) ColorBucket {
	switch {
	case f.AvgBrightness < 80:
		return ColorDark
	case f.DominantHue < 15 || f.DominantHue > 165:
		return ColorRed
	case f.DominantHue > 90 && f.DominantHue < 130:
		return ColorBlue
	case f.AvgSaturation < 100:
		return ColorBrown
	default:
		return ColorOther
	}
}

// Classify returns the species label for a bird crop with the given bounding
// box area. Unmapped size/color combinations degrade to a generic size-based
// label; an unusable crop yields "Unknown".
func (s *SpeciesClassifier) Classify(crop gocv.Mat, area float64) string {
	if crop.Empty() {
		return "Unknown"
	}
	features, err := images.ComputeColorFeatures(crop)
	if err != nil {
		return "Unknown"
	}
	return s.classifyBuckets(SizeBucketFor(area), ColorBucketFor(features))
}

// classifyBuckets resolves the rule table for a size/color pair.
func (s *SpeciesClassifier) classifyBuckets(size SizeBucket, color ColorBucket) string {
	var key string
	switch size {
	case SizeLarge:
		switch color {
		case ColorDark:
			key = "large_dark"
		case ColorBrown, ColorOther:
			key = "large_brown"
		default:
			return "Large Bird"
		}
	case SizeMedium:
		switch color {
		case ColorRed:
			key = "medium_red"
		case ColorBlue:
			key = "medium_blue"
		case ColorBrown, ColorOther:
			key = "medium_brown"
		default:
			return "Medium Bird"
		}
	default:
		key = "small_any"
	}

	candidates := speciesTable[key]
	if len(candidates) == 0 {
		return fmt.Sprintf("%s Bird", capitalize(string(size)))
	}
	return candidates[s.pick(key, len(candidates))]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
