package vision

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadIdentityLabels(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file falls back", func(t *testing.T) {
		labels := LoadIdentityLabels(filepath.Join(dir, "nope.json"))
		assert.Equal(t, DefaultIdentityLabels, labels)
	})

	t.Run("invalid json falls back", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o644))
		assert.Equal(t, DefaultIdentityLabels, LoadIdentityLabels(path))
	})

	t.Run("empty array falls back", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
		assert.Equal(t, DefaultIdentityLabels, LoadIdentityLabels(path))
	})

	t.Run("valid file wins", func(t *testing.T) {
		path := filepath.Join(dir, "labels.json")
		require.NoError(t, os.WriteFile(path, []byte(`["max", "bella", "rex"]`), 0o644))
		assert.Equal(t, []string{"max", "bella", "rex"}, LoadIdentityLabels(path))
	})
}

func TestLoadIdentityClassifierMissingModel(t *testing.T) {
	_, err := LoadIdentityClassifier(filepath.Join(t.TempDir(), "nope.onnx"), nil)
	require.Error(t, err, "a missing model degrades the pipeline instead of loading")
}

func TestSoftmax(t *testing.T) {
	probs := softmax([]float32{1, 2, 3})
	require.Len(t, probs, 3)

	var sum float32
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, float64(sum), 1e-5)
	assert.Greater(t, probs[2], probs[1])
	assert.Greater(t, probs[1], probs[0])

	// Large logits must not overflow thanks to max subtraction.
	stable := softmax([]float32{1000, 1001})
	assert.InDelta(t, 1.0, float64(stable[0]+stable[1]), 1e-5)
	assert.Greater(t, stable[1], stable[0])

	assert.Nil(t, softmax(nil))
}
