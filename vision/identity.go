package vision

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/yardeye/go-sentinel/images"
)

const (
	identityInputHeight = 224
	identityInputWidth  = 224
)

// DefaultIdentityLabels is the fallback label set when no label file is
// available.
var DefaultIdentityLabels = []string{"felix", "leia"}

// LoadIdentityLabels reads the identity label set from a JSON array file,
// falling back to DefaultIdentityLabels when the file is missing or invalid.
func LoadIdentityLabels(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultIdentityLabels
	}
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil || len(labels) == 0 {
		return DefaultIdentityLabels
	}
	return labels
}

// IdentityClassifier refines animal detections into a per-individual label.
// The model takes a 1xHxWx3 float32 input normalized to 0-1 and emits one
// logit per label. Lifecycle: LoadIdentityClassifier -> Classify -> Close.
type IdentityClassifier struct {
	labels  []string
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	mu      sync.Mutex
}

// LoadIdentityClassifier loads the identity model. Callers treat an error as
// capability degradation, not a fatal condition: the pipeline runs in
// detection-only mode with a nil classifier.
func LoadIdentityClassifier(modelPath string, labels []string) (*IdentityClassifier, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.Wrapf(err, "identity model not found at %s", modelPath)
	}
	if err := ensureRuntime(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		labels = DefaultIdentityLabels
	}

	inputShape := ort.NewShape(1, identityInputHeight, identityInputWidth, 3)
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}

	outputShape := ort.NewShape(1, int64(len(labels)))
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "creating session options")
	}
	defer options.Destroy()
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input"},
		[]string{"output"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "creating identity session")
	}

	return &IdentityClassifier{labels: labels, session: session, input: input, output: output}, nil
}

// Labels returns the configured identity label set.
func (c *IdentityClassifier) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Classify preprocesses an animal crop, runs inference, and returns the
// arg-max label with its confidence plus the full score map. A preprocessing
// failure feeds a zero-filled tensor instead of aborting the pass.
func (c *IdentityClassifier) Classify(crop gocv.Mat) (Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return UnknownIdentity, errors.New("identity classifier is closed")
	}

	batch := c.preprocess(crop)
	copy(c.input.GetData(), batch.Data().([]float32))

	if err := c.session.Run(); err != nil {
		return UnknownIdentity, errors.Wrap(err, "running identity inference")
	}

	probs := softmax(c.output.GetData())
	bestIdx := 0
	for i, p := range probs {
		if p > probs[bestIdx] {
			bestIdx = i
		}
	}

	scores := make(map[string]float64, len(c.labels))
	for i, label := range c.labels {
		if i < len(probs) {
			scores[label] = float64(probs[i])
		}
	}

	return Identity{
		Label:      c.labels[bestIdx],
		Confidence: float64(probs[bestIdx]),
		Scores:     scores,
	}, nil
}

// preprocess resizes the crop to the model geometry, normalizes the float32
// pixel range to 0-1, and adds the batch dimension. Any failure yields a
// zero-filled tensor of the expected shape.
func (c *IdentityClassifier) preprocess(crop gocv.Mat) *tensor.Dense {
	zero := func() *tensor.Dense {
		return tensor.New(
			tensor.WithShape(1, identityInputHeight, identityInputWidth, 3),
			tensor.Of(tensor.Float32),
		)
	}

	img, err := images.ToImage(crop)
	if err != nil {
		return zero()
	}
	resized := resize.Resize(identityInputWidth, identityInputHeight, img, resize.Lanczos3)

	data := make([]float32, identityInputHeight*identityInputWidth*3)
	i := 0
	for y := 0; y < identityInputHeight; y++ {
		for x := 0; x < identityInputWidth; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data[i] = float32(r>>8) / 255.0
			data[i+1] = float32(g>>8) / 255.0
			data[i+2] = float32(b>>8) / 255.0
			i += 3
		}
	}

	return tensor.New(
		tensor.WithShape(1, identityInputHeight, identityInputWidth, 3),
		tensor.WithBacking(data),
	)
}

// softmax converts logits to a probability distribution, with the max
// subtracted for numeric stability.
func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}
	out := make([]float32, len(logits))
	var sum float32
	for i, l := range logits {
		out[i] = math32.Exp(l - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Close releases the session and its tensors.
func (c *IdentityClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	if c.input != nil {
		c.input.Destroy()
		c.input = nil
	}
	if c.output != nil {
		c.output.Destroy()
		c.output = nil
	}
	return nil
}
