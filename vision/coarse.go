package vision

import (
	"image"
	"os"
	"sort"
	"sync"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/yardeye/go-sentinel/images"
)

const (
	coarseInputSize = 640
	coarseAnchors   = 8400
	// 4 box coordinates + one score per label in YOLOClasses.
	coarseOutputRows = 4 + 80
)

// Candidate is one raw detection from the coarse pass, before interest-set
// filtering and secondary classification.
type Candidate struct {
	Label      string
	Confidence float64
	Box        image.Rectangle
}

// CoarseDetector produces raw class+box+confidence candidates over a full
// frame. Implementations must be safe for use from a single goroutine.
type CoarseDetector interface {
	Detect(frame gocv.Mat) ([]Candidate, error)
	Close() error
}

// ONNXDetectorConfig configures the ONNX coarse detector.
type ONNXDetectorConfig struct {
	// ModelPath is the ONNX model file.
	ModelPath string
	// ConfidenceThreshold discards anchors below this score during decode.
	ConfidenceThreshold float32
	// NMSThreshold is the IoU above which overlapping boxes are suppressed.
	NMSThreshold float32
}

// ONNXDetector runs a YOLO-family ONNX model through onnxruntime.
// The model takes a 1x3x640x640 float32 input and emits a 1x84x8400 output:
// four box rows followed by one score row per class.
type ONNXDetector struct {
	cfg     ONNXDetectorConfig
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	mu      sync.Mutex
}

// NewONNXDetector loads the coarse model and prepares reusable input/output
// tensors. A missing model file or runtime failure is returned to the caller;
// the pipeline treats it as fatal at startup.
func NewONNXDetector(cfg ONNXDetectorConfig) (*ONNXDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "coarse model not found at %s", cfg.ModelPath)
	}
	if err := ensureRuntime(); err != nil {
		return nil, err
	}
	if cfg.NMSThreshold <= 0 {
		cfg.NMSThreshold = 0.5
	}

	inputShape := ort.NewShape(1, 3, coarseInputSize, coarseInputSize)
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}

	outputShape := ort.NewShape(1, coarseOutputRows, coarseAnchors)
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
	options.SetIntraOpNumThreads(4)
	options.SetInterOpNumThreads(2)
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "creating inference session")
	}

	return &ONNXDetector{cfg: cfg, session: session, input: input, output: output}, nil
}

// Detect runs the coarse pass over the full frame and returns decoded,
// NMS-filtered candidates in frame pixel coordinates.
func (d *ONNXDetector) Detect(frame gocv.Mat) ([]Candidate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil, errors.New("detector is closed")
	}
	if frame.Empty() {
		return nil, errors.New("input frame is empty")
	}

	img, err := images.ToImage(frame)
	if err != nil {
		return nil, err
	}
	if err := d.prepareInput(img); err != nil {
		return nil, err
	}

	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "running coarse inference")
	}

	candidates := d.decodeOutput(frame.Cols(), frame.Rows())
	return d.applyNMS(candidates), nil
}

// prepareInput fills the input tensor with the CHW-planar, 0-1 normalized
// pixels of the frame resized to the model geometry.
func (d *ONNXDetector) prepareInput(img image.Image) error {
	data := d.input.GetData()
	channelSize := coarseInputSize * coarseInputSize
	if len(data) < channelSize*3 {
		return errors.Errorf("input tensor holds %d floats, needs %d", len(data), channelSize*3)
	}
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	resized := resize.Resize(coarseInputSize, coarseInputSize, img, resize.Lanczos3)
	i := 0
	for y := 0; y < coarseInputSize; y++ {
		for x := 0; x < coarseInputSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}

// decodeOutput walks the anchor columns, keeps the best class per anchor
// above the confidence threshold, and scales boxes back to frame pixels.
func (d *ONNXDetector) decodeOutput(frameWidth, frameHeight int) []Candidate {
	data := d.output.GetData()
	scaleX := float32(frameWidth) / coarseInputSize
	scaleY := float32(frameHeight) / coarseInputSize

	var candidates []Candidate
	for a := 0; a < coarseAnchors; a++ {
		classID := 0
		best := float32(0)
		for c := 0; c < len(YOLOClasses); c++ {
			score := data[(4+c)*coarseAnchors+a]
			if score > best {
				best = score
				classID = c
			}
		}
		if best < d.cfg.ConfidenceThreshold {
			continue
		}

		cx := data[0*coarseAnchors+a]
		cy := data[1*coarseAnchors+a]
		w := data[2*coarseAnchors+a]
		h := data[3*coarseAnchors+a]

		x1 := int((cx - w/2) * scaleX)
		y1 := int((cy - h/2) * scaleY)
		x2 := int((cx + w/2) * scaleX)
		y2 := int((cy + h/2) * scaleY)

		x1 = max(0, x1)
		y1 = max(0, y1)
		x2 = min(frameWidth, x2)
		y2 = min(frameHeight, y2)
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		candidates = append(candidates, Candidate{
			Label:      YOLOClasses[classID],
			Confidence: float64(best),
			Box:        image.Rect(x1, y1, x2, y2),
		})
	}
	return candidates
}

// applyNMS suppresses overlapping boxes, keeping the highest-confidence one.
func (d *ONNXDetector) applyNMS(candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return candidates
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	var result []Candidate
	used := make([]bool, len(candidates))
	for i := range candidates {
		if used[i] {
			continue
		}
		result = append(result, candidates[i])
		used[i] = true
		for j := i + 1; j < len(candidates); j++ {
			if used[j] {
				continue
			}
			if boxIoU(candidates[i].Box, candidates[j].Box) > d.cfg.NMSThreshold {
				used[j] = true
			}
		}
	}
	return result
}

// boxIoU computes the Intersection over Union of two rectangles.
func boxIoU(a, b image.Rectangle) float32 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := inter.Dx() * inter.Dy()
	union := a.Dx()*a.Dy() + b.Dx()*b.Dy() - interArea
	if union <= 0 {
		return 0
	}
	return float32(interArea) / float32(union)
}

// Close releases the session and its tensors.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	if d.input != nil {
		d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		d.output.Destroy()
		d.output = nil
	}
	return nil
}
