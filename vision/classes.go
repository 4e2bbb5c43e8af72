// Package vision - Two-stage object classification for the monitoring
// pipeline: a coarse multi-class detector over the full frame, followed by
// per-class secondary classifiers (animal identity, bird species) applied to
// the cropped regions the coarse pass flagged.
package vision

// Class is the coarse label set the pipeline cares about.
type Class string

const (
	// ClassPerson is a detected human.
	ClassPerson Class = "person"
	// ClassAnimal is a detected four-legged animal (dog, cat, ...).
	ClassAnimal Class = "animal"
	// ClassBird is a detected bird.
	ClassBird Class = "bird"
)

// Classes lists the interest set in a stable order.
var Classes = []Class{ClassPerson, ClassAnimal, ClassBird}

// YOLOClasses is the label table of the coarse detector's output head.
var YOLOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie",
	"suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// interestSet maps raw detector labels into the pipeline's class enum.
// Labels outside this map are discarded by the classifier.
var interestSet = map[string]Class{
	"person": ClassPerson,
	"bird":   ClassBird,
	"dog":    ClassAnimal,
	"cat":    ClassAnimal,
	"horse":  ClassAnimal,
	"sheep":  ClassAnimal,
	"cow":    ClassAnimal,
	"bear":   ClassAnimal,
}

// ClassForLabel maps a raw detector label into the interest set. The second
// return is false for labels the pipeline ignores.
func ClassForLabel(label string) (Class, bool) {
	c, ok := interestSet[label]
	return c, ok
}
