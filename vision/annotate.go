package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var classColors = map[Class]color.RGBA{
	ClassPerson: {0, 255, 0, 0},
	ClassAnimal: {255, 0, 0, 0},
	ClassBird:   {0, 0, 255, 0},
}

// Annotate draws bounding boxes and labels for every detection onto a copy
// of the frame. The caller owns the returned Mat.
func Annotate(frame gocv.Mat, ev DetectionEvent) gocv.Mat {
	out := frame.Clone()
	for _, det := range ev.Detections {
		c, ok := classColors[det.Class]
		if !ok {
			c = color.RGBA{128, 128, 128, 0}
		}

		label := fmt.Sprintf("%s: %.2f", det.Class, det.Confidence)
		if det.Class == ClassAnimal && det.Identity != "" {
			label = fmt.Sprintf("%s: %.2f", det.Identity, det.IdentityConfidence)
		}
		if det.Species != "" {
			label += fmt.Sprintf(" (%s)", det.Species)
		}

		rect := det.Rect()
		gocv.Rectangle(&out, rect, c, 2)
		gocv.PutText(&out, label, image.Pt(rect.Min.X, rect.Min.Y-5),
			gocv.FontHersheyPlain, 1.2, c, 2)
	}
	return out
}
