package images

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ColorFeatures summarizes the hue/saturation/brightness distribution of a
// cropped region. Hue follows the OpenCV convention (0-179).
type ColorFeatures struct {
	DominantHue   int
	AvgSaturation float64
	AvgBrightness float64
}

// ComputeColorFeatures converts the crop to HSV and derives the dominant hue
// plus mean saturation and brightness. Used by the bird species heuristic.
func ComputeColorFeatures(crop gocv.Mat) (ColorFeatures, error) {
	if crop.Empty() {
		return ColorFeatures{}, errors.New("input crop is empty")
	}
	if crop.Channels() != 3 {
		return ColorFeatures{}, errors.Errorf("expected a 3-channel crop, got %d channels", crop.Channels())
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(crop, &hsv, gocv.ColorBGRToHSV)

	var hueHist [180]int64
	var satSum, valSum float64

	rows := hsv.Rows()
	cols := hsv.Cols()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			px := hsv.GetVecbAt(y, x)
			hueHist[int(px[0])%180]++
			satSum += float64(px[1])
			valSum += float64(px[2])
		}
	}

	total := float64(rows * cols)
	dominant := 0
	for h, count := range hueHist {
		if count > hueHist[dominant] {
			dominant = h
		}
	}

	return ColorFeatures{
		DominantHue:   dominant,
		AvgSaturation: satSum / total,
		AvgBrightness: valSum / total,
	}, nil
}
