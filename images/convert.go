// Package images - Image conversion and measurement utilities shared by the
// motion gate and the classifier. Everything here operates on gocv.Mat; the
// caller owns the returned Mats and must Close them.
package images

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ToMat converts an image.Image into a BGR gocv.Mat.
func ToMat(img image.Image) (gocv.Mat, error) {
	if img == nil {
		return gocv.NewMat(), errors.New("input image is nil")
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "converting image to Mat")
	}
	return mat, nil
}

// ToImage converts a Mat back into an image.Image.
func ToImage(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, errors.New("input Mat is empty")
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "converting Mat to image")
	}
	return img, nil
}

// Crop returns a standalone copy of the given region, clamped to the Mat
// bounds. The copy stays valid after the source Mat is closed.
func Crop(mat gocv.Mat, rect image.Rectangle) (gocv.Mat, error) {
	if mat.Empty() {
		return gocv.NewMat(), errors.New("input Mat is empty")
	}
	bounds := image.Rect(0, 0, mat.Cols(), mat.Rows())
	clamped := rect.Intersect(bounds)
	if clamped.Empty() {
		return gocv.NewMat(), errors.Errorf("region %v is outside the %dx%d frame", rect, mat.Cols(), mat.Rows())
	}
	region := mat.Region(clamped)
	defer region.Close()
	return region.Clone(), nil
}

// EncodeJPEG serializes a Mat as JPEG bytes.
func EncodeJPEG(mat gocv.Mat) ([]byte, error) {
	if mat.Empty() {
		return nil, errors.New("input Mat is empty")
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, errors.Wrap(err, "encoding JPEG")
	}
	defer buf.Close()
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// DecodeJPEG decodes JPEG (or PNG) bytes into a color Mat.
func DecodeJPEG(data []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "decoding image bytes")
	}
	if mat.Empty() {
		return gocv.NewMat(), errors.New("decoded Mat is empty")
	}
	return mat, nil
}
