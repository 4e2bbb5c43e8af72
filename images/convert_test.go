package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func solidImage(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestToMatAndBack(t *testing.T) {
	img := solidImage(64, 48, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	mat, err := ToMat(img)
	require.NoError(t, err)
	defer mat.Close()
	assert.Equal(t, 48, mat.Rows())
	assert.Equal(t, 64, mat.Cols())

	back, err := ToImage(mat)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), back.Bounds())
}

func TestToMatNil(t *testing.T) {
	mat, err := ToMat(nil)
	assert.Error(t, err)
	assert.True(t, mat.Empty())
}

func TestToImageEmpty(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	_, err := ToImage(empty)
	assert.Error(t, err)
}

func TestCrop(t *testing.T) {
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 100, 200, gocv.MatTypeCV8UC3)
	defer src.Close()

	t.Run("inside bounds", func(t *testing.T) {
		crop, err := Crop(src, image.Rect(10, 10, 60, 40))
		require.NoError(t, err)
		defer crop.Close()
		assert.Equal(t, 30, crop.Rows())
		assert.Equal(t, 50, crop.Cols())
	})

	t.Run("clamped to bounds", func(t *testing.T) {
		crop, err := Crop(src, image.Rect(150, 50, 400, 300))
		require.NoError(t, err)
		defer crop.Close()
		assert.Equal(t, 50, crop.Rows(), "height clamps to the frame edge")
		assert.Equal(t, 50, crop.Cols(), "width clamps to the frame edge")
	})

	t.Run("fully outside bounds", func(t *testing.T) {
		_, err := Crop(src, image.Rect(500, 500, 600, 600))
		assert.Error(t, err)
	})

	t.Run("survives source close", func(t *testing.T) {
		local := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(99, 99, 99, 0), 50, 50, gocv.MatTypeCV8UC3)
		crop, err := Crop(local, image.Rect(0, 0, 10, 10))
		require.NoError(t, err)
		defer crop.Close()
		local.Close()
		assert.False(t, crop.Empty())
		assert.Equal(t, uint8(99), crop.GetVecbAt(5, 5)[0])
	})
}

func TestJPEGRoundTrip(t *testing.T) {
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), 32, 32, gocv.MatTypeCV8UC3)
	defer src.Close()

	data, err := EncodeJPEG(src)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	decoded, err := DecodeJPEG(data)
	require.NoError(t, err)
	defer decoded.Close()
	assert.Equal(t, 32, decoded.Rows())
	assert.Equal(t, 32, decoded.Cols())
	// JPEG is lossy but a solid red block survives recognizably.
	px := decoded.GetVecbAt(16, 16)
	assert.Greater(t, px[2], uint8(200), "red channel dominates")
	assert.Less(t, px[0], uint8(50), "blue channel stays low")
}

func TestEncodeJPEGEmpty(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	_, err := EncodeJPEG(empty)
	assert.Error(t, err)
}

func TestDecodeJPEGGarbage(t *testing.T) {
	_, err := DecodeJPEG([]byte("definitely not a jpeg"))
	assert.Error(t, err)
}
