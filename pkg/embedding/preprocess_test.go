package embedding

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodePNG 生成一张左半红、右半蓝的测试图片。
func encodePNG(t *testing.T, w, h int, alpha uint8) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 200, A: alpha}
			if x >= w/2 {
				c = color.NRGBA{B: 200, A: alpha}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocessProducesSquareOpaqueImage(t *testing.T) {
	out, err := Preprocess(encodePNG(t, 300, 200, 128), 224)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 224, 224), img.Bounds())

	for _, p := range []image.Point{{0, 0}, {223, 223}, {112, 40}} {
		_, _, _, a := img.At(p.X, p.Y).RGBA()
		assert.Equal(t, uint32(0xffff), a, "pixel %v must be opaque", p)
	}
}

func TestFitCoversWithoutLetterbox(t *testing.T) {
	// 宽图按高度放大后居中裁剪：四个角都应是原图内容（红或蓝），不会出现黑边。
	img, err := Decode(encodePNG(t, 400, 100, 255))
	require.NoError(t, err)

	out := Fit(img, 50)
	require.Equal(t, image.Rect(0, 0, 50, 50), out.Bounds())

	left := out.RGBAAt(1, 25)
	right := out.RGBAAt(48, 25)
	assert.Greater(t, left.R, uint8(150))
	assert.Greater(t, right.B, uint8(150))
	for _, c := range []color.RGBA{out.RGBAAt(0, 0), out.RGBAAt(49, 49)} {
		assert.False(t, c.R == 0 && c.G == 0 && c.B == 0, "corner must not be padding")
	}
}

func TestDecodeAcceptsCommonFormats(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, src, nil))
	var gf bytes.Buffer
	require.NoError(t, gif.Encode(&gf, src, nil))

	for name, data := range map[string][]byte{
		"png":  encodePNG(t, 8, 8, 255),
		"jpeg": jpg.Bytes(),
		"gif":  gf.Bytes(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			assert.NoError(t, err)
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = Preprocess(nil, 224)
	assert.ErrorIs(t, err, ErrDecode)
}
