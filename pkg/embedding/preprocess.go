package embedding

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // 注册 GIF 解码器
	_ "image/jpeg" // 注册 JPEG 解码器
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // 注册 BMP 解码器
	_ "golang.org/x/image/webp" // 注册 WEBP 解码器
)

// Preprocess 解码图像，按 cover 方式缩放到 size×size（等比放大填满后居中裁剪，不留边），
// 丢弃 alpha 通道，最后编码为 PNG。
// 图库与查询图片必须走同一套预处理，否则相似度会悄悄失真。
func Preprocess(data []byte, size int) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	rgb := Fit(img, size)

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgb); err != nil {
		return nil, fmt.Errorf("编码预处理后的图像失败: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode 解码 JPEG/PNG/GIF/BMP/WEBP 图像，并根据 EXIF 自动旋转。
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: 图像内容为空", ErrDecode)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Fit 将图像裁剪缩放为 size×size 的不透明 RGB 图像。
func Fit(img image.Image, size int) *image.RGBA {
	filled := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
	return dropAlpha(filled)
}

// dropAlpha 保留非预乘的 RGB 分量，alpha 统一置为 255。
func dropAlpha(src *image.NRGBA) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.NRGBAAt(x, y)
			dst.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}
