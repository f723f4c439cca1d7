package inputs

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DecodeRGBA decodes a png, jpeg, bmp or webp image into tightly packed RGBA
// with row 0 at the top.
func DecodeRGBA(r io.Reader) (*image.RGBA, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	rgba := ToRGBA(img)
	if rgba.Rect.Dx() == 0 || rgba.Rect.Dy() == 0 {
		return nil, fmt.Errorf("empty %s image", format)
	}
	return rgba, nil
}

// DecodeRGBABytes is DecodeRGBA over an in-memory buffer.
func DecodeRGBABytes(data []byte) (*image.RGBA, error) {
	return DecodeRGBA(bytes.NewReader(data))
}

// ToRGBA converts img to an *image.RGBA whose bounds start at the origin and
// whose stride is exactly 4*width.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
		return rgba
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
