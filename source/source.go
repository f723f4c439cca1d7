// Package source provides the unfiltered picture the effects run over: a
// still image, a decoded video, or a generated test pattern. Textures hold
// rows top first.
package source

import (
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/richinsley/goshaderfx/gpu"
	"github.com/richinsley/goshaderfx/inputs"
)

// Source is a picture backed by a GPU texture.
type Source interface {
	Texture() uint32
	Size() (width, height int)
	// Update uploads new content, if any, and reports whether it did. Must
	// be called on the GPU thread.
	Update() bool
	Close() error
}

// Image is a still picture loaded once.
type Image struct {
	dev     gpu.Device
	texture uint32
	width   int
	height  int
}

// NewImage decodes the file at path into a texture.
func NewImage(dev gpu.Device, path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rgba, err := inputs.DecodeRGBA(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return newImage(dev, rgba), nil
}

// NewImageData decodes an encoded image already in memory, such as one
// downloaded by an assets.Fetcher. name is only used in errors.
func NewImageData(dev gpu.Device, name string, data []byte) (*Image, error) {
	rgba, err := inputs.DecodeRGBABytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return newImage(dev, rgba), nil
}

func newImage(dev gpu.Device, rgba *image.RGBA) *Image {
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	return &Image{
		dev:     dev,
		texture: dev.CreateTexture(w, h, gpu.RGBA8, rgba.Pix),
		width:   w,
		height:  h,
	}
}

func (s *Image) Texture() uint32  { return s.texture }
func (s *Image) Size() (int, int) { return s.width, s.height }
func (s *Image) Update() bool     { return false }

func (s *Image) Close() error {
	if s.texture != 0 {
		s.dev.DeleteTexture(s.texture)
		s.texture = 0
	}
	return nil
}

var videoExtensions = []string{".mp4", ".mkv", ".webm", ".mov", ".avi", ".m4v", ".gif"}

// IsVideo guesses from the file name whether path should be decoded with
// ffmpeg.
func IsVideo(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range videoExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
