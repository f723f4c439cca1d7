package source

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/richinsley/goshaderfx/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

func TestImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 200, A: 255})
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	dev := gputest.New()
	s, err := NewImage(dev, path)
	require.NoError(t, err)
	w, h := s.Size()
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, h)
	assert.False(t, s.Update())
	// first row stays first
	assert.Equal(t, []byte{200, 0, 0, 255}, dev.TexturePixels(s.Texture())[:4])

	require.NoError(t, s.Close())
	assert.Equal(t, 0, dev.LiveObjects())
}

func TestImageErrors(t *testing.T) {
	dev := gputest.New()
	_, err := NewImage(dev, filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0644))
	_, err = NewImage(dev, path)
	assert.Error(t, err)
	assert.Zero(t, dev.Allocations)
}

func TestImageData(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.SetRGBA(0, 0, color.RGBA{G: 90, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	dev := gputest.New()
	s, err := NewImageData(dev, "https://example.invalid/frame.png", buf.Bytes())
	require.NoError(t, err)
	w, h := s.Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 2, h)
	assert.Equal(t, []byte{0, 90, 0, 255}, dev.TexturePixels(s.Texture())[:4])
	require.NoError(t, s.Close())

	_, err = NewImageData(dev, "https://example.invalid/junk.png", []byte("junk"))
	assert.ErrorContains(t, err, "junk.png")
	assert.Zero(t, dev.LiveObjects())
}

func TestPatternSweeps(t *testing.T) {
	dev := gputest.New()
	p := NewPattern(dev, 64, 48)
	assert.Equal(t, 0, p.Column())

	require.True(t, p.Update())
	assert.Equal(t, 1, p.Column())
	pix := dev.TexturePixels(p.Texture())
	require.Len(t, pix, 64*48*4)
	// marker column is white on a row that is not a grid line
	i := (20*64 + 1) * 4
	assert.Equal(t, []byte{255, 255, 255, 255}, pix[i:i+4])
	// previous column restored to the bar colour
	j := (20*64 + 0) * 4
	assert.Equal(t, []byte{255, 255, 255, 255}, pix[j:j+4], "column 0 is a grid line")
	k := (20*64 + 2) * 4
	assert.Equal(t, []byte{192, 192, 192, 255}, pix[k:k+4])

	require.NoError(t, p.Close())
	assert.Equal(t, 0, dev.LiveObjects())
}

func TestIsVideo(t *testing.T) {
	assert.True(t, IsVideo("clip.MP4"))
	assert.True(t, IsVideo("/tmp/a.webm"))
	assert.False(t, IsVideo("shot.png"))
}

func TestVideoDecodesFrames(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	path := filepath.Join(t.TempDir(), "clip.mp4")
	err := ffmpeg.Input("testsrc=size=64x48:rate=10", ffmpeg.KwArgs{"f": "lavfi", "t": 1}).
		Output(path, ffmpeg.KwArgs{"pix_fmt": "yuv420p"}).
		OverWriteOutput().Run()
	require.NoError(t, err)

	dev := gputest.New()
	v, err := NewVideo(dev, path, VideoOptions{Width: 32, Height: 24, Loop: true})
	require.NoError(t, err)
	defer v.Close()

	deadline := time.Now().Add(10 * time.Second)
	for !v.Update() {
		if time.Now().After(deadline) {
			t.Fatal("no frame decoded")
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Len(t, dev.TexturePixels(v.Texture()), 32*24*4)

	require.NoError(t, v.Close())
	assert.Equal(t, 0, dev.LiveObjects())
}
