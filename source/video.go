package source

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"

	"github.com/richinsley/goshaderfx/gpu"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Video decodes a file with ffmpeg into raw RGBA frames. Decoding runs at
// the file's own rate on a background goroutine; only the newest frame is
// kept and Update uploads it.
type Video struct {
	dev     gpu.Device
	texture uint32
	width   int
	height  int
	path    string

	frames     chan []byte
	cmd        *exec.Cmd
	pipeReader *io.PipeReader
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// VideoOptions configures NewVideo.
type VideoOptions struct {
	Width, Height int
	Loop          bool
	FFmpegPath    string
}

// NewVideo starts decoding path scaled to the requested size.
func NewVideo(dev gpu.Device, path string, opts VideoOptions) (*Video, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid video size %dx%d", opts.Width, opts.Height)
	}
	v := &Video{
		dev:    dev,
		width:  opts.Width,
		height: opts.Height,
		path:   path,
		frames: make(chan []byte, 1),
	}

	inputArgs := ffmpeg.KwArgs{"re": ""}
	if opts.Loop {
		inputArgs["stream_loop"] = -1
	}
	pipeReader, pipeWriter := io.Pipe()
	ffmpegCmd := ffmpeg.Input(path, inputArgs).
		Output("pipe:", ffmpeg.KwArgs{
			"f":       "rawvideo",
			"pix_fmt": "rgba",
			"s":       fmt.Sprintf("%dx%d", opts.Width, opts.Height),
			"an":      "",
		}).
		WithOutput(pipeWriter).
		ErrorToStdOut()
	if opts.FFmpegPath != "" {
		ffmpegCmd = ffmpegCmd.SetFfmpegPath(opts.FFmpegPath)
	}
	v.cmd = ffmpegCmd.Compile()
	if err := v.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg for %s: %w", path, err)
	}
	v.pipeReader = pipeReader
	v.texture = dev.CreateTexture(opts.Width, opts.Height, gpu.RGBA8, nil)

	v.wg.Add(2)
	go func() {
		defer v.wg.Done()
		err := v.cmd.Wait()
		if err != nil {
			log.Printf("Video %s: ffmpeg finished with error: %v", path, err)
		}
		pipeWriter.CloseWithError(io.EOF)
	}()
	go v.readFrames()
	log.Printf("Video %s: decoding at %dx%d", path, opts.Width, opts.Height)
	return v, nil
}

func (v *Video) readFrames() {
	defer v.wg.Done()
	frameSize := v.width * v.height * 4
	for {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(v.pipeReader, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				log.Printf("Video %s: read error: %v", v.path, err)
			}
			return
		}
		// keep only the newest frame
		select {
		case <-v.frames:
		default:
		}
		v.frames <- buf
	}
}

func (v *Video) Texture() uint32  { return v.texture }
func (v *Video) Size() (int, int) { return v.width, v.height }

func (v *Video) Update() bool {
	select {
	case pix := <-v.frames:
		v.dev.UpdateTexture(v.texture, v.width, v.height, gpu.RGBA8, pix)
		return true
	default:
		return false
	}
}

// Close stops ffmpeg and releases the texture.
func (v *Video) Close() error {
	v.closeOnce.Do(func() {
		v.pipeReader.CloseWithError(io.ErrClosedPipe)
		if v.cmd.Process != nil {
			v.cmd.Process.Kill()
		}
		v.wg.Wait()
		if v.texture != 0 {
			v.dev.DeleteTexture(v.texture)
			v.texture = 0
		}
	})
	return nil
}
