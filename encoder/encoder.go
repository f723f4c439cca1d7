// Package encoder streams rendered RGBA frames into an ffmpeg process.
package encoder

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/richinsley/goshaderfx/options"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Encoder writes raw frames to ffmpeg's stdin. Frames arrive bottom row
// first and ffmpeg flips them back.
type Encoder struct {
	pipe      *io.PipeWriter
	done      chan error
	frameSize int
	frames    int64
	output    string

	closed   bool
	closeErr error
}

// videoCodec maps the -codec flag to an ffmpeg encoder name. Anything other
// than the two shorthands is passed through as is.
func videoCodec(pref string) string {
	switch pref {
	case "", "h264":
		return "libx264"
	case "hevc":
		return "libx265"
	default:
		return pref
	}
}

func getArgs(width, height, fps int, codec, outputFile string) (inputArgs ffmpeg.KwArgs, outputArgs ffmpeg.KwArgs) {
	inputArgs = ffmpeg.KwArgs{
		"f":       "rawvideo",
		"pix_fmt": "rgba",
		"s":       fmt.Sprintf("%dx%d", width, height),
		"r":       fps,
	}

	outputArgs = ffmpeg.KwArgs{
		"vf":      "vflip",
		"c:v":     videoCodec(codec),
		"pix_fmt": "yuv420p",
	}
	if codec == "hevc" && strings.HasSuffix(outputFile, ".mp4") {
		outputArgs["tag:v"] = "hvc1"
	}
	return
}

// New starts ffmpeg writing to the output file named in opts.
func New(opts *options.ShaderOptions) (*Encoder, error) {
	width, height, fps := *opts.Width, *opts.Height, *opts.FPS
	if width <= 0 || height <= 0 || fps <= 0 {
		return nil, fmt.Errorf("invalid recording format %dx%d@%d", width, height, fps)
	}
	if *opts.OutputFile == "" {
		return nil, errors.New("no output file")
	}

	pipeReader, pipeWriter := io.Pipe()
	inputArgs, outputArgs := getArgs(width, height, fps, *opts.Codec, *opts.OutputFile)
	ffmpegCmd := ffmpeg.Input("pipe:", inputArgs).
		Output(*opts.OutputFile, outputArgs).
		OverWriteOutput().WithInput(pipeReader).ErrorToStdOut()
	if opts.FFmpegPath != nil && *opts.FFmpegPath != "" {
		ffmpegCmd = ffmpegCmd.SetFfmpegPath(*opts.FFmpegPath)
	}

	e := &Encoder{
		pipe:      pipeWriter,
		done:      make(chan error, 1),
		frameSize: width * height * 4,
		output:    *opts.OutputFile,
	}
	log.Printf("Encoder: %dx%d@%d with %s to %s", width, height, fps, outputArgs["c:v"], e.output)
	go func() {
		err := ffmpegCmd.Run()
		// unblock writers if ffmpeg went away early
		if err != nil {
			pipeReader.CloseWithError(fmt.Errorf("ffmpeg exited: %w", err))
		} else {
			pipeReader.CloseWithError(io.ErrClosedPipe)
		}
		e.done <- err
	}()
	return e, nil
}

// WriteFrame sends one RGBA frame.
func (e *Encoder) WriteFrame(pixels []byte) error {
	if len(pixels) != e.frameSize {
		return fmt.Errorf("frame is %d bytes, want %d", len(pixels), e.frameSize)
	}
	if _, err := e.pipe.Write(pixels); err != nil {
		return err
	}
	e.frames++
	return nil
}

// Frames returns how many frames were written.
func (e *Encoder) Frames() int64 { return e.frames }

// Close ends the stream and waits for ffmpeg to finish the file.
func (e *Encoder) Close() error {
	if e.closed {
		return e.closeErr
	}
	e.closed = true
	e.pipe.Close()
	if err := <-e.done; err != nil {
		e.closeErr = fmt.Errorf("ffmpeg failed writing %s: %w", e.output, err)
		return e.closeErr
	}
	log.Printf("Encoder: wrote %d frames to %s", e.frames, e.output)
	return nil
}
