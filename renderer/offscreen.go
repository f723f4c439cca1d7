package renderer

import (
	"context"
	"fmt"
	"log"

	"github.com/richinsley/goshaderfx/gpu"
	"github.com/richinsley/goshaderfx/inputs"
)

// Frame represents a single rendered frame's data, ready for encoding.
type Frame struct {
	Pixels []byte
	PTS    int64
}

// FrameSink consumes rendered frames. WriteFrame receives RGBA rows bottom
// first, as the GPU reads them back.
type FrameSink interface {
	WriteFrame(pixels []byte) error
	Close() error
}

const numBuffers = 3

// Offscreen is the render target the final pass draws into while recording.
type Offscreen struct {
	dev    gpu.Device
	target *inputs.RenderTarget
	pts    int64
}

func NewOffscreen(dev gpu.Device, width, height int) (*Offscreen, error) {
	target, err := inputs.NewRenderTarget(dev, width, height, gpu.RGBA8)
	if err != nil {
		return nil, fmt.Errorf("failed to create offscreen target: %w", err)
	}
	return &Offscreen{dev: dev, target: target}, nil
}

func (o *Offscreen) Target() *inputs.RenderTarget { return o.target }

// Read copies the target back to memory and stamps it with the next PTS.
func (o *Offscreen) Read() *Frame {
	o.target.Bind()
	w, h := o.target.Size()
	f := &Frame{Pixels: o.dev.ReadPixels(w, h), PTS: o.pts}
	o.pts++
	return f
}

func (o *Offscreen) Destroy() {
	o.target.Destroy()
}

// Record renders frames ticks of d into a width x height offscreen target
// and hands each one to sink from a separate goroutine. The driver is
// resized to match so every frame has the size the sink expects. The sink
// is closed before Record returns.
func (d *Driver) Record(ctx context.Context, frames, width, height int, sink FrameSink) error {
	log.Println("Starting in record mode...")
	if width <= 0 || height <= 0 {
		sink.Close()
		return fmt.Errorf("invalid record size %dx%d", width, height)
	}
	d.Resize(width, height)
	off, err := NewOffscreen(d.dev, width, height)
	if err != nil {
		sink.Close()
		return err
	}
	defer off.Destroy()
	d.SetOutput(off.Target())
	defer d.SetOutput(nil)

	frameChan := make(chan *Frame, numBuffers)
	encoderDone := make(chan error, 1)
	go func() {
		var werr error
		for f := range frameChan {
			if werr != nil {
				continue
			}
			if werr = sink.WriteFrame(f.Pixels); werr != nil {
				werr = fmt.Errorf("failed to write frame %d: %w", f.PTS, werr)
			}
		}
		cerr := sink.Close()
		if werr == nil {
			werr = cerr
		}
		encoderDone <- werr
	}()

	var renderErr error
	for i := 0; i < frames; i++ {
		if renderErr = ctx.Err(); renderErr != nil {
			break
		}
		d.Tick()
		frameChan <- off.Read()
	}
	close(frameChan)

	if err := <-encoderDone; err != nil {
		return err
	}
	if renderErr == nil {
		log.Printf("Recorded %d frames", frames)
	}
	return renderErr
}
