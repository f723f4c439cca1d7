// Package inputs allocates the GPU resources an effect needs beyond its
// programs: render targets, lookup textures and the full-screen quad.
package inputs

import (
	"errors"
	"fmt"

	"github.com/richinsley/goshaderfx/gpu"
)

// ErrFormatUnsupported is returned when a render target format needs a
// capability the device does not report.
var ErrFormatUnsupported = errors.New("color format not supported by device")

// RenderTarget is an off-screen color buffer. A pass renders into it and a
// later pass samples its texture.
type RenderTarget struct {
	dev     gpu.Device
	fbo     uint32
	texture uint32
	format  gpu.ColorFormat
	width   int
	height  int
}

// NewRenderTarget creates a texture of the given size and format and attaches
// it to a new framebuffer.
func NewRenderTarget(dev gpu.Device, width, height int, format gpu.ColorFormat) (*RenderTarget, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid render target size %dx%d", width, height)
	}
	if format == gpu.RGBA16F && !dev.HasExtension(gpu.CapFloatTarget) {
		return nil, fmt.Errorf("%s render target: %w", format, ErrFormatUnsupported)
	}

	rt := &RenderTarget{dev: dev, format: format, width: width, height: height}
	rt.texture = dev.CreateTexture(width, height, format, nil)
	fbo, complete := dev.CreateFramebuffer(rt.texture)
	rt.fbo = fbo
	if !complete {
		rt.Destroy()
		return nil, fmt.Errorf("framebuffer for %dx%d %s target is not complete", width, height, format)
	}
	return rt, nil
}

// Bind makes the target the destination of subsequent draws and sets the
// viewport to cover it.
func (rt *RenderTarget) Bind() {
	rt.dev.BindFramebuffer(rt.fbo)
	rt.dev.Viewport(rt.width, rt.height)
}

// Texture returns the color attachment for sampling by a later pass.
func (rt *RenderTarget) Texture() uint32 { return rt.texture }

// Framebuffer returns the framebuffer handle.
func (rt *RenderTarget) Framebuffer() uint32 { return rt.fbo }

func (rt *RenderTarget) Size() (int, int)        { return rt.width, rt.height }
func (rt *RenderTarget) Format() gpu.ColorFormat { return rt.format }

// Destroy releases the framebuffer and its texture. It is safe to call more
// than once.
func (rt *RenderTarget) Destroy() {
	if rt.fbo != 0 {
		rt.dev.DeleteFramebuffer(rt.fbo)
		rt.fbo = 0
	}
	if rt.texture != 0 {
		rt.dev.DeleteTexture(rt.texture)
		rt.texture = 0
	}
}
