// Package renderer drives the active effect: it arms bundles from the
// effect registry, runs their passes once per frame and tears them down
// when the selection or the surface size changes.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/richinsley/goshaderfx/config"
	"github.com/richinsley/goshaderfx/effects"
	"github.com/richinsley/goshaderfx/gpu"
	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/inputs"
	"github.com/richinsley/goshaderfx/notify"
	"github.com/richinsley/goshaderfx/shader"
	"github.com/richinsley/goshaderfx/source"
)

// ErrNoVertexArrays is returned by New when the device cannot bind vertex
// array objects. Nothing can be drawn without them.
var ErrNoVertexArrays = errors.New("vertex array objects are not supported")

// State is the lifecycle state of the driver.
type State int

const (
	Idle State = iota
	Armed
	Running
	TearingDown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Running:
		return "running"
	case TearingDown:
		return "tearing-down"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configures a Driver.
type Options struct {
	Device     gpu.Device
	Translator shader.Translator
	Source     source.Source
	Settings   *config.ShaderState
	Notifier   notify.Notifier

	// Width and Height are the initial surface size.
	Width, Height int

	LUTs    [2]string
	Fetcher inputs.Fetcher
}

// Driver owns the resident bundle and everything that runs it. All methods
// must be called on the GPU thread except Post.
type Driver struct {
	dev      gpu.Device
	xl       shader.Translator
	src      source.Source
	settings *config.ShaderState
	notifier notify.Notifier
	luts     [2]string
	fetcher  inputs.Fetcher

	registry *effects.Registry
	bundle   *effects.Bundle
	state    State
	changed  bool
	resized  bool

	width, height int
	frame         int32
	output        *inputs.RenderTarget

	blit     *shader.Program
	blitQuad *inputs.QuadLayout

	requests  chan func()
	done      chan struct{}
	closeOnce sync.Once
	listeners []func()
}

// New checks the device, builds the passthrough program used while no
// effect is running, and arms the persisted effect. A failure to arm is
// reported through the notifier and leaves the driver Idle; it is not an
// error.
func New(opts Options) (*Driver, error) {
	if !opts.Device.HasExtension(gpu.CapVertexArray) {
		opts.Notifier.ShowToast("Shaders are disabled: this GPU does not support vertex array objects",
			notify.IconImportant, true, "", true)
		return nil, ErrNoVertexArrays
	}

	d := &Driver{
		dev:      opts.Device,
		xl:       opts.Translator,
		src:      opts.Source,
		settings: opts.Settings,
		notifier: opts.Notifier,
		luts:     opts.LUTs,
		fetcher:  opts.Fetcher,
		registry: effects.NewRegistry(),
		width:    opts.Width,
		height:   opts.Height,
		requests: make(chan func(), 16),
		done:     make(chan struct{}),
	}

	blit, err := shader.Compile(d.dev, d.xl, shader.QuadVertex, shader.Passthrough)
	if err != nil {
		return nil, fmt.Errorf("failed to compile blit program: %w", err)
	}
	attrib := blit.Attrib(effects.PositionAttrib)
	if attrib < 0 {
		blit.Delete()
		return nil, fmt.Errorf("blit program does not read %s", effects.PositionAttrib)
	}
	d.blit = blit
	d.blitQuad = inputs.NewQuadLayout(d.dev, uint32(attrib))
	blit.Use()
	blit.SetMat4("MVP", effects.SourceProjection())
	blit.SetInt("u_texture", 0)

	if d.Active() != effects.None {
		d.arm()
	}
	return d, nil
}

// State returns the current lifecycle state.
func (d *Driver) State() State { return d.state }

// Active returns the persisted effect selection.
func (d *Driver) Active() effects.ID { return effects.ID(d.settings.Active()) }

// Bundle returns the resident bundle, or nil while Idle.
func (d *Driver) Bundle() *effects.Bundle { return d.bundle }

// Size returns the surface size.
func (d *Driver) Size() (int, int) { return d.width, d.height }

// OnChange registers fn to run after an effect is armed, torn down or has
// its values replaced. The panel uses it to refresh its controls.
func (d *Driver) OnChange(fn func()) { d.listeners = append(d.listeners, fn) }

func (d *Driver) changedNotify() {
	for _, fn := range d.listeners {
		fn()
	}
}

// Post queues fn to run at the top of the next Tick. It is the only method
// safe to call from other goroutines. Requests posted after Close are
// dropped.
func (d *Driver) Post(fn func()) {
	select {
	case <-d.done:
		return
	default:
	}
	select {
	case d.requests <- fn:
	case <-d.done:
	}
}

// Select makes id the active effect and persists the choice. From Idle the
// effect is armed immediately; otherwise the running bundle is replaced on
// the next Tick. Selecting the effect that is already running does nothing.
func (d *Driver) Select(id effects.ID) error {
	if id == d.Active() && (d.bundle != nil || id == effects.None) {
		return nil
	}
	err := d.settings.SetActive(string(id))
	if err != nil {
		log.Printf("Renderer: failed to persist selection %q: %v", id, err)
	}
	d.apply()
	return err
}

// apply reacts to a new persisted selection.
func (d *Driver) apply() {
	if d.state == Idle {
		d.changed = false
		if d.Active() != effects.None {
			d.arm()
		}
		d.changedNotify()
		return
	}
	d.changed = true
}

// Resize records a new surface size. A running effect is rebuilt at the new
// size on the next Tick with its values restored from the settings.
func (d *Driver) Resize(width, height int) {
	if width <= 0 || height <= 0 || (width == d.width && height == d.height) {
		return
	}
	log.Printf("Renderer: resize to %dx%d", width, height)
	d.width, d.height = width, height
	if d.state != Idle {
		d.changed = true
		d.resized = true
	}
}

// SetOutput redirects the final pass into target instead of the surface.
// Pass nil to draw to the surface again.
func (d *Driver) SetOutput(target *inputs.RenderTarget) { d.output = target }

// Param returns the persisted value of name for the active effect, or its
// default.
func (d *Driver) Param(name string) (float64, bool) {
	id := d.Active()
	p, ok := effects.Params(id).Lookup(name)
	if !ok || p.Heading {
		return 0, false
	}
	return d.settings.ValueOr(string(id), name, p.Default), true
}

// SetParam clamps v into the parameter's range, pushes it to the running
// program and schedules a save. It returns the value actually applied.
func (d *Driver) SetParam(name string, v float64) (float64, error) {
	id := d.Active()
	p, ok := effects.Params(id).Lookup(name)
	if !ok || p.Heading {
		return 0, fmt.Errorf("effect %q has no parameter %q", id, name)
	}
	v = p.Clamp(v)
	d.push(p, v)
	d.settings.SetValue(string(id), name, v)
	return v, nil
}

// ResetParams restores every parameter of the active effect to its default,
// both on the GPU and in the settings. The settings are saved immediately.
func (d *Driver) ResetParams() error {
	id := d.Active()
	params := effects.Params(id)
	for _, p := range params.Values() {
		d.push(p, p.Default)
	}
	err := d.settings.Reset(string(id), params.Defaults())
	d.changedNotify()
	if err != nil {
		return fmt.Errorf("failed to reset %q: %w", id, err)
	}
	log.Printf("Renderer: reset %d parameters of %q", len(params.Values()), id)
	return nil
}

func (d *Driver) push(p effects.Param, v float64) {
	if d.bundle == nil || p.Pass >= len(d.bundle.Passes) {
		return
	}
	p.Push(d.dev, d.bundle.Passes[p.Pass].Program, v)
}

// Reload rereads the settings file after an outside edit. A new selection
// goes through the normal switch path; new values are pushed live.
func (d *Driver) Reload() error {
	changed, err := d.settings.Reload()
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	log.Printf("Renderer: settings changed on disk")
	if d.bundle == nil || d.bundle.ID != d.Active() {
		d.apply()
		return nil
	}
	d.pushAll()
	d.changedNotify()
	return nil
}

func (d *Driver) arm() {
	id := d.Active()
	srcW, srcH := d.src.Size()
	env := &effects.Env{
		Device:       d.dev,
		Translator:   d.xl,
		Width:        d.width,
		Height:       d.height,
		SourceWidth:  srcW,
		SourceHeight: srcH,
		LUTs:         d.luts,
		Fetcher:      d.fetcher,
	}
	b, err := d.registry.Select(id, env)
	if err != nil {
		log.Printf("Renderer: failed to arm %q: %v", id, err)
		d.notifier.ShowToast(fmt.Sprintf("Invalid shader program %s: %v", id, err),
			notify.IconImportant, true, "", true)
		d.bundle = nil
		d.state = Idle
		return
	}

	for _, p := range b.Passes {
		p.Program.Use()
		p.Quad.Bind()
		p.Program.SetMat4("MVP", p.Projection)
		p.Program.SetInt("u_texture", 0)
		p.Program.SetVec2("SourceSize", float32(srcW), float32(srcH))
	}
	d.dev.BindVertexArray(0)

	d.bundle = b
	d.frame = 0
	d.state = Armed
	d.pushAll()
}

func (d *Driver) pushAll() {
	id := string(d.Active())
	for _, p := range effects.Params(d.Active()).Values() {
		d.push(p, d.settings.ValueOr(id, p.Name, p.Default))
	}
}

func (d *Driver) teardown() {
	d.state = TearingDown
	d.registry.Release()
	d.bundle = nil
	d.state = Idle
}

// Tick runs one frame: queued requests first, then pending teardown and
// rearm, then the passes of the running bundle or the unfiltered blit.
func (d *Driver) Tick() {
	for drained := false; !drained; {
		select {
		case fn := <-d.requests:
			fn()
		default:
			drained = true
		}
	}

	if d.bundle != nil {
		d.bundle.Poll()
	}
	d.src.Update()

	if d.changed {
		rebuild := d.resized
		d.changed, d.resized = false, false
		if d.bundle != nil && (rebuild || d.bundle.ID != d.Active()) {
			d.teardown()
		}
		if d.bundle == nil && d.Active() != effects.None {
			d.arm()
		}
		d.changedNotify()
	}

	if d.state == Armed {
		d.state = Running
	}
	if d.state == Running {
		d.draw()
	} else {
		d.drawIdle()
	}
	d.frame++
}

func (d *Driver) bindOutput() {
	if d.output != nil {
		d.output.Bind()
		return
	}
	d.dev.BindFramebuffer(gpu.Surface)
	d.dev.Viewport(d.width, d.height)
}

func (d *Driver) draw() {
	b := d.bundle
	srcW, srcH := d.src.Size()
	f := effects.NewFrame(d.dev, b, d.frame, d.src.Texture(), srcW, srcH, d.width, d.height)
	for i, p := range b.Passes {
		if p.Target != nil {
			p.Target.Bind()
		} else {
			d.bindOutput()
		}
		p.Program.Use()
		p.Quad.Bind()
		b.RunStep(f, i)
		d.dev.DrawQuad()
	}
	d.dev.BindVertexArray(0)
}

func (d *Driver) drawIdle() {
	d.bindOutput()
	d.dev.Clear()
	d.blit.Use()
	d.dev.BindTexture(0, d.src.Texture())
	d.blitQuad.Bind()
	d.dev.DrawQuad()
	d.dev.BindVertexArray(0)
}

// Run ticks until ctx is cancelled or the window is closed.
func (d *Driver) Run(ctx context.Context, surface graphics.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if surface.ShouldClose() {
			return nil
		}
		d.Tick()
		surface.EndFrame()
	}
}

// Close tears down the resident bundle and the blit program.
func (d *Driver) Close() {
	d.closeOnce.Do(func() { close(d.done) })
	if d.bundle != nil {
		d.teardown()
	}
	d.registry.Release()
	if d.blit != nil {
		d.blit.Delete()
		d.blitQuad.Destroy()
		d.blit = nil
	}
}
