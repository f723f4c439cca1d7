package effects

import (
	"fmt"
	"log"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/goshaderfx/gpu"
	"github.com/richinsley/goshaderfx/inputs"
	"github.com/richinsley/goshaderfx/shader"
)

// PositionAttrib is the vertex attribute every effect program reads.
const PositionAttrib = "a_position"

// Pass is one full-screen draw. Target is nil for the final pass, which
// renders to the visible surface.
type Pass struct {
	Program    *shader.Program
	Target     *inputs.RenderTarget
	Quad       *inputs.QuadLayout
	Projection mgl32.Mat4
}

// SourceProjection orients the raw source picture, whose rows are stored top
// first, for a pass that samples it directly.
func SourceProjection() mgl32.Mat4 {
	rot180 := mgl32.HomogRotate3DZ(mgl32.DegToRad(180))
	yflip := mgl32.Scale3D(-1, 1, -1)
	return rot180.Mul4(yflip)
}

// Frame is the per-frame state handed to a step.
type Frame struct {
	Device gpu.Device
	// Count is the number of frames drawn since the bundle was armed.
	Count int32
	// Source is the texture holding the unfiltered picture.
	Source                    uint32
	SourceWidth, SourceHeight int
	Width, Height             int

	passes []*Pass
}

// NewFrame describes one frame of b reading from source.
func NewFrame(dev gpu.Device, b *Bundle, count int32, source uint32, srcW, srcH, w, h int) *Frame {
	return &Frame{
		Device:       dev,
		Count:        count,
		Source:       source,
		SourceWidth:  srcW,
		SourceHeight: srcH,
		Width:        w,
		Height:       h,
		passes:       b.Passes,
	}
}

// Input returns the texture pass index reads: the source for pass 0, the
// previous pass's target after that.
func (f *Frame) Input(index int) uint32 {
	if index == 0 || index > len(f.passes) {
		return f.Source
	}
	if prev := f.passes[index-1].Target; prev != nil {
		return prev.Texture()
	}
	return f.Source
}

// StepFunc is run once per pass per frame, after the pass's target and
// program are bound and before the draw.
type StepFunc func(f *Frame, p *Pass, index int)

// Bundle is one fully built effect.
type Bundle struct {
	ID       ID
	Passes   []*Pass
	Step     StepFunc
	Textures []*inputs.LookupTexture

	teardown  func()
	destroyed bool
}

// RunStep runs the bundle's step for pass index, or DefaultStep when the
// bundle has none.
func (b *Bundle) RunStep(f *Frame, index int) {
	p := b.Passes[index]
	if b.Step != nil {
		b.Step(f, p, index)
		return
	}
	DefaultStep(f, p, index)
}

// DefaultStep binds the pass input on unit 0 and advances FrameCount.
func DefaultStep(f *Frame, p *Pass, index int) {
	f.Device.BindTexture(0, f.Input(index))
	p.Program.SetInt("FrameCount", f.Count)
}

// Poll swaps in any lookup textures that finished loading.
func (b *Bundle) Poll() {
	for _, t := range b.Textures {
		t.Poll()
	}
}

// Destroy releases every GPU resource the bundle owns. Only the first call
// has any effect.
func (b *Bundle) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	log.Printf("Destroying effect %q (%d passes)", b.ID, len(b.Passes))
	if b.teardown != nil {
		b.teardown()
	}
}

// Destroyed reports whether Destroy has run.
func (b *Bundle) Destroyed() bool { return b.destroyed }

// Tracker records every resource allocated while building a bundle so that
// a single Release frees all of them, including after a partial build.
type Tracker struct {
	env      *Env
	programs []*shader.Program
	targets  []*inputs.RenderTarget
	textures []*inputs.LookupTexture
	quads    *inputs.QuadCache
}

func NewTracker(env *Env) *Tracker {
	return &Tracker{env: env, quads: inputs.NewQuadCache(env.Device)}
}

// Program compiles the shared quad vertex stage with fragment.
func (t *Tracker) Program(fragment string) (*shader.Program, error) {
	p, err := shader.Compile(t.env.Device, t.env.Translator, shader.QuadVertex, fragment)
	if err != nil {
		return nil, err
	}
	t.programs = append(t.programs, p)
	return p, nil
}

// Target allocates a render target.
func (t *Tracker) Target(width, height int, format gpu.ColorFormat) (*inputs.RenderTarget, error) {
	rt, err := inputs.NewRenderTarget(t.env.Device, width, height, format)
	if err != nil {
		return nil, err
	}
	t.targets = append(t.targets, rt)
	return rt, nil
}

// Lookup starts loading an external lookup texture.
func (t *Tracker) Lookup(url string) *inputs.LookupTexture {
	lt := inputs.NewLookupTexture(t.env.Device, url, t.env.Fetcher)
	t.textures = append(t.textures, lt)
	return lt
}

// Pass compiles fragment into a pass drawing into target (nil for the
// surface). The quad layout is shared with earlier passes whose programs
// bind the position attribute at the same location.
func (t *Tracker) Pass(fragment string, target *inputs.RenderTarget, projection mgl32.Mat4) (*Pass, error) {
	prog, err := t.Program(fragment)
	if err != nil {
		return nil, err
	}
	attrib := prog.Attrib(PositionAttrib)
	if attrib < 0 {
		return nil, fmt.Errorf("program does not read %s", PositionAttrib)
	}
	return &Pass{
		Program:    prog,
		Target:     target,
		Quad:       t.quads.Get(uint32(attrib)),
		Projection: projection,
	}, nil
}

// Textures returns the lookup textures allocated so far.
func (t *Tracker) Textures() []*inputs.LookupTexture { return t.textures }

// Release frees everything the tracker allocated, newest first.
func (t *Tracker) Release() {
	for i := len(t.textures) - 1; i >= 0; i-- {
		t.textures[i].Destroy()
	}
	for i := len(t.targets) - 1; i >= 0; i-- {
		t.targets[i].Destroy()
	}
	for i := len(t.programs) - 1; i >= 0; i-- {
		t.programs[i].Delete()
	}
	t.quads.Destroy()
	t.textures, t.targets, t.programs = nil, nil, nil
}

// Bundle wraps the tracked resources into a bundle whose teardown releases
// them.
func (t *Tracker) Bundle(id ID, passes []*Pass, step StepFunc) *Bundle {
	return &Bundle{
		ID:       id,
		Passes:   passes,
		Step:     step,
		Textures: t.textures,
		teardown: t.Release,
	}
}
