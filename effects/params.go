package effects

import (
	"math"

	"github.com/richinsley/goshaderfx/gpu"
	"github.com/richinsley/goshaderfx/shader"
)

// ApplyFunc pushes a control value to a uniform location.
type ApplyFunc func(dev gpu.Device, loc gpu.Location, v float32)

// Scalar pushes the value as a single float.
func Scalar(dev gpu.Device, loc gpu.Location, v float32) { dev.Uniform1f(loc, v) }

// Vec2 returns an ApplyFunc pushing vec2(sx*v, sy*v).
func Vec2(sx, sy float32) ApplyFunc {
	return func(dev gpu.Device, loc gpu.Location, v float32) {
		dev.Uniform2f(loc, sx*v, sy*v)
	}
}

// Param describes one tunable uniform. A Param with Heading set only groups
// the controls that follow it: it has no uniform and ignores values.
type Param struct {
	Name    string
	Label   string
	Min     float64
	Max     float64
	Step    float64
	Default float64
	// Pass is the index of the pass whose program declares the uniform.
	Pass  int
	Apply ApplyFunc

	Heading bool
}

// Heading returns a section heading descriptor.
func Heading(label string) Param {
	return Param{Label: label, Heading: true}
}

func param(name string, def, min, max, step float64, pass int) Param {
	return Param{
		Name:    name,
		Label:   name,
		Min:     min,
		Max:     max,
		Step:    step,
		Default: def,
		Pass:    pass,
	}
}

// Push writes v to prog's uniform. Absent uniforms are skipped.
func (p Param) Push(dev gpu.Device, prog *shader.Program, v float64) {
	if p.Heading || prog == nil {
		return
	}
	loc := prog.Uniform(p.Name)
	if !loc.Valid() {
		return
	}
	prog.Use()
	apply := p.Apply
	if apply == nil {
		apply = Scalar
	}
	apply(dev, loc, float32(v))
}

// Clamp limits v to [Min, Max] and snaps it to the nearest Step above Min.
func (p Param) Clamp(v float64) float64 {
	if p.Heading {
		return 0
	}
	if math.IsNaN(v) {
		return p.Default
	}
	if p.Step > 0 {
		v = p.Min + math.Round((v-p.Min)/p.Step)*p.Step
		// trim float noise from the multiplication
		v = math.Round(v*1e6) / 1e6
	}
	return math.Max(p.Min, math.Min(p.Max, v))
}

// ParamSet is the ordered parameter list of one effect.
type ParamSet []Param

// Lookup finds the descriptor for a uniform name. Headings never match.
func (s ParamSet) Lookup(name string) (Param, bool) {
	for _, p := range s {
		if !p.Heading && p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Values returns the non-heading descriptors.
func (s ParamSet) Values() []Param {
	out := make([]Param, 0, len(s))
	for _, p := range s {
		if !p.Heading {
			out = append(out, p)
		}
	}
	return out
}

// Defaults maps every uniform name to its default.
func (s ParamSet) Defaults() map[string]float64 {
	out := make(map[string]float64)
	for _, p := range s.Values() {
		out[p.Name] = p.Default
	}
	return out
}

var paramTable = map[ID]ParamSet{
	None: {},
	CRT: {
		Heading("Color grading"),
		withLabel(param("LUT_SELECT", 1, 0, 2, 1, 0), "LUT (0 off, 1 trinitron, 2 inverse)"),
		Heading("Geometry"),
		param("CURVATURE", 0.5, 0, 1, 0.05, 1),
		param("SHARPNESS", 1.5, 0.5, 4, 0.25, 1),
		Heading("Scanlines & mask"),
		withApply(param("OutputSize", 80, 10, 180, 5, 2), Vec2(20, 15)),
		param("SCANSPEED", 1, 0, 10, 0.5, 2),
		param("SCANLINE_WEIGHT", 0.3, 0, 1, 0.05, 2),
		param("MASK_STRENGTH", 0.3, 0, 1, 0.05, 2),
		param("CORNER_SIZE", 0.03, 0, 0.1, 0.005, 2),
	},
	NTSC: {
		Heading("Encoder"),
		param("NTSC_SATURATION", 1, 0, 2, 0.05, 0),
		param("NTSC_ARTIFACTING", 1, 0, 1, 0.05, 0),
		param("NTSC_FRINGING", 1, 0, 1, 0.05, 0),
		Heading("Decoder"),
		param("NTSC_BRIGHTNESS", 1, 0.5, 1.5, 0.05, 1),
	},
	Sepia: {
		param("SEPIA_STRENGTH", 1, 0, 1, 0.05, 0),
	},
}

func withLabel(p Param, label string) Param {
	p.Label = label
	return p
}

func withApply(p Param, apply ApplyFunc) Param {
	p.Apply = apply
	return p
}

// Params returns the parameter set of id. Unknown ids yield an empty set.
// The returned slice is a copy and may be modified freely.
func Params(id ID) ParamSet {
	return append(ParamSet(nil), paramTable[id]...)
}
