package effects

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/goshaderfx/gpu"
	"github.com/richinsley/goshaderfx/shader"
)

// Texture units used by CRT's grading pass.
const (
	lut1Unit = 1
	lut2Unit = 2
)

// build runs fn with a fresh tracker and releases everything it allocated
// if fn fails part way.
func build(env *Env, fn func(t *Tracker) (*Bundle, error)) (*Bundle, error) {
	t := NewTracker(env)
	b, err := fn(t)
	if err != nil {
		t.Release()
		return nil, err
	}
	return b, nil
}

func buildNone(env *Env) (*Bundle, error) {
	return build(env, func(t *Tracker) (*Bundle, error) {
		p, err := t.Pass(shader.Passthrough, nil, SourceProjection())
		if err != nil {
			return nil, err
		}
		return t.Bundle(None, []*Pass{p}, nil), nil
	})
}

func buildSepia(env *Env) (*Bundle, error) {
	return build(env, func(t *Tracker) (*Bundle, error) {
		p, err := t.Pass(shader.Sepia, nil, SourceProjection())
		if err != nil {
			return nil, err
		}
		return t.Bundle(Sepia, []*Pass{p}, nil), nil
	})
}

// buildCRT chains LUT grading at source resolution, a resample to the
// surface size with curvature, and the scanline/mask composite.
func buildCRT(env *Env) (*Bundle, error) {
	return build(env, func(t *Tracker) (*Bundle, error) {
		srcW, srcH := env.sourceSize()

		graded, err := t.Target(srcW, srcH, gpu.RGBA16F)
		if err != nil {
			return nil, err
		}
		resampled, err := t.Target(env.Width, env.Height, gpu.RGBA16F)
		if err != nil {
			return nil, err
		}

		lut, err := t.Pass(shader.CRTLut, graded, SourceProjection())
		if err != nil {
			return nil, err
		}
		resample, err := t.Pass(shader.CRTResample, resampled, mgl32.Ident4())
		if err != nil {
			return nil, err
		}
		composite, err := t.Pass(shader.CRTComposite, nil, mgl32.Ident4())
		if err != nil {
			return nil, err
		}

		lut1 := t.Lookup(env.LUTs[0])
		lut2 := t.Lookup(env.LUTs[1])

		lut.Program.Use()
		lut.Program.SetInt("SamplerLUT1", lut1Unit)
		lut.Program.SetInt("SamplerLUT2", lut2Unit)

		step := func(f *Frame, p *Pass, index int) {
			DefaultStep(f, p, index)
			if index == 0 {
				f.Device.BindTexture(lut1Unit, lut1.Texture())
				f.Device.BindTexture(lut2Unit, lut2.Texture())
			}
		}
		return t.Bundle(CRT, []*Pass{lut, resample, composite}, step), nil
	})
}

// buildNTSC encodes into a signed float target at source resolution and
// decodes to the surface.
func buildNTSC(env *Env) (*Bundle, error) {
	return build(env, func(t *Tracker) (*Bundle, error) {
		srcW, srcH := env.sourceSize()

		signal, err := t.Target(srcW, srcH, gpu.RGBA16F)
		if err != nil {
			return nil, err
		}
		encode, err := t.Pass(shader.NTSCEncode, signal, SourceProjection())
		if err != nil {
			return nil, err
		}
		decode, err := t.Pass(shader.NTSCDecode, nil, mgl32.Ident4())
		if err != nil {
			return nil, err
		}

		luma := LowPassTaps(LumaCutoff)
		chroma := LowPassTaps(ChromaCutoff)
		step := func(f *Frame, p *Pass, index int) {
			DefaultStep(f, p, index)
			if index == 1 {
				p.Program.SetFloats("LUMA_FILTER", luma)
				p.Program.SetFloats("CHROMA_FILTER", chroma)
			}
		}
		return t.Bundle(NTSC, []*Pass{encode, decode}, step), nil
	})
}
