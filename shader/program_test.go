package shader

import (
	"errors"
	"strings"
	"testing"

	"github.com/richinsley/goshaderfx/gpu"
	"github.com/richinsley/goshaderfx/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renamingTranslator struct {
	fail gpu.Stage
	err  error
}

func (r renamingTranslator) Translate(stage gpu.Stage, source string) (string, map[string]string, error) {
	if r.err != nil && stage == r.fail {
		return "", nil, r.err
	}
	out := strings.ReplaceAll(source, "SEPIA_STRENGTH", "_uSEPIA_STRENGTH")
	return out, map[string]string{"SEPIA_STRENGTH": "_uSEPIA_STRENGTH"}, nil
}

func TestCompileReleasesStageObjects(t *testing.T) {
	dev := gputest.New()
	p, err := Compile(dev, nil, QuadVertex, Passthrough)
	require.NoError(t, err)
	require.NotZero(t, p.ID())

	shaders, programs, _, _, _ := dev.Live()
	assert.Equal(t, 0, shaders)
	assert.Equal(t, 1, programs)

	p.Delete()
	p.Delete()
	assert.Equal(t, 0, dev.LiveObjects())
	assert.Zero(t, p.ID())
}

func TestCompileFragmentFailure(t *testing.T) {
	dev := gputest.New()
	dev.FailCompile("SEPIA_STRENGTH")

	p, err := Compile(dev, nil, QuadVertex, Sepia)
	require.Error(t, err)
	assert.Nil(t, p)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "fragment", ce.Stage)
	assert.Contains(t, ce.Log, "syntax error")

	// the vertex stage compiled but must not leak, and no link was attempted
	assert.Equal(t, 0, dev.LiveObjects())
	assert.Equal(t, -1, dev.Index("link"))
}

func TestCompileVertexFailureSkipsFragment(t *testing.T) {
	dev := gputest.New()
	dev.FailCompile("a_position")

	_, err := Compile(dev, nil, QuadVertex, Passthrough)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "vertex", ce.Stage)
	assert.Equal(t, -1, dev.Index("compile fragment"))
}

func TestCompileLinkFailure(t *testing.T) {
	dev := gputest.New()
	dev.FailLink(true)

	_, err := Compile(dev, nil, QuadVertex, Passthrough)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "link", ce.Stage)
	assert.Equal(t, 0, dev.LiveObjects())
}

func TestTranslationFailureIsCompileError(t *testing.T) {
	dev := gputest.New()
	xl := renamingTranslator{fail: gpu.FragmentStage, err: errors.New("'texture2D' : no matching overloaded function found")}

	_, err := Compile(dev, xl, QuadVertex, Sepia)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "fragment", ce.Stage)
	assert.Equal(t, 0, dev.LiveObjects())
}

func TestUniformResolvesMappedNames(t *testing.T) {
	dev := gputest.New()
	p, err := Compile(dev, renamingTranslator{}, QuadVertex, Sepia)
	require.NoError(t, err)

	loc := p.Uniform("SEPIA_STRENGTH")
	require.True(t, loc.Valid())
	assert.Equal(t, loc, dev.UniformLocation(p.ID(), "_uSEPIA_STRENGTH"))

	p.Use()
	p.SetFloat("SEPIA_STRENGTH", 0.25)
	assert.Equal(t, []float32{0.25}, dev.Uniform(p.ID(), "_uSEPIA_STRENGTH"))
}

func TestAbsentUniformIsNoOp(t *testing.T) {
	dev := gputest.New()
	p, err := Compile(dev, nil, QuadVertex, Passthrough)
	require.NoError(t, err)

	assert.False(t, p.Uniform("CURVATURE").Valid())
	assert.NotPanics(t, func() {
		p.SetFloat("CURVATURE", 1)
		p.SetVec2("OutputSize", 1, 2)
		p.SetInt("FrameCount", 3)
		p.SetFloats("LUMA_FILTER", []float32{1})
	})
}

func TestEmbeddedSources(t *testing.T) {
	for _, name := range []string{
		"quad.vert", "passthrough.frag", "sepia.frag",
		"crt_lut.frag", "crt_resample.frag", "crt_composite.frag",
		"ntsc_encode.frag", "ntsc_decode.frag",
	} {
		src, err := Source(name)
		require.NoError(t, err, name)
		assert.True(t, strings.HasPrefix(src, "#version 300 es"), name)
	}
	_, err := Source("missing.frag")
	assert.Error(t, err)
}
