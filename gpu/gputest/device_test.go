package gputest

import (
	"testing"

	"github.com/richinsley/goshaderfx/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func link(t *testing.T, d *Device, frag string) uint32 {
	t.Helper()
	vs, _, ok := d.CompileShader(gpu.VertexStage, "uniform mat4 MVP;")
	require.True(t, ok)
	fs, _, ok := d.CompileShader(gpu.FragmentStage, frag)
	require.True(t, ok)
	prog, _, ok := d.LinkProgram(vs, fs)
	require.True(t, ok)
	return prog
}

func TestUniformWritesNeedProgramInUse(t *testing.T) {
	d := New()
	a := link(t, d, "uniform float A;")
	b := link(t, d, "uniform float B;")

	d.UseProgram(a)
	d.Uniform1f(d.UniformLocation(a, "A"), 0.5)
	assert.Equal(t, []float32{0.5}, d.Uniform(a, "A"))

	assert.Panics(t, func() { d.Uniform1f(d.UniformLocation(b, "B"), 1) })
	assert.Nil(t, d.Uniform(b, "B"))

	d.UseProgram(b)
	assert.NotPanics(t, func() { d.Uniform1f(d.UniformLocation(b, "B"), 1) })
	assert.Panics(t, func() { d.Uniform2f(d.UniformLocation(a, "A"), 1, 2) })
	assert.Panics(t, func() { d.Uniform1i(gpu.NoLocation, 1) })
}

func TestHideAttributes(t *testing.T) {
	d := New()
	prog := link(t, d, "uniform float A;")
	assert.Equal(t, int32(0), d.AttribLocation(prog, "a_position"))
	assert.Equal(t, int32(-1), d.AttribLocation(prog+100, "a_position"))

	d.HideAttributes(true)
	assert.Equal(t, int32(-1), d.AttribLocation(prog, "a_position"))
}
