// Package gpu defines the narrow slice of the graphics API the effect
// pipeline talks to. The GL implementation lives in gl.go; tests use the
// recording fake in gpu/gputest.
package gpu

// Stage identifies a shader stage.
type Stage int

const (
	VertexStage Stage = iota
	FragmentStage
)

func (s Stage) String() string {
	switch s {
	case VertexStage:
		return "vertex"
	case FragmentStage:
		return "fragment"
	default:
		return "unknown"
	}
}

// ColorFormat selects the storage of a color texture or render target.
type ColorFormat int

const (
	// RGBA8 is 8 bits per channel, always available.
	RGBA8 ColorFormat = iota
	// RGBA16F is a linear half-float format used for gamma-correct chaining.
	RGBA16F
)

func (f ColorFormat) String() string {
	if f == RGBA16F {
		return "RGBA16F"
	}
	return "RGBA8"
}

// Capability names mirror the WebGL extension strings the effects were
// authored against.
const (
	CapVertexArray = "OES_vertex_array_object"
	CapFloatTarget = "EXT_color_buffer_half_float"
)

// Location is a uniform location. Negative values mean the active program
// does not declare the uniform.
type Location int32

// NoLocation is returned for uniforms a program does not declare.
const NoLocation Location = -1

// Valid reports whether uniform writes to l reach the GPU.
func (l Location) Valid() bool { return l >= 0 }

// Surface is the framebuffer handle of the visible window surface.
const Surface uint32 = 0

// Device is the set of GPU operations used by the pipeline. All methods must
// be called from the thread that owns the context.
type Device interface {
	HasExtension(name string) bool

	CompileShader(stage Stage, source string) (shader uint32, infoLog string, ok bool)
	DeleteShader(shader uint32)
	LinkProgram(vertex, fragment uint32) (program uint32, infoLog string, ok bool)
	DeleteProgram(program uint32)
	UseProgram(program uint32)
	UniformLocation(program uint32, name string) Location
	AttribLocation(program uint32, name string) int32

	Uniform1i(loc Location, v int32)
	Uniform1f(loc Location, v float32)
	Uniform2f(loc Location, x, y float32)
	Uniform1fv(loc Location, v []float32)
	UniformMatrix4fv(loc Location, m [16]float32)

	// CreateTexture allocates a 2D texture. pixels may be nil to leave the
	// contents undefined; otherwise it holds width*height RGBA bytes.
	CreateTexture(width, height int, format ColorFormat, pixels []byte) uint32
	UpdateTexture(texture uint32, width, height int, format ColorFormat, pixels []byte)
	DeleteTexture(texture uint32)
	BindTexture(unit int, texture uint32)

	CreateFramebuffer(texture uint32) (fbo uint32, complete bool)
	DeleteFramebuffer(fbo uint32)
	BindFramebuffer(fbo uint32)

	// CreateVertexArray uploads a tightly packed vec2 attribute array bound
	// at attrib and returns the vertex array object. The backing buffer is
	// released before returning.
	CreateVertexArray(attrib uint32, vertices []float32) uint32
	DeleteVertexArray(vao uint32)
	BindVertexArray(vao uint32)

	Viewport(width, height int)
	Clear()
	// DrawQuad draws the bound 4-vertex triangle strip.
	DrawQuad()

	// ReadPixels returns the RGBA contents of the bound framebuffer.
	ReadPixels(width, height int) []byte
}
