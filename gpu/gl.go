package gpu

import (
	"fmt"
	"log"
	"strings"
	"sync"

	gl "github.com/go-gl/gl/v4.1-core/gl"
)

var glInitOnce sync.Once

// coreFeatures are promoted into the 4.1 core profile and never appear in the
// extension list.
var coreFeatures = map[string]bool{
	CapVertexArray: true,
	CapFloatTarget: true,
}

// GL implements Device on top of an OpenGL 4.1 core context.
type GL struct {
	extensions map[string]bool
	disabled   map[string]bool
}

// NewGL initializes the GL function pointers for the current context. The
// context must already be current on the calling thread. Capabilities listed
// in disable are reported as missing, which lets users force the fallback
// paths on hardware that supports everything.
func NewGL(disable ...string) (*GL, error) {
	var initErr error
	glInitOnce.Do(func() {
		initErr = gl.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", initErr)
	}

	d := &GL{
		extensions: make(map[string]bool),
		disabled:   make(map[string]bool),
	}
	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	for i := int32(0); i < n; i++ {
		d.extensions[gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i)))] = true
	}
	for _, name := range disable {
		d.disabled[name] = true
	}
	log.Printf("GPU: %s (%s), %d extensions", gl.GoStr(gl.GetString(gl.RENDERER)), gl.GoStr(gl.GetString(gl.VERSION)), n)
	return d, nil
}

func (d *GL) HasExtension(name string) bool {
	if d.disabled[name] {
		return false
	}
	return coreFeatures[name] || d.extensions[name] || d.extensions["GL_"+name]
}

func (d *GL) CompileShader(stage Stage, source string) (uint32, string, bool) {
	shaderType := uint32(gl.VERTEX_SHADER)
	if stage == FragmentStage {
		shaderType = gl.FRAGMENT_SHADER
	}
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		gl.DeleteShader(shader)
		return 0, strings.TrimRight(logText, "\x00"), false
	}
	return shader, "", true
}

func (d *GL) DeleteShader(shader uint32) { gl.DeleteShader(shader) }

func (d *GL) LinkProgram(vertex, fragment uint32) (uint32, string, bool) {
	program := gl.CreateProgram()
	gl.AttachShader(program, vertex)
	gl.AttachShader(program, fragment)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(logText))
		gl.DeleteProgram(program)
		return 0, strings.TrimRight(logText, "\x00"), false
	}
	gl.DetachShader(program, vertex)
	gl.DetachShader(program, fragment)
	return program, "", true
}

func (d *GL) DeleteProgram(program uint32) { gl.DeleteProgram(program) }
func (d *GL) UseProgram(program uint32)    { gl.UseProgram(program) }

func (d *GL) UniformLocation(program uint32, name string) Location {
	return Location(gl.GetUniformLocation(program, gl.Str(name+"\x00")))
}

func (d *GL) AttribLocation(program uint32, name string) int32 {
	return gl.GetAttribLocation(program, gl.Str(name+"\x00"))
}

func (d *GL) Uniform1i(loc Location, v int32)      { gl.Uniform1i(int32(loc), v) }
func (d *GL) Uniform1f(loc Location, v float32)    { gl.Uniform1f(int32(loc), v) }
func (d *GL) Uniform2f(loc Location, x, y float32) { gl.Uniform2f(int32(loc), x, y) }

func (d *GL) Uniform1fv(loc Location, v []float32) {
	if len(v) == 0 {
		return
	}
	gl.Uniform1fv(int32(loc), int32(len(v)), &v[0])
}

func (d *GL) UniformMatrix4fv(loc Location, m [16]float32) {
	gl.UniformMatrix4fv(int32(loc), 1, false, &m[0])
}

func internalFormat(format ColorFormat) int32 {
	if format == RGBA16F {
		return gl.RGBA16F
	}
	return gl.RGBA8
}

func (d *GL) CreateTexture(width, height int, format ColorFormat, pixels []byte) uint32 {
	var texture uint32
	gl.GenTextures(1, &texture)
	gl.BindTexture(gl.TEXTURE_2D, texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	d.upload(width, height, format, pixels)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return texture
}

func (d *GL) UpdateTexture(texture uint32, width, height int, format ColorFormat, pixels []byte) {
	gl.BindTexture(gl.TEXTURE_2D, texture)
	d.upload(width, height, format, pixels)
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

func (d *GL) upload(width, height int, format ColorFormat, pixels []byte) {
	ptr := gl.Ptr(nil)
	if len(pixels) > 0 {
		ptr = gl.Ptr(pixels)
	}
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internalFormat(format), int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, ptr)
}

func (d *GL) DeleteTexture(texture uint32) { gl.DeleteTextures(1, &texture) }

func (d *GL) BindTexture(unit int, texture uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, texture)
}

func (d *GL) CreateFramebuffer(texture uint32) (uint32, bool) {
	var fbo uint32
	gl.GenFramebuffers(1, &fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, texture, 0)
	complete := gl.CheckFramebufferStatus(gl.FRAMEBUFFER) == gl.FRAMEBUFFER_COMPLETE
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return fbo, complete
}

func (d *GL) DeleteFramebuffer(fbo uint32) { gl.DeleteFramebuffers(1, &fbo) }
func (d *GL) BindFramebuffer(fbo uint32)   { gl.BindFramebuffer(gl.FRAMEBUFFER, fbo) }

func (d *GL) CreateVertexArray(attrib uint32, vertices []float32) uint32 {
	var vao, vbo uint32
	gl.GenVertexArrays(1, &vao)
	gl.GenBuffers(1, &vbo)
	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(attrib)
	gl.VertexAttribPointer(attrib, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	// the VAO keeps the buffer storage alive
	gl.DeleteBuffers(1, &vbo)
	return vao
}

func (d *GL) DeleteVertexArray(vao uint32) { gl.DeleteVertexArrays(1, &vao) }
func (d *GL) BindVertexArray(vao uint32)   { gl.BindVertexArray(vao) }

func (d *GL) Viewport(width, height int) { gl.Viewport(0, 0, int32(width), int32(height)) }

func (d *GL) Clear() {
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

func (d *GL) DrawQuad() { gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4) }

func (d *GL) ReadPixels(width, height int) []byte {
	pixels := make([]byte, width*height*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels
}
