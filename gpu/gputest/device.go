// Package gputest provides a recording gpu.Device for tests.
package gputest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/richinsley/goshaderfx/gpu"
)

var _ gpu.Device = (*Device)(nil)

var uniformDecl = regexp.MustCompile(`uniform\s+(?:(?:lowp|mediump|highp)\s+)?\w+\s+(\w+)`)

// Draw records one DrawQuad call and the state bound when it was issued.
type Draw struct {
	Program     uint32
	Framebuffer uint32
	Texture0    uint32
	VertexArray uint32
}

type program struct {
	uniforms map[string]gpu.Location
}

// Device is an in-memory gpu.Device. Handles are unique across all object
// kinds so a leaked handle is easy to spot.
type Device struct {
	next       uint32
	nextLoc    gpu.Location
	extensions map[string]bool
	failOn     []string
	failLink   bool
	noAttribs  bool

	shaders     map[uint32]string
	programs    map[uint32]*program
	textures    map[uint32][]byte
	framebuffer map[uint32]uint32
	vaos        map[uint32]uint32

	uniformValues map[gpu.Location][]float32
	locOwner      map[gpu.Location]string

	current      uint32
	boundFBO     uint32
	boundVAO     uint32
	units        map[int]uint32
	incompleteFB bool

	// Allocations counts every object creation call.
	Allocations int
	// Ops is a chronological log of state changing calls.
	Ops   []string
	Draws []Draw
}

// New returns a device that reports every capability as present.
func New() *Device {
	return &Device{
		extensions: map[string]bool{
			gpu.CapVertexArray: true,
			gpu.CapFloatTarget: true,
		},
		shaders:       make(map[uint32]string),
		programs:      make(map[uint32]*program),
		textures:      make(map[uint32][]byte),
		framebuffer:   make(map[uint32]uint32),
		vaos:          make(map[uint32]uint32),
		uniformValues: make(map[gpu.Location][]float32),
		locOwner:      make(map[gpu.Location]string),
		units:         make(map[int]uint32),
	}
}

// Disable makes HasExtension report name as missing.
func (d *Device) Disable(name string) { d.extensions[name] = false }

// FailCompile makes any shader whose source contains marker fail to compile.
func (d *Device) FailCompile(marker string) { d.failOn = append(d.failOn, marker) }

// FailLink makes every subsequent link fail.
func (d *Device) FailLink(fail bool) { d.failLink = fail }

// HideAttributes makes AttribLocation report every attribute as unused.
func (d *Device) HideAttributes(v bool) { d.noAttribs = v }

// IncompleteFramebuffers makes CreateFramebuffer report incomplete attachments.
func (d *Device) IncompleteFramebuffers(v bool) { d.incompleteFB = v }

func (d *Device) handle() uint32 {
	d.next++
	d.Allocations++
	return d.next
}

func (d *Device) op(format string, args ...any) {
	d.Ops = append(d.Ops, fmt.Sprintf(format, args...))
}

func (d *Device) HasExtension(name string) bool { return d.extensions[name] }

func (d *Device) CompileShader(stage gpu.Stage, source string) (uint32, string, bool) {
	for _, m := range d.failOn {
		if strings.Contains(source, m) {
			return 0, fmt.Sprintf("ERROR: 0:1: '%s' : syntax error", m), false
		}
	}
	h := d.handle()
	d.shaders[h] = source
	d.op("compile %s %d", stage, h)
	return h, "", true
}

func (d *Device) DeleteShader(shader uint32) {
	delete(d.shaders, shader)
	d.op("delete-shader %d", shader)
}

func (d *Device) LinkProgram(vertex, fragment uint32) (uint32, string, bool) {
	if d.failLink {
		return 0, "error: varying v_texCoords not written by vertex shader", false
	}
	h := d.handle()
	p := &program{uniforms: make(map[string]gpu.Location)}
	for _, src := range []string{d.shaders[vertex], d.shaders[fragment]} {
		for _, m := range uniformDecl.FindAllStringSubmatch(src, -1) {
			if _, ok := p.uniforms[m[1]]; ok {
				continue
			}
			d.nextLoc++
			p.uniforms[m[1]] = d.nextLoc
			d.locOwner[d.nextLoc] = fmt.Sprintf("%d/%s", h, m[1])
		}
	}
	d.programs[h] = p
	d.op("link %d", h)
	return h, "", true
}

func (d *Device) DeleteProgram(prog uint32) {
	delete(d.programs, prog)
	d.op("delete-program %d", prog)
}

func (d *Device) UseProgram(prog uint32) { d.current = prog }

func (d *Device) UniformLocation(prog uint32, name string) gpu.Location {
	p, ok := d.programs[prog]
	if !ok {
		return gpu.NoLocation
	}
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	return gpu.NoLocation
}

func (d *Device) AttribLocation(prog uint32, name string) int32 {
	if _, ok := d.programs[prog]; !ok || d.noAttribs {
		return -1
	}
	return 0
}

func (d *Device) set(loc gpu.Location, v ...float32) {
	if !loc.Valid() {
		panic(fmt.Sprintf("uniform write to invalid location %d", loc))
	}
	// Uniform calls apply to the program in use, as in GL.
	if owner := d.locOwner[loc]; !strings.HasPrefix(owner, fmt.Sprintf("%d/", d.current)) {
		panic(fmt.Sprintf("uniform %s written while program %d is in use", owner, d.current))
	}
	d.uniformValues[loc] = append([]float32(nil), v...)
}

func (d *Device) Uniform1i(loc gpu.Location, v int32)      { d.set(loc, float32(v)) }
func (d *Device) Uniform1f(loc gpu.Location, v float32)    { d.set(loc, v) }
func (d *Device) Uniform2f(loc gpu.Location, x, y float32) { d.set(loc, x, y) }
func (d *Device) Uniform1fv(loc gpu.Location, v []float32) { d.set(loc, v...) }

func (d *Device) UniformMatrix4fv(loc gpu.Location, m [16]float32) { d.set(loc, m[:]...) }

// Uniform returns the last value written to name in prog, or nil.
func (d *Device) Uniform(prog uint32, name string) []float32 {
	loc := d.UniformLocation(prog, name)
	if !loc.Valid() {
		return nil
	}
	return d.uniformValues[loc]
}

func (d *Device) CreateTexture(width, height int, format gpu.ColorFormat, pixels []byte) uint32 {
	h := d.handle()
	d.textures[h] = append([]byte(nil), pixels...)
	d.op("create-texture %d %dx%d %s", h, width, height, format)
	return h
}

func (d *Device) UpdateTexture(texture uint32, width, height int, format gpu.ColorFormat, pixels []byte) {
	d.textures[texture] = append([]byte(nil), pixels...)
	d.op("update-texture %d %dx%d", texture, width, height)
}

// TexturePixels returns the last upload for texture.
func (d *Device) TexturePixels(texture uint32) []byte { return d.textures[texture] }

func (d *Device) DeleteTexture(texture uint32) {
	delete(d.textures, texture)
	d.op("delete-texture %d", texture)
}

func (d *Device) BindTexture(unit int, texture uint32) { d.units[unit] = texture }

// BoundTexture returns the texture bound to unit.
func (d *Device) BoundTexture(unit int) uint32 { return d.units[unit] }

func (d *Device) CreateFramebuffer(texture uint32) (uint32, bool) {
	h := d.handle()
	d.framebuffer[h] = texture
	d.op("create-framebuffer %d", h)
	return h, !d.incompleteFB
}

func (d *Device) DeleteFramebuffer(fbo uint32) {
	delete(d.framebuffer, fbo)
	d.op("delete-framebuffer %d", fbo)
}

func (d *Device) BindFramebuffer(fbo uint32) { d.boundFBO = fbo }

func (d *Device) CreateVertexArray(attrib uint32, vertices []float32) uint32 {
	h := d.handle()
	d.vaos[h] = attrib
	d.op("create-vao %d", h)
	return h
}

func (d *Device) DeleteVertexArray(vao uint32) {
	delete(d.vaos, vao)
	d.op("delete-vao %d", vao)
}

func (d *Device) BindVertexArray(vao uint32) { d.boundVAO = vao }

func (d *Device) Viewport(width, height int) {}
func (d *Device) Clear()                     {}

func (d *Device) DrawQuad() {
	d.Draws = append(d.Draws, Draw{
		Program:     d.current,
		Framebuffer: d.boundFBO,
		Texture0:    d.units[0],
		VertexArray: d.boundVAO,
	})
	d.op("draw %d", d.current)
}

func (d *Device) ReadPixels(width, height int) []byte { return make([]byte, width*height*4) }

// Live reports how many objects of each kind are still allocated.
func (d *Device) Live() (shaders, programs, textures, framebuffers, vaos int) {
	return len(d.shaders), len(d.programs), len(d.textures), len(d.framebuffer), len(d.vaos)
}

// LiveObjects is the total of Live.
func (d *Device) LiveObjects() int {
	s, p, t, f, v := d.Live()
	return s + p + t + f + v
}

// IsProgram reports whether prog is a live program.
func (d *Device) IsProgram(prog uint32) bool {
	_, ok := d.programs[prog]
	return ok
}

// ResetLog clears Ops and Draws.
func (d *Device) ResetLog() {
	d.Ops = nil
	d.Draws = nil
}

// Index returns the position of the first op starting with prefix, or -1.
func (d *Device) Index(prefix string) int {
	for i, o := range d.Ops {
		if strings.HasPrefix(o, prefix) {
			return i
		}
	}
	return -1
}
