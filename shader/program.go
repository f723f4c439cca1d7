// Package shader compiles the effect programs and resolves their uniforms.
package shader

import (
	"fmt"
	"log"
	"strings"

	"github.com/richinsley/goshaderfx/gpu"
)

// Translator rewrites portable effect source for the running context and
// reports how declared uniform names were mapped.
type Translator interface {
	Translate(stage gpu.Stage, source string) (string, map[string]string, error)
}

// CompileError reports which stage failed and the driver's diagnostic log.
// Stage is "vertex", "fragment" or "link".
type CompileError struct {
	Stage string
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s stage failed: %s", e.Stage, strings.TrimSpace(e.Log))
}

// Program is a linked GPU program with a per-program uniform location cache.
type Program struct {
	dev       gpu.Device
	id        uint32
	names     map[string]string
	locations map[string]gpu.Location
	attribs   map[string]int32
}

// Compile builds a program from a vertex and fragment source pair. Each stage
// is compiled on its own; linking only happens when both succeed. When xl is
// nil the sources are handed to the driver unchanged.
func Compile(dev gpu.Device, xl Translator, vertexSrc, fragmentSrc string) (*Program, error) {
	names := make(map[string]string)

	vertex, err := compileStage(dev, xl, gpu.VertexStage, vertexSrc, names)
	if err != nil {
		return nil, err
	}
	fragment, err := compileStage(dev, xl, gpu.FragmentStage, fragmentSrc, names)
	if err != nil {
		dev.DeleteShader(vertex)
		return nil, err
	}

	id, infoLog, ok := dev.LinkProgram(vertex, fragment)
	dev.DeleteShader(vertex)
	dev.DeleteShader(fragment)
	if !ok {
		return nil, &CompileError{Stage: "link", Log: infoLog}
	}

	return &Program{
		dev:       dev,
		id:        id,
		names:     names,
		locations: make(map[string]gpu.Location),
		attribs:   make(map[string]int32),
	}, nil
}

func compileStage(dev gpu.Device, xl Translator, stage gpu.Stage, source string, names map[string]string) (uint32, error) {
	if xl != nil {
		translated, mapped, err := xl.Translate(stage, source)
		if err != nil {
			return 0, &CompileError{Stage: stage.String(), Log: err.Error()}
		}
		source = translated
		for k, v := range mapped {
			names[k] = v
		}
	}
	shader, infoLog, ok := dev.CompileShader(stage, source)
	if !ok {
		return 0, &CompileError{Stage: stage.String(), Log: infoLog}
	}
	return shader, nil
}

// ID returns the GPU handle, or 0 once deleted.
func (p *Program) ID() uint32 { return p.id }

// Use makes p the current program.
func (p *Program) Use() { p.dev.UseProgram(p.id) }

func (p *Program) mapped(name string) string {
	if m, ok := p.names[name]; ok && m != "" {
		return m
	}
	return name
}

// Uniform returns the location of the declared uniform name. Uniforms the
// program does not declare (or that the linker dropped) yield an invalid
// location, and writes through it must be skipped.
func (p *Program) Uniform(name string) gpu.Location {
	if loc, ok := p.locations[name]; ok {
		return loc
	}
	loc := p.dev.UniformLocation(p.id, p.mapped(name))
	p.locations[name] = loc
	return loc
}

// Attrib returns the location of a vertex attribute, or -1.
func (p *Program) Attrib(name string) int32 {
	if loc, ok := p.attribs[name]; ok {
		return loc
	}
	loc := p.dev.AttribLocation(p.id, p.mapped(name))
	p.attribs[name] = loc
	return loc
}

// SetInt writes an int uniform if the program declares it.
func (p *Program) SetInt(name string, v int32) {
	if loc := p.Uniform(name); loc.Valid() {
		p.dev.Uniform1i(loc, v)
	}
}

// SetFloat writes a float uniform if the program declares it.
func (p *Program) SetFloat(name string, v float32) {
	if loc := p.Uniform(name); loc.Valid() {
		p.dev.Uniform1f(loc, v)
	}
}

// SetVec2 writes a vec2 uniform if the program declares it.
func (p *Program) SetVec2(name string, x, y float32) {
	if loc := p.Uniform(name); loc.Valid() {
		p.dev.Uniform2f(loc, x, y)
	}
}

// SetFloats writes a float array uniform if the program declares it.
func (p *Program) SetFloats(name string, v []float32) {
	if loc := p.Uniform(name); loc.Valid() {
		p.dev.Uniform1fv(loc, v)
	}
}

// SetMat4 writes a mat4 uniform if the program declares it.
func (p *Program) SetMat4(name string, m [16]float32) {
	if loc := p.Uniform(name); loc.Valid() {
		p.dev.UniformMatrix4fv(loc, m)
	}
}

// Delete releases the program. Calling it again is a no-op.
func (p *Program) Delete() {
	if p.id == 0 {
		return
	}
	log.Printf("Deleting shader program %d", p.id)
	p.dev.DeleteProgram(p.id)
	p.id = 0
	p.locations = make(map[string]gpu.Location)
	p.attribs = make(map[string]int32)
}
