// Package effects holds the fixed effect catalog: how each effect is built
// into GPU passes, which parameters it exposes, and the registry that keeps
// at most one built effect resident.
package effects

import (
	"errors"
	"fmt"

	"github.com/richinsley/goshaderfx/gpu"
	"github.com/richinsley/goshaderfx/inputs"
	"github.com/richinsley/goshaderfx/shader"
)

// ID names a catalog entry.
type ID string

const (
	// None is the explicit "no effect" identity.
	None  ID = ""
	CRT   ID = "crt"
	NTSC  ID = "ntsc"
	Sepia ID = "sepia"
)

// DefaultSourceWidth and DefaultSourceHeight are used when the source does
// not report its own size.
const (
	DefaultSourceWidth  = 320
	DefaultSourceHeight = 240
)

var (
	ErrUnknownEffect     = errors.New("unknown effect")
	ErrCapabilityMissing = errors.New("required GPU capability missing")
)

// CapabilityError reports that an effect needs a device capability that is
// not available. It matches ErrCapabilityMissing with errors.Is.
type CapabilityError struct {
	Effect     ID
	Capability string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("effect %q requires %s", e.Effect, e.Capability)
}

func (e *CapabilityError) Is(target error) bool { return target == ErrCapabilityMissing }

// Env is everything a build function may use. Builds read it and never keep
// a reference to it.
type Env struct {
	Device     gpu.Device
	Translator shader.Translator

	// Width and Height are the visible surface size.
	Width, Height int
	// SourceWidth and SourceHeight are the size of the source picture.
	SourceWidth, SourceHeight int

	// LUTs are the two colour grading tables used by CRT.
	LUTs    [2]string
	Fetcher inputs.Fetcher
}

func (env *Env) sourceSize() (int, int) {
	if env.SourceWidth <= 0 || env.SourceHeight <= 0 {
		return DefaultSourceWidth, DefaultSourceHeight
	}
	return env.SourceWidth, env.SourceHeight
}

type buildFunc func(env *Env) (*Bundle, error)

type entry struct {
	build    buildFunc
	requires []string
}

var catalog = map[ID]entry{
	None:  {build: buildNone},
	CRT:   {build: buildCRT, requires: []string{gpu.CapFloatTarget}},
	NTSC:  {build: buildNTSC, requires: []string{gpu.CapFloatTarget}},
	Sepia: {build: buildSepia},
}

// displayOrder is the order effects are offered to the user.
var displayOrder = []ID{None, CRT, NTSC, Sepia}

// IDs lists the catalog in display order.
func IDs() []ID {
	return append([]ID(nil), displayOrder...)
}

// Known reports whether id is in the catalog.
func Known(id ID) bool {
	_, ok := catalog[id]
	return ok
}

// Label is the user facing name of id.
func Label(id ID) string {
	if id == None {
		return "(None)"
	}
	return string(id)
}

// Requires lists the device capabilities id needs.
func Requires(id ID) []string {
	return append([]string(nil), catalog[id].requires...)
}

// Build constructs a fresh bundle for id without consulting or updating any
// registry. Callers that need the one-resident guarantee use Registry.Select.
func Build(id ID, env *Env) (*Bundle, error) {
	e, ok := catalog[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownEffect, id)
	}
	for _, capability := range Requires(id) {
		if !env.Device.HasExtension(capability) {
			return nil, &CapabilityError{Effect: id, Capability: capability}
		}
	}
	b, err := e.build(env)
	if err != nil {
		return nil, fmt.Errorf("failed to build effect %q: %w", id, err)
	}
	return b, nil
}
