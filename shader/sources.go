package shader

import (
	"embed"
	"fmt"
)

//go:embed glsl/*.vert glsl/*.frag
var glslFiles embed.FS

// Source returns an embedded GLSL file by name, e.g. "sepia.frag".
func Source(name string) (string, error) {
	b, err := glslFiles.ReadFile("glsl/" + name)
	if err != nil {
		return "", fmt.Errorf("no embedded shader %q: %w", name, err)
	}
	return string(b), nil
}

func mustSource(name string) string {
	s, err := Source(name)
	if err != nil {
		panic(err)
	}
	return s
}

// Effect sources, written against GLSL ES 3.00 and translated at load time.
var (
	QuadVertex   = mustSource("quad.vert")
	Passthrough  = mustSource("passthrough.frag")
	Sepia        = mustSource("sepia.frag")
	CRTLut       = mustSource("crt_lut.frag")
	CRTResample  = mustSource("crt_resample.frag")
	CRTComposite = mustSource("crt_composite.frag")
	NTSCEncode   = mustSource("ntsc_encode.frag")
	NTSCDecode   = mustSource("ntsc_decode.frag")
)
