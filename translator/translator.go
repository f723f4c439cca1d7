package translator

import (
	"context"
	"fmt"
	"sync"

	"github.com/richinsley/goshaderfx/gpu"
	gst "github.com/richinsley/goshadertranslator"
)

var (
	shared    *gst.ShaderTranslator
	sharedErr error
	once      sync.Once
)

func getTranslator() (*gst.ShaderTranslator, error) {
	once.Do(func() {
		shared, sharedErr = gst.NewShaderTranslator(context.Background())
	})
	return shared, sharedErr
}

// Translator rewrites WebGL2 (GLSL ES 3.00) effect sources for the desktop
// context and reports how each declared uniform was renamed.
type Translator struct {
	gles bool
}

// New returns a translator targeting GLSL 4.10, or ESSL when gles is set.
// The underlying translator module is instantiated once per process.
func New(gles bool) (*Translator, error) {
	if _, err := getTranslator(); err != nil {
		return nil, fmt.Errorf("failed to start shader translator: %w", err)
	}
	return &Translator{gles: gles}, nil
}

// Translate returns the translated source and a declared -> mapped uniform
// name table.
func (t *Translator) Translate(stage gpu.Stage, source string) (string, map[string]string, error) {
	st, err := getTranslator()
	if err != nil {
		return "", nil, err
	}
	outputFormat := gst.OutputFormatGLSL410
	if t.gles {
		outputFormat = gst.OutputFormatESSL
	}
	out, err := st.TranslateShader(source, stage.String(), gst.ShaderSpecWebGL2, outputFormat)
	if err != nil {
		return "", nil, fmt.Errorf("%s shader translation failed: %w", stage, err)
	}
	names := make(map[string]string, len(out.Variables))
	for name, v := range out.Variables {
		names[name] = v.MappedName
	}
	return out.Code, names, nil
}
