//go:build !linux

package headless

import (
	"errors"

	"github.com/richinsley/goshaderfx/graphics"
)

// Headless is only available on Linux.
type Headless struct {
	graphics.Context
}

func New(width, height int) (*Headless, error) {
	return nil, errors.New("egl headless rendering is not supported on this platform")
}
