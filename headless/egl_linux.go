//go:build linux

// Package headless provides a window-less OpenGL ES 3 context on a pbuffer
// surface for record mode on machines without a display.
package headless

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/richinsley/goshaderfx/graphics"
)

/*
#cgo LDFLAGS: -lEGL -lGLESv2
#include <EGL/egl.h>
#include <EGL/eglext.h>

#define MAX_EGL_DEVICES 8

// device_display returns a display on the first enumerated GPU that yields
// one, or EGL_NO_DISPLAY when device enumeration is unavailable.
static EGLDisplay device_display(EGLint *found) {
    PFNEGLQUERYDEVICESEXTPROC query =
        (PFNEGLQUERYDEVICESEXTPROC) eglGetProcAddress("eglQueryDevicesEXT");
    PFNEGLGETPLATFORMDISPLAYEXTPROC platform =
        (PFNEGLGETPLATFORMDISPLAYEXTPROC) eglGetProcAddress("eglGetPlatformDisplayEXT");
    *found = 0;
    if (!query || !platform) {
        return EGL_NO_DISPLAY;
    }
    EGLDeviceEXT devices[MAX_EGL_DEVICES];
    if (!query(MAX_EGL_DEVICES, devices, found)) {
        return EGL_NO_DISPLAY;
    }
    for (EGLint i = 0; i < *found; i++) {
        EGLDisplay d = platform(EGL_PLATFORM_DEVICE_EXT, devices[i], NULL);
        if (d != EGL_NO_DISPLAY) {
            return d;
        }
    }
    return EGL_NO_DISPLAY;
}

static EGLDisplay default_display(void) {
    return eglGetDisplay(EGL_DEFAULT_DISPLAY);
}
*/
import "C"

var _ graphics.Context = (*Headless)(nil)

// Headless is a graphics.Context backed by an EGL pbuffer. It never closes
// on its own and has no input.
type Headless struct {
	display C.EGLDisplay
	context C.EGLContext
	surface C.EGLSurface
	width   int
	height  int
	start   time.Time
}

var noDisplay = C.EGLDisplay(C.EGL_NO_DISPLAY)

// openDisplay prefers a GPU found by device enumeration, which works in
// containers without X, over the default display.
func openDisplay() (C.EGLDisplay, error) {
	var found C.EGLint
	if d := C.device_display(&found); d != noDisplay {
		log.Printf("EGL: using device display (%d devices)", int(found))
		return d, nil
	}
	log.Printf("EGL: device enumeration found %d usable devices, using the default display", int(found))
	if d := C.default_display(); d != noDisplay {
		return d, nil
	}
	return noDisplay, errors.New("no EGL display available")
}

func attribs(pairs ...C.EGLint) []C.EGLint {
	return append(pairs, C.EGL_NONE)
}

// New creates a pbuffer of the given size and makes its context current.
// Shaders must be translated to ESSL for it.
func New(width, height int) (*Headless, error) {
	h := &Headless{width: width, height: height, start: time.Now()}

	var err error
	if h.display, err = openDisplay(); err != nil {
		return nil, err
	}
	var major, minor C.EGLint
	if C.eglInitialize(h.display, &major, &minor) == C.EGL_FALSE {
		return nil, errors.New("failed to initialize EGL")
	}
	log.Printf("EGL %d.%d initialized", major, minor)

	configAttribs := attribs(
		C.EGL_SURFACE_TYPE, C.EGL_PBUFFER_BIT,
		C.EGL_RED_SIZE, 8,
		C.EGL_GREEN_SIZE, 8,
		C.EGL_BLUE_SIZE, 8,
		C.EGL_ALPHA_SIZE, 8,
		C.EGL_RENDERABLE_TYPE, C.EGL_OPENGL_ES3_BIT,
	)
	var config C.EGLConfig
	var n C.EGLint
	if C.eglChooseConfig(h.display, &configAttribs[0], &config, 1, &n) == C.EGL_FALSE || n == 0 {
		h.Shutdown()
		return nil, errors.New("no EGL config with an ES3 pbuffer")
	}

	size := attribs(C.EGL_WIDTH, C.EGLint(width), C.EGL_HEIGHT, C.EGLint(height))
	h.surface = C.eglCreatePbufferSurface(h.display, config, &size[0])
	if h.surface == C.EGLSurface(C.EGL_NO_SURFACE) {
		h.Shutdown()
		return nil, fmt.Errorf("failed to create %dx%d pbuffer surface", width, height)
	}

	version := attribs(C.EGL_CONTEXT_CLIENT_VERSION, 3)
	h.context = C.eglCreateContext(h.display, config, C.EGLContext(C.EGL_NO_CONTEXT), &version[0])
	if h.context == C.EGLContext(C.EGL_NO_CONTEXT) {
		h.Shutdown()
		return nil, errors.New("failed to create EGL context")
	}

	h.MakeCurrent()
	return h, nil
}

func (h *Headless) MakeCurrent() {
	if C.eglMakeCurrent(h.display, h.surface, h.surface, h.context) == C.EGL_FALSE {
		log.Println("EGL: failed to make context current")
	}
}

func (h *Headless) Shutdown() {
	if h.display == noDisplay {
		return
	}
	C.eglMakeCurrent(h.display, C.EGLSurface(C.EGL_NO_SURFACE), C.EGLSurface(C.EGL_NO_SURFACE), C.EGLContext(C.EGL_NO_CONTEXT))
	if h.context != C.EGLContext(C.EGL_NO_CONTEXT) {
		C.eglDestroyContext(h.display, h.context)
	}
	if h.surface != C.EGLSurface(C.EGL_NO_SURFACE) {
		C.eglDestroySurface(h.display, h.surface)
	}
	C.eglTerminate(h.display)
	h.display = noDisplay
}

func (h *Headless) ShouldClose() bool              { return false }
func (h *Headless) EndFrame()                      { C.eglSwapBuffers(h.display, h.surface) }
func (h *Headless) GetFramebufferSize() (int, int) { return h.width, h.height }
func (h *Headless) Time() float64                  { return time.Since(h.start).Seconds() }
func (h *Headless) SetTitle(string)                {}

func (h *Headless) OnResize(func(width, height int))       {}
func (h *Headless) OnKey(func(graphics.Key, graphics.Mod)) {}
