package glfwcontext

import (
	"log"
	"runtime"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"github.com/richinsley/goshaderfx/graphics"
	options "github.com/richinsley/goshaderfx/options"
)

var _ graphics.Context = (*Context)(nil)

// Context is a GLFW window with a 4.1 core context.
type Context struct {
	window   *glfw.Window
	onResize []func(width, height int)
	onKey    []func(key graphics.Key, mods graphics.Mod)
}

var keyMap = map[glfw.Key]graphics.Key{
	glfw.KeyF1:     graphics.KeyF1,
	glfw.KeyTab:    graphics.KeyTab,
	glfw.KeyUp:     graphics.KeyUp,
	glfw.KeyDown:   graphics.KeyDown,
	glfw.KeyLeft:   graphics.KeyLeft,
	glfw.KeyRight:  graphics.KeyRight,
	glfw.KeyR:      graphics.KeyR,
	glfw.KeyS:      graphics.KeyS,
	glfw.KeyEscape: graphics.KeyEscape,
}

// New creates a window of the requested size. Hidden windows are used for
// record mode.
func New(options *options.ShaderOptions, visible bool) (*Context, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	if visible {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Resizable, glfw.False)
		glfw.WindowHint(glfw.Visible, glfw.False)
	}

	win, err := glfw.CreateWindow(*options.Width, *options.Height, "goshaderfx", nil, nil)
	if err != nil {
		return nil, err
	}

	c := &Context{window: win}
	win.SetKeyCallback(c.glfwKeyCallback)
	win.SetFramebufferSizeCallback(c.glfwFramebufferSizeCallback)
	return c, nil
}

func (c *Context) glfwKeyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.SetShouldClose(true)
	}
	if action != glfw.Press && action != glfw.Repeat {
		return
	}
	k, ok := keyMap[key]
	if !ok {
		return
	}
	var m graphics.Mod
	if mods&glfw.ModShift != 0 {
		m |= graphics.ModShift
	}
	if mods&glfw.ModControl != 0 {
		m |= graphics.ModControl
	}
	if mods&glfw.ModAlt != 0 {
		m |= graphics.ModAlt
	}
	for _, f := range c.onKey {
		f(k, m)
	}
}

func (c *Context) glfwFramebufferSizeCallback(w *glfw.Window, width, height int) {
	// minimized windows report 0x0
	if width == 0 || height == 0 {
		return
	}
	for _, f := range c.onResize {
		f(width, height)
	}
}

func (c *Context) OnResize(f func(width, height int)) { c.onResize = append(c.onResize, f) }

func (c *Context) OnKey(f func(key graphics.Key, mods graphics.Mod)) {
	c.onKey = append(c.onKey, f)
}

// MakeCurrent makes the context current for the calling goroutine.
func (c *Context) MakeCurrent() {
	c.window.MakeContextCurrent()
}

func (c *Context) Shutdown() {
	c.window.Destroy()
}

func (c *Context) ShouldClose() bool {
	return c.window.ShouldClose()
}

func (c *Context) EndFrame() {
	c.window.SwapBuffers()
	glfw.PollEvents()
}

func (c *Context) GetFramebufferSize() (int, int) {
	return c.window.GetFramebufferSize()
}

func (c *Context) Time() float64 {
	return glfw.GetTime()
}

func (c *Context) SetTitle(title string) {
	c.window.SetTitle(title)
}

// InitGraphics initializes GLFW. Must be called from the main thread.
func InitGraphics() error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return err
	}
	log.Printf("GLFW Initialized")
	return nil
}

// TerminateGraphics shuts down GLFW. Must be called from the main thread.
func TerminateGraphics() {
	glfw.Terminate()
	log.Printf("GLFW Terminated")
}
