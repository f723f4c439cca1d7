package graphics

// Key is a keyboard key the application reacts to.
type Key int

const (
	KeyUnknown Key = iota
	KeyF1
	KeyTab
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyR
	KeyS
	KeyEscape
)

// Mod is a set of modifier keys held during a key event.
type Mod int

const (
	ModShift Mod = 1 << iota
	ModControl
	ModAlt
)

// Context defines the interface for an OpenGL context and its window.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	EndFrame()
	GetFramebufferSize() (int, int)
	Time() float64
	SetTitle(title string)
	// OnResize registers a function called with the new framebuffer size.
	OnResize(func(width, height int))
	// OnKey registers a function called on key press and repeat.
	OnKey(func(key Key, mods Mod))
}
