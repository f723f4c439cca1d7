package options

// ShaderOptions collects the command line. Pointer fields are filled by the
// flag package.
type ShaderOptions struct {
	Help *bool

	// Input is an image or video file. Empty selects the test pattern.
	Input      *string
	Loop       *bool
	Effect     *string // overrides the persisted selection when set
	Game       *string // per-game config directory; empty stores globally
	Mode       *string // "window" or "record"
	Headless   *bool   // record through EGL without a window
	Width      *int
	Height     *int
	Duration   *float64
	FPS        *int
	OutputFile *string
	Codec      *string
	FFmpegPath *string

	LUT1    *string
	LUT2    *string
	NoCache *bool
	Watch   *bool

	// DisableCaps is a comma separated list of device capabilities to report
	// as missing.
	DisableCaps *string
}

// Recording reports whether frames go to a file instead of a window.
func (o *ShaderOptions) Recording() bool {
	return o.Mode != nil && *o.Mode == "record"
}
