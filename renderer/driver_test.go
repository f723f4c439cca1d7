package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/richinsley/goshaderfx/config"
	"github.com/richinsley/goshaderfx/effects"
	"github.com/richinsley/goshaderfx/gpu"
	"github.com/richinsley/goshaderfx/gpu/gputest"
	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/inputs"
	"github.com/richinsley/goshaderfx/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	tex     uint32
	updates int
}

func (s *stubSource) Texture() uint32  { return s.tex }
func (s *stubSource) Size() (int, int) { return 320, 240 }
func (s *stubSource) Update() bool     { s.updates++; return false }
func (s *stubSource) Close() error     { return nil }

type harness struct {
	dev      *gputest.Device
	store    *config.Store
	settings *config.ShaderState
	toasts   *notify.Recorder
	src      *stubSource
}

func newHarness(t *testing.T, active effects.ID) *harness {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	store, err := config.NewStore("")
	require.NoError(t, err)
	settings, err := config.LoadShader(store, true)
	require.NoError(t, err)
	require.NoError(t, settings.SetActive(string(active)))
	t.Cleanup(settings.Close)

	dev := gputest.New()
	return &harness{
		dev:      dev,
		store:    store,
		settings: settings,
		toasts:   &notify.Recorder{},
		src:      &stubSource{tex: dev.CreateTexture(320, 240, gpu.RGBA8, nil)},
	}
}

func (h *harness) driver(t *testing.T) *Driver {
	t.Helper()
	d, err := New(h.options())
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func (h *harness) options() Options {
	return Options{
		Device:   h.dev,
		Source:   h.src,
		Settings: h.settings,
		Notifier: h.toasts,
		Width:    640,
		Height:   480,
		LUTs:     [2]string{"https://example.invalid/a.png", "https://example.invalid/b.png"},
		Fetcher: inputs.FetcherFunc(func(context.Context, string) ([]byte, error) {
			return nil, errors.New("offline")
		}),
	}
}

func (h *harness) lastDraw(t *testing.T) gputest.Draw {
	t.Helper()
	require.NotEmpty(t, h.dev.Draws)
	return h.dev.Draws[len(h.dev.Draws)-1]
}

func countOp(ops []string, op string) int {
	n := 0
	for _, o := range ops {
		if o == op {
			n++
		}
	}
	return n
}

func indexOp(ops []string, op string) int {
	for i, o := range ops {
		if o == op {
			return i
		}
	}
	return -1
}

func programs(b *effects.Bundle) []uint32 {
	var ids []uint32
	for _, p := range b.Passes {
		ids = append(ids, p.Program.ID())
	}
	return ids
}

func TestNewRequiresVertexArrays(t *testing.T) {
	h := newHarness(t, effects.CRT)
	h.dev.Disable(gpu.CapVertexArray)

	d, err := New(h.options())
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrNoVertexArrays)

	toasts := h.toasts.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.IconImportant, toasts[0].Icon)
	_, progs, _, _, _ := h.dev.Live()
	assert.Zero(t, progs)
}

func TestNewFailsWithoutBlitPosition(t *testing.T) {
	h := newHarness(t, effects.Sepia)
	h.dev.HideAttributes(true)

	d, err := New(h.options())
	assert.Nil(t, d)
	assert.ErrorContains(t, err, "does not read "+effects.PositionAttrib)
	shaders, progs, _, fbos, vaos := h.dev.Live()
	assert.Zero(t, shaders)
	assert.Zero(t, progs)
	assert.Zero(t, fbos)
	assert.Zero(t, vaos)
}

func TestArmsPersistedEffectAtStartup(t *testing.T) {
	h := newHarness(t, effects.Sepia)
	d := h.driver(t)
	assert.Equal(t, Armed, d.State())
	require.NotNil(t, d.Bundle())

	d.Tick()
	assert.Equal(t, Running, d.State())
	draw := h.lastDraw(t)
	assert.Equal(t, d.Bundle().Passes[0].Program.ID(), draw.Program)
	assert.Equal(t, uint32(gpu.Surface), draw.Framebuffer)
	assert.Equal(t, h.src.tex, draw.Texture0)
	assert.Equal(t, 1, h.src.updates)
}

func TestIdleBlitsSource(t *testing.T) {
	h := newHarness(t, effects.None)
	d := h.driver(t)
	assert.Equal(t, Idle, d.State())

	d.Tick()
	require.Len(t, h.dev.Draws, 1)
	draw := h.dev.Draws[0]
	assert.Equal(t, d.blit.ID(), draw.Program)
	assert.Equal(t, h.src.tex, draw.Texture0)
	assert.NotZero(t, draw.VertexArray)
}

func TestSepiaThenIdentity(t *testing.T) {
	h := newHarness(t, effects.None)
	d := h.driver(t)

	require.NoError(t, d.Select(effects.Sepia))
	assert.Equal(t, Armed, d.State())
	d.Tick()
	sepia := d.Bundle().Passes[0].Program.ID()
	assert.Equal(t, sepia, h.lastDraw(t).Program)
	assert.Len(t, d.Bundle().Passes, 1)

	require.NoError(t, d.Select(effects.None))
	assert.Equal(t, Running, d.State(), "switch waits for the next tick")

	d.Tick()
	assert.Equal(t, Idle, d.State())
	assert.Nil(t, d.Bundle())
	assert.False(t, h.dev.IsProgram(sepia))
	assert.Equal(t, d.blit.ID(), h.lastDraw(t).Program)
	assert.Equal(t, h.src.tex, h.lastDraw(t).Texture0)
	assert.Equal(t, "", h.settings.Active())
}

func TestSelectRunningEffectAllocatesNothing(t *testing.T) {
	h := newHarness(t, effects.CRT)
	d := h.driver(t)
	d.Tick()
	b := d.Bundle()
	allocs := h.dev.Allocations

	require.NoError(t, d.Select(effects.CRT))
	d.Tick()
	assert.Equal(t, allocs, h.dev.Allocations)
	assert.Same(t, b, d.Bundle())
}

func TestReselectWithinFrameKeepsBundle(t *testing.T) {
	h := newHarness(t, effects.CRT)
	d := h.driver(t)
	d.Tick()
	b := d.Bundle()
	allocs := h.dev.Allocations

	require.NoError(t, d.Select(effects.Sepia))
	require.NoError(t, d.Select(effects.CRT))
	d.Tick()
	assert.Same(t, b, d.Bundle())
	assert.False(t, b.Destroyed())
	assert.Equal(t, allocs, h.dev.Allocations)
	assert.Equal(t, Running, d.State())
	assert.Equal(t, "crt", h.settings.Active())
	assert.Equal(t, b.Passes[2].Program.ID(), h.lastDraw(t).Program)
}

func TestSwitchTearsDownBeforeFirstDraw(t *testing.T) {
	h := newHarness(t, effects.CRT)
	d := h.driver(t)
	d.Tick()
	old := programs(d.Bundle())
	h.dev.ResetLog()

	require.NoError(t, d.Select(effects.NTSC))
	d.Tick()
	require.Equal(t, effects.NTSC, d.Bundle().ID)

	firstDraw := h.dev.Index("draw ")
	require.GreaterOrEqual(t, firstDraw, 0)
	for _, id := range old {
		del := fmt.Sprintf("delete-program %d", id)
		assert.Equal(t, 1, countOp(h.dev.Ops, del))
		assert.Less(t, indexOp(h.dev.Ops, del), firstDraw)
	}
	for _, draw := range h.dev.Draws {
		assert.NotContains(t, old, draw.Program)
	}
}

func TestSetParamClampsPushesAndPersists(t *testing.T) {
	h := newHarness(t, effects.CRT)
	d := h.driver(t)
	d.Tick()
	resample := d.Bundle().Passes[1].Program.ID()

	v, err := d.SetParam("CURVATURE", 7)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
	assert.Equal(t, []float32{1}, h.dev.Uniform(resample, "CURVATURE"))
	assert.True(t, h.settings.SavePending())
	got, ok := d.Param("CURVATURE")
	assert.True(t, ok)
	assert.Equal(t, 1.0, got)

	_, err = d.SetParam("SEPIA_STRENGTH", 0.5)
	assert.Error(t, err)
}

func TestResetRestoresDefaults(t *testing.T) {
	h := newHarness(t, effects.CRT)
	d := h.driver(t)
	d.Tick()
	resample := d.Bundle().Passes[1].Program.ID()
	_, err := d.SetParam("CURVATURE", 1)
	require.NoError(t, err)

	refreshed := 0
	d.OnChange(func() { refreshed++ })
	require.NoError(t, d.ResetParams())

	assert.Equal(t, []float32{0.5}, h.dev.Uniform(resample, "CURVATURE"))
	assert.False(t, h.settings.SavePending(), "reset is saved immediately")
	assert.Equal(t, 1, refreshed)

	again, err := config.LoadShader(h.store, true)
	require.NoError(t, err)
	assert.Equal(t, 0.5, again.ValueOr("crt", "CURVATURE", -1))
}

func TestResizeRebuildKeepsValues(t *testing.T) {
	h := newHarness(t, effects.CRT)
	d := h.driver(t)
	d.Tick()
	_, err := d.SetParam("CURVATURE", 1)
	require.NoError(t, err)
	old := d.Bundle()

	d.Resize(800, 600)
	assert.Same(t, old, d.Bundle(), "rebuild waits for the next tick")
	d.Tick()

	b := d.Bundle()
	require.NotNil(t, b)
	assert.NotSame(t, old, b)
	assert.True(t, old.Destroyed())
	assert.Equal(t, effects.CRT, d.Active())
	assert.Equal(t, Running, d.State())

	w, hgt := b.Passes[1].Target.Size()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, hgt)
	assert.Equal(t, []float32{1}, h.dev.Uniform(b.Passes[1].Program.ID(), "CURVATURE"))
}

func TestResizeSameSizeIsNoop(t *testing.T) {
	h := newHarness(t, effects.Sepia)
	d := h.driver(t)
	d.Tick()
	b := d.Bundle()

	d.Resize(640, 480)
	d.Resize(0, 100)
	d.Tick()
	assert.Same(t, b, d.Bundle())
}

func TestMissingCapabilityFallsBackToIdle(t *testing.T) {
	h := newHarness(t, effects.None)
	h.dev.Disable(gpu.CapFloatTarget)
	d := h.driver(t)
	before := h.dev.Allocations

	require.NoError(t, d.Select(effects.CRT))
	assert.Equal(t, Idle, d.State())
	assert.Nil(t, d.Bundle())
	assert.Equal(t, before, h.dev.Allocations)

	toasts := h.toasts.Toasts()
	require.Len(t, toasts, 1)
	assert.True(t, strings.HasPrefix(toasts[0].Text, "Invalid shader program crt: "), toasts[0].Text)
	assert.Equal(t, notify.IconImportant, toasts[0].Icon)
	assert.True(t, toasts[0].Sticky)
	assert.True(t, toasts[0].Persist)
	assert.Empty(t, toasts[0].Title)

	d.Tick()
	assert.Equal(t, d.blit.ID(), h.lastDraw(t).Program)

	require.NoError(t, d.Select(effects.Sepia))
	assert.Equal(t, Armed, d.State())
}

func TestCompileFailureFallsBackToIdle(t *testing.T) {
	h := newHarness(t, effects.None)
	h.dev.FailCompile("SEPIA_STRENGTH")
	d := h.driver(t)

	require.NoError(t, d.Select(effects.Sepia))
	assert.Equal(t, Idle, d.State())
	require.Len(t, h.toasts.Toasts(), 1)
	assert.Contains(t, h.toasts.Toasts()[0].Text, "fragment stage failed")
}

func TestFrameCountAdvances(t *testing.T) {
	h := newHarness(t, effects.CRT)
	d := h.driver(t)
	for i := 0; i < 3; i++ {
		d.Tick()
	}
	assert.Equal(t, []float32{2}, h.dev.Uniform(d.Bundle().Passes[2].Program.ID(), "FrameCount"))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestLookupLoadKeepsBundle(t *testing.T) {
	h := newHarness(t, effects.CRT)
	release := make(chan struct{})
	data := pngBytes(t, 4, 2)
	opts := h.options()
	opts.Fetcher = inputs.FetcherFunc(func(ctx context.Context, _ string) ([]byte, error) {
		select {
		case <-release:
			return data, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	d, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	d.Tick()
	b := d.Bundle()
	require.Len(t, b.Textures, 2)
	var handles []uint32
	for _, lt := range b.Textures {
		assert.False(t, lt.Loaded())
		handles = append(handles, lt.Texture())
	}
	allocs := h.dev.Allocations

	close(release)
	loaded := func() bool {
		for _, lt := range b.Textures {
			if !lt.Loaded() {
				return false
			}
		}
		return true
	}
	for deadline := time.Now().Add(5 * time.Second); !loaded() && time.Now().Before(deadline); {
		time.Sleep(time.Millisecond)
		d.Tick()
	}
	require.True(t, loaded(), "lookup textures did not load")

	d.Tick()
	assert.Same(t, b, d.Bundle())
	assert.Equal(t, Running, d.State())
	assert.Equal(t, allocs, h.dev.Allocations)
	for i, lt := range b.Textures {
		assert.Equal(t, handles[i], lt.Texture())
		w, hgt := lt.Size()
		assert.Equal(t, 4, w)
		assert.Equal(t, 2, hgt)
		assert.Len(t, h.dev.TexturePixels(lt.Texture()), 4*2*4)
	}
}

func TestPostRunsOnNextTick(t *testing.T) {
	h := newHarness(t, effects.None)
	d := h.driver(t)

	ran := make(chan struct{})
	done := make(chan struct{})
	go func() {
		d.Post(func() { close(ran) })
		close(done)
	}()
	<-done

	select {
	case <-ran:
		t.Fatal("request ran before Tick")
	default:
	}
	d.Tick()
	select {
	case <-ran:
	default:
		t.Fatal("request did not run on Tick")
	}
}

func TestPostAfterCloseDoesNotBlock(t *testing.T) {
	h := newHarness(t, effects.None)
	d := h.driver(t)
	for i := 0; i < cap(d.requests); i++ {
		d.Post(func() {})
	}

	done := make(chan struct{})
	go func() {
		d.Post(func() {})
		d.Post(func() {})
		close(done)
	}()
	d.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Post blocked after Close")
	}
}

func TestReloadAppliesOutsideEdits(t *testing.T) {
	h := newHarness(t, effects.Sepia)
	d := h.driver(t)
	d.Tick()
	prog := d.Bundle().Passes[0].Program.ID()

	require.NoError(t, d.Reload())
	assert.Equal(t, effects.Sepia, d.Bundle().ID, "own writes are ignored")

	other, err := config.LoadShader(h.store, true)
	require.NoError(t, err)
	other.SetValue("sepia", "SEPIA_STRENGTH", 0.25)
	require.NoError(t, other.Save())

	require.NoError(t, d.Reload())
	assert.Equal(t, []float32{0.25}, h.dev.Uniform(prog, "SEPIA_STRENGTH"))

	require.NoError(t, other.SetActive("ntsc"))
	require.NoError(t, d.Reload())
	d.Tick()
	assert.Equal(t, effects.NTSC, d.Bundle().ID)
	assert.False(t, h.dev.IsProgram(prog))
}

func TestSetOutputRedirectsFinalPass(t *testing.T) {
	h := newHarness(t, effects.Sepia)
	d := h.driver(t)
	target, err := inputs.NewRenderTarget(h.dev, 640, 480, gpu.RGBA8)
	require.NoError(t, err)
	defer target.Destroy()

	d.SetOutput(target)
	d.Tick()
	assert.Equal(t, target.Framebuffer(), h.lastDraw(t).Framebuffer)

	d.SetOutput(nil)
	d.Tick()
	assert.Equal(t, uint32(gpu.Surface), h.lastDraw(t).Framebuffer)
}

func TestCloseReleasesEverything(t *testing.T) {
	h := newHarness(t, effects.CRT)
	d, err := New(h.options())
	require.NoError(t, err)
	d.Tick()

	d.Close()
	d.Close()
	shaders, progs, _, fbos, vaos := h.dev.Live()
	assert.Zero(t, shaders)
	assert.Zero(t, progs)
	assert.Zero(t, fbos)
	assert.Zero(t, vaos)
}

type fakeSurface struct {
	closeAfter int
	frames     int
}

func (s *fakeSurface) MakeCurrent()                           {}
func (s *fakeSurface) Shutdown()                              {}
func (s *fakeSurface) ShouldClose() bool                      { return s.frames >= s.closeAfter }
func (s *fakeSurface) EndFrame()                              { s.frames++ }
func (s *fakeSurface) GetFramebufferSize() (int, int)         { return 640, 480 }
func (s *fakeSurface) Time() float64                          { return 0 }
func (s *fakeSurface) SetTitle(string)                        {}
func (s *fakeSurface) OnResize(func(width, height int))       {}
func (s *fakeSurface) OnKey(func(graphics.Key, graphics.Mod)) {}

func TestRunStopsWhenWindowCloses(t *testing.T) {
	h := newHarness(t, effects.Sepia)
	d := h.driver(t)
	surface := &fakeSurface{closeAfter: 5}

	require.NoError(t, d.Run(context.Background(), surface))
	assert.Equal(t, 5, surface.frames)
	assert.Len(t, h.dev.Draws, 5)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, effects.None)
	d := h.driver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Run(ctx, &fakeSurface{closeAfter: 100})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.dev.Draws)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "tearing-down", TearingDown.String())
	assert.Equal(t, "State(9)", State(9).String())
}

type sinkRecorder struct {
	frames [][]byte
	closed bool
	fail   error
}

func (s *sinkRecorder) WriteFrame(p []byte) error {
	if s.fail != nil {
		return s.fail
	}
	s.frames = append(s.frames, p)
	return nil
}

func (s *sinkRecorder) Close() error { s.closed = true; return nil }

func TestRecordRendersOffscreen(t *testing.T) {
	h := newHarness(t, effects.Sepia)
	d := h.driver(t)
	sink := &sinkRecorder{}

	require.NoError(t, d.Record(context.Background(), 4, 640, 480, sink))
	assert.True(t, sink.closed)
	require.Len(t, sink.frames, 4)
	assert.Len(t, sink.frames[0], 640*480*4)
	for _, draw := range h.dev.Draws {
		assert.NotEqual(t, uint32(gpu.Surface), draw.Framebuffer)
	}

	_, _, _, fbos, _ := h.dev.Live()
	assert.Zero(t, fbos, "offscreen target is released")
	d.Tick()
	assert.Equal(t, uint32(gpu.Surface), h.lastDraw(t).Framebuffer)
}

func TestRecordReportsSinkErrors(t *testing.T) {
	h := newHarness(t, effects.None)
	d := h.driver(t)
	sink := &sinkRecorder{fail: errors.New("broken pipe")}

	err := d.Record(context.Background(), 3, 640, 480, sink)
	assert.ErrorContains(t, err, "broken pipe")
	assert.True(t, sink.closed)
}

func TestRecordUsesRequestedSize(t *testing.T) {
	h := newHarness(t, effects.CRT)
	opts := h.options()
	// a 1280x960 window with a 2x framebuffer
	opts.Width, opts.Height = 2560, 1920
	d, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	d.Tick()
	sink := &sinkRecorder{}

	require.NoError(t, d.Record(context.Background(), 2, 1280, 960, sink))
	require.Len(t, sink.frames, 2)
	for _, f := range sink.frames {
		assert.Len(t, f, 1280*960*4)
	}
	w, hgt := d.Size()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 960, hgt)
	w, hgt = d.Bundle().Passes[1].Target.Size()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 960, hgt)
}

func TestRecordRejectsEmptySize(t *testing.T) {
	h := newHarness(t, effects.Sepia)
	d := h.driver(t)
	sink := &sinkRecorder{}

	err := d.Record(context.Background(), 2, 0, 960, sink)
	assert.ErrorContains(t, err, "invalid record size")
	assert.True(t, sink.closed)
	assert.Empty(t, sink.frames)
}
