package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/richinsley/goshaderfx/assets"
	"github.com/richinsley/goshaderfx/config"
	"github.com/richinsley/goshaderfx/effects"
	"github.com/richinsley/goshaderfx/encoder"
	"github.com/richinsley/goshaderfx/glfwcontext"
	"github.com/richinsley/goshaderfx/gpu"
	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/headless"
	"github.com/richinsley/goshaderfx/notify"
	"github.com/richinsley/goshaderfx/options"
	"github.com/richinsley/goshaderfx/panel"
	"github.com/richinsley/goshaderfx/renderer"
	"github.com/richinsley/goshaderfx/source"
	"github.com/richinsley/goshaderfx/translator"
)

func init() {
	runtime.LockOSThread()
}

func parseFlags() *options.ShaderOptions {
	opts := &options.ShaderOptions{
		Help: flag.Bool("help", false, "Show help message"),

		Input:    flag.String("input", "", "Image or video file to filter (test pattern if empty)"),
		Loop:     flag.Bool("loop", true, "Loop video input"),
		Effect:   flag.String("effect", "", "Effect to select at startup: "+effectNames()),
		Game:     flag.String("game", "", "Store settings per game under this name instead of globally"),
		Mode:     flag.String("mode", "window", "Run mode: window or record"),
		Headless: flag.Bool("headless", false, "Record without a window through EGL (Linux, build with -tags egl)"),
		Width:    flag.Int("width", 1280, "Width of the output"),
		Height:   flag.Int("height", 960, "Height of the output"),

		Duration:   flag.Float64("duration", 10.0, "Duration to record in seconds"),
		FPS:        flag.Int("fps", 60, "Frames per second for recording"),
		OutputFile: flag.String("output", "output.mp4", "Output file name for recording"),
		Codec:      flag.String("codec", "h264", "Video codec: h264, hevc or an ffmpeg encoder name"),
		FFmpegPath: flag.String("ffmpeg", "", "Path to ffmpeg executable"),

		LUT1:    flag.String("lut1", assets.DefaultLUT1, "First CRT colour lookup table (path or URL)"),
		LUT2:    flag.String("lut2", assets.DefaultLUT2, "Second CRT colour lookup table (path or URL)"),
		NoCache: flag.Bool("nocache", false, "Do not cache downloaded lookup tables"),
		Watch:   flag.Bool("watch", true, "Reload settings when the config file changes"),

		DisableCaps: flag.String("disable", "", "Comma separated GPU capabilities to treat as missing"),
	}
	flag.Parse()
	return opts
}

func effectNames() string {
	var names []string
	for _, id := range effects.IDs() {
		if id == effects.None {
			names = append(names, `"" (none)`)
			continue
		}
		names = append(names, string(id))
	}
	return strings.Join(names, ", ")
}

func openSource(ctx context.Context, dev gpu.Device, fetcher *assets.Fetcher, opts *options.ShaderOptions) (source.Source, error) {
	path := *opts.Input
	switch {
	case path == "":
		log.Println("No input given, using the test pattern")
		return source.NewPattern(dev, effects.DefaultSourceWidth, effects.DefaultSourceHeight), nil
	case source.IsVideo(path):
		return source.NewVideo(dev, path, source.VideoOptions{
			Width:      effects.DefaultSourceWidth,
			Height:     effects.DefaultSourceHeight,
			Loop:       *opts.Loop,
			FFmpegPath: *opts.FFmpegPath,
		})
	case assets.IsRemote(path):
		log.Printf("Downloading input image %s", path)
		data, err := fetcher.Fetch(ctx, path)
		if err != nil {
			return nil, err
		}
		return source.NewImageData(dev, path, data)
	default:
		return source.NewImage(dev, path)
	}
}

// openSurface returns the GL context to render into and a function that
// releases it. gles reports whether shaders must be translated to ESSL.
func openSurface(opts *options.ShaderOptions) (surface graphics.Context, gles bool, release func(), err error) {
	if opts.Recording() && *opts.Headless {
		h, err := headless.New(*opts.Width, *opts.Height)
		if err != nil {
			return nil, false, nil, err
		}
		return h, true, h.Shutdown, nil
	}

	if err := glfwcontext.InitGraphics(); err != nil {
		return nil, false, nil, fmt.Errorf("failed to initialize glfw: %w", err)
	}
	w, err := glfwcontext.New(opts, !opts.Recording())
	if err != nil {
		glfwcontext.TerminateGraphics()
		return nil, false, nil, fmt.Errorf("failed to create window: %w", err)
	}
	w.MakeCurrent()
	return w, false, func() {
		w.Shutdown()
		glfwcontext.TerminateGraphics()
	}, nil
}

func run(opts *options.ShaderOptions) error {
	record := opts.Recording()
	surface, gles, release, err := openSurface(opts)
	if err != nil {
		return err
	}
	defer release()

	var disabled []string
	if *opts.DisableCaps != "" {
		disabled = strings.Split(*opts.DisableCaps, ",")
	}
	dev, err := gpu.NewGL(disabled...)
	if err != nil {
		return err
	}
	xl, err := translator.New(gles)
	if err != nil {
		return fmt.Errorf("failed to create shader translator: %w", err)
	}

	store, err := config.NewStore(*opts.Game)
	if err != nil {
		return err
	}
	settings, err := config.LoadShader(store, *opts.Game == "")
	if err != nil {
		return err
	}
	defer settings.Close()
	if *opts.Effect != "" || isSet("effect") {
		id := effects.ID(*opts.Effect)
		if !effects.Known(id) {
			return fmt.Errorf("unknown effect %q, want one of %s", id, effectNames())
		}
		if err := settings.SetActive(string(id)); err != nil {
			log.Printf("Config: %v", err)
		}
	}

	fetcher, err := assets.NewFetcher(!*opts.NoCache)
	if err != nil {
		return err
	}
	src, err := openSource(context.Background(), dev, fetcher, opts)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer src.Close()

	// A hidden window may have a scaled framebuffer; recordings use the
	// requested size.
	width, height := surface.GetFramebufferSize()
	if record {
		width, height = *opts.Width, *opts.Height
	}
	notifier := notify.NewLog()
	driver, err := renderer.New(renderer.Options{
		Device:     dev,
		Translator: xl,
		Source:     src,
		Settings:   settings,
		Notifier:   notifier,
		Width:      width,
		Height:     height,
		LUTs:       [2]string{*opts.LUT1, *opts.LUT2},
		Fetcher:    fetcher,
	})
	if err != nil {
		return err
	}
	defer driver.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if record {
		enc, err := encoder.New(opts)
		if err != nil {
			return err
		}
		frames := int(*opts.Duration * float64(*opts.FPS))
		if err := driver.Record(ctx, frames, *opts.Width, *opts.Height, enc); err != nil {
			return fmt.Errorf("recording failed: %w", err)
		}
		log.Printf("Successfully rendered to %s", *opts.OutputFile)
		return nil
	}

	surface.OnResize(driver.Resize)
	panel.New(driver, settings.Save, surface.SetTitle).Attach(surface)

	if *opts.Watch {
		path, err := settings.Path()
		if err != nil {
			return err
		}
		watcher, err := config.Watch(path)
		if err != nil {
			log.Printf("Config: not watching %s: %v", path, err)
		} else {
			defer watcher.Close()
			go func() {
				for range watcher.Changes() {
					driver.Post(func() {
						if err := driver.Reload(); err != nil {
							log.Printf("Config: reload failed: %v", err)
						}
					})
				}
			}()
		}
	}

	log.Println("Starting interactive render loop... (F1 settings, Tab next effect)")
	err = driver.Run(ctx, surface)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// isSet reports whether the named flag was given on the command line.
func isSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func main() {
	opts := parseFlags()
	if *opts.Help {
		fmt.Println("goshaderfx: multi-pass shader effects over images and video")
		flag.PrintDefaults()
		return
	}
	if err := run(opts); err != nil {
		log.Fatalf("%v", err)
	}
}
