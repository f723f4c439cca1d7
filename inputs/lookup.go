package inputs

import (
	"context"
	"errors"
	"image"
	"log"

	"github.com/richinsley/goshaderfx/gpu"
)

// Fetcher retrieves the raw bytes of an external asset.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// placeholderPixel backs a lookup texture until its image arrives.
var placeholderPixel = []byte{0, 0, 0, 255}

type lookupResult struct {
	img *image.RGBA
	err error
}

// LookupTexture is a texture backed by an image that loads in the
// background. The handle is usable immediately: it starts as a 1x1
// placeholder and Poll swaps the real image into the same texture object once
// decoding finishes, so bindings taken before the swap stay valid.
type LookupTexture struct {
	dev     gpu.Device
	url     string
	texture uint32
	width   int
	height  int

	result  chan lookupResult
	cancel  context.CancelFunc
	settled bool
	loaded  bool
}

// NewLookupTexture starts fetching url and returns at once.
func NewLookupTexture(dev gpu.Device, url string, fetch Fetcher) *LookupTexture {
	ctx, cancel := context.WithCancel(context.Background())
	lt := &LookupTexture{
		dev:     dev,
		url:     url,
		texture: dev.CreateTexture(1, 1, gpu.RGBA8, placeholderPixel),
		width:   1,
		height:  1,
		result:  make(chan lookupResult, 1),
		cancel:  cancel,
	}
	if fetch == nil || url == "" {
		lt.result <- lookupResult{err: errors.New("no source configured")}
		return lt
	}
	go func() {
		data, err := fetch.Fetch(ctx, url)
		if err != nil {
			lt.result <- lookupResult{err: err}
			return
		}
		img, err := DecodeRGBABytes(data)
		lt.result <- lookupResult{img: img, err: err}
	}()
	return lt
}

// Poll must be called on the GPU thread between frames. It reports whether
// the texture contents changed during this call.
func (lt *LookupTexture) Poll() bool {
	if lt.settled || lt.texture == 0 {
		return false
	}
	select {
	case res := <-lt.result:
		lt.settled = true
		if res.err != nil {
			log.Printf("Lookup texture %s: keeping placeholder: %v", lt.url, res.err)
			return false
		}
		w, h := res.img.Rect.Dx(), res.img.Rect.Dy()
		lt.dev.UpdateTexture(lt.texture, w, h, gpu.RGBA8, res.img.Pix)
		lt.width, lt.height = w, h
		lt.loaded = true
		log.Printf("Lookup texture %s: loaded %dx%d", lt.url, w, h)
		return true
	default:
		return false
	}
}

// Loaded reports whether the real image replaced the placeholder.
func (lt *LookupTexture) Loaded() bool { return lt.loaded }

// Settled reports whether the background load finished, successfully or not.
func (lt *LookupTexture) Settled() bool { return lt.settled }

func (lt *LookupTexture) Texture() uint32  { return lt.texture }
func (lt *LookupTexture) Size() (int, int) { return lt.width, lt.height }
func (lt *LookupTexture) URL() string      { return lt.url }

// Destroy abandons any pending load and releases the texture.
func (lt *LookupTexture) Destroy() {
	lt.cancel()
	if lt.texture != 0 {
		lt.dev.DeleteTexture(lt.texture)
		lt.texture = 0
	}
}
