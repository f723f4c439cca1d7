// Package assets downloads external image assets and caches them on disk.
package assets

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Default colour grading tables for the CRT effect.
const (
	DefaultLUT1 = "https://raw.githubusercontent.com/libretro/slang-shaders/master/crt/shaders/guest/advanced/lut/trinitron-lut.png"
	DefaultLUT2 = "https://raw.githubusercontent.com/libretro/slang-shaders/master/crt/shaders/guest/advanced/lut/inv-trinitron-lut.png"
)

const userAgent = "goshaderfx (+https://github.com/richinsley/goshaderfx)"

// maxAssetSize bounds a single download.
const maxAssetSize = 32 << 20

type headerTransport struct {
	Transport http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return t.Transport.RoundTrip(req)
}

// Fetcher retrieves assets by URL. http(s) URLs are cached under CacheDir;
// file:// URLs and bare paths are read from disk.
type Fetcher struct {
	Client   *http.Client
	CacheDir string
	UseCache bool
}

// NewFetcher returns a fetcher caching under the user cache directory.
func NewFetcher(useCache bool) (*Fetcher, error) {
	dir, err := getCacheDir("assets")
	if err != nil {
		return nil, fmt.Errorf("could not get cache directory: %w", err)
	}
	return &Fetcher{
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &headerTransport{Transport: http.DefaultTransport},
		},
		CacheDir: dir,
		UseCache: useCache,
	}, nil
}

// Fetch returns the bytes behind rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// bare path, including windows drive letters
		return os.ReadFile(rawURL)
	}
	switch u.Scheme {
	case "file":
		return os.ReadFile(filepath.FromSlash(u.Path))
	case "http", "https":
		return f.fetchHTTP(ctx, rawURL, u)
	default:
		return nil, fmt.Errorf("unsupported asset scheme %q", u.Scheme)
	}
}

func (f *Fetcher) cachePath(rawURL string, u *url.URL) string {
	sum := sha1.Sum([]byte(rawURL))
	return filepath.Join(f.CacheDir, hex.EncodeToString(sum[:6])+"-"+path.Base(u.Path))
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string, u *url.URL) ([]byte, error) {
	cachePath := f.cachePath(rawURL, u)
	if f.UseCache && f.CacheDir != "" {
		if data, err := os.ReadFile(cachePath); err == nil {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to load %s, status code: %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	if len(data) > maxAssetSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", rawURL, maxAssetSize)
	}

	if f.UseCache && f.CacheDir != "" {
		if err := os.MkdirAll(f.CacheDir, 0755); err == nil {
			if err := os.WriteFile(cachePath, data, 0644); err != nil {
				log.Printf("Warning: failed to save asset to cache at %s: %v", cachePath, err)
			}
		}
	}
	return data, nil
}

func getCacheDir(subdir string) (string, error) {
	var baseCacheDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		baseCacheDir = os.Getenv("LOCALAPPDATA")
		if baseCacheDir == "" {
			err = fmt.Errorf("LOCALAPPDATA environment variable not set")
		}
	case "darwin":
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			err = fmt.Errorf("HOME environment variable not set")
		} else {
			baseCacheDir = filepath.Join(homeDir, "Library", "Caches")
		}
	default:
		baseCacheDir = os.Getenv("XDG_CACHE_HOME")
		if baseCacheDir == "" {
			homeDir := os.Getenv("HOME")
			if homeDir == "" {
				err = fmt.Errorf("HOME environment variable not set")
			} else {
				baseCacheDir = filepath.Join(homeDir, ".cache")
			}
		}
	}
	if err != nil {
		return "", err
	}

	cacheDir := filepath.Join(baseCacheDir, "goshaderfx", subdir)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory at %s: %w", cacheDir, err)
	}
	return cacheDir, nil
}

// IsRemote reports whether s looks like an http(s) URL.
func IsRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
