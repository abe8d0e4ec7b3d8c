// Package envmap loads environment textures used as scene background and
// image-based lighting.
package envmap

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupported is returned for files that are neither Radiance HDR nor a
// registered image format.
var ErrUnsupported = errors.New("envmap: unsupported format")

// DefaultWidth is the width environments are downsampled to.
const DefaultWidth = 256

// Texture is a decoded, tonemapped and downsampled environment.
type Texture struct {
	Path  string
	Image *image.RGBA
	// Average is the mean linear color, used as the diffuse irradiance term.
	Average [3]float64
}

// Sample returns the texel at equirectangular coordinates u, v in [0, 1].
func (t *Texture) Sample(u, v float64) color.RGBA {
	b := t.Image.Bounds()
	x := b.Min.X + int(u*float64(b.Dx()))
	y := b.Min.Y + int(v*float64(b.Dy()))
	x = min(max(x, b.Min.X), b.Max.X-1)
	y = min(max(y, b.Min.Y), b.Max.Y-1)
	return t.Image.RGBAAt(x, y)
}

// Loader reads environments from a local root or over HTTP.
type Loader struct {
	Root   string
	Client *http.Client
	Width  int
}

// NewLoader creates a loader rooted at root.
func NewLoader(root string) *Loader {
	return &Loader{Root: root, Client: http.DefaultClient, Width: DefaultWidth}
}

// Load reads and decodes the environment at path. Absolute-looking paths such
// as /images/x.hdr resolve under Root.
func (l *Loader) Load(ctx context.Context, path string) (*Texture, error) {
	data, err := l.read(ctx, path)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	width := l.Width
	if width <= 0 {
		width = DefaultWidth
	}
	small := downsample(img, width)
	return &Texture{Path: path, Image: small, Average: average(small)}, nil
}

func (l *Loader) read(ctx context.Context, path string) ([]byte, error) {
	u, err := url.Parse(path)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		client := l.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", path, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: status %s", path, resp.Status)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 256<<20))
	}

	local := filepath.FromSlash(strings.TrimPrefix(path, "/"))
	if l.Root != "" {
		local = filepath.Join(l.Root, local)
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Decode decodes Radiance HDR data or any registered image format.
func Decode(data []byte) (image.Image, error) {
	if isHDR(data) {
		return DecodeHDR(bufio.NewReader(bytes.NewReader(data)))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupported
		}
		return nil, err
	}
	return img, nil
}

func downsample(src image.Image, width int) *image.RGBA {
	sb := src.Bounds()
	if sb.Dx() <= width {
		dst := image.NewRGBA(image.Rect(0, 0, sb.Dx(), sb.Dy()))
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
		return dst
	}
	height := max(1, sb.Dy()*width/sb.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
	return dst
}

func average(img *image.RGBA) [3]float64 {
	var sum [3]float64
	b := img.Bounds()
	n := float64(b.Dx() * b.Dy())
	if n == 0 {
		return sum
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			sum[0] += SRGBToLinear(c.R)
			sum[1] += SRGBToLinear(c.G)
			sum[2] += SRGBToLinear(c.B)
		}
	}
	return [3]float64{sum[0] / n, sum[1] / n, sum[2] / n}
}
