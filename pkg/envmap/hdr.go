package envmap

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strings"
)

var errBadHDR = errors.New("envmap: malformed radiance file")

func isHDR(data []byte) bool {
	return bytes.HasPrefix(data, []byte("#?RADIANCE")) || bytes.HasPrefix(data, []byte("#?RGBE"))
}

// DecodeHDR decodes a Radiance RGBE image, tonemapping it to 8-bit sRGB.
// Only the standard -Y +X orientation is supported.
func DecodeHDR(r *bufio.Reader) (*image.RGBA, error) {
	if err := readHDRHeader(r); err != nil {
		return nil, err
	}
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read resolution: %w", err)
	}
	var w, h int
	if _, err := fmt.Sscanf(strings.TrimSpace(line), "-Y %d +X %d", &h, &w); err != nil {
		return nil, fmt.Errorf("%w: resolution %q", errBadHDR, strings.TrimSpace(line))
	}
	if w <= 0 || h <= 0 || w > 1<<15 || h > 1<<15 {
		return nil, fmt.Errorf("%w: size %dx%d", errBadHDR, w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scan := make([]byte, w*4)
	for y := range h {
		if err := readScanline(r, scan, w); err != nil {
			return nil, fmt.Errorf("scanline %d: %w", y, err)
		}
		for x := range w {
			img.SetRGBA(x, y, rgbeToRGBA(scan[x*4:x*4+4]))
		}
	}
	return img, nil
}

func readHDRHeader(r *bufio.Reader) error {
	format := ""
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "FORMAT="); ok {
			format = v
		}
	}
	if format != "" && format != "32-bit_rle_rgbe" {
		return fmt.Errorf("%w: format %s", errBadHDR, format)
	}
	return nil
}

// readScanline reads one scanline in either flat or new-style RLE encoding.
func readScanline(r *bufio.Reader, scan []byte, w int) error {
	head := make([]byte, 4)
	if _, err := io.ReadFull(r, head); err != nil {
		return err
	}
	if w < 8 || w > 0x7fff || head[0] != 2 || head[1] != 2 || head[2]&0x80 != 0 {
		copy(scan, head)
		_, err := io.ReadFull(r, scan[4:])
		return err
	}
	if int(head[2])<<8|int(head[3]) != w {
		return fmt.Errorf("%w: scanline width mismatch", errBadHDR)
	}

	// Components are stored as four separate runs.
	for c := range 4 {
		for x := 0; x < w; {
			n, err := r.ReadByte()
			if err != nil {
				return err
			}
			if n > 128 {
				count := int(n) - 128
				v, err := r.ReadByte()
				if err != nil {
					return err
				}
				if x+count > w {
					return fmt.Errorf("%w: run overflow", errBadHDR)
				}
				for range count {
					scan[x*4+c] = v
					x++
				}
				continue
			}
			count := int(n)
			if count == 0 || x+count > w {
				return fmt.Errorf("%w: bad literal run", errBadHDR)
			}
			for range count {
				v, err := r.ReadByte()
				if err != nil {
					return err
				}
				scan[x*4+c] = v
				x++
			}
		}
	}
	return nil
}

func rgbeToRGBA(p []byte) color.RGBA {
	if p[3] == 0 {
		return color.RGBA{A: 255}
	}
	f := math.Ldexp(1, int(p[3])-(128+8))
	return color.RGBA{
		R: LinearToSRGB(aces(float64(p[0]) * f)),
		G: LinearToSRGB(aces(float64(p[1]) * f)),
		B: LinearToSRGB(aces(float64(p[2]) * f)),
		A: 255,
	}
}

// aces is the Narkowicz fit of the ACES filmic curve.
func aces(x float64) float64 {
	v := (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
	return math.Max(0, math.Min(1, v))
}

// LinearToSRGB encodes a linear value in [0,1] as an 8-bit sRGB channel.
func LinearToSRGB(v float64) uint8 {
	v = math.Max(0, math.Min(1, v))
	if v <= 0.0031308 {
		v *= 12.92
	} else {
		v = 1.055*math.Pow(v, 1/2.4) - 0.055
	}
	return uint8(math.Round(v * 255))
}

// SRGBToLinear decodes an 8-bit sRGB channel to linear [0,1].
func SRGBToLinear(c uint8) float64 {
	v := float64(c) / 255
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}
