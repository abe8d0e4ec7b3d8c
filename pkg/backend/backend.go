// Package backend selects between the GPU-compute renderer and the raster
// fallback, owns the single renderer attached to the display, and fails
// over once when the GPU path breaks.
package backend

import (
	"context"
	"errors"

	"github.com/taigrr/showroom/pkg/protocol"
	"github.com/taigrr/showroom/pkg/render"
)

var (
	// ErrNoAdapter is returned by probers when no usable GPU adapter exists.
	ErrNoAdapter = errors.New("backend: no gpu adapter")
	// ErrProbeTimeout is returned when a probe does not finish in time.
	ErrProbeTimeout = errors.New("backend: gpu probe timed out")
	// ErrAlreadyAttached is returned when a second renderer is attached to a
	// display.
	ErrAlreadyAttached = errors.New("backend: display already has a renderer")
	// ErrUnavailable is returned when the GPU backend is requested but the
	// probe reported it unavailable.
	ErrUnavailable = errors.New("backend: gpu compute unavailable")
	// ErrDisposed is returned by Submit on a disposed renderer.
	ErrDisposed = errors.New("backend: renderer disposed")
)

// Kind is a renderer backend.
type Kind int

const (
	GPUCompute Kind = iota
	RasterFallback
)

func (k Kind) String() string {
	switch k {
	case GPUCompute:
		return "gpu-compute"
	case RasterFallback:
		return "raster-fallback"
	}
	return "unknown"
}

// RendererType maps the backend to the name the host uses.
func (k Kind) RendererType() protocol.RendererType {
	if k == GPUCompute {
		return protocol.RendererWebGPU
	}
	return protocol.RendererWebGL
}

// KindOf maps a host renderer name to a backend.
func KindOf(t protocol.RendererType) Kind {
	if t == protocol.RendererWebGPU {
		return GPUCompute
	}
	return RasterFallback
}

// Device is an acquired GPU device. Release frees it and must be safe to
// call more than once.
type Device interface {
	Name() string
	Release()
}

// Prober acquires a GPU device: instance, then adapter, then device. Each
// step may fail.
type Prober interface {
	Probe(ctx context.Context) (Device, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) (Device, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) (Device, error) { return f(ctx) }

// Renderer draws frames into its framebuffer.
type Renderer interface {
	Kind() Kind
	// Submit starts drawing f. The returned channel yields one value when the
	// submission resolves. Callers must not submit again before then.
	Submit(f *render.Frame) <-chan error
	// Framebuffer holds the last completed frame. Read it only while no
	// submission is in flight.
	Framebuffer() *render.Framebuffer
	// Resize changes the output size. Call only while no submission is in
	// flight.
	Resize(width, height int)
	// Dispose releases every resource held by the renderer.
	Dispose()
}
