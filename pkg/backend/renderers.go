package backend

import (
	"sync"

	"github.com/taigrr/showroom/pkg/render"
)

// rasterRenderer draws synchronously on the caller's goroutine.
type rasterRenderer struct {
	raster   *render.Rasterizer
	disposed bool
}

// NewRaster creates the raster fallback renderer.
func NewRaster(width, height int) Renderer {
	return &rasterRenderer{raster: render.NewRasterizer(render.NewFramebuffer(width, height))}
}

func (r *rasterRenderer) Kind() Kind { return RasterFallback }

func (r *rasterRenderer) Submit(f *render.Frame) <-chan error {
	done := make(chan error, 1)
	if r.disposed {
		done <- ErrDisposed
		return done
	}
	r.raster.Render(f)
	done <- nil
	return done
}

func (r *rasterRenderer) Framebuffer() *render.Framebuffer { return r.raster.Framebuffer() }

func (r *rasterRenderer) Resize(width, height int) {
	r.raster.Framebuffer().Resize(width, height)
	r.raster.Resize()
}

func (r *rasterRenderer) Dispose() { r.disposed = true }

// gpuRenderer owns an acquired GPU device and resolves submissions
// asynchronously on a worker goroutine.
type gpuRenderer struct {
	device Device
	raster *render.Rasterizer
	// draw runs on the worker goroutine.
	draw func(*render.Frame)

	mu       sync.Mutex
	busy     bool
	disposed bool
	wg       sync.WaitGroup
}

// NewGPU creates the GPU-compute renderer on an acquired device. The renderer
// takes ownership of dev.
func NewGPU(dev Device, width, height int) (Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, errInvalidSize
	}
	g := &gpuRenderer{
		device: dev,
		raster: render.NewRasterizer(render.NewFramebuffer(width, height)),
	}
	g.draw = g.raster.Render
	return g, nil
}

func (g *gpuRenderer) Kind() Kind { return GPUCompute }

func (g *gpuRenderer) Submit(f *render.Frame) <-chan error {
	done := make(chan error, 1)
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case g.disposed:
		done <- ErrDisposed
		return done
	case g.busy:
		done <- errOverlap
		return done
	}
	g.busy = true
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.draw(f)
		g.mu.Lock()
		g.busy = false
		g.mu.Unlock()
		done <- nil
	}()
	return done
}

func (g *gpuRenderer) Framebuffer() *render.Framebuffer { return g.raster.Framebuffer() }

func (g *gpuRenderer) Resize(width, height int) {
	g.raster.Framebuffer().Resize(width, height)
	g.raster.Resize()
}

// Dispose waits for an in-flight submission, then releases the device.
func (g *gpuRenderer) Dispose() {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return
	}
	g.disposed = true
	g.mu.Unlock()
	g.wg.Wait()
	g.device.Release()
}
