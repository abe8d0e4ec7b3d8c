package backend

import (
	"context"
	"time"

	"github.com/taigrr/showroom/pkg/logging"
	"github.com/taigrr/showroom/pkg/protocol"
)

// DefaultProbeTimeout bounds GPU capability probing.
const DefaultProbeTimeout = 3 * time.Second

// Config configures a Selector.
type Config struct {
	Prober  Prober
	Timeout time.Duration
	// Prefer forces the raster backend when set to webgl. The GPU is still
	// probed so availability can be reported.
	Prefer protocol.RendererType
	Width  int
	Height int

	NewGPU    func(dev Device, width, height int) (Renderer, error)
	NewRaster func(width, height int) Renderer

	// Notify receives every backend-changed notice.
	Notify func(protocol.Renderer)
}

// Selector owns the active renderer. It is used from a single goroutine.
type Selector struct {
	cfg     Config
	display *Display

	active     Renderer
	available  bool
	failedOver bool
}

// NewSelector creates a selector that attaches renderers to display.
func NewSelector(display *Display, cfg Config) *Selector {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if cfg.NewGPU == nil {
		cfg.NewGPU = NewGPU
	}
	if cfg.NewRaster == nil {
		cfg.NewRaster = NewRaster
	}
	cfg.Width, cfg.Height = max(cfg.Width, 1), max(cfg.Height, 1)
	return &Selector{cfg: cfg, display: display}
}

// Active returns the attached renderer.
func (s *Selector) Active() Renderer { return s.active }

// Available reports whether the GPU backend may be selected.
func (s *Selector) Available() bool { return s.available }

// Notice returns the backend-changed message describing the current state.
func (s *Selector) Notice() protocol.Renderer {
	avail := s.available
	t := protocol.RendererWebGL
	if s.active != nil {
		t = s.active.Kind().RendererType()
	}
	return protocol.Renderer{Type: t, WebGPUAvailable: &avail}
}

// Select probes the GPU and attaches the best renderer. Probe and
// construction failures fall back to the raster renderer; they are reported
// only through the notice.
func (s *Selector) Select(ctx context.Context) Renderer {
	return s.Resolve(s.Probe(ctx))
}

// Probe runs the configured prober under the probe timeout. Unlike the other
// methods it may be called from any goroutine, so the owner can keep serving
// events while the GPU is acquired. A failed probe holds no device.
func (s *Selector) Probe(ctx context.Context) (Device, error) {
	return s.probe(ctx)
}

// Resolve attaches the renderer for a finished probe and sends the notice.
// It takes ownership of dev.
func (s *Selector) Resolve(dev Device, err error) Renderer {
	log := logging.Logger()

	s.available = err == nil
	if err != nil {
		log.Info("gpu probe failed, using raster fallback", "err", err)
		dev = nil
	}
	if dev != nil && s.cfg.Prefer == protocol.RendererWebGL {
		dev.Release()
		dev = nil
	}

	var r Renderer
	if dev != nil {
		r = s.construct(dev)
	}
	if r == nil {
		r = s.cfg.NewRaster(s.cfg.Width, s.cfg.Height)
	}
	s.install(r)
	log.Info("renderer selected", "backend", r.Kind(), "gpuAvailable", s.available)
	s.notify()
	return r
}

// Fail reports a runtime failure of the GPU renderer. The first failure
// switches to the raster renderer for good; later calls, or calls while the
// raster renderer is active, change nothing.
func (s *Selector) Fail(err error) Renderer {
	if s.active == nil || s.active.Kind() != GPUCompute || s.failedOver {
		return s.active
	}
	logging.Logger().Warn("gpu renderer failed, switching to raster fallback", "err", err)
	s.failedOver = true
	s.available = false
	s.install(s.cfg.NewRaster(s.cfg.Width, s.cfg.Height))
	s.notify()
	return s.active
}

// Reselect switches backend on explicit request. Requesting the GPU backend
// while it is unavailable returns ErrUnavailable and re-sends the current
// notice.
func (s *Selector) Reselect(ctx context.Context, t protocol.RendererType) (Renderer, error) {
	want := KindOf(t)
	if s.active != nil && s.active.Kind() == want {
		s.notify()
		return s.active, nil
	}

	if want == RasterFallback {
		s.install(s.cfg.NewRaster(s.cfg.Width, s.cfg.Height))
		s.notify()
		return s.active, nil
	}

	if !s.available {
		s.notify()
		return s.active, ErrUnavailable
	}
	dev, err := s.probe(ctx)
	if err != nil {
		s.available = false
		s.notify()
		return s.active, err
	}
	r := s.construct(dev)
	if r == nil {
		s.notify()
		return s.active, ErrUnavailable
	}
	s.install(r)
	s.notify()
	return r, nil
}

// Resize changes the output size of the active and future renderers.
func (s *Selector) Resize(width, height int) {
	s.cfg.Width, s.cfg.Height = max(width, 1), max(height, 1)
	if s.active != nil {
		s.active.Resize(s.cfg.Width, s.cfg.Height)
	}
}

// Dispose detaches and releases the active renderer.
func (s *Selector) Dispose() {
	if s.active == nil {
		return
	}
	s.display.Detach(s.active)
	s.active.Dispose()
	s.active = nil
}

func (s *Selector) construct(dev Device) Renderer {
	r, err := s.cfg.NewGPU(dev, s.cfg.Width, s.cfg.Height)
	if err != nil {
		dev.Release()
		s.available = false
		logging.Logger().Warn("gpu renderer construction failed", "err", err)
		return nil
	}
	return r
}

// install disposes the previous renderer before attaching r, so the display
// never holds two renderers and no device outlives its renderer.
func (s *Selector) install(r Renderer) {
	if s.active != nil {
		s.display.Detach(s.active)
		s.active.Dispose()
	}
	s.active = r
	if err := s.display.Attach(r); err != nil {
		logging.Logger().Error("attach renderer", "err", err)
	}
}

func (s *Selector) notify() {
	if s.cfg.Notify != nil {
		s.cfg.Notify(s.Notice())
	}
}

type probeResult struct {
	dev Device
	err error
}

func (s *Selector) probe(ctx context.Context) (Device, error) {
	if s.cfg.Prober == nil {
		return nil, ErrNoAdapter
	}
	pctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	ch := make(chan probeResult, 1)
	go func() {
		dev, err := s.cfg.Prober.Probe(pctx)
		ch <- probeResult{dev, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			if r.dev != nil {
				r.dev.Release()
			}
			return nil, r.err
		}
		return r.dev, nil
	case <-pctx.Done():
		// A probe that resolves late must not leak its device.
		go func() {
			if r := <-ch; r.dev != nil {
				logging.Logger().Debug("releasing late gpu device", "adapter", r.dev.Name())
				r.dev.Release()
			}
		}()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrProbeTimeout
	}
}
