// Package surface runs a rendering surface: it owns the scene synchronizer and
// the renderer backend, answers messages from a control panel and paces
// frames.
//
// All scene and renderer state is confined to the goroutine running Run.
// Other goroutines talk to it through the message channel or the input
// methods (Orbit, Zoom, Resize), which post work to the loop.
package surface

import (
	"context"
	"errors"
	"image/color"
	"sync/atomic"
	"time"

	"github.com/taigrr/showroom/pkg/backend"
	"github.com/taigrr/showroom/pkg/logging"
	"github.com/taigrr/showroom/pkg/models"
	"github.com/taigrr/showroom/pkg/protocol"
	"github.com/taigrr/showroom/pkg/render"
	"github.com/taigrr/showroom/pkg/scene"
	"github.com/taigrr/showroom/pkg/settings"
	"github.com/taigrr/showroom/pkg/transport"
)

// DefaultFPS is the frame rate used when Options.FPS is unset.
const DefaultFPS = 30

// Options configures a Surface.
type Options struct {
	Mount   settings.Mount
	Channel transport.Channel
	Assets  scene.AssetLoader
	Envs    scene.EnvLoader
	Backend backend.Config
	FPS     int
	Clear   color.RGBA

	// Watch is a local file reloaded through LoadAsset whenever it changes.
	Watch string

	// Present is called on the loop after every completed frame. fb must not
	// be retained after it returns.
	Present func(fb *render.Framebuffer, st Status)
}

// Surface is a running rendering surface.
type Surface struct {
	opts     Options
	ch       transport.Channel
	sync     *scene.Synchronizer
	display  *backend.Display
	selector *backend.Selector

	actions chan func()

	submitted backend.Renderer
	inflight  <-chan error
	resize    *[2]int
	stats     Stats
	status    atomic.Pointer[Status]
	assetErr  string
}

// New creates a surface. Nothing is loaded or rendered until Run.
func New(ctx context.Context, opts Options) *Surface {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Clear == (color.RGBA{}) {
		opts.Clear = color.RGBA{32, 32, 40, 255}
	}
	s := &Surface{
		opts:    opts,
		ch:      opts.Channel,
		display: &backend.Display{},
		actions: make(chan func(), 32),
	}
	s.sync = scene.NewSynchronizer(ctx, opts.Mount.Settings, scene.Options{
		Assets:        opts.Assets,
		Envs:          opts.Envs,
		FPS:           opts.FPS,
		Clear:         opts.Clear,
		OnAssetError:  s.assetFailed,
		OnAssetLoaded: s.assetLoaded,
	})

	cfg := opts.Backend
	notify := cfg.Notify
	cfg.Notify = func(r protocol.Renderer) {
		s.send(r)
		if notify != nil {
			notify(r)
		}
	}
	s.selector = backend.NewSelector(s.display, cfg)
	s.status.Store(&Status{})
	return s
}

// Run starts loading, selects a renderer, announces readiness and serves
// messages and frames until ctx is done or the channel closes.
func (s *Surface) Run(ctx context.Context) error {
	log := logging.Logger()
	defer s.shutdown()

	// Loads start before probing so the fetches overlap it.
	s.sync.ApplyEnvironment(s.opts.Mount.Settings.EnvMapOrDefault())
	if s.opts.Mount.ModelURL != "" {
		s.sync.LoadAsset(s.opts.Mount.ModelURL, s.opts.Mount.Settings.Material)
	}

	// The probe runs off the loop; loads and input are served meanwhile.
	probed := make(chan probeResult, 1)
	go func() {
		dev, err := s.selector.Probe(ctx)
		probed <- probeResult{dev, err}
	}()
	defer func() {
		if probed != nil {
			go releaseProbe(probed)
		}
	}()

	var watchEvents <-chan string
	if s.opts.Watch != "" {
		w, err := newWatcher(s.opts.Watch)
		if err != nil {
			log.Warn("watch disabled", "path", s.opts.Watch, "err", err)
		} else {
			defer w.Close()
			watchEvents = w.Changes()
		}
	}

	ticker := time.NewTicker(time.Second / time.Duration(s.opts.FPS))
	defer ticker.Stop()

	// Messages wait in the channel until the renderer is chosen and ready
	// has been sent.
	var inbox <-chan protocol.Message
	for {
		select {
		case <-ctx.Done():
			return nil
		case res := <-probed:
			probed = nil
			s.selector.Resolve(res.dev, res.err)
			s.send(protocol.Ready{})
			if s.ch != nil {
				inbox = s.ch.Messages()
			}
		case m, ok := <-inbox:
			if !ok {
				return transport.ErrClosed
			}
			s.Handle(ctx, m)
		case fn := <-s.sync.Completions():
			fn()
		case fn := <-s.actions:
			fn()
		case path := <-watchEvents:
			log.Info("model changed, reloading", "path", path)
			s.sync.LoadAsset(s.sync.AssetSource(), s.sync.Material())
		case err := <-s.inflight:
			s.finishFrame(err)
		case <-ticker.C:
			s.frame()
		}
	}
}

type probeResult struct {
	dev backend.Device
	err error
}

// releaseProbe frees the device of a probe nobody will resolve.
func releaseProbe(probed <-chan probeResult) {
	if r := <-probed; r.dev != nil {
		r.dev.Release()
	}
}

// Handle applies one message from the control panel.
func (s *Surface) Handle(ctx context.Context, m protocol.Message) {
	log := logging.Logger()
	switch m := m.(type) {
	case protocol.CapturePosition:
		pose := s.sync.CapturePose()
		s.send(protocol.PositionCaptured{Position: pose.Position, Target: pose.Target})
	case protocol.CameraPosition:
		s.sync.ApplyCameraPose(m.Position, m.Target)
	case protocol.CameraFov:
		if _, err := s.sync.ApplyFov(m.Fov); err != nil {
			log.Debug("ignoring fov", "fov", m.Fov, "err", err)
		}
	case protocol.Material:
		n := s.sync.ApplyMaterial(m.Material)
		log.Debug("material applied", "mutations", n)
	case protocol.Lighting:
		s.sync.ApplyLighting(m.Lighting)
	case protocol.EnvMap:
		s.sync.ApplyEnvironment(m.Path)
	case protocol.SelectRenderer:
		s.waitFrame()
		if _, err := s.selector.Reselect(ctx, m.Type); err != nil {
			log.Info("renderer selection refused", "requested", m.Type, "err", err)
		}
	default:
		log.Debug("ignoring message", "kind", m.Kind())
	}
}

// Orbit rotates the camera around its target.
func (s *Surface) Orbit(dAzimuth, dPolar float64) {
	s.post(func() { s.sync.Controls().Rotate(dAzimuth, dPolar) })
}

// Zoom moves the camera toward (positive) or away from the target.
func (s *Surface) Zoom(amount float64) {
	s.post(func() { s.sync.Controls().Dolly(amount) })
}

// Resize changes the output size. It is applied between frames.
func (s *Surface) Resize(width, height int) {
	s.post(func() {
		if s.inflight != nil {
			s.resize = &[2]int{width, height}
			return
		}
		s.selector.Resize(width, height)
	})
}

// Status returns the most recent status. It is safe for concurrent use.
func (s *Surface) Status() Status {
	return *s.status.Load()
}

func (s *Surface) post(fn func()) {
	select {
	case s.actions <- fn:
	default:
		logging.Logger().Debug("surface input queue full, dropping input")
	}
}

func (s *Surface) send(m protocol.Message) {
	if s.ch == nil {
		return
	}
	if err := s.ch.Send(m); err != nil {
		logging.Logger().Debug("surface message dropped", "kind", m.Kind(), "err", err)
	}
}

// frame submits the next frame unless the previous submission is still in
// flight.
func (s *Surface) frame() {
	s.sync.Tick()
	if s.inflight != nil {
		s.stats.Skipped++
		logging.Logger().Debug("frame skipped, submission in flight")
		s.publish()
		return
	}
	r := s.selector.Active()
	if r == nil || s.sync.State() != scene.StateRendering {
		s.publish()
		return
	}
	s.submitted = r
	s.inflight = r.Submit(s.sync.Frame())
}

func (s *Surface) finishFrame(err error) {
	r := s.submitted
	s.inflight, s.submitted = nil, nil
	defer s.applyResize()

	if r != s.selector.Active() {
		return
	}
	if err != nil {
		if !errors.Is(err, backend.ErrDisposed) {
			s.selector.Fail(err)
		}
		return
	}
	s.stats.Rendered++
	st := s.publish()
	if s.opts.Present != nil {
		s.opts.Present(r.Framebuffer(), st)
	}
}

// waitFrame blocks until an in-flight submission resolves.
func (s *Surface) waitFrame() {
	if s.inflight != nil {
		s.finishFrame(<-s.inflight)
	}
}

func (s *Surface) applyResize() {
	if s.resize == nil {
		return
	}
	s.selector.Resize(s.resize[0], s.resize[1])
	s.resize = nil
}

func (s *Surface) assetFailed(src string, err error) {
	s.assetErr = "failed to load " + src + ": " + err.Error()
	s.publish()
}

func (s *Surface) assetLoaded(*models.Asset) {
	s.assetErr = ""
	s.publish()
}

func (s *Surface) publish() Status {
	st := Status{
		State:  s.sync.State(),
		Source: s.sync.AssetSource(),
		Error:  s.assetErr,
		Stats:  s.stats,
		Pose:   s.sync.CapturePose(),
	}
	if r := s.selector.Active(); r != nil {
		st.Backend = r.Kind()
		st.HasBackend = true
	}
	st.GPUAvailable = s.selector.Available()
	s.status.Store(&st)
	return st
}

func (s *Surface) shutdown() {
	s.waitFrame()
	s.selector.Dispose()
	s.sync.Close()
}
