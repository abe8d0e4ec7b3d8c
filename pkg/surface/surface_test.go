package surface

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/showroom/pkg/backend"
	"github.com/taigrr/showroom/pkg/envmap"
	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/models"
	"github.com/taigrr/showroom/pkg/protocol"
	"github.com/taigrr/showroom/pkg/render"
	"github.com/taigrr/showroom/pkg/scene"
	"github.com/taigrr/showroom/pkg/settings"
	"github.com/taigrr/showroom/pkg/transport"
)

var errMissing = errors.New("missing")

type boxAssets struct{}

func (boxAssets) Load(_ context.Context, src string) (*models.Asset, error) {
	if src != "box.glb" {
		return nil, errMissing
	}
	a, err := models.FromDocument(models.BoxDocument(math3d.V3(-1, -1, -1), math3d.V3(1, 1, 1), 0, 0.5))
	if err != nil {
		return nil, err
	}
	a.Source = src
	return a, nil
}

type blankEnvs struct{}

func (blankEnvs) Load(_ context.Context, path string) (*envmap.Texture, error) {
	return &envmap.Texture{Path: path, Image: image.NewRGBA(image.Rect(0, 0, 4, 2))}, nil
}

type nopDevice struct{}

func (nopDevice) Name() string { return "nop" }
func (nopDevice) Release()     {}

func noGPU() backend.Prober {
	return backend.ProberFunc(func(context.Context) (backend.Device, error) {
		return nil, backend.ErrNoAdapter
	})
}

func mount(model string) settings.Mount {
	s := settings.Default()
	s.Camera.Target = nil
	return settings.Mount{ModelURL: model, Settings: s}
}

func start(t *testing.T, opts Options) (transport.Channel, *Surface) {
	t.Helper()
	host, remote := transport.Pipe()
	opts.Channel = remote
	if opts.Assets == nil {
		opts.Assets = boxAssets{}
	}
	if opts.Envs == nil {
		opts.Envs = blankEnvs{}
	}
	if opts.Backend.Prober == nil {
		opts.Backend.Prober = noGPU()
	}
	opts.Backend.Width, opts.Backend.Height = 16, 12
	opts.FPS = 100

	ctx, cancel := context.WithCancel(t.Context())
	s := New(ctx, opts)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		host.Close()
	})
	return host, s
}

func recv(t *testing.T, ch transport.Channel, kind protocol.Kind) protocol.Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case m := <-ch.Messages():
			if m.Kind() == kind {
				return m
			}
		case <-timeout:
			t.Fatalf("no %s message", kind)
			return nil
		}
	}
}

func TestStartupNotices(t *testing.T) {
	host, _ := start(t, Options{Mount: mount("box.glb")})

	first := <-host.Messages()
	r, ok := first.(protocol.Renderer)
	require.True(t, ok, "first message is %T", first)
	assert.Equal(t, protocol.RendererWebGL, r.Type)
	require.NotNil(t, r.WebGPUAvailable)
	assert.False(t, *r.WebGPUAvailable)

	assert.Equal(t, protocol.KindReady, (<-host.Messages()).Kind())
}

func TestLoadsProceedDuringProbe(t *testing.T) {
	gate := make(chan struct{})
	slow := backend.ProberFunc(func(ctx context.Context) (backend.Device, error) {
		select {
		case <-gate:
			return nopDevice{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	host, s := start(t, Options{Mount: mount("box.glb"), Backend: backend.Config{Prober: slow}})

	require.Eventually(t, func() bool {
		st := s.Status()
		return st.State == scene.StateRendering && st.Source == "box.glb"
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, s.Status().HasBackend)
	select {
	case m := <-host.Messages():
		t.Fatalf("%s sent before the probe finished", m.Kind())
	default:
	}

	close(gate)
	r := recv(t, host, protocol.KindRenderer).(protocol.Renderer)
	assert.Equal(t, protocol.RendererWebGPU, r.Type)
	recv(t, host, protocol.KindReady)
}

func TestCaptureRoundTrip(t *testing.T) {
	host, _ := start(t, Options{Mount: mount("box.glb")})
	recv(t, host, protocol.KindReady)

	pos := settings.Vec3{1.5, 2.25, -3.125}
	target := settings.Vec3{0.1, 0.2, 0.3}
	require.NoError(t, host.Send(protocol.CameraPosition{Position: pos, Target: &target}))
	require.NoError(t, host.Send(protocol.CapturePosition{}))

	got := recv(t, host, protocol.KindPositionCaptured).(protocol.PositionCaptured)
	assert.Equal(t, pos, got.Position)
	assert.Equal(t, target, got.Target)
}

func TestAutoFrameCapture(t *testing.T) {
	host, s := start(t, Options{Mount: mount("box.glb")})
	recv(t, host, protocol.KindReady)
	require.Eventually(t, func() bool { return s.Status().Stats.Rendered > 0 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, host.Send(protocol.CapturePosition{}))
	got := recv(t, host, protocol.KindPositionCaptured).(protocol.PositionCaptured)
	assert.Equal(t, settings.Vec3{0, 0, 0}, got.Target)
}

func TestPresentsFrames(t *testing.T) {
	frames := make(chan Status, 64)
	start(t, Options{
		Mount: mount("box.glb"),
		Present: func(fb *render.Framebuffer, st Status) {
			select {
			case frames <- st:
			default:
			}
		},
	})

	select {
	case st := <-frames:
		assert.Equal(t, scene.StateRendering, st.State)
		assert.Equal(t, backend.RasterFallback, st.Backend)
		assert.Equal(t, "box.glb", st.Source)
		assert.NotZero(t, st.Stats.Rendered)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame presented")
	}
}

// gatedRenderer is a GPU renderer whose submissions resolve only once the
// gate opens.
type gatedRenderer struct {
	fb   *render.Framebuffer
	gate chan struct{}
	once sync.Once

	mu          sync.Mutex
	inflight    int
	maxInflight int
	submits     int
}

func (g *gatedRenderer) Kind() backend.Kind { return backend.GPUCompute }

func (g *gatedRenderer) Submit(*render.Frame) <-chan error {
	g.mu.Lock()
	g.submits++
	g.inflight++
	g.maxInflight = max(g.maxInflight, g.inflight)
	g.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		<-g.gate
		g.mu.Lock()
		g.inflight--
		g.mu.Unlock()
		done <- nil
	}()
	return done
}

func (g *gatedRenderer) Framebuffer() *render.Framebuffer { return g.fb }
func (g *gatedRenderer) Resize(int, int)                  {}
func (g *gatedRenderer) Dispose()                         { g.open() }
func (g *gatedRenderer) open()                            { g.once.Do(func() { close(g.gate) }) }

func (g *gatedRenderer) counts() (submits, maxInflight int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submits, g.maxInflight
}

func TestGPUSubmissionsNeverOverlap(t *testing.T) {
	gpu := &gatedRenderer{fb: render.NewFramebuffer(16, 12), gate: make(chan struct{})}
	host, s := start(t, Options{
		Mount: mount("box.glb"),
		Backend: backend.Config{
			Prober: backend.ProberFunc(func(context.Context) (backend.Device, error) { return nopDevice{}, nil }),
			NewGPU: func(backend.Device, int, int) (backend.Renderer, error) { return gpu, nil },
		},
	})
	// Runs before the surface is stopped, so shutdown never waits on the gate.
	t.Cleanup(gpu.open)
	r := recv(t, host, protocol.KindRenderer).(protocol.Renderer)
	require.Equal(t, protocol.RendererWebGPU, r.Type)
	recv(t, host, protocol.KindReady)

	require.Eventually(t, func() bool { return s.Status().Stats.Skipped >= 3 }, 2*time.Second, 5*time.Millisecond)
	submits, _ := gpu.counts()
	assert.Equal(t, 1, submits, "frames submitted while one was in flight")

	gpu.open()
	require.Eventually(t, func() bool { return s.Status().Stats.Rendered >= 3 }, 2*time.Second, 5*time.Millisecond)

	_, maxInflight := gpu.counts()
	assert.Equal(t, 1, maxInflight)
	st := s.Status()
	assert.Equal(t, backend.GPUCompute, st.Backend)
	assert.True(t, st.GPUAvailable)
drain:
	for {
		select {
		case m := <-host.Messages():
			assert.NotEqual(t, protocol.KindRenderer, m.Kind(), "unexpected failover notice")
		default:
			break drain
		}
	}
}

func TestAssetErrorShownInStatus(t *testing.T) {
	_, s := start(t, Options{Mount: mount("missing.glb")})
	require.Eventually(t, func() bool { return s.Status().Error != "" }, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, s.Status().String(), "missing.glb")
}

func TestSelectRenderer(t *testing.T) {
	gpu := backend.ProberFunc(func(context.Context) (backend.Device, error) { return nopDevice{}, nil })
	host, s := start(t, Options{Mount: mount("box.glb"), Backend: backend.Config{Prober: gpu}})

	r := recv(t, host, protocol.KindRenderer).(protocol.Renderer)
	assert.Equal(t, protocol.RendererWebGPU, r.Type)
	assert.True(t, r.Available())
	recv(t, host, protocol.KindReady)

	require.NoError(t, host.Send(protocol.SelectRenderer{Type: protocol.RendererWebGL}))
	r = recv(t, host, protocol.KindRenderer).(protocol.Renderer)
	assert.Equal(t, protocol.RendererWebGL, r.Type)
	assert.True(t, r.Available())

	require.Eventually(t, func() bool {
		st := s.Status()
		return st.HasBackend && st.Backend == backend.RasterFallback
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSelectUnavailableRenderer(t *testing.T) {
	host, _ := start(t, Options{Mount: mount("box.glb")})
	recv(t, host, protocol.KindReady)

	require.NoError(t, host.Send(protocol.SelectRenderer{Type: protocol.RendererWebGPU}))
	r := recv(t, host, protocol.KindRenderer).(protocol.Renderer)
	assert.Equal(t, protocol.RendererWebGL, r.Type)
	assert.False(t, r.Available())
}

func TestSnapshot(t *testing.T) {
	m := mount("box.glb")
	m.Settings.Material = settings.Material{Metalness: 0, Roughness: 0.5}
	m.Settings.Lighting = settings.Lighting{AmbientLight: true, Intensity: 1}

	fb, err := Snapshot(t.Context(), Options{Mount: m, Assets: boxAssets{}, Envs: blankEnvs{}}, 16, 12)
	require.NoError(t, err)
	assert.Equal(t, 16, fb.Width)
	assert.Equal(t, 12, fb.Height)
	assert.Greater(t, fb.GetPixel(8, 6).R, uint8(100))
	assert.Equal(t, uint8(0), fb.GetPixel(0, 0).R)

	_, err = Snapshot(t.Context(), Options{Mount: mount("missing.glb"), Assets: boxAssets{}, Envs: blankEnvs{}}, 16, 12)
	assert.ErrorIs(t, err, errMissing)
}

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.glb")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w, err := newWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.glb"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	select {
	case got := <-w.Changes():
		assert.Equal(t, path, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "loading environment...", Status{}.String())
	st := Status{State: scene.StateRendering, HasBackend: true, Backend: backend.GPUCompute, Stats: Stats{Rendered: 3, Skipped: 1}}
	assert.Equal(t, "gpu-compute | frames 3 | skipped 1", st.String())
	assert.Equal(t, "boom", Status{Error: "boom"}.String())
}
