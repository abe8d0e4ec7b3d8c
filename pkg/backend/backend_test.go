package backend

import (
	"context"
	"errors"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/protocol"
	"github.com/taigrr/showroom/pkg/render"
)

type fakeDevice struct {
	releases atomic.Int32
}

func (d *fakeDevice) Name() string { return "fake" }
func (d *fakeDevice) Release()     { d.releases.Add(1) }

func succeed(dev *fakeDevice) Prober {
	return ProberFunc(func(context.Context) (Device, error) { return dev, nil })
}

func fail(err error) Prober {
	return ProberFunc(func(context.Context) (Device, error) { return nil, err })
}

type notices struct {
	got []protocol.Renderer
}

func (n *notices) record(r protocol.Renderer) { n.got = append(n.got, r) }

func (n *notices) last(t *testing.T) protocol.Renderer {
	t.Helper()
	require.NotEmpty(t, n.got)
	return n.got[len(n.got)-1]
}

func testFrame() *render.Frame {
	return &render.Frame{
		Camera: *render.NewCamera(math3d.V3(3, 3, 3), 75),
		Clear:  color.RGBA{10, 20, 30, 255},
	}
}

func TestSelectGPU(t *testing.T) {
	dev := &fakeDevice{}
	n := &notices{}
	d := &Display{}
	s := NewSelector(d, Config{Prober: succeed(dev), Width: 8, Height: 6, Notify: n.record})

	r := s.Select(context.Background())
	assert.Equal(t, GPUCompute, r.Kind())
	assert.Same(t, r, d.Attached())
	assert.Equal(t, 1, d.Attaches())
	require.Len(t, n.got, 1)
	assert.Equal(t, protocol.RendererWebGPU, n.got[0].Type)
	assert.True(t, n.got[0].Available())

	require.NoError(t, <-r.Submit(testFrame()))
	assert.Equal(t, color.RGBA{10, 20, 30, 255}, r.Framebuffer().GetPixel(0, 0))

	s.Dispose()
	assert.Nil(t, d.Attached())
	assert.EqualValues(t, 1, dev.releases.Load())
}

func TestSelectFallbackOnProbeFailure(t *testing.T) {
	n := &notices{}
	d := &Display{}
	s := NewSelector(d, Config{Prober: fail(ErrNoAdapter), Notify: n.record})

	r := s.Select(context.Background())
	assert.Equal(t, RasterFallback, r.Kind())
	require.Len(t, n.got, 1)
	assert.Equal(t, protocol.RendererWebGL, n.got[0].Type)
	require.NotNil(t, n.got[0].WebGPUAvailable)
	assert.False(t, *n.got[0].WebGPUAvailable)
	assert.False(t, s.Available())
}

func TestSelectNilProber(t *testing.T) {
	s := NewSelector(&Display{}, Config{})
	assert.Equal(t, RasterFallback, s.Select(context.Background()).Kind())
	assert.False(t, s.Available())
}

func TestSelectProbeTimeoutReleasesLateDevice(t *testing.T) {
	dev := &fakeDevice{}
	release := make(chan struct{})
	prober := ProberFunc(func(context.Context) (Device, error) {
		<-release
		return dev, nil
	})
	n := &notices{}
	s := NewSelector(&Display{}, Config{Prober: prober, Timeout: 10 * time.Millisecond, Notify: n.record})

	r := s.Select(context.Background())
	assert.Equal(t, RasterFallback, r.Kind())
	assert.False(t, n.last(t).Available())

	close(release)
	assert.Eventually(t, func() bool { return dev.releases.Load() == 1 }, time.Second, time.Millisecond)
}

func TestSelectConstructionFailure(t *testing.T) {
	dev := &fakeDevice{}
	n := &notices{}
	s := NewSelector(&Display{}, Config{
		Prober: succeed(dev),
		NewGPU: func(Device, int, int) (Renderer, error) { return nil, errors.New("no pipeline") },
		Notify: n.record,
	})

	r := s.Select(context.Background())
	assert.Equal(t, RasterFallback, r.Kind())
	assert.EqualValues(t, 1, dev.releases.Load())
	require.Len(t, n.got, 1)
	assert.False(t, n.got[0].Available())
}

func TestSelectPreferRaster(t *testing.T) {
	dev := &fakeDevice{}
	s := NewSelector(&Display{}, Config{Prober: succeed(dev), Prefer: protocol.RendererWebGL})

	assert.Equal(t, RasterFallback, s.Select(context.Background()).Kind())
	assert.True(t, s.Available())
	assert.EqualValues(t, 1, dev.releases.Load())
}

func TestFailSwitchesOnce(t *testing.T) {
	dev := &fakeDevice{}
	n := &notices{}
	d := &Display{}
	s := NewSelector(d, Config{Prober: succeed(dev), Notify: n.record})
	s.Select(context.Background())

	r := s.Fail(errors.New("device lost"))
	assert.Equal(t, RasterFallback, r.Kind())
	assert.Same(t, r, d.Attached())
	assert.EqualValues(t, 1, dev.releases.Load())
	assert.Equal(t, 2, d.Attaches())
	require.Len(t, n.got, 2)
	assert.Equal(t, protocol.RendererWebGL, n.got[1].Type)
	assert.False(t, n.got[1].Available())

	assert.Same(t, r, s.Fail(errors.New("again")))
	assert.Len(t, n.got, 2)

	_, err := s.Reselect(context.Background(), protocol.RendererWebGPU)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, RasterFallback, s.Active().Kind())
}

func TestFailIgnoredOnRaster(t *testing.T) {
	n := &notices{}
	s := NewSelector(&Display{}, Config{Prober: fail(ErrNoAdapter), Notify: n.record})
	r := s.Select(context.Background())

	assert.Same(t, r, s.Fail(errors.New("boom")))
	assert.Len(t, n.got, 1)
}

func TestReselect(t *testing.T) {
	var probes atomic.Int32
	devs := []*fakeDevice{{}, {}}
	prober := ProberFunc(func(context.Context) (Device, error) {
		i := probes.Add(1) - 1
		return devs[i], nil
	})
	n := &notices{}
	d := &Display{}
	s := NewSelector(d, Config{Prober: prober, Notify: n.record})
	s.Select(context.Background())

	r, err := s.Reselect(context.Background(), protocol.RendererWebGL)
	require.NoError(t, err)
	assert.Equal(t, RasterFallback, r.Kind())
	assert.EqualValues(t, 1, devs[0].releases.Load())
	assert.Equal(t, protocol.RendererWebGL, n.last(t).Type)
	assert.True(t, n.last(t).Available())

	r, err = s.Reselect(context.Background(), protocol.RendererWebGPU)
	require.NoError(t, err)
	assert.Equal(t, GPUCompute, r.Kind())
	assert.Same(t, r, d.Attached())
	assert.EqualValues(t, 2, probes.Load())
	assert.Len(t, n.got, 3)

	r2, err := s.Reselect(context.Background(), protocol.RendererWebGPU)
	require.NoError(t, err)
	assert.Same(t, r, r2)
	assert.EqualValues(t, 2, probes.Load())
}

func TestReselectUnavailableResendsNotice(t *testing.T) {
	n := &notices{}
	s := NewSelector(&Display{}, Config{Prober: fail(ErrNoAdapter), Notify: n.record})
	s.Select(context.Background())

	_, err := s.Reselect(context.Background(), protocol.RendererWebGPU)
	assert.ErrorIs(t, err, ErrUnavailable)
	require.Len(t, n.got, 2)
	assert.Equal(t, n.got[0], n.got[1])
}

func TestDisplaySingleAttach(t *testing.T) {
	d := &Display{}
	a, b := NewRaster(2, 2), NewRaster(2, 2)
	require.NoError(t, d.Attach(a))
	assert.ErrorIs(t, d.Attach(b), ErrAlreadyAttached)
	d.Detach(b)
	assert.Same(t, a, d.Attached())
	d.Detach(a)
	require.NoError(t, d.Attach(b))
	assert.Equal(t, 2, d.Attaches())
}

func TestRendererDispose(t *testing.T) {
	dev := &fakeDevice{}
	g, err := NewGPU(dev, 4, 4)
	require.NoError(t, err)
	require.NoError(t, <-g.Submit(testFrame()))
	g.Dispose()
	g.Dispose()
	assert.EqualValues(t, 1, dev.releases.Load())
	assert.ErrorIs(t, <-g.Submit(testFrame()), ErrDisposed)

	r := NewRaster(4, 4)
	r.Dispose()
	assert.ErrorIs(t, <-r.Submit(testFrame()), ErrDisposed)

	_, err = NewGPU(dev, 0, 4)
	assert.Error(t, err)
}

func TestGPUSubmitRefusesOverlap(t *testing.T) {
	dev := &fakeDevice{}
	r, err := NewGPU(dev, 4, 4)
	require.NoError(t, err)
	g := r.(*gpuRenderer)

	started := make(chan struct{})
	gate := make(chan struct{})
	draw := g.draw
	g.draw = func(f *render.Frame) {
		close(started)
		<-gate
		draw(f)
	}

	first := g.Submit(testFrame())
	<-started
	assert.ErrorIs(t, <-g.Submit(testFrame()), errOverlap)

	close(gate)
	require.NoError(t, <-first)
	g.draw = draw
	require.NoError(t, <-g.Submit(testFrame()))
	g.Dispose()
	assert.EqualValues(t, 1, dev.releases.Load())
}

func TestHALProberNoop(t *testing.T) {
	dev, err := HALProber{Backend: noop.API{}}.Probe(context.Background())
	require.NoError(t, err)
	require.NotNil(t, dev)
	dev.Release()
	dev.Release()
}

func TestKindMapping(t *testing.T) {
	assert.Equal(t, protocol.RendererWebGPU, GPUCompute.RendererType())
	assert.Equal(t, protocol.RendererWebGL, RasterFallback.RendererType())
	assert.Equal(t, GPUCompute, KindOf(protocol.RendererWebGPU))
	assert.Equal(t, RasterFallback, KindOf(protocol.RendererWebGL))
	assert.Equal(t, "gpu-compute", GPUCompute.String())
}
