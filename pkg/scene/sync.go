package scene

import (
	"context"
	"errors"
	"image/color"
	"math"

	"github.com/taigrr/showroom/pkg/envmap"
	"github.com/taigrr/showroom/pkg/logging"
	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/models"
	"github.com/taigrr/showroom/pkg/render"
	"github.com/taigrr/showroom/pkg/settings"
)

// ErrInvalidFov is returned by ApplyFov for NaN.
var ErrInvalidFov = errors.New("scene: fov is not a number")

// State is the render loop state.
type State int

const (
	// StateLoadingEnvironment holds back asset insertion until the first
	// environment resolves.
	StateLoadingEnvironment State = iota
	// StateRendering applies every operation in place.
	StateRendering
)

func (s State) String() string {
	switch s {
	case StateLoadingEnvironment:
		return "loading-environment"
	case StateRendering:
		return "rendering"
	}
	return "unknown"
}

// AssetLoader fetches models.
type AssetLoader interface {
	Load(ctx context.Context, src string) (*models.Asset, error)
}

// EnvLoader fetches environment textures.
type EnvLoader interface {
	Load(ctx context.Context, path string) (*envmap.Texture, error)
}

// Pose is a camera position and orbit target.
type Pose struct {
	Position settings.Vec3
	Target   settings.Vec3
}

// Options configures a Synchronizer.
type Options struct {
	Assets AssetLoader
	Envs   EnvLoader
	FPS    int
	// Clear is the background color used until an environment loads.
	Clear color.RGBA
	// OnAssetError is called on the event loop when an asset fails to load.
	OnAssetError func(src string, err error)
	// OnAssetLoaded is called on the event loop when an asset is inserted.
	OnAssetLoaded func(a *models.Asset)
}

// Synchronizer applies settings to the live scene. All methods must be
// called from one goroutine, the surface's event loop. Asynchronous loads
// post their results to Completions, which the same loop drains.
type Synchronizer struct {
	opts     Options
	scene    Scene
	camera   *render.Camera
	controls *OrbitControls

	material settings.Material
	lighting settings.Lighting
	// explicitTarget disables auto-framing on asset load.
	explicitTarget bool

	state        State
	assetGen     uint64
	envGen       uint64
	pendingAsset *models.Asset
	assetSrc     string
	envPath      string
	loadErr      error
	inflight     int
	frameSeq     uint64

	completions chan func()
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewSynchronizer creates a synchronizer seeded with the mount settings. It
// starts in StateLoadingEnvironment; call ApplyEnvironment and LoadAsset to
// begin.
func NewSynchronizer(ctx context.Context, initial settings.Settings, opts Options) *Synchronizer {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	initial = initial.Normalize()
	target := initial.Camera.TargetOrDefault()

	cam := render.NewCamera(math3d.V3FromArray(initial.Camera.Position), initial.Camera.Fov)
	cam.SetTarget(math3d.V3FromArray(target))

	s := &Synchronizer{
		opts:           opts,
		camera:         cam,
		material:       initial.Material,
		explicitTarget: initial.Camera.Target != nil,
		completions:    make(chan func(), 16),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.controls = NewOrbitControls(cam, opts.FPS)
	s.ApplyLighting(initial.Lighting)
	return s
}

// Close cancels in-flight loads. Their results are discarded.
func (s *Synchronizer) Close() {
	s.cancel()
}

// Completions yields callbacks from finished loads. The event loop must run
// each one.
func (s *Synchronizer) Completions() <-chan func() {
	return s.completions
}

// Pending returns the number of loads whose results have not been applied.
func (s *Synchronizer) Pending() int {
	return s.inflight
}

// Settle runs completions until no loads are in flight.
func (s *Synchronizer) Settle(ctx context.Context) error {
	for s.inflight > 0 {
		select {
		case fn := <-s.completions:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// State returns the render loop state.
func (s *Synchronizer) State() State { return s.state }

// Scene returns the live scene. Callers on the event loop may read it.
func (s *Synchronizer) Scene() *Scene { return &s.scene }

// Camera returns the live camera.
func (s *Synchronizer) Camera() *render.Camera { return s.camera }

// Controls returns the orbit controls.
func (s *Synchronizer) Controls() *OrbitControls { return s.controls }

// LoadError returns the last asset load failure, cleared by a successful load.
func (s *Synchronizer) LoadError() error { return s.loadErr }

// AssetSource returns the source of the requested asset.
func (s *Synchronizer) AssetSource() string { return s.assetSrc }

// ApplyCameraPose snaps the camera to position and orbit target. A nil target
// keeps the current one.
func (s *Synchronizer) ApplyCameraPose(position settings.Vec3, target *settings.Vec3) {
	t := s.controls.Target
	if target != nil {
		t = math3d.V3FromArray(*target)
		s.explicitTarget = true
	}
	s.controls.SetPose(math3d.V3FromArray(position), t)
	s.camera.UpdateProjection()
}

// ApplyFov sets the field of view, clamped to the supported range. It reports
// whether the projection changed.
func (s *Synchronizer) ApplyFov(fov float64) (bool, error) {
	v, ok := settings.ClampFov(fov)
	if !ok {
		return false, ErrInvalidFov
	}
	if !s.camera.SetFov(v) {
		return false, nil
	}
	s.camera.UpdateProjection()
	return true, nil
}

// ApplyMaterial overwrites material factors on every mesh node, touching
// only fields that differ. It returns the number of field writes.
func (s *Synchronizer) ApplyMaterial(m settings.Material) int {
	s.material = m.Normalize()
	if s.scene.Asset == nil {
		return 0
	}
	return applyMaterial(s.scene.Asset, s.material)
}

func applyMaterial(a *models.Asset, m settings.Material) int {
	mutations := 0
	a.Walk(func(n *models.MeshNode) {
		if n.Material.SetClearcoatRoughness(m.ClearcoatRoughness) {
			mutations++
		}
		if n.Material.SetMetalness(m.Metalness) {
			mutations++
		}
		if n.Material.SetRoughness(m.Roughness) {
			mutations++
		}
	})
	return mutations
}

// ApplyLighting toggles the ambient light node. Intensity is retained while
// the light is off.
func (s *Synchronizer) ApplyLighting(l settings.Lighting) {
	l.Intensity = math.Max(0, math.Min(settings.MaxIntensity, l.Intensity))
	s.lighting = l
	switch {
	case l.AmbientLight && s.scene.Ambient == nil:
		s.scene.Ambient = &AmbientLight{Intensity: l.Intensity}
	case l.AmbientLight:
		if s.scene.Ambient.Intensity != l.Intensity {
			s.scene.Ambient.Intensity = l.Intensity
		}
	default:
		s.scene.Ambient = nil
	}
}

// Lighting returns the last applied lighting settings.
func (s *Synchronizer) Lighting() settings.Lighting { return s.lighting }

// Material returns the material applied to the current and future assets.
func (s *Synchronizer) Material() settings.Material { return s.material }

// EnvironmentPath returns the path of the most recently requested environment.
func (s *Synchronizer) EnvironmentPath() string { return s.envPath }

// ApplyEnvironment starts loading path. On success background and
// environment are replaced together; on failure the previous pair stays.
// Only the most recent request is applied.
func (s *Synchronizer) ApplyEnvironment(path string) {
	s.envGen++
	gen := s.envGen
	s.envPath = path
	s.inflight++

	go func() {
		tex, err := s.opts.Envs.Load(s.ctx, path)
		s.post(func() {
			s.inflight--
			s.finishEnvironment(gen, path, tex, err)
		})
	}()
}

func (s *Synchronizer) finishEnvironment(gen uint64, path string, tex *envmap.Texture, err error) {
	log := logging.Logger()
	if gen != s.envGen {
		log.Debug("discarding stale environment", "path", path)
		return
	}
	if err != nil {
		log.Warn("environment load failed", "path", path, "err", err)
	} else {
		s.scene.SetEnvironment(tex)
		log.Info("environment loaded", "path", path)
	}
	if s.state == StateLoadingEnvironment {
		s.state = StateRendering
		if s.pendingAsset != nil {
			a := s.pendingAsset
			s.pendingAsset = nil
			s.install(a)
		}
	}
}

// LoadAsset replaces the current asset with the one at src, applying m to
// every mesh before it becomes visible. While the first environment is
// loading the fetched asset is held back. On failure the previous asset
// stays and LoadError reports the cause.
func (s *Synchronizer) LoadAsset(src string, m settings.Material) {
	s.assetGen++
	gen := s.assetGen
	s.assetSrc = src
	// A held-back asset is superseded by this request.
	s.pendingAsset = nil
	s.material = m.Normalize()
	s.inflight++

	go func() {
		a, err := s.opts.Assets.Load(s.ctx, src)
		s.post(func() {
			s.inflight--
			s.finishAsset(gen, src, a, err)
		})
	}()
}

func (s *Synchronizer) finishAsset(gen uint64, src string, a *models.Asset, err error) {
	log := logging.Logger()
	if gen != s.assetGen {
		log.Debug("discarding stale asset", "src", src)
		return
	}
	if err != nil {
		s.loadErr = err
		log.Error("asset load failed", "src", src, "err", err)
		if s.opts.OnAssetError != nil {
			s.opts.OnAssetError(src, err)
		}
		return
	}
	if s.state == StateLoadingEnvironment {
		s.pendingAsset = a
		return
	}
	s.install(a)
}

func (s *Synchronizer) install(a *models.Asset) {
	applyMaterial(a, s.material)
	s.scene.Asset = a
	s.loadErr = nil
	s.fitClipPlanes(a)
	if !s.explicitTarget {
		s.autoFrame(a)
	}
	logging.Logger().Info("asset loaded", "src", a.Source, "nodes", len(a.Nodes), "triangles", a.TriangleCount())
	if s.opts.OnAssetLoaded != nil {
		s.opts.OnAssetLoaded(a)
	}
}

// autoFrameDirection is the diagonal the camera is placed along when
// framing an asset.
var autoFrameDirection = math3d.V3(2, 0.5, 2).Normalize()

// autoFrame looks at the center of the asset's bounds from a distance
// proportional to their diagonal.
func (s *Synchronizer) autoFrame(a *models.Asset) {
	b := a.Bounds()
	if b.IsEmpty() {
		s.controls.SetPose(s.camera.Position, math3d.Vec3{})
		return
	}
	center := b.Center()
	diag := b.Size().Len()
	if diag == 0 {
		diag = 1
	}
	s.controls.SetPose(center.Add(autoFrameDirection.Scale(diag*1.5)), center)
}

func (s *Synchronizer) fitClipPlanes(a *models.Asset) {
	diag := a.Bounds().Size().Len()
	if diag <= 0 || math.IsInf(diag, 0) {
		return
	}
	s.camera.SetClipPlanes(diag/1000, diag*100)
}

// CapturePose returns the live camera position and orbit target verbatim.
func (s *Synchronizer) CapturePose() Pose {
	return Pose{
		Position: s.camera.Position.Array(),
		Target:   s.controls.Target.Array(),
	}
}

// Tick advances damped controls by one frame.
func (s *Synchronizer) Tick() bool {
	return s.controls.Update()
}

// Frame snapshots the scene for rendering. Materials are copied so the frame
// can be drawn off the event loop.
func (s *Synchronizer) Frame() *render.Frame {
	s.frameSeq++
	f := &render.Frame{
		Seq:    s.frameSeq,
		Camera: *s.camera,
		Clear:  s.opts.Clear,
	}
	f.Lighting.Env = s.scene.Environment
	if s.scene.Ambient != nil {
		f.Lighting.Ambient = s.scene.Ambient.Intensity
	}
	if s.scene.Asset != nil {
		copies := make(map[*models.Material]*models.Material)
		for _, n := range s.scene.Asset.Nodes {
			m, ok := copies[n.Material]
			if !ok {
				cp := *n.Material
				m = &cp
				copies[n.Material] = m
			}
			node := *n
			node.Material = m
			f.Nodes = append(f.Nodes, &node)
		}
	}
	return f
}

func (s *Synchronizer) post(fn func()) {
	select {
	case s.completions <- fn:
	case <-s.ctx.Done():
	}
}
