// Package panel is the control panel model. It turns user edits into new
// settings snapshots, commits them through the bridge, applies captured
// poses and persists the result.
package panel

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/taigrr/showroom/pkg/bridge"
	"github.com/taigrr/showroom/pkg/logging"
	"github.com/taigrr/showroom/pkg/protocol"
	"github.com/taigrr/showroom/pkg/settings"
	"github.com/taigrr/showroom/pkg/store"
)

// ErrGPUUnavailable is returned when the GPU renderer is chosen while the
// surface reports it unavailable.
var ErrGPUUnavailable = errors.New("panel: gpu renderer unavailable")

// Field is an editable row.
type Field int

const (
	FieldFov Field = iota
	FieldMetalness
	FieldRoughness
	FieldClearcoat
	FieldAmbient
	FieldIntensity
	FieldEnvMap
	FieldRenderer
	numFields
)

var fieldNames = [...]string{
	FieldFov:       "fov",
	FieldMetalness: "metalness",
	FieldRoughness: "roughness",
	FieldClearcoat: "clearcoat",
	FieldAmbient:   "ambient",
	FieldIntensity: "intensity",
	FieldEnvMap:    "environment",
	FieldRenderer:  "renderer",
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return "unknown"
	}
	return fieldNames[f]
}

// Panel holds the edited settings. It is safe for concurrent use; bridge
// callbacks arrive on the bridge's goroutine.
type Panel struct {
	key    store.Key
	store  store.Store
	bridge *bridge.Bridge

	mu          sync.Mutex
	current     settings.Settings
	renderer    protocol.Renderer
	hasRenderer bool
	selected    Field
	status      string
	onChange    func()
}

// New creates a panel editing initial and registers for bridge callbacks.
func New(key store.Key, initial settings.Settings, b *bridge.Bridge, st store.Store) *Panel {
	p := &Panel{
		key:     key,
		store:   st,
		bridge:  b,
		current: initial.Normalize(),
	}
	b.OnPositionCaptured(p.positionCaptured)
	b.OnRendererChanged(p.rendererChanged)
	return p
}

// OnChange registers a callback run after every state change.
func (p *Panel) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Settings returns the current snapshot.
func (p *Panel) Settings() settings.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Clone()
}

// Renderer returns the last backend notice and whether one arrived.
func (p *Panel) Renderer() (protocol.Renderer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderer, p.hasRenderer
}

// Status returns the last status message.
func (p *Panel) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Selected returns the focused row.
func (p *Panel) Selected() Field {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// Move changes the focused row, wrapping around.
func (p *Panel) Move(delta int) {
	p.mu.Lock()
	p.selected = Field((int(p.selected) + delta%int(numFields) + int(numFields)) % int(numFields))
	p.mu.Unlock()
	p.changed()
}

// Adjust edits the focused row. Numeric rows step by delta units; toggles
// and lists advance on any nonzero delta.
func (p *Panel) Adjust(ctx context.Context, delta float64) error {
	if delta == 0 {
		return nil
	}
	field := p.Selected()
	if field == FieldRenderer {
		return p.ToggleRenderer()
	}
	p.update(func(s *settings.Settings) {
		switch field {
		case FieldFov:
			s.Camera.Fov = math.Round(s.Camera.Fov + 5*delta)
		case FieldMetalness:
			s.Material.Metalness = step(s.Material.Metalness, 0.05*delta)
		case FieldRoughness:
			s.Material.Roughness = step(s.Material.Roughness, 0.05*delta)
		case FieldClearcoat:
			s.Material.ClearcoatRoughness = step(s.Material.ClearcoatRoughness, 0.05*delta)
		case FieldAmbient:
			s.Lighting.AmbientLight = !s.Lighting.AmbientLight
		case FieldIntensity:
			s.Lighting.Intensity = step(s.Lighting.Intensity, 0.1*delta)
		case FieldEnvMap:
			s.EnvMapPath = settings.NextEnvMap(s.EnvMapOrDefault()).Path
		}
	})
	return nil
}

func step(v, d float64) float64 {
	return math.Round((v+d)*100) / 100
}

// Commit normalizes next, makes it current and sends the difference.
func (p *Panel) Commit(next settings.Settings) {
	p.update(func(s *settings.Settings) { *s = next.Clone() })
}

// update applies edit to a copy of the current settings and commits the
// result. Read, swap and send happen under p.mu, as does applying a capture.
func (p *Panel) update(edit func(s *settings.Settings)) {
	p.mu.Lock()
	prev := p.current
	next := prev.Clone()
	edit(&next)
	next = next.Normalize()
	p.current = next
	p.bridge.CommitSettingsChange(prev, next)
	p.mu.Unlock()

	p.changed()
}

// SetFov sets the field of view.
func (p *Panel) SetFov(fov float64) {
	p.update(func(s *settings.Settings) { s.Camera.Fov = fov })
}

// SetMaterial replaces the material.
func (p *Panel) SetMaterial(m settings.Material) {
	p.update(func(s *settings.Settings) { *s = s.WithMaterial(m) })
}

// SetLighting replaces the lighting.
func (p *Panel) SetLighting(l settings.Lighting) {
	p.update(func(s *settings.Settings) { *s = s.WithLighting(l) })
}

// SetEnvMap selects an environment by name or path.
func (p *Panel) SetEnvMap(key string) {
	path := key
	if e, ok := settings.LookupEnvMap(key); ok {
		path = e.Path
	}
	p.update(func(s *settings.Settings) { *s = s.WithEnvMap(path) })
}

// CapturePosition asks the surface for its live pose. The settings update
// when the answer arrives.
func (p *Panel) CapturePosition() error {
	if err := p.bridge.RequestCapturePosition(); err != nil {
		p.setStatus("capture failed: " + err.Error())
		return err
	}
	p.setStatus("capturing position...")
	return nil
}

func (p *Panel) positionCaptured(position, target settings.Vec3) {
	p.mu.Lock()
	cam := p.current.Camera
	cam.Position = position
	cam.Target = &target
	p.current = p.current.WithCamera(cam)
	p.status = "position captured"
	p.bridge.AdoptCamera(cam)
	p.mu.Unlock()

	p.changed()
}

func (p *Panel) rendererChanged(r protocol.Renderer) {
	p.mu.Lock()
	p.renderer, p.hasRenderer = r, true
	p.mu.Unlock()
	p.changed()
}

// GPUSelectable reports whether the GPU renderer may be chosen.
func (p *Panel) GPUSelectable() bool {
	r, ok := p.Renderer()
	return ok && r.Available()
}

// SelectRenderer asks the surface to switch backend.
func (p *Panel) SelectRenderer(t protocol.RendererType) error {
	if t == protocol.RendererWebGPU && !p.GPUSelectable() {
		p.setStatus("gpu renderer unavailable")
		return ErrGPUUnavailable
	}
	return p.bridge.SelectRenderer(t)
}

// ToggleRenderer switches to the other backend.
func (p *Panel) ToggleRenderer() error {
	r, _ := p.Renderer()
	if r.Type == protocol.RendererWebGPU {
		return p.SelectRenderer(protocol.RendererWebGL)
	}
	return p.SelectRenderer(protocol.RendererWebGPU)
}

// Save persists the current settings under the panel's key.
func (p *Panel) Save(ctx context.Context) error {
	s := p.Settings()
	if _, err := p.store.Upsert(ctx, p.key, store.PayloadFrom(s)); err != nil {
		logging.Logger().Error("save settings", "shop", p.key.Shop, "model", p.key.ModelURL, "err", err)
		p.setStatus("save failed: " + err.Error())
		return err
	}
	logging.Logger().Info("settings saved", "shop", p.key.Shop, "model", p.key.ModelURL)
	p.setStatus("saved")
	return nil
}

func (p *Panel) setStatus(s string) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
	p.changed()
}

func (p *Panel) changed() {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}
