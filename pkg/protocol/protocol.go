// Package protocol defines the messages exchanged between a control panel and
// a rendering surface, and the JSON codec that validates them at the channel
// boundary.
//
// Every message is a concrete Go type implementing Message. Decode
// discriminates on the envelope's type (and action, for camera requests) and
// rejects unknown kinds and incomplete payloads instead of passing loosely
// shaped data through.
package protocol

import (
	"errors"

	"github.com/taigrr/showroom/pkg/settings"
)

var (
	// ErrUnknownKind is returned when an envelope names no known message.
	ErrUnknownKind = errors.New("protocol: unknown message kind")
	// ErrInvalidPayload is returned when a known kind carries a malformed or
	// incomplete payload.
	ErrInvalidPayload = errors.New("protocol: invalid payload")
)

// Kind identifies a message type.
type Kind string

const (
	KindCapturePosition  Kind = "camera/savePosition"
	KindPositionCaptured Kind = "camera/positionSaved"
	KindCameraPosition   Kind = "cameraPosition"
	KindCameraFov        Kind = "cameraFov"
	KindMaterial         Kind = "material"
	KindLighting         Kind = "lighting"
	KindEnvMap           Kind = "envMap"
	KindRenderer         Kind = "renderer"
	KindReady            Kind = "ready"
	KindSelectRenderer   Kind = "selectRenderer"
)

// RendererType names a backend as the host sees it.
type RendererType string

const (
	RendererWebGPU RendererType = "webgpu"
	RendererWebGL  RendererType = "webgl"
)

// Message is implemented by every message type.
type Message interface {
	Kind() Kind
}

// CapturePosition asks the surface for its current camera pose (host→surface).
type CapturePosition struct{}

// PositionCaptured answers CapturePosition with the live pose (surface→host).
type PositionCaptured struct {
	Position settings.Vec3
	Target   settings.Vec3
}

// CameraPosition pushes a pose (host→surface). A nil Target leaves the
// current orbit target in place.
type CameraPosition struct {
	Position settings.Vec3
	Target   *settings.Vec3
}

// CameraFov pushes a field of view in degrees (host→surface).
type CameraFov struct {
	Fov float64
}

// Material pushes material overrides (host→surface).
type Material struct {
	settings.Material
}

// Lighting pushes ambient light settings (host→surface).
type Lighting struct {
	settings.Lighting
}

// EnvMap requests an environment swap (host→surface).
type EnvMap struct {
	Path string
}

// Renderer announces the active backend (surface→host). WebGPUAvailable is
// nil when availability is unknown.
type Renderer struct {
	Type            RendererType
	WebGPUAvailable *bool
}

// Ready signals that the surface is listening (surface→host).
type Ready struct{}

// SelectRenderer asks the surface to switch backend (host→surface).
type SelectRenderer struct {
	Type RendererType
}

func (CapturePosition) Kind() Kind  { return KindCapturePosition }
func (PositionCaptured) Kind() Kind { return KindPositionCaptured }
func (CameraPosition) Kind() Kind   { return KindCameraPosition }
func (CameraFov) Kind() Kind        { return KindCameraFov }
func (Material) Kind() Kind         { return KindMaterial }
func (Lighting) Kind() Kind         { return KindLighting }
func (EnvMap) Kind() Kind           { return KindEnvMap }
func (Renderer) Kind() Kind         { return KindRenderer }
func (Ready) Kind() Kind            { return KindReady }
func (SelectRenderer) Kind() Kind   { return KindSelectRenderer }

// Available returns WebGPUAvailable, treating unknown as false.
func (r Renderer) Available() bool {
	return r.WebGPUAvailable != nil && *r.WebGPUAvailable
}
