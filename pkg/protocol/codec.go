package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/taigrr/showroom/pkg/settings"
)

// envelope is the wire shape shared by all messages.
type envelope struct {
	Type            string          `json:"type"`
	Action          string          `json:"action,omitempty"`
	Value           json.RawMessage `json:"value,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
	RendererType    RendererType    `json:"rendererType,omitempty"`
	WebGPUAvailable *bool           `json:"webgpuAvailable,omitempty"`
}

type poseWire struct {
	Position *settings.Vec3 `json:"position"`
	Target   *settings.Vec3 `json:"target,omitempty"`
}

type materialWire struct {
	ClearcoatRoughness *float64 `json:"clearcoatRoughness"`
	Metalness          *float64 `json:"metalness"`
	Roughness          *float64 `json:"roughness"`
}

type lightingWire struct {
	AmbientLight *bool    `json:"ambientLight"`
	Intensity    *float64 `json:"intensity"`
}

// Encode serializes m into its wire form.
func Encode(m Message) ([]byte, error) {
	var (
		env envelope
		err error
	)
	switch m := m.(type) {
	case CapturePosition:
		env = envelope{Type: "camera", Action: "savePosition"}
	case PositionCaptured:
		env = envelope{Type: "camera", Action: "positionSaved"}
		env.Data, err = json.Marshal(poseWire{Position: &m.Position, Target: &m.Target})
	case CameraPosition:
		env = envelope{Type: string(KindCameraPosition)}
		env.Value, err = json.Marshal(poseWire{Position: &m.Position, Target: m.Target})
	case CameraFov:
		env = envelope{Type: string(KindCameraFov)}
		env.Value, err = json.Marshal(m.Fov)
	case Material:
		env = envelope{Type: string(KindMaterial)}
		env.Value, err = json.Marshal(m.Material)
	case Lighting:
		env = envelope{Type: string(KindLighting)}
		env.Value, err = json.Marshal(m.Lighting)
	case EnvMap:
		env = envelope{Type: string(KindEnvMap)}
		env.Value, err = json.Marshal(m.Path)
	case Renderer:
		env = envelope{Type: string(KindRenderer), RendererType: m.Type, WebGPUAvailable: m.WebGPUAvailable}
	case Ready:
		env = envelope{Type: string(KindReady)}
	case SelectRenderer:
		env = envelope{Type: string(KindSelectRenderer), RendererType: m.Type}
	default:
		return nil, fmt.Errorf("encode %T: %w", m, ErrUnknownKind)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return json.Marshal(env)
}

// Decode parses and validates a wire message.
func Decode(b []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w: %v", ErrInvalidPayload, err)
	}

	kind := Kind(env.Type)
	if env.Type == "camera" {
		kind = Kind(env.Type + "/" + env.Action)
	}

	switch kind {
	case KindCapturePosition:
		return CapturePosition{}, nil

	case KindPositionCaptured:
		var p poseWire
		if err := unmarshalPayload(kind, env.Data, &p); err != nil {
			return nil, err
		}
		if p.Position == nil || p.Target == nil {
			return nil, invalid(kind, "position and target are required")
		}
		return PositionCaptured{Position: *p.Position, Target: *p.Target}, nil

	case KindCameraPosition:
		var p poseWire
		if err := unmarshalPayload(kind, env.Value, &p); err != nil {
			return nil, err
		}
		if p.Position == nil {
			return nil, invalid(kind, "position is required")
		}
		return CameraPosition{Position: *p.Position, Target: p.Target}, nil

	case KindCameraFov:
		var fov *float64
		if err := unmarshalPayload(kind, env.Value, &fov); err != nil {
			return nil, err
		}
		if fov == nil || math.IsNaN(*fov) {
			return nil, invalid(kind, "fov is required")
		}
		return CameraFov{Fov: *fov}, nil

	case KindMaterial:
		var w materialWire
		if err := unmarshalPayload(kind, env.Value, &w); err != nil {
			return nil, err
		}
		if w.ClearcoatRoughness == nil || w.Metalness == nil || w.Roughness == nil {
			return nil, invalid(kind, "clearcoatRoughness, metalness and roughness are required")
		}
		return Material{settings.Material{
			ClearcoatRoughness: *w.ClearcoatRoughness,
			Metalness:          *w.Metalness,
			Roughness:          *w.Roughness,
		}}, nil

	case KindLighting:
		var w lightingWire
		if err := unmarshalPayload(kind, env.Value, &w); err != nil {
			return nil, err
		}
		if w.AmbientLight == nil || w.Intensity == nil {
			return nil, invalid(kind, "ambientLight and intensity are required")
		}
		return Lighting{settings.Lighting{AmbientLight: *w.AmbientLight, Intensity: *w.Intensity}}, nil

	case KindEnvMap:
		var path string
		if err := unmarshalPayload(kind, env.Value, &path); err != nil {
			return nil, err
		}
		if strings.TrimSpace(path) == "" {
			return nil, invalid(kind, "path is required")
		}
		return EnvMap{Path: path}, nil

	case KindRenderer:
		if !validRenderer(env.RendererType) {
			return nil, invalid(kind, fmt.Sprintf("rendererType %q", env.RendererType))
		}
		return Renderer{Type: env.RendererType, WebGPUAvailable: env.WebGPUAvailable}, nil

	case KindReady:
		return Ready{}, nil

	case KindSelectRenderer:
		if !validRenderer(env.RendererType) {
			return nil, invalid(kind, fmt.Sprintf("rendererType %q", env.RendererType))
		}
		return SelectRenderer{Type: env.RendererType}, nil
	}

	return nil, fmt.Errorf("decode %q: %w", kind, ErrUnknownKind)
}

func unmarshalPayload(kind Kind, raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return invalid(kind, "missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalid(kind, err.Error())
	}
	return nil
}

func invalid(kind Kind, reason string) error {
	return fmt.Errorf("decode %s: %w: %s", kind, ErrInvalidPayload, reason)
}

func validRenderer(t RendererType) bool {
	return t == RendererWebGPU || t == RendererWebGL
}
