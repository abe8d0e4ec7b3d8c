// Package store persists viewer settings per model. Records are keyed by
// (shop, model URL) and hold the settings flattened into scalar fields.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/taigrr/showroom/pkg/settings"
)

var (
	// ErrNotFound is returned by Get for an unknown key.
	ErrNotFound = errors.New("store: record not found")
	// ErrInvalidKey is returned for keys with an empty shop or model URL.
	ErrInvalidKey = errors.New("store: shop and model url are required")
)

// Key identifies a record.
type Key struct {
	Shop     string
	ModelURL string
}

func (k Key) valid() bool { return k.Shop != "" && k.ModelURL != "" }

// Store reads and writes settings records.
type Store interface {
	Get(ctx context.Context, key Key) (Record, error)
	// Upsert replaces the record for key, creating it if needed. Fields
	// missing from p take their defaults.
	Upsert(ctx context.Context, key Key, p Payload) (Record, error)
}

// Record is a persisted settings row.
type Record struct {
	Shop               string    `toml:"shop"`
	ModelURL           string    `toml:"modelUrl"`
	Name               string    `toml:"name,omitempty"`
	CameraFov          float64   `toml:"cameraFov"`
	CameraPositionX    float64   `toml:"cameraPositionX"`
	CameraPositionY    float64   `toml:"cameraPositionY"`
	CameraPositionZ    float64   `toml:"cameraPositionZ"`
	CameraTargetX      float64   `toml:"cameraTargetX"`
	CameraTargetY      float64   `toml:"cameraTargetY"`
	CameraTargetZ      float64   `toml:"cameraTargetZ"`
	ClearcoatRoughness float64   `toml:"clearcoatRoughness"`
	Metalness          float64   `toml:"metalness"`
	Roughness          float64   `toml:"roughness"`
	AmbientLight       bool      `toml:"ambientLight"`
	LightIntensity     float64   `toml:"lightIntensity"`
	EnvMapPath         string    `toml:"envMapPath"`
	CreatedAt          time.Time `toml:"createdAt"`
	UpdatedAt          time.Time `toml:"updatedAt"`
}

// Key returns the record's key.
func (r Record) Key() Key { return Key{Shop: r.Shop, ModelURL: r.ModelURL} }

// Settings returns the record as a settings snapshot.
func (r Record) Settings() settings.Settings {
	return settings.Settings{
		Camera: settings.Camera{
			Fov:      r.CameraFov,
			Position: settings.Vec3{r.CameraPositionX, r.CameraPositionY, r.CameraPositionZ},
			Target:   &settings.Vec3{r.CameraTargetX, r.CameraTargetY, r.CameraTargetZ},
		},
		Material: settings.Material{
			ClearcoatRoughness: r.ClearcoatRoughness,
			Metalness:          r.Metalness,
			Roughness:          r.Roughness,
		},
		Lighting: settings.Lighting{
			AmbientLight: r.AmbientLight,
			Intensity:    r.LightIntensity,
		},
		EnvMapPath: r.EnvMapPath,
		Name:       r.Name,
	}
}

// Payload is an incoming record. Nil fields take their defaults; a present
// zero is kept.
type Payload struct {
	Name               *string  `json:"name,omitempty"`
	CameraFov          *float64 `json:"cameraFov,omitempty"`
	CameraPositionX    *float64 `json:"cameraPositionX,omitempty"`
	CameraPositionY    *float64 `json:"cameraPositionY,omitempty"`
	CameraPositionZ    *float64 `json:"cameraPositionZ,omitempty"`
	CameraTargetX      *float64 `json:"cameraTargetX,omitempty"`
	CameraTargetY      *float64 `json:"cameraTargetY,omitempty"`
	CameraTargetZ      *float64 `json:"cameraTargetZ,omitempty"`
	ClearcoatRoughness *float64 `json:"clearcoatRoughness,omitempty"`
	Metalness          *float64 `json:"metalness,omitempty"`
	Roughness          *float64 `json:"roughness,omitempty"`
	AmbientLight       *bool    `json:"ambientLight,omitempty"`
	LightIntensity     *float64 `json:"lightIntensity,omitempty"`
	EnvMapPath         *string  `json:"envMapPath,omitempty"`
}

// PayloadFrom flattens a full snapshot. Every field is present.
func PayloadFrom(s settings.Settings) Payload {
	t := s.Camera.TargetOrDefault()
	p := Payload{
		CameraFov:          &s.Camera.Fov,
		CameraPositionX:    &s.Camera.Position[0],
		CameraPositionY:    &s.Camera.Position[1],
		CameraPositionZ:    &s.Camera.Position[2],
		CameraTargetX:      &t[0],
		CameraTargetY:      &t[1],
		CameraTargetZ:      &t[2],
		ClearcoatRoughness: &s.Material.ClearcoatRoughness,
		Metalness:          &s.Material.Metalness,
		Roughness:          &s.Material.Roughness,
		AmbientLight:       &s.Lighting.AmbientLight,
		LightIntensity:     &s.Lighting.Intensity,
		EnvMapPath:         &s.EnvMapPath,
	}
	if s.Name != "" {
		p.Name = &s.Name
	}
	return p
}

// record builds the stored row for key, applying defaults to missing fields.
func (p Payload) record(key Key) Record {
	d := settings.Default()
	dt := d.Camera.TargetOrDefault()
	return Record{
		Shop:               key.Shop,
		ModelURL:           key.ModelURL,
		Name:               or(p.Name, ""),
		CameraFov:          or(p.CameraFov, d.Camera.Fov),
		CameraPositionX:    or(p.CameraPositionX, d.Camera.Position[0]),
		CameraPositionY:    or(p.CameraPositionY, d.Camera.Position[1]),
		CameraPositionZ:    or(p.CameraPositionZ, d.Camera.Position[2]),
		CameraTargetX:      or(p.CameraTargetX, dt[0]),
		CameraTargetY:      or(p.CameraTargetY, dt[1]),
		CameraTargetZ:      or(p.CameraTargetZ, dt[2]),
		ClearcoatRoughness: or(p.ClearcoatRoughness, d.Material.ClearcoatRoughness),
		Metalness:          or(p.Metalness, d.Material.Metalness),
		Roughness:          or(p.Roughness, d.Material.Roughness),
		AmbientLight:       or(p.AmbientLight, d.Lighting.AmbientLight),
		LightIntensity:     or(p.LightIntensity, d.Lighting.Intensity),
		EnvMapPath:         or(p.EnvMapPath, d.EnvMapPath),
	}
}

func or[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}
