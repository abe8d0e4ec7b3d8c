// Package scene owns the live scene graph of a rendering surface and the
// Synchronizer that patches it from incoming settings messages.
package scene

import (
	"github.com/taigrr/showroom/pkg/envmap"
	"github.com/taigrr/showroom/pkg/models"
)

// AmbientLight is the optional uniform light node.
type AmbientLight struct {
	Intensity float64
}

// Scene is the live scene graph. It is only touched from the surface's event
// loop.
type Scene struct {
	Asset   *models.Asset
	Ambient *AmbientLight

	// Background and Environment always reference the same texture; they are
	// only assigned together through SetEnvironment.
	Background  *envmap.Texture
	Environment *envmap.Texture
}

// SetEnvironment replaces background and image-based lighting together.
func (s *Scene) SetEnvironment(t *envmap.Texture) {
	s.Background, s.Environment = t, t
}

// AmbientLights returns the number of ambient light nodes, zero or one.
func (s *Scene) AmbientLights() int {
	if s.Ambient == nil {
		return 0
	}
	return 1
}
