package bridge

import (
	"github.com/taigrr/showroom/pkg/protocol"
	"github.com/taigrr/showroom/pkg/settings"
)

// Diff returns the messages that move a surface holding from to next, at
// most one per category, compared field by field.
func Diff(from, next settings.Settings) []protocol.Message {
	var msgs []protocol.Message
	if !from.Camera.PoseEqual(next.Camera) {
		msgs = append(msgs, protocol.CameraPosition{
			Position: next.Camera.Position,
			Target:   next.Clone().Camera.Target,
		})
	}
	if from.Camera.Fov != next.Camera.Fov {
		msgs = append(msgs, protocol.CameraFov{Fov: next.Camera.Fov})
	}
	if from.Material != next.Material {
		msgs = append(msgs, protocol.Material{Material: next.Material})
	}
	if from.Lighting != next.Lighting {
		msgs = append(msgs, protocol.Lighting{Lighting: next.Lighting})
	}
	if from.EnvMapOrDefault() != next.EnvMapOrDefault() {
		msgs = append(msgs, protocol.EnvMap{Path: next.EnvMapOrDefault()})
	}
	return msgs
}

func equal(a, b settings.Settings) bool {
	return len(Diff(a, b)) == 0 && a.Name == b.Name
}
