package panel

import (
	"fmt"

	"github.com/taigrr/showroom/pkg/settings"
)

// Lines renders the panel as text rows, one per field plus a status row.
// The focused row is marked with '>'.
func (p *Panel) Lines() []string {
	p.mu.Lock()
	s := p.current
	r, hasR := p.renderer, p.hasRenderer
	sel := p.selected
	status := p.status
	p.mu.Unlock()

	values := [numFields]string{
		FieldFov:       fmt.Sprintf("%.0f", s.Camera.Fov),
		FieldMetalness: fmt.Sprintf("%.2f", s.Material.Metalness),
		FieldRoughness: fmt.Sprintf("%.2f", s.Material.Roughness),
		FieldClearcoat: fmt.Sprintf("%.2f", s.Material.ClearcoatRoughness),
		FieldAmbient:   onOff(s.Lighting.AmbientLight),
		FieldIntensity: fmt.Sprintf("%.2f", s.Lighting.Intensity),
		FieldEnvMap:    envLabel(s.EnvMapOrDefault()),
		FieldRenderer:  "unknown",
	}
	if !s.Lighting.AmbientLight {
		values[FieldIntensity] += " (off)"
	}
	if hasR {
		values[FieldRenderer] = string(r.Type)
		if !r.Available() {
			values[FieldRenderer] += " (gpu unavailable)"
		}
	}

	lines := make([]string, 0, numFields+1)
	for f := range numFields {
		cursor := " "
		if f == sel {
			cursor = ">"
		}
		lines = append(lines, fmt.Sprintf("%s %-12s %s", cursor, f, values[f]))
	}
	if status != "" {
		lines = append(lines, "  "+status)
	}
	return lines
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func envLabel(path string) string {
	if e, ok := settings.LookupEnvMap(path); ok {
		return e.Label
	}
	return path
}
