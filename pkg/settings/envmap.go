package settings

// DefaultEnvMapPath is the canonical environment asset.
const DefaultEnvMapPath = "/images/sunflowers_puresky_2k.hdr"

// EnvMap is one of the selectable environment assets.
type EnvMap struct {
	Name  string
	Label string
	Path  string
}

// EnvMaps lists the environments offered by the control panel, in cycle order.
var EnvMaps = []EnvMap{
	{Name: "sunflowers", Label: "Sunflowers", Path: DefaultEnvMapPath},
	{Name: "spruit_sunrise", Label: "Spruit Sunrise", Path: "/images/spruit_sunrise_2k.hdr"},
	{Name: "cannon", Label: "Cannon HDR", Path: "/images/cannon_1k.hdr"},
}

// LookupEnvMap finds an enumerated environment by path or name.
func LookupEnvMap(key string) (EnvMap, bool) {
	for _, e := range EnvMaps {
		if e.Path == key || e.Name == key {
			return e, true
		}
	}
	return EnvMap{}, false
}

// NextEnvMap returns the environment after path in cycle order. Unknown
// paths restart at the first entry.
func NextEnvMap(path string) EnvMap {
	for i, e := range EnvMaps {
		if e.Path == path {
			return EnvMaps[(i+1)%len(EnvMaps)]
		}
	}
	return EnvMaps[0]
}
