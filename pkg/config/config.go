// Package config loads the showroom configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/taigrr/showroom/pkg/protocol"
)

// DefaultPath is read when no path is given and the file exists.
const DefaultPath = "showroom.toml"

// ErrInvalid wraps validation failures.
var ErrInvalid = errors.New("config: invalid value")

// Config is the file format. Zero values mean "use the default".
type Config struct {
	Surface Surface `toml:"surface"`
	Panel   Panel   `toml:"panel"`
	Store   Store   `toml:"store"`
}

// Surface configures the rendering surface.
type Surface struct {
	Addr      string `toml:"addr"`
	FPS       int    `toml:"fps"`
	AssetRoot string `toml:"assetRoot"`
	// ProbeTimeout is a Go duration string such as "3s".
	ProbeTimeout Duration `toml:"probeTimeout"`
	// Renderer is "auto" or "webgl".
	Renderer string `toml:"renderer"`
}

// Panel configures the control panel.
type Panel struct {
	// SurfaceURL is the websocket endpoint of the surface.
	SurfaceURL string `toml:"surfaceUrl"`
	Shop       string `toml:"shop"`
}

// Store configures persistence.
type Store struct {
	Path string `toml:"path"`
}

// Duration decodes from a TOML string.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Surface: Surface{
			Addr:         "127.0.0.1:7878",
			FPS:          30,
			AssetRoot:    ".",
			ProbeTimeout: Duration(3 * time.Second),
			Renderer:     "auto",
		},
		Panel: Panel{
			SurfaceURL: "ws://127.0.0.1:7878/ws",
			Shop:       "local",
		},
		Store: Store{Path: "showroom-settings.toml"},
	}
}

// Load reads path over the defaults. An empty path reads DefaultPath if it
// exists and otherwise returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Surface.FPS < 1 || c.Surface.FPS > 240 {
		return fmt.Errorf("%w: surface.fps %d not in [1, 240]", ErrInvalid, c.Surface.FPS)
	}
	if c.Surface.ProbeTimeout <= 0 {
		return fmt.Errorf("%w: surface.probeTimeout must be positive", ErrInvalid)
	}
	if _, err := c.Surface.Preference(); err != nil {
		return err
	}
	return nil
}

// Preference maps the renderer setting to the backend preference. Auto
// yields the empty type.
func (s Surface) Preference() (protocol.RendererType, error) {
	switch s.Renderer {
	case "", "auto":
		return "", nil
	case string(protocol.RendererWebGL):
		return protocol.RendererWebGL, nil
	}
	return "", fmt.Errorf("%w: surface.renderer %q (want auto or webgl)", ErrInvalid, s.Renderer)
}
