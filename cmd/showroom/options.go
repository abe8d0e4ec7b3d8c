package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/taigrr/showroom/pkg/backend"
	"github.com/taigrr/showroom/pkg/config"
	"github.com/taigrr/showroom/pkg/envmap"
	"github.com/taigrr/showroom/pkg/logging"
	"github.com/taigrr/showroom/pkg/models"
	"github.com/taigrr/showroom/pkg/settings"
	"github.com/taigrr/showroom/pkg/store"
)

// options are the flags shared by every command. Flags left unset fall back
// to the config file.
type options struct {
	fs *flag.FlagSet

	configPath string
	logPath    string
	debug      bool
	fps        int
	assets     string
	renderer   string
	probe      time.Duration
	mount      string
	shop       string
	storePath  string
	addr       string
	surfaceURL string
	watch      bool

	cfg config.Config
}

func newOptions(name, args string) *options {
	o := &options{fs: flag.NewFlagSet(name, flag.ExitOnError)}
	o.fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: showroom %s [options] %s\n\nOptions:\n", name, args)
		o.fs.PrintDefaults()
	}
	o.fs.StringVar(&o.configPath, "config", "", "Config file (default "+config.DefaultPath+" if present)")
	o.fs.StringVar(&o.logPath, "log", "", "Write logs to this file")
	o.fs.BoolVar(&o.debug, "debug", false, "Log debug messages, including dropped messages")
	o.fs.StringVar(&o.mount, "mount", "", "Mount query string, e.g. 'fov=60&cameraX=2&metalness=0'")
	return o
}

func (o *options) surfaceFlags() {
	o.fs.IntVar(&o.fps, "fps", 0, "Target FPS")
	o.fs.StringVar(&o.assets, "assets", "", "Directory models and /images/ environments resolve against")
	o.fs.StringVar(&o.renderer, "renderer", "", "Renderer preference: auto or webgl")
	o.fs.DurationVar(&o.probe, "probe-timeout", 0, "GPU probe timeout")
	o.fs.BoolVar(&o.watch, "watch", false, "Reload a local model when the file changes")
}

func (o *options) panelFlags() {
	o.fs.StringVar(&o.shop, "shop", "", "Shop the settings are saved under")
	o.fs.StringVar(&o.storePath, "store", "", "Settings store file")
}

// parse parses args, loads the config file and applies flag overrides. The
// returned function closes the log file.
func (o *options) parse(args []string) (func(), error) {
	if err := o.fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.fps > 0 {
		cfg.Surface.FPS = o.fps
	}
	if o.assets != "" {
		cfg.Surface.AssetRoot = o.assets
	}
	if o.renderer != "" {
		cfg.Surface.Renderer = o.renderer
	}
	if o.probe > 0 {
		cfg.Surface.ProbeTimeout = config.Duration(o.probe)
	}
	if o.addr != "" {
		cfg.Surface.Addr = o.addr
	}
	if o.surfaceURL != "" {
		cfg.Panel.SurfaceURL = o.surfaceURL
	}
	if o.shop != "" {
		cfg.Panel.Shop = o.shop
	}
	if o.storePath != "" {
		cfg.Store.Path = o.storePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o.cfg = cfg
	return o.setupLogging()
}

func (o *options) setupLogging() (func(), error) {
	if o.logPath == "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(o.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	return func() {
		logging.SetLogger(nil)
		f.Close()
	}, nil
}

func (o *options) modelLoader() *models.Loader { return models.NewLoader(o.cfg.Surface.AssetRoot) }

func (o *options) envLoader() *envmap.Loader { return envmap.NewLoader(o.cfg.Surface.AssetRoot) }

func (o *options) backendConfig(width, height int) backend.Config {
	pref, _ := o.cfg.Surface.Preference()
	return backend.Config{
		Prober:  backend.HALProber{},
		Timeout: time.Duration(o.cfg.Surface.ProbeTimeout),
		Prefer:  pref,
		Width:   width,
		Height:  height,
	}
}

func (o *options) openStore() (store.Store, error) {
	if o.cfg.Store.Path == "" {
		return store.NewMemory(), nil
	}
	return store.OpenFile(o.cfg.Store.Path)
}

// resolveMount builds the mount for model: an explicit --mount query wins,
// then a saved record, then defaults with auto-framing.
func (o *options) resolveMount(ctx context.Context, model string, st store.Store) (settings.Mount, error) {
	if o.mount != "" {
		q, err := url.ParseQuery(strings.TrimPrefix(o.mount, "?"))
		if err != nil {
			return settings.Mount{}, fmt.Errorf("parse mount: %w", err)
		}
		if model != "" {
			q.Set("model", model)
		}
		return settings.ParseMount(q)
	}
	if st != nil && model != "" {
		rec, err := st.Get(ctx, store.Key{Shop: o.cfg.Panel.Shop, ModelURL: model})
		switch {
		case err == nil:
			return settings.Mount{ModelURL: model, Settings: rec.Settings()}, nil
		case !errors.Is(err, store.ErrNotFound):
			return settings.Mount{}, err
		}
	}
	s := settings.Default()
	s.Camera.Target = nil
	return settings.Mount{ModelURL: model, Settings: s}, nil
}

// watchPath returns the local file to watch for model, or "".
func (o *options) watchPath(model string) string {
	if !o.watch || model == "" {
		return ""
	}
	path := o.modelLoader().Resolve(model)
	if path == "" || !models.IsModelFile(path) {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
