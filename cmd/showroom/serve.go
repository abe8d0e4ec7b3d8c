package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	uv "github.com/charmbracelet/ultraviolet"
	"golang.org/x/sync/errgroup"

	"github.com/taigrr/showroom/pkg/logging"
	"github.com/taigrr/showroom/pkg/render"
	"github.com/taigrr/showroom/pkg/settings"
	"github.com/taigrr/showroom/pkg/surface"
	"github.com/taigrr/showroom/pkg/transport"
)

// runSurface serves a rendering surface at /ws. The connecting panel mounts
// it through the URL query string; one panel is served at a time.
func runSurface(args []string) error {
	o := newOptions("surface", "[model.glb]")
	o.surfaceFlags()
	o.fs.StringVar(&o.addr, "addr", "", "Listen address")
	headless := o.fs.Bool("headless", false, "Do not draw in the terminal")
	closeLog, err := o.parse(args)
	if err != nil {
		return err
	}
	defer closeLog()
	defaultModel := o.fs.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var scr *screen
	if !*headless {
		if scr, err = openScreen(); err != nil {
			return err
		}
		defer scr.Close()
	}

	g, ctx := errgroup.WithContext(ctx)
	var current atomic.Pointer[surface.Surface]
	busy := make(chan struct{}, 1)

	accept := func(c *transport.Conn, r *http.Request) {
		select {
		case busy <- struct{}{}:
			defer func() { <-busy }()
		default:
			logging.Logger().Warn("surface busy, rejecting panel", "remote", r.RemoteAddr)
			return
		}

		q := r.URL.Query()
		if q.Get("model") == "" && defaultModel != "" {
			q.Set("model", defaultModel)
		}
		mount, err := settings.ParseMount(q)
		if err != nil {
			logging.Logger().Warn("bad mount query", "query", r.URL.RawQuery, "err", err)
			return
		}

		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-c.Done():
				cancel()
			case <-cctx.Done():
			}
		}()

		width, height := 320, 180
		if scr != nil {
			width, height = scr.framebufferSize()
		}
		opts := surface.Options{
			Mount:   mount,
			Channel: c,
			Assets:  o.modelLoader(),
			Envs:    o.envLoader(),
			Backend: o.backendConfig(width, height),
			FPS:     o.cfg.Surface.FPS,
			Watch:   o.watchPath(mount.ModelURL),
		}
		if scr != nil {
			opts.Present = func(fb *render.Framebuffer, status surface.Status) {
				scr.drawFrame(fb, nil, status)
			}
		}
		surf := surface.New(cctx, opts)
		current.Store(surf)
		defer current.CompareAndSwap(surf, nil)

		logging.Logger().Info("panel connected", "remote", r.RemoteAddr, "model", mount.ModelURL)
		if err := surf.Run(cctx); err != nil && !errors.Is(err, transport.ErrClosed) {
			logging.Logger().Warn("surface stopped", "err", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", transport.Handler(accept))
	srv := &http.Server{Addr: o.cfg.Surface.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		logging.Logger().Info("surface listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if scr != nil {
		orbit := &orbitInput{target: current.Load}
		g.Go(func() error {
			return scr.pump(ctx, func(ev uv.Event) error {
				switch ev := ev.(type) {
				case uv.WindowSizeEvent:
					scr.resize(ev.Width, ev.Height)
					if surf := current.Load(); surf != nil {
						surf.Resize(scr.framebufferSize())
					}
					return nil
				case uv.KeyPressEvent:
					if isQuit(ev) {
						return errQuit
					}
				}
				orbit.handle(ev)
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}
