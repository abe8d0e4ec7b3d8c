package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	uv "github.com/charmbracelet/ultraviolet"
	"golang.org/x/sync/errgroup"

	"github.com/taigrr/showroom/pkg/bridge"
	"github.com/taigrr/showroom/pkg/panel"
	"github.com/taigrr/showroom/pkg/render"
	"github.com/taigrr/showroom/pkg/store"
	"github.com/taigrr/showroom/pkg/surface"
	"github.com/taigrr/showroom/pkg/transport"
)

// runView runs a surface and its control panel in one process, connected by
// an in-memory channel. The panel is drawn over the rendered frame.
func runView(args []string) error {
	o := newOptions("view", "<model.glb>")
	o.surfaceFlags()
	o.panelFlags()
	closeLog, err := o.parse(args)
	if err != nil {
		return err
	}
	defer closeLog()
	if o.fs.NArg() < 1 {
		o.fs.Usage()
		return errors.New("missing model")
	}
	model := o.fs.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := o.openStore()
	if err != nil {
		return err
	}
	mount, err := o.resolveMount(ctx, model, st)
	if err != nil {
		return err
	}

	scr, err := openScreen()
	if err != nil {
		return err
	}
	defer scr.Close()

	host, remote := transport.Pipe()
	defer host.Close()

	b := bridge.New(host, mount.Settings)
	p := panel.New(store.Key{Shop: o.cfg.Panel.Shop, ModelURL: model}, mount.Settings, b, st)

	g, ctx := errgroup.WithContext(ctx)
	fbW, fbH := scr.framebufferSize()
	surf := surface.New(ctx, surface.Options{
		Mount:   mount,
		Channel: remote,
		Assets:  o.modelLoader(),
		Envs:    o.envLoader(),
		Backend: o.backendConfig(fbW, fbH),
		FPS:     o.cfg.Surface.FPS,
		Watch:   o.watchPath(model),
		Present: func(fb *render.Framebuffer, status surface.Status) {
			scr.drawFrame(fb, p.Lines(), status)
		},
	})

	orbit := &orbitInput{target: func() *surface.Surface { return surf }}
	g.Go(func() error { return ignoreCanceled(b.Run(ctx)) })
	g.Go(func() error { return surf.Run(ctx) })
	g.Go(func() error {
		return scr.pump(ctx, func(ev uv.Event) error {
			switch ev := ev.(type) {
			case uv.WindowSizeEvent:
				scr.resize(ev.Width, ev.Height)
				surf.Resize(scr.framebufferSize())
				return nil
			case uv.KeyPressEvent:
				if isQuit(ev) {
					return errQuit
				}
				if panelKey(ctx, p, ev) {
					return nil
				}
			}
			orbit.handle(ev)
			return nil
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
