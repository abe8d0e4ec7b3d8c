package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	uv "github.com/charmbracelet/ultraviolet"
	"golang.org/x/sync/errgroup"

	"github.com/taigrr/showroom/pkg/bridge"
	"github.com/taigrr/showroom/pkg/panel"
	"github.com/taigrr/showroom/pkg/store"
	"github.com/taigrr/showroom/pkg/transport"
)

var errDisconnected = errors.New("surface disconnected")

// runPanel connects to a surface, mounting it with the stored or given
// settings, and edits them from the terminal.
func runPanel(args []string) error {
	o := newOptions("panel", "<model.glb>")
	o.panelFlags()
	o.fs.StringVar(&o.surfaceURL, "url", "", "Surface WebSocket URL")
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

	u, err := url.Parse(o.cfg.Panel.SurfaceURL)
	if err != nil {
		return fmt.Errorf("parse surface url: %w", err)
	}
	u.RawQuery = mount.Query().Encode()
	conn, err := transport.Dial(ctx, u.String())
	if err != nil {
		return fmt.Errorf("dial surface: %w", err)
	}
	defer conn.Close()

	scr, err := openScreen()
	if err != nil {
		return err
	}
	defer scr.Close()

	b := bridge.New(conn, mount.Settings)
	p := panel.New(store.Key{Shop: o.cfg.Panel.Shop, ModelURL: model}, mount.Settings, b, st)

	header := []string{
		fmt.Sprintf(" showroom panel  %s  (%s)", model, o.cfg.Panel.Shop),
		"",
	}
	footer := []string{
		"",
		" up/down select  left/right adjust  c capture  x renderer  ctrl+s save  esc quit",
	}
	redraw := func() {
		lines := append([]string{}, header...)
		if !b.Ready() {
			lines = append(lines, "  waiting for surface...")
		}
		lines = append(lines, p.Lines()...)
		lines = append(lines, footer...)
		if n := b.Dropped(); n > 0 {
			lines = append(lines, fmt.Sprintf(" %d messages dropped", n))
		}
		scr.drawLines(lines)
	}
	p.OnChange(redraw)
	b.OnReady(redraw)
	redraw()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCanceled(b.Run(ctx)) })
	g.Go(func() error {
		select {
		case <-conn.Done():
			return errDisconnected
		case <-ctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		return scr.pump(ctx, func(ev uv.Event) error {
			switch ev := ev.(type) {
			case uv.WindowSizeEvent:
				scr.resize(ev.Width, ev.Height)
				redraw()
			case uv.KeyPressEvent:
				if isQuit(ev) {
					return errQuit
				}
				panelKey(ctx, p, ev)
			}
			return nil
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}
