package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/taigrr/showroom/pkg/render"
	"github.com/taigrr/showroom/pkg/surface"
)

// runSnapshot renders one frame of a model to PNG with the raster backend.
func runSnapshot(args []string) error {
	o := newOptions("snapshot", "<model.glb>")
	o.fs.StringVar(&o.assets, "assets", "", "Directory models and /images/ environments resolve against")
	o.panelFlags()
	out := o.fs.String("o", "snapshot.png", "Output PNG path")
	width := o.fs.Int("width", 320, "Render width in pixels")
	height := o.fs.Int("height", 240, "Render height in pixels")
	scale := o.fs.Int("scale", 1, "Upscale factor for the saved image")
	closeLog, err := o.parse(args)
	if err != nil {
		return err
	}
	defer closeLog()
	if o.fs.NArg() < 1 {
		o.fs.Usage()
		return errors.New("missing model")
	}
	if *width <= 0 || *height <= 0 || *scale <= 0 {
		return errors.New("width, height and scale must be positive")
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

	fb, err := surface.Snapshot(ctx, surface.Options{
		Mount:  mount,
		Assets: o.modelLoader(),
		Envs:   o.envLoader(),
		Clear:  render.RGB(30, 30, 40),
	}, *width, *height)
	if err != nil {
		return err
	}
	if err := fb.SavePNG(*out, *scale); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	fmt.Printf("Wrote %s (%dx%d)\n", *out, fb.Width*(*scale), fb.Height*(*scale))
	return nil
}
