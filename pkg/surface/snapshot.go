package surface

import (
	"context"
	"fmt"

	"github.com/taigrr/showroom/pkg/backend"
	"github.com/taigrr/showroom/pkg/render"
	"github.com/taigrr/showroom/pkg/scene"
)

// Snapshot renders a single frame of the mounted scene with the raster
// backend, waiting for the environment and model to load first.
func Snapshot(ctx context.Context, opts Options, width, height int) (*render.Framebuffer, error) {
	sync := scene.NewSynchronizer(ctx, opts.Mount.Settings, scene.Options{
		Assets: opts.Assets,
		Envs:   opts.Envs,
		FPS:    max(opts.FPS, 1),
		Clear:  opts.Clear,
	})
	defer sync.Close()

	sync.ApplyEnvironment(opts.Mount.Settings.EnvMapOrDefault())
	if opts.Mount.ModelURL != "" {
		sync.LoadAsset(opts.Mount.ModelURL, opts.Mount.Settings.Material)
	}
	if err := sync.Settle(ctx); err != nil {
		return nil, err
	}
	if err := sync.LoadError(); err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	r := backend.NewRaster(width, height)
	defer r.Dispose()
	if err := <-r.Submit(sync.Frame()); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return r.Framebuffer(), nil
}
