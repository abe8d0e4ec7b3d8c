package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register the Vulkan backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/taigrr/showroom/pkg/logging"
)

// HALProber probes a wgpu HAL backend for a compute-capable device.
type HALProber struct {
	// Backend is probed directly when set; otherwise the registered Vulkan
	// backend is used.
	Backend hal.Backend
}

// Probe creates an instance, picks an adapter (discrete, then integrated,
// then anything) and opens a device on it. Partially acquired resources are
// released when a later step fails.
func (p HALProber) Probe(ctx context.Context) (Device, error) {
	backend := p.Backend
	if backend == nil {
		b, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoAdapter)
		}
		backend = b
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	if err := ctx.Err(); err != nil {
		instance.Destroy()
		return nil, err
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}

	selected := pickAdapter(adapters)
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	logging.Logger().Info("gpu device acquired", "adapter", selected.Info.Name)
	return &halDevice{
		name:     selected.Info.Name,
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
	}, nil
}

func pickAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

type halDevice struct {
	name     string
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	once     sync.Once
}

func (d *halDevice) Name() string { return d.name }

func (d *halDevice) Release() {
	d.once.Do(func() {
		d.device.Destroy()
		d.instance.Destroy()
	})
}
