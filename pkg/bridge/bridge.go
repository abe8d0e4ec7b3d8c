// Package bridge is the control-panel side of the settings protocol. It
// remembers the last snapshot sent to the rendering surface and sends only
// the categories that changed.
package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/taigrr/showroom/pkg/logging"
	"github.com/taigrr/showroom/pkg/protocol"
	"github.com/taigrr/showroom/pkg/settings"
	"github.com/taigrr/showroom/pkg/transport"
)

// ErrNotReady is returned for requests made before the surface signalled
// readiness. The request is dropped.
var ErrNotReady = errors.New("bridge: surface not ready")

// Bridge diffs settings commits into protocol messages. It is safe for
// concurrent use.
type Bridge struct {
	ch transport.Channel

	mu       sync.Mutex
	ready    bool
	lastSent settings.Settings
	// pending is the newest snapshot committed before readiness.
	pending *settings.Settings

	onCaptured func(position, target settings.Vec3)
	onRenderer func(protocol.Renderer)
	onReady    func()

	dropped atomic.Uint64
}

// New creates a bridge for a surface mounted with mounted. The mount
// snapshot is the baseline for the first diff.
func New(ch transport.Channel, mounted settings.Settings) *Bridge {
	return &Bridge{ch: ch, lastSent: mounted.Clone()}
}

// OnPositionCaptured registers the callback for captured camera poses.
func (b *Bridge) OnPositionCaptured(fn func(position, target settings.Vec3)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onCaptured = fn
}

// OnRendererChanged registers the callback for backend notices.
func (b *Bridge) OnRendererChanged(fn func(protocol.Renderer)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRenderer = fn
}

// OnReady registers a callback run once the surface is listening.
func (b *Bridge) OnReady(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReady = fn
}

// Ready reports whether the surface has signalled readiness.
func (b *Bridge) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// LastSent returns the snapshot the surface is believed to hold.
func (b *Bridge) LastSent() settings.Settings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSent.Clone()
}

// Dropped returns the number of messages that could not be delivered.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

// CommitSettingsChange sends one message per category in which next differs
// from the last sent snapshot, then makes next the baseline. prev is the
// panel's own previous snapshot; the comparison never uses it. Before the
// surface is ready nothing is sent and commits coalesce into one diff sent
// on readiness. It returns the kinds sent.
func (b *Bridge) CommitSettingsChange(prev, next settings.Settings) []protocol.Kind {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.ready {
		n := next.Clone()
		b.pending = &n
		return nil
	}
	if !equal(prev, b.lastSent) {
		logging.Logger().Debug("panel baseline differs from last sent snapshot")
	}
	return b.flushLocked(next)
}

// AdoptCamera records a camera that originated on the surface, such as a
// captured pose, as already sent.
func (b *Bridge) AdoptCamera(c settings.Camera) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSent.Camera = settings.Settings{Camera: c}.Clone().Camera
}

// RequestCapturePosition asks the surface for its current pose. The answer
// arrives through the OnPositionCaptured callback.
func (b *Bridge) RequestCapturePosition() error {
	if !b.Ready() {
		b.drop(protocol.KindCapturePosition, ErrNotReady)
		return ErrNotReady
	}
	return b.send(protocol.CapturePosition{})
}

// SelectRenderer asks the surface to switch backend.
func (b *Bridge) SelectRenderer(t protocol.RendererType) error {
	if !b.Ready() {
		b.drop(protocol.KindSelectRenderer, ErrNotReady)
		return ErrNotReady
	}
	return b.send(protocol.SelectRenderer{Type: t})
}

// Run dispatches messages from the surface until ctx is done or the channel
// closes.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-b.ch.Messages():
			if !ok {
				return transport.ErrClosed
			}
			b.Handle(m)
		}
	}
}

// Handle dispatches one message from the surface.
func (b *Bridge) Handle(m protocol.Message) {
	switch m := m.(type) {
	case protocol.Ready:
		b.markReady()
	case protocol.PositionCaptured:
		b.mu.Lock()
		fn := b.onCaptured
		b.mu.Unlock()
		if fn != nil {
			fn(m.Position, m.Target)
		}
	case protocol.Renderer:
		b.mu.Lock()
		fn := b.onRenderer
		b.mu.Unlock()
		logging.Logger().Info("surface renderer changed", "renderer", m.Type, "gpuAvailable", m.Available())
		if fn != nil {
			fn(m)
		}
	default:
		logging.Logger().Debug("bridge ignoring message", "kind", m.Kind())
	}
}

func (b *Bridge) markReady() {
	b.mu.Lock()
	already := b.ready
	b.ready = true
	if p := b.pending; p != nil {
		b.pending = nil
		b.flushLocked(*p)
	}
	fn := b.onReady
	b.mu.Unlock()

	if already {
		return
	}
	logging.Logger().Info("surface ready")
	if fn != nil {
		fn()
	}
}

func (b *Bridge) flushLocked(next settings.Settings) []protocol.Kind {
	msgs := Diff(b.lastSent, next)
	kinds := make([]protocol.Kind, 0, len(msgs))
	for _, m := range msgs {
		kinds = append(kinds, m.Kind())
		_ = b.send(m)
	}
	b.lastSent = next.Clone()
	return kinds
}

func (b *Bridge) send(m protocol.Message) error {
	if err := b.ch.Send(m); err != nil {
		b.drop(m.Kind(), err)
		return err
	}
	return nil
}

func (b *Bridge) drop(kind protocol.Kind, err error) {
	b.dropped.Add(1)
	logging.Logger().Debug("bridge message dropped", "kind", kind, "err", err)
}
