package backend

import (
	"errors"
	"sync"
)

var (
	errInvalidSize = errors.New("backend: invalid output size")
	errOverlap     = errors.New("backend: submission already in flight")
)

// Display is the output surface. At most one renderer is attached at a time.
type Display struct {
	mu       sync.Mutex
	attached Renderer
	attaches int
}

// Attach binds r to the display.
func (d *Display) Attach(r Renderer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attached != nil {
		return ErrAlreadyAttached
	}
	d.attached = r
	d.attaches++
	return nil
}

// Detach unbinds r. Detaching a renderer that is not attached is a no-op.
func (d *Display) Detach(r Renderer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attached == r {
		d.attached = nil
	}
}

// Attached returns the attached renderer, or nil.
func (d *Display) Attached() Renderer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attached
}

// Attaches returns how many times a renderer has been attached.
func (d *Display) Attaches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attaches
}
