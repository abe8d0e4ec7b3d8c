package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/taigrr/showroom/pkg/logging"
	"github.com/taigrr/showroom/pkg/panel"
	"github.com/taigrr/showroom/pkg/render"
	"github.com/taigrr/showroom/pkg/surface"
)

var errQuit = errors.New("quit")

// screen owns the terminal. Drawing may happen from several goroutines, so
// every draw holds mu.
type screen struct {
	mu            sync.Mutex
	term          *uv.Terminal
	width, height int
}

func openScreen() (*screen, error) {
	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return nil, fmt.Errorf("get terminal size: %w", err)
	}
	if err := term.Start(); err != nil {
		return nil, fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	fmt.Fprint(os.Stdout, "\x1b[?1003h") // any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // SGR extended mouse mode

	return &screen{term: term, width: width, height: height}, nil
}

func (s *screen) Close() {
	fmt.Fprint(os.Stdout, "\x1b[?1003l")
	fmt.Fprint(os.Stdout, "\x1b[?1006l")
	s.term.ExitAltScreen()
	s.term.ShowCursor()
	s.term.Shutdown(context.Background())
}

// framebufferSize returns the pixel size of the drawing area: the whole
// terminal minus the status row, two pixels per cell vertically.
func (s *screen) framebufferSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(s.width, 1), max(2*(s.height-1), 2)
}

func (s *screen) resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
	s.term.Erase()
	s.term.Resize(width, height)
}

// drawFrame draws fb with overlay rows in the top left corner and st on the
// bottom row.
func (s *screen) drawFrame(fb *render.Framebuffer, overlay []string, st surface.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb.Draw(s.term, uv.Rect(0, 0, s.width, s.height-1))
	for i, line := range overlay {
		if i >= s.height-1 {
			break
		}
		render.DrawText(s.term, 0, i, line, render.ColorWhite, render.ColorPanel)
	}
	fg := render.ColorGray
	if st.Error != "" {
		fg = render.ColorRed
	}
	render.DrawText(s.term, 0, s.height-1, pad(st.String(), s.width), fg, render.ColorBlack)
	if err := s.term.Display(); err != nil {
		logging.Logger().Warn("display frame", "err", err)
	}
}

// drawLines replaces the screen with text rows.
func (s *screen) drawLines(lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for y := range s.height {
		line := ""
		if y < len(lines) {
			line = lines[y]
		}
		render.DrawText(s.term, 0, y, pad(line, s.width), render.ColorWhite, render.ColorPanel)
	}
	if err := s.term.Display(); err != nil {
		logging.Logger().Warn("display panel", "err", err)
	}
}

func pad(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:max(width, 0)])
	}
	return s + strings.Repeat(" ", width-len(r))
}

// pump feeds terminal events to handle until ctx is done or handle returns
// an error.
func (s *screen) pump(ctx context.Context, handle func(uv.Event) error) error {
	events := s.term.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := handle(ev); err != nil {
				return err
			}
		}
	}
}

// orbitInput turns keys and mouse drags into camera motion on a surface.
type orbitInput struct {
	mouseDown    bool
	lastX, lastY int
	target       func() *surface.Surface
}

const (
	keyOrbitStep   = 0.02
	mouseOrbitStep = 0.005
	zoomStep       = 0.03
)

// handle reports whether ev was consumed.
func (in *orbitInput) handle(ev uv.Event) bool {
	surf := in.target()
	if surf == nil {
		return false
	}
	switch ev := ev.(type) {
	case uv.KeyPressEvent:
		switch {
		case ev.MatchString("w"):
			surf.Orbit(0, -keyOrbitStep)
		case ev.MatchString("s"):
			surf.Orbit(0, keyOrbitStep)
		case ev.MatchString("a"):
			surf.Orbit(-keyOrbitStep, 0)
		case ev.MatchString("d"):
			surf.Orbit(keyOrbitStep, 0)
		case ev.MatchString("+", "="):
			surf.Zoom(-zoomStep)
		case ev.MatchString("-", "_"):
			surf.Zoom(zoomStep)
		default:
			return false
		}
	case uv.MouseClickEvent:
		in.mouseDown = true
		in.lastX, in.lastY = ev.X, ev.Y
	case uv.MouseReleaseEvent:
		in.mouseDown = false
	case uv.MouseMotionEvent:
		if !in.mouseDown {
			return false
		}
		dx, dy := ev.X-in.lastX, ev.Y-in.lastY
		surf.Orbit(float64(-dx)*mouseOrbitStep, float64(-dy)*mouseOrbitStep)
		in.lastX, in.lastY = ev.X, ev.Y
	case uv.MouseWheelEvent:
		switch ev.Button {
		case uv.MouseWheelUp:
			surf.Zoom(-zoomStep)
		case uv.MouseWheelDown:
			surf.Zoom(zoomStep)
		}
	default:
		return false
	}
	return true
}

// panelKey applies a control panel key. It reports whether ev was consumed.
func panelKey(ctx context.Context, p *panel.Panel, ev uv.KeyPressEvent) bool {
	switch {
	case ev.MatchString("up", "k"):
		p.Move(-1)
	case ev.MatchString("down", "j", "tab"):
		p.Move(1)
	case ev.MatchString("left", "h"):
		_ = p.Adjust(ctx, -1)
	case ev.MatchString("right", "l"):
		_ = p.Adjust(ctx, 1)
	case ev.MatchString("c"):
		_ = p.CapturePosition()
	case ev.MatchString("x"):
		_ = p.ToggleRenderer()
	case ev.MatchString("ctrl+s"):
		_ = p.Save(ctx)
	default:
		return false
	}
	return true
}

func isQuit(ev uv.KeyPressEvent) bool {
	return ev.MatchString("escape", "ctrl+c")
}
