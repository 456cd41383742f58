// Package overlay renders fading tap dots above the presentation.
//
// Two rendering strategies exist: "layered" (fully transparent,
// click-through, always on top) and "simple" (opaque always-on-top window,
// the reliability fallback). "auto" tries layered first and falls back.
// When neither window can be created the caller degrades to a Headless
// surface so capture keeps working without a visible overlay.
package overlay

import (
	"errors"
	"image"
	"log"
	"math"
	"sync"
	"time"

	"slidetap/internal/config"
)

var (
	// ErrUnsupportedPlatform is returned where no overlay renderer exists
	ErrUnsupportedPlatform = errors.New("overlay not supported on this platform")

	// ErrWindowCreate is returned when the overlay window cannot be created
	ErrWindowCreate = errors.New("overlay window creation failed")
)

// Surface is the contract the coordinator renders through.
type Surface interface {
	// AddDot schedules a fading marker at pixel coordinates on the overlaid
	// monitor.
	AddDot(x, y int)

	// Clear removes all dots immediately.
	Clear()

	// Close releases the window and stops the render loop.
	Close()
}

// Options configures an overlay surface.
type Options struct {
	// Bounds is the overlaid monitor's logical bounds in screen space.
	Bounds image.Rectangle

	// Dot appearance
	ColorR, ColorG, ColorB uint8
	RadiusPx               int

	// Fade is the time a dot takes to become invisible; 0 disables fading.
	Fade time.Duration

	// DebugBg fills the surface with a low-opacity background.
	DebugBg bool
}

// Dot is one ephemeral tap marker in overlay-local pixel coordinates.
type Dot struct {
	X, Y    int
	Radius  int
	Fade    time.Duration
	Created time.Time
}

// Alpha returns the dot's opacity in [0,1] at the given time. The curve is a
// raised cosine: 1 at creation, strictly decreasing, exactly 0 once the fade
// duration has elapsed. A zero fade duration means no fading.
func (d Dot) Alpha(now time.Time) float64 {
	if d.Fade <= 0 {
		return 1.0
	}
	elapsed := now.Sub(d.Created)
	if elapsed >= d.Fade {
		return 0.0
	}
	if elapsed <= 0 {
		return 1.0
	}
	progress := float64(elapsed) / float64(d.Fade)
	return (math.Cos(progress*math.Pi) + 1) / 2
}

// Expired reports whether the dot has fully faded and can be dropped.
func (d Dot) Expired(now time.Time) bool {
	if d.Fade <= 0 {
		return false
	}
	return now.Sub(d.Created) >= d.Fade
}

// dotSet is the shared dot state behind every surface implementation.
type dotSet struct {
	mu     sync.Mutex
	radius int
	fade   time.Duration
	now    func() time.Time
	dots   []Dot
}

func newDotSet(radius int, fade time.Duration) *dotSet {
	return &dotSet{
		radius: radius,
		fade:   fade,
		now:    time.Now,
	}
}

func (s *dotSet) Add(x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dots = append(s.dots, Dot{
		X:       x,
		Y:       y,
		Radius:  s.radius,
		Fade:    s.fade,
		Created: s.now(),
	})
}

func (s *dotSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dots = nil
}

// Snapshot prunes expired dots and returns the live ones.
func (s *dotSet) Snapshot() []Dot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	live := s.dots[:0]
	for _, d := range s.dots {
		if !d.Expired(now) {
			live = append(live, d)
		}
	}
	s.dots = live

	out := make([]Dot, len(live))
	copy(out, live)
	return out
}

// Headless is a Surface with no window: the degraded mode when no overlay
// renderer is available. It keeps the dot state so behavior stays observable.
type Headless struct {
	set *dotSet
}

// NewHeadless creates a windowless surface.
func NewHeadless(opts Options) *Headless {
	return &Headless{set: newDotSet(opts.RadiusPx, opts.Fade)}
}

// AddDot records a dot.
func (h *Headless) AddDot(x, y int) { h.set.Add(x, y) }

// Clear drops all dots.
func (h *Headless) Clear() { h.set.Clear() }

// Close is a no-op.
func (h *Headless) Close() {}

// Dots returns the currently visible dots.
func (h *Headless) Dots() []Dot { return h.set.Snapshot() }

// Renderer constructors, swappable in tests.
var (
	layeredFn = newLayered
	simpleFn  = newSimple
)

// New creates a surface for the requested mode. In auto mode a layered
// window is attempted first with a fallback to simple; explicit modes fail
// hard so the operator sees why their choice did not take.
func New(mode string, opts Options) (Surface, error) {
	switch mode {
	case config.OverlayLayered:
		return layeredFn(opts)
	case config.OverlaySimple:
		return simpleFn(opts)
	case config.OverlayAuto:
		s, err := layeredFn(opts)
		if err == nil {
			return s, nil
		}
		log.Printf("Overlay: layered mode unavailable (%v), falling back to simple", err)
		return simpleFn(opts)
	default:
		return nil, errors.New("unknown overlay mode: " + mode)
	}
}
