// Package coordinator serializes trigger events into a single capture
// pipeline and routes student tap responses onto the overlay.
package coordinator

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"
	"sync"
	"time"

	"slidetap/internal/config"
	"slidetap/internal/overlay"
	"slidetap/internal/screen"
	"slidetap/internal/session"
)

const (
	uploadTimeout = 30 * time.Second
	writeTimeout  = 10 * time.Second

	responseQueueSize = 256
)

// SessionClient is the remote session boundary the coordinator captures
// through. *session.Client satisfies it.
type SessionClient interface {
	UploadImage(ctx context.Context, sessionID string, data []byte) (string, error)
	SetCurrentSlide(ctx context.Context, sessionID string, upd session.SlideUpdate) error
	CurrentSlideIndex(ctx context.Context, sessionID string) (int, error)
}

// Notifier surfaces short-lived operator notifications. May be nil.
type Notifier interface {
	Notify(message string)
}

// Coordinator owns the capture state machine (Idle <-> Capturing) and the
// current slide index. All trigger sources funnel through RequestCapture;
// all tap responses funnel through the response queue. One mutex guards the
// debounce check, the slide index, and overlay clear/add ordering, so a
// capture's clear can never be followed by a dot from the slide it replaced.
type Coordinator struct {
	cfg      *config.Config
	sess     SessionClient
	capturer screen.Capturer
	surface  overlay.Surface
	notifier Notifier

	cooldown     time.Duration
	ignoreWindow time.Duration
	now          func() time.Time

	mu           sync.Mutex
	capturing    bool
	haveAccepted bool
	lastAccepted time.Time
	slideIndex   int
	startedAt    time.Time

	responses chan session.TapResponse
}

// New creates a coordinator. The surface may be a Headless one; capture and
// upload work without a visible overlay.
func New(cfg *config.Config, sess SessionClient, capturer screen.Capturer, surface overlay.Surface, notifier Notifier) *Coordinator {
	c := &Coordinator{
		cfg:          cfg,
		sess:         sess,
		capturer:     capturer,
		surface:      surface,
		notifier:     notifier,
		cooldown:     time.Duration(cfg.CaptureCooldownMs) * time.Millisecond,
		ignoreWindow: time.Duration(cfg.IgnorePastResponsesSeconds) * time.Second,
		now:          time.Now,
		slideIndex:   -1,
		responses:    make(chan session.TapResponse, responseQueueSize),
	}
	c.startedAt = c.now()
	return c
}

// Init seeds the slide index from the remote session so a restarted helper
// resumes where it left off.
func (c *Coordinator) Init(ctx context.Context) error {
	idx, err := c.sess.CurrentSlideIndex(ctx, c.cfg.SessionID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.slideIndex = idx
	c.mu.Unlock()

	if idx >= 0 {
		log.Printf("Coordinator: resuming session %s at slide %d", c.cfg.SessionID, idx)
	} else {
		log.Printf("Coordinator: session %s has no slides yet", c.cfg.SessionID)
	}
	return nil
}

// SlideIndex returns the current slide index, -1 before the first capture.
func (c *Coordinator) SlideIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slideIndex
}

// RequestCapture runs the capture pipeline for one trigger. Requests during
// an in-flight capture or within the cooldown window are rejected, not
// queued. Safe to call from any goroutine.
func (c *Coordinator) RequestCapture(source string) error {
	if err := c.begin(source); err != nil {
		log.Printf("Coordinator: %s trigger rejected: %v", source, err)
		return err
	}

	log.Printf("Coordinator: %s trigger accepted, capturing", source)
	if err := c.capture(); err != nil {
		c.abort()
		log.Printf("Coordinator: capture failed: %v", err)
		c.notify("Capture failed: " + err.Error())
		return err
	}
	return nil
}

// begin is the atomic Idle -> Capturing transition shared by every trigger
// source. Two near-simultaneous triggers can never both pass.
func (c *Coordinator) begin(source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capturing {
		return ErrBusy
	}
	now := c.now()
	if c.haveAccepted {
		if remaining := c.cooldown - now.Sub(c.lastAccepted); remaining > 0 {
			return fmt.Errorf("%w: %.0fs remaining", ErrCooldown, math.Ceil(remaining.Seconds()))
		}
	}

	c.capturing = true
	c.haveAccepted = true
	c.lastAccepted = now
	return nil
}

// abort returns to Idle without touching the slide pointer.
func (c *Coordinator) abort() {
	c.mu.Lock()
	c.capturing = false
	c.mu.Unlock()
}

// capture runs the pipeline: grab -> encode -> upload -> pointer write ->
// commit. Any stage error aborts the rest; the previous slide stays
// authoritative.
func (c *Coordinator) capture() error {
	monIdx := c.monitorIndex()
	bounds, err := c.capturer.Bounds(monIdx)
	if err != nil {
		return err
	}

	img, err := c.capturer.Capture(monIdx)
	if err != nil {
		return fmt.Errorf("screen grab: %w", err)
	}

	data, err := screen.EncodeJPEG(img, c.cfg.JPEGQuality)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()
	url, err := c.sess.UploadImage(ctx, c.cfg.SessionID, data)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	c.mu.Lock()
	next := c.slideIndex + 1
	c.mu.Unlock()

	wctx, wcancel := context.WithTimeout(context.Background(), writeTimeout)
	defer wcancel()
	err = c.sess.SetCurrentSlide(wctx, c.cfg.SessionID, session.SlideUpdate{
		Index:        next,
		ImageURL:     url,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		MonitorIndex: monIdx,
	})
	if err != nil {
		return fmt.Errorf("slide pointer: %w", err)
	}

	// Commit: advance the slide and clear the overlay atomically with
	// respect to incoming tap responses.
	c.mu.Lock()
	c.slideIndex = next
	c.surface.Clear()
	c.capturing = false
	c.mu.Unlock()

	log.Printf("Coordinator: slide %d live", next)
	c.notify(fmt.Sprintf("Slide %d live", next))
	return nil
}

// Enqueue accepts a tap response from the session watcher. Never blocks the
// subscription; on a full queue the response is dropped with a log line.
func (c *Coordinator) Enqueue(resp session.TapResponse) {
	select {
	case c.responses <- resp:
	default:
		log.Printf("Coordinator: response queue full, dropping tap for slide %d", resp.Slide)
	}
}

// Run processes queued tap responses in arrival order until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case resp := <-c.responses:
			c.HandleResponse(resp)
		}
	}
}

// HandleResponse filters one tap response and forwards it to the overlay.
func (c *Coordinator) HandleResponse(resp session.TapResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if resp.Slide != c.slideIndex {
		return
	}
	if c.ignoreWindow > 0 && !resp.CreatedAt.IsZero() &&
		resp.CreatedAt.Before(c.startedAt.Add(-c.ignoreWindow)) {
		return
	}

	bounds, err := c.capturer.Bounds(c.monitorIndex())
	if err != nil {
		return
	}
	x, y := MapToPixels(bounds, resp.X, resp.Y)
	c.surface.AddDot(x, y)
}

// HandleSlideIndex reacts to session document changes (e.g. after restart).
// A slide change not initiated here still invalidates the displayed dots.
func (c *Coordinator) HandleSlideIndex(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if idx != c.slideIndex {
		c.slideIndex = idx
		c.surface.Clear()
	}
}

// monitorIndex validates the configured index at use time, falling back to
// the primary monitor when it no longer exists.
func (c *Coordinator) monitorIndex() int {
	idx := c.cfg.MonitorIndex
	if idx >= c.capturer.NumMonitors() {
		log.Printf("Coordinator: monitor index %d not found, using primary monitor", idx)
		return 0
	}
	return idx
}

func (c *Coordinator) notify(message string) {
	if c.notifier != nil {
		c.notifier.Notify(message)
	}
}

// MapToPixels translates normalized tap coordinates into the monitor's
// pixel space: (0,0) is the top-left pixel of the capture region, (1,1) the
// bottom-right pixel.
func MapToPixels(bounds image.Rectangle, xNorm, yNorm float64) (int, int) {
	xNorm = clamp(xNorm)
	yNorm = clamp(yNorm)
	x := bounds.Min.X + int(math.Round(xNorm*float64(bounds.Dx()-1)))
	y := bounds.Min.Y + int(math.Round(yNorm*float64(bounds.Dy()-1)))
	return x, y
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
