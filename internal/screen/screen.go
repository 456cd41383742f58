// Package screen provides monitor enumeration and screenshot capture.
package screen

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/kbinani/screenshot"
)

var (
	// ErrNoMonitors is returned when no displays are attached
	ErrNoMonitors = errors.New("no monitors detected")

	// ErrMonitorNotFound is returned when the requested monitor index is out of range
	ErrMonitorNotFound = errors.New("monitor not found")
)

// Capturer grabs screenshots of one monitor. Bounds are the OS-reported
// logical bounds, which is also the pixel space tap coordinates map into.
type Capturer interface {
	NumMonitors() int
	Bounds(index int) (image.Rectangle, error)
	Capture(index int) (*image.RGBA, error)
}

// Display is the real Capturer backed by the platform screenshot API.
type Display struct{}

// NewDisplay returns a Capturer for the attached monitors.
func NewDisplay() (*Display, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, ErrNoMonitors
	}
	return &Display{}, nil
}

// NumMonitors returns the number of attached monitors.
func (d *Display) NumMonitors() int {
	return screenshot.NumActiveDisplays()
}

// Bounds returns the logical bounds of a monitor.
func (d *Display) Bounds(index int) (image.Rectangle, error) {
	if index < 0 || index >= screenshot.NumActiveDisplays() {
		return image.Rectangle{}, fmt.Errorf("%w: index %d", ErrMonitorNotFound, index)
	}
	return screenshot.GetDisplayBounds(index), nil
}

// Capture grabs the full contents of a monitor.
func (d *Display) Capture(index int) (*image.RGBA, error) {
	bounds, err := d.Bounds(index)
	if err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("capture monitor %d: %w", index, err)
	}
	return img, nil
}

// EncodeJPEG encodes a captured frame for upload.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
