// Package session wraps the cloud backend shared with the student page:
// Firestore for session state and tap responses, Cloud Storage for slide
// screenshots.
package session

import (
	"fmt"
	"time"
)

// TapResponse is a single student tap for one slide, with normalized
// coordinates in [0,1] and the server-assigned creation time.
type TapResponse struct {
	Slide     int
	X         float64
	Y         float64
	CreatedAt time.Time
}

// SlideUpdate describes a newly captured slide for the session document.
type SlideUpdate struct {
	Index        int
	ImageURL     string
	Width        int
	Height       int
	MonitorIndex int
}

// blobPath returns the storage object path for a screenshot, millisecond
// precision matching what the student page already expects.
func blobPath(sessionID string, ts time.Time) string {
	name := ts.Format("20060102_150405") + fmt.Sprintf("_%03d", ts.Nanosecond()/1e6)
	return fmt.Sprintf("sessions/%s/slides/%s.jpg", sessionID, name)
}

// parseResponse extracts a TapResponse from a raw response document. Returns
// false for documents missing coordinates.
func parseResponse(data map[string]interface{}, slide int) (TapResponse, bool) {
	x, okX := asFloat(data["x"])
	y, okY := asFloat(data["y"])
	if !okX || !okY {
		return TapResponse{}, false
	}

	resp := TapResponse{Slide: slide, X: x, Y: y}
	if ts, ok := data["createdAt"].(time.Time); ok {
		resp.CreatedAt = ts
	}
	return resp, true
}

// asFloat accepts the numeric types Firestore may hand back for a JS number.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
