// Package trigger provides the independent capture trigger sources: the
// loopback HTTP server and the file sentinel. The global hotkey source is
// wired in cmd/main.go on top of internal/hotkey.
package trigger

// Trigger source kinds, used for logging and debounce messaging.
const (
	SourceHotkey = "hotkey"
	SourceHTTP   = "http"
	SourceFile   = "file"
	SourceTray   = "tray"
)

// Requester accepts capture requests from any source.
type Requester interface {
	RequestCapture(source string) error
}
