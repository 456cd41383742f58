package trigger

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"slidetap/internal/coordinator"
)

// autoHotkeyUA identifies the bundled AutoHotkey bridge script, which wants
// a plain-text body instead of the browser page.
const autoHotkeyUA = "Slide-Tap-Hotkey"

// HTTPServer is the loopback HTTP trigger source. GET /capture requests a
// capture; GET /ping answers liveness checks without side effects.
type HTTPServer struct {
	requester Requester
	port      int
	server    *http.Server
}

// NewHTTPServer creates the trigger server for the given loopback port.
func NewHTTPServer(requester Requester, port int) *HTTPServer {
	return &HTTPServer{
		requester: requester,
		port:      port,
	}
}

// handler builds the route table.
func (s *HTTPServer) handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleCapture).Methods("GET")
	r.HandleFunc("/capture", s.handleCapture).Methods("GET")
	r.HandleFunc("/ping", s.handlePing).Methods("GET")
	return s.recoverMiddleware(r)
}

// Start listens on loopback only and serves until Stop. Blocking; callers
// run it on a goroutine.
func (s *HTTPServer) Start() error {
	// Loopback only: the trigger surface is for this machine, and tcp4
	// avoids IPv6-only binding issues on Windows.
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("trigger server listen on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler: s.handler(),
	}

	log.Printf("Trigger: HTTP server on http://%s/capture (bookmark for quick capture)", addr)
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop closes the server.
func (s *HTTPServer) Stop() {
	if s.server != nil {
		s.server.Close()
	}
}

// recoverMiddleware prevents a handler panic from killing the trigger server
func (s *HTTPServer) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Trigger: panic recovered: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handleCapture(w http.ResponseWriter, r *http.Request) {
	err := s.requester.RequestCapture(SourceHTTP)

	status := http.StatusOK
	message := "Screenshot captured and uploaded successfully!"
	switch {
	case errors.Is(err, coordinator.ErrCooldown):
		status = http.StatusTooManyRequests
		message = err.Error()
	case errors.Is(err, coordinator.ErrBusy):
		status = http.StatusConflict
		message = err.Error()
	case err != nil:
		status = http.StatusInternalServerError
		message = "Error: " + err.Error()
	}

	if strings.Contains(r.Header.Get("User-Agent"), autoHotkeyUA) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(status)
		fmt.Fprintln(w, message)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	fmt.Fprintf(w, capturePage, message, s.port)
}

func (s *HTTPServer) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

const capturePage = `<!DOCTYPE html>
<html>
<head>
    <title>Screenshot Trigger</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body style="background: #2E3440; color: white; text-align: center; padding: 50px;">
    <h1>Screenshot Trigger</h1>
    <p style="color: #A3BE8C; font-size: 18px;">%s</p>
    <button onclick="location.reload()" style="background: #5E81AC; color: white; border: none; padding: 15px 30px; font-size: 16px; cursor: pointer;">Try Again</button>
    <hr style="margin: 40px 0; border-color: #4C566A;">
    <p>Quick access: <strong>http://localhost:%d/capture</strong></p>
</body>
</html>
`
