package trigger

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"slidetap/internal/coordinator"
)

// fakeRequester records trigger calls and returns a configured error.
type fakeRequester struct {
	mu         sync.Mutex
	calls      int
	lastSource string
	err        error
}

func (f *fakeRequester) RequestCapture(source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSource = source
	return f.err
}

func (f *fakeRequester) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// TestPingHasNoSideEffects tests that the liveness endpoint never triggers a
// capture.
func TestPingHasNoSideEffects(t *testing.T) {
	req := &fakeRequester{}
	srv := httptest.NewServer(NewHTTPServer(req, 0).handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ping")
	if err != nil {
		t.Fatalf("GET /ping failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"status":"ok"}` {
		t.Errorf("Unexpected ping body: %s", body)
	}
	if req.callCount() != 0 {
		t.Error("Expected ping to not request a capture")
	}
}

// TestCaptureStatusMapping tests the coordinator error to HTTP status
// translation.
func TestCaptureStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"success", nil, http.StatusOK},
		{"cooldown", fmt.Errorf("%w: 2s remaining", coordinator.ErrCooldown), http.StatusTooManyRequests},
		{"busy", coordinator.ErrBusy, http.StatusConflict},
		{"failure", errors.New("upload failed"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		req := &fakeRequester{err: tt.err}
		srv := httptest.NewServer(NewHTTPServer(req, 0).handler())

		resp, err := http.Get(srv.URL + "/capture")
		if err != nil {
			t.Fatalf("%s: GET /capture failed: %v", tt.name, err)
		}
		resp.Body.Close()
		srv.Close()

		if resp.StatusCode != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.name, tt.status, resp.StatusCode)
		}
		if req.callCount() != 1 {
			t.Errorf("%s: expected 1 capture request, got %d", tt.name, req.callCount())
		}
	}
}

// TestCaptureReportsSource tests that HTTP triggers identify themselves.
func TestCaptureReportsSource(t *testing.T) {
	req := &fakeRequester{}
	srv := httptest.NewServer(NewHTTPServer(req, 0).handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	resp.Body.Close()

	req.mu.Lock()
	defer req.mu.Unlock()
	if req.lastSource != SourceHTTP {
		t.Errorf("Expected source %q, got %q", SourceHTTP, req.lastSource)
	}
}

// TestHotkeyClientGetsPlainText tests that the scripted hotkey client gets a
// plain text line while browsers get the HTML page.
func TestHotkeyClientGetsPlainText(t *testing.T) {
	srv := httptest.NewServer(NewHTTPServer(&fakeRequester{}, 0).handler())
	defer srv.Close()

	hreq, _ := http.NewRequest("GET", srv.URL+"/capture", nil)
	hreq.Header.Set("User-Agent", "AutoHotkey Slide-Tap-Hotkey")
	resp, err := http.DefaultClient.Do(hreq)
	if err != nil {
		t.Fatalf("Hotkey request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Expected text/plain for hotkey client, got %q", ct)
	}
	if !strings.Contains(string(body), "captured") {
		t.Errorf("Unexpected hotkey response body: %s", body)
	}

	resp2, err := http.Get(srv.URL + "/capture")
	if err != nil {
		t.Fatalf("Browser request failed: %v", err)
	}
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if !strings.Contains(string(body2), "<html") {
		t.Error("Expected HTML page for browser clients")
	}
}
