package trigger

import (
	"log"
	"os"
	"sync"
	"time"
)

const defaultPollInterval = 500 * time.Millisecond

// FileSource polls for a sentinel file and requests a capture when it
// appears. A convenient escape hatch when neither the hotkey nor a browser
// is available: `echo . > capture_now.txt`.
type FileSource struct {
	requester Requester
	path      string
	interval  time.Duration

	lastModified time.Time
	done         chan struct{}
	wg           sync.WaitGroup
}

// NewFileSource creates a file sentinel source. A zero interval uses the
// default 500ms poll.
func NewFileSource(requester Requester, path string, interval time.Duration) *FileSource {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &FileSource{
		requester: requester,
		path:      path,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

// Start begins polling in the background.
func (f *FileSource) Start() {
	f.wg.Add(1)
	go f.poll()
	log.Printf("Trigger: file sentinel active, create or touch %q to capture", f.path)
}

// Stop ends the poll loop and removes a leftover sentinel.
func (f *FileSource) Stop() {
	close(f.done)
	f.wg.Wait()
	if _, err := os.Stat(f.path); err == nil {
		os.Remove(f.path)
	}
}

func (f *FileSource) poll() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.check()
		}
	}
}

// check fires on a new sentinel mtime. The mtime guard means a file whose
// delete fails (e.g. locked) does not refire every tick.
func (f *FileSource) check() {
	info, err := os.Stat(f.path)
	if err != nil {
		return
	}
	if !info.ModTime().After(f.lastModified) {
		return
	}
	f.lastModified = info.ModTime()

	log.Printf("Trigger: sentinel file detected")
	// Capture runs off the poll goroutine so a slow upload cannot stall
	// sentinel detection. Overlapping triggers are rejected by the
	// coordinator.
	go func() {
		if err := f.requester.RequestCapture(SourceFile); err != nil {
			log.Printf("Trigger: file capture rejected: %v", err)
		}
	}()

	if err := os.Remove(f.path); err != nil {
		log.Printf("Trigger: could not remove sentinel: %v", err)
	}
}
