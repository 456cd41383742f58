package session

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	watchBackoffMin = time.Second
	watchBackoffMax = 30 * time.Second
)

// Watcher follows the session document and streams tap responses for
// whatever slide is current. When the slide index changes it drops the old
// responses subscription and opens one for the new slide, so the callback
// only ever sees responses tagged with the slide they belong to.
type Watcher struct {
	client    *Client
	sessionID string

	// OnResponse is invoked once per newly added tap response.
	OnResponse func(TapResponse)

	// OnSlideIndex is invoked when the session document's slide index
	// changes, including the initial value. Optional.
	OnSlideIndex func(int)

	mu         sync.Mutex
	slideIndex int
	cancelResp context.CancelFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for one session. Call Start to begin.
func NewWatcher(client *Client, sessionID string) *Watcher {
	return &Watcher{
		client:     client,
		sessionID:  sessionID,
		slideIndex: -1,
	}
}

// Start begins watching in the background. Disconnects are retried with
// capped exponential backoff; stale data is preferable to crashing.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop terminates all subscriptions and waits for the watch goroutines.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	backoff := watchBackoffMin
	for {
		err := w.watchSession(ctx)
		if ctx.Err() != nil {
			return
		}
		if !retryable(err) {
			log.Printf("Session: watcher stopped, non-retryable error: %v", err)
			return
		}

		log.Printf("Session: watch error: %v, reconnecting in %s", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

// watchSession consumes session document snapshots until the stream breaks.
func (w *Watcher) watchSession(ctx context.Context) error {
	iter := w.client.fs.Collection("sessions").Doc(w.sessionID).Snapshots(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err != nil {
			return err
		}
		if !snap.Exists() {
			// Session not created yet; keep the stream open, the first
			// capture will create it.
			continue
		}

		idx := -1
		if v, ok := snap.Data()["slideIndex"].(int64); ok {
			idx = int(v)
		}
		w.switchSlide(ctx, idx)
	}
}

// switchSlide re-targets the responses subscription at the given slide.
func (w *Watcher) switchSlide(ctx context.Context, idx int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if idx == w.slideIndex {
		return
	}
	w.slideIndex = idx

	if w.cancelResp != nil {
		w.cancelResp()
		w.cancelResp = nil
	}

	if w.OnSlideIndex != nil {
		w.OnSlideIndex(idx)
	}
	if idx < 0 {
		return
	}

	respCtx, cancel := context.WithCancel(ctx)
	w.cancelResp = cancel
	w.wg.Add(1)
	go w.watchResponses(respCtx, idx)
	log.Printf("Session: watching responses for slide %d", idx)
}

// watchResponses streams added response documents for one slide, with its
// own backoff loop so a flaky responses stream does not tear down the
// session stream.
func (w *Watcher) watchResponses(ctx context.Context, slide int) {
	defer w.wg.Done()

	col := w.client.fs.Collection("sessions").
		Doc(w.sessionID).
		Collection("slides").
		Doc(strconv.Itoa(slide)).
		Collection("responses")

	backoff := watchBackoffMin
	for {
		err := w.consumeResponses(ctx, col, slide)
		if ctx.Err() != nil {
			return
		}
		if !retryable(err) {
			log.Printf("Session: responses watch for slide %d stopped: %v", slide, err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

func (w *Watcher) consumeResponses(ctx context.Context, col *firestore.CollectionRef, slide int) error {
	iter := col.Snapshots(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err != nil {
			return err
		}
		for _, change := range snap.Changes {
			if change.Kind != firestore.DocumentAdded {
				continue
			}
			resp, ok := parseResponse(change.Doc.Data(), slide)
			if !ok {
				log.Printf("Session: ignoring malformed response %s", change.Doc.Ref.ID)
				continue
			}
			if w.OnResponse != nil {
				w.OnResponse(resp)
			}
		}
	}
}

// retryable reports whether a watch error is worth reconnecting for.
func retryable(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.InvalidArgument:
		return false
	default:
		return true
	}
}

// nextBackoff doubles the delay up to the cap.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > watchBackoffMax {
		d = watchBackoffMax
	}
	return d
}
