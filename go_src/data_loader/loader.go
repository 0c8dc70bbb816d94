package data_loader

import (
	"context"
	"sync"

	"candlelab/go_src/series_store"

	"github.com/sirupsen/logrus"
)

// Result is the outcome of one asynchronous load.
type Result struct {
	Path   string
	Series *series_store.SeriesHandle
	Err    error
}

// Loader runs file loads off the UI thread. Starting a new load
// supersedes the previous one: its context is cancelled and its result,
// even if it completes anyway, is never published. The UI therefore only
// ever observes the most recently requested file.
type Loader struct {
	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	results chan Result

	// loadFunc is swappable in tests.
	loadFunc func(ctx context.Context, path string) (*series_store.SeriesHandle, error)
}

// NewLoader creates an idle loader.
func NewLoader() *Loader {
	return &Loader{
		results:  make(chan Result, 1),
		loadFunc: LoadSeries,
	}
}

// Results delivers at most the latest finished load. Stale results are
// replaced, never queued.
func (l *Loader) Results() <-chan Result {
	return l.results
}

// Load starts loading path, cancelling any load still in flight.
func (l *Loader) Load(path string) {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.gen++
	gen := l.gen
	l.mu.Unlock()

	logrus.Infof("Loading %s", path)
	go func() {
		series, err := l.loadFunc(ctx, path)

		// The staleness check and the publish stay under one lock so a
		// fresher load cannot slip in between them and get displaced by
		// this result.
		l.mu.Lock()
		defer l.mu.Unlock()
		if gen != l.gen || ctx.Err() != nil {
			logrus.Debugf("Discarding superseded load of %s", path)
			return
		}

		// Replace any unconsumed previous result. The drain frees a slot
		// in the buffered channel, and competing publishers serialize on
		// the lock, so the send below never blocks.
		select {
		case <-l.results:
		default:
		}
		l.results <- Result{Path: path, Series: series, Err: err}
	}()
}

// Close cancels any in-flight load.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
}
