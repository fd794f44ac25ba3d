package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Saver writes one state durably.
type Saver interface {
	Save(ctx context.Context, st State) error
}

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 10 * time.Second
)

// AsyncWriter persists states on a background goroutine so a turn never
// waits for storage. Pending snapshots are coalesced per user: if a user is
// already queued, only the newest snapshot is written. When the queue is
// full, or the writer is closed, Persist writes synchronously. At most one
// write per user runs at a time.
type AsyncWriter struct {
	saver        Saver
	writeTimeout time.Duration
	logger       *slog.Logger

	queue chan string
	stop  chan struct{}
	done  chan struct{}

	mu       sync.Mutex
	idle     *sync.Cond // signalled when a write leaves inflight
	pending  map[string]State
	inflight map[string]bool
	running  bool
	closed   bool
}

// NewAsyncWriter creates a writer. If queueSize <= 0 it defaults to 256.
func NewAsyncWriter(saver Saver, queueSize int) *AsyncWriter {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	w := &AsyncWriter{
		saver:        saver,
		writeTimeout: defaultWriteTimeout,
		logger:       slog.Default(),
		queue:        make(chan string, queueSize),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		pending:      make(map[string]State),
		inflight:     make(map[string]bool),
	}
	w.idle = sync.NewCond(&w.mu)
	return w
}

// Start launches the background goroutine. It stops when ctx is cancelled
// or Close is called, writing everything still pending first.
func (w *AsyncWriter) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running || w.closed {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
}

func (w *AsyncWriter) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case <-w.stop:
			w.drain()
			return
		case id := <-w.queue:
			w.write(id)
		}
	}
}

// Persist schedules st to be written. It never blocks on storage unless the
// queue is full or the writer has been closed.
func (w *AsyncWriter) Persist(_ context.Context, st State) {
	w.mu.Lock()
	if w.closed {
		delete(w.pending, st.UserID)
		w.saveLocked(st)
		w.mu.Unlock()
		return
	}
	if _, queued := w.pending[st.UserID]; queued {
		w.pending[st.UserID] = st
		w.mu.Unlock()
		return
	}
	select {
	case w.queue <- st.UserID:
		w.pending[st.UserID] = st
		w.mu.Unlock()
	default:
		w.logger.Warn("memory write queue full, saving synchronously", "user", ShortID(st.UserID))
		w.saveLocked(st)
		w.mu.Unlock()
	}
}

// Discard drops any snapshot of userID still waiting to be written and
// waits for a write of userID that has already started. Once it returns,
// nothing queued before the call can reach storage.
func (w *AsyncWriter) Discard(userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, userID)
	for w.inflight[userID] {
		w.idle.Wait()
	}
}

// Pending returns the number of snapshots waiting to be written.
func (w *AsyncWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Close stops accepting asynchronous work and waits until every pending
// snapshot is written or ctx expires.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	running := w.running
	w.mu.Unlock()

	if !running {
		w.drain()
		return nil
	}

	close(w.stop)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *AsyncWriter) drain() {
	for {
		select {
		case id := <-w.queue:
			w.write(id)
		default:
			return
		}
	}
}

func (w *AsyncWriter) write(userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// Take the snapshot only once no other write of userID runs, so a
	// Discard that returned in between has already dropped it.
	for w.inflight[userID] {
		w.idle.Wait()
	}
	st, ok := w.pending[userID]
	delete(w.pending, userID)
	if ok {
		w.saveLocked(st)
	}
}

// saveLocked writes st with w.mu held on entry and exit. The lock is released
// for the duration of the write, during which the user is marked in flight.
func (w *AsyncWriter) saveLocked(st State) {
	for w.inflight[st.UserID] {
		w.idle.Wait()
	}
	w.inflight[st.UserID] = true
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
	err := w.saver.Save(ctx, st)
	cancel()
	if err != nil {
		w.logger.Debug("async memory write failed", "user", ShortID(st.UserID), "error", err)
	}

	w.mu.Lock()
	delete(w.inflight, st.UserID)
	w.idle.Broadcast()
}
