// ABOUTME: TTL window for recognizing re-raised gate events by fingerprint.
// ABOUTME: Size-bounded with oldest-first eviction and a background sweeper.

package dedupe

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

type windowEntry struct {
	markedAt time.Time
	element  *list.Element
}

// Window remembers fingerprints for a fixed TTL. It is safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	seen    map[string]*windowEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a Window and starts its sweeper. Call Close to stop it.
func New(ttl time.Duration, maxSize int) *Window {
	if maxSize <= 0 {
		maxSize = 1
	}
	w := &Window{
		seen:    make(map[string]*windowEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go w.sweep()
	return w
}

// Fingerprint hashes the given parts into a stable key. Empty parts are kept
// positionally so ("a", "") and ("", "a") differ.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:12])
}

// Seen reports whether key was marked within the TTL.
func (w *Window) Seen(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.seen[key]
	return ok && w.now().Sub(e.markedAt) < w.ttl
}

// CheckAndMark reports whether key was already live in the window and, if
// not, marks it. The check and mark happen under one lock.
func (w *Window) CheckAndMark(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.seen[key]; ok && w.now().Sub(e.markedAt) < w.ttl {
		return true
	}
	w.markLocked(key)
	return false
}

// Forget drops key so the next CheckAndMark treats it as new.
func (w *Window) Forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.seen[key]; ok {
		w.order.Remove(e.element)
		delete(w.seen, key)
	}
}

// Len returns the number of tracked keys, expired ones included until swept.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

func (w *Window) markLocked(key string) {
	now := w.now()

	if e, ok := w.seen[key]; ok {
		e.markedAt = now
		w.order.MoveToBack(e.element)
		return
	}

	if len(w.seen) >= w.maxSize {
		if front := w.order.Front(); front != nil {
			oldest, _ := front.Value.(string)
			w.order.Remove(front)
			delete(w.seen, oldest)
		}
	}

	w.seen[key] = &windowEntry{markedAt: now, element: w.order.PushBack(key)}
}

func (w *Window) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.expire()
		case <-w.done:
			return
		}
	}
}

func (w *Window) expire() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for key, e := range w.seen {
		if now.Sub(e.markedAt) >= w.ttl {
			w.order.Remove(e.element)
			delete(w.seen, key)
		}
	}
}

// Close stops the sweeper. Safe to call more than once.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		close(w.done)
		w.closed = true
	}
}
