// ABOUTME: Tests for the fingerprint window used to recognize re-raised gate events.
// ABOUTME: Covers TTL expiry, eviction, forgetting, fingerprints and concurrency.

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestWindow(t *testing.T, ttl time.Duration, size int) (*Window, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
	w := New(ttl, size)
	w.now = clock.Now
	t.Cleanup(w.Close)
	return w, clock
}

func TestWindow_CheckAndMark(t *testing.T) {
	w, _ := newTestWindow(t, time.Minute, 10)

	assert.False(t, w.CheckAndMark("k"), "first sighting is new")
	assert.True(t, w.CheckAndMark("k"), "second sighting is a repeat")
	assert.True(t, w.Seen("k"))
}

func TestWindow_Expires(t *testing.T) {
	w, clock := newTestWindow(t, 30*time.Second, 10)

	w.CheckAndMark("k")
	clock.Advance(31 * time.Second)

	assert.False(t, w.Seen("k"))
	assert.False(t, w.CheckAndMark("k"), "expired key counts as new")
}

func TestWindow_ExpireSweepsEntries(t *testing.T) {
	w, clock := newTestWindow(t, time.Second, 10)

	w.CheckAndMark("a")
	w.CheckAndMark("b")
	clock.Advance(2 * time.Second)
	w.CheckAndMark("c")

	w.expire()
	assert.Equal(t, 1, w.Len())
	assert.True(t, w.Seen("c"))
}

func TestWindow_EvictsOldest(t *testing.T) {
	w, clock := newTestWindow(t, time.Hour, 2)

	w.CheckAndMark("a")
	clock.Advance(time.Millisecond)
	w.CheckAndMark("b")
	clock.Advance(time.Millisecond)
	w.CheckAndMark("c")

	assert.False(t, w.Seen("a"))
	assert.True(t, w.Seen("b"))
	assert.True(t, w.Seen("c"))
	assert.Equal(t, 2, w.Len())
}

func TestWindow_Forget(t *testing.T) {
	w, _ := newTestWindow(t, time.Hour, 10)

	w.CheckAndMark("k")
	w.Forget("k")
	w.Forget("never-marked")

	assert.False(t, w.Seen("k"))
	assert.False(t, w.CheckAndMark("k"))
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("G1", "in.jpg"), Fingerprint("G1", "in.jpg"))
	assert.NotEqual(t, Fingerprint("G1", "in.jpg"), Fingerprint("G2", "in.jpg"))
	assert.NotEqual(t, Fingerprint("a", ""), Fingerprint("", "a"))
	assert.Len(t, Fingerprint("x"), 24)
}

func TestWindow_CloseTwice(t *testing.T) {
	w := New(time.Minute, 1)
	w.Close()
	w.Close()
}

func TestWindow_Concurrent(t *testing.T) {
	w, _ := newTestWindow(t, time.Hour, 1000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if !w.CheckAndMark(fmt.Sprintf("k-%d", n%10)) {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, fresh)
}
