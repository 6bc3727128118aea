// ABOUTME: Fans call admissions and clears out to notifiers without blocking the coordinator
// ABOUTME: Each notifier gets a bounded queue and its own worker goroutine

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/gate-console/internal/session"
)

const (
	// defaultQueueSize is the per-notifier backlog.
	defaultQueueSize = 16

	// defaultDeliveryTimeout bounds a single delivery.
	defaultDeliveryTimeout = 10 * time.Second
)

// Kind distinguishes the two slot transitions.
type Kind int

const (
	KindAdmitted Kind = iota + 1
	KindCleared
)

func (k Kind) String() string {
	switch k {
	case KindAdmitted:
		return "admitted"
	case KindCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is one slot transition as seen by notifiers.
type Event struct {
	Kind    Kind
	Session session.Session
	// Reason is set for KindCleared.
	Reason session.Reason
	At     time.Time
}

// Text renders the event as a one-line human message.
func (e Event) Text() string {
	evt := e.Session.Event
	where := evt.Label()
	if evt.Location.Name != "" {
		where = fmt.Sprintf("%s (%s)", where, evt.Location.Name)
	}
	if e.Kind == KindCleared {
		return fmt.Sprintf("Call at %s closed: %s after %s",
			where, e.Reason, e.At.Sub(e.Session.AdmittedAt).Round(time.Second))
	}
	return fmt.Sprintf("Gate %s needs help [%s]", where, evt.GateID)
}

// Notifier delivers events somewhere. Notify runs on the notifier's own worker.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, evt Event) error
}

// Durable is implemented by notifiers that must see every event, such as
// the audit log. Their backlog grows instead of dropping.
type Durable interface {
	Durable() bool
}

func isDurable(n Notifier) bool {
	d, ok := n.(Durable)
	return ok && d.Durable()
}

// queue is one notifier's backlog. overflow holds events for durable
// notifiers once ch is full; while it is non-empty every new event goes
// there too, so delivery order is kept.
type queue struct {
	ch       chan Event
	durable  bool
	mu       sync.Mutex
	overflow []Event
}

// offer enqueues evt without blocking. It reports false if evt was dropped.
func (q *queue) offer(evt Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.overflow) == 0 {
		select {
		case q.ch <- evt:
			return true
		default:
		}
	}
	if !q.durable {
		return false
	}
	q.overflow = append(q.overflow, evt)
	return true
}

// next pops the oldest overflow event once ch has been drained.
func (q *queue) next() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ch) > 0 || len(q.overflow) == 0 {
		return Event{}, false
	}
	evt := q.overflow[0]
	q.overflow = q.overflow[1:]
	return evt, true
}

// Dispatcher implements session.Observer and forwards every transition to
// registered notifiers. Publishing never blocks; a non-durable notifier whose
// queue is full misses the event.
type Dispatcher struct {
	mu        sync.RWMutex
	queues    map[string]*queue
	wg        sync.WaitGroup
	closed    bool
	queueSize int
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

var _ session.Observer = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher. Pass nil logger for default and
// queueSize <= 0 for the default backlog.
func NewDispatcher(logger *slog.Logger, queueSize int) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		queues:    make(map[string]*queue),
		queueSize: queueSize,
		timeout:   defaultDeliveryTimeout,
		now:       time.Now,
		logger:    logger.With("component", "notify"),
	}
}

// Register starts a worker for n. Registering a name twice is an error.
func (d *Dispatcher) Register(n Notifier) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("dispatcher closed")
	}
	name := n.Name()
	if _, exists := d.queues[name]; exists {
		return fmt.Errorf("notifier %q already registered", name)
	}

	q := &queue{ch: make(chan Event, d.queueSize), durable: isDurable(n)}
	d.queues[name] = q
	d.wg.Add(1)
	go d.work(n, q)

	d.logger.Debug("notifier registered", "notifier", name, "durable", q.durable)
	return nil
}

// OnAdmitted implements session.Observer.
func (d *Dispatcher) OnAdmitted(s session.Session) {
	d.publish(Event{Kind: KindAdmitted, Session: s, At: d.now()})
}

// OnCleared implements session.Observer.
func (d *Dispatcher) OnCleared(s session.Session, reason session.Reason) {
	d.publish(Event{Kind: KindCleared, Session: s, Reason: reason, At: d.now()})
}

func (d *Dispatcher) publish(evt Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}
	for name, q := range d.queues {
		if !q.offer(evt) {
			d.logger.Debug("dropped notification for slow notifier",
				"notifier", name,
				"kind", evt.Kind,
				"session_id", evt.Session.ID)
		}
	}
}

func (d *Dispatcher) work(n Notifier, q *queue) {
	defer d.wg.Done()
	drain := func() {
		for evt, ok := q.next(); ok; evt, ok = q.next() {
			d.deliver(n, evt)
		}
	}
	for evt := range q.ch {
		d.deliver(n, evt)
		drain()
	}
	drain()
}

func (d *Dispatcher) deliver(n Notifier, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := n.Notify(ctx, evt); err != nil {
		d.logger.Warn("notification failed",
			"notifier", n.Name(),
			"kind", evt.Kind,
			"session_id", evt.Session.ID,
			"error", err)
	}
}

// Close stops accepting events and waits for queued deliveries to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for name, q := range d.queues {
		close(q.ch)
		delete(d.queues, name)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Debug("dispatcher closed")
}
