// Package notify delivers call side effects: the local bell, chat messages
// and the call audit log.
//
// A Dispatcher is registered with the coordinator as a session.Observer. The
// coordinator calls it once per admission and once per clear, on its own loop,
// so the dispatcher only enqueues. Each Notifier drains its own queue on a
// dedicated goroutine; a slow Matrix homeserver never delays the bell.
//
// Re-raised gate events are filtered by the coordinator before they reach
// the dispatcher, so every Notifier sees at most one admission per call.
package notify
