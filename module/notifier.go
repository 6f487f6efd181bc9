package module

// Notifier wakes up a single waiting routine. It behaves like a gate with
// memory: notifying while nobody waits keeps the gate open until the next
// receive, and notifying an open gate is a no-op. Notifiers can be passed by
// value and still share the same internal state.
//
// A receiver must re-check the condition it waits for after every wake-up,
// since several notifications may be collapsed into one.
type Notifier struct {
	notifier chan struct{} // buffered channel with capacity 1
}

// NewNotifier instantiates a Notifier.
func NewNotifier() Notifier {
	return Notifier{make(chan struct{}, 1)}
}

// Notify opens the gate without blocking.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns the channel to wait on.
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}
