package snapshot

import (
	"sync"
)

// notifier fans out new ETags to subscribers without blocking the writer.
type notifier struct {
	mu   *sync.Mutex
	subs map[chan string]struct{}
}

func newNotifier() notifier {
	return notifier{mu: &sync.Mutex{}, subs: make(map[chan string]struct{})}
}

// Subscribe registers a listener and returns its channel and an unsubscribe
// func. The channel carries new ETags and is closed on unsubscribe.
func (n notifier) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 1)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, ch)
			close(ch)
			n.mu.Unlock()
		})
	}
	return ch, unsub
}

// Subscribers returns the number of registered listeners.
func (n notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// publish is non-blocking: a listener that has not drained its previous
// update misses this one and picks up the latest ETag on its next read.
func (n notifier) publish(etag string) {
	n.mu.Lock()
	for ch := range n.subs {
		select {
		case ch <- etag:
		default:
		}
	}
	n.mu.Unlock()
}
