package repository

import (
	"context"
	"sync"
)

// mailbox unbounded FIFO between a store and one observer, pushes never block
type mailbox struct {
	mu     sync.Mutex
	queue  []Snapshot
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) push(s Snapshot) {
	m.mu.Lock()
	m.queue = append(m.queue, s)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}

// pump deliver queued snapshots to out in order until ctx is done, then close out
func (m *mailbox) pump(ctx context.Context, out chan<- Snapshot) {
	defer close(out)
	for {
		for _, s := range m.drain() {
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-m.notify:
		case <-ctx.Done():
			return
		}
	}
}
