package dispatch

import "sync"

// sequencer orders work per key: tickets for the same key are served in the
// order they were taken, tickets for different keys do not wait on each other.
type sequencer struct {
	mu     sync.Mutex
	queues map[string][]*ticket
}

type ticket struct {
	seq   *sequencer
	key   string
	ready chan struct{}
}

func newSequencer() *sequencer {
	return &sequencer{queues: make(map[string][]*ticket)}
}

// Take reserves the next turn for key. It never blocks.
func (s *sequencer) Take(key string) *ticket {
	t := &ticket{seq: s, key: key, ready: make(chan struct{})}
	s.mu.Lock()
	q := s.queues[key]
	if len(q) == 0 {
		close(t.ready)
	}
	s.queues[key] = append(q, t)
	s.mu.Unlock()
	return t
}

// Wait blocks until every ticket taken earlier for the same key is done.
func (t *ticket) Wait() {
	<-t.ready
}

// Done ends the turn and wakes the next ticket, if any. It must be called
// exactly once, after Wait.
func (t *ticket) Done() {
	s := t.seq
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[t.key]
	if len(q) == 0 || q[0] != t {
		return
	}
	q = q[1:]
	if len(q) == 0 {
		delete(s.queues, t.key)
		return
	}
	s.queues[t.key] = q
	close(q[0].ready)
}

// size is the number of keys with pending or running tickets.
func (s *sequencer) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}
