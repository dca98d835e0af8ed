package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of ConversationStore.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	ttl           time.Duration
	now           func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates a new in-memory conversation store. A non-positive
// ttl falls back to DefaultTTL.
func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		conversations: make(map[string]*Conversation),
		ttl:           ttl,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get retrieves a conversation by customer key.
func (s *MemoryStore) Get(ctx context.Context, key string) *Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.live(key)
	if !ok {
		return newConversation(key, s.now())
	}

	// Return a copy to prevent external modification
	return copyConversation(conv)
}

// AppendMessage appends a message to a conversation.
func (s *MemoryStore) AppendMessage(ctx context.Context, key string, role Role, text string) {
	s.update(key, func(conv *Conversation, now time.Time) {
		conv.Messages = appendTrimmed(conv.Messages, Message{
			Role:      role,
			Content:   text,
			Timestamp: now,
		})
	})
}

// MergeContext shallow-merges patch into the conversation context.
func (s *MemoryStore) MergeContext(ctx context.Context, key string, patch Context) {
	s.update(key, func(conv *Conversation, _ time.Time) {
		conv.Context.merge(patch)
	})
}

// SetState changes the dialogue state.
func (s *MemoryStore) SetState(ctx context.Context, key string, state DialogueState) {
	s.update(key, func(conv *Conversation, _ time.Time) {
		conv.State = state
	})
}

// GetState returns the current dialogue state.
func (s *MemoryStore) GetState(ctx context.Context, key string) DialogueState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if conv, ok := s.live(key); ok {
		return conv.State
	}
	return StateInitial
}

// Clear removes a conversation.
func (s *MemoryStore) Clear(ctx context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, key)
}

// ListActive returns copies of all unexpired conversations, most recent first.
func (s *MemoryStore) ListActive(ctx context.Context) []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Conversation, 0, len(s.conversations))
	for key := range s.conversations {
		if conv, ok := s.live(key); ok {
			out = append(out, copyConversation(conv))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastInteraction.After(out[j].LastInteraction)
	})
	return out
}

// Cleanup removes conversations idle for longer than the TTL.
func (s *MemoryStore) Cleanup(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	cutoff := s.now().Add(-s.ttl)
	for id, conv := range s.conversations {
		if conv.LastInteraction.Before(cutoff) {
			delete(s.conversations, id)
			removed++
		}
	}
	return removed
}

// RunJanitor calls Cleanup every interval until ctx is cancelled.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup(ctx)
		}
	}
}

// Len returns the number of conversations in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// live returns the conversation for key if it exists and has not expired.
// Callers must hold the lock.
func (s *MemoryStore) live(key string) (*Conversation, bool) {
	conv, ok := s.conversations[key]
	if !ok {
		return nil, false
	}
	if s.now().Sub(conv.LastInteraction) > s.ttl {
		return nil, false
	}
	return conv, true
}

// update applies fn to the conversation, creating it if needed, and refreshes
// its TTL.
func (s *MemoryStore) update(key string, fn func(conv *Conversation, now time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv, ok := s.live(key)
	if !ok {
		conv = newConversation(key, now)
		s.conversations[key] = conv
	}
	fn(conv, now)
	conv.LastInteraction = now
}
