// Package storage provides per-customer conversation state and history.
package storage

import (
	"context"
	"time"
)

// MaxMessages is the number of messages kept per conversation. Older ones are
// evicted first.
const MaxMessages = 20

// DefaultTTL is how long an idle conversation is kept.
const DefaultTTL = 30 * time.Minute

// Role identifies who sent a message.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleAssistant Role = "assistant"
)

// DialogueState is the mode that decides which handler gets the next message.
type DialogueState string

const (
	StateInitial               DialogueState = "INITIAL"
	StateSchedulingAppointment DialogueState = "SCHEDULING_APPOINTMENT"
	StateConfirmingPurchase    DialogueState = "CONFIRMING_PURCHASE"
	StateAppointmentConfirmed  DialogueState = "APPOINTMENT_CONFIRMED"
	StateProcessingRefund      DialogueState = "PROCESSING_REFUND"
	StateProcessingExchange    DialogueState = "PROCESSING_EXCHANGE"
	StateHandlingComplaint     DialogueState = "HANDLING_COMPLAINT"
	StateHandlingDefect        DialogueState = "HANDLING_DEFECT"
	StateTechnicalSupport      DialogueState = "TECHNICAL_SUPPORT"
)

// Message represents a single message in a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the dialogue state of one customer.
type Conversation struct {
	ID              string        `json:"id"`
	Messages        []Message     `json:"messages"`
	Context         Context       `json:"context"`
	State           DialogueState `json:"state"`
	CreatedAt       time.Time     `json:"created_at"`
	LastInteraction time.Time     `json:"last_interaction"`
}

// RecentWindow is how many of the newest messages collaborators get as context.
const RecentWindow = 10

// Recent returns up to n of the newest messages, oldest first.
func (c *Conversation) Recent(n int) []Message {
	if n <= 0 || n >= len(c.Messages) {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// ConversationStore holds conversation state keyed by customer identifier.
//
// Implementations never fail: a miss or a storage error is indistinguishable
// from a fresh conversation. Every write refreshes the idle TTL.
type ConversationStore interface {
	// Get returns the stored conversation or a fresh one. A fresh conversation
	// is not persisted until the first write.
	Get(ctx context.Context, key string) *Conversation

	// AppendMessage adds a message and trims history to MaxMessages.
	AppendMessage(ctx context.Context, key string, role Role, text string)

	// MergeContext shallow-merges patch into the conversation context. A nil
	// value removes the key.
	MergeContext(ctx context.Context, key string, patch Context)

	// SetState changes the dialogue state.
	SetState(ctx context.Context, key string, state DialogueState)

	// GetState returns the dialogue state, StateInitial for unknown keys.
	GetState(ctx context.Context, key string) DialogueState

	// Clear forgets a conversation.
	Clear(ctx context.Context, key string)

	// ListActive returns every conversation that has not expired.
	ListActive(ctx context.Context) []*Conversation
}

func newConversation(key string, now time.Time) *Conversation {
	return &Conversation{
		ID:              key,
		Messages:        make([]Message, 0),
		Context:         Context{},
		State:           StateInitial,
		CreatedAt:       now,
		LastInteraction: now,
	}
}

// appendTrimmed appends msg and drops the oldest entries beyond MaxMessages.
func appendTrimmed(messages []Message, msg Message) []Message {
	messages = append(messages, msg)
	if over := len(messages) - MaxMessages; over > 0 {
		messages = append(messages[:0:0], messages[over:]...)
	}
	return messages
}

// copyConversation creates a deep copy of a conversation.
func copyConversation(conv *Conversation) *Conversation {
	cp := &Conversation{
		ID:              conv.ID,
		Messages:        make([]Message, len(conv.Messages)),
		Context:         make(Context, len(conv.Context)),
		State:           conv.State,
		CreatedAt:       conv.CreatedAt,
		LastInteraction: conv.LastInteraction,
	}
	copy(cp.Messages, conv.Messages)
	for k, v := range conv.Context {
		cp.Context[k] = v
	}
	return cp
}
