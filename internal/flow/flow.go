// Package flow implements the chatbot's conversational core: intent-driven
// dispatch plus the two linear state machines (guest registration and
// ticket/budget intake).
//
// Both flows share the same shape: consume one message in the current state,
// validate it, perform at most one side effect, and return the reply and the
// next state. They deliberately do not share a state representation: the
// registration flow's state is ephemeral and round-tripped through the
// client, the ticket flow's state is durable and server-held. Carried state
// is never trusted for identified callers.
//
// The flows perform no locking and no retries. Collaborator failures are
// propagated unwrapped in meaning: the in-flight transition is abandoned and
// nothing beyond the already-completed calls is persisted.
package flow

import (
	"context"

	"github.com/CompactDigital/AtendeBot/internal/models"
)

// UserStore is the account collaborator consumed by the registration flow.
type UserStore interface {
	// FindUserByEmail returns nil without error when no account exists.
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, username, email string, phone *string, passwordHash string) (*models.User, error)
}

// PasswordHasher produces salted one-way password hashes.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

// ConversationStore is the persistence collaborator consumed by the
// dispatcher and the ticket flow.
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID int64) (*models.Conversation, error)
	SaveMessage(ctx context.Context, conversationID int64, sender models.MessageSender, text string) error
	GetConversationState(ctx context.Context, conversationID int64) (models.TicketState, *int64, error)
	SetConversationState(ctx context.Context, conversationID int64, state models.TicketState, ticketID *int64) error
	CreateSupportTicket(ctx context.Context, userID, conversationID int64, ideaText string) (int64, error)
	UpdateTicketField(ctx context.Context, ticketID int64, field models.TicketField, value string) error
}
