// Package models defines the data structures shared across AtendeBot modules.
//
// It covers the chatbot domain entities (users, conversations, messages,
// support tickets), the intent table, and the JSON envelopes exchanged with
// the chat widget and the admin dashboard.
package models

import (
	"errors"
	"time"
)

// Error variables for better error handling and testability
var (
	// ErrInvalidTicketField indicates an attempt to patch a ticket column
	// outside the closed set of flow-collected fields.
	ErrInvalidTicketField = errors.New("invalid ticket field")
	// ErrEmailTaken indicates an account already exists for the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Intent represents one entry of the static intent table: a tag, the
// lowercase substrings that trigger it, and the candidate replies.
type Intent struct {
	Tag       string   `json:"tag" yaml:"tag"`
	Patterns  []string `json:"patterns" yaml:"patterns"`
	Responses []string `json:"responses" yaml:"responses"`
}

// User represents a registered account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Phone        *string   `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// MessageSender identifies who authored a chat message.
type MessageSender string

const (
	SenderUser MessageSender = "user"
	SenderBot  MessageSender = "bot"
)

// Conversation represents a durable message exchange owned by one user.
// State and CurrentTicketID track the ticket intake flow; CurrentTicketID is
// non-nil exactly while the flow is collecting ticket fields.
type Conversation struct {
	ID              int64       `json:"id"`
	UserID          int64       `json:"user_id"`
	State           TicketState `json:"state"`
	CurrentTicketID *int64      `json:"current_ticket_id,omitempty"`
	StartedAt       time.Time   `json:"started_at"`
	LastActivity    time.Time   `json:"last_activity"`
}

// Message represents one stored chat message.
type Message struct {
	ID             int64         `json:"id"`
	ConversationID int64         `json:"conversation_id"`
	Sender         MessageSender `json:"sender_type"`
	Text           string        `json:"message_text"`
	SentAt         time.Time     `json:"sent_at"`
}

// TicketStatusOpen is the status assigned to newly created tickets. Tickets
// are never deleted by the bot; cancellation only detaches them from the
// conversation.
const TicketStatusOpen = "aberto"

// SupportTicket represents a budget/support request progressively filled by
// the ticket flow. Only IdeaText is populated at creation; each later flow
// step patches exactly one of the remaining fields.
type SupportTicket struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	ConversationID  int64     `json:"conversation_id"`
	IdeaText        string    `json:"ticket_text"`
	Functionalities string    `json:"functionalities,omitempty"`
	Deadline        string    `json:"deadline,omitempty"`
	EstimatedBudget string    `json:"estimated_budget,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	Username        string    `json:"username,omitempty"` // joined for admin listings
}

// ConversationSummary is the admin-facing view of a conversation, with the
// owner's username joined in.
type ConversationSummary struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
}

// ConversationListing is the chat widget's view of one of the caller's own
// conversations.
type ConversationListing struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Statistics aggregates the dashboard counters.
type Statistics struct {
	Users         int `json:"users"`
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
	Tickets       int `json:"tickets"`
}

// ChatRequest is the payload posted by the chat widget for every inbound
// message. ConversationID is only honored for identified callers; FlowState
// is only honored for anonymous callers.
type ChatRequest struct {
	ConversationID *int64     `json:"conversationId,omitempty"`
	Message        string     `json:"message"`
	FlowState      *FlowState `json:"flowState,omitempty"`
}

// ChatResponse is the reply returned for every inbound message.
type ChatResponse struct {
	Response        string     `json:"response"`
	ConversationID  *int64     `json:"conversationId"`
	FlowState       *FlowState `json:"flowState,omitempty"`
	TicketCompleted bool       `json:"ticketCompleted,omitempty"`
	TicketCancelled bool       `json:"ticketCancelled,omitempty"`
}

// LoginRequest is the credential payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// API Response types for consistent JSON responses

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
