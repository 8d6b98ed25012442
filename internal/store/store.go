// Package store provides storage backends for AtendeBot.
//
// It includes an in-memory store for tests and persistent PostgreSQL and
// SQLite stores behind a shared interface. The store is the sole arbiter of
// concurrent updates; conversation state writes are last-write-wins.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/CompactDigital/AtendeBot/internal/models"
)

// Store is the persistence boundary consumed by the chatbot flows and the
// HTTP handlers.
type Store interface {
	// Users
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, username, email string, phone *string, passwordHash string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	// Conversations and messages
	CreateConversation(ctx context.Context, userID int64) (*models.Conversation, error)
	GetConversation(ctx context.Context, id int64) (*models.Conversation, error)
	SaveMessage(ctx context.Context, conversationID int64, sender models.MessageSender, text string) error
	GetConversationHistory(ctx context.Context, conversationID int64) ([]models.Message, error)
	ListConversationsByUser(ctx context.Context, userID int64) ([]models.Conversation, error)
	ListAllConversations(ctx context.Context) ([]models.ConversationSummary, error)
	GetConversationState(ctx context.Context, conversationID int64) (models.TicketState, *int64, error)
	SetConversationState(ctx context.Context, conversationID int64, state models.TicketState, ticketID *int64) error

	// Support tickets
	CreateSupportTicket(ctx context.Context, userID, conversationID int64, ideaText string) (int64, error)
	UpdateTicketField(ctx context.Context, ticketID int64, field models.TicketField, value string) error
	ListTicketsByUser(ctx context.Context, userID int64) ([]models.SupportTicket, error)
	ListAllTickets(ctx context.Context) ([]models.SupportTicket, error)

	// Dashboard
	GetStatistics(ctx context.Context) (models.Statistics, error)

	Close() error
}

// InMemoryStore is a mutex-guarded in-memory Store used by tests and local
// development.
type InMemoryStore struct {
	mu            sync.Mutex
	users         []models.User
	conversations map[int64]*models.Conversation
	messages      map[int64][]models.Message
	tickets       map[int64]*models.SupportTicket
	nextUserID    int64
	nextConvID    int64
	nextMsgID     int64
	nextTicketID  int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[int64]*models.Conversation),
		messages:      make(map[int64][]models.Message),
		tickets:       make(map[int64]*models.SupportTicket),
		nextUserID:    1,
		nextConvID:    1,
		nextMsgID:     1,
		nextTicketID:  1,
	}
}

func (s *InMemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].Email == email {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) CreateUser(ctx context.Context, username, email string, phone *string, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].Email == email {
			return nil, models.ErrEmailTaken
		}
	}
	u := models.User{
		ID:           s.nextUserID,
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	s.nextUserID++
	s.users = append(s.users, u)
	return &u, nil
}

func (s *InMemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, len(s.users))
	copy(out, s.users)
	return out, nil
}

// SeedAdmin marks the user with the given email as an admin. Test helper.
func (s *InMemoryStore) SeedAdmin(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].Email == email {
			s.users[i].IsAdmin = true
		}
	}
}

func (s *InMemoryStore) CreateConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	c := &models.Conversation{
		ID:           s.nextConvID,
		UserID:       userID,
		State:        models.TicketStateNormal,
		StartedAt:    now,
		LastActivity: now,
	}
	s.nextConvID++
	s.conversations[c.ID] = c
	out := *c
	return &out, nil
}

func (s *InMemoryStore) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *InMemoryStore) SaveMessage(ctx context.Context, conversationID int64, sender models.MessageSender, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	m := models.Message{
		ID:             s.nextMsgID,
		ConversationID: conversationID,
		Sender:         sender,
		Text:           text,
		SentAt:         now,
	}
	s.nextMsgID++
	s.messages[conversationID] = append(s.messages[conversationID], m)
	if c, ok := s.conversations[conversationID]; ok {
		c.LastActivity = now
	}
	return nil
}

func (s *InMemoryStore) GetConversationHistory(ctx context.Context, conversationID int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[conversationID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *InMemoryStore) ListConversationsByUser(ctx context.Context, userID int64) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Conversation
	for _, c := range s.conversations {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (s *InMemoryStore) ListAllConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ConversationSummary
	for _, c := range s.conversations {
		summary := models.ConversationSummary{
			ID:           c.ID,
			UserID:       c.UserID,
			StartedAt:    c.StartedAt,
			LastActivity: c.LastActivity,
		}
		for i := range s.users {
			if s.users[i].ID == c.UserID {
				summary.Username = s.users[i].Username
			}
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (s *InMemoryStore) GetConversationState(ctx context.Context, conversationID int64) (models.TicketState, *int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		// Absent conversations default to the idle state.
		return models.TicketStateNormal, nil, nil
	}
	var ticketID *int64
	if c.CurrentTicketID != nil {
		id := *c.CurrentTicketID
		ticketID = &id
	}
	return c.State, ticketID, nil
}

func (s *InMemoryStore) SetConversationState(ctx context.Context, conversationID int64, state models.TicketState, ticketID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return models.ErrNotFound
	}
	c.State = state
	if ticketID != nil {
		id := *ticketID
		c.CurrentTicketID = &id
	} else {
		c.CurrentTicketID = nil
	}
	return nil
}

func (s *InMemoryStore) CreateSupportTicket(ctx context.Context, userID, conversationID int64, ideaText string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &models.SupportTicket{
		ID:             s.nextTicketID,
		UserID:         userID,
		ConversationID: conversationID,
		IdeaText:       ideaText,
		Status:         models.TicketStatusOpen,
		CreatedAt:      time.Now(),
	}
	s.nextTicketID++
	s.tickets[t.ID] = t
	return t.ID, nil
}

func (s *InMemoryStore) UpdateTicketField(ctx context.Context, ticketID int64, field models.TicketField, value string) error {
	if !field.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidTicketField, field)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return models.ErrNotFound
	}
	switch field {
	case models.TicketFieldFunctionalities:
		t.Functionalities = value
	case models.TicketFieldDeadline:
		t.Deadline = value
	case models.TicketFieldBudget:
		t.EstimatedBudget = value
	}
	return nil
}

func (s *InMemoryStore) ListTicketsByUser(ctx context.Context, userID int64) ([]models.SupportTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SupportTicket
	for _, t := range s.tickets {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListAllTickets(ctx context.Context) ([]models.SupportTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SupportTicket
	for _, t := range s.tickets {
		ticket := *t
		for i := range s.users {
			if s.users[i].ID == t.UserID {
				ticket.Username = s.users[i].Username
			}
		}
		out = append(out, ticket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) GetStatistics(ctx context.Context) (models.Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgCount := 0
	for _, msgs := range s.messages {
		msgCount += len(msgs)
	}
	return models.Statistics{
		Users:         len(s.users),
		Conversations: len(s.conversations),
		Messages:      msgCount,
		Tickets:       len(s.tickets),
	}, nil
}

// GetTicket returns a copy of the stored ticket. Test helper.
func (s *InMemoryStore) GetTicket(id int64) (models.SupportTicket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return models.SupportTicket{}, false
	}
	return *t, true
}

func (s *InMemoryStore) Close() error { return nil }
