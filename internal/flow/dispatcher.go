package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CompactDigital/AtendeBot/internal/intent"
	"github.com/CompactDigital/AtendeBot/internal/models"
)

// Dispatcher routes each inbound message to the right flow based on caller
// identity and current state, and owns the persistence side effects around
// the ticket flow.
type Dispatcher struct {
	matcher      *intent.Matcher
	registration *RegistrationFlow
	tickets      *TicketFlow
	convs        ConversationStore
}

// NewDispatcher wires the dispatcher over the given collaborators.
func NewDispatcher(matcher *intent.Matcher, registration *RegistrationFlow, tickets *TicketFlow, convs ConversationStore) *Dispatcher {
	return &Dispatcher{matcher: matcher, registration: registration, tickets: tickets, convs: convs}
}

// Request is one inbound message. UserID is nil for anonymous callers;
// ConversationID and FlowState are client-supplied and only honored for the
// caller class each belongs to.
type Request struct {
	UserID         *int64
	ConversationID *int64
	Message        string
	FlowState      *models.FlowState
}

// Handle processes an inbound message and returns the reply plus the next
// client-visible state.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (models.ChatResponse, error) {
	if req.UserID == nil {
		return d.handleGuest(ctx, req)
	}
	return d.handleIdentified(ctx, *req.UserID, req)
}

// handleGuest serves anonymous callers: the registration flow when a carried
// state is echoed back, plain intent replies otherwise. Nothing is persisted
// except the account created by the registration flow's final step.
func (d *Dispatcher) handleGuest(ctx context.Context, req Request) (models.ChatResponse, error) {
	if req.FlowState != nil && req.FlowState.Type == models.FlowTypeRegistration {
		reply, next, err := d.registration.Step(ctx, req.Message, *req.FlowState)
		if err != nil {
			return models.ChatResponse{}, err
		}
		return models.ChatResponse{Response: reply, FlowState: next}, nil
	}

	res := d.matcher.Respond(req.Message)
	switch res.Tag {
	case intent.TagStartRegistration:
		slog.Debug("Dispatcher: guest started registration")
		return models.ChatResponse{
			Response:  MsgRegistrationStart,
			FlowState: models.NewRegistrationFlowState(),
		}, nil
	case intent.TagStartTicket:
		// Ticket intake needs an identified caller; no state is created.
		return models.ChatResponse{Response: MsgLoginRequired}, nil
	default:
		return models.ChatResponse{Response: res.Response}, nil
	}
}

// handleIdentified serves logged-in callers with the durable ticket flow.
// Side-effect order is fixed: inbound message recorded, flow step, state
// persisted if changed, outbound message recorded, reply returned.
func (d *Dispatcher) handleIdentified(ctx context.Context, userID int64, req Request) (models.ChatResponse, error) {
	conversationID, err := d.ensureConversation(ctx, userID, req.ConversationID)
	if err != nil {
		return models.ChatResponse{}, err
	}

	if err := d.convs.SaveMessage(ctx, conversationID, models.SenderUser, req.Message); err != nil {
		return models.ChatResponse{}, fmt.Errorf("failed to record inbound message: %w", err)
	}

	state, ticketID, err := d.convs.GetConversationState(ctx, conversationID)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("failed to load conversation state: %w", err)
	}

	res, err := d.tickets.Step(ctx, userID, conversationID, req.Message, state, ticketID)
	if err != nil {
		return models.ChatResponse{}, err
	}

	if res.State != state || !sameRef(res.TicketID, ticketID) {
		if err := d.convs.SetConversationState(ctx, conversationID, res.State, res.TicketID); err != nil {
			return models.ChatResponse{}, fmt.Errorf("failed to persist conversation state: %w", err)
		}
	}

	if err := d.convs.SaveMessage(ctx, conversationID, models.SenderBot, res.Reply); err != nil {
		return models.ChatResponse{}, fmt.Errorf("failed to record outbound message: %w", err)
	}

	return models.ChatResponse{
		Response:        res.Reply,
		ConversationID:  &conversationID,
		TicketCompleted: res.Completed,
		TicketCancelled: res.Cancelled,
	}, nil
}

func (d *Dispatcher) ensureConversation(ctx context.Context, userID int64, conversationID *int64) (int64, error) {
	if conversationID != nil {
		return *conversationID, nil
	}
	conv, err := d.convs.CreateConversation(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to create conversation: %w", err)
	}
	slog.Debug("Dispatcher: created conversation", "conversationID", conv.ID, "userID", userID)
	return conv.ID, nil
}

func sameRef(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
