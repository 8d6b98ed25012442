package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CompactDigital/AtendeBot/internal/intent"
	"github.com/CompactDigital/AtendeBot/internal/models"
)

// TicketFlow drives the ticket/budget intake for identified callers:
// normal → idea → functionalities → deadline → budget → normal. The ticket
// record is created on the idea answer; each later answer patches exactly
// one field on the referenced ticket.
type TicketFlow struct {
	store   ConversationStore
	matcher *intent.Matcher
}

// NewTicketFlow creates a ticket flow over the given collaborators.
func NewTicketFlow(store ConversationStore, matcher *intent.Matcher) *TicketFlow {
	return &TicketFlow{store: store, matcher: matcher}
}

// TicketResult is the outcome of one ticket flow step.
type TicketResult struct {
	Reply    string
	State    models.TicketState
	TicketID *int64
	// Completed is true exactly when the step finished the intake
	// (budget answered), never on cancellation or error reset.
	Completed bool
	Cancelled bool
}

// Step consumes one message against the conversation's durable state.
// Cancellation is checked before everything else: in any non-normal state a
// cancel intent resets the flow without reaching the per-state logic.
func (f *TicketFlow) Step(ctx context.Context, userID, conversationID int64, message string, state models.TicketState, ticketID *int64) (TicketResult, error) {
	slog.Debug("TicketFlow.Step", "conversationID", conversationID, "state", state, "hasTicket", ticketID != nil)

	if cancel := f.matcher.Respond(message); cancel.Tag == intent.TagCancelTicket && state != models.TicketStateNormal {
		slog.Info("TicketFlow: intake cancelled", "conversationID", conversationID, "state", state)
		return TicketResult{Reply: cancel.Response, State: models.TicketStateNormal, Cancelled: true}, nil
	}

	switch state {
	case models.TicketStateNormal:
		res := f.matcher.Respond(message)
		if res.Tag == intent.TagStartTicket {
			return TicketResult{
				Reply: ticketQuestions[models.TicketStateAwaitingIdea],
				State: models.TicketStateAwaitingIdea,
			}, nil
		}
		return TicketResult{Reply: res.Response, State: state}, nil

	case models.TicketStateAwaitingIdea:
		id, err := f.store.CreateSupportTicket(ctx, userID, conversationID, message)
		if err != nil {
			return TicketResult{}, fmt.Errorf("ticket creation failed: %w", err)
		}
		return TicketResult{
			Reply:    ticketQuestions[models.TicketStateAwaitingFunctionalities],
			State:    models.TicketStateAwaitingFunctionalities,
			TicketID: &id,
		}, nil

	case models.TicketStateAwaitingFunctionalities, models.TicketStateAwaitingDeadline, models.TicketStateAwaitingBudget:
		if ticketID == nil {
			// Collecting state without a ticket reference: corrupted
			// conversation state. Recover by resetting, patch nothing.
			slog.Warn("TicketFlow: collecting state without ticket reference, resetting",
				"conversationID", conversationID, "state", state)
			return TicketResult{Reply: msgTicketStateError, State: models.TicketStateNormal}, nil
		}
		if err := f.store.UpdateTicketField(ctx, *ticketID, ticketFields[state], message); err != nil {
			return TicketResult{}, fmt.Errorf("ticket field update failed: %w", err)
		}
		switch state {
		case models.TicketStateAwaitingFunctionalities:
			return TicketResult{
				Reply:    ticketQuestions[models.TicketStateAwaitingDeadline],
				State:    models.TicketStateAwaitingDeadline,
				TicketID: ticketID,
			}, nil
		case models.TicketStateAwaitingDeadline:
			return TicketResult{
				Reply:    ticketQuestions[models.TicketStateAwaitingBudget],
				State:    models.TicketStateAwaitingBudget,
				TicketID: ticketID,
			}, nil
		default:
			return TicketResult{
				Reply:     msgTicketComplete,
				State:     models.TicketStateNormal,
				Completed: true,
			}, nil
		}

	default:
		slog.Warn("TicketFlow: unknown conversation state, resetting",
			"conversationID", conversationID, "state", state)
		return TicketResult{Reply: msgConversationReset, State: models.TicketStateNormal}, nil
	}
}
