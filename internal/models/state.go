// Package models defines the state tags for the two chatbot flows.
package models

// TicketState is the durable per-conversation state driving the ticket
// intake flow. The zero value is not meaningful; absent conversations
// default to TicketStateNormal.
type TicketState string

const (
	TicketStateNormal                  TicketState = "normal"
	TicketStateAwaitingIdea            TicketState = "awaiting_idea_description"
	TicketStateAwaitingFunctionalities TicketState = "awaiting_functionalities"
	TicketStateAwaitingDeadline        TicketState = "awaiting_deadline"
	TicketStateAwaitingBudget          TicketState = "awaiting_budget"
)

// Collecting reports whether the state expects a ticket field answer, i.e.
// whether the conversation must hold a ticket reference.
func (s TicketState) Collecting() bool {
	switch s {
	case TicketStateAwaitingFunctionalities, TicketStateAwaitingDeadline, TicketStateAwaitingBudget:
		return true
	}
	return false
}

// TicketField names a support ticket column patched by the ticket flow.
// The set is closed: store implementations refuse any other value, so a
// caller-influenced string can never reach the SQL layer.
type TicketField string

const (
	TicketFieldFunctionalities TicketField = "functionalities"
	TicketFieldDeadline        TicketField = "deadline"
	TicketFieldBudget          TicketField = "estimated_budget"
)

// Valid reports whether f is one of the three flow-collected fields.
func (f TicketField) Valid() bool {
	switch f {
	case TicketFieldFunctionalities, TicketFieldDeadline, TicketFieldBudget:
		return true
	}
	return false
}

// RegistrationStep is the client-carried state of the guest registration
// flow.
type RegistrationStep string

const (
	StepAwaitingUsername RegistrationStep = "awaiting_username"
	StepConfirmUsername  RegistrationStep = "confirm_username"
	StepAwaitingEmail    RegistrationStep = "awaiting_email"
	StepConfirmEmail     RegistrationStep = "confirm_email"
	StepAwaitingPhone    RegistrationStep = "awaiting_phone"
	StepConfirmPhone     RegistrationStep = "confirm_phone"
	StepAwaitingPassword RegistrationStep = "awaiting_password"
)

// FlowType discriminates client-carried flow states.
type FlowType string

// FlowTypeRegistration is the only client-carried flow today. The ticket
// flow deliberately has no carried representation: identified callers'
// state lives server-side and carried state is never trusted for them.
const FlowTypeRegistration FlowType = "registration"

// RegistrationData is the partially-filled registration record carried
// across turns. Phone is nil until informed and stays nil when skipped.
type RegistrationData struct {
	Username string  `json:"username,omitempty"`
	Email    string  `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// FlowState is the ephemeral, client-carried flow envelope for anonymous
// callers. It is echoed back by the widget on every request; the flow
// resets if the client drops it.
type FlowState struct {
	Type FlowType         `json:"type"`
	Step RegistrationStep `json:"step"`
	Data RegistrationData `json:"data"`
}

// NewRegistrationFlowState seeds the carried state for a fresh guest
// registration.
func NewRegistrationFlowState() *FlowState {
	return &FlowState{Type: FlowTypeRegistration, Step: StepAwaitingUsername}
}
