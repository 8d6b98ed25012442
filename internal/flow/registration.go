package flow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/CompactDigital/AtendeBot/internal/models"
)

// MinPasswordLength is the minimum accepted password size, in characters.
const MinPasswordLength = 6

// emailPattern accepts the usual local@domain.tld shape. Full RFC 5322
// validation is not the goal; uniqueness is checked against the store.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegistrationFlow collects username, email, optional phone and password
// from an anonymous caller, one field per turn with a confirm sub-step, and
// creates the account on the final step. State is carried by the client.
type RegistrationFlow struct {
	users  UserStore
	hasher PasswordHasher
}

// NewRegistrationFlow creates a registration flow over the given collaborators.
func NewRegistrationFlow(users UserStore, hasher PasswordHasher) *RegistrationFlow {
	return &RegistrationFlow{users: users, hasher: hasher}
}

// Step consumes one message in the carried state and returns the reply and
// the next carried state. A nil next state means the flow finished and the
// client must stop echoing it.
//
// Side effects: at most one uniqueness lookup (awaiting_email) and at most
// one account creation (awaiting_password success), per the flow contract.
func (f *RegistrationFlow) Step(ctx context.Context, message string, state models.FlowState) (string, *models.FlowState, error) {
	step := state.Step
	data := state.Data
	confirmation := strings.ToLower(strings.TrimSpace(message))
	slog.Debug("RegistrationFlow.Step", "step", step)

	switch step {
	case models.StepConfirmUsername, models.StepConfirmEmail, models.StepConfirmPhone:
		reply, next := confirmTransition(step, confirmation, &data)
		return reply, carried(next, data), nil

	case models.StepAwaitingUsername:
		data.Username = message
		return fmt.Sprintf(confirmUsernameFmt, message), carried(models.StepConfirmUsername, data), nil

	case models.StepAwaitingEmail:
		if !emailPattern.MatchString(message) {
			return msgEmailInvalid, carried(step, data), nil
		}
		existing, err := f.users.FindUserByEmail(ctx, message)
		if err != nil {
			return "", nil, fmt.Errorf("registration email lookup failed: %w", err)
		}
		if existing != nil {
			return msgEmailTaken, carried(step, data), nil
		}
		data.Email = message
		return fmt.Sprintf(confirmEmailFmt, message), carried(models.StepConfirmEmail, data), nil

	case models.StepAwaitingPhone:
		if confirmation == answerSkip {
			data.Phone = nil
			return msgPhoneSkipped, carried(models.StepAwaitingPassword, data), nil
		}
		phone := message
		data.Phone = &phone
		return fmt.Sprintf(confirmPhoneFmt, message), carried(models.StepConfirmPhone, data), nil

	case models.StepAwaitingPassword:
		if utf8.RuneCountInString(message) < MinPasswordLength {
			return msgPasswordTooShort, carried(step, data), nil
		}
		hash, err := f.hasher.Hash(message)
		if err != nil {
			return "", nil, fmt.Errorf("registration password hashing failed: %w", err)
		}
		if _, err := f.users.CreateUser(ctx, data.Username, data.Email, data.Phone, hash); err != nil {
			return "", nil, fmt.Errorf("registration account creation failed: %w", err)
		}
		slog.Info("RegistrationFlow: account created", "username", data.Username)
		// Terminal: the flow state is discarded.
		return fmt.Sprintf(registrationDoneFmt, data.Username), nil, nil

	default:
		slog.Warn("RegistrationFlow.Step: unknown step, discarding carried state", "step", step)
		return msgConversationReset, nil, nil
	}
}

// confirmTransition handles the confirm sub-step shared by the three
// confirmed fields: "sim" advances, anything else clears the field and
// returns to the matching awaiting step.
func confirmTransition(step models.RegistrationStep, confirmation string, data *models.RegistrationData) (string, models.RegistrationStep) {
	if confirmation == answerYes {
		switch step {
		case models.StepConfirmUsername:
			return msgAskEmail, models.StepAwaitingEmail
		case models.StepConfirmEmail:
			return msgAskPhone, models.StepAwaitingPhone
		default: // models.StepConfirmPhone
			return msgAskPassword, models.StepAwaitingPassword
		}
	}
	switch step {
	case models.StepConfirmUsername:
		data.Username = ""
		return msgRetryUsername, models.StepAwaitingUsername
	case models.StepConfirmEmail:
		data.Email = ""
		return msgRetryEmail, models.StepAwaitingEmail
	default: // models.StepConfirmPhone
		data.Phone = nil
		return msgRetryPhone, models.StepAwaitingPhone
	}
}

func carried(step models.RegistrationStep, data models.RegistrationData) *models.FlowState {
	return &models.FlowState{Type: models.FlowTypeRegistration, Step: step, Data: data}
}
