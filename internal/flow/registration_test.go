package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/CompactDigital/AtendeBot/internal/models"
	"github.com/CompactDigital/AtendeBot/internal/store"
)

func newRegistrationFlow(t *testing.T) (*RegistrationFlow, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	return NewRegistrationFlow(st, stubHasher{}), st
}

func registrationState(step models.RegistrationStep, data models.RegistrationData) models.FlowState {
	return models.FlowState{Type: models.FlowTypeRegistration, Step: step, Data: data}
}

func TestRegistrationUsernameCapture(t *testing.T) {
	f, _ := newRegistrationFlow(t)
	reply, next, err := f.Step(context.Background(), "João Silva", registrationState(models.StepAwaitingUsername, models.RegistrationData{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next == nil || next.Step != models.StepConfirmUsername {
		t.Fatalf("expected confirm_username, got %+v", next)
	}
	if next.Data.Username != "João Silva" {
		t.Errorf("expected captured username, got %q", next.Data.Username)
	}
	if !strings.Contains(reply, "João Silva") {
		t.Errorf("expected confirmation prompt to echo the name, got %q", reply)
	}
}

func TestRegistrationConfirmTransitions(t *testing.T) {
	phone := "11 98888-0000"
	tests := []struct {
		name         string
		step         models.RegistrationStep
		message      string
		wantStep     models.RegistrationStep
		wantCleared  bool
		startNonZero models.RegistrationData
	}{
		{"username confirmed", models.StepConfirmUsername, "sim", models.StepAwaitingEmail, false, models.RegistrationData{Username: "Ana"}},
		{"username confirmed uppercase", models.StepConfirmUsername, "SIM", models.StepAwaitingEmail, false, models.RegistrationData{Username: "Ana"}},
		{"username rejected", models.StepConfirmUsername, "não", models.StepAwaitingUsername, true, models.RegistrationData{Username: "Ana"}},
		{"email confirmed", models.StepConfirmEmail, " sim ", models.StepAwaitingPhone, false, models.RegistrationData{Email: "ana@x.com"}},
		{"email rejected", models.StepConfirmEmail, "errado", models.StepAwaitingEmail, true, models.RegistrationData{Email: "ana@x.com"}},
		{"phone confirmed", models.StepConfirmPhone, "sim", models.StepAwaitingPassword, false, models.RegistrationData{Phone: &phone}},
		{"phone rejected", models.StepConfirmPhone, "nao", models.StepAwaitingPhone, true, models.RegistrationData{Phone: &phone}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, _ := newRegistrationFlow(t)
			_, next, err := f.Step(context.Background(), tc.message, registrationState(tc.step, tc.startNonZero))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if next == nil {
				t.Fatal("expected a carried flow state")
			}
			if next.Step != tc.wantStep {
				t.Errorf("expected step %s, got %s", tc.wantStep, next.Step)
			}
			cleared := next.Data.Username == "" && next.Data.Email == "" && next.Data.Phone == nil
			if tc.wantCleared && !cleared {
				t.Errorf("expected rejected field cleared, got %+v", next.Data)
			}
			if !tc.wantCleared && cleared {
				t.Errorf("expected data retained on confirmation, got %+v", next.Data)
			}
		})
	}
}

func TestRegistrationEmailValidation(t *testing.T) {
	f, _ := newRegistrationFlow(t)
	state := registrationState(models.StepAwaitingEmail, models.RegistrationData{Username: "Ana"})

	reply, next, err := f.Step(context.Background(), "not-an-email", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next == nil || next.Step != models.StepAwaitingEmail {
		t.Fatalf("expected to stay in awaiting_email, got %+v", next)
	}
	if next.Data.Email != "" {
		t.Errorf("expected email not stored, got %q", next.Data.Email)
	}
	if reply != "Este email não parece válido. Por favor, tente outro." {
		t.Errorf("unexpected reply %q", reply)
	}

	_, next, err = f.Step(context.Background(), "ana@example.com", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next == nil || next.Step != models.StepConfirmEmail || next.Data.Email != "ana@example.com" {
		t.Fatalf("expected confirm_email with stored address, got %+v", next)
	}
}

func TestRegistrationEmailUniqueness(t *testing.T) {
	st := store.NewInMemoryStore()
	if _, err := st.CreateUser(context.Background(), "Ana", "ana@example.com", nil, "h"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	counting := &countingUserStore{UserStore: st}
	f := NewRegistrationFlow(counting, stubHasher{})

	reply, next, err := f.Step(context.Background(), "ana@example.com", registrationState(models.StepAwaitingEmail, models.RegistrationData{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next == nil || next.Step != models.StepAwaitingEmail {
		t.Fatalf("expected to stay in awaiting_email, got %+v", next)
	}
	if !strings.Contains(reply, "já está cadastrado") {
		t.Errorf("expected duplicate-email reply, got %q", reply)
	}
	if counting.finds != 1 {
		t.Errorf("expected exactly one uniqueness lookup, got %d", counting.finds)
	}
	if counting.creates != 0 {
		t.Errorf("expected no account creation, got %d", counting.creates)
	}
}

func TestRegistrationPhoneSkip(t *testing.T) {
	f, _ := newRegistrationFlow(t)
	reply, next, err := f.Step(context.Background(), "Pular", registrationState(models.StepAwaitingPhone, models.RegistrationData{Username: "Ana", Email: "ana@x.com"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next == nil || next.Step != models.StepAwaitingPassword {
		t.Fatalf("expected skip to jump to awaiting_password, got %+v", next)
	}
	if next.Data.Phone != nil {
		t.Errorf("expected nil phone after skip, got %v", *next.Data.Phone)
	}
	if !strings.Contains(reply, "senha") {
		t.Errorf("expected password prompt, got %q", reply)
	}
}

func TestRegistrationPasswordTooShort(t *testing.T) {
	st := store.NewInMemoryStore()
	counting := &countingUserStore{UserStore: st}
	f := NewRegistrationFlow(counting, stubHasher{})

	reply, next, err := f.Step(context.Background(), "abc", registrationState(models.StepAwaitingPassword, models.RegistrationData{Username: "Ana", Email: "ana@x.com"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next == nil || next.Step != models.StepAwaitingPassword {
		t.Fatalf("expected to stay in awaiting_password, got %+v", next)
	}
	if counting.creates != 0 {
		t.Errorf("expected no account creation for short password, got %d", counting.creates)
	}
	if !strings.Contains(reply, "muito curta") {
		t.Errorf("expected short-password reply, got %q", reply)
	}
}

func TestRegistrationCompletion(t *testing.T) {
	st := store.NewInMemoryStore()
	counting := &countingUserStore{UserStore: st}
	f := NewRegistrationFlow(counting, stubHasher{})

	reply, next, err := f.Step(context.Background(), "segredo123", registrationState(models.StepAwaitingPassword, models.RegistrationData{Username: "Ana", Email: "ana@x.com"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next != nil {
		t.Fatalf("expected flow state discarded on completion, got %+v", next)
	}
	if !strings.Contains(reply, "Ana") || !strings.Contains(reply, "sucesso") {
		t.Errorf("unexpected completion reply %q", reply)
	}
	if counting.creates != 1 {
		t.Fatalf("expected exactly one account creation, got %d", counting.creates)
	}
	user, err := st.FindUserByEmail(context.Background(), "ana@x.com")
	if err != nil || user == nil {
		t.Fatalf("expected created account, got %v / %v", user, err)
	}
	if user.PasswordHash != "hashed:segredo123" {
		t.Errorf("expected hashed password stored, got %q", user.PasswordHash)
	}
}

func TestRegistrationHasherFailurePropagates(t *testing.T) {
	st := store.NewInMemoryStore()
	f := NewRegistrationFlow(st, stubHasher{fail: true})
	_, _, err := f.Step(context.Background(), "segredo123", registrationState(models.StepAwaitingPassword, models.RegistrationData{Username: "Ana", Email: "ana@x.com"}))
	if err == nil {
		t.Fatal("expected hasher failure to propagate")
	}
	if user, _ := st.FindUserByEmail(context.Background(), "ana@x.com"); user != nil {
		t.Error("expected no account created after hasher failure")
	}
}
