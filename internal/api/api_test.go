package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CompactDigital/AtendeBot/internal/auth"
	"github.com/CompactDigital/AtendeBot/internal/intent"
	"github.com/CompactDigital/AtendeBot/internal/models"
	"github.com/CompactDigital/AtendeBot/internal/store"
)

func newTestServer(t *testing.T) (*http.ServeMux, *store.InMemoryStore, *auth.TokenManager) {
	t.Helper()
	st := store.NewInMemoryStore()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	server := NewServer(st, intent.NewMatcher(), tokens)
	return server.Routes(), st, tokens
}

// doJSON performs a request against the mux with an optional bearer token and
// JSON body.
func doJSON(t *testing.T, mux *http.ServeMux, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeChat(t *testing.T, rec *httptest.ResponseRecorder) models.ChatResponse {
	t.Helper()
	var resp models.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode chat response: %v (body %s)", err, rec.Body.String())
	}
	return resp
}

func TestMessagesGuestFallback(t *testing.T) {
	mux, _, _ := newTestServer(t)
	rec := doJSON(t, mux, http.MethodPost, "/chatbot/messages", "", models.ChatRequest{Message: "xyzzy plugh"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeChat(t, rec)
	if resp.Response != intent.FallbackResponse {
		t.Errorf("expected fallback reply, got %q", resp.Response)
	}
	if resp.ConversationID != nil || resp.FlowState != nil {
		t.Error("expected no state for guest fallback")
	}
}

func TestMessagesRejectsEmptyMessage(t *testing.T) {
	mux, _, _ := newTestServer(t)
	rec := doJSON(t, mux, http.MethodPost, "/chatbot/messages", "", models.ChatRequest{Message: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var envelope models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Status != string(models.APIStatusError) || envelope.Message != "Mensagem vazia." {
		t.Errorf("unexpected envelope: %+v", envelope)
	}
}

func TestMessagesMethodNotAllowed(t *testing.T) {
	mux, _, _ := newTestServer(t)
	rec := doJSON(t, mux, http.MethodGet, "/chatbot/messages", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

// TestRegistrationAndLoginOverHTTP walks the whole guest registration by
// echoing the returned flow state back each turn, then logs in with the
// created account and sends an identified message.
func TestRegistrationAndLoginOverHTTP(t *testing.T) {
	mux, _, _ := newTestServer(t)

	state := (*models.FlowState)(nil)
	turn := func(message string) models.ChatResponse {
		t.Helper()
		rec := doJSON(t, mux, http.MethodPost, "/chatbot/messages", "", models.ChatRequest{Message: message, FlowState: state})
		if rec.Code != http.StatusOK {
			t.Fatalf("turn %q: expected 200, got %d: %s", message, rec.Code, rec.Body.String())
		}
		resp := decodeChat(t, rec)
		state = resp.FlowState
		return resp
	}

	turn("quero me cadastrar")
	if state == nil || state.Step != models.StepAwaitingUsername {
		t.Fatalf("expected registration seeded, got %+v", state)
	}
	turn("Ana Silva")
	turn("sim")
	turn("ana@example.com")
	turn("sim")
	turn("pular")
	done := turn("segredo123")
	if state != nil {
		t.Fatalf("expected registration finished, got %+v", state)
	}
	if done.Response == "" {
		t.Fatal("expected a completion reply")
	}

	rec := doJSON(t, mux, http.MethodPost, "/auth/login", "", models.LoginRequest{Email: "ana@example.com", Password: "segredo123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var login models.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" || login.User.Email != "ana@example.com" {
		t.Fatalf("unexpected login response: %+v", login)
	}

	rec = doJSON(t, mux, http.MethodPost, "/chatbot/messages", login.Token, models.ChatRequest{Message: "quero um orçamento"})
	if rec.Code != http.StatusOK {
		t.Fatalf("identified message: expected 200, got %d", rec.Code)
	}
	resp := decodeChat(t, rec)
	if resp.ConversationID == nil {
		t.Error("expected a conversation for the identified message")
	}
	if resp.FlowState != nil {
		t.Error("expected no carried state for identified caller")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	mux, st, _ := newTestServer(t)
	hash, err := auth.BcryptHasher{Cost: 4}.Hash("segredo123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := st.CreateUser(context.Background(), "Ana", "ana@x.com", nil, hash); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	tests := []struct {
		name string
		req  models.LoginRequest
	}{
		{"wrong password", models.LoginRequest{Email: "ana@x.com", Password: "errada"}},
		{"unknown email", models.LoginRequest{Email: "nobody@x.com", Password: "segredo123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, "/auth/login", "", tt.req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			var envelope models.APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			// Unknown email and wrong password must be indistinguishable.
			if envelope.Message != "Email ou senha inválidos." {
				t.Errorf("unexpected message %q", envelope.Message)
			}
		})
	}
}

func TestHistoryOwnership(t *testing.T) {
	mux, st, tokens := newTestServer(t)
	ctx := context.Background()
	owner, _ := st.CreateUser(ctx, "Ana", "ana@x.com", nil, "h")
	other, _ := st.CreateUser(ctx, "Bia", "bia@x.com", nil, "h")
	conv, _ := st.CreateConversation(ctx, owner.ID)
	_ = st.SaveMessage(ctx, conv.ID, models.SenderUser, "oi")

	ownerToken, _ := tokens.Issue(*owner)
	otherToken, _ := tokens.Issue(*other)
	adminToken, _ := tokens.Issue(models.User{ID: 99, Username: "Root", IsAdmin: true})

	path := "/chatbot/history/1"
	tests := []struct {
		name     string
		token    string
		path     string
		wantCode int
	}{
		{"anonymous", "", path, http.StatusUnauthorized},
		{"other user", otherToken, path, http.StatusForbidden},
		{"owner", ownerToken, path, http.StatusOK},
		{"admin", adminToken, path, http.StatusOK},
		{"bad id", ownerToken, "/chatbot/history/abc", http.StatusBadRequest},
		{"missing conversation", ownerToken, "/chatbot/history/999", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodGet, tt.path, tt.token, nil)
			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
		})
	}

	rec := doJSON(t, mux, http.MethodGet, path, ownerToken, nil)
	var history []models.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 || history[0].Text != "oi" {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestConversationsListsOwnOnly(t *testing.T) {
	mux, st, tokens := newTestServer(t)
	ctx := context.Background()
	owner, _ := st.CreateUser(ctx, "Ana", "ana@x.com", nil, "h")
	other, _ := st.CreateUser(ctx, "Bia", "bia@x.com", nil, "h")
	_, _ = st.CreateConversation(ctx, owner.ID)
	_, _ = st.CreateConversation(ctx, other.ID)

	token, _ := tokens.Issue(*owner)
	rec := doJSON(t, mux, http.MethodGet, "/chatbot/conversations", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listings []models.ConversationListing
	if err := json.Unmarshal(rec.Body.Bytes(), &listings); err != nil {
		t.Fatalf("decode listings: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected one listing, got %d", len(listings))
	}
	if listings[0].Title != "Conversa #1" {
		t.Errorf("unexpected title %q", listings[0].Title)
	}
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	mux, st, tokens := newTestServer(t)
	member, _ := st.CreateUser(context.Background(), "Ana", "ana@x.com", nil, "h")
	memberToken, _ := tokens.Issue(*member)

	paths := []string{
		"/admin/users",
		"/admin/stats",
		"/admin/conversations",
		"/admin/tickets",
	}
	for _, path := range paths {
		if rec := doJSON(t, mux, http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s anonymous: expected 401, got %d", path, rec.Code)
		}
		if rec := doJSON(t, mux, http.MethodGet, path, memberToken, nil); rec.Code != http.StatusForbidden {
			t.Errorf("%s member: expected 403, got %d", path, rec.Code)
		}
	}
}

func TestAdminStats(t *testing.T) {
	mux, st, tokens := newTestServer(t)
	ctx := context.Background()
	user, _ := st.CreateUser(ctx, "Ana", "ana@x.com", nil, "h")
	conv, _ := st.CreateConversation(ctx, user.ID)
	_ = st.SaveMessage(ctx, conv.ID, models.SenderUser, "oi")
	st.SeedAdmin("ana@x.com")

	admin, _ := st.FindUserByEmail(ctx, "ana@x.com")
	token, _ := tokens.Issue(*admin)
	rec := doJSON(t, mux, http.MethodGet, "/admin/stats", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Status string            `json:"status"`
		Result models.Statistics `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	want := models.Statistics{Users: 1, Conversations: 1, Messages: 1}
	if envelope.Status != string(models.APIStatusOK) || envelope.Result != want {
		t.Errorf("unexpected stats envelope: %+v", envelope)
	}
}

func TestAdminTicketsJoinUsername(t *testing.T) {
	mux, st, tokens := newTestServer(t)
	ctx := context.Background()
	user, _ := st.CreateUser(ctx, "Ana", "ana@x.com", nil, "h")
	conv, _ := st.CreateConversation(ctx, user.ID)
	if _, err := st.CreateSupportTicket(ctx, user.ID, conv.ID, "uma loja virtual"); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}

	token, _ := tokens.Issue(models.User{ID: 99, Username: "Root", IsAdmin: true})
	rec := doJSON(t, mux, http.MethodGet, "/admin/tickets", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var envelope struct {
		Result []models.SupportTicket `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if len(envelope.Result) != 1 || envelope.Result[0].Username != "Ana" {
		t.Errorf("unexpected tickets: %+v", envelope.Result)
	}
}
