// Package api provides HTTP handlers for AtendeBot chatbot endpoints.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/CompactDigital/AtendeBot/internal/auth"
	"github.com/CompactDigital/AtendeBot/internal/flow"
	"github.com/CompactDigital/AtendeBot/internal/models"
)

// messagesHandler processes one inbound chat message for a guest or an
// identified caller. Client-supplied conversation ids are only honored for
// identified callers, and carried flow state only for guests.
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.messagesHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Mensagem vazia."))
		return
	}

	flowReq := flow.Request{Message: req.Message}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		userID := claims.UserID
		flowReq.UserID = &userID
		flowReq.ConversationID = req.ConversationID
	} else {
		flowReq.FlowState = req.FlowState
	}

	resp, err := s.dispatcher.Handle(r.Context(), flowReq)
	if err != nil {
		slog.Error("Server.messagesHandler: dispatch failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Erro interno ao processar mensagem."))
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// conversationsHandler lists the caller's conversations, most recently
// active first.
func (s *Server) conversationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Authentication required"))
		return
	}
	convs, err := s.store.ListConversationsByUser(r.Context(), claims.UserID)
	if err != nil {
		slog.Error("Server.conversationsHandler: listing failed", "error", err, "userID", claims.UserID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Erro interno ao obter conversas."))
		return
	}
	listings := make([]models.ConversationListing, 0, len(convs))
	for _, c := range convs {
		listings = append(listings, models.ConversationListing{
			ID:    c.ID,
			Title: fmt.Sprintf("Conversa #%d", c.ID),
		})
	}
	writeJSONResponse(w, http.StatusOK, listings)
}

// historyHandler returns the ordered messages of one of the caller's
// conversations. Admins may read any conversation.
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Authentication required"))
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/chatbot/history/")
	conversationID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid conversation id"))
		return
	}
	conv, err := s.store.GetConversation(r.Context(), conversationID)
	if errors.Is(err, models.ErrNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}
	if err != nil {
		slog.Error("Server.historyHandler: lookup failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Erro interno ao obter histórico."))
		return
	}
	if conv.UserID != claims.UserID && !claims.IsAdmin {
		writeJSONResponse(w, http.StatusForbidden, models.Error("Conversation belongs to another user"))
		return
	}
	history, err := s.store.GetConversationHistory(r.Context(), conversationID)
	if err != nil {
		slog.Error("Server.historyHandler: history query failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Erro interno ao obter histórico."))
		return
	}
	writeJSONResponse(w, http.StatusOK, history)
}

// loginHandler exchanges email+password for a bearer token.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	user, err := s.store.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("Server.loginHandler: user lookup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Erro interno ao fazer login."))
		return
	}
	if user == nil || s.hasher.Compare(user.PasswordHash, req.Password) != nil {
		// Identical response for unknown email and wrong password.
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Email ou senha inválidos."))
		return
	}
	token, err := s.tokens.Issue(*user)
	if err != nil {
		slog.Error("Server.loginHandler: token issue failed", "error", err, "userID", user.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Erro interno ao fazer login."))
		return
	}
	slog.Info("Server.loginHandler: login succeeded", "userID", user.ID)
	writeJSONResponse(w, http.StatusOK, models.LoginResponse{Token: token, User: *user})
}
