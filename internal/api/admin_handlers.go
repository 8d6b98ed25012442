// Package api provides the admin dashboard endpoints. All handlers here are
// mounted behind Require + RequireAdmin.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/CompactDigital/AtendeBot/internal/models"
)

func (s *Server) adminUsersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		slog.Error("Server.adminUsersHandler: listing failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Erro interno ao obter usuários."))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(users))
}

func (s *Server) adminStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.store.GetStatistics(r.Context())
	if err != nil {
		slog.Error("Server.adminStatsHandler: stats query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Erro interno ao obter estatísticas."))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

func (s *Server) adminConversationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	convs, err := s.store.ListAllConversations(r.Context())
	if err != nil {
		slog.Error("Server.adminConversationsHandler: listing failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Erro interno ao obter conversas."))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(convs))
}

// adminConversationMessagesHandler serves
// GET /admin/conversations/{id}/messages.
func (s *Server) adminConversationMessagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/admin/conversations/")
	idStr, ok := strings.CutSuffix(path, "/messages")
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown admin resource"))
		return
	}
	conversationID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid conversation id"))
		return
	}
	msgs, err := s.store.GetConversationHistory(r.Context(), conversationID)
	if err != nil {
		slog.Error("Server.adminConversationMessagesHandler: history query failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Erro interno ao obter mensagens."))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(msgs))
}

// adminUserScopedHandler serves GET /admin/users/{id}/conversations and
// GET /admin/users/{id}/tickets.
func (s *Server) adminUserScopedHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/admin/users/")
	idStr, resource, ok := strings.Cut(path, "/")
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown admin resource"))
		return
	}
	userID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid user id"))
		return
	}
	switch resource {
	case "conversations":
		convs, err := s.store.ListConversationsByUser(r.Context(), userID)
		if err != nil {
			slog.Error("Server.adminUserScopedHandler: conversation listing failed", "error", err, "userID", userID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Erro interno ao obter conversas."))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(convs))
	case "tickets":
		tickets, err := s.store.ListTicketsByUser(r.Context(), userID)
		if err != nil {
			slog.Error("Server.adminUserScopedHandler: ticket listing failed", "error", err, "userID", userID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Erro interno ao obter chamados."))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(tickets))
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown admin resource"))
	}
}

func (s *Server) adminTicketsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tickets, err := s.store.ListAllTickets(r.Context())
	if err != nil {
		slog.Error("Server.adminTicketsHandler: listing failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Erro interno ao obter chamados."))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(tickets))
}
