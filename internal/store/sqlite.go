// Package store provides storage backends for AtendeBot.
//
// This file implements the SQLite-backed store used for local and
// single-node deployments.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/CompactDigital/AtendeBot/internal/models"
	"github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore FindUserByEmail failed", "error", err)
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, username, email string, phone *string, passwordHash string) (*models.User, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, phone, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		username, email, phone, passwordHash, now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, models.ErrEmailTaken
		}
		slog.Error("SQLiteStore CreateUser failed", "error", err, "email", email)
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted user id: %w", err)
	}
	slog.Debug("SQLiteStore CreateUser succeeded", "id", id)
	return &models.User{ID: id, Username: username, Email: email, Phone: phone, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		slog.Error("SQLiteStore ListUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()
	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return users, nil
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_conversations (user_id, state, started_at, last_activity) VALUES (?, 'normal', ?, ?)`,
		userID, now, now,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateConversation failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted conversation id: %w", err)
	}
	slog.Debug("SQLiteStore CreateConversation succeeded", "id", id, "userID", userID)
	return &models.Conversation{ID: id, UserID: userID, State: models.TicketStateNormal, StartedAt: now, LastActivity: now}, nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	var c models.Conversation
	var ticketID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, state, current_ticket_id, started_at, last_activity FROM chat_conversations WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.UserID, &c.State, &ticketID, &c.StartedAt, &c.LastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query conversation %d: %w", id, err)
	}
	c.CurrentTicketID = idPtr(ticketID)
	return &c, nil
}

func (s *SQLiteStore) SaveMessage(ctx context.Context, conversationID int64, sender models.MessageSender, text string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (conversation_id, sender_type, message_text, sent_at) VALUES (?, ?, ?, ?)`,
		conversationID, sender, text, now,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveMessage failed", "error", err, "conversationID", conversationID, "sender", sender)
		return fmt.Errorf("failed to insert message for conversation %d: %w", conversationID, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE chat_conversations SET last_activity = ? WHERE id = ?`, now, conversationID,
	); err != nil {
		slog.Error("SQLiteStore SaveMessage failed to touch conversation", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to update conversation activity: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetConversationHistory(ctx context.Context, conversationID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, sender_type, message_text, sent_at FROM chat_messages WHERE conversation_id = ? ORDER BY sent_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		slog.Error("SQLiteStore GetConversationHistory query failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()
	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Text, &m.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return msgs, nil
}

func (s *SQLiteStore) ListConversationsByUser(ctx context.Context, userID int64) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, state, current_ticket_id, started_at, last_activity FROM chat_conversations WHERE user_id = ? ORDER BY last_activity DESC`,
		userID,
	)
	if err != nil {
		slog.Error("SQLiteStore ListConversationsByUser query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()
	var convs []models.Conversation
	for rows.Next() {
		var c models.Conversation
		var ticketID sql.NullInt64
		if err := rows.Scan(&c.ID, &c.UserID, &c.State, &ticketID, &c.StartedAt, &c.LastActivity); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		c.CurrentTicketID = idPtr(ticketID)
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	return convs, nil
}

func (s *SQLiteStore) ListAllConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.user_id, u.username, c.started_at, c.last_activity
		 FROM chat_conversations c JOIN users u ON u.id = c.user_id
		 ORDER BY c.last_activity DESC`,
	)
	if err != nil {
		slog.Error("SQLiteStore ListAllConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()
	var out []models.ConversationSummary
	for rows.Next() {
		var c models.ConversationSummary
		if err := rows.Scan(&c.ID, &c.UserID, &c.Username, &c.StartedAt, &c.LastActivity); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) GetConversationState(ctx context.Context, conversationID int64) (models.TicketState, *int64, error) {
	var state models.TicketState
	var ticketID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT state, current_ticket_id FROM chat_conversations WHERE id = ?`, conversationID,
	).Scan(&state, &ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		// Absent conversations default to the idle state.
		return models.TicketStateNormal, nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationState failed", "error", err, "conversationID", conversationID)
		return "", nil, fmt.Errorf("failed to query conversation state: %w", err)
	}
	return state, idPtr(ticketID), nil
}

func (s *SQLiteStore) SetConversationState(ctx context.Context, conversationID int64, state models.TicketState, ticketID *int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chat_conversations SET state = ?, current_ticket_id = ? WHERE id = ?`,
		state, nullableID(ticketID), conversationID,
	)
	if err != nil {
		slog.Error("SQLiteStore SetConversationState failed", "error", err, "conversationID", conversationID, "state", state)
		return fmt.Errorf("failed to update conversation state: %w", err)
	}
	slog.Debug("SQLiteStore SetConversationState succeeded", "conversationID", conversationID, "state", state)
	return nil
}

func (s *SQLiteStore) CreateSupportTicket(ctx context.Context, userID, conversationID int64, ideaText string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO support_tickets (user_id, conversation_id, ticket_text, created_at) VALUES (?, ?, ?, ?)`,
		userID, conversationID, ideaText, time.Now(),
	)
	if err != nil {
		slog.Error("SQLiteStore CreateSupportTicket failed", "error", err, "userID", userID, "conversationID", conversationID)
		return 0, fmt.Errorf("failed to insert support ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted ticket id: %w", err)
	}
	slog.Debug("SQLiteStore CreateSupportTicket succeeded", "id", id)
	return id, nil
}

func (s *SQLiteStore) UpdateTicketField(ctx context.Context, ticketID int64, field models.TicketField, value string) error {
	if !field.Valid() {
		slog.Error("SQLiteStore UpdateTicketField rejected field outside closed set", "field", field)
		return fmt.Errorf("%w: %q", models.ErrInvalidTicketField, field)
	}
	// field is restricted to the TicketField constants above; caller input
	// never reaches the column name.
	query := fmt.Sprintf(`UPDATE support_tickets SET %s = ? WHERE id = ?`, field)
	if _, err := s.db.ExecContext(ctx, query, value, ticketID); err != nil {
		slog.Error("SQLiteStore UpdateTicketField failed", "error", err, "ticketID", ticketID, "field", field)
		return fmt.Errorf("failed to update ticket field %s: %w", field, err)
	}
	return nil
}

func (s *SQLiteStore) ListTicketsByUser(ctx context.Context, userID int64) ([]models.SupportTicket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ticketColumns+`, u.username
		 FROM support_tickets t JOIN users u ON u.id = t.user_id
		 WHERE t.user_id = ? ORDER BY t.created_at DESC`,
		userID,
	)
	if err != nil {
		slog.Error("SQLiteStore ListTicketsByUser query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()
	return collectTickets(rows)
}

func (s *SQLiteStore) ListAllTickets(ctx context.Context) ([]models.SupportTicket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ticketColumns+`, u.username
		 FROM support_tickets t JOIN users u ON u.id = t.user_id
		 ORDER BY t.created_at DESC`,
	)
	if err != nil {
		slog.Error("SQLiteStore ListAllTickets query failed", "error", err)
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()
	return collectTickets(rows)
}

func (s *SQLiteStore) GetStatistics(ctx context.Context) (models.Statistics, error) {
	var stats models.Statistics
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM users`, &stats.Users},
		{`SELECT COUNT(*) FROM chat_conversations`, &stats.Conversations},
		{`SELECT COUNT(*) FROM chat_messages`, &stats.Messages},
		{`SELECT COUNT(*) FROM support_tickets`, &stats.Tickets},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			slog.Error("SQLiteStore GetStatistics failed", "error", err, "query", c.query)
			return stats, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	return stats, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
