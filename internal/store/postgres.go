// Package store provides storage backends for AtendeBot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/CompactDigital/AtendeBot/internal/models"
	"github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

// pqUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pqUniqueViolation = "23505"

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore FindUserByEmail failed", "error", err)
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, username, email string, phone *string, passwordHash string) (*models.User, error) {
	u := models.User{Username: username, Email: email, Phone: phone, PasswordHash: passwordHash}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, phone, password_hash) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		username, email, phone, passwordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return nil, models.ErrEmailTaken
		}
		slog.Error("PostgresStore CreateUser failed", "error", err, "email", email)
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	slog.Debug("PostgresStore CreateUser succeeded", "id", u.ID)
	return &u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		slog.Error("PostgresStore ListUsers query failed", "error", err)
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

func (s *PostgresStore) CreateConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	c := models.Conversation{UserID: userID, State: models.TicketStateNormal}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO chat_conversations (user_id, state) VALUES ($1, 'normal') RETURNING id, started_at, last_activity`,
		userID,
	).Scan(&c.ID, &c.StartedAt, &c.LastActivity)
	if err != nil {
		slog.Error("PostgresStore CreateConversation failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	slog.Debug("PostgresStore CreateConversation succeeded", "id", c.ID, "userID", userID)
	return &c, nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	var c models.Conversation
	var ticketID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, state, current_ticket_id, started_at, last_activity FROM chat_conversations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.UserID, &c.State, &ticketID, &c.StartedAt, &c.LastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query conversation %d: %w", id, err)
	}
	c.CurrentTicketID = idPtr(ticketID)
	return &c, nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, conversationID int64, sender models.MessageSender, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (conversation_id, sender_type, message_text) VALUES ($1, $2, $3)`,
		conversationID, sender, text,
	)
	if err != nil {
		slog.Error("PostgresStore SaveMessage failed", "error", err, "conversationID", conversationID, "sender", sender)
		return fmt.Errorf("failed to insert message for conversation %d: %w", conversationID, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE chat_conversations SET last_activity = NOW() WHERE id = $1`, conversationID,
	); err != nil {
		slog.Error("PostgresStore SaveMessage failed to touch conversation", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to update conversation activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetConversationHistory(ctx context.Context, conversationID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, sender_type, message_text, sent_at FROM chat_messages WHERE conversation_id = $1 ORDER BY sent_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		slog.Error("PostgresStore GetConversationHistory query failed", "error", err, "conversationID", conversationID)
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

func (s *PostgresStore) ListConversationsByUser(ctx context.Context, userID int64) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, state, current_ticket_id, started_at, last_activity FROM chat_conversations WHERE user_id = $1 ORDER BY last_activity DESC`,
		userID,
	)
	if err != nil {
		slog.Error("PostgresStore ListConversationsByUser query failed", "error", err, "userID", userID)
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

func (s *PostgresStore) ListAllConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.user_id, u.username, c.started_at, c.last_activity
		 FROM chat_conversations c JOIN users u ON u.id = c.user_id
		 ORDER BY c.last_activity DESC`,
	)
	if err != nil {
		slog.Error("PostgresStore ListAllConversations query failed", "error", err)
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

func (s *PostgresStore) GetConversationState(ctx context.Context, conversationID int64) (models.TicketState, *int64, error) {
	var state models.TicketState
	var ticketID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT state, current_ticket_id FROM chat_conversations WHERE id = $1`, conversationID,
	).Scan(&state, &ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		// Absent conversations default to the idle state.
		return models.TicketStateNormal, nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationState failed", "error", err, "conversationID", conversationID)
		return "", nil, fmt.Errorf("failed to query conversation state: %w", err)
	}
	return state, idPtr(ticketID), nil
}

func (s *PostgresStore) SetConversationState(ctx context.Context, conversationID int64, state models.TicketState, ticketID *int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chat_conversations SET state = $1, current_ticket_id = $2 WHERE id = $3`,
		state, nullableID(ticketID), conversationID,
	)
	if err != nil {
		slog.Error("PostgresStore SetConversationState failed", "error", err, "conversationID", conversationID, "state", state)
		return fmt.Errorf("failed to update conversation state: %w", err)
	}
	slog.Debug("PostgresStore SetConversationState succeeded", "conversationID", conversationID, "state", state)
	return nil
}

func (s *PostgresStore) CreateSupportTicket(ctx context.Context, userID, conversationID int64, ideaText string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO support_tickets (user_id, conversation_id, ticket_text) VALUES ($1, $2, $3) RETURNING id`,
		userID, conversationID, ideaText,
	).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore CreateSupportTicket failed", "error", err, "userID", userID, "conversationID", conversationID)
		return 0, fmt.Errorf("failed to insert support ticket: %w", err)
	}
	slog.Debug("PostgresStore CreateSupportTicket succeeded", "id", id)
	return id, nil
}

func (s *PostgresStore) UpdateTicketField(ctx context.Context, ticketID int64, field models.TicketField, value string) error {
	if !field.Valid() {
		slog.Error("PostgresStore UpdateTicketField rejected field outside closed set", "field", field)
		return fmt.Errorf("%w: %q", models.ErrInvalidTicketField, field)
	}
	// field is restricted to the TicketField constants above; caller input
	// never reaches the column name.
	query := fmt.Sprintf(`UPDATE support_tickets SET %s = $1 WHERE id = $2`, field)
	if _, err := s.db.ExecContext(ctx, query, value, ticketID); err != nil {
		slog.Error("PostgresStore UpdateTicketField failed", "error", err, "ticketID", ticketID, "field", field)
		return fmt.Errorf("failed to update ticket field %s: %w", field, err)
	}
	return nil
}

func (s *PostgresStore) ListTicketsByUser(ctx context.Context, userID int64) ([]models.SupportTicket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ticketColumns+`, u.username
		 FROM support_tickets t JOIN users u ON u.id = t.user_id
		 WHERE t.user_id = $1 ORDER BY t.created_at DESC`,
		userID,
	)
	if err != nil {
		slog.Error("PostgresStore ListTicketsByUser query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()
	return collectTickets(rows)
}

func (s *PostgresStore) ListAllTickets(ctx context.Context) ([]models.SupportTicket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ticketColumns+`, u.username
		 FROM support_tickets t JOIN users u ON u.id = t.user_id
		 ORDER BY t.created_at DESC`,
	)
	if err != nil {
		slog.Error("PostgresStore ListAllTickets query failed", "error", err)
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()
	return collectTickets(rows)
}

func collectTickets(rows *sql.Rows) ([]models.SupportTicket, error) {
	var tickets []models.SupportTicket
	for rows.Next() {
		t, err := scanTicket(rows, true)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ticket rows: %w", err)
	}
	return tickets, nil
}

func (s *PostgresStore) GetStatistics(ctx context.Context) (models.Statistics, error) {
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
			slog.Error("PostgresStore GetStatistics failed", "error", err, "query", c.query)
			return stats, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	return stats, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
