package store

import (
	"database/sql"
	"fmt"

	"github.com/CompactDigital/AtendeBot/internal/models"
)

// nullableID converts an optional ticket reference to its SQL representation.
func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// idPtr converts a nullable SQL integer back to an optional reference.
func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	id := n.Int64
	return &id
}

// stringPtr converts a nullable SQL string back to an optional value.
func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

// rowScanner abstracts sql.Row and sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// userColumns is the column order expected by scanUser.
const userColumns = "id, username, email, phone, password_hash, is_admin, created_at"

// scanUser scans a user row in userColumns order.
func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	var phone sql.NullString
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &phone, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt); err != nil {
		return u, fmt.Errorf("scan user failed: %w", err)
	}
	u.Phone = stringPtr(phone)
	return u, nil
}

// ticketColumns is the column order expected by scanTicket, without the
// joined username.
const ticketColumns = "t.id, t.user_id, t.conversation_id, t.ticket_text, t.functionalities, t.deadline, t.estimated_budget, t.status, t.created_at"

// scanTicket scans a support ticket row in ticketColumns order, optionally
// followed by the joined username.
func scanTicket(row rowScanner, withUsername bool) (models.SupportTicket, error) {
	var t models.SupportTicket
	var functionalities, deadline, budget sql.NullString
	dest := []interface{}{
		&t.ID, &t.UserID, &t.ConversationID, &t.IdeaText,
		&functionalities, &deadline, &budget, &t.Status, &t.CreatedAt,
	}
	if withUsername {
		dest = append(dest, &t.Username)
	}
	if err := row.Scan(dest...); err != nil {
		return t, fmt.Errorf("scan ticket failed: %w", err)
	}
	t.Functionalities = functionalities.String
	t.Deadline = deadline.String
	t.EstimatedBudget = budget.String
	return t, nil
}
