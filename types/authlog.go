package types

import "time"

// Authentication event types recorded in the audit trail.
const (
	AuthEventRegistration   = "registration"
	AuthEventLogin          = "login"
	AuthEventLogout         = "logout"
	AuthEventFailedLogin    = "failed_login"
	AuthEventPasswordChange = "password_change"
)

// AuthLog is an append-only audit row for an authentication event.
// Rows are immutable once written; there is no update or delete path.
type AuthLog struct {
	ID int64 `json:"id" db:"id"`

	// UserID references the acting user. Nil for failed logins,
	// where no account could be resolved.
	UserID *int64 `json:"user_id" db:"user_id"`

	EventType string    `json:"event_type" db:"event_type"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Success   bool      `json:"success" db:"success"`

	// Metadata holds additional event data, e.g. the attempted
	// email on a failed login.
	Metadata map[string]string `json:"metadata" db:"metadata"`
}
