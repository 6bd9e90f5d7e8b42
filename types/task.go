package types

import "time"

// Task priority levels, ordered high > medium > low.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Task status values.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Task represents a user's personal task.
type Task struct {
	// ID is the unique identifier of the task.
	ID int64 `json:"id" db:"id"`

	// OwnerID references the user who created the task. The owner is
	// the sole principal permitted to view or modify it, and is
	// immutable after creation.
	OwnerID int64 `json:"owner_id" db:"owner_id"`

	// Title is the task title (1-200 characters, non-blank after trim).
	Title string `json:"title" db:"title"`

	// Description is an optional free-form description (max 2000 characters).
	Description string `json:"description" db:"description"`

	// DueDate is the optional due date.
	DueDate *time.Time `json:"due_date" db:"due_date"`

	// Priority is one of high, medium, low.
	Priority string `json:"priority" db:"priority"`

	// Status is one of pending, completed.
	Status string `json:"status" db:"status"`

	// CreatedAt is the timestamp at which the task was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// CompletedAt is set exactly when the status transitions to
	// completed and cleared when it transitions back to pending.
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}

// Task list sort keys.
const (
	SortCreatedAt = "created_at"
	SortDueDate   = "due_date"
	SortPriority  = "priority"
)

// TaskFilter narrows and orders a task list query. Zero-value fields
// are ignored; the default order is newest first.
type TaskFilter struct {
	Status   string
	Priority string
	SortBy   string
}

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p string) bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// ValidStatus reports whether s is a known status value.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusCompleted
}
