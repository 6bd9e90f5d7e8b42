package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/taskforge/apiserver/types"
)

// AuthLogRepository appends authentication audit rows. The log is
// append-only: no update or delete methods exist.
type AuthLogRepository struct {
	db *sql.DB
}

func NewAuthLogRepository(db *sql.DB) *AuthLogRepository {
	return &AuthLogRepository{db: db}
}

func (r *AuthLogRepository) Insert(ctx context.Context, entry types.AuthLog) (types.AuthLog, error) {
	entry.Timestamp = time.Now()
	if entry.Metadata == nil {
		entry.Metadata = map[string]string{}
	}

	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return types.AuthLog{}, err
	}

	const query = `
		INSERT INTO auth_logs (user_id, event_type, ip_address, user_agent, timestamp, success, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		entry.UserID,
		entry.EventType,
		entry.IPAddress,
		entry.UserAgent,
		entry.Timestamp,
		entry.Success,
		metadata,
	).Scan(&entry.ID); err != nil {
		return types.AuthLog{}, err
	}
	return entry, nil
}

// ListForUser returns a user's audit rows, newest first. Used by the
// admin surface only.
func (r *AuthLogRepository) ListForUser(ctx context.Context, userID int64, limit int) ([]types.AuthLog, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, user_id, event_type, ip_address, user_agent, timestamp, success, metadata
		FROM auth_logs
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []types.AuthLog{}
	for rows.Next() {
		var entry types.AuthLog
		var userID sql.NullInt64
		var metadata []byte
		if err := rows.Scan(
			&entry.ID,
			&userID,
			&entry.EventType,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.Timestamp,
			&entry.Success,
			&metadata,
		); err != nil {
			return nil, err
		}
		if userID.Valid {
			id := userID.Int64
			entry.UserID = &id
		}
		_ = json.Unmarshal(metadata, &entry.Metadata)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
