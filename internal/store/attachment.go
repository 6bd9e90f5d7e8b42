package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskforge/apiserver/types"
)

// AttachmentRepository handles persistence for attachment metadata.
type AttachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

const attachmentColumns = `id, task_id, file_name, blob_name, file_size, content_type, created_at`

func (r *AttachmentRepository) Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error) {
	attachment.CreatedAt = time.Now()

	const query = `
		INSERT INTO attachments (task_id, file_name, blob_name, file_size, content_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		attachment.TaskID,
		attachment.FileName,
		attachment.BlobName,
		attachment.FileSize,
		attachment.ContentType,
		attachment.CreatedAt,
	).Scan(&attachment.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Attachment{}, ErrDuplicate
		}
		return types.Attachment{}, err
	}
	return attachment, nil
}

// GetForOwner resolves an attachment through its task so that another
// user's attachment is indistinguishable from a missing one.
func (r *AttachmentRepository) GetForOwner(ctx context.Context, id, ownerID int64) (types.Attachment, error) {
	const query = `
		SELECT a.id, a.task_id, a.file_name, a.blob_name, a.file_size, a.content_type, a.created_at
		FROM attachments a
		JOIN tasks t ON t.id = a.task_id
		WHERE a.id = $1 AND t.owner_id = $2`
	var attachment types.Attachment
	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(
		&attachment.ID,
		&attachment.TaskID,
		&attachment.FileName,
		&attachment.BlobName,
		&attachment.FileSize,
		&attachment.ContentType,
		&attachment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Attachment{}, ErrNotFound
		}
		return types.Attachment{}, err
	}
	return attachment, nil
}

func (r *AttachmentRepository) ListForTask(ctx context.Context, taskID int64) ([]types.Attachment, error) {
	const query = `
		SELECT ` + attachmentColumns + `
		FROM attachments
		WHERE task_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := []types.Attachment{}
	for rows.Next() {
		var attachment types.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.TaskID,
			&attachment.FileName,
			&attachment.BlobName,
			&attachment.FileSize,
			&attachment.ContentType,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	return attachments, rows.Err()
}

func (r *AttachmentRepository) CountForTask(ctx context.Context, taskID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM attachments WHERE task_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, taskID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AttachmentRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM attachments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
