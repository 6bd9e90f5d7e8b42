package types

import "time"

// Attachment stores metadata about a file uploaded to the blob backend
// on behalf of a task. The bytes themselves live in object storage under
// BlobName; the row exists only after a successful upload.
type Attachment struct {
	ID int64 `json:"id" db:"id"`

	// TaskID references the owning task. Rows are removed when the
	// task is deleted.
	TaskID int64 `json:"task_id" db:"task_id"`

	// FileName is the original filename as uploaded.
	FileName string `json:"file_name" db:"file_name"`

	// BlobName is the globally unique storage key,
	// {task_id}/{timestamp}_{token}_{sanitized_filename}.
	BlobName string `json:"blob_name" db:"blob_name"`

	// FileSize is the size in bytes, always > 0.
	FileSize int64 `json:"file_size" db:"file_size"`

	// ContentType is the MIME type of the file.
	ContentType string `json:"content_type" db:"content_type"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
