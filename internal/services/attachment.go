package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/taskforge/apiserver/config"
	"github.com/taskforge/apiserver/types"
)

const (
	blobTimestampLayout = "20060102150405"
	blobTokenLength     = 8
	// maxFilenameLength bounds the sanitized filename portion of a blob
	// key, extension included.
	maxFilenameLength = 100
)

var (
	filenameStripPattern = regexp.MustCompile(`[^a-zA-Z0-9_\s-]`)
	filenameSpacePattern = regexp.MustCompile(`\s+`)

	allowedExtensions = map[string]bool{
		"pdf": true, "jpg": true, "jpeg": true, "png": true, "gif": true,
		"doc": true, "docx": true, "xls": true, "xlsx": true,
		"txt": true, "csv": true, "zip": true,
	}
	allowedMIMETypes = map[string]bool{
		"application/pdf":    true,
		"image/jpeg":         true,
		"image/png":          true,
		"image/gif":          true,
		"application/msword": true,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
		"application/vnd.ms-excel": true,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
		"text/plain":                   true,
		"text/csv":                     true,
		"application/zip":              true,
		"application/x-zip-compressed": true,
	}
)

// AttachmentRepository defines persistence operations for attachments.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error)
	GetForOwner(ctx context.Context, id, ownerID int64) (types.Attachment, error)
	ListForTask(ctx context.Context, taskID int64) ([]types.Attachment, error)
	CountForTask(ctx context.Context, taskID int64) (int, error)
	Delete(ctx context.Context, id int64) error
}

// BlobStorage is the slice of the storage layer the coordinator uses.
type BlobStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Size(ctx context.Context, key string) (int64, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// AttachmentService coordinates attachment metadata with the blob
// backend. The two stores are kept consistent by ordering, not by a
// transaction: a row is only created after its blob exists, and a row
// is always removed even when its blob cannot be.
type AttachmentService struct {
	repo        AttachmentRepository
	blobs       BlobStorage
	maxFileSize int64
	maxPerTask  int
	urlTTL      time.Duration
}

func NewAttachmentService(repo AttachmentRepository, blobs BlobStorage, cfg config.UploadConfig) *AttachmentService {
	svc := &AttachmentService{
		repo:        repo,
		blobs:       blobs,
		maxFileSize: cfg.MaxFileSize,
		maxPerTask:  cfg.MaxPerTask,
		urlTTL:      cfg.SignedURLTTL,
	}
	if svc.maxFileSize <= 0 {
		svc.maxFileSize = 10 * 1024 * 1024
	}
	if svc.maxPerTask <= 0 {
		svc.maxPerTask = 5
	}
	if svc.urlTTL <= 0 {
		svc.urlTTL = time.Hour
	}
	return svc
}

// sanitizeFilename strips characters outside [alphanumeric, space,
// hyphen, underscore], collapses whitespace to underscores, trims
// leading and trailing underscores/hyphens, lowercases the result, and
// truncates it to maxFilenameLength while preserving the extension.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)

	name = filenameStripPattern.ReplaceAllString(name, "")
	name = filenameSpacePattern.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_-")

	maxName := maxFilenameLength - len(ext)
	if len(name) > maxName {
		name = name[:maxName]
	}

	return strings.ToLower(name + ext)
}

// GenerateBlobName produces a key of the form
// {task_id}/{YYYYMMDDHHMMSS}_{8-hex-token}_{sanitized_filename}.
// The timestamp keeps keys sortable and traceable to their task; the
// random token makes collisions across concurrent uploads negligible
// without a coordination step.
func (s *AttachmentService) GenerateBlobName(taskID int64, filename string) string {
	timestamp := time.Now().UTC().Format(blobTimestampLayout)
	token := strings.ReplaceAll(uuid.New().String(), "-", "")[:blobTokenLength]
	return fmt.Sprintf("%d/%s_%s_%s", taskID, timestamp, token, sanitizeFilename(filename))
}

func fileExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return strings.TrimPrefix(ext, ".")
}

// validateFile applies the upload gates: non-empty, within the size
// limit, an allowed extension, and a sniffed MIME type on the allowlist.
// Extension and content checks are independent; both must pass.
func (s *AttachmentService) validateFile(filename string, data []byte) error {
	if len(data) == 0 {
		return Validation("file", "file is empty")
	}
	if int64(len(data)) > s.maxFileSize {
		return Validation("file", fmt.Sprintf("file size exceeds %d byte limit", s.maxFileSize))
	}

	ext := fileExtension(filename)
	if ext == "" {
		return Validation("file", "file has no extension")
	}
	if !allowedExtensions[ext] {
		return Validation("file", fmt.Sprintf("file extension %q is not allowed", ext))
	}

	detected := mimetype.Detect(data).String()
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = strings.TrimSpace(detected[:i])
	}
	if !allowedMIMETypes[detected] {
		// Plain text and CSV content sniffs inconsistently; fall back
		// to the already-validated extension for those.
		textual := detected == "application/octet-stream" || strings.HasPrefix(detected, "text/")
		if !(textual && (ext == "txt" || ext == "csv")) {
			return Validation("file", fmt.Sprintf("file content type %q is not allowed", detected))
		}
	}

	return nil
}

// Upload runs the attachment create sequence in order: validate, check
// the per-task cap, generate a key, upload the bytes, then create the
// row. A failed upload aborts before any row exists; a failed insert
// after a successful upload leaves an orphaned blob, which is logged
// and accepted rather than compensated.
func (s *AttachmentService) Upload(ctx context.Context, task types.Task, filename, contentType string, data []byte) (types.Attachment, error) {
	if err := s.validateFile(filename, data); err != nil {
		return types.Attachment{}, err
	}

	count, err := s.repo.CountForTask(ctx, task.ID)
	if err != nil {
		return types.Attachment{}, err
	}
	if count >= s.maxPerTask {
		return types.Attachment{}, Validation("file", fmt.Sprintf("maximum %d attachments per task", s.maxPerTask))
	}

	if strings.TrimSpace(contentType) == "" {
		contentType = mimetype.Detect(data).String()
	}

	blobName := s.GenerateBlobName(task.ID, filename)

	if err := s.blobs.Put(ctx, blobName, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.Attachment{}, fmt.Errorf("upload blob %s: %w", blobName, err)
	}

	attachment, err := s.repo.Create(ctx, types.Attachment{
		TaskID:      task.ID,
		FileName:    filename,
		BlobName:    blobName,
		FileSize:    int64(len(data)),
		ContentType: contentType,
	})
	if err != nil {
		slog.Error("attachment insert failed after upload, blob orphaned",
			"blob_name", blobName, "task_id", task.ID, "error", err)
		return types.Attachment{}, err
	}

	return attachment, nil
}

// Remove deletes the attachment row after a best-effort blob deletion.
// Backend failures are logged and swallowed; the row is removed in
// every case. An orphaned blob is cleanable later, a row pointing at a
// deleted blob is not.
func (s *AttachmentService) Remove(ctx context.Context, attachment types.Attachment) error {
	exists, err := s.blobs.Exists(ctx, attachment.BlobName)
	switch {
	case err != nil:
		slog.Error("blob existence check failed", "blob_name", attachment.BlobName, "error", err)
	case exists:
		if _, err := s.blobs.Delete(ctx, attachment.BlobName); err != nil {
			slog.Error("blob delete failed", "blob_name", attachment.BlobName, "error", err)
		}
	default:
		slog.Warn("blob already absent", "blob_name", attachment.BlobName, "attachment_id", attachment.ID)
	}

	return s.repo.Delete(ctx, attachment.ID)
}

// DownloadURL verifies the blob still exists and returns a signed URL
// instead of streaming bytes through the application tier.
func (s *AttachmentService) DownloadURL(ctx context.Context, attachment types.Attachment) (string, error) {
	exists, err := s.blobs.Exists(ctx, attachment.BlobName)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", ErrBlobMissing
	}
	return s.blobs.SignedURL(ctx, attachment.BlobName, s.urlTTL)
}

func (s *AttachmentService) GetForOwner(ctx context.Context, id, ownerID int64) (types.Attachment, error) {
	return s.repo.GetForOwner(ctx, id, ownerID)
}

func (s *AttachmentService) ListForTask(ctx context.Context, taskID int64) ([]types.Attachment, error) {
	return s.repo.ListForTask(ctx, taskID)
}
