package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/taskforge/apiserver/internal/services"
	"github.com/taskforge/apiserver/internal/store"
	"github.com/taskforge/apiserver/types"
)

const (
	maxMultipartMemory = 16 << 20
	// maxUploadReadBytes bounds how much of an upload is read into
	// memory: one byte past the limit is enough for the coordinator to
	// reject it.
	maxUploadReadBytes = 10<<20 + 1
	formFieldFile      = "file"
)

// AttachmentHandler provides HTTP handlers for task attachments.
type AttachmentHandler struct {
	taskService       *services.TaskService
	attachmentService *services.AttachmentService
}

// NewAttachmentHandler constructs a handler with the provided services.
func NewAttachmentHandler(taskService *services.TaskService, attachmentService *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{
		taskService:       taskService,
		attachmentService: attachmentService,
	}
}

// AttachmentRouter registers download and delete routes addressed by
// attachment ID. Resources owned by other users are reported as not
// found, matching the task routes.
func AttachmentRouter(
	r chi.Router,
	taskService *services.TaskService,
	attachmentService *services.AttachmentService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewAttachmentHandler(taskService, attachmentService)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Route("/{attachmentID}", func(r chi.Router) {
		r.Get("/download", handler.DownloadAttachment)
		r.Delete("/", handler.DeleteAttachment)
	})
}

// AttachmentListResponse is the attachment list payload.
type AttachmentListResponse struct {
	Items []types.Attachment `json:"items"`
	Total int                `json:"total"`
}

func (h *AttachmentHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	task, ok := h.resolveTask(w, r)
	if !ok {
		return
	}

	attachments, err := h.attachmentService.ListForTask(r.Context(), task.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list attachments")
		return
	}

	writeJSON(w, http.StatusOK, AttachmentListResponse{Items: attachments, Total: len(attachments)})
}

// UploadAttachment accepts a multipart upload for a task the caller
// owns and runs it through the attachment coordinator.
func (h *AttachmentHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	task, ok := h.resolveTask(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	filename, contentType, data, err := parseUploadFile(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attachment, err := h.attachmentService.Upload(r.Context(), task, filename, contentType, data)
	if err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to upload attachment")
		return
	}

	writeJSON(w, http.StatusCreated, attachment)
}

// DownloadAttachment redirects to a signed URL rather than streaming
// the bytes through the application tier.
func (h *AttachmentHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	attachment, ok := h.resolveAttachment(w, r)
	if !ok {
		return
	}

	url, err := h.attachmentService.DownloadURL(r.Context(), attachment)
	if err != nil {
		if errors.Is(err, services.ErrBlobMissing) {
			writeError(w, http.StatusNotFound, "file not found in storage")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to generate download link")
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

func (h *AttachmentHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	attachment, ok := h.resolveAttachment(w, r)
	if !ok {
		return
	}

	if err := h.attachmentService.Remove(r.Context(), attachment); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "attachment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete attachment")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AttachmentHandler) resolveTask(w http.ResponseWriter, r *http.Request) (types.Task, bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.Task{}, false
	}

	taskID, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return types.Task{}, false
	}

	task, err := h.taskService.Get(r.Context(), taskID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return types.Task{}, false
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch task")
		return types.Task{}, false
	}
	return task, true
}

func (h *AttachmentHandler) resolveAttachment(w http.ResponseWriter, r *http.Request) (types.Attachment, bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.Attachment{}, false
	}

	id, err := parseAttachmentID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return types.Attachment{}, false
	}

	attachment, err := h.attachmentService.GetForOwner(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "attachment not found")
			return types.Attachment{}, false
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch attachment")
		return types.Attachment{}, false
	}
	return attachment, true
}

func parseAttachmentID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "attachmentID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid attachment id")
	}
	return id, nil
}

func parseUploadFile(form *multipart.Form) (filename, contentType string, data []byte, err error) {
	if form == nil {
		return "", "", nil, errors.New("missing form data")
	}

	files := form.File[formFieldFile]
	if len(files) == 0 {
		return "", "", nil, errors.New("file is required")
	}
	if len(files) > 1 {
		return "", "", nil, errors.New("only one file is allowed")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	defer file.Close()

	data, err = io.ReadAll(io.LimitReader(file, maxUploadReadBytes))
	if err != nil {
		return "", "", nil, errors.New("failed to read upload")
	}

	return fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data, nil
}
