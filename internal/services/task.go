package services

import (
	"context"
	"strings"
	"time"

	"github.com/taskforge/apiserver/types"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
)

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	GetForOwner(ctx context.Context, id, ownerID int64) (types.Task, error)
	List(ctx context.Context, ownerID int64, filter types.TaskFilter) ([]types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, task types.Task) (types.Task, error)
	Delete(ctx context.Context, id, ownerID int64) error
}

// TaskInput is the caller-supplied portion of a task.
type TaskInput struct {
	Title       string
	Description string
	DueDate     *time.Time
	Priority    string
	Status      string
}

// TaskService encapsulates task use-cases. All operations are scoped to
// the owning user; a task belonging to someone else is not found.
type TaskService struct {
	repo        TaskRepository
	attachments *AttachmentService
}

func NewTaskService(repo TaskRepository, attachments *AttachmentService) *TaskService {
	return &TaskService{repo: repo, attachments: attachments}
}

func validateTaskInput(input TaskInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return Validation("title", "cannot be empty")
	}
	if len(input.Title) > maxTitleLength {
		return Validation("title", "cannot exceed 200 characters")
	}
	if len(input.Description) > maxDescriptionLength {
		return Validation("description", "cannot exceed 2000 characters")
	}
	if input.Priority != "" && !types.ValidPriority(input.Priority) {
		return Validation("priority", "must be one of high, medium, low")
	}
	if input.Status != "" && !types.ValidStatus(input.Status) {
		return Validation("status", "must be one of pending, completed")
	}
	return nil
}

func (s *TaskService) Get(ctx context.Context, id, ownerID int64) (types.Task, error) {
	return s.repo.GetForOwner(ctx, id, ownerID)
}

func (s *TaskService) List(ctx context.Context, ownerID int64, filter types.TaskFilter) ([]types.Task, error) {
	if filter.Status != "" && !types.ValidStatus(filter.Status) {
		return nil, Validation("status", "must be one of pending, completed")
	}
	if filter.Priority != "" && !types.ValidPriority(filter.Priority) {
		return nil, Validation("priority", "must be one of high, medium, low")
	}
	return s.repo.List(ctx, ownerID, filter)
}

func (s *TaskService) Create(ctx context.Context, ownerID int64, input TaskInput) (types.Task, error) {
	if err := validateTaskInput(input); err != nil {
		return types.Task{}, err
	}

	task := types.Task{
		OwnerID:     ownerID,
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Priority:    input.Priority,
		Status:      input.Status,
	}
	if task.Priority == "" {
		task.Priority = types.PriorityMedium
	}
	if task.Status == "" {
		task.Status = types.StatusPending
	}
	if task.Status == types.StatusCompleted {
		now := time.Now()
		task.CompletedAt = &now
	}

	return s.repo.Create(ctx, task)
}

// Update applies input to an existing task. CompletedAt follows the
// status: set once on the transition to completed, cleared on the
// transition back to pending. Repeating a transition leaves it alone.
func (s *TaskService) Update(ctx context.Context, id, ownerID int64, input TaskInput) (types.Task, error) {
	if err := validateTaskInput(input); err != nil {
		return types.Task{}, err
	}

	task, err := s.repo.GetForOwner(ctx, id, ownerID)
	if err != nil {
		return types.Task{}, err
	}

	task.Title = input.Title
	task.Description = input.Description
	task.DueDate = input.DueDate
	if input.Priority != "" {
		task.Priority = input.Priority
	}
	if input.Status != "" {
		task.Status = input.Status
	}

	switch task.Status {
	case types.StatusCompleted:
		if task.CompletedAt == nil {
			now := time.Now()
			task.CompletedAt = &now
		}
	case types.StatusPending:
		task.CompletedAt = nil
	}

	return s.repo.Update(ctx, task)
}

// Delete removes a task after removing each of its attachments through
// the coordinator, so their blobs get the same best-effort cleanup as a
// direct attachment delete. The row cascade would orphan every blob.
func (s *TaskService) Delete(ctx context.Context, id, ownerID int64) error {
	task, err := s.repo.GetForOwner(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if s.attachments != nil {
		attachments, err := s.attachments.ListForTask(ctx, task.ID)
		if err != nil {
			return err
		}
		for _, attachment := range attachments {
			if err := s.attachments.Remove(ctx, attachment); err != nil {
				return err
			}
		}
	}

	return s.repo.Delete(ctx, id, ownerID)
}
