package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskforge/apiserver/internal/store"
	"github.com/taskforge/apiserver/types"
)

type fakeTaskRepo struct {
	tasks  map[int64]types.Task
	nextID int64
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[int64]types.Task{}}
}

func (f *fakeTaskRepo) GetForOwner(ctx context.Context, id, ownerID int64) (types.Task, error) {
	task, ok := f.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return types.Task{}, store.ErrNotFound
	}
	return task, nil
}

func (f *fakeTaskRepo) List(ctx context.Context, ownerID int64, filter types.TaskFilter) ([]types.Task, error) {
	result := []types.Task{}
	for _, task := range f.tasks {
		if task.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && task.Priority != filter.Priority {
			continue
		}
		result = append(result, task)
	}
	return result, nil
}

func (f *fakeTaskRepo) Create(ctx context.Context, task types.Task) (types.Task, error) {
	f.nextID++
	task.ID = f.nextID
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeTaskRepo) Update(ctx context.Context, task types.Task) (types.Task, error) {
	current, ok := f.tasks[task.ID]
	if !ok || current.OwnerID != task.OwnerID {
		return types.Task{}, store.ErrNotFound
	}
	task.UpdatedAt = time.Now()
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeTaskRepo) Delete(ctx context.Context, id, ownerID int64) error {
	task, ok := f.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func TestCreateTaskDefaults(t *testing.T) {
	svc := NewTaskService(newFakeTaskRepo(), nil)

	task, err := svc.Create(context.Background(), 1, TaskInput{Title: "Buy groceries"})
	require.NoError(t, err)

	assert.Equal(t, types.PriorityMedium, task.Priority)
	assert.Equal(t, types.StatusPending, task.Status)
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, int64(1), task.OwnerID)
}

func TestCreateTaskCompleted(t *testing.T) {
	svc := NewTaskService(newFakeTaskRepo(), nil)

	task, err := svc.Create(context.Background(), 1, TaskInput{Title: "Done already", Status: types.StatusCompleted})
	require.NoError(t, err)
	assert.NotNil(t, task.CompletedAt)
}

func TestCreateTaskValidation(t *testing.T) {
	svc := NewTaskService(newFakeTaskRepo(), nil)

	tests := []struct {
		name  string
		input TaskInput
		field string
	}{
		{"empty title", TaskInput{Title: "   "}, "title"},
		{"title too long", TaskInput{Title: strings.Repeat("a", 201)}, "title"},
		{"description too long", TaskInput{Title: "ok", Description: strings.Repeat("a", 2001)}, "description"},
		{"bad priority", TaskInput{Title: "ok", Priority: "urgent"}, "priority"},
		{"bad status", TaskInput{Title: "ok", Status: "done"}, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var vErr *ValidationError
			_, err := svc.Create(context.Background(), 1, tt.input)
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestUpdateTaskCompletionTransitions(t *testing.T) {
	svc := NewTaskService(newFakeTaskRepo(), nil)

	task, err := svc.Create(context.Background(), 1, TaskInput{Title: "Write report"})
	require.NoError(t, err)
	require.Nil(t, task.CompletedAt)

	// pending -> completed sets the timestamp.
	task, err = svc.Update(context.Background(), task.ID, 1, TaskInput{Title: "Write report", Status: types.StatusCompleted})
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)
	completedAt := *task.CompletedAt

	// completed -> completed leaves the original timestamp alone.
	task, err = svc.Update(context.Background(), task.ID, 1, TaskInput{Title: "Write report", Status: types.StatusCompleted})
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, completedAt, *task.CompletedAt)

	// completed -> pending clears it.
	task, err = svc.Update(context.Background(), task.ID, 1, TaskInput{Title: "Write report", Status: types.StatusPending})
	require.NoError(t, err)
	assert.Nil(t, task.CompletedAt)
}

func TestTaskOwnerScoping(t *testing.T) {
	svc := NewTaskService(newFakeTaskRepo(), nil)

	task, err := svc.Create(context.Background(), 1, TaskInput{Title: "Private"})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), task.ID, 2)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Update(context.Background(), task.ID, 2, TaskInput{Title: "Hijacked"})
	require.ErrorIs(t, err, store.ErrNotFound)

	err = svc.Delete(context.Background(), task.ID, 2)
	require.ErrorIs(t, err, store.ErrNotFound)

	// The owner still sees the untouched task.
	got, err := svc.Get(context.Background(), task.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "Private", got.Title)
}

func TestListTaskFilterValidation(t *testing.T) {
	svc := NewTaskService(newFakeTaskRepo(), nil)

	var vErr *ValidationError
	_, err := svc.List(context.Background(), 1, types.TaskFilter{Status: "archived"})
	require.ErrorAs(t, err, &vErr)

	_, err = svc.List(context.Background(), 1, types.TaskFilter{Priority: "urgent"})
	require.ErrorAs(t, err, &vErr)
}

func TestDeleteTaskRemovesAttachmentBlobs(t *testing.T) {
	taskRepo := newFakeTaskRepo()
	attachmentRepo := newFakeAttachmentRepo()
	blobs := newFakeBlobStore()
	attachmentSvc := newTestAttachmentService(attachmentRepo, blobs)
	svc := NewTaskService(taskRepo, attachmentSvc)

	task, err := svc.Create(context.Background(), 1, TaskInput{Title: "With files"})
	require.NoError(t, err)

	_, err = attachmentSvc.Upload(context.Background(), task, "photo.png", "image/png", pngBytes(256))
	require.NoError(t, err)
	_, err = attachmentSvc.Upload(context.Background(), task, "notes.txt", "", []byte("notes"))
	require.NoError(t, err)
	require.Len(t, blobs.objects, 2)

	require.NoError(t, svc.Delete(context.Background(), task.ID, 1))

	assert.Empty(t, blobs.objects, "task delete must clean up every blob")
	assert.Empty(t, attachmentRepo.attachments)
	_, err = svc.Get(context.Background(), task.ID, 1)
	require.ErrorIs(t, err, store.ErrNotFound)
}
