package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/taskforge/apiserver/config"
	"github.com/taskforge/apiserver/internal/services"
	"github.com/taskforge/apiserver/internal/store"
	"github.com/taskforge/apiserver/types"
)

const testJWTSecret = "test-secret"

type fakeUserRepo struct {
	users  map[int64]types.User
	nextID int64
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	f.nextID++
	user.ID = f.nextID
	user.DateJoined = time.Now()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.LastLogin = &at
	f.users[id] = user
	return nil
}

type fakeAuthLogRepo struct {
	entries []types.AuthLog
}

func (f *fakeAuthLogRepo) Insert(ctx context.Context, entry types.AuthLog) (types.AuthLog, error) {
	entry.ID = int64(len(f.entries) + 1)
	entry.Timestamp = time.Now()
	f.entries = append(f.entries, entry)
	return entry, nil
}

type fakeTaskRepo struct {
	tasks  map[int64]types.Task
	nextID int64
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

type fakeAttachmentRepo struct {
	attachments map[int64]types.Attachment
	taskOwners  map[int64]int64
	nextID      int64
}

func (f *fakeAttachmentRepo) Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error) {
	f.nextID++
	attachment.ID = f.nextID
	attachment.CreatedAt = time.Now()
	f.attachments[attachment.ID] = attachment
	return attachment, nil
}

func (f *fakeAttachmentRepo) GetForOwner(ctx context.Context, id, ownerID int64) (types.Attachment, error) {
	attachment, ok := f.attachments[id]
	if !ok {
		return types.Attachment{}, store.ErrNotFound
	}
	if f.taskOwners[attachment.TaskID] != ownerID {
		return types.Attachment{}, store.ErrNotFound
	}
	return attachment, nil
}

func (f *fakeAttachmentRepo) ListForTask(ctx context.Context, taskID int64) ([]types.Attachment, error) {
	result := []types.Attachment{}
	for _, attachment := range f.attachments {
		if attachment.TaskID == taskID {
			result = append(result, attachment)
		}
	}
	return result, nil
}

func (f *fakeAttachmentRepo) CountForTask(ctx context.Context, taskID int64) (int, error) {
	count := 0
	for _, attachment := range f.attachments {
		if attachment.TaskID == taskID {
			count++
		}
	}
	return count, nil
}

func (f *fakeAttachmentRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.attachments[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.attachments, id)
	return nil
}

type fakeBlobStore struct {
	objects map[string][]byte
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) (bool, error) {
	if _, ok := f.objects[key]; !ok {
		return false, nil
	}
	delete(f.objects, key)
	return true, nil
}

func (f *fakeBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeBlobStore) Size(ctx context.Context, key string) (int64, error) {
	data, ok := f.objects[key]
	if !ok {
		return 0, errors.New("no such key")
	}
	return int64(len(data)), nil
}

func (f *fakeBlobStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://blobs.example.com/" + key, nil
}

type testEnv struct {
	router         *chi.Mux
	userRepo       *fakeUserRepo
	authLogRepo    *fakeAuthLogRepo
	taskRepo       *fakeTaskRepo
	attachmentRepo *fakeAttachmentRepo
	blobs          *fakeBlobStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		userRepo:       &fakeUserRepo{users: map[int64]types.User{}},
		authLogRepo:    &fakeAuthLogRepo{},
		taskRepo:       &fakeTaskRepo{tasks: map[int64]types.Task{}},
		attachmentRepo: &fakeAttachmentRepo{attachments: map[int64]types.Attachment{}, taskOwners: map[int64]int64{}},
		blobs:          &fakeBlobStore{objects: map[string][]byte{}},
	}

	userService := services.NewUserService(env.userRepo, env.authLogRepo)
	attachmentService := services.NewAttachmentService(env.attachmentRepo, env.blobs, config.UploadConfig{
		MaxFileSize:  10 * 1024 * 1024,
		MaxPerTask:   5,
		SignedURLTTL: time.Hour,
	})
	taskService := services.NewTaskService(env.taskRepo, attachmentService)

	auth := RequireAuth(testJWTSecret)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, testJWTSecret)
	})
	router.Route("/tasks", func(r chi.Router) {
		TaskRouter(r, taskService, attachmentService, auth)
	})
	router.Route("/attachments", func(r chi.Router) {
		AttachmentRouter(r, taskService, attachmentService, auth)
	})
	env.router = router
	return env
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, email, username string) string {
	t.Helper()

	rec := e.doJSON(t, http.MethodPost, "/auth/register", "", RegisterRequest{
		Email:    email,
		Username: username,
		Password: "Str0ng!pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *testEnv) createTask(t *testing.T, token, title string) types.Task {
	t.Helper()

	rec := e.doJSON(t, http.MethodPost, "/tasks/", token, TaskUpsertRequest{Title: title})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var task types.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))

	// Keep the attachment fake's ownership index in sync.
	e.attachmentRepo.taskOwners[task.ID] = task.OwnerID
	return task
}

func (e *testEnv) uploadAttachment(t *testing.T, token string, taskID int64, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(formFieldFile, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/tasks/%d/attachments/", taskID), &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}
