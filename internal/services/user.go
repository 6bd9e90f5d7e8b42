package services

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/taskforge/apiserver/internal/store"
	"github.com/taskforge/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetLastLogin(ctx context.Context, id int64, at time.Time) error
}

// AuthLogRepository appends authentication audit rows.
type AuthLogRepository interface {
	Insert(ctx context.Context, entry types.AuthLog) (types.AuthLog, error)
}

// RequestMeta carries the request context captured for audit rows.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

func (m RequestMeta) ip() string {
	if strings.TrimSpace(m.IPAddress) == "" {
		return "127.0.0.1"
	}
	return m.IPAddress
}

var (
	usernamePattern  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	upperPattern     = regexp.MustCompile(`[A-Z]`)
	lowerPattern     = regexp.MustCompile(`[a-z]`)
	digitPattern     = regexp.MustCompile(`[0-9]`)
	specialPattern   = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
	passwordMinChars = 8
)

// ValidateUsername enforces the 3-30 alphanumeric username policy.
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return Validation("username", "must be at least 3 characters long")
	}
	if len(username) > 30 {
		return Validation("username", "must not exceed 30 characters")
	}
	if !usernamePattern.MatchString(username) {
		return Validation("username", "must contain only letters and numbers")
	}
	return nil
}

// ValidatePassword enforces the password complexity policy: at least 8
// characters with one uppercase, one lowercase, one digit, and one
// special character.
func ValidatePassword(password string) error {
	if len(password) < passwordMinChars {
		return Validation("password", "must be at least 8 characters long")
	}
	if !upperPattern.MatchString(password) {
		return Validation("password", "must contain at least one uppercase letter")
	}
	if !lowerPattern.MatchString(password) {
		return Validation("password", "must contain at least one lowercase letter")
	}
	if !digitPattern.MatchString(password) {
		return Validation("password", "must contain at least one digit")
	}
	if !specialPattern.MatchString(password) {
		return Validation("password", `must contain at least one special character (!@#$%^&*(),.?":{}|<>)`)
	}
	return nil
}

// UserService encapsulates registration, authentication, and the audit
// trail around them.
type UserService struct {
	repo UserRepository
	logs AuthLogRepository
}

func NewUserService(repo UserRepository, logs AuthLogRepository) *UserService {
	return &UserService{repo: repo, logs: logs}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register creates a new account. Email is normalized to lowercase and
// must be unique alongside the username.
func (s *UserService) Register(ctx context.Context, email, username, password string, meta RequestMeta) (types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	if email == "" {
		return types.User{}, Validation("email", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return types.User{}, Validation("email", "is not a valid email address")
	}
	if err := ValidateUsername(username); err != nil {
		return types.User{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return types.User{}, err
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, Validation("email", "is already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return types.User{}, Validation("username", "is already taken")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hashed),
		IsActive:     true,
	})
	if err != nil {
		// Lost a race with a concurrent registration.
		return types.User{}, err
	}

	s.logEvent(ctx, &user.ID, types.AuthEventRegistration, meta, true, nil)
	return user, nil
}

// Authenticate verifies credentials. The error never reveals whether
// the email was unknown or the password wrong.
func (s *UserService) Authenticate(ctx context.Context, email, password string, meta RequestMeta) (types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logFailedLogin(ctx, email, meta)
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if !user.IsActive {
		s.logFailedLogin(ctx, email, meta)
		return types.User{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logFailedLogin(ctx, email, meta)
		return types.User{}, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.repo.SetLastLogin(ctx, user.ID, now); err != nil {
		slog.Error("failed to update last login", "user_id", user.ID, "error", err)
	} else {
		user.LastLogin = &now
	}

	s.logEvent(ctx, &user.ID, types.AuthEventLogin, meta, true, nil)
	return user, nil
}

// ChangePassword verifies the current password before applying the new
// one. The new password goes through the full complexity policy.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, current, next string, meta RequestMeta) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}

	if err := ValidatePassword(next); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.repo.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return err
	}

	s.logEvent(ctx, &userID, types.AuthEventPasswordChange, meta, true, nil)
	return nil
}

// LogLogout records a logout audit row.
func (s *UserService) LogLogout(ctx context.Context, userID int64, meta RequestMeta) {
	s.logEvent(ctx, &userID, types.AuthEventLogout, meta, true, nil)
}

func (s *UserService) logFailedLogin(ctx context.Context, attemptedEmail string, meta RequestMeta) {
	s.logEvent(ctx, nil, types.AuthEventFailedLogin, meta, false, map[string]string{
		"attempted_email": attemptedEmail,
	})
}

// logEvent appends an audit row. Audit failures are logged but never
// block the authentication flow itself.
func (s *UserService) logEvent(ctx context.Context, userID *int64, eventType string, meta RequestMeta, success bool, metadata map[string]string) {
	_, err := s.logs.Insert(ctx, types.AuthLog{
		UserID:    userID,
		EventType: eventType,
		IPAddress: meta.ip(),
		UserAgent: meta.UserAgent,
		Success:   success,
		Metadata:  metadata,
	})
	if err != nil {
		slog.Error("failed to write auth log", "event_type", eventType, "error", err)
	}
}
