package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

type userRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, role *models.UserRole) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Upsert(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id int64, mutate func(*models.User) error) (*models.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
}

// UserService handles user management for the back-office and the operator CLI.
type UserService struct {
	repo   userRepository
	cache  *CacheService
	audit  AuditRecorder
	logger *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, cache *CacheService, audit AuditRecorder, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = discardAudit{}
	}
	return &UserService{repo: repo, cache: cache, audit: audit, logger: logger}
}

// List returns all users, or only those holding role when it is set.
func (s *UserService) List(ctx context.Context, session *models.Session, role *models.UserRole) ([]models.User, error) {
	if err := authorizeAdmin(session); err != nil {
		return nil, err
	}
	users, err := s.repo.List(ctx, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, nil
}

// Get loads one user for the back-office edit form.
func (s *UserService) Get(ctx context.Context, session *models.Session, id int64) (*models.User, error) {
	if err := authorizeAdmin(session); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, persistError(err, id, "user")
	}
	return user, nil
}

// Create registers a user from a complete form.
func (s *UserService) Create(ctx context.Context, session *models.Session, form dto.UserForm) (*models.User, error) {
	if err := authorizeAdmin(session); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(form.Username)
	if username == "" || form.Password == "" {
		return nil, invalid("username and password are required")
	}
	role, err := models.ParseRole(form.Role)
	if err != nil {
		return nil, invalid("role must be one of student, teacher, admin")
	}
	hash, err := HashPassword(form.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{Username: username, PasswordHash: hash, Role: role}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, persistError(err, 0, "username "+username)
	}
	s.record(session, models.AuditActionCreate, user.ID, map[string]interface{}{"username": username, "role": role})
	return user, nil
}

// Update applies the non-empty fields of form. A new password is re-hashed.
func (s *UserService) Update(ctx context.Context, session *models.Session, id int64, form dto.UserForm) (*models.User, error) {
	if err := authorizeAdmin(session); err != nil {
		return nil, err
	}

	var role models.UserRole
	if strings.TrimSpace(form.Role) != "" {
		parsed, err := models.ParseRole(form.Role)
		if err != nil {
			return nil, invalid("role must be one of student, teacher, admin")
		}
		role = parsed
	}
	var hash string
	if form.Password != "" {
		hashed, err := HashPassword(form.Password)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		hash = hashed
	}
	username := strings.TrimSpace(form.Username)

	changed := make([]string, 0, 3)
	user, err := s.repo.Update(ctx, id, func(u *models.User) error {
		if username != "" && username != u.Username {
			u.Username = username
			changed = append(changed, "username")
		}
		if hash != "" {
			u.PasswordHash = hash
			changed = append(changed, "password")
		}
		if role != "" && role != u.Role {
			u.Role = role
			changed = append(changed, "role")
		}
		return nil
	})
	if err != nil {
		return nil, persistError(err, id, "username "+username)
	}

	s.cache.InvalidateCourses(ctx)
	s.record(session, models.AuditActionUpdate, id, map[string]interface{}{"fields": changed})
	return user, nil
}

// Delete removes a user. Admins cannot remove their own account and a teacher
// who still owns courses cannot be removed.
func (s *UserService) Delete(ctx context.Context, session *models.Session, id int64) error {
	if err := authorizeAdmin(session); err != nil {
		return err
	}
	if id == session.UserID {
		return invalid("you cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return persistError(err, id, "user")
	}
	s.cache.InvalidateCourses(ctx)
	s.record(session, models.AuditActionDelete, id, nil)
	return nil
}

// Upsert creates or replaces a user from the operator CLI.
func (s *UserService) Upsert(ctx context.Context, username, password string, role models.UserRole) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, invalid("username and password are required")
	}
	if !role.Valid() {
		return nil, invalid("role must be one of student, teacher, admin")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{Username: username, PasswordHash: hash, Role: role}
	if err := s.repo.Upsert(ctx, user); err != nil {
		return nil, persistError(err, 0, "username "+username)
	}
	s.cache.InvalidateCourses(ctx)
	s.record(nil, models.AuditActionPasswordSet, user.ID, map[string]interface{}{"username": username, "role": role, "source": "cli"})
	return user, nil
}

// ResetPassword replaces the credential of an existing user from the operator CLI.
func (s *UserService) ResetPassword(ctx context.Context, username, password string) error {
	if password == "" {
		return invalid("password is required")
	}
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user "+username+" not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return persistError(err, user.ID, "user")
	}
	s.record(nil, models.AuditActionPasswordSet, user.ID, map[string]interface{}{"source": "cli"})
	return nil
}

func (s *UserService) record(session *models.Session, action string, id int64, details map[string]interface{}) {
	entry := models.AuditEntry{
		UserID:     userIDPtr(session),
		Action:     action,
		Resource:   models.AuditResourceUser,
		ResourceID: strconv.FormatInt(id, 10),
		Details:    details,
	}
	if session != nil {
		entry.IPAddress = session.IPAddress
		entry.UserAgent = session.UserAgent
	}
	s.audit.Record(entry)
}
