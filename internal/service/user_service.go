package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ams-platform/attendance-api/internal/dto"
	"github.com/ams-platform/attendance-api/internal/models"
	"github.com/ams-platform/attendance-api/internal/repository"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Enroll(ctx context.Context, userID, subjectID string) error
	Unenroll(ctx context.Context, userID, subjectID string) error
}

type userSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// UserService covers the administrative account surface: registration,
// listing, updates and subject enrollment.
type UserService struct {
	repo      userRepository
	subjects  userSubjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(repo userRepository, subjects userSubjectRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, subjects: subjects, validator: validate, logger: logger}
}

// Create registers a student or instructor. Students must carry a stage and
// department; instructors may leave both empty.
func (s *UserService) Create(ctx context.Context, req dto.CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	role := models.UserRole(req.Role)
	if role == models.RoleStudent && (req.Stage == "" || req.Department == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "stage and department are required for students")
	}

	user := &models.User{
		Name:       req.Name,
		Email:      req.Email,
		Role:       role,
		Stage:      req.Stage,
		Department: req.Department,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, storeErr(err, "failed to create user")
	}

	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, storeErr(err, "failed to fetch user")
	}
	return user, nil
}

// List returns users matching the filter along with pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storeErr(err, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update modifies mutable user fields.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Stage != "" {
		user.Stage = req.Stage
	}
	if req.Department != "" {
		user.Department = req.Department
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, storeErr(err, "failed to update user")
	}
	return user, nil
}

// Delete removes a user. Historical session snapshots are untouched.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeErr(err, "failed to delete user")
	}
	return nil
}

// Enroll adds a student to a subject. Sessions already opened keep their
// snapshot; the student appears only in sessions opened after this point.
func (s *UserService) Enroll(ctx context.Context, userID, subjectID string) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrValidation, "only students can be enrolled")
	}

	if _, err := s.subjects.FindByID(ctx, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return storeErr(err, "failed to fetch subject")
	}

	if err := s.repo.Enroll(ctx, userID, subjectID); err != nil {
		return storeErr(err, "failed to enroll user")
	}
	return nil
}

// Unenroll removes a student from a subject.
func (s *UserService) Unenroll(ctx context.Context, userID, subjectID string) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.Unenroll(ctx, userID, subjectID); err != nil {
		return storeErr(err, "failed to unenroll user")
	}
	return nil
}
