package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ams-platform/attendance-api/internal/dto"
	"github.com/ams-platform/attendance-api/internal/models"
	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
)

type subjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	UpdateName(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
}

type subjectUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type subjectSessionRepository interface {
	CountBySubject(ctx context.Context, subjectID string) (int, error)
}

// SubjectService covers the administrative subject surface. Subjects that
// attendance sessions reference are effectively immutable: only renames are
// allowed and deletion is refused.
type SubjectService struct {
	repo      subjectRepository
	users     subjectUserRepository
	sessions  subjectSessionRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs a SubjectService instance.
func NewSubjectService(repo subjectRepository, users subjectUserRepository, sessions subjectSessionRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, users: users, sessions: sessions, validator: validate, logger: logger}
}

// Create registers a subject owned by an existing instructor.
func (s *SubjectService) Create(ctx context.Context, req dto.CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	instructor, err := s.users.FindByID(ctx, req.InstructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "instructor not found")
		}
		return nil, storeErr(err, "failed to fetch instructor")
	}
	if instructor.Role != models.RoleInstructor {
		return nil, appErrors.Clone(appErrors.ErrValidation, "instructor_id must reference an instructor")
	}

	subject := &models.Subject{
		Name:         req.Name,
		InstructorID: req.InstructorID,
		Stage:        req.Stage,
		Department:   req.Department,
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, storeErr(err, "failed to create subject")
	}

	s.logger.Info("subject created", zap.String("subject_id", subject.ID))
	return subject, nil
}

// Get returns a subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, storeErr(err, "failed to fetch subject")
	}
	return subject, nil
}

// List returns subjects matching the filter along with pagination metadata.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storeErr(err, "failed to list subjects")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return subjects, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update renames a subject.
func (s *SubjectService) Update(ctx context.Context, id string, req dto.UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateName(ctx, id, req.Name); err != nil {
		return nil, storeErr(err, "failed to update subject")
	}
	subject.Name = req.Name
	return subject, nil
}

// Delete removes a subject unless attendance sessions reference it.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	count, err := s.sessions.CountBySubject(ctx, id)
	if err != nil {
		return storeErr(err, "failed to count subject sessions")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "subject has recorded attendance sessions")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return storeErr(err, "failed to delete subject")
	}
	return nil
}
