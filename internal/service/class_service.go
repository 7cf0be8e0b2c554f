package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fluentia/tutor-admin-api/internal/models"
	"github.com/fluentia/tutor-admin-api/internal/repository"
	appErrors "github.com/fluentia/tutor-admin-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
}

type classEnrollmentRepository interface {
	FindByClassAndStudent(ctx context.Context, classID, studentID string) (*models.Enrollment, error)
	ListActiveByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error)
	CreateGuarded(ctx context.Context, enrollment *models.Enrollment) error
	ReactivateGuarded(ctx context.Context, enrollment *models.Enrollment) error
	Deactivate(ctx context.Context, id string) error
	HasActiveByClass(ctx context.Context, classID string) (bool, error)
}

type classUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateClassRequest holds payload for creating classes.
type CreateClassRequest struct {
	Name         string            `json:"name" validate:"required"`
	Description  *string           `json:"description"`
	Type         models.ClassType  `json:"type" validate:"required"`
	Level        models.ClassLevel `json:"level" validate:"required"`
	MaxStudents  int               `json:"max_students" validate:"required,min=1"`
	StartTime    time.Time         `json:"start_time" validate:"required"`
	EndTime      time.Time         `json:"end_time" validate:"required"`
	DayOfWeek    int               `json:"day_of_week" validate:"min=0,max=6"`
	ConsultantID string            `json:"consultant_id" validate:"required"`
}

// UpdateClassRequest holds payload for updating classes. Nil fields are left
// untouched.
type UpdateClassRequest struct {
	Name         *string            `json:"name"`
	Description  *string            `json:"description"`
	Type         *models.ClassType  `json:"type"`
	Level        *models.ClassLevel `json:"level"`
	MaxStudents  *int               `json:"max_students" validate:"omitempty,min=1"`
	IsActive     *bool              `json:"is_active"`
	StartTime    *time.Time         `json:"start_time"`
	EndTime      *time.Time         `json:"end_time"`
	DayOfWeek    *int               `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	ConsultantID *string            `json:"consultant_id"`
}

// EnrollStudentRequest holds payload for enrolling a student into a class.
type EnrollStudentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// ClassService handles class and enrollment use-cases.
type ClassService struct {
	classes     classRepository
	enrollments classEnrollmentRepository
	users       classUserRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClassService constructs the class service.
func NewClassService(classes classRepository, enrollments classEnrollmentRepository, users classUserRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{classes: classes, enrollments: enrollments, users: users, validator: validate, logger: logger}
}

// List returns classes with consultant info and enrollment counts.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	classes, total, err := s.classes.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return classes, pagination, nil
}

// Get returns class detail with its active enrollments.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, []models.EnrollmentDetail, error) {
	class, err := s.classes.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	enrollments, err := s.enrollments.ListActiveByClass(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	return class, enrollments, nil
}

// Create registers a new class after validating its consultant.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if !req.Level.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid class level")
	}
	if req.Type != models.ClassTypeCorporate && req.Type != models.ClassTypePrivate {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid class type")
	}
	if err := s.checkConsultant(ctx, req.ConsultantID); err != nil {
		return nil, err
	}

	class := &models.Class{
		Name:         req.Name,
		Description:  req.Description,
		Type:         req.Type,
		Level:        req.Level,
		MaxStudents:  req.MaxStudents,
		IsActive:     true,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		DayOfWeek:    req.DayOfWeek,
		ConsultantID: req.ConsultantID,
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update modifies a class, re-validating the consultant when it changes.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if req.ConsultantID != nil && *req.ConsultantID != class.ConsultantID {
		if err := s.checkConsultant(ctx, *req.ConsultantID); err != nil {
			return nil, err
		}
		class.ConsultantID = *req.ConsultantID
	}
	if req.Name != nil {
		class.Name = *req.Name
	}
	if req.Description != nil {
		class.Description = req.Description
	}
	if req.Type != nil {
		if *req.Type != models.ClassTypeCorporate && *req.Type != models.ClassTypePrivate {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid class type")
		}
		class.Type = *req.Type
	}
	if req.Level != nil {
		if !req.Level.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid class level")
		}
		class.Level = *req.Level
	}
	if req.MaxStudents != nil {
		class.MaxStudents = *req.MaxStudents
	}
	if req.IsActive != nil {
		class.IsActive = *req.IsActive
	}
	if req.StartTime != nil {
		class.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		class.EndTime = *req.EndTime
	}
	if req.DayOfWeek != nil {
		class.DayOfWeek = *req.DayOfWeek
	}

	if err := s.classes.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Delete removes a class unless it still has active enrollments.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.classes.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	hasActive, err := s.enrollments.HasActiveByClass(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollments")
	}
	if hasActive {
		return appErrors.Clone(appErrors.ErrConflict, "class has active enrollments")
	}
	if err := s.classes.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}

// Enroll places a student into a class. Guards run in a fixed order so the
// caller always gets the most specific failure; the final capacity check and
// insert are transactional.
func (s *ClassService) Enroll(ctx context.Context, classID string, req EnrollStudentRequest) (*models.Enrollment, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "user is not a student")
	}

	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if !class.IsActive {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "class is not active")
	}

	existing, err := s.enrollments.FindByClassAndStudent(ctx, classID, req.StudentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if existing != nil {
		if existing.IsActive {
			return nil, false, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this class")
		}
		if err := s.enrollments.ReactivateGuarded(ctx, existing); err != nil {
			return nil, false, s.mapEnrollError(err)
		}
		return existing, true, nil
	}

	enrollment := &models.Enrollment{ClassID: classID, StudentID: req.StudentID}
	if err := s.enrollments.CreateGuarded(ctx, enrollment); err != nil {
		return nil, false, s.mapEnrollError(err)
	}
	return enrollment, false, nil
}

func (s *ClassService) mapEnrollError(err error) error {
	switch {
	case errors.Is(err, repository.ErrClassFull):
		return appErrors.Clone(appErrors.ErrConflict, "class is full")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}
}

// Unenroll soft-deletes an active enrollment and returns the
// deactivated record.
func (s *ClassService) Unenroll(ctx context.Context, classID, studentID string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByClassAndStudent(ctx, classID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !enrollment.IsActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is already inactive")
	}
	if err := s.enrollments.Deactivate(ctx, enrollment.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unenroll student")
	}
	enrollment.IsActive = false
	return enrollment, nil
}

// Enrollments returns a class's active enrollments in enrollment order.
func (s *ClassService) Enrollments(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	enrollments, err := s.enrollments.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

func (s *ClassService) checkConsultant(ctx context.Context, consultantID string) error {
	consultant, err := s.users.FindByID(ctx, consultantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "consultant not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load consultant")
	}
	if consultant.Role != models.RoleConsultant && consultant.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "user cannot own classes")
	}
	return nil
}
