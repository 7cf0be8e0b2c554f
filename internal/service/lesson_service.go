package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fluentia/tutor-admin-api/internal/models"
	appErrors "github.com/fluentia/tutor-admin-api/pkg/errors"
)

type lessonRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.LessonSummary, error)
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	FindDetailByID(ctx context.Context, id string) (*models.LessonDetail, error)
	ExistsByClassContentDate(ctx context.Context, classID, contentID string, lessonDate time.Time, excludeID string) (bool, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) error
}

type lessonAttendanceRepository interface {
	Upsert(ctx context.Context, record *models.Attendance) error
	ListByLesson(ctx context.Context, lessonID string) ([]models.Attendance, error)
	CountByLesson(ctx context.Context, lessonID string) (int, error)
}

type lessonClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type lessonContentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Content, error)
}

type lessonEnrollmentRepository interface {
	IsActive(ctx context.Context, classID, studentID string) (bool, error)
}

// CreateLessonRequest holds payload for scheduling a lesson.
type CreateLessonRequest struct {
	ClassID      string    `json:"class_id" validate:"required"`
	ContentID    string    `json:"content_id" validate:"required"`
	LessonDate   time.Time `json:"lesson_date" validate:"required"`
	Notes        *string   `json:"notes"`
	WasCompleted bool      `json:"was_completed"`
}

// UpdateLessonRequest holds payload for updating a lesson. Nil fields are
// left untouched.
type UpdateLessonRequest struct {
	ContentID    *string    `json:"content_id"`
	LessonDate   *time.Time `json:"lesson_date"`
	Notes        *string    `json:"notes"`
	WasCompleted *bool      `json:"was_completed"`
}

// AttendanceEntry is one student's presence record in a batch.
type AttendanceEntry struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
	Notes     *string                 `json:"notes"`
}

// RecordAttendanceRequest holds the attendance batch for a lesson.
type RecordAttendanceRequest struct {
	Records []AttendanceEntry `json:"records" validate:"required,min=1,dive"`
}

// LessonService handles lesson and attendance use-cases.
type LessonService struct {
	lessons     lessonRepository
	attendance  lessonAttendanceRepository
	classes     lessonClassRepository
	contents    lessonContentRepository
	enrollments lessonEnrollmentRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewLessonService constructs the lesson service.
func NewLessonService(lessons lessonRepository, attendance lessonAttendanceRepository, classes lessonClassRepository, contents lessonContentRepository, enrollments lessonEnrollmentRepository, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{
		lessons:     lessons,
		attendance:  attendance,
		classes:     classes,
		contents:    contents,
		enrollments: enrollments,
		validator:   validate,
		logger:      logger,
	}
}

// Create schedules a content for a class on a date.
func (s *LessonService) Create(ctx context.Context, req CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if !class.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}

	if err := s.checkContent(ctx, req.ContentID); err != nil {
		return nil, err
	}

	exists, err := s.lessons.ExistsByClassContentDate(ctx, req.ClassID, req.ContentID, req.LessonDate, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check lesson slot")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "this content is already scheduled for this class on this date")
	}

	lesson := &models.Lesson{
		ClassID:      req.ClassID,
		ContentID:    req.ContentID,
		LessonDate:   req.LessonDate,
		Notes:        req.Notes,
		WasCompleted: req.WasCompleted,
	}
	if err := s.lessons.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}
	return lesson, nil
}

// Get returns a lesson with class, content and attendance records.
func (s *LessonService) Get(ctx context.Context, id string) (*models.LessonDetail, error) {
	lesson, err := s.lessons.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	records, err := s.attendance.ListByLesson(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	lesson.Attendance = records
	return lesson, nil
}

// ListByClass returns a class's lessons, most recent first.
func (s *LessonService) ListByClass(ctx context.Context, classID string) ([]models.LessonSummary, error) {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	lessons, err := s.lessons.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}

// Update modifies a lesson, re-validating the content when it changes.
func (s *LessonService) Update(ctx context.Context, id string, req UpdateLessonRequest) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}

	contentID := lesson.ContentID
	lessonDate := lesson.LessonDate
	if req.ContentID != nil && *req.ContentID != lesson.ContentID {
		if err := s.checkContent(ctx, *req.ContentID); err != nil {
			return nil, err
		}
		contentID = *req.ContentID
	}
	if req.LessonDate != nil {
		lessonDate = *req.LessonDate
	}
	if contentID != lesson.ContentID || !lessonDate.Equal(lesson.LessonDate) {
		exists, err := s.lessons.ExistsByClassContentDate(ctx, lesson.ClassID, contentID, lessonDate, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check lesson slot")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "this content is already scheduled for this class on this date")
		}
	}

	lesson.ContentID = contentID
	lesson.LessonDate = lessonDate
	if req.Notes != nil {
		lesson.Notes = req.Notes
	}
	if req.WasCompleted != nil {
		lesson.WasCompleted = *req.WasCompleted
	}

	if err := s.lessons.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	return lesson, nil
}

// Delete removes a lesson unless attendance was already recorded.
func (s *LessonService) Delete(ctx context.Context, id string) error {
	if _, err := s.lessons.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	count, err := s.attendance.CountByLesson(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "lesson has attendance records")
	}
	if err := s.lessons.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	return nil
}

// RecordAttendance upserts presence records for actively enrolled students.
func (s *LessonService) RecordAttendance(ctx context.Context, lessonID string, req RecordAttendanceRequest) ([]models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}

	for _, entry := range req.Records {
		if !entry.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid attendance status")
		}
		enrolled, err := s.enrollments.IsActive(ctx, lesson.ClassID, entry.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
		if !enrolled {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is not enrolled in this class")
		}
	}

	for _, entry := range req.Records {
		record := &models.Attendance{
			LessonID:  lessonID,
			StudentID: entry.StudentID,
			Status:    entry.Status,
			Notes:     entry.Notes,
		}
		if err := s.attendance.Upsert(ctx, record); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
		}
	}

	records, err := s.attendance.ListByLesson(ctx, lessonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return records, nil
}

func (s *LessonService) checkContent(ctx context.Context, contentID string) error {
	content, err := s.contents.FindByID(ctx, contentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "content not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load content")
	}
	if !content.IsActive {
		return appErrors.Clone(appErrors.ErrNotFound, "content not found")
	}
	return nil
}
