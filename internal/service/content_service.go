package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fluentia/tutor-admin-api/internal/models"
	appErrors "github.com/fluentia/tutor-admin-api/pkg/errors"
)

// recentLessonsPerContent bounds the lesson preview embedded in listings.
const recentLessonsPerContent = 5

type contentRepository interface {
	List(ctx context.Context, filter models.ContentFilter) ([]models.Content, int, error)
	FindByID(ctx context.Context, id string) (*models.Content, error)
	ExistsByModuleOrder(ctx context.Context, module models.ClassLevel, order int, excludeID string) (bool, error)
	ListByModule(ctx context.Context, module models.ClassLevel) ([]models.Content, error)
	Create(ctx context.Context, content *models.Content) error
	Update(ctx context.Context, content *models.Content) error
	Delete(ctx context.Context, id string) error
}

type contentLessonRepository interface {
	ListRecentByContent(ctx context.Context, contentID string, limit int) ([]models.LessonSummary, error)
	CountByContent(ctx context.Context, contentID string) (int, error)
}

// CreateContentRequest holds payload for creating contents.
type CreateContentRequest struct {
	Title           string            `json:"title" validate:"required"`
	Description     *string           `json:"description"`
	Module          models.ClassLevel `json:"module" validate:"required"`
	Order           int               `json:"order" validate:"min=1"`
	PresentationURL *string           `json:"presentation_url" validate:"omitempty,url"`
	StudentsPDFURL  *string           `json:"students_pdf_url" validate:"omitempty,url"`
	HomeworkURL     *string           `json:"homework_url" validate:"omitempty,url"`
}

// UpdateContentRequest holds payload for updating contents. Nil fields are
// left untouched.
type UpdateContentRequest struct {
	Title           *string            `json:"title"`
	Description     *string            `json:"description"`
	Module          *models.ClassLevel `json:"module"`
	Order           *int               `json:"order" validate:"omitempty,min=1"`
	PresentationURL *string            `json:"presentation_url" validate:"omitempty,url"`
	StudentsPDFURL  *string            `json:"students_pdf_url" validate:"omitempty,url"`
	HomeworkURL     *string            `json:"homework_url" validate:"omitempty,url"`
	IsActive        *bool              `json:"is_active"`
}

// ContentService handles curriculum content use-cases.
type ContentService struct {
	contents  contentRepository
	lessons   contentLessonRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewContentService constructs the content service.
func NewContentService(contents contentRepository, lessons contentLessonRepository, validate *validator.Validate, logger *zap.Logger) *ContentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentService{contents: contents, lessons: lessons, validator: validate, logger: logger}
}

// List returns contents with their recent lessons attached.
func (s *ContentService) List(ctx context.Context, filter models.ContentFilter) ([]models.ContentDetail, *models.Pagination, error) {
	contents, total, err := s.contents.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contents")
	}

	details := make([]models.ContentDetail, 0, len(contents))
	for _, content := range contents {
		lessons, err := s.lessons.ListRecentByContent(ctx, content.ID, recentLessonsPerContent)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load content lessons")
		}
		details = append(details, models.ContentDetail{Content: content, Lessons: lessons})
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
	return details, pagination, nil
}

// Get returns a content with its recent lessons.
func (s *ContentService) Get(ctx context.Context, id string) (*models.ContentDetail, error) {
	content, err := s.contents.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load content")
	}
	lessons, err := s.lessons.ListRecentByContent(ctx, id, recentLessonsPerContent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load content lessons")
	}
	return &models.ContentDetail{Content: *content, Lessons: lessons}, nil
}

// Create registers a new content, guarding the (module, order) slot.
func (s *ContentService) Create(ctx context.Context, req CreateContentRequest) (*models.Content, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid content payload")
	}
	if !req.Module.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid module")
	}
	if err := s.checkSlot(ctx, req.Module, req.Order, ""); err != nil {
		return nil, err
	}

	content := &models.Content{
		Title:           req.Title,
		Description:     req.Description,
		Module:          req.Module,
		Order:           req.Order,
		PresentationURL: req.PresentationURL,
		StudentsPDFURL:  req.StudentsPDFURL,
		HomeworkURL:     req.HomeworkURL,
		IsActive:        true,
	}
	if err := s.contents.Create(ctx, content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create content")
	}
	return content, nil
}

// Update modifies a content, excluding itself from the slot check.
func (s *ContentService) Update(ctx context.Context, id string, req UpdateContentRequest) (*models.Content, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid content payload")
	}

	content, err := s.contents.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load content")
	}

	module := content.Module
	order := content.Order
	if req.Module != nil {
		if !req.Module.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid module")
		}
		module = *req.Module
	}
	if req.Order != nil {
		order = *req.Order
	}
	if module != content.Module || order != content.Order {
		if err := s.checkSlot(ctx, module, order, id); err != nil {
			return nil, err
		}
	}

	content.Module = module
	content.Order = order
	if req.Title != nil {
		content.Title = *req.Title
	}
	if req.Description != nil {
		content.Description = req.Description
	}
	if req.PresentationURL != nil {
		content.PresentationURL = req.PresentationURL
	}
	if req.StudentsPDFURL != nil {
		content.StudentsPDFURL = req.StudentsPDFURL
	}
	if req.HomeworkURL != nil {
		content.HomeworkURL = req.HomeworkURL
	}
	if req.IsActive != nil {
		content.IsActive = *req.IsActive
	}

	if err := s.contents.Update(ctx, content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update content")
	}
	return content, nil
}

// Delete removes a content unless class lessons still reference it.
func (s *ContentService) Delete(ctx context.Context, id string) error {
	if _, err := s.contents.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "content not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load content")
	}
	count, err := s.lessons.CountByContent(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check content usage")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "content is referenced by class lessons")
	}
	if err := s.contents.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete content")
	}
	return nil
}

// ListByModule returns a module's active contents in order.
func (s *ContentService) ListByModule(ctx context.Context, module models.ClassLevel) ([]models.Content, error) {
	if !module.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid module")
	}
	contents, err := s.contents.ListByModule(ctx, module)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list module contents")
	}
	active := contents[:0]
	for _, content := range contents {
		if content.IsActive {
			active = append(active, content)
		}
	}
	return active, nil
}

func (s *ContentService) checkSlot(ctx context.Context, module models.ClassLevel, order int, excludeID string) error {
	taken, err := s.contents.ExistsByModuleOrder(ctx, module, order, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check content slot")
	}
	if taken {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("a content with order %d already exists in module %s", order, module))
	}
	return nil
}
