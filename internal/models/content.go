package models

import "time"

// Content is a teaching unit, keyed uniquely by (module, sort order).
type Content struct {
	ID              string     `db:"id" json:"id"`
	Title           string     `db:"title" json:"title"`
	Description     *string    `db:"description" json:"description,omitempty"`
	Module          ClassLevel `db:"module" json:"module"`
	Order           int        `db:"sort_order" json:"order"`
	PresentationURL *string    `db:"presentation_url" json:"presentation_url,omitempty"`
	StudentsPDFURL  *string    `db:"students_pdf_url" json:"students_pdf_url,omitempty"`
	HomeworkURL     *string    `db:"homework_url" json:"homework_url,omitempty"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// ContentDetail extends Content with its most recent scheduled lessons.
type ContentDetail struct {
	Content
	Lessons []LessonSummary `json:"class_lessons"`
}

// ContentFilter defines filter criteria for listing contents.
type ContentFilter struct {
	Module   ClassLevel
	IsActive *bool
	Search   string
	Page     int
	PageSize int
}
