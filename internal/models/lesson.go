package models

import "time"

// Lesson is a scheduled occurrence of a content item for a class.
type Lesson struct {
	ID           string    `db:"id" json:"id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	ContentID    string    `db:"content_id" json:"content_id"`
	LessonDate   time.Time `db:"lesson_date" json:"lesson_date"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	WasCompleted bool      `db:"was_completed" json:"was_completed"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// LessonSummary is the reduced lesson shape embedded in content and class
// responses. Queries fill the class or content fields depending on which
// side the listing joins from.
type LessonSummary struct {
	ID           string     `db:"id" json:"id"`
	ClassID      string     `db:"class_id" json:"class_id"`
	ClassName    string     `db:"class_name" json:"class_name,omitempty"`
	ContentID    string     `db:"content_id" json:"content_id,omitempty"`
	ContentTitle string     `db:"content_title" json:"content_title,omitempty"`
	Module       ClassLevel `db:"module" json:"module,omitempty"`
	SortOrder    int        `db:"sort_order" json:"order,omitempty"`
	LessonDate   time.Time  `db:"lesson_date" json:"lesson_date"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	WasCompleted bool       `db:"was_completed" json:"was_completed"`
}

// LessonDetail enriches Lesson with class, content and attendance data.
type LessonDetail struct {
	Lesson
	ClassName    string       `db:"class_name" json:"class_name"`
	ClassType    ClassType    `db:"class_type" json:"class_type"`
	ClassLevel   ClassLevel   `db:"class_level" json:"class_level"`
	ContentTitle string       `db:"content_title" json:"content_title"`
	Module       ClassLevel   `db:"module" json:"module"`
	SortOrder    int          `db:"sort_order" json:"order"`
	Attendance   []Attendance `json:"attendance"`
}
