package models

import "time"

// ClassType distinguishes corporate group classes from private ones.
type ClassType string

const (
	ClassTypeCorporate ClassType = "CORPORATE"
	ClassTypePrivate   ClassType = "PRIVATE"
)

// ClassLevel is the proficiency tier a class (or content) is pitched at.
type ClassLevel string

const (
	LevelA1             ClassLevel = "A1"
	LevelA2             ClassLevel = "A2"
	LevelB1             ClassLevel = "B1"
	LevelB2             ClassLevel = "B2"
	LevelC1             ClassLevel = "C1"
	LevelC2             ClassLevel = "C2"
	LevelConversationA1 ClassLevel = "CONVERSATION_A1"
	LevelConversationA2 ClassLevel = "CONVERSATION_A2"
	LevelConversationB1 ClassLevel = "CONVERSATION_B1"
	LevelConversationB2 ClassLevel = "CONVERSATION_B2"
	LevelConversationC1 ClassLevel = "CONVERSATION_C1"
	LevelConversationC2 ClassLevel = "CONVERSATION_C2"
)

// Valid reports whether the level is one of the supported tiers.
func (l ClassLevel) Valid() bool {
	switch l {
	case LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2,
		LevelConversationA1, LevelConversationA2, LevelConversationB1,
		LevelConversationB2, LevelConversationC1, LevelConversationC2:
		return true
	default:
		return false
	}
}

// Class represents a scheduled language class owned by a consultant.
type Class struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Description  *string    `db:"description" json:"description,omitempty"`
	Type         ClassType  `db:"type" json:"type"`
	Level        ClassLevel `db:"level" json:"level"`
	MaxStudents  int        `db:"max_students" json:"max_students"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	StartTime    time.Time  `db:"start_time" json:"start_time"`
	EndTime      time.Time  `db:"end_time" json:"end_time"`
	DayOfWeek    int        `db:"day_of_week" json:"day_of_week"`
	ConsultantID string     `db:"consultant_id" json:"consultant_id"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with consultant info and enrollment count.
type ClassDetail struct {
	Class
	ConsultantName  string `db:"consultant_name" json:"consultant_name"`
	ConsultantEmail string `db:"consultant_email" json:"consultant_email"`
	EnrolledCount   int    `db:"enrolled_count" json:"enrolled_count"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Type         ClassType
	Level        ClassLevel
	ConsultantID string
	IsActive     *bool
	Page         int
	PageSize     int
}
