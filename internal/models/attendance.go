package models

import "time"

// AttendanceStatus represents a student's presence at a lesson.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	default:
		return false
	}
}

// Attendance is a per-student presence record for a lesson. One row per
// (lesson, student); re-recording updates the existing row.
type Attendance struct {
	ID          string           `db:"id" json:"id"`
	LessonID    string           `db:"lesson_id" json:"lesson_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	Status      AttendanceStatus `db:"status" json:"status"`
	Notes       *string          `db:"notes" json:"notes,omitempty"`
	StudentName string           `db:"student_name" json:"student_name,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}
