package models

import "time"

// Enrollment links a student to a class. Rows are soft-deleted: unenrolling
// flips IsActive so history is preserved, re-enrolling reactivates the row.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
	IsActive   bool      `db:"is_active" json:"is_active"`
}

// EnrollmentDetail enriches Enrollment with student and class info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string  `db:"student_name" json:"student_name"`
	StudentEmail string  `db:"student_email" json:"student_email"`
	StudentPhone *string `db:"student_phone" json:"student_phone,omitempty"`
	ClassName    string  `db:"class_name" json:"class_name"`
}
