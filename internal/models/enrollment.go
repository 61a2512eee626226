package models

import (
	"fmt"
	"time"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Withdrawn enrollments are deleted, not kept.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
)

// Enrollment links a student to a section. SubjectID is denormalised from the
// section so the one-active-section-per-subject constraint can live on this
// table. Grade is nil until a professor records one.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	SectionID  string           `db:"section_id" json:"section_id"`
	SubjectID  string           `db:"subject_id" json:"subject_id"`
	Grade      *int             `db:"grade" json:"grade,omitempty"`
	Passed     bool             `db:"passed" json:"passed"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	GradedAt   *time.Time       `db:"graded_at" json:"graded_at,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student, subject and section info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	SubjectCode  string `db:"subject_code" json:"subject_code"`
	SubjectName  string `db:"subject_name" json:"subject_name"`
	GroupName    string `db:"group_name" json:"group_name"`
	Shift        Shift  `db:"shift" json:"shift"`
	ScheduleText string `db:"schedule_text" json:"schedule_text"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	SectionID string
	SubjectID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ScheduleConflict names the enrollment blocking a candidate section.
type ScheduleConflict struct {
	EnrollmentID string `json:"enrollment_id"`
	SectionID    string `json:"section_id"`
	SubjectName  string `json:"subject_name"`
	Weekday      string `json:"weekday"`
	StartsAt     string `json:"starts_at"`
	EndsAt       string `json:"ends_at"`
}

// ScheduleConflictError is returned when a candidate section overlaps an
// active enrollment. It carries enough detail to render a message.
type ScheduleConflictError struct {
	Conflict ScheduleConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("conflicts with %s on %s %s-%s",
		e.Conflict.SubjectName, e.Conflict.Weekday, e.Conflict.StartsAt, e.Conflict.EndsAt)
}

// PrerequisiteError names the correlative subject the student has not passed.
type PrerequisiteError struct {
	SubjectName string `json:"subject_name"`
}

// Error implements the error interface.
func (e *PrerequisiteError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("prerequisite not passed: %s", e.SubjectName)
}
