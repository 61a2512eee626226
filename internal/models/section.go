package models

import "time"

// Shift indicates the part of the day a section meets.
type Shift string

// Possible section shifts.
const (
	ShiftMorning   Shift = "MORNING"
	ShiftAfternoon Shift = "AFTERNOON"
	ShiftEvening   Shift = "EVENING"
)

// CourseGroup is a cohort grouping of sections (curso).
type CourseGroup struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Level  string `db:"level" json:"level"`
	Number int    `db:"number" json:"number"`
}

// Section is an offered instance of a subject with its own meeting times.
// ScheduleText is free-form human input ("Monday and Wednesday 08:00-10:00")
// and is parsed on demand rather than stored structurally.
type Section struct {
	ID            string    `db:"id" json:"id"`
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	CourseGroupID string    `db:"course_group_id" json:"course_group_id"`
	Shift         Shift     `db:"shift" json:"shift"`
	ScheduleText  string    `db:"schedule_text" json:"schedule_text"`
	Module        string    `db:"module" json:"module"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// SectionDetail enriches Section with subject and group context.
type SectionDetail struct {
	Section
	SubjectCode string `db:"subject_code" json:"subject_code"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	GroupName   string `db:"group_name" json:"group_name"`
}

// SectionFilter describes query params for listing sections.
type SectionFilter struct {
	SubjectID     string
	CourseGroupID string
	Shift         Shift
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
